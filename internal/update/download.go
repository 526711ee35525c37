// Package update implements the self-update pipeline: detecting the
// current platform, downloading a new binary from the release
// server, and installing it over the running executable with an
// atomic backup/rollback guard.
package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spoq-dev/spoq/internal/errtax"
)

// DownloadBaseURL is the public release server's address. Nothing in
// this package falls back to it: callers pass a base URL to
// NewDownloader, and BackendConfig defaults an empty download URL to
// the stream base URL.
const DownloadBaseURL = "https://download.spoq.dev"

// minBinarySize rejects a download that's obviously truncated or
// wrong (an error page, an empty body) before it's ever staged.
const minBinarySize = 100 * 1024

// Platform identifies a downloadable binary's target OS/arch.
type Platform string

const (
	DarwinArm64 Platform = "darwin-aarch64"
	DarwinX64   Platform = "darwin-x86_64"
	LinuxArm64  Platform = "linux-aarch64"
	LinuxX64    Platform = "linux-x86_64"
)

// DetectPlatform maps the running GOOS/GOARCH to a download platform
// tag, failing for anything the release server doesn't build.
func DetectPlatform() (Platform, error) {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "darwin/arm64":
		return DarwinArm64, nil
	case "darwin/amd64":
		return DarwinX64, nil
	case "linux/arm64":
		return LinuxArm64, nil
	case "linux/amd64":
		return LinuxX64, nil
	default:
		return "", errtax.NewUnsupportedPlatform(runtime.GOOS, runtime.GOARCH)
	}
}

// UpdateTempDir returns `<home>/.spoq/updates`, the staging directory
// for downloaded binaries.
func UpdateTempDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", &errtax.Error{Kind: errtax.NoHomeDirectory}
	}
	return filepath.Join(home, ".spoq", "updates"), nil
}

// DownloadPath returns the staging path for a given version, or
// `spoq-pending` if version is empty.
func DownloadPath(version string) (string, error) {
	dir, err := UpdateTempDir()
	if err != nil {
		return "", err
	}
	name := "spoq-pending"
	if version != "" {
		name = "spoq-" + version
	}
	return filepath.Join(dir, name), nil
}

// DownloadResult describes a successfully staged binary.
type DownloadResult struct {
	FilePath string
	FileSize int64
	Version  string
}

// Downloader fetches release binaries from the download server.
type Downloader struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewDownloader returns a Downloader with a 300s timeout, matching
// the update pipeline's network suspension budget.
func NewDownloader(baseURL string) *Downloader {
	return &Downloader{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 300 * time.Second},
	}
}

// Download fetches the binary for platform and stages it under the
// updates directory, verifying status, size, and Content-Length.
func (d *Downloader) Download(ctx context.Context, platform Platform, version string) (*DownloadResult, error) {
	url := fmt.Sprintf("%s/cli/download/%s", d.BaseURL, platform)
	return d.DownloadFromURL(ctx, url, version)
}

// DownloadFromURL is the core download routine; Download is a thin
// wrapper that builds the platform-specific URL.
func (d *Downloader) DownloadFromURL(ctx context.Context, url, version string) (*DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, errtax.ClassifyHTTPError(err, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, errtax.ClassifyStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	contentLength := resp.ContentLength

	dir, err := UpdateTempDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errtax.ClassifyIOError(err, dir, "create dir")
	}

	finalPath, err := DownloadPath(version)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errtax.ClassifyIOError(err, "", "read response body")
	}

	if len(body) < minBinarySize {
		return nil, errtax.NewEmptyDownload()
	}

	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, body, 0o644); err != nil {
		return nil, errtax.ClassifyIOError(err, tempPath, "write")
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, errtax.ClassifyIOError(err, finalPath, "rename")
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, errtax.ClassifyIOError(err, finalPath, "stat")
	}
	actualSize := info.Size()

	if err := verifyDownloadSize(contentLength, actualSize, finalPath); err != nil {
		return nil, err
	}

	return &DownloadResult{
		FilePath: finalPath,
		FileSize: actualSize,
		Version:  version,
	}, nil
}

// verifyDownloadSize checks a completed download's size against the
// server's declared Content-Length, if any, removing the staged file
// on mismatch. contentLength <= 0 means the server didn't declare one
// (e.g. chunked transfer), so there's nothing to compare against.
func verifyDownloadSize(contentLength, actualSize int64, finalPath string) error {
	if contentLength > 0 && actualSize != contentLength {
		os.Remove(finalPath)
		return errtax.NewSizeMismatch(contentLength, actualSize)
	}
	return nil
}

// CleanupOldUpdates sweeps the staging directory, removing every file
// named spoq-* or ending in .tmp except an optional keepVersion.
func CleanupOldUpdates(keepVersion string) error {
	dir, err := UpdateTempDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errtax.ClassifyIOError(err, dir, "read dir")
	}

	keep := ""
	if keepVersion != "" {
		keep = "spoq-" + keepVersion
	}

	for _, entry := range entries {
		name := entry.Name()
		if keep != "" && name == keep {
			continue
		}
		if strings.HasPrefix(name, "spoq-") || strings.HasSuffix(name, ".tmp") {
			os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

// HasPendingUpdate reports whether a staged binary exists for
// version.
func HasPendingUpdate(version string) (bool, error) {
	path, err := DownloadPath(version)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errtax.ClassifyIOError(err, path, "stat")
	}
	return !info.IsDir(), nil
}

// PendingUpdatePath returns the staged path for version if it exists.
func PendingUpdatePath(version string) (string, bool, error) {
	ok, err := HasPendingUpdate(version)
	if err != nil || !ok {
		return "", false, err
	}
	path, err := DownloadPath(version)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}
