package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// BackendConfig defines how spoq reaches the conversation backend: the
// stream endpoint C3 posts turns to, and the download endpoint C7
// pulls update binaries from.
type BackendConfig struct {
	// StreamBaseURL is the base URL for the stream endpoint.
	StreamBaseURL string `json:"stream_base_url"`
	// DownloadBaseURL is the base URL the update downloader targets.
	// Defaults to StreamBaseURL when empty, since both endpoints
	// typically live behind the same gateway.
	DownloadBaseURL string `json:"download_base_url"`
	// APIKey is the bearer token used for Authorization on both
	// endpoints.
	APIKey string `json:"api_key"`
}

var (
	// ErrBackendConfigMissing is returned when the config file does not exist.
	ErrBackendConfigMissing = errors.New("backend config missing")
	// ErrBackendConfigInvalid is returned when required fields are missing.
	ErrBackendConfigInvalid = errors.New("backend config invalid")
)

// BackendConfigPath returns the default backend config path.
func BackendConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	// Store under ~/.spoq to avoid conflicts with Claude Code.
	return filepath.Join(home, ".spoq", "config.json"), nil
}

// LoadBackendConfig reads the backend config from path (or the default
// path when empty), then layers SPOQ_* environment overrides on top —
// the same precedence shape LoadClaudeSettings uses for its user/
// project/local sources, with the environment standing in as the
// highest-precedence source.
func LoadBackendConfig(path string) (*BackendConfig, error) {
	if path == "" {
		var err error
		path, err = BackendConfigPath()
		if err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBackendConfigMissing
		}
		return nil, fmt.Errorf("read backend config: %w", err)
	}

	var cfg BackendConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse backend config: %w", err)
	}

	applyBackendEnvOverrides(&cfg)

	if cfg.StreamBaseURL == "" || cfg.APIKey == "" {
		return nil, ErrBackendConfigInvalid
	}

	if cfg.DownloadBaseURL == "" {
		cfg.DownloadBaseURL = cfg.StreamBaseURL
	}

	return &cfg, nil
}

// applyBackendEnvOverrides layers SPOQ_* environment variables over
// cfg.
func applyBackendEnvOverrides(cfg *BackendConfig) {
	if v := os.Getenv("SPOQ_STREAM_BASE_URL"); v != "" {
		cfg.StreamBaseURL = v
	}
	if v := os.Getenv("SPOQ_DOWNLOAD_BASE_URL"); v != "" {
		cfg.DownloadBaseURL = v
	}
	if v := os.Getenv("SPOQ_API_KEY"); v != "" {
		cfg.APIKey = v
	}
}
