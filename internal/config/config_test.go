package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spoq-dev/spoq/internal/testutil"
)

func TestLoadClaudeSettingsPrecedence(t *testing.T) {
	// Arrange a temporary HOME and project tree with layered settings.
	tempDir := t.TempDir()
	homeDir := filepath.Join(tempDir, "home")
	testutil.RequireNoError(t, os.MkdirAll(filepath.Join(homeDir, ".claude"), 0o755), "create home dir")
	userSettings := `{"model":"user"}`
	testutil.RequireNoError(t, os.WriteFile(filepath.Join(homeDir, ".claude", "settings.json"), []byte(userSettings), 0o600), "write user settings")

	// Create a repo root with project settings.
	repoDir := filepath.Join(tempDir, "repo")
	testutil.RequireNoError(t, os.MkdirAll(filepath.Join(repoDir, ".git"), 0o755), "create repo dir")
	testutil.RequireNoError(t, os.MkdirAll(filepath.Join(repoDir, ".claude"), 0o755), "create project settings dir")
	projectSettings := `{"model":"project"}`
	testutil.RequireNoError(t, os.WriteFile(filepath.Join(repoDir, ".claude", "settings.json"), []byte(projectSettings), 0o600), "write project settings")

	// Add local settings in a subdirectory to override project settings.
	localDir := filepath.Join(repoDir, "sub")
	if err := os.MkdirAll(filepath.Join(localDir, ".claude"), 0o755); err != nil {
		t.Fatalf("create local dir: %v", err)
	}
	localSettings := `{"model":"local"}`
	if err := os.WriteFile(filepath.Join(localDir, ".claude", "settings.json"), []byte(localSettings), 0o600); err != nil {
		t.Fatalf("write local settings: %v", err)
	}

	// Override HOME so the loader reads our temp user settings.
	t.Setenv("HOME", homeDir)

	// Act.
	settings, err := LoadClaudeSettings(localDir, []string{"user", "project", "local"}, "")
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	// Assert.
	if settings.Model != "local" {
		t.Fatalf("expected local model, got %s", settings.Model)
	}
}

func TestLoadBackendConfigDefaultsDownloadURLAndAppliesEnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.json")
	body := `{"stream_base_url":"https://api.example.com","api_key":"file-key"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write backend config: %v", err)
	}

	t.Setenv("SPOQ_API_KEY", "env-key")

	cfg, err := LoadBackendConfig(path)
	if err != nil {
		t.Fatalf("load backend config: %v", err)
	}
	if cfg.DownloadBaseURL != cfg.StreamBaseURL {
		t.Fatalf("expected download base URL to default to stream base URL, got %s", cfg.DownloadBaseURL)
	}
	if cfg.APIKey != "env-key" {
		t.Fatalf("expected env override to win, got %s", cfg.APIKey)
	}
}

func TestLoadBackendConfigMissingFileReturnsSentinel(t *testing.T) {
	tempDir := t.TempDir()
	_, err := LoadBackendConfig(filepath.Join(tempDir, "absent.json"))
	if !errors.Is(err, ErrBackendConfigMissing) {
		t.Fatalf("expected ErrBackendConfigMissing, got %v", err)
	}
}
