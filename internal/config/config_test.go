package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsAndPortals(t *testing.T) {
	path := writeConfig(t, `{
		"environment": "prod",
		"environments": {
			"prod": [
				{"name": "app-1", "baseUrl": "https://app-1.example.com/hac/", "credentials": {"username": "admin", "password": "secret"}},
				{"name": "app-2", "baseUrl": "https://app-2.example.com/hac", "insecureSkipVerify": true}
			]
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DownloadsDir != "downloads" {
		t.Errorf("expected default downloads dir, got %q", cfg.DownloadsDir)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("expected default logging config, got %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Endpoints.Login != "/j_spring_security_check" {
		t.Errorf("expected default login endpoint, got %q", cfg.Endpoints.Login)
	}
	if cfg.Endpoints.Data != "/monitoring/logs/data" {
		t.Errorf("expected default data endpoint, got %q", cfg.Endpoints.Data)
	}

	portals := cfg.Portals()
	if len(portals) != 2 {
		t.Fatalf("expected 2 portals, got %d", len(portals))
	}
	if portals[0].Credentials.Username != "admin" {
		t.Errorf("expected inline credentials, got %q", portals[0].Credentials.Username)
	}
	if !portals[1].InsecureSkipVerify {
		t.Error("expected insecureSkipVerify for app-2")
	}
}

func TestLoad_EndpointOverride(t *testing.T) {
	path := writeConfig(t, `{
		"environment": "prod",
		"environments": {"prod": [{"name": "a", "baseUrl": "https://a"}]},
		"endpoints": {"data": "/custom/data"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Endpoints.Data != "/custom/data" {
		t.Errorf("expected overridden data endpoint, got %q", cfg.Endpoints.Data)
	}
	// Untouched endpoints keep their defaults.
	if cfg.Endpoints.Zip != "/monitoring/logs/zip" {
		t.Errorf("expected default zip endpoint, got %q", cfg.Endpoints.Zip)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"environment": "prod",
		"environments": {
			"prod": [{"name": "a", "baseUrl": "https://a"}],
			"stage": [{"name": "s", "baseUrl": "https://s"}]
		}
	}`)

	t.Setenv("HAC_ENVIRONMENT", "stage")
	t.Setenv("HAC_DOWNLOADS_DIR", "/tmp/hac")
	t.Setenv("HAC_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Environment != "stage" {
		t.Errorf("expected env override, got %q", cfg.Environment)
	}
	if cfg.DownloadsDir != "/tmp/hac" {
		t.Errorf("expected downloads override, got %q", cfg.DownloadsDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level override, got %q", cfg.LogLevel)
	}
	if len(cfg.Portals()) != 1 || cfg.Portals()[0].Name != "s" {
		t.Errorf("expected stage portals, got %v", cfg.Portals())
	}
}

func TestLoad_CredentialEnvOverride(t *testing.T) {
	path := writeConfig(t, `{
		"environment": "prod",
		"environments": {
			"prod": [{"name": "prod-app-1", "baseUrl": "https://a", "credentials": {"username": "file-user", "password": "file-pass"}}]
		}
	}`)

	t.Setenv("PROD_APP_1_USERNAME", "env-user")
	t.Setenv("PROD_APP_1_PASSWORD", "env-pass")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creds := cfg.Portals()[0].Credentials
	if creds.Username != "env-user" || creds.Password != "env-pass" {
		t.Errorf("expected env credentials, got %s/%s", creds.Username, creds.Password)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no environment selected", `{"environments": {"prod": []}}`},
		{"unknown environment", `{"environment": "qa", "environments": {"prod": []}}`},
		{"invalid json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"prod-app-1", "PROD_APP_1"},
		{"simple", "SIMPLE"},
		{"with.dots", "WITH_DOTS"},
		{"Already_OK", "ALREADY_OK"},
	}
	for _, tt := range tests {
		if got := EnvKey(tt.in); got != tt.want {
			t.Errorf("EnvKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
