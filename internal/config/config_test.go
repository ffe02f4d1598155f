package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server.yaml")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Error("Expected default config file to be written")
	}
	if cfg.Server.Port != 8070 {
		t.Errorf("Port = %d, want 8070", cfg.Server.Port)
	}
	if cfg.Processing.DefaultTimezone != "UTC" {
		t.Errorf("DefaultTimezone = %q, want UTC", cfg.Processing.DefaultTimezone)
	}
	if !filepath.IsAbs(cfg.Storage.UploadsDirectory) {
		t.Errorf("UploadsDirectory should be resolved to absolute, got %q", cfg.Storage.UploadsDirectory)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server.yaml")
	content := "" +
		"server:\n" +
		"  port: 9000\n" +
		"processing:\n" +
		"  defaultTimezone: America/New_York\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Processing.DefaultTimezone != "America/New_York" {
		t.Errorf("DefaultTimezone = %q", cfg.Processing.DefaultTimezone)
	}
	// Unspecified values keep their defaults
	if cfg.Storage.MaxUploadSize != "2G" {
		t.Errorf("MaxUploadSize = %q, want default 2G", cfg.Storage.MaxUploadSize)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(configPath, []byte("server: [not a map"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("EXTRACT_TIMEZONE", "Asia/Tokyo")

	configPath := filepath.Join(t.TempDir(), "server.yaml")
	if err := DefaultConfig().Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("Port = %d, want env override 8123", cfg.Server.Port)
	}
	if cfg.Processing.DefaultTimezone != "Asia/Tokyo" {
		t.Errorf("DefaultTimezone = %q, want env override", cfg.Processing.DefaultTimezone)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{
		cfg.Storage.DataDirectory,
		cfg.Storage.UploadsDirectory,
		cfg.Storage.TempDirectory,
		cfg.Storage.ResultsDirectory,
	} {
		if !strings.HasPrefix(d, dir) {
			t.Errorf("directory %q not under config root", d)
		}
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("directory %q not created: %v", d, err)
		}
	}
}

func TestGetServerAddr(t *testing.T) {
	cfg := DefaultConfig()
	if addr := cfg.GetServerAddr(); addr != "0.0.0.0:8070" {
		t.Errorf("GetServerAddr() = %q", addr)
	}
}
