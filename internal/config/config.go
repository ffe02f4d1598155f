// Package config provides YAML-based configuration management for the log
// extraction server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Security   SecurityConfig   `yaml:"security"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCors"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// StorageConfig contains archive storage settings.
type StorageConfig struct {
	DataDirectory    string `yaml:"dataDirectory"`
	UploadsDirectory string `yaml:"uploadsDirectory"`
	TempDirectory    string `yaml:"tempDirectory"`
	ResultsDirectory string `yaml:"resultsDirectory"`
	MaxUploadSize    string `yaml:"maxUploadSize"`
	EnableCaching    bool   `yaml:"enableCaching"`
}

// ProcessingConfig contains extraction settings.
type ProcessingConfig struct {
	MaxConcurrentJobs      int    `yaml:"maxConcurrentJobs"`
	JobTimeoutMinutes      int    `yaml:"jobTimeoutMinutes"`
	CleanupIntervalMinutes int    `yaml:"cleanupIntervalMinutes"`
	EnablePrefilter        bool   `yaml:"enablePrefilter"`
	PrefilterBufferHours   int    `yaml:"prefilterBufferHours"`
	DefaultTimezone        string `yaml:"defaultTimezone"`
	EnableCompression      bool   `yaml:"enableCompression"`
	CompressionLevel       int    `yaml:"compressionLevel"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	AllowArchiveDeletion bool   `yaml:"allowArchiveDeletion"`
	RequireAuth          bool   `yaml:"requireAuthentication"`
	AuthToken            string `yaml:"authToken"`
	AllowedFileTypes     string `yaml:"allowedFileTypes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8070,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "2G",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
			ResultsDirectory: "./data/results",
			MaxUploadSize:    "2G",
			EnableCaching:    true,
		},
		Processing: ProcessingConfig{
			MaxConcurrentJobs:      3,
			JobTimeoutMinutes:      30,
			CleanupIntervalMinutes: 5,
			EnablePrefilter:        true,
			PrefilterBufferHours:   1,
			DefaultTimezone:        "UTC",
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Security: SecurityConfig{
			AllowArchiveDeletion: true,
			RequireAuth:          false,
			AuthToken:            "",
			AllowedFileTypes:     ".tar,.tar.gz,.tgz,.tar.bz2,.tbz2,.zip,.gz,.bz2,.log,.txt",
		},
	}
}

// LoadConfig loads configuration from a YAML file, writing the defaults on
// first run.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration as YAML.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Log extraction server configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if tempDir := os.Getenv("EXTRACT_TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}
	if tz := os.Getenv("EXTRACT_TIMEZONE"); tz != "" {
		c.Processing.DefaultTimezone = tz
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if !filepath.IsAbs(c.Storage.TempDirectory) {
		c.Storage.TempDirectory = filepath.Join(configDir, c.Storage.TempDirectory)
	}
	if !filepath.IsAbs(c.Storage.ResultsDirectory) {
		c.Storage.ResultsDirectory = filepath.Join(configDir, c.Storage.ResultsDirectory)
	}
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
		c.Storage.ResultsDirectory,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
