// Package config provides configuration loading and structs for the shelf server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mode selects development behaviour (live reload, debug logging) or production.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Environment variables that override the config file.
const (
	EnvMode       = "SHELF_MODE"
	EnvContentDir = "SHELF_CONTENT_DIR"
	EnvPort       = "SHELF_PORT"
)

// Config holds all configuration for the application.
type Config struct {
	Mode        Mode              `yaml:"mode"`
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Content     ContentConfig     `yaml:"content"`
	Public      PublicConfig      `yaml:"public"`
	Storage     StorageConfig     `yaml:"storage"`
	Manifest    ManifestConfig    `yaml:"manifest"`
	Cache       CacheConfig       `yaml:"cache"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ContentConfig locates the markdown content tree.
type ContentConfig struct {
	Root string `yaml:"root"`
	// LibrariesDir is relative to Root.
	LibrariesDir string `yaml:"libraries_dir"`
}

// LibrariesPath is the absolute libraries directory.
func (c ContentConfig) LibrariesPath() string {
	if filepath.IsAbs(c.LibrariesDir) {
		return c.LibrariesDir
	}
	return filepath.Join(c.Root, c.LibrariesDir)
}

// PublicConfig holds the published image tree.
type PublicConfig struct {
	Dir         string `yaml:"dir"`
	ImagePrefix string `yaml:"image_prefix"`
	Placeholder string `yaml:"placeholder"`
}

// StorageConfig holds the primary content index location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ManifestConfig holds where the route manifest is written.
type ManifestConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig tunes the library index cache.
type CacheConfig struct {
	Debounce   time.Duration `yaml:"debounce"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// MaintenanceConfig tunes the image resize job.
type MaintenanceConfig struct {
	MaxDimension int `yaml:"max_dimension"`
	Concurrency  int `yaml:"concurrency"`
}

// Development reports whether live reload should run.
func (c *Config) Development() bool { return c.Mode == ModeDevelopment }

// Load reads and parses the config file at path, applies environment
// overrides (a .env file in the working directory is loaded first), expands
// paths, and applies defaults. An empty path uses defaults only.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	// Variables already set in the environment win over .env values.
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	cfg.Content.Root = expandPath(cfg.Content.Root, configDir)
	cfg.Public.Dir = expandPath(cfg.Public.Dir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Manifest.Path = expandPath(cfg.Manifest.Path, configDir)

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvMode)); v != "" {
		cfg.Mode = Mode(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv(EnvContentDir)); v != "" {
		cfg.Content.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a valid integer: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("invalid mode %q: want %s or %s", cfg.Mode, ModeDevelopment, ModeProduction)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	return nil
}

// expandPath converts a path to absolute. Relative paths ("./x" or "x") are
// relative to configDir; "~/x" is relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	abs, err := filepath.Abs(filepath.Join(configDir, path))
	if err != nil {
		return filepath.Join(configDir, path)
	}
	return abs
}
