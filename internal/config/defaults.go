package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeProduction
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Content.Root == "" {
		cfg.Content.Root = "./content"
	}
	if cfg.Content.LibrariesDir == "" {
		cfg.Content.LibrariesDir = "libraries"
	}
	if cfg.Public.Dir == "" {
		cfg.Public.Dir = "./public/images/libraries"
	}
	if cfg.Public.ImagePrefix == "" {
		cfg.Public.ImagePrefix = "/images/libraries"
	}
	if cfg.Public.Placeholder == "" {
		cfg.Public.Placeholder = cfg.Public.ImagePrefix + "/placeholder-library.jpg"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/shelf.db"
	}
	if cfg.Manifest.Path == "" {
		cfg.Manifest.Path = "./public/library-manifest.json"
	}
	if cfg.Cache.Debounce == 0 {
		cfg.Cache.Debounce = 150 * time.Millisecond
	}
	if cfg.Cache.RetryDelay == 0 {
		cfg.Cache.RetryDelay = time.Second
	}
	if cfg.Maintenance.MaxDimension == 0 {
		cfg.Maintenance.MaxDimension = 800
	}
	if cfg.Maintenance.Concurrency == 0 {
		cfg.Maintenance.Concurrency = 4
	}
}
