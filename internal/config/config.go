package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// Backend settings
	BackendURL      string        `toml:"backend_url"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	BreakerFailures uint32        `toml:"breaker_failures"`
	BreakerTimeout  time.Duration `toml:"breaker_timeout"`

	// Storage settings
	Storage     string `toml:"storage"`
	StoragePath string `toml:"storage_path"`
	Redis       Redis  `toml:"redis"`

	// Output settings
	ExportDir string `toml:"export_dir"`
	LogPath   string `toml:"log_path"`

	// Feature flags
	Verbose bool `toml:"verbose"`
}

// Redis holds settings for the redis storage backend
type Redis struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		BackendURL:      "http://127.0.0.1:8000",
		RequestTimeout:  120 * time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  30 * time.Second,

		Storage:     StorageFile,
		StoragePath: expandHome("~/.summarai/state.json"),
		Redis: Redis{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "summarai:",
		},

		ExportDir: ".",
		LogPath:   expandHome("~/.summarai/summarai.log"),
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	cfg.StoragePath = expandHome(cfg.StoragePath)
	cfg.LogPath = expandHome(cfg.LogPath)
	cfg.ExportDir = expandHome(cfg.ExportDir)

	overrideByEnv(cfg)
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend URL cannot be empty")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend URL %q is not an absolute URL", c.BackendURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.BreakerFailures < 1 {
		return fmt.Errorf("breaker failures must be at least 1")
	}
	switch c.Storage {
	case StorageMemory:
	case StorageFile, StorageSQLite:
		if c.StoragePath == "" {
			return fmt.Errorf("storage path cannot be empty for %s storage", c.Storage)
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	return nil
}

func overrideByEnv(cfg *Config) {
	if v := GetEnv("SUMMARAI_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := GetEnv("SUMMARAI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := GetEnv("SUMMARAI_STORAGE"); v != "" {
		cfg.Storage = v
	}
	if v := GetEnv("SUMMARAI_STORAGE_PATH"); v != "" {
		cfg.StoragePath = expandHome(v)
	}
	if v := GetEnv("SUMMARAI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := GetEnv("SUMMARAI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := GetEnv("SUMMARAI_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := GetEnv("SUMMARAI_EXPORT_DIR"); v != "" {
		cfg.ExportDir = expandHome(v)
	}
	if v := GetEnv("SUMMARAI_LOG"); v != "" {
		cfg.LogPath = expandHome(v)
	}
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir := getHomeDir()
		return homeDir + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home := GetEnv("HOME"); home != "" {
		return home
	}
	// Fallback for Windows
	if home := GetEnv("USERPROFILE"); home != "" {
		return home
	}
	return "."
}

// GetEnv is a wrapper around os.Getenv for easier testing
var GetEnv = func(key string) string {
	// Will be replaced with os.Getenv in main
	return ""
}
