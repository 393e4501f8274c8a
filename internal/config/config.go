// Package config loads lockbox settings from defaults, an optional YAML file,
// LOCKBOX_* environment variables and command-line overrides.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Supported vault backends.
const (
	BackendBBolt    = "bbolt"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

const envPrefix = "LOCKBOX_"

// Config is the merged lockbox configuration.
type Config struct {
	Vault  Vault  `yaml:"vault" envPrefix:"VAULT_"`
	Server Server `yaml:"server" envPrefix:"SERVER_"`
	Log    Log    `yaml:"log" envPrefix:"LOG_"`

	// File is the YAML file the configuration was read from, if any.
	File string `yaml:"-" env:"CONFIG"`
}

// Vault selects the blob store and the session policy.
type Vault struct {
	ID      string `yaml:"id" env:"ID"`
	Backend string `yaml:"backend" env:"BACKEND"`
	// Path is the database or directory path for bbolt, sqlite and file.
	Path string `yaml:"path" env:"PATH"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn" env:"DSN"`

	AutoLock         time.Duration `yaml:"auto_lock" env:"AUTO_LOCK"`
	AutoLockDisabled bool          `yaml:"auto_lock_disabled" env:"AUTO_LOCK_DISABLED"`
	KDFIterations    int           `yaml:"kdf_iterations" env:"KDF_ITERATIONS"`
}

// Server configures the local REST API.
type Server struct {
	Address      string        `yaml:"address" env:"ADDRESS"`
	RequestRate  float64       `yaml:"request_rate" env:"REQUEST_RATE"`
	RequestBurst int           `yaml:"request_burst" env:"REQUEST_BURST"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
}

type Log struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Vault: Vault{
			ID:            "default",
			Backend:       BackendBBolt,
			Path:          defaultPath(),
			AutoLock:      10 * time.Minute,
			KDFIterations: 150000,
		},
		Server: Server{
			Address:      "127.0.0.1:7420",
			RequestRate:  10,
			RequestBurst: 20,
			ReadTimeout:  15 * time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// AutoLockAfter returns the effective idle timeout; zero means disabled.
func (c *Config) AutoLockAfter() time.Duration {
	if c.Vault.AutoLockDisabled {
		return 0
	}
	return c.Vault.AutoLock
}

func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lockbox.db"
	}
	return filepath.Join(home, ".lockbox", "vault.db")
}
