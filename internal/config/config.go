// Package config loads runtime settings from RPSLS_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the CLI and status server read from the environment
type Config struct {
	// DataDir holds the sqlite database and the device secret when their
	// paths are not set explicitly
	DataDir string `env:"RPSLS_DATA_DIR"`

	Storage        string        `env:"RPSLS_STORAGE"         envDefault:"sqlite"`
	SQLitePath     string        `env:"RPSLS_SQLITE_PATH"`
	RedisURL       string        `env:"RPSLS_REDIS_URL"       envDefault:"redis://localhost:6379"`
	RedisNamespace string        `env:"RPSLS_REDIS_NAMESPACE" envDefault:"rpsls"`
	ResultTTL      time.Duration `env:"RPSLS_RESULT_TTL"`

	Ledger         string        `env:"RPSLS_LEDGER"          envDefault:"devchain"`
	Account        string        `env:"RPSLS_ACCOUNT"`
	RPCURL         string        `env:"RPSLS_RPC_URL"         envDefault:"http://127.0.0.1:8545"`
	PrivateKey     string        `env:"RPSLS_PRIVATE_KEY"`
	ConfirmTimeout time.Duration `env:"RPSLS_CONFIRM_TIMEOUT" envDefault:"2m"`

	Authenticator      string        `env:"RPSLS_AUTHENTICATOR"        envDefault:"prf"`
	DeviceSecretPath   string        `env:"RPSLS_DEVICE_SECRET"`
	KDFIterations      int           `env:"RPSLS_KDF_ITERATIONS"       envDefault:"100000"`
	PinAttemptInterval time.Duration `env:"RPSLS_PIN_ATTEMPT_INTERVAL" envDefault:"2s"`
	PinAttemptBurst    int           `env:"RPSLS_PIN_ATTEMPT_BURST"    envDefault:"3"`

	HTTPHost string `env:"RPSLS_HTTP_HOST" envDefault:"127.0.0.1"`
	HTTPPort int    `env:"RPSLS_HTTP_PORT" envDefault:"8080"`
	// APIToken, when set, guards the status API game routes
	APIToken string `env:"RPSLS_API_TOKEN"`
	LogLevel string `env:"RPSLS_LOG_LEVEL" envDefault:"warn"`
}

// Load parses the environment and fills in derived paths
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, "rpsls.db")
	}
	if c.DeviceSecretPath == "" {
		c.DeviceSecretPath = filepath.Join(c.DataDir, "device.key")
	}
}

// SetDataDir moves DataDir and re-derives the paths that were not set
// explicitly in the environment
func (c *Config) SetDataDir(dir string) {
	c.DataDir = dir
	if _, ok := os.LookupEnv("RPSLS_SQLITE_PATH"); !ok {
		c.SQLitePath = ""
	}
	if _, ok := os.LookupEnv("RPSLS_DEVICE_SECRET"); !ok {
		c.DeviceSecretPath = ""
	}
	c.applyDefaults()
}

// Level maps LogLevel onto slog, defaulting to warn
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// EnsureDataDir creates DataDir with owner-only permissions
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rpsls"
	}
	return filepath.Join(home, ".rpsls")
}
