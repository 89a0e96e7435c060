// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	// DBPath is the span database file. Created on first use.
	DBPath string

	// ContractsDir is the root of the procedure contract tree, laid out
	// as <dir>/<procedure>/steps/<step>.md.
	ContractsDir string

	// BusyTimeoutMS is how long a contending process waits for the
	// database lock before giving up and failing open.
	BusyTimeoutMS int

	// LogLevel is the minimum slog level: debug, info, warn, or error.
	LogLevel string
}

// Load reads configuration from environment variables with defaults
// that work on a fresh machine.
func Load() (Config, error) {
	cfg := Config{
		DBPath:        envStr("WAYMARK_DB", defaultDBPath()),
		ContractsDir:  envStr("WAYMARK_CONTRACTS_DIR", "contracts"),
		BusyTimeoutMS: envInt("WAYMARK_BUSY_TIMEOUT_MS", 5000),
		LogLevel:      envStr("WAYMARK_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: WAYMARK_DB must not be empty")
	}
	if c.BusyTimeoutMS <= 0 {
		return fmt.Errorf("config: WAYMARK_BUSY_TIMEOUT_MS must be positive")
	}
	return nil
}

// Level converts LogLevel to a slog.Level. Unknown names fall back to
// info rather than failing; logging config must never break the tool.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// defaultDBPath is ~/.waymark/waymark.db, falling back to a relative
// path when the home directory cannot be determined.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".waymark", "waymark.db")
	}
	return filepath.Join(home, ".waymark", "waymark.db")
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
