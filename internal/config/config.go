// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	UnlockStartup   bool
	DefaultLanguage string
	KeyComment      string
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional:
// MYKEYPANEL_LISTEN_ADDR (127.0.0.1:8080), MYKEYPANEL_DB_PATH (mykeypanel.db),
// MYKEYPANEL_UNLOCK_STARTUP (true), MYKEYPANEL_DEFAULT_LANGUAGE (en),
// MYKEYPANEL_KEY_COMMENT (empty), MYKEYPANEL_LOG_LEVEL (info),
// MYKEYPANEL_SHUTDOWN_TIMEOUT (10s).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("MYKEYPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "mykeypanel.db"
	if v, ok := os.LookupEnv("MYKEYPANEL_DB_PATH"); ok {
		dbPath = v
	}
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("MYKEYPANEL_DB_PATH must not be empty")
	}

	unlockStartup := true
	if v, ok := os.LookupEnv("MYKEYPANEL_UNLOCK_STARTUP"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MYKEYPANEL_UNLOCK_STARTUP has invalid boolean %q: %w", v, err)
		}
		unlockStartup = parsed
	}

	defaultLanguage := "en"
	if v, ok := os.LookupEnv("MYKEYPANEL_DEFAULT_LANGUAGE"); ok && v != "" {
		defaultLanguage = v
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("MYKEYPANEL_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("MYKEYPANEL_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	shutdownTimeout := 10 * time.Second
	if v, ok := os.LookupEnv("MYKEYPANEL_SHUTDOWN_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("MYKEYPANEL_SHUTDOWN_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("MYKEYPANEL_SHUTDOWN_TIMEOUT must be positive, got %s", parsed)
		}
		shutdownTimeout = parsed
	}

	return &Config{
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		UnlockStartup:   unlockStartup,
		DefaultLanguage: defaultLanguage,
		KeyComment:      os.Getenv("MYKEYPANEL_KEY_COMMENT"),
		LogLevel:        logLevel,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}
