package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Note store backends.
const (
	NotesBackendMemory = "memory"
	NotesBackendSQLite = "sqlite"
	NotesBackendRedis  = "redis"
)

// LogEnv configures logging for the example binaries.
type LogEnv struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// WeatherEnv configures the weather server.
type WeatherEnv struct {
	LogEnv

	APIKey      string `env:"OPENWEATHER_API_KEY,required,notEmpty"`
	BaseURL     string `env:"OPENWEATHER_BASE_URL" envDefault:"https://api.openweathermap.org/data/2.5"`
	DefaultCity string `env:"WEATHER_DEFAULT_CITY" envDefault:"San Francisco"`
}

// NotesEnv configures the notes server.
type NotesEnv struct {
	LogEnv

	Backend     string `env:"NOTES_BACKEND" envDefault:"memory"`
	SQLitePath  string `env:"NOTES_SQLITE_PATH" envDefault:"notes.db"`
	RedisAddr   string `env:"NOTES_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix string `env:"NOTES_REDIS_PREFIX" envDefault:"notes:"`
}

// Validate checks the backend name.
func (n *NotesEnv) Validate() error {
	switch n.Backend {
	case NotesBackendMemory, NotesBackendSQLite, NotesBackendRedis:
		return nil
	default:
		return fmt.Errorf("unknown notes backend %q", n.Backend)
	}
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}

// ParseLevel converts a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level: %w", err)
	}

	return level, nil
}

// NewLogger returns a text logger writing to w at the configured level.
// Servers must pass os.Stderr since stdout carries the protocol.
func (l LogEnv) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
