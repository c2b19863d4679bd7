package config

import (
	"log/slog"
	"strings"
)

type Config struct {
	Beatframe BeatframeConfig
	Pushover  PushoverConfig
}

type BeatframeConfig struct {
	ListenAddr      string `env:"LISTEN_ADDR"`
	LogLevel        string `env:"LOG_LEVEL"`
	AllowedOrigins  string `env:"ALLOWED_ORIGINS"`
	TokenJobEnabled bool   `env:"TOKEN_JOB_ENABLED"`
}

type PushoverConfig struct {
	Recipient string `env:"PUSHOVER_RECIPIENT"`
	Token     string `env:"PUSHOVER_TOKEN"`
}

func (c *Config) GetLogLevel() slog.Leveler {
	logLevel := strings.ToLower(c.Beatframe.LogLevel)
	if logLevel == "error" {
		return slog.LevelError
	}
	if logLevel == "warning" {
		return slog.LevelWarn
	}
	if logLevel == "info" {
		return slog.LevelInfo
	}
	if logLevel == "debug" {
		return slog.LevelDebug
	}
	// default to info if unknown
	slog.With(slog.String("log_level", logLevel)).Info("Received invalid log level. Defaulting to INFO.")
	return slog.LevelInfo
}

func (c *Config) Origins() []string {
	if c.Beatframe.AllowedOrigins == "" {
		return []string{"http://localhost:8080", "http://localhost:5173"}
	}
	var origins []string
	for _, origin := range strings.Split(c.Beatframe.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
