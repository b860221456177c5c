package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Env holds the settings read from the process environment. They apply
// before the config file is located, so they cannot live in it.
type Env struct {
	// ConfigPath overrides config file discovery.
	ConfigPath string `env:"ECHOMATE_CONFIG"`

	// DataDir overrides the persistent data directory.
	DataDir string `env:"ECHOMATE_DATA_DIR"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"ECHOMATE_LOG_LEVEL" envDefault:"info"`

	// LogFormat is "text" or "json".
	LogFormat string `env:"ECHOMATE_LOG_FORMAT" envDefault:"text"`
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("config: environment: %w", err)
	}
	if e.LogFormat != "text" && e.LogFormat != "json" {
		return Env{}, fmt.Errorf("config: ECHOMATE_LOG_FORMAT must be text or json, got %q", e.LogFormat)
	}
	return e, nil
}

// Level parses LogLevel. Unknown values fall back to info.
func (e Env) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
