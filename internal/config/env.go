package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every settings override variable.
const EnvPrefix = "BOUNTY_"

// ApplyEnv overlays BOUNTY_* environment variables onto cfg. Variables that
// are not set leave the current value untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// RunnerConfig holds the settings only the runner binary needs.
type RunnerConfig struct {
	ConfigPath string  `env:"BOUNTY_CONFIG"`
	DBPath     string  `env:"BOUNTY_DB_PATH" envDefault:"data/bountyhunter.db"`
	ReplayDir  string  `env:"BOUNTY_REPLAY_DIR"`
	APIPort    int     `env:"BOUNTY_API_PORT" envDefault:"8080"`
	AdminKey   string  `env:"BOUNTY_ADMIN_KEY"`
	Speed      float64 `env:"BOUNTY_SPEED" envDefault:"1"`
	Episodes   int     `env:"BOUNTY_EPISODES" envDefault:"0"`
	Players    int     `env:"BOUNTY_PLAYERS" envDefault:"4"`
	LogJSON    bool    `env:"BOUNTY_LOG_JSON" envDefault:"false"`
	LogLevel   string  `env:"BOUNTY_LOG_LEVEL" envDefault:"info"`
}

// ParseRunner reads the runner settings from the environment.
func ParseRunner() (RunnerConfig, error) {
	var rc RunnerConfig
	if err := env.Parse(&rc); err != nil {
		return rc, fmt.Errorf("parse env: %w", err)
	}
	return rc, nil
}
