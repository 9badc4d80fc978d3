package xsession

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings a deployment usually tunes without code
// changes. Zero fields fall back to the defaults.
type Config struct {
	Name                string        `env:"SESSION_NAME" envDefault:"USR" toml:"name"`
	ExpirationIncrement time.Duration `env:"SESSION_EXPIRATION_INCREMENT" envDefault:"20m" toml:"expiration_increment"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Name:                DefaultName,
		ExpirationIncrement: DefaultExpirationIncrement,
	}
}

// ConfigFromEnv reads Config from the process environment.
func ConfigFromEnv() (Config, error) {
	return env.ParseAs[Config]()
}

// Options turns cfg into container options.
func (cfg Config) Options() []Option {
	return []Option{
		WithName(cfg.Name),
		WithExpirationIncrement(cfg.ExpirationIncrement),
	}
}
