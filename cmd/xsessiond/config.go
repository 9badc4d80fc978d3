package main

import (
	"time"

	"github.com/bluescreen10/xsession"
	"github.com/bluescreen10/xsession/config"
)

// Config holds the demo server settings. Every field can be set from the
// environment, a .env file or a TOML file passed with -config.
type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080" toml:"addr"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" toml:"shutdown_timeout"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" toml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" toml:"log_format"`

	// Store selects the backend: memory, redis, sqlite, gorm, mysql,
	// postgres or mongo.
	Store           string        `env:"STORE" envDefault:"memory" toml:"store"`
	StoreDSN        string        `env:"STORE_DSN" toml:"store_dsn"`
	StorePrefix     string        `env:"STORE_PREFIX" envDefault:"xsession:" toml:"store_prefix"`
	CleanupInterval time.Duration `env:"STORE_CLEANUP_INTERVAL" envDefault:"5m" toml:"cleanup_interval"`

	CookieName   string `env:"COOKIE_NAME" envDefault:"xsession" toml:"cookie_name"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false" toml:"cookie_secure"`

	AdminUser string `env:"ADMIN_USER" envDefault:"admin" toml:"admin_user"`
	// AdminPasswordHash is a bcrypt hash. Empty means the password "admin".
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH" toml:"admin_password_hash"`

	Session xsession.Config `toml:"session"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	var err error
	if path == "" {
		err = config.Load(&cfg)
	} else {
		err = config.LoadFile(path, &cfg)
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
