// Package config loads typed configuration from environment variables,
// .env files and TOML files using struct tags.
//
// Environment variables are parsed with caarlos0/env, so fields use `env`
// and `envDefault` tags. TOML files use `toml` tags.
//
//	type ServerConfig struct {
//		Addr    string           `env:"ADDR" envDefault:":8080" toml:"addr"`
//		Session xsession.Config  `toml:"session"`
//	}
//
//	var cfg ServerConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Precedence, highest first: process environment, .env file, TOML file,
// envDefault tags.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultDotenv is the file Load reads before parsing the environment.
const DefaultDotenv = ".env"

// overrides-only parsing looks up a tag nothing carries, so no field
// falls back to its default
const noDefaultTag = "envDefaultDisabled"

// Load reads DefaultDotenv if present, then parses the environment into
// cfg. Variables already set in the process win over the .env file.
func Load[T any](cfg *T) error {
	if err := LoadDotenv(DefaultDotenv); err != nil {
		return err
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// MustLoad is like Load but panics on failure.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// LoadFile fills cfg from its envDefault tags, then the TOML file at path,
// then DefaultDotenv and the environment. Only variables that are set
// override file values.
func LoadFile[T any](path string, cfg *T) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}}); err != nil {
		return fmt.Errorf("config: defaults: %w", err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := LoadDotenv(DefaultDotenv); err != nil {
		return err
	}
	if err := env.ParseWithOptions(cfg, env.Options{DefaultValueTagName: noDefaultTag}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// LoadDotenv loads the given files into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadDotenv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	return nil
}
