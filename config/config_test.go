package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluescreen10/xsession"
	"github.com/bluescreen10/xsession/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverConfig struct {
	Addr    string          `env:"XS_TEST_ADDR" envDefault:":8080" toml:"addr"`
	Backend string          `env:"XS_TEST_BACKEND" envDefault:"memory" toml:"backend"`
	Session xsession.Config `toml:"session"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, xsession.DefaultConfig(), cfg.Session)
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XS_TEST_ADDR", ":9090")
	t.Setenv("SESSION_NAME", "APP")
	t.Setenv("SESSION_EXPIRATION_INCREMENT", "90s")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "APP", cfg.Session.Name)
	assert.Equal(t, 90*time.Second, cfg.Session.ExpirationIncrement)
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SESSION_EXPIRATION_INCREMENT", "soon")

	var cfg serverConfig
	assert.Error(t, config.Load(&cfg))
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "XS_TEST_BACKEND=redis\nXS_TEST_ADDR=:7070\n")
	t.Cleanup(func() {
		os.Unsetenv("XS_TEST_BACKEND")
		os.Unsetenv("XS_TEST_ADDR")
	})

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, ":7070", cfg.Addr)
}

func TestLoadDotenvDoesNotOverrideProcess(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "XS_TEST_BACKEND=redis\n")
	t.Setenv("XS_TEST_BACKEND", "sqlite")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "sqlite", cfg.Backend)
}

func TestLoadDotenvMissingFile(t *testing.T) {
	assert.NoError(t, config.LoadDotenv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "xsession.toml", `
backend = "sqlite"

[session]
name = "WEB"
expiration_increment = "45m"
`)

	var cfg serverConfig
	require.NoError(t, config.LoadFile(path, &cfg))

	assert.Equal(t, ":8080", cfg.Addr, "unset fields keep their defaults")
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, "WEB", cfg.Session.Name)
	assert.Equal(t, 45*time.Minute, cfg.Session.ExpirationIncrement)
}

func TestLoadFileEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "xsession.toml", `
backend = "sqlite"

[session]
name = "WEB"
`)
	t.Setenv("XS_TEST_BACKEND", "mongo")

	var cfg serverConfig
	require.NoError(t, config.LoadFile(path, &cfg))

	assert.Equal(t, "mongo", cfg.Backend)
	assert.Equal(t, "WEB", cfg.Session.Name)
	assert.Equal(t, xsession.DefaultExpirationIncrement, cfg.Session.ExpirationIncrement)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	var cfg serverConfig
	assert.Error(t, config.LoadFile(filepath.Join(dir, "missing.toml"), &cfg))

	path := writeFile(t, dir, "bad.toml", "backend = \n")
	assert.Error(t, config.LoadFile(path, &cfg))
}
