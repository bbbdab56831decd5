package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ConfigYAML(t *testing.T) {
	path := filepath.Join("..", "..", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Database.Host)
	assert.NotZero(t, cfg.RabbitMQ.Port)
	assert.Equal(t, 2.5, cfg.Pricing.TaxAPercent)
	assert.Equal(t, 2.5, cfg.Pricing.TaxBPercent)
	assert.Equal(t, 15*time.Second, cfg.Kitchen.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.External.Timeout)
}

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pricing:\n  tax_a_percent: 2.5\n"), 0o600))
	t.Setenv("POS_PRICING_TAX_A_PERCENT", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9.0, cfg.Pricing.TaxAPercent)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d"}}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", cfg.DatabaseURL())
}
