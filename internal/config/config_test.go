// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "scratch.db", cfg.Cache.Path)
	assert.Equal(t, "2500", cfg.PriceFeed.DefaultPriceUSD)
}

func TestLoadConfigFromFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server_port: "9090"
db:
  host: db.internal
  port: 6432
price_feed:
  url: https://feed.example/eth-usd
  poll_interval: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_HOST", "db.override")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "db.override", cfg.DB.Host, "environment overrides the file")
	assert.Equal(t, 6432, cfg.DB.Port)
	assert.Equal(t, "https://feed.example/eth-usd", cfg.PriceFeed.URL)
	assert.Equal(t, 10*time.Second, cfg.PriceFeed.Interval())
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")

	_, err := LoadConfig()
	assert.Error(t, err)
}
