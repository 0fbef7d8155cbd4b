package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wildberries_parser", cfg.Database.DBName)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, int32(1), cfg.Database.MaxConns)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.HTTP.RetryDelay)
	assert.Equal(t, time.Minute, cfg.HTTP.MaxDelay)
	assert.Len(t, cfg.HTTP.UserAgents, 4)
	assert.Equal(t, []string{"ИНН", "ОГРН"}, cfg.SellerInfo.Markers)
	assert.Len(t, cfg.SellerInfo.Categories, 7)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "1")
	t.Setenv("PAGE_DELAY", "500ms")
	t.Setenv("SELLER_INFO_MARKERS", " ИНН , ,ОГРНИП")
	t.Setenv("WB_CARD_URL", "http://127.0.0.1:9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.HTTP.MaxRetries)
	assert.Equal(t, time.Second, cfg.HTTP.RetryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.PageDelay)
	assert.Equal(t, []string{"ИНН", "ОГРНИП"}, cfg.SellerInfo.Markers)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Endpoints.CardURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero retries", func(c *Config) { c.HTTP.MaxRetries = 0 }, "MAX_RETRIES"},
		{"delay above ceiling", func(c *Config) { c.HTTP.RetryDelay = 2 * time.Minute }, "RETRY_DELAY cannot"},
		{"no markers", func(c *Config) { c.SellerInfo.Markers = nil }, "SELLER_INFO_MARKERS"},
		{"no connections", func(c *Config) { c.Database.MaxConns = 0 }, "DB_MAX_CONNS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPoolConfig(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5433, DBName: "db", SSLMode: "require", MaxConns: 1}
	pc := d.PoolConfig()
	assert.Equal(t, "db", pc.Database)
	assert.Equal(t, "require", pc.SSLMode)
	assert.Equal(t, int32(1), pc.MaxConns)
	assert.Equal(t, 5433, pc.Port)
}
