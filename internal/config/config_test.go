package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Scraper.Workers)
	assert.Equal(t, 5*time.Second, cfg.Scraper.RateLimitMin)
	assert.Equal(t, time.Hour, cfg.Scraper.CacheTTL)
	assert.True(t, cfg.Scraper.BlockImages)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1000, cfg.Browser.ContentFloor)
	assert.Empty(t, cfg.Proxy.URLs)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCRAPER_WORKERS", "4")
	t.Setenv("SCRAPER_RATE_LIMIT_MIN", "1s")
	t.Setenv("SCRAPER_RATE_LIMIT_MAX", "3s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("PROXY_URLS", "http://proxy1:8080, http://proxy2:8080")
	t.Setenv("DB_NAME", "scraper_test")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Scraper.Workers)
	assert.Equal(t, time.Second, cfg.Scraper.RateLimitMin)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"http://proxy1:8080", "http://proxy2:8080"}, cfg.Proxy.URLs)
	assert.Equal(t, "scraper_test", cfg.Database.Name)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", "many")
	t.Setenv("BROWSER_HEADLESS", "yes please")
	t.Setenv("SCRAPER_CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Scraper.Workers)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, time.Hour, cfg.Scraper.CacheTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"bad port",
			func(c *Config) { c.Server.Port = 0 },
			"invalid server port",
		},
		{
			"missing db host",
			func(c *Config) { c.Database.Host = "" },
			"database host is required",
		},
		{
			"no workers",
			func(c *Config) { c.Scraper.Workers = 0 },
			"at least 1 scraper worker",
		},
		{
			"inverted rate limits",
			func(c *Config) {
				c.Scraper.RateLimitMin = 10 * time.Second
				c.Scraper.RateLimitMax = time.Second
			},
			"cannot be greater than",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
