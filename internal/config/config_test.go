package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CRDB_DSN", "postgresql://root@localhost:26257/treks")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgresql://root@localhost:26257/treks", cfg.CRDBDSN)
	assert.Equal(t, "treks", cfg.MongoDatabase)
	assert.Equal(t, "trek.events", cfg.RabbitExchange)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 10, cfg.RateLimitUser)
	assert.Equal(t, time.Minute, cfg.StatusInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CATALOG_CACHE_TTL", "30s")
	t.Setenv("RATE_LIMIT_IP", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.CatalogCacheTTL)
	assert.Equal(t, 5, cfg.RateLimitIP)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("IDEMPOTENCY_TTL", "forever")

	_, err := Load()
	assert.Error(t, err)
}
