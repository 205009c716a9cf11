package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SESSION_TTL", "")
	cfg := Load()
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "0 0 * * *", cfg.QRExpiryCron)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ROSTER_CACHE_TTL", "30s")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("RATE_LIMIT_PER_MIN", "abc")
	cfg := Load()
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 30*time.Second, cfg.RosterCacheTTL)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 300, cfg.RateLimitPerMin)
}

func TestValidate(t *testing.T) {
	cfg := App{StoreBackend: "sqlite", CacheBackend: "redis", QueueBackend: "redis"}
	assert.Error(t, cfg.Validate())

	cfg = App{StoreBackend: "memory", CacheBackend: "memcached", QueueBackend: "redis"}
	assert.Error(t, cfg.Validate())

	cfg = App{Env: "prod", StoreBackend: "postgres", CacheBackend: "redis", QueueBackend: "redis", SessionSecret: "dev-session-secret-change"}
	assert.Error(t, cfg.Validate())
}
