package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secure-user-api/internal/adapter/ratelimit"
	"secure-user-api/internal/config"
)

func rateConfig(rule, backend string) *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true, Default: rule, Backend: backend},
	}
}

func TestNewRateStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, err := NewRateStore(rateConfig("60/minute", config.BackendMemory), nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.IsType(t, &ratelimit.MemoryStore{}, store)
		_ = store.(*ratelimit.MemoryStore).Close()
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := rateConfig("not a rule", config.BackendMemory)
		cfg.RateLimit.Enabled = false

		store, err := NewRateStore(cfg, nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("redis without client", func(t *testing.T) {
		_, err := NewRateStore(rateConfig("60/minute", config.BackendRedis), nil, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}

func TestNewRateStore_RejectsBadRules(t *testing.T) {
	for _, rule := range []string{"lots", "0/minute", "2000000000/second"} {
		t.Run(rule, func(t *testing.T) {
			_, err := NewRateStore(rateConfig(rule, config.BackendMemory), nil, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "DEFAULT_RATE_LIMIT")
		})
	}
}

func TestCacheTTL(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{TTLSeconds: 90}}
	assert.Equal(t, 90*time.Second, CacheTTL(cfg))
}
