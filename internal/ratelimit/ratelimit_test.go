package ratelimit

import (
	"testing"
	"time"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestNewFormLimiterDisabled(t *testing.T) {
	limiter, err := NewFormLimiter(fxtest.NewLifecycle(t), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(t.Context(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewFormLimiterValidatesConfig(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, FormRate: 1, FormBurst: 5}}
	_, err := NewFormLimiter(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	require.Error(t, err)

	cfg.RedisAddr = "localhost:6379"
	cfg.RateLimit.FormBurst = 0
	_, err = NewFormLimiter(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, retryAfter(true, 0, 1))
	assert.Equal(t, 4*time.Second, retryAfter(false, 0, 0.25))
	assert.Equal(t, 500*time.Millisecond, retryAfter(false, 0.5, 1))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, bucketTTL(0, 10))
	assert.Equal(t, 80*time.Second, bucketTTL(0.25, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestCasts(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(7), castToInt("7"))
	assert.InDelta(t, 2.5, castToFloat("2.5"), 1e-9)
	assert.Zero(t, castToFloat(nil))
}

func TestFormKey(t *testing.T) {
	assert.Equal(t, "labdesk:forms:client:10.0.0.1", FormKey(" 10.0.0.1 "))
}
