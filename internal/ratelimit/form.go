package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/labdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyFormClient = "labdesk:forms:client:%s"

// FormLimiter throttles form submissions per client address. A nil limiter allows everything.
type FormLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewFormLimiter returns nil when rate limiting is disabled.
func NewFormLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*FormLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("rate limiting requires REDIS_ADDR")
	}
	if limitCfg.FormRate <= 0 || limitCfg.FormBurst <= 0 {
		return nil, errors.New("form rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Named("ratelimit").Info("form rate limiting enabled",
		zap.Float64("rate", limitCfg.FormRate),
		zap.Int("burst", limitCfg.FormBurst),
	)
	return &FormLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.FormRate,
		burst:  limitCfg.FormBurst,
	}, nil
}

func (l *FormLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *FormLimiter) Allow(ctx context.Context, client string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, FormKey(client), l.rate, l.burst)
}

func FormKey(client string) string {
	return fmt.Sprintf(keyFormClient, strings.TrimSpace(client))
}
