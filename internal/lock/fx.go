package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/labdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New picks the Redis locker when REDIS_ADDR is set and the in-process one otherwise.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	log = log.Named("lock")
	if cfg.RedisAddr == "" {
		log.Info("using in-process locks")
		return NewLocal()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("using redis locks", zap.String("addr", cfg.RedisAddr))
	return NewRedis(client, log)
}
