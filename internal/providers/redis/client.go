// Package redis provides the shared Redis client used for locks and rate limits.
package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/docflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

// New returns nil when REDIS_ADDR is unset so callers can fall back to
// in-process implementations.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *goredis.Client {
	if !cfg.Redis.Enabled() {
		log.Info("redis disabled")
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("redis client configured", zap.String("addr", cfg.Redis.Addr))
	return client
}
