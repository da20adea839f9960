package joblock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fundops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewClient returns nil when no redis address is configured; the
// scheduler then runs unlocked, which is fine for a single instance.
func NewClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unreachable, job locking disabled", zap.Error(err))
	}
	return client
}

func registerHooks(lc fx.Lifecycle, client *redis.Client) {
	if client == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
}

var Module = fx.Module("joblock",
	fx.Provide(NewClient),
	fx.Provide(NewLocker),
	fx.Invoke(registerHooks),
)
