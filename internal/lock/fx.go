package lock

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/docflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

// Provide picks the Redis locker when a client is configured, the in-process
// mutex otherwise.
func Provide(p Params) Locker {
	if p.Client == nil {
		p.Log.Info("attempt lock using in-process mutex")
		return NewKeyedMutex()
	}

	p.Log.Info("attempt lock using redis")
	return NewRedisLocker(p.Client, "docflow:lock:", p.Cfg.Redis.LockTTL)
}
