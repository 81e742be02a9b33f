package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/docflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyIngest = "docflow:ingest:%s:%s"

// IngestLimiter throttles document ingestion per scope and caller. A nil or
// disabled limiter admits everything.
type IngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

func NewIngestLimiter(p Params) *IngestLimiter {
	if p.Client == nil || !p.Cfg.Limits.Enabled() {
		p.Log.Info("ingest rate limiting disabled")
		return nil
	}
	return &IngestLimiter{
		bucket: NewTokenBucket(p.Client),
		rate:   p.Cfg.Limits.IngestRate,
		burst:  p.Cfg.Limits.IngestBurst,
	}
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *IngestLimiter) Allow(ctx context.Context, scope, caller string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyIngest, strings.TrimSpace(scope), strings.TrimSpace(caller))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
