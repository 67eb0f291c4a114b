package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client    *redis.Client
	available bool
}

// Available reports whether the initial ping succeeded.
func (r *Redis) Available() bool {
	return r != nil && r.Client != nil && r.available
}

// NewRedis connects to Redis using the provided configuration. An unreachable
// server is logged, not fatal; callers check Available before relying on it.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	r := &Redis{Client: client}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis; reports kept in memory", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		r.available = true
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}
	return r
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
