// Package cache provides short-lived storage for analysis results.
package cache

import (
	"fmt"

	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/astroguard/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// VideoResultStoreFactory creates video result stores based on configuration
type VideoResultStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*VideoResultStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *VideoResultStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to memory when Redis is
// unreachable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *VideoResultStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewVideoResultStoreFactory creates a new factory
func NewVideoResultStoreFactory(cfg config.RedisConfig, opts ...FactoryOption) *VideoResultStoreFactory {
	f := &VideoResultStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is enabled and reachable.
// Otherwise it returns an in-memory store, unless fallback is disabled and
// Redis was requested.
func (f *VideoResultStoreFactory) CreateStore() (detection.VideoResultStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory video result store")
		return NewInMemoryVideoResultStore(), nil
	}

	store, err := NewRedisVideoResultStore(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis video result store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for video results but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory video result store. "+
		"Frame navigation will only work on the instance that ran the analysis.",
		zap.Error(err),
	)
	return NewInMemoryVideoResultStore(), nil
}
