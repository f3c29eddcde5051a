package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/astroguard/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultVideoKeyPrefix = "astroguard:video:"

// RedisVideoResultStore keeps video analyses in Redis so every API instance
// can serve frame navigation for an analysis started on another.
type RedisVideoResultStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisVideoResultStore connects to Redis and verifies the connection.
func NewRedisVideoResultStore(cfg config.RedisConfig) (*RedisVideoResultStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisVideoResultStore{client: client, keyPrefix: defaultVideoKeyPrefix}, nil
}

// NewRedisVideoResultStoreWithClient creates a store on an existing client.
func NewRedisVideoResultStoreWithClient(client *redis.Client, keyPrefix string) *RedisVideoResultStore {
	if keyPrefix == "" {
		keyPrefix = defaultVideoKeyPrefix
	}
	return &RedisVideoResultStore{client: client, keyPrefix: keyPrefix}
}

// Save stores result as JSON under id. A non-positive ttl keeps it until evicted.
func (s *RedisVideoResultStore) Save(ctx context.Context, id uuid.UUID, result *detection.VideoResult, ttl time.Duration) error {
	if result == nil {
		return shared.ErrInvalidInput.WithMessage("video result is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode video result: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.keyPrefix+id.String(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store video result: %w", err)
	}
	return nil
}

// Load fetches the result stored under id.
func (s *RedisVideoResultStore) Load(ctx context.Context, id uuid.UUID) (*detection.VideoResult, error) {
	payload, err := s.client.Get(ctx, s.keyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound.WithMessage("Video analysis not found or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load video result: %w", err)
	}

	var result detection.VideoResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode video result: %w", err)
	}
	return &result, nil
}

// Close closes the Redis client
func (s *RedisVideoResultStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *RedisVideoResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ detection.VideoResultStore = (*RedisVideoResultStore)(nil)
