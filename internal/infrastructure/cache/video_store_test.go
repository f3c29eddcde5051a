package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/astroguard/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleVideo() *detection.VideoResult {
	return &detection.VideoResult{
		ClassCounts: detection.ClassCountMap{"ToolBox": 2, "OxygenTank": 1},
		ProcessedFrames: []detection.ProcessedFrame{
			{FrameNumber: 0, Image: "f0"},
			{FrameNumber: 30, Image: "f1"},
		},
		TotalFrames: 2,
	}
}

func TestInMemoryVideoResultStore_SaveLoad(t *testing.T) {
	store := NewInMemoryVideoResultStore()
	defer store.Close()

	ctx := context.Background()
	id := uuid.New()
	in := sampleVideo()
	require.NoError(t, store.Save(ctx, id, in, time.Hour))

	in.ClassCounts["ToolBox"] = 99
	in.ProcessedFrames[0].Image = "mutated"

	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sampleVideo(), got)

	got.ClassCounts["ToolBox"] = 50
	again, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.ClassCounts["ToolBox"])
}

func TestInMemoryVideoResultStore_NotFoundAndExpiry(t *testing.T) {
	store := NewInMemoryVideoResultStore()
	defer store.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := store.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	shortLived, forever := uuid.New(), uuid.New()
	require.NoError(t, store.Save(ctx, shortLived, sampleVideo(), time.Minute))
	require.NoError(t, store.Save(ctx, forever, sampleVideo(), 0))

	now = now.Add(2 * time.Minute)
	_, err = store.Load(ctx, shortLived)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = store.Load(ctx, forever)
	assert.NoError(t, err)

	store.cleanup()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryVideoResultStore_RejectsNil(t *testing.T) {
	store := NewInMemoryVideoResultStore()
	defer store.Close()

	err := store.Save(context.Background(), uuid.New(), nil, time.Minute)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestVideoResultStoreFactory(t *testing.T) {
	t.Run("redis disabled", func(t *testing.T) {
		store, err := NewVideoResultStoreFactory(config.RedisConfig{}, WithLogger(zaptest.NewLogger(t))).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryVideoResultStore{}, store)
	})

	unreachable := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	t.Run("fallback when unreachable", func(t *testing.T) {
		store, err := NewVideoResultStoreFactory(unreachable, WithLogger(zaptest.NewLogger(t))).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryVideoResultStore{}, store)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		_, err := NewVideoResultStoreFactory(unreachable, WithInMemoryFallback(false)).CreateStore()
		assert.Error(t, err)
	})
}

// TestRedisVideoResultStore runs against a real server when AG_TEST_REDIS_ADDR is set.
func TestRedisVideoResultStore(t *testing.T) {
	addr := os.Getenv("AG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AG_TEST_REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("AG_TEST_REDIS_DB"))
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	store := NewRedisVideoResultStoreWithClient(client, "test:video:"+uuid.NewString()+":")
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	id := uuid.New()
	require.NoError(t, store.Save(ctx, id, sampleVideo(), time.Minute))

	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sampleVideo(), got)

	_, err = store.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
