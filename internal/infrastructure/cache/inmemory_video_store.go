package cache

import (
	"context"
	"sync"
	"time"

	"github.com/astroguard/backend/internal/domain/detection"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/google/uuid"
)

type videoEntry struct {
	result    *detection.VideoResult
	expiresAt time.Time // zero means no expiry
}

func (e videoEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryVideoResultStore keeps video analyses in process memory.
// Suitable for single-instance deployments and tests.
type InMemoryVideoResultStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]videoEntry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryVideoResultStore creates the store and starts its expiry sweeper.
func NewInMemoryVideoResultStore() *InMemoryVideoResultStore {
	s := &InMemoryVideoResultStore{
		entries:  make(map[uuid.UUID]videoEntry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop(time.Minute)
	return s
}

// Save stores a copy of result. A non-positive ttl never expires.
func (s *InMemoryVideoResultStore) Save(_ context.Context, id uuid.UUID, result *detection.VideoResult, ttl time.Duration) error {
	if result == nil {
		return shared.ErrInvalidInput.WithMessage("video result is required")
	}
	e := videoEntry{result: cloneVideoResult(result)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return nil
}

// Load returns the result stored under id.
func (s *InMemoryVideoResultStore) Load(_ context.Context, id uuid.UUID) (*detection.VideoResult, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || e.expired(s.now()) {
		return nil, shared.ErrNotFound.WithMessage("Video analysis not found or expired")
	}
	return cloneVideoResult(e.result), nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryVideoResultStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of stored entries, expired or not.
func (s *InMemoryVideoResultStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *InMemoryVideoResultStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryVideoResultStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, id)
		}
	}
}

// cloneVideoResult copies the count map and frame slice so callers cannot
// mutate stored state. Frame images are immutable strings and are shared.
func cloneVideoResult(r *detection.VideoResult) *detection.VideoResult {
	out := &detection.VideoResult{
		ClassCounts: r.ClassCounts.Clone(),
		TotalFrames: r.TotalFrames,
	}
	if r.ProcessedFrames != nil {
		out.ProcessedFrames = append([]detection.ProcessedFrame(nil), r.ProcessedFrames...)
	}
	return out
}

var _ detection.VideoResultStore = (*InMemoryVideoResultStore)(nil)
