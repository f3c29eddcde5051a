package detection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VideoResultStore keeps finished video analyses so frames can be browsed and
// counts added to inventory after the upload request has returned.
// Load returns shared.ErrNotFound for unknown or expired ids.
type VideoResultStore interface {
	Save(ctx context.Context, id uuid.UUID, result *VideoResult, ttl time.Duration) error
	Load(ctx context.Context, id uuid.UUID) (*VideoResult, error)
	Close() error
}
