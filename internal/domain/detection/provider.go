package detection

import (
	"context"
	"fmt"

	"github.com/astroguard/backend/internal/domain/shared"
)

// ErrTransport marks a failure to reach the detection provider (network error or timeout)
var ErrTransport = shared.NewDomainError("DETECTION_UNAVAILABLE", "Detection service is unreachable")

// ProviderError is a non-2xx response from the detection provider. Message is
// the provider's error text, verbatim.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("detection provider returned %d: %s", e.StatusCode, e.Message)
}

// Provider runs object detection on uploaded media
type Provider interface {
	DetectImage(ctx context.Context, media Media) (*ImageResult, error)
	DetectVideo(ctx context.Context, media Media) (*VideoResult, error)
}
