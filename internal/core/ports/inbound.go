package ports

import (
	"context"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

// IntentResolver is the single entry point of the core: one structured
// result per inbound chat message. Conversational faults never surface
// as errors; the returned error is reserved for caller cancellation.
type IntentResolver interface {
	Resolve(ctx context.Context, userID int64, message string) (*domain.IntentResult, error)
}
