package ports

import (
	"context"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

// SessionStore is the exclusive owner of conversation contexts. Get
// fails closed on staleness: an expired context is deleted and reported
// as domain.ErrContextNotFound. Set forces the touch timestamp and the
// history cap; AppendMessage is a no-op without a live context.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*domain.ConversationContext, error)
	Set(ctx context.Context, conversation *domain.ConversationContext) error
	AppendMessage(ctx context.Context, userID int64, role, content string) error
	Clear(ctx context.Context, userID int64) error
	Stats(ctx context.Context) (domain.SessionStats, error)
}

// CompletionService is the external language-completion dependency:
// text in, text out, may fail or time out.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// IntentEventPublisher broadcasts resolved intents to downstream
// consumers (CRUD layer, realtime fan-out). Publishing is best effort
// and never affects the resolution result.
type IntentEventPublisher interface {
	PublishIntentResolved(ctx context.Context, userID int64, result domain.IntentResult) error
}
