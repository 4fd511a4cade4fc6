// Package memory holds conversation contexts in a mutex-guarded map.
// It is the default session store and the one used by tests; the
// postgres adapter serves multi-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

type Store struct {
	mu       sync.Mutex
	contexts map[int64]*domain.ConversationContext
	now      func() time.Time
}

type Options struct {
	// Now overrides the clock, for staleness tests.
	Now func() time.Time
}

func NewStore(options Options) *Store {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		contexts: make(map[int64]*domain.ConversationContext),
		now:      now,
	}
}

// Get fails closed: a stale context is deleted and reported absent.
func (s *Store) Get(_ context.Context, userID int64) (*domain.ConversationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.contexts[userID]
	if !ok {
		return nil, domain.ErrContextNotFound
	}
	if stored.ExpiredAt(s.now()) {
		delete(s.contexts, userID)
		return nil, domain.ErrContextNotFound
	}
	return cloneContext(stored), nil
}

// Set overwrites unconditionally, forcing the touch timestamp and the
// content and history bounds. It cannot fail.
func (s *Store) Set(_ context.Context, conversation *domain.ConversationContext) error {
	stored := cloneContext(conversation)
	stored.Timestamp = s.now()
	boundHistory(stored)

	s.mu.Lock()
	s.contexts[stored.UserID] = stored
	s.mu.Unlock()
	return nil
}

// AppendMessage extends a live context; without one it is a no-op, so
// conversation tracking stays opt-in.
func (s *Store) AppendMessage(_ context.Context, userID int64, role, content string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.contexts[userID]
	if !ok {
		return nil
	}
	if stored.ExpiredAt(now) {
		delete(s.contexts, userID)
		return nil
	}

	stored.History = append(stored.History, domain.ChatMessage{
		Role:      role,
		Content:   domain.TruncateContent(content),
		Timestamp: now,
	})
	stored.CapHistory()
	stored.Timestamp = now
	return nil
}

func (s *Store) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.contexts, userID)
	s.mu.Unlock()
	return nil
}

func (s *Store) Stats(_ context.Context) (domain.SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.SessionStats{TotalContexts: len(s.contexts)}
	for _, stored := range s.contexts {
		ts := stored.Timestamp
		if stats.Oldest == nil || ts.Before(*stats.Oldest) {
			t := ts
			stats.Oldest = &t
		}
		if stats.Newest == nil || ts.After(*stats.Newest) {
			t := ts
			stats.Newest = &t
		}
	}
	return stats, nil
}

// Sweep evicts every stale context and reports how many it removed.
// It snapshots the expired keys under the lock and deletes them in the
// same critical section; a concurrent Set for the same key simply wins
// on its next write, and double eviction is harmless.
func (s *Store) Sweep(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]int64, 0)
	for userID, stored := range s.contexts {
		if stored.ExpiredAt(now) {
			expired = append(expired, userID)
		}
	}
	for _, userID := range expired {
		delete(s.contexts, userID)
	}
	return len(expired), nil
}

func boundHistory(conversation *domain.ConversationContext) {
	for i := range conversation.History {
		conversation.History[i].Content = domain.TruncateContent(conversation.History[i].Content)
	}
	conversation.CapHistory()
}

func cloneContext(conversation *domain.ConversationContext) *domain.ConversationContext {
	clone := *conversation
	clone.History = append([]domain.ChatMessage(nil), conversation.History...)
	if conversation.Pending != nil {
		pending := *conversation.Pending
		if conversation.Pending.Context != nil {
			pending.Context = make(map[string]any, len(conversation.Pending.Context))
			for k, v := range conversation.Pending.Context {
				pending.Context[k] = v
			}
		}
		clone.Pending = &pending
	}
	return &clone
}
