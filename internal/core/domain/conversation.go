package domain

import (
	"time"
	"unicode/utf8"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// HistoryHardCap is the history length that triggers truncation;
	// once crossed, only the HistoryKeepRecent most recent entries survive.
	HistoryHardCap    = 20
	HistoryKeepRecent = 10

	// MaxContentRunes bounds a single stored message body.
	MaxContentRunes = 1000

	// ContextTTL is how long a context stays valid after its last touch.
	ContextTTL = 30 * time.Minute
)

const contentEllipsis = "..."

// ChatMessage is one turn of a stored conversation, most recent last.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingClarification marks that the last resolved action demanded one
// more piece of information. Type selects the extraction rule that will
// interpret the next user message.
type PendingClarification struct {
	Type    string         `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ConversationContext is the per-user dialogue state owned by the
// session store. At most one exists per user.
type ConversationContext struct {
	UserID     int64                 `json:"user_id"`
	LastAction string                `json:"last_action,omitempty"`
	Pending    *PendingClarification `json:"pending_clarification,omitempty"`
	History    []ChatMessage         `json:"conversation_history"`
	Timestamp  time.Time             `json:"timestamp"`
}

// ExpiredAt reports whether the context is stale at the given instant.
func (c *ConversationContext) ExpiredAt(now time.Time) bool {
	return now.Sub(c.Timestamp) > ContextTTL
}

// CapHistory enforces the history length invariant in place.
func (c *ConversationContext) CapHistory() {
	if len(c.History) > HistoryHardCap {
		c.History = append([]ChatMessage(nil), c.History[len(c.History)-HistoryKeepRecent:]...)
	}
}

// RecentHistory returns up to n of the most recent turns in original order.
func (c *ConversationContext) RecentHistory(n int) []ChatMessage {
	if n <= 0 || len(c.History) == 0 {
		return nil
	}
	if len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

// Clarification exposes the pending-clarification field as a tagged
// state so transitions stay exhaustive at call sites.
func (c *ConversationContext) Clarification() ClarificationState {
	if c == nil || c.Pending == nil {
		return Idle()
	}
	return Awaiting(c.Pending.Type, c.Pending.Context)
}

// TruncateContent bounds a message body to MaxContentRunes, appending an
// ellipsis marker when it had to cut.
func TruncateContent(content string) string {
	if utf8.RuneCountInString(content) <= MaxContentRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:MaxContentRunes]) + contentEllipsis
}

// ClarificationState is the dialogue state machine: either Idle or
// AwaitingClarification with a type and carried context.
type ClarificationState struct {
	awaiting bool
	Type     string
	Context  map[string]any
}

func Idle() ClarificationState {
	return ClarificationState{}
}

func Awaiting(clarificationType string, context map[string]any) ClarificationState {
	return ClarificationState{awaiting: true, Type: clarificationType, Context: context}
}

// Awaiting reports whether a clarification answer is expected.
func (s ClarificationState) Awaiting() bool {
	return s.awaiting
}

// SessionStats is a read-only aggregate over the live contexts.
type SessionStats struct {
	TotalContexts int        `json:"total_contexts"`
	Oldest        *time.Time `json:"oldest_context,omitempty"`
	Newest        *time.Time `json:"newest_context,omitempty"`
}
