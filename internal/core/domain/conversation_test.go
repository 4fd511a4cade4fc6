package domain

import (
	"strings"
	"testing"
	"time"
)

func TestCapHistory(t *testing.T) {
	conversation := &ConversationContext{}
	for i := 0; i < HistoryHardCap+3; i++ {
		conversation.History = append(conversation.History, ChatMessage{Content: strings.Repeat("x", i+1)})
	}

	conversation.CapHistory()
	if len(conversation.History) != HistoryKeepRecent {
		t.Fatalf("history length = %d, want %d", len(conversation.History), HistoryKeepRecent)
	}
	// Truncation keeps the most recent turns in their original order.
	first := conversation.History[0].Content
	last := conversation.History[len(conversation.History)-1].Content
	if len(first) != HistoryHardCap+3-HistoryKeepRecent+1 || len(last) != HistoryHardCap+3 {
		t.Fatalf("unexpected window: first %d runes, last %d runes", len(first), len(last))
	}
}

func TestCapHistoryAtCapIsUntouched(t *testing.T) {
	conversation := &ConversationContext{History: make([]ChatMessage, HistoryHardCap)}
	conversation.CapHistory()
	if len(conversation.History) != HistoryHardCap {
		t.Fatalf("history at the cap must survive, got %d", len(conversation.History))
	}
}

func TestTruncateContent(t *testing.T) {
	exact := strings.Repeat("가", MaxContentRunes)
	if got := TruncateContent(exact); got != exact {
		t.Fatalf("content at the bound must pass through unchanged")
	}

	over := exact + "나"
	got := TruncateContent(over)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated content must end with the marker: %q", got[len(got)-12:])
	}
	if runes := len([]rune(got)); runes != MaxContentRunes+3 {
		t.Fatalf("truncated length = %d runes, want %d", runes, MaxContentRunes+3)
	}
	if !strings.HasPrefix(got, strings.Repeat("가", 10)) {
		t.Fatalf("truncation must keep the leading content")
	}
}

func TestExpiredAt(t *testing.T) {
	touched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conversation := &ConversationContext{Timestamp: touched}

	if conversation.ExpiredAt(touched.Add(ContextTTL)) {
		t.Fatalf("context at exactly the TTL is still live")
	}
	if !conversation.ExpiredAt(touched.Add(ContextTTL + time.Second)) {
		t.Fatalf("context past the TTL must be stale")
	}
}

func TestRecentHistory(t *testing.T) {
	conversation := &ConversationContext{}
	for i := 0; i < 8; i++ {
		conversation.History = append(conversation.History, ChatMessage{Content: strings.Repeat("x", i+1)})
	}

	recent := conversation.RecentHistory(5)
	if len(recent) != 5 {
		t.Fatalf("recent length = %d, want 5", len(recent))
	}
	if len(recent[0].Content) != 4 || len(recent[4].Content) != 8 {
		t.Fatalf("recent window out of order: %+v", recent)
	}
	if got := conversation.RecentHistory(20); len(got) != 8 {
		t.Fatalf("window larger than history returns everything, got %d", len(got))
	}
	if got := conversation.RecentHistory(0); got != nil {
		t.Fatalf("zero window returns nothing, got %+v", got)
	}
}

func TestClarificationState(t *testing.T) {
	var missing *ConversationContext
	if missing.Clarification().Awaiting() {
		t.Fatalf("absent context is idle")
	}

	idle := &ConversationContext{}
	if idle.Clarification().Awaiting() {
		t.Fatalf("context without pending state is idle")
	}

	awaiting := &ConversationContext{
		Pending: &PendingClarification{Type: ClarifyTeamName, Context: map[string]any{"workspaceId": float64(3)}},
	}
	state := awaiting.Clarification()
	if !state.Awaiting() || state.Type != ClarifyTeamName {
		t.Fatalf("state = %+v", state)
	}
	if state.Context["workspaceId"] != float64(3) {
		t.Fatalf("carried context lost: %+v", state.Context)
	}
}
