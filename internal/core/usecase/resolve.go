package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/teamply/intent-resolver/internal/core/domain"
	"github.com/teamply/intent-resolver/internal/core/fallback"
	"github.com/teamply/intent-resolver/internal/core/ports"
)

// Metrics receives the resolver's top-level observations; the
// prometheus adapter implements it, tests pass nil.
type Metrics interface {
	ObserveResolution(action, source string)
	ObserveCompletion(duration time.Duration, success bool)
	ObserveClarification(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveResolution(string, string)      {}
func (nopMetrics) ObserveCompletion(time.Duration, bool) {}
func (nopMetrics) ObserveClarification(string)           {}

// ResolveIntentUseCase turns one free-text chat message into one
// structured IntentResult. All state lives in the session store; the
// use case itself holds nothing between calls.
type ResolveIntentUseCase struct {
	completions ports.CompletionService
	sessions    ports.SessionStore
	limits      domain.ResolverLimits
	logger      *slog.Logger
	metrics     Metrics
	now         func() time.Time
}

func NewResolveIntentUseCase(
	completions ports.CompletionService,
	sessions ports.SessionStore,
	limits domain.ResolverLimits,
	logger *slog.Logger,
	metrics Metrics,
) *ResolveIntentUseCase {
	if limits.CompletionTimeout <= 0 {
		limits.CompletionTimeout = 15 * time.Second
	}
	if limits.PromptHistoryTurns <= 0 {
		limits.PromptHistoryTurns = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &ResolveIntentUseCase{
		completions: completions,
		sessions:    sessions,
		limits:      limits,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Resolve never lets an internal fault reach the caller: upstream
// failures become an "error" result, unparseable output goes through
// the fallback parser, and absence of a match is the "not understood"
// result. The returned error is reserved for future transports and is
// always nil today.
func (uc *ResolveIntentUseCase) Resolve(ctx context.Context, userID int64, message string) (*domain.IntentResult, error) {
	// Record the user turn. This only extends an existing context;
	// tracking starts once a resolution persists one below.
	if err := uc.sessions.AppendMessage(ctx, userID, domain.RoleUser, message); err != nil {
		uc.logger.Warn("session_append_failed", "user_id", userID, "role", domain.RoleUser, "error", err)
	}

	conversation, err := uc.sessions.Get(ctx, userID)
	if err != nil && !domain.IsKind(err, domain.ErrContextNotFound) {
		uc.logger.Warn("session_get_failed", "user_id", userID, "error", err)
	}

	if state := conversation.Clarification(); state.Awaiting() {
		return uc.resolveClarification(ctx, userID, message, state), nil
	}

	started := uc.now()
	raw, err := uc.complete(ctx, message, conversation)
	uc.metrics.ObserveCompletion(uc.now().Sub(started), err == nil)
	if err != nil {
		uc.logger.Error("completion_failed", "user_id", userID, "error", err)
		result := upstreamFailureResult()
		uc.metrics.ObserveResolution(result.Action, "upstream_error")
		return result, nil
	}

	source := "model"
	result, parseErr := parseIntentResult(raw)
	if parseErr != nil {
		source = "fallback"
		result = fallback.ParseCommand(message, historyOf(conversation))
		uc.logger.Info("fallback_parser_used",
			"user_id", userID,
			"action", result.Action,
			"parse_error", parseErr,
		)
	}

	uc.persistTurn(ctx, conversation, userID, message, result)
	uc.metrics.ObserveResolution(result.Action, source)
	if result.NeedsMoreInfo() {
		uc.metrics.ObserveClarification("opened")
	}

	uc.logger.Info("intent_resolved",
		"user_id", userID,
		"action", result.Action,
		"needs_more_info", result.NeedsMoreInfo(),
	)
	return result, nil
}

func (uc *ResolveIntentUseCase) complete(ctx context.Context, message string, conversation *domain.ConversationContext) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.limits.CompletionTimeout)
	defer cancel()

	prompt := buildResolverPrompt(message, recentHistory(conversation, uc.limits.PromptHistoryTurns))
	return uc.completions.Complete(callCtx, prompt)
}

// persistTurn writes the resolved turn back to the store: history with
// this exchange, the resolved action, and a pending clarification only
// for need_more_info results.
func (uc *ResolveIntentUseCase) persistTurn(ctx context.Context, conversation *domain.ConversationContext, userID int64, message string, result *domain.IntentResult) {
	now := uc.now()
	if conversation == nil {
		conversation = &domain.ConversationContext{
			UserID: userID,
			History: []domain.ChatMessage{
				{Role: domain.RoleUser, Content: domain.TruncateContent(message), Timestamp: now},
			},
		}
	}
	conversation.History = append(conversation.History, domain.ChatMessage{
		Role:      domain.RoleAssistant,
		Content:   domain.TruncateContent(result.Message),
		Timestamp: now,
	})
	conversation.LastAction = result.Action
	conversation.Pending = nil
	if result.NeedsMoreInfo() {
		conversation.Pending = &domain.PendingClarification{
			Type:    result.ClarificationType(),
			Context: clarificationContext(result.Parameters),
		}
	}

	if err := uc.sessions.Set(ctx, conversation); err != nil {
		uc.logger.Warn("session_set_failed", "user_id", userID, "error", err)
	}
}

// clarificationContext carries every parameter except the type selector
// into the pending clarification, so an eventual answer completes the
// action with what was already known.
func clarificationContext(parameters map[string]any) map[string]any {
	if len(parameters) == 0 {
		return nil
	}
	context := make(map[string]any, len(parameters))
	for k, v := range parameters {
		if k != "type" {
			context[k] = v
		}
	}
	if len(context) == 0 {
		return nil
	}
	return context
}

func historyOf(conversation *domain.ConversationContext) []domain.ChatMessage {
	if conversation == nil {
		return nil
	}
	return conversation.History
}

func recentHistory(conversation *domain.ConversationContext, n int) []domain.ChatMessage {
	if conversation == nil {
		return nil
	}
	return conversation.RecentHistory(n)
}

func upstreamFailureResult() *domain.IntentResult {
	return &domain.IntentResult{
		Action:     domain.ActionError,
		Parameters: map[string]any{},
		Message:    "죄송해요, 지금은 요청을 처리할 수 없어요. 잠시 후 다시 시도해 주세요.",
	}
}
