package usecase

import (
	"context"

	"github.com/teamply/intent-resolver/internal/core/domain"
	"github.com/teamply/intent-resolver/internal/core/fallback"
)

// resolveClarification runs the AwaitingClarification transition: the
// message is offered to the name-extraction contract for the awaited
// type. A valid answer completes the original action and destroys the
// context; an invalid one re-issues the same prompt and stays awaiting.
// The completion service is not consulted on this path.
func (uc *ResolveIntentUseCase) resolveClarification(ctx context.Context, userID int64, message string, state domain.ClarificationState) *domain.IntentResult {
	result := fallback.ResolveClarification(message, state)

	if err := uc.sessions.AppendMessage(ctx, userID, domain.RoleAssistant, result.Message); err != nil {
		uc.logger.Warn("session_append_failed", "user_id", userID, "role", domain.RoleAssistant, "error", err)
	}

	if result.NeedsMoreInfo() {
		uc.logger.Info("clarification_reprompted", "user_id", userID, "type", state.Type)
		uc.metrics.ObserveClarification("rejected")
		uc.metrics.ObserveResolution(result.Action, "clarification")
		return result
	}

	if err := uc.sessions.Clear(ctx, userID); err != nil {
		uc.logger.Warn("session_clear_failed", "user_id", userID, "error", err)
	}
	uc.logger.Info("clarification_resolved", "user_id", userID, "type", state.Type, "action", result.Action)
	uc.metrics.ObserveClarification("resolved")
	uc.metrics.ObserveResolution(result.Action, "clarification")
	return result
}
