// Package fallback deterministically maps free-text chat messages to
// structured intents without the completion service. It backs two paths:
// recovering from unparseable model output and resolving clarification
// answers. Matching is pure string work; no input ever produces an error.
package fallback

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

const (
	maxNameRunes  = 49
	maxTitleRunes = 99
)

// namePatterns recognize the common phrasings of a name answer, most
// specific first. The first match wins; the whole trimmed input is the
// candidate when nothing matches.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`이름은\s+(.+?)\s*(?:으로|로)\s*(?:할래요?|할게요?|하자|해\s?줘요?|해주세요|정할래요?|정하자)\s*[!.~♪]*$`),
	regexp.MustCompile(`(.+?)\s*(?:으로|로)\s*(?:할래요?|할게요?|하자|해\s?줘요?|해주세요|정할래요?|정하자|가자|갈래요?)\s*[!.~♪]*$`),
	regexp.MustCompile(`(.+?)\s*(?:이?라고)\s*(?:해\s?줘요?|해주세요|하자|할래요?|지어\s?줘요?)\s*[!.~♪]*$`),
	regexp.MustCompile(`이름은\s+(.+?)\s*[!.~♪]*$`),
	regexp.MustCompile(`(?i)^(?:the\s+)?name\s+is\s+(.+)$`),
	regexp.MustCompile(`(?i)^let'?s\s+go\s+with\s+(.+)$`),
	regexp.MustCompile(`(?i)^(?:call|name)\s+it\s+(.+)$`),
}

// validNamePattern accepts letters of any script, digits, whitespace,
// hyphen and underscore. Anything else rejects the candidate.
var validNamePattern = regexp.MustCompile(`^[\p{L}\p{N}\s_-]+$`)

// ExtractName applies the name-extraction contract: ordered surface
// patterns, then the whole input as candidate, then the type-specific
// length and charset bounds. ok is false when the candidate fails the
// bounds and the caller must re-issue the same clarification.
func ExtractName(text, clarificationType string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	candidate := trimmed
	for _, pattern := range namePatterns {
		if m := pattern.FindStringSubmatch(trimmed); m != nil {
			candidate = strings.TrimSpace(m[1])
			break
		}
	}

	if !validName(candidate, nameBound(clarificationType)) {
		return "", false
	}
	return candidate, true
}

func nameBound(clarificationType string) int {
	if clarificationType == domain.ClarifyTaskTitle {
		return maxTitleRunes
	}
	return maxNameRunes
}

func validName(candidate string, maxRunes int) bool {
	if candidate == "" || utf8.RuneCountInString(candidate) > maxRunes {
		return false
	}
	return validNamePattern.MatchString(candidate)
}

// ResolveClarification interprets text as the answer to the awaited
// clarification. A valid answer completes the original action; an
// invalid one re-issues the same prompt, without a retry limit.
func ResolveClarification(text string, state domain.ClarificationState) *domain.IntentResult {
	if !state.Awaiting() {
		return nil
	}

	name, ok := ExtractName(text, state.Type)
	if !ok {
		return repromptFor(state)
	}

	params := make(map[string]any, len(state.Context)+1)
	for k, v := range state.Context {
		params[k] = v
	}

	switch state.Type {
	case domain.ClarifyWorkspaceName:
		params["workspaceName"] = name
		return &domain.IntentResult{
			Action:     domain.ActionCreateWorkspace,
			Parameters: params,
			Message:    fmt.Sprintf("워크스페이스 '%s'를 만들게요!", name),
		}
	case domain.ClarifyTeamName:
		params["teamName"] = name
		return &domain.IntentResult{
			Action:     domain.ActionCreateTeam,
			Parameters: params,
			Message:    fmt.Sprintf("팀 '%s'를 만들게요!", name),
		}
	case domain.ClarifyTaskTitle:
		params["title"] = name
		return &domain.IntentResult{
			Action:     domain.ActionCreateTask,
			Parameters: params,
			Message:    fmt.Sprintf("할 일 '%s'을 추가할게요!", name),
		}
	default:
		return repromptFor(state)
	}
}

// repromptFor re-enters the same awaiting state with a type-specific
// prompt. The retry loop is intentionally unbounded.
func repromptFor(state domain.ClarificationState) *domain.IntentResult {
	params := map[string]any{"type": state.Type}
	for k, v := range state.Context {
		if k != "type" {
			params[k] = v
		}
	}

	var message string
	switch state.Type {
	case domain.ClarifyWorkspaceName:
		message = "워크스페이스 이름은 한글, 영문, 숫자로 49자 이내여야 해요. 다시 알려 주시겠어요?"
	case domain.ClarifyTeamName:
		message = "팀 이름은 한글, 영문, 숫자로 49자 이내여야 해요. 다시 알려 주시겠어요?"
	case domain.ClarifyTaskTitle:
		message = "할 일 제목은 99자 이내의 일반 문자여야 해요. 다시 알려 주시겠어요?"
	default:
		message = "입력을 이해하지 못했어요. 다시 한 번 알려 주시겠어요?"
	}

	return &domain.IntentResult{
		Action:     domain.ActionNeedMoreInfo,
		Parameters: params,
		Message:    message,
	}
}
