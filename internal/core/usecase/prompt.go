package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

func buildResolverPrompt(message string, history []domain.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, content))
	}
	if len(lines) == 0 {
		lines = append(lines, "(empty)")
	}

	return fmt.Sprintf(`You are the intent resolver of a team-collaboration assistant.
Interpret the user's message and return ONLY a valid JSON object:
{"action":"...","parameters":{...},"message":"..."}

Known actions: create_workspace, create_team, create_task, add_member,
create_comment, get_comments, check_attendance, update_profile,
greeting, thanks, help, general_chat, need_more_info.

Use "need_more_info" with parameters {"type":"workspace_name"|"team_name"|"task_title"}
when a creation request is missing its name or title.
"message" is the user-facing reply, written in the user's language.

Recent conversation:
%s

Current user message:
%s
`, strings.Join(lines, "\n"), message)
}

// parseIntentResult normalizes raw completion output into an
// IntentResult: code fences stripped, the outermost JSON object
// extracted, action required.
func parseIntentResult(raw string) (*domain.IntentResult, error) {
	cleaned := extractJSONObject(stripCodeFences(raw))
	if cleaned == "" {
		return nil, fmt.Errorf("empty completion output")
	}

	var result domain.IntentResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("unmarshal intent json: %w", err)
	}

	result.Action = strings.ToLower(strings.TrimSpace(result.Action))
	if result.Action == "" {
		return nil, fmt.Errorf("intent json has no action")
	}
	if result.Parameters == nil {
		result.Parameters = map[string]any{}
	}
	result.Message = strings.TrimSpace(result.Message)
	return &result, nil
}

// stripCodeFences removes a surrounding markdown fence, with or without
// a language tag.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		// A language tag like "json" sits alone on the fence line.
		if firstLine == "" || !strings.ContainsAny(firstLine, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return ""
}
