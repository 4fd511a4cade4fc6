package fallback

import (
	"strings"
	"testing"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

func TestExtractNameRecognizesPhrasings(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"korean name suffix", "이름은 Acme로 할래", "Acme"},
		{"korean decided", "DevOps로 하자", "DevOps"},
		{"korean called", "알파팀이라고 해줘", "알파팀"},
		{"korean plain name", "이름은 Acme", "Acme"},
		{"english name is", "the name is Acme", "Acme"},
		{"english lets go with", "let's go with Acme", "Acme"},
		{"english call it", "call it Acme", "Acme"},
		{"bare token", "Acme", "Acme"},
		{"bare korean", "우리동네모임", "우리동네모임"},
		{"whitespace trimmed", "  Acme  ", "Acme"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractName(tc.input, domain.ClarifyWorkspaceName)
			if !ok {
				t.Fatalf("ExtractName(%q) rejected, want %q", tc.input, tc.want)
			}
			if got != tc.want {
				t.Fatalf("ExtractName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestExtractNameRejectsInvalidCandidates(t *testing.T) {
	cases := []struct {
		name  string
		input string
		typ   string
	}{
		{"empty", "", domain.ClarifyWorkspaceName},
		{"blank", "   ", domain.ClarifyWorkspaceName},
		{"too long for workspace", strings.Repeat("a", 50), domain.ClarifyWorkspaceName},
		{"too long for task", strings.Repeat("a", 100), domain.ClarifyTaskTitle},
		{"forbidden punctuation", "Acme!", domain.ClarifyWorkspaceName},
		{"emoji", "Acme🚀", domain.ClarifyWorkspaceName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, ok := ExtractName(tc.input, tc.typ); ok {
				t.Fatalf("ExtractName(%q) accepted %q, want rejection", tc.input, got)
			}
		})
	}
}

func TestExtractNameTaskTitleUsesWiderBound(t *testing.T) {
	title := strings.Repeat("a", 99)
	got, ok := ExtractName(title, domain.ClarifyTaskTitle)
	if !ok || got != title {
		t.Fatalf("99-char task title should be accepted, got %q ok=%v", got, ok)
	}
	if _, ok := ExtractName(title, domain.ClarifyWorkspaceName); ok {
		t.Fatalf("99-char workspace name should be rejected")
	}
}

func TestResolveClarificationCompletesWorkspace(t *testing.T) {
	state := domain.Awaiting(domain.ClarifyWorkspaceName, nil)
	result := ResolveClarification("이름은 Acme로 할래", state)

	if result.Action != domain.ActionCreateWorkspace {
		t.Fatalf("action = %q, want %q", result.Action, domain.ActionCreateWorkspace)
	}
	if result.Parameters["workspaceName"] != "Acme" {
		t.Fatalf("workspaceName = %v, want Acme", result.Parameters["workspaceName"])
	}
}

func TestResolveClarificationCarriesContext(t *testing.T) {
	state := domain.Awaiting(domain.ClarifyTeamName, map[string]any{"workspaceId": float64(7)})
	result := ResolveClarification("백엔드", state)

	if result.Action != domain.ActionCreateTeam {
		t.Fatalf("action = %q, want %q", result.Action, domain.ActionCreateTeam)
	}
	if result.Parameters["teamName"] != "백엔드" {
		t.Fatalf("teamName = %v, want 백엔드", result.Parameters["teamName"])
	}
	if result.Parameters["workspaceId"] != float64(7) {
		t.Fatalf("workspaceId context lost: %v", result.Parameters)
	}
}

func TestResolveClarificationRepromptsOnInvalidAnswer(t *testing.T) {
	state := domain.Awaiting(domain.ClarifyWorkspaceName, nil)

	// Rejection keeps the same awaiting type, however often it repeats.
	for i := 0; i < 3; i++ {
		result := ResolveClarification(strings.Repeat("x", 60), state)
		if result.Action != domain.ActionNeedMoreInfo {
			t.Fatalf("action = %q, want %q", result.Action, domain.ActionNeedMoreInfo)
		}
		if result.Parameters["type"] != domain.ClarifyWorkspaceName {
			t.Fatalf("type = %v, want %q", result.Parameters["type"], domain.ClarifyWorkspaceName)
		}
		if result.Message == "" {
			t.Fatalf("reprompt must carry a user-facing message")
		}
	}
}

func TestResolveClarificationIgnoresIdleState(t *testing.T) {
	if result := ResolveClarification("Acme", domain.Idle()); result != nil {
		t.Fatalf("idle state must not resolve, got %+v", result)
	}
}
