package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/teamply/intent-resolver/internal/core/domain"
)

// Input is what one catalogue rule sees: the raw message plus recent
// history for context-sensitive rules.
type Input struct {
	Text    string
	History []domain.ChatMessage
}

// rule is one entry of the ordered catalogue. First match wins.
type rule struct {
	name   string
	match  func(in Input) bool
	handle func(in Input) *domain.IntentResult
}

// ParseCommand applies the command-recognition contract to a message the
// completion service failed to interpret. It always returns a result;
// the terminal fallthrough is the "not understood" general_chat result.
func ParseCommand(text string, history []domain.ChatMessage) *domain.IntentResult {
	in := Input{Text: strings.TrimSpace(text), History: history}
	for _, r := range catalogue {
		if r.match(in) {
			if result := r.handle(in); result != nil {
				return result
			}
		}
	}
	return notUnderstood()
}

var (
	workspaceWord = regexp.MustCompile(`워크\s?스페이스|workspace`)
	teamWord      = regexp.MustCompile(`(?:^|[\s'"])팀(?:$|[\s을를이가은는'"])|team`)
	taskWord      = regexp.MustCompile(`할\s?일|태스크|task|작업`)
	createWord    = regexp.MustCompile(`만들|생성|추가|등록|파\s?줘|create|add`)

	quotedName   = regexp.MustCompile(`['"“]([^'"”]+)['"”]`)
	calledName   = regexp.MustCompile(`([\p{L}\p{N} _-]+?)\s*(?:이?라는|이란)\s`)
	taskTitleRE  = regexp.MustCompile(`^(.*?)\s*(?:할\s?일|태스크|작업)`)
	memberWord   = regexp.MustCompile(`멤버|팀원|member`)
	inviteWord   = regexp.MustCompile(`추가|초대|invite|add`)
	memberTarget = regexp.MustCompile(`([\p{L}\p{N}._-]+@[\p{L}\p{N}.-]+|[\p{L}\p{N}_-]+)\s*(?:님)?\s*(?:을|를)?\s*(?:멤버|팀원)`)
	commentWord  = regexp.MustCompile(`댓글|코멘트|comment`)
	commentWrite = regexp.MustCompile(`달아|작성|남겨|남기|써\s?줘|등록`)
	commentRead  = regexp.MustCompile(`보여|조회|확인|알려|읽어|목록`)

	attendanceWord = regexp.MustCompile(`출석|출근|퇴근|attendance`)

	profileWord  = regexp.MustCompile(`프로필|내\s?정보|profile`)
	editWord     = regexp.MustCompile(`수정|변경|바꿔|바꾸|업데이트|update`)
	ageValue     = regexp.MustCompile(`나이(?:를|는|가)?\s*(\d{1,3})\s*살?`)
	emailValue   = regexp.MustCompile(`([\p{L}\p{N}._%+-]+@[\p{L}\p{N}.-]+\.[A-Za-z]{2,})`)
	emailWord    = regexp.MustCompile(`이메일|메일|email`)
	nameChangeRE = regexp.MustCompile(`이름(?:을|를|은|는)?\s*(.+?)\s*(?:으로|로)\s*(?:바꿔|변경|수정|업데이트)`)

	greetingRE = regexp.MustCompile(`(?i)^(안녕하?세?요?|하이|헬로+u?|ㅎㅇ|hi|hello|hey)[!~\s.]*$`)
	thanksRE   = regexp.MustCompile(`(?i)고마워|고맙습니다|감사합?니?다?|감사해요?|thank`)
	helpRE     = regexp.MustCompile(`(?i)도움|도와\s?줘|사용법|뭘?\s*할\s*수\s*있|어떻게\s*써|help|명령어`)
	ackRE      = regexp.MustCompile(`(?i)^(네|넵|예|응|웅|그래|좋아요?|알겠어요?|알겠습니다|오케이?|ㅇㅋ|ok|okay|sure)[!~\s.]*$`)

	nameQuestionRE = regexp.MustCompile(`이름(?:을|은|를)?.*(?:알려|정해|말해|뭐로|무엇으로)|어떤\s*이름`)
)

// catalogue is the ordered (predicate, handler) list. Order is part of
// the contract: creation rules run before conversational ones, and the
// context-sensitive name-answer rule runs last before the default.
var catalogue = []rule{
	{
		name:   "create_workspace",
		match:  func(in Input) bool { return workspaceWord.MatchString(in.Text) && createWord.MatchString(in.Text) },
		handle: handleCreateWorkspace,
	},
	{
		name:   "create_team",
		match:  func(in Input) bool { return teamWord.MatchString(in.Text) && createWord.MatchString(in.Text) },
		handle: handleCreateTeam,
	},
	{
		name:   "create_task",
		match:  func(in Input) bool { return taskWord.MatchString(in.Text) && createWord.MatchString(in.Text) },
		handle: handleCreateTask,
	},
	{
		name:   "add_member",
		match:  func(in Input) bool { return memberWord.MatchString(in.Text) && inviteWord.MatchString(in.Text) },
		handle: handleAddMember,
	},
	{
		name:   "create_comment",
		match:  func(in Input) bool { return commentWord.MatchString(in.Text) && commentWrite.MatchString(in.Text) },
		handle: handleCreateComment,
	},
	{
		name:   "get_comments",
		match:  func(in Input) bool { return commentWord.MatchString(in.Text) && commentRead.MatchString(in.Text) },
		handle: handleGetComments,
	},
	{
		name:   "check_attendance",
		match:  func(in Input) bool { return attendanceWord.MatchString(in.Text) },
		handle: handleAttendance,
	},
	{
		name:   "update_profile",
		match:  matchProfileUpdate,
		handle: handleProfileUpdate,
	},
	{
		name:   "greeting",
		match:  func(in Input) bool { return greetingRE.MatchString(in.Text) },
		handle: staticResult(domain.ActionGreeting, "안녕하세요! 무엇을 도와드릴까요?"),
	},
	{
		name:   "thanks",
		match:  func(in Input) bool { return thanksRE.MatchString(in.Text) },
		handle: staticResult(domain.ActionThanks, "천만에요! 또 필요한 게 있으면 말씀해 주세요."),
	},
	{
		name:   "help",
		match:  func(in Input) bool { return helpRE.MatchString(in.Text) },
		handle: staticResult(domain.ActionHelp, "워크스페이스/팀/할 일 만들기, 멤버 추가, 댓글, 출석체크, 프로필 수정을 도와드릴 수 있어요."),
	},
	{
		name:   "acknowledgment",
		match:  func(in Input) bool { return ackRE.MatchString(in.Text) },
		handle: staticResult(domain.ActionGeneralChat, "네! 더 필요한 게 있으면 말씀해 주세요."),
	},
	{
		name:   "contextual_name_answer",
		match:  matchContextualNameAnswer,
		handle: handleContextualNameAnswer,
	},
}

func staticResult(action, message string) func(Input) *domain.IntentResult {
	return func(Input) *domain.IntentResult {
		return &domain.IntentResult{
			Action:     action,
			Parameters: map[string]any{},
			Message:    message,
		}
	}
}

func notUnderstood() *domain.IntentResult {
	return &domain.IntentResult{
		Action:     domain.ActionGeneralChat,
		Parameters: map[string]any{},
		Message:    "요청을 정확히 이해하지 못했어요. '도움말'이라고 입력하시면 할 수 있는 일을 알려드릴게요.",
	}
}

// inlineName looks for a name already present in a creation request:
// quoted, or phrased as "X라는 ...".
func inlineName(text string, maxRunes int) (string, bool) {
	if m := quotedName.FindStringSubmatch(text); m != nil {
		if candidate := strings.TrimSpace(m[1]); validName(candidate, maxRunes) {
			return candidate, true
		}
	}
	if m := calledName.FindStringSubmatch(text); m != nil {
		if candidate := strings.TrimSpace(m[1]); validName(candidate, maxRunes) {
			return candidate, true
		}
	}
	return "", false
}

func handleCreateWorkspace(in Input) *domain.IntentResult {
	if name, ok := inlineName(in.Text, maxNameRunes); ok {
		return &domain.IntentResult{
			Action:     domain.ActionCreateWorkspace,
			Parameters: map[string]any{"workspaceName": name},
			Message:    fmt.Sprintf("워크스페이스 '%s'를 만들게요!", name),
		}
	}
	return &domain.IntentResult{
		Action:     domain.ActionNeedMoreInfo,
		Parameters: map[string]any{"type": domain.ClarifyWorkspaceName},
		Message:    "새 워크스페이스 이름을 알려 주시겠어요?",
	}
}

func handleCreateTeam(in Input) *domain.IntentResult {
	if name, ok := inlineName(in.Text, maxNameRunes); ok {
		return &domain.IntentResult{
			Action:     domain.ActionCreateTeam,
			Parameters: map[string]any{"teamName": name},
			Message:    fmt.Sprintf("팀 '%s'를 만들게요!", name),
		}
	}
	return &domain.IntentResult{
		Action:     domain.ActionNeedMoreInfo,
		Parameters: map[string]any{"type": domain.ClarifyTeamName},
		Message:    "새 팀 이름을 알려 주시겠어요?",
	}
}

func handleCreateTask(in Input) *domain.IntentResult {
	if title, ok := inlineName(in.Text, maxTitleRunes); ok {
		return taskResult(title)
	}
	if m := taskTitleRE.FindStringSubmatch(in.Text); m != nil {
		title := strings.TrimSpace(m[1])
		if !taskDeterminers[title] && validName(title, maxTitleRunes) {
			return taskResult(title)
		}
	}
	return &domain.IntentResult{
		Action:     domain.ActionNeedMoreInfo,
		Parameters: map[string]any{"type": domain.ClarifyTaskTitle},
		Message:    "어떤 할 일을 추가할까요? 제목을 알려 주세요.",
	}
}

// taskDeterminers are prefixes that announce a task without naming it.
var taskDeterminers = map[string]bool{
	"새": true, "새로운": true, "신규": true, "내": true, "우리": true,
}

func taskResult(title string) *domain.IntentResult {
	return &domain.IntentResult{
		Action:     domain.ActionCreateTask,
		Parameters: map[string]any{"title": title},
		Message:    fmt.Sprintf("할 일 '%s'을 추가할게요!", title),
	}
}

func handleAddMember(in Input) *domain.IntentResult {
	params := map[string]any{}
	if m := emailValue.FindStringSubmatch(in.Text); m != nil {
		params["memberEmail"] = m[1]
	} else if m := memberTarget.FindStringSubmatch(in.Text); m != nil {
		params["memberName"] = strings.TrimSpace(m[1])
	}
	return &domain.IntentResult{
		Action:     domain.ActionAddMember,
		Parameters: params,
		Message:    "멤버 추가를 진행할게요!",
	}
}

func handleCreateComment(in Input) *domain.IntentResult {
	params := map[string]any{}
	if m := quotedName.FindStringSubmatch(in.Text); m != nil {
		params["content"] = strings.TrimSpace(m[1])
	}
	return &domain.IntentResult{
		Action:     domain.ActionCreateComment,
		Parameters: params,
		Message:    "댓글을 남길게요!",
	}
}

func handleGetComments(in Input) *domain.IntentResult {
	return &domain.IntentResult{
		Action:     domain.ActionGetComments,
		Parameters: map[string]any{},
		Message:    "댓글을 가져올게요!",
	}
}

func handleAttendance(in Input) *domain.IntentResult {
	kind := "check_in"
	if strings.Contains(in.Text, "퇴근") {
		kind = "check_out"
	}
	return &domain.IntentResult{
		Action:     domain.ActionCheckAttendance,
		Parameters: map[string]any{"kind": kind},
		Message:    "출석체크를 진행할게요!",
	}
}

func matchProfileUpdate(in Input) bool {
	if profileWord.MatchString(in.Text) && editWord.MatchString(in.Text) {
		return true
	}
	return ageValue.MatchString(in.Text) ||
		nameChangeRE.MatchString(in.Text) ||
		(emailWord.MatchString(in.Text) && editWord.MatchString(in.Text))
}

// handleProfileUpdate normalizes the edited field to the fixed
// age/name/email set the profile service understands.
func handleProfileUpdate(in Input) *domain.IntentResult {
	params := map[string]any{}
	switch {
	case ageValue.MatchString(in.Text):
		m := ageValue.FindStringSubmatch(in.Text)
		params["field"] = "age"
		params["value"] = m[1]
	case nameChangeRE.MatchString(in.Text):
		m := nameChangeRE.FindStringSubmatch(in.Text)
		params["field"] = "name"
		params["value"] = strings.TrimSpace(m[1])
	case emailValue.MatchString(in.Text):
		m := emailValue.FindStringSubmatch(in.Text)
		params["field"] = "email"
		params["value"] = m[1]
	}
	return &domain.IntentResult{
		Action:     domain.ActionUpdateProfile,
		Parameters: params,
		Message:    "프로필을 수정할게요!",
	}
}

// matchContextualNameAnswer recognizes a bare name sent right after the
// assistant asked for one. It only fires when the stored pending
// clarification was lost but the prompt is still visible in history.
func matchContextualNameAnswer(in Input) bool {
	prompt, ok := lastAssistantTurn(in.History)
	if !ok || !nameQuestionRE.MatchString(prompt) {
		return false
	}
	_, ok = ExtractName(in.Text, domain.ClarifyWorkspaceName)
	return ok
}

func handleContextualNameAnswer(in Input) *domain.IntentResult {
	prompt, _ := lastAssistantTurn(in.History)
	clarificationType := domain.ClarifyWorkspaceName
	switch {
	case teamWord.MatchString(prompt):
		clarificationType = domain.ClarifyTeamName
	case taskWord.MatchString(prompt):
		clarificationType = domain.ClarifyTaskTitle
	}
	return ResolveClarification(in.Text, domain.Awaiting(clarificationType, nil))
}

func lastAssistantTurn(history []domain.ChatMessage) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleAssistant {
			return history[i].Content, true
		}
	}
	return "", false
}
