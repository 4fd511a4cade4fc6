package domain

// Action names form an open enumeration; the CRUD layer that calls the
// resolver interprets them and triggers the matching side effect.
const (
	ActionCreateWorkspace = "create_workspace"
	ActionCreateTeam      = "create_team"
	ActionCreateTask      = "create_task"
	ActionAddMember       = "add_member"
	ActionCreateComment   = "create_comment"
	ActionGetComments     = "get_comments"
	ActionCheckAttendance = "check_attendance"
	ActionUpdateProfile   = "update_profile"
	ActionGreeting        = "greeting"
	ActionThanks          = "thanks"
	ActionHelp            = "help"
	ActionGeneralChat     = "general_chat"
	ActionNeedMoreInfo    = "need_more_info"
	ActionError           = "error"
)

// Clarification types selecting the name-extraction rule that applies
// to the next user turn.
const (
	ClarifyWorkspaceName = "workspace_name"
	ClarifyTeamName      = "team_name"
	ClarifyTaskTitle     = "task_title"
)

// IntentResult is the structured interpretation of one chat message.
// Every resolver path terminates in a well-formed value; Message always
// carries human-readable text, never an internal error.
type IntentResult struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Message    string         `json:"message"`
}

// NeedsMoreInfo reports whether the result demands another user turn.
func (r *IntentResult) NeedsMoreInfo() bool {
	return r != nil && r.Action == ActionNeedMoreInfo
}

// ClarificationType returns the requested clarification type for a
// need_more_info result, or empty.
func (r *IntentResult) ClarificationType() string {
	if !r.NeedsMoreInfo() || r.Parameters == nil {
		return ""
	}
	typ, _ := r.Parameters["type"].(string)
	return typ
}
