package domain

import "time"

// ResolverLimits bounds the resolver's interaction with the completion
// service. Zero values fall back to defaults at construction.
type ResolverLimits struct {
	CompletionTimeout  time.Duration
	PromptHistoryTurns int
}
