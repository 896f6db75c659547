package models

import "time"

// Message roles. Tool results ride on the assistant message's ToolCalls
// rather than as messages of their own.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is append-only: once written it is never mutated, and the
// autoincrement ID is the ordering key within a conversation.
type Message struct {
	ID              int64            `json:"id"`
	ConvID          string           `json:"conversation_id"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	CreatedAt       time.Time        `json:"created_at"`
	ToolCalls       []ToolCallResult `json:"tool_calls,omitempty"`
	IntentDetected  string           `json:"intent_detected,omitempty"`
	SkillAgentUsed  string           `json:"skill_agent_used,omitempty"`
	ConfidenceScore *float64         `json:"confidence_score,omitempty"`
}

// ToolCallResult records one tool execution for a turn. Failures are data,
// not errors: a failing tool never aborts the turn that requested it.
type ToolCallResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}
