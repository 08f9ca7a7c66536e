/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package agent runs the conversational loop: it holds per-session history,
// drives the reasoning model through a bounded tool-use loop and streams
// ordered events to whoever is listening.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"landuse-agent/internal/tools"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolResult is the outcome of one tool call, fed back to the model.
type ToolResult struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Turn is one entry of a session's history. Exactly one of Text, ToolCalls
// or ToolResult carries the payload, depending on Role.
type Turn struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Text       string      `json:"text,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func newTurn(role Role) Turn {
	return Turn{ID: uuid.NewString(), Role: role, CreatedAt: time.Now()}
}

// State is the lifecycle position of a session's request loop.
type State string

const (
	StateIdle         State = "idle"
	StateReasoning    State = "reasoning"
	StateToolDispatch State = "tool_dispatch"
	StateToolAwait    State = "tool_await"
	StateFinalizing   State = "finalizing"
)

// Decision is one reasoning step's outcome. A non-empty ToolCalls slice
// means the model wants tool output before it can answer; otherwise Text is
// the answer itself.
type Decision struct {
	Text      string
	ToolCalls []ToolCall
}

// Reasoner produces the next decision from the conversation so far. The
// implementations live in the llm package; tests substitute scripted ones.
type Reasoner interface {
	Reason(ctx context.Context, history []Turn, specs []tools.Spec) (Decision, error)
}
