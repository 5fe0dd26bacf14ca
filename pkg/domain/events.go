package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventActivityEnter EventType = "activity_enter"
	EventActivityLeave EventType = "activity_leave"
	EventToolCall      EventType = "tool_call"
	EventToolReturn    EventType = "tool_return"
	EventTurnEnd       EventType = "turn_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
}

// ActivityEvent represents entry into or exit from a workflow activity.
type ActivityEvent struct {
	EventBase
	ActivityID string       `json:"activity_id"`
	Kind       ActivityKind `json:"kind"`
}

// ToolEvent represents a tool collaborator invocation.
type ToolEvent struct {
	EventBase
	ActivityID string `json:"activity_id"`
	Tool       string `json:"tool"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Turn outcomes reported through TurnEvent.
const (
	TurnOutcomeTerminated = "terminated"
	TurnOutcomeSuspended  = "suspended"
	TurnOutcomeFailed     = "failed"
)

// TurnEvent summarizes one executor invocation.
type TurnEvent struct {
	EventBase
	Outcome string `json:"outcome"`
	Steps   int    `json:"steps"`
}

// LifecycleHooks defines callbacks for engine observability. All hooks are
// optional; the executor skips nil entries.
type LifecycleHooks struct {
	OnActivityEnter func(context.Context, *ActivityEvent)
	OnActivityLeave func(context.Context, *ActivityEvent)
	OnToolCall      func(context.Context, *ToolEvent)
	OnToolReturn    func(context.Context, *ToolEvent)
	OnTurnEnd       func(context.Context, *TurnEvent)
}
