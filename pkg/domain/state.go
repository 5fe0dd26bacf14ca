package domain

import "time"

// Message is one entry of the append-only conversation log.
type Message struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Document is a retrieved knowledge snippet (policy docs and similar).
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ConversationState is the full snapshot of one conversation. It is owned
// exclusively by a single Executor invocation at a time; turns share it only
// through the checkpoint store, which deep-copies on both sides.
//
// Invariants:
//   - NeedsHumanReview is true exactly when the last executed activity was
//     the human review node and it returned pending.
//   - WorkflowComplete implies CurrentActivity is a terminal node.
//   - TurnCount never decreases; it is incremented once per invocation that
//     reaches a human review node.
type ConversationState struct {
	ConversationID   string            `json:"conversation_id"`
	Channel          string            `json:"channel"`
	Input            string            `json:"input"`
	MessageLog       []Message         `json:"message_log"`
	Intent           string            `json:"intent,omitempty"`
	Entities         map[string]string `json:"entities"`
	ToolResult       *ToolOutcome      `json:"tool_result,omitempty"`
	Retrieved        []Document        `json:"retrieved,omitempty"`
	NeedsHumanReview bool              `json:"needs_human_review"`
	HumanInput       string            `json:"human_input,omitempty"`
	Response         string            `json:"response,omitempty"`
	CurrentActivity  string            `json:"current_activity"`
	WorkflowComplete bool              `json:"workflow_complete"`
	FollowUpNeeded   bool              `json:"follow_up_needed"`
	RedirectURL      string            `json:"redirect_url,omitempty"`
	TurnCount        int               `json:"turn_count"`
}

// NewState creates a clean state positioned at the given entry activity.
func NewState(conversationID, channel, startActivity string) *ConversationState {
	return &ConversationState{
		ConversationID:  conversationID,
		Channel:         channel,
		Entities:        make(map[string]string),
		CurrentActivity: startActivity,
	}
}

// Clone returns a deep copy. Stores use it so no two turns alias memory.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	next := *s
	next.Entities = make(map[string]string, len(s.Entities))
	for k, v := range s.Entities {
		next.Entities[k] = v
	}
	if s.MessageLog != nil {
		next.MessageLog = make([]Message, len(s.MessageLog))
		copy(next.MessageLog, s.MessageLog)
	}
	if s.Retrieved != nil {
		next.Retrieved = make([]Document, len(s.Retrieved))
		copy(next.Retrieved, s.Retrieved)
	}
	next.ToolResult = s.ToolResult.Clone()
	return &next
}

// AppendMessage records a log entry. The log is append-only; nothing in the
// engine ever rewrites it.
func (s *ConversationState) AppendMessage(role, text string) {
	s.MessageLog = append(s.MessageLog, Message{Role: role, Text: text, At: time.Now().UTC()})
}
