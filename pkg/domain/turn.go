package domain

// TurnRequest is one inbound conversation turn from a chat adapter.
// HumanInput carries an explicit approval decision when the caller is
// answering a pending review; a plain decision typed as the message works
// too, because a suspended conversation re-enters the review node either way.
type TurnRequest struct {
	ConversationID string `json:"conversationId"`
	Channel        string `json:"channel,omitempty"`
	Message        string `json:"message"`
	HumanInput     string `json:"humanInput,omitempty"`
}

// TurnResponse is the result of running one turn to suspension or
// termination.
type TurnResponse struct {
	ConversationID   string            `json:"conversationId"`
	Response         string            `json:"response"`
	Intent           string            `json:"intent,omitempty"`
	Entities         map[string]string `json:"entities,omitempty"`
	ToolResult       *ToolOutcome      `json:"toolResult,omitempty"`
	NeedsHumanReview bool              `json:"needsHumanReview"`
	RedirectURL      string            `json:"redirectUrl,omitempty"`
	Error            string            `json:"error,omitempty"`
}
