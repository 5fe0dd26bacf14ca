package domain

// ToolOutcome is the recorded result of a tool collaborator call. Data
// carries the intent-specific payload (order summary, tracking info, refund
// ticket) as a generic map; consumers decode it into typed view models.
type ToolOutcome struct {
	Tool             string         `json:"tool"`
	Success          bool           `json:"success"`
	RequiresApproval bool           `json:"requires_approval"`
	NeedsHumanReview bool           `json:"needs_human_review"`
	Message          string         `json:"message,omitempty"`
	Error            string         `json:"error,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
}

// Failed reports whether the outcome represents a collaborator failure.
func (o *ToolOutcome) Failed() bool {
	return o != nil && o.Error != ""
}

// Clone returns a deep copy of the outcome.
func (o *ToolOutcome) Clone() *ToolOutcome {
	if o == nil {
		return nil
	}
	next := *o
	if o.Data != nil {
		next.Data = make(map[string]any, len(o.Data))
		for k, v := range o.Data {
			next.Data[k] = v
		}
	}
	return &next
}

// FailedOutcome builds the error shape the executor records when a handler
// or collaborator fails. Resolvers downstream route it to the render node.
func FailedOutcome(tool, message string) *ToolOutcome {
	return &ToolOutcome{Tool: tool, Error: message}
}
