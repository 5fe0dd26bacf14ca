package domain

// ActivityKind identifies the behavior of a workflow activity. The set is
// closed: the compiler rejects definitions referencing any other value, and
// the engine dispatches handlers by kind.
type ActivityKind string

const (
	// KindStart is the workflow entry point.
	KindStart ActivityKind = "start"
	// KindIntake extracts entities from raw input and classifies intent.
	KindIntake ActivityKind = "intake"
	// KindRetrieval fetches supporting documents for the current intent.
	KindRetrieval ActivityKind = "retrieval"
	// KindClassify refines the intent, optionally via a model-based classifier.
	KindClassify ActivityKind = "classify"
	// KindTool dispatches order operations (status, price, tracking, refund).
	KindTool ActivityKind = "tool"
	// KindRouter is a pure conditional node; its resolver picks the branch.
	KindRouter ActivityKind = "router"
	// KindRender formats the user-facing response.
	KindRender ActivityKind = "render"
	// KindAgent delegates to a text generation collaborator.
	KindAgent ActivityKind = "agent"
	// KindHumanReview suspends the workflow pending a human decision.
	KindHumanReview ActivityKind = "human_review"
)

// Valid reports whether k is a member of the closed kind set.
func (k ActivityKind) Valid() bool {
	switch k {
	case KindStart, KindIntake, KindRetrieval, KindClassify, KindTool,
		KindRouter, KindRender, KindAgent, KindHumanReview:
		return true
	}
	return false
}

// Activity is one node of the declarative graph. Immutable after compile.
type Activity struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Kind       ActivityKind `json:"kind" yaml:"kind"`
	HandlerRef string       `json:"handlerRef,omitempty" yaml:"handler_ref,omitempty"`
}

// ConditionRule is a single field comparison inside a condition group.
// Field addresses a state field ("intent", "needs_human_review",
// "workflow_complete", "channel") or an entity via the "entity:" prefix.
type ConditionRule struct {
	Field  string `json:"field" yaml:"field" mapstructure:"field"`
	Equals string `json:"equals" yaml:"equals" mapstructure:"equals"`
}

// ConditionGroup guards a connection out of a conditional node. All rules
// must match (AND semantics). A connection without a group is the default
// branch of its source node.
type ConditionGroup struct {
	Rules []ConditionRule `json:"rules" yaml:"rules" mapstructure:"rules"`
}

// Connection is a directed edge between two activities. A node with more
// than one outgoing connection is conditional and resolves through the
// routing policy; exactly one is linear; zero is implicitly terminal.
type Connection struct {
	SourceID       string          `json:"sourceId" yaml:"source_id"`
	TargetID       string          `json:"targetId" yaml:"target_id"`
	ConditionGroup *ConditionGroup `json:"conditionGroup,omitempty" yaml:"condition_group,omitempty"`
}

// GraphDefinition is the declarative input artifact: the full set of
// activities and connections plus the entry activity id.
type GraphDefinition struct {
	Activities  []Activity   `json:"activities" yaml:"activities"`
	Connections []Connection `json:"connections" yaml:"connections"`
	StartID     string       `json:"startId" yaml:"start_id"`
}
