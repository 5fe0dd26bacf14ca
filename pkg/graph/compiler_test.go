package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/intent"
)

func compileDefault(t *testing.T, opts ...Option) *CompiledGraph {
	t.Helper()
	g, err := Compile(DefaultDefinition(), opts...)
	require.NoError(t, err)
	return g
}

func TestCompileDefaultDefinition(t *testing.T) {
	g := compileDefault(t)

	assert.Equal(t, "start", g.Start())
	assert.Equal(t, 9, g.NodeCount())
	assert.Equal(t, 27, g.StepBudget())

	_, ok := g.Activity("router")
	assert.True(t, ok)
	_, ok = g.Activity("ghost")
	assert.False(t, ok)
}

func TestCompileRejections(t *testing.T) {
	base := DefaultDefinition()

	tests := []struct {
		name   string
		mutate func(*domain.GraphDefinition)
		code   CompileErrorCode
	}{
		{
			name: "duplicate activity id",
			mutate: func(d *domain.GraphDefinition) {
				d.Activities = append(d.Activities, domain.Activity{ID: "intake", Kind: domain.KindIntake})
			},
			code: ErrDuplicateActivity,
		},
		{
			name: "dangling connection target",
			mutate: func(d *domain.GraphDefinition) {
				d.Connections = append(d.Connections, domain.Connection{SourceID: "render", TargetID: "nowhere"})
			},
			code: ErrDanglingConnection,
		},
		{
			name: "dangling connection source",
			mutate: func(d *domain.GraphDefinition) {
				d.Connections = append(d.Connections, domain.Connection{SourceID: "nowhere", TargetID: "render"})
			},
			code: ErrDanglingConnection,
		},
		{
			name: "unknown kind",
			mutate: func(d *domain.GraphDefinition) {
				d.Activities = append(d.Activities, domain.Activity{ID: "odd", Kind: "teleport"})
			},
			code: ErrUnknownKind,
		},
		{
			name: "missing start",
			mutate: func(d *domain.GraphDefinition) {
				d.StartID = "absent"
			},
			code: ErrMissingStart,
		},
		{
			name: "router without render target",
			mutate: func(d *domain.GraphDefinition) {
				conns := d.Connections[:0]
				for _, c := range d.Connections {
					if c.SourceID == "router" && c.TargetID == "render" {
						continue
					}
					conns = append(conns, c)
				}
				d.Connections = conns
			},
			code: ErrMissingDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := base
			def.Activities = append([]domain.Activity(nil), base.Activities...)
			def.Connections = append([]domain.Connection(nil), base.Connections...)
			tt.mutate(&def)

			_, err := Compile(def)
			var cerr *CompileError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.code, cerr.Code)
		})
	}
}

func TestCompileUnguardedCycle(t *testing.T) {
	def := domain.GraphDefinition{
		StartID: "a",
		Activities: []domain.Activity{
			{ID: "a", Kind: domain.KindStart},
			{ID: "b", Kind: domain.KindIntake},
			{ID: "c", Kind: domain.KindClassify},
		},
		Connections: []domain.Connection{
			{SourceID: "a", TargetID: "b"},
			{SourceID: "b", TargetID: "c"},
			{SourceID: "c", TargetID: "b"},
		},
	}

	_, err := Compile(def)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrUnguardedCycle, cerr.Code)
}

func TestCompileGuardedCycleAccepted(t *testing.T) {
	// The default definition's review back edge is the guarded cycle.
	g := compileDefault(t)
	_, ok := g.Activity("review")
	require.True(t, ok)
}

func TestCompileConditionalNode(t *testing.T) {
	group := &domain.ConditionGroup{Rules: []domain.ConditionRule{{Field: "channel", Equals: "sms"}}}
	def := domain.GraphDefinition{
		StartID: "a",
		Activities: []domain.Activity{
			{ID: "a", Kind: domain.KindStart},
			{ID: "b", Kind: domain.KindRender},
			{ID: "c", Kind: domain.KindRender},
		},
		Connections: []domain.Connection{
			{SourceID: "a", TargetID: "b", ConditionGroup: group},
			{SourceID: "a", TargetID: "c"},
		},
	}

	g, err := Compile(def)
	require.NoError(t, err)

	state := domain.NewState("t", "sms", "a")
	next, err := g.Next("a", state)
	require.NoError(t, err)
	assert.Equal(t, "b", next)

	state.Channel = "chat"
	next, err = g.Next("a", state)
	require.NoError(t, err)
	assert.Equal(t, "c", next)
}

func TestCompileConditionalMissingDefault(t *testing.T) {
	group := &domain.ConditionGroup{Rules: []domain.ConditionRule{{Field: "channel", Equals: "sms"}}}
	def := domain.GraphDefinition{
		StartID: "a",
		Activities: []domain.Activity{
			{ID: "a", Kind: domain.KindStart},
			{ID: "b", Kind: domain.KindRender},
			{ID: "c", Kind: domain.KindRender},
		},
		Connections: []domain.Connection{
			{SourceID: "a", TargetID: "b", ConditionGroup: group},
			{SourceID: "a", TargetID: "c", ConditionGroup: group},
		},
	}

	_, err := Compile(def)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrMissingDefault, cerr.Code)
}

func TestCompileBadConditionField(t *testing.T) {
	group := &domain.ConditionGroup{Rules: []domain.ConditionRule{{Field: "mood", Equals: "great"}}}
	def := domain.GraphDefinition{
		StartID: "a",
		Activities: []domain.Activity{
			{ID: "a", Kind: domain.KindStart},
			{ID: "b", Kind: domain.KindRender},
			{ID: "c", Kind: domain.KindRender},
		},
		Connections: []domain.Connection{
			{SourceID: "a", TargetID: "b", ConditionGroup: group},
			{SourceID: "a", TargetID: "c"},
		},
	}

	_, err := Compile(def)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrBadCondition, cerr.Code)
}

func TestRouterResolution(t *testing.T) {
	g := compileDefault(t)

	tests := []struct {
		name string
		prep func(*domain.ConversationState)
		want string
	}{
		{
			name: "review takes priority",
			prep: func(s *domain.ConversationState) {
				s.NeedsHumanReview = true
				s.Intent = intent.Escalation
			},
			want: "review",
		},
		{
			name: "escalation routes to agent",
			prep: func(s *domain.ConversationState) { s.Intent = intent.Escalation },
			want: "agent",
		},
		{
			name: "everything else renders",
			prep: func(s *domain.ConversationState) { s.Intent = intent.OrderStatus },
			want: "render",
		},
		{
			name: "no intent still renders",
			prep: func(s *domain.ConversationState) {},
			want: "render",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := domain.NewState("t", "chat", "router")
			tt.prep(state)
			next, err := g.Next("router", state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestReviewResolution(t *testing.T) {
	g := compileDefault(t, WithTurnCap(3))

	tests := []struct {
		name string
		prep func(*domain.ConversationState)
		want string
	}{
		{
			name: "pending review suspends",
			prep: func(s *domain.ConversationState) { s.NeedsHumanReview = true },
			want: End,
		},
		{
			name: "completed workflow terminates",
			prep: func(s *domain.ConversationState) { s.WorkflowComplete = true },
			want: End,
		},
		{
			name: "follow-up within cap re-enters classify",
			prep: func(s *domain.ConversationState) {
				s.FollowUpNeeded = true
				s.TurnCount = 3
			},
			want: "classify",
		},
		{
			name: "follow-up beyond cap terminates",
			prep: func(s *domain.ConversationState) {
				s.FollowUpNeeded = true
				s.TurnCount = 4
			},
			want: End,
		},
		{
			name: "resolved without follow-up terminates",
			prep: func(s *domain.ConversationState) {},
			want: End,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := domain.NewState("t", "chat", "review")
			tt.prep(state)
			next, err := g.Next("review", state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextLinearAndTerminal(t *testing.T) {
	g := compileDefault(t)
	state := domain.NewState("t", "chat", "start")

	next, err := g.Next("start", state)
	require.NoError(t, err)
	assert.Equal(t, "intake", next)

	next, err = g.Next("render", state)
	require.NoError(t, err)
	assert.Equal(t, End, next)

	_, err = g.Next("ghost", state)
	assert.Error(t, err)
}

func TestResolverNoMatch(t *testing.T) {
	r := &Resolver{ActivityID: "x", Branches: []Branch{
		{When: func(*domain.ConversationState) bool { return false }, Target: "y"},
	}}
	_, err := r.Resolve(domain.NewState("t", "chat", "x"))
	var rerr *RoutingError
	assert.True(t, errors.As(err, &rerr))
}
