// Package graph compiles declarative workflow definitions into an immutable
// executable form. Compilation is all-or-nothing: every structural defect
// (duplicate ids, dangling edges, unknown kinds, missing default branches,
// cycles without a human review guard) is a CompileError, and a compiled
// graph is guaranteed walkable without structural surprises at runtime.
package graph

import (
	"fmt"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// DefaultTurnCap bounds how many times a conversation may loop through the
// review back edge before the resolver stops re-entering it.
const DefaultTurnCap = 5

// budgetFactor scales the per-invocation step budget off the node count.
const budgetFactor = 3

// Option adjusts compilation.
type Option func(*compileOptions)

type compileOptions struct {
	turnCap int
}

// WithTurnCap overrides DefaultTurnCap for the review resolver.
func WithTurnCap(n int) Option {
	return func(o *compileOptions) {
		if n > 0 {
			o.turnCap = n
		}
	}
}

// CompiledGraph is the immutable product of Compile. Safe for concurrent
// use; the executor walks it without further validation.
type CompiledGraph struct {
	start      string
	activities map[string]domain.Activity
	// successor holds the single target of linear nodes; conditional nodes
	// resolve through resolvers instead. Terminal nodes appear in neither.
	successor map[string]string
	resolvers map[string]*Resolver
	adjacency map[string][]string
}

// Start returns the entry activity id.
func (g *CompiledGraph) Start() string { return g.start }

// Activity looks up a node by id.
func (g *CompiledGraph) Activity(id string) (domain.Activity, bool) {
	a, ok := g.activities[id]
	return a, ok
}

// NodeCount returns the number of activities.
func (g *CompiledGraph) NodeCount() int { return len(g.activities) }

// StepBudget is the hard bound on activity executions per invocation. It
// scales with graph size so legitimate review loops fit while a runaway
// walk cannot starve the process.
func (g *CompiledGraph) StepBudget() int { return budgetFactor * len(g.activities) }

// Next resolves the successor of the given activity against the state.
// It returns End for terminal nodes.
func (g *CompiledGraph) Next(id string, state *domain.ConversationState) (string, error) {
	if r, ok := g.resolvers[id]; ok {
		return r.Resolve(state)
	}
	if target, ok := g.successor[id]; ok {
		return target, nil
	}
	if _, ok := g.activities[id]; !ok {
		return "", fmt.Errorf("graph: unknown activity %q", id)
	}
	return End, nil
}

// Compile validates the definition and produces the executable graph.
func Compile(def domain.GraphDefinition, opts ...Option) (*CompiledGraph, error) {
	options := compileOptions{turnCap: DefaultTurnCap}
	for _, opt := range opts {
		opt(&options)
	}

	activities := make(map[string]domain.Activity, len(def.Activities))
	for _, a := range def.Activities {
		if a.ID == "" {
			return nil, &CompileError{Code: ErrDuplicateActivity, Detail: "activity with empty id"}
		}
		if !a.Kind.Valid() {
			return nil, &CompileError{Code: ErrUnknownKind, ActivityID: a.ID,
				Detail: fmt.Sprintf("kind %q is not recognized", a.Kind)}
		}
		if _, exists := activities[a.ID]; exists {
			return nil, &CompileError{Code: ErrDuplicateActivity, ActivityID: a.ID,
				Detail: "activity id declared twice"}
		}
		activities[a.ID] = a
	}

	start := def.StartID
	if start == "" {
		for _, a := range def.Activities {
			if a.Kind == domain.KindStart {
				start = a.ID
				break
			}
		}
	}
	if _, ok := activities[start]; !ok {
		return nil, &CompileError{Code: ErrMissingStart, ActivityID: start,
			Detail: "no entry activity"}
	}

	outgoing := make(map[string][]domain.Connection)
	adjacency := make(map[string][]string)
	for _, c := range def.Connections {
		if _, ok := activities[c.SourceID]; !ok {
			return nil, &CompileError{Code: ErrDanglingConnection, ActivityID: c.SourceID,
				Detail: "connection source does not exist"}
		}
		if _, ok := activities[c.TargetID]; !ok {
			return nil, &CompileError{Code: ErrDanglingConnection, ActivityID: c.TargetID,
				Detail: fmt.Sprintf("connection target of %q does not exist", c.SourceID)}
		}
		outgoing[c.SourceID] = append(outgoing[c.SourceID], c)
		adjacency[c.SourceID] = append(adjacency[c.SourceID], c.TargetID)
	}

	g := &CompiledGraph{
		start:      start,
		activities: activities,
		successor:  make(map[string]string),
		resolvers:  make(map[string]*Resolver),
		adjacency:  adjacency,
	}

	for id, a := range activities {
		conns := outgoing[id]
		switch {
		case a.Kind == domain.KindRouter:
			r, err := buildRouter(a, conns, activities)
			if err != nil {
				return nil, err
			}
			g.resolvers[id] = r
		case a.Kind == domain.KindHumanReview:
			g.resolvers[id] = buildReview(a, conns, options.turnCap)
		case len(conns) > 1:
			r, err := buildConditional(a, conns)
			if err != nil {
				return nil, err
			}
			g.resolvers[id] = r
		case len(conns) == 1:
			g.successor[id] = conns[0].TargetID
		}
	}

	if err := checkCycles(g); err != nil {
		return nil, err
	}
	return g, nil
}

// buildRouter discovers branch targets among the router's outgoing edges by
// target kind. Render is the mandatory default; review and agent edges are
// optional and skipped when absent.
func buildRouter(a domain.Activity, conns []domain.Connection, activities map[string]domain.Activity) (*Resolver, error) {
	var review, agent, render string
	for _, c := range conns {
		switch activities[c.TargetID].Kind {
		case domain.KindHumanReview:
			review = c.TargetID
		case domain.KindAgent:
			agent = c.TargetID
		case domain.KindRender:
			render = c.TargetID
		}
	}
	if render == "" {
		return nil, &CompileError{Code: ErrMissingDefault, ActivityID: a.ID,
			Detail: "router has no render target to default to"}
	}
	return routerResolver(a.ID, review, agent, render), nil
}

// buildReview wires the review resolver with its optional back edge (the
// first outgoing connection, when present).
func buildReview(a domain.Activity, conns []domain.Connection, turnCap int) *Resolver {
	backEdge := ""
	if len(conns) > 0 {
		backEdge = conns[0].TargetID
	}
	return reviewResolver(a.ID, backEdge, turnCap)
}

// buildConditional compiles condition groups on a multi-edge node into an
// ordered branch list. Exactly the group-less connections act as defaults;
// at least one must exist.
func buildConditional(a domain.Activity, conns []domain.Connection) (*Resolver, error) {
	branches := make([]Branch, 0, len(conns))
	hasDefault := false
	for _, c := range conns {
		if c.ConditionGroup == nil {
			branches = append(branches, Branch{Name: "default", Target: c.TargetID})
			hasDefault = true
			continue
		}
		pred, err := conditionPredicate(a.ID, c.ConditionGroup)
		if err != nil {
			return nil, err
		}
		branches = append(branches, Branch{Name: "cond:" + c.TargetID, When: pred, Target: c.TargetID})
	}
	if !hasDefault {
		return nil, &CompileError{Code: ErrMissingDefault, ActivityID: a.ID,
			Detail: "conditional node has no default connection"}
	}
	return &Resolver{ActivityID: a.ID, Branches: branches}, nil
}

// checkCycles walks the adjacency with a DFS recursion stack. Every cycle
// found must contain a human review node, whose resolver is the only one
// allowed to re-enter earlier activities.
func checkCycles(g *CompiledGraph) error {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	colors := make(map[string]int, len(g.activities))
	stack := make([]string, 0, len(g.activities))

	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = inStack
		stack = append(stack, id)
		for _, next := range g.adjacency[id] {
			switch colors[next] {
			case inStack:
				cycle := extractCycle(stack, next)
				if !cycleGuarded(g, cycle) {
					return &CompileError{Code: ErrUnguardedCycle, ActivityID: next,
						Detail: fmt.Sprintf("cycle %v has no human review node", cycle)}
				}
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = done
		return nil
	}

	for id := range g.activities {
		if colors[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractCycle(stack []string, entry string) []string {
	for i, id := range stack {
		if id == entry {
			cycle := make([]string, len(stack)-i)
			copy(cycle, stack[i:])
			return cycle
		}
	}
	return []string{entry}
}

func cycleGuarded(g *CompiledGraph, cycle []string) bool {
	for _, id := range cycle {
		if g.activities[id].Kind == domain.KindHumanReview {
			return true
		}
	}
	return false
}
