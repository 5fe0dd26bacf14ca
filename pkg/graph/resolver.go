package graph

import (
	"strconv"
	"strings"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/intent"
)

// End is the sentinel successor a resolver returns to stop the walk for
// this invocation. Whether that means suspension or termination is decided
// by the executor from the state flags.
const End = "__end__"

// Predicate evaluates a branch guard against the live state.
type Predicate func(*domain.ConversationState) bool

// Branch is one guarded successor. A nil When marks the default branch.
type Branch struct {
	Name   string
	When   Predicate
	Target string
}

// Resolver picks the successor of a conditional activity. Branches are
// evaluated in order; the first match wins.
type Resolver struct {
	ActivityID string
	Branches   []Branch
}

// Resolve returns the next activity id, or End to stop the walk.
func (r *Resolver) Resolve(state *domain.ConversationState) (string, error) {
	for _, b := range r.Branches {
		if b.When == nil || b.When(state) {
			return b.Target, nil
		}
	}
	return "", &RoutingError{ActivityID: r.ActivityID}
}

// routerResolver builds the canonical triage resolver. Targets are
// discovered at compile time by the kind of each outgoing connection:
// review wins over escalation wins over render, and render is the
// mandatory default.
func routerResolver(id string, review, agent, render string) *Resolver {
	branches := make([]Branch, 0, 3)
	if review != "" {
		branches = append(branches, Branch{
			Name:   "needs-review",
			When:   func(s *domain.ConversationState) bool { return s.NeedsHumanReview },
			Target: review,
		})
	}
	if agent != "" {
		branches = append(branches, Branch{
			Name:   "escalate",
			When:   func(s *domain.ConversationState) bool { return s.Intent == intent.Escalation },
			Target: agent,
		})
	}
	branches = append(branches, Branch{Name: "default", Target: render})
	return &Resolver{ActivityID: id, Branches: branches}
}

// reviewResolver governs the one legal cycle in a definition. A pending
// review suspends; a resolved review terminates unless a follow-up is
// wanted and the turn cap has not been exhausted, in which case the walk
// re-enters the back edge.
func reviewResolver(id, backEdge string, turnCap int) *Resolver {
	branches := []Branch{
		{
			Name:   "suspend",
			When:   func(s *domain.ConversationState) bool { return s.NeedsHumanReview },
			Target: End,
		},
		{
			Name:   "complete",
			When:   func(s *domain.ConversationState) bool { return s.WorkflowComplete },
			Target: End,
		},
	}
	if backEdge != "" {
		branches = append(branches, Branch{
			Name: "follow-up",
			When: func(s *domain.ConversationState) bool {
				return s.FollowUpNeeded && s.TurnCount <= turnCap
			},
			Target: backEdge,
		})
	}
	branches = append(branches, Branch{Name: "default", Target: End})
	return &Resolver{ActivityID: id, Branches: branches}
}

// conditionPredicate compiles one ConditionGroup into a Predicate with AND
// semantics. Returns a CompileError for fields outside the addressable set.
func conditionPredicate(activityID string, group *domain.ConditionGroup) (Predicate, error) {
	preds := make([]Predicate, 0, len(group.Rules))
	for _, rule := range group.Rules {
		p, err := rulePredicate(activityID, rule)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return func(s *domain.ConversationState) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}, nil
}

func rulePredicate(activityID string, rule domain.ConditionRule) (Predicate, error) {
	want := rule.Equals
	switch {
	case rule.Field == "intent":
		return func(s *domain.ConversationState) bool { return s.Intent == want }, nil
	case rule.Field == "channel":
		return func(s *domain.ConversationState) bool { return s.Channel == want }, nil
	case rule.Field == "needs_human_review":
		b, err := strconv.ParseBool(want)
		if err != nil {
			return nil, &CompileError{Code: ErrBadCondition, ActivityID: activityID,
				Detail: "needs_human_review expects a boolean, got " + strconv.Quote(want)}
		}
		return func(s *domain.ConversationState) bool { return s.NeedsHumanReview == b }, nil
	case rule.Field == "workflow_complete":
		b, err := strconv.ParseBool(want)
		if err != nil {
			return nil, &CompileError{Code: ErrBadCondition, ActivityID: activityID,
				Detail: "workflow_complete expects a boolean, got " + strconv.Quote(want)}
		}
		return func(s *domain.ConversationState) bool { return s.WorkflowComplete == b }, nil
	case strings.HasPrefix(rule.Field, "entity:"):
		key := strings.TrimPrefix(rule.Field, "entity:")
		return func(s *domain.ConversationState) bool { return s.Entities[key] == want }, nil
	default:
		return nil, &CompileError{Code: ErrBadCondition, ActivityID: activityID,
			Detail: "unknown condition field " + strconv.Quote(rule.Field)}
	}
}
