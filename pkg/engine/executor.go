// Package engine runs conversations over a compiled workflow graph. The
// Executor drives one turn at a time: it loads the checkpoint, walks
// activities until a resolver returns End, and commits exactly one new
// checkpoint. A turn ends suspended (awaiting a human decision),
// terminated (response delivered), or failed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/ordercopilot/lattice/internal/logging"
	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/graph"
	"github.com/ordercopilot/lattice/pkg/session"
)

const defaultFollowUpQuestion = "Is there anything else I can help you with?"

// Executor runs turns against a compiled graph.
type Executor struct {
	graph    *graph.CompiledGraph
	sessions *session.Manager
	handlers map[domain.ActivityKind]Handler
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	budget   int
	review   *reviewHandler
}

// Option configures the Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithHooks installs lifecycle hooks for observability.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) { e.hooks = hooks }
}

// WithStepBudget overrides the graph-derived step budget.
func WithStepBudget(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.budget = n
		}
	}
}

// WithTurnCap bounds how many unclear review replies are tolerated before
// the refund is cancelled. Must match the cap the graph was compiled with.
func WithTurnCap(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.review.turnCap = n
		}
	}
}

// WithFollowUp enables the post-resolution follow-up loop. An empty
// question keeps the default.
func WithFollowUp(question string) Option {
	return func(e *Executor) {
		e.review.allowFollowUp = true
		if question != "" {
			e.review.followUpQuestion = question
		}
	}
}

// New builds an Executor over the graph and session manager.
func New(g *graph.CompiledGraph, sessions *session.Manager, deps Dependencies, opts ...Option) *Executor {
	e := &Executor{
		graph:    g,
		sessions: sessions,
		logger:   logging.NewNop(),
		budget:   g.StepBudget(),
		review: &reviewHandler{
			orders:           deps.Orders,
			turnCap:          graph.DefaultTurnCap,
			followUpQuestion: defaultFollowUpQuestion,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.review.logger = e.logger
	e.handlers = buildHandlers(deps, e.logger, e.review)
	return e
}

// Step executes one turn. The conversation lock is held for the whole
// turn, so concurrent requests on the same conversation serialize. The
// checkpoint commit runs on a detached context: once the walk finished,
// a client disconnect cannot tear the turn in half.
func (e *Executor) Step(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	channel := req.Channel
	if channel == "" {
		channel = "chat"
	}

	var resp *domain.TurnResponse
	err := e.sessions.WithLock(ctx, conversationID, func(ctx context.Context) error {
		store := e.sessions.Store()

		state, err := store.Get(ctx, conversationID)
		switch {
		case errors.Is(err, domain.ErrConversationNotFound):
			state = domain.NewState(conversationID, channel, e.graph.Start())
		case err != nil:
			e.logger.Warn("checkpoint unreadable, starting fresh",
				"conversation_id", conversationID, "error", err)
			state = domain.NewState(conversationID, channel, e.graph.Start())
		default:
			if _, ok := e.graph.Activity(state.CurrentActivity); !ok {
				e.logger.Warn("checkpoint references unknown activity, starting fresh",
					"conversation_id", conversationID, "activity", state.CurrentActivity)
				state = domain.NewState(conversationID, channel, e.graph.Start())
			}
		}

		e.mergeRequest(state, req)

		start := time.Now()
		outcome, steps, werr := e.walk(ctx, state)
		e.emitTurnEnd(ctx, conversationID, outcome, steps)
		e.logger.Debug("turn finished",
			"conversation_id", conversationID,
			"outcome", outcome,
			"steps", steps,
			"duration", time.Since(start),
		)
		if werr != nil {
			// Structural failure: keep the previous checkpoint intact.
			return werr
		}

		if state.Response != "" {
			state.AppendMessage("assistant", state.Response)
		}

		commitCtx := context.WithoutCancel(ctx)
		if err := store.Put(commitCtx, conversationID, state); err != nil {
			return fmt.Errorf("commit checkpoint: %w", err)
		}

		resp = responseFrom(state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// mergeRequest folds the inbound turn into the state. A suspended
// conversation resumes at the persisted review activity with the decision
// text; anything else resets the per-turn fields and starts at the entry
// activity, preserving the log, entities, and turn count.
func (e *Executor) mergeRequest(state *domain.ConversationState, req domain.TurnRequest) {
	if state.NeedsHumanReview {
		decision := req.HumanInput
		if decision == "" {
			decision = req.Message
		}
		state.HumanInput = decision
		if decision != "" {
			state.AppendMessage("user", decision)
		}
		return
	}

	state.Input = req.Message
	state.Response = ""
	state.ToolResult = nil
	state.Retrieved = nil
	state.HumanInput = ""
	state.RedirectURL = ""
	state.Intent = ""
	state.FollowUpNeeded = false
	state.WorkflowComplete = false
	state.CurrentActivity = e.graph.Start()
	if req.Message != "" {
		state.AppendMessage("user", req.Message)
	}
}

// walk runs activities until a resolver returns End or the budget runs
// out. Handler errors and panics are isolated into a failed outcome on the
// state and the walk keeps resolving, so the turn still terminates at a
// real terminal node; only structural problems surface as a Go error.
func (e *Executor) walk(ctx context.Context, state *domain.ConversationState) (string, int, error) {
	steps := 0
	current := state.CurrentActivity
	countedTurn := false
	failed := false

	for {
		if steps >= e.budget {
			return domain.TurnOutcomeFailed, steps,
				fmt.Errorf("engine: step budget %d exhausted at %q", e.budget, current)
		}
		act, ok := e.graph.Activity(current)
		if !ok {
			return domain.TurnOutcomeFailed, steps, fmt.Errorf("engine: unknown activity %q", current)
		}
		state.CurrentActivity = current

		if act.Kind == domain.KindHumanReview && !countedTurn {
			state.TurnCount++
			countedTurn = true
		}

		e.emitActivity(ctx, domain.EventActivityEnter, state.ConversationID, act)
		err := e.executeHandler(ctx, act, state)
		e.emitActivity(ctx, domain.EventActivityLeave, state.ConversationID, act)
		steps++

		if err != nil {
			e.logger.Error("activity handler failed",
				"conversation_id", state.ConversationID,
				"activity", act.ID,
				"error", err,
			)
			state.ToolResult = domain.FailedOutcome(act.ID, err.Error())
			state.Response = ""
			state.NeedsHumanReview = false
			failed = true
		}

		next, err := e.graph.Next(current, state)
		if err != nil {
			return domain.TurnOutcomeFailed, steps, err
		}
		if next == graph.End {
			if state.NeedsHumanReview {
				return domain.TurnOutcomeSuspended, steps, nil
			}
			state.WorkflowComplete = true
			if failed {
				// The failing node may have been render itself.
				if state.Response == "" {
					state.Response = failureResponse
				}
				return domain.TurnOutcomeFailed, steps, nil
			}
			return domain.TurnOutcomeTerminated, steps, nil
		}
		current = next
	}
}

func (e *Executor) executeHandler(ctx context.Context, act domain.Activity, state *domain.ConversationState) (err error) {
	handler, ok := e.handlers[act.Kind]
	if !ok || handler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("activity %s panicked: %v", act.ID, r)
		}
	}()

	if act.Kind == domain.KindTool {
		e.emitTool(ctx, domain.EventToolCall, state, act, false)
		err = handler.Execute(ctx, state)
		e.emitTool(ctx, domain.EventToolReturn, state, act, err != nil || state.ToolResult.Failed())
		return err
	}
	return handler.Execute(ctx, state)
}

func responseFrom(state *domain.ConversationState) *domain.TurnResponse {
	resp := &domain.TurnResponse{
		ConversationID:   state.ConversationID,
		Response:         state.Response,
		Intent:           state.Intent,
		Entities:         state.Entities,
		ToolResult:       state.ToolResult,
		NeedsHumanReview: state.NeedsHumanReview,
		RedirectURL:      state.RedirectURL,
	}
	if state.ToolResult.Failed() {
		resp.Error = state.ToolResult.Error
	}
	return resp
}

func (e *Executor) emitActivity(ctx context.Context, typ domain.EventType, conversationID string, act domain.Activity) {
	hook := e.hooks.OnActivityEnter
	if typ == domain.EventActivityLeave {
		hook = e.hooks.OnActivityLeave
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.ActivityEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: typ, ConversationID: conversationID},
		ActivityID: act.ID,
		Kind:       act.Kind,
	})
}

func (e *Executor) emitTool(ctx context.Context, typ domain.EventType, state *domain.ConversationState, act domain.Activity, isError bool) {
	hook := e.hooks.OnToolCall
	if typ == domain.EventToolReturn {
		hook = e.hooks.OnToolReturn
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.ToolEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: typ, ConversationID: state.ConversationID},
		ActivityID: act.ID,
		Tool:       state.Intent,
		IsError:    isError,
	})
}

func (e *Executor) emitTurnEnd(ctx context.Context, conversationID, outcome string, steps int) {
	if e.hooks.OnTurnEnd == nil {
		return
	}
	e.hooks.OnTurnEnd(ctx, &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTurnEnd, ConversationID: conversationID},
		Outcome:   outcome,
		Steps:     steps,
	})
}
