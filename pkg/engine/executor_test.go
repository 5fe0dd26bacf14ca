package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercopilot/lattice/pkg/adapters/memory"
	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/graph"
	"github.com/ordercopilot/lattice/pkg/intent"
	"github.com/ordercopilot/lattice/pkg/orders"
	"github.com/ordercopilot/lattice/pkg/session"
)

type fixture struct {
	executor *Executor
	store    *memory.Store
	orders   *orders.MemoryService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	g, err := graph.Compile(graph.DefaultDefinition())
	require.NoError(t, err)

	store := memory.NewStore()
	svc := orders.NewMemoryService()
	deps := Dependencies{
		Orders:    svc,
		Retriever: memory.NewRetriever(nil),
	}
	return &fixture{
		executor: New(g, session.NewManager(store), deps, opts...),
		store:    store,
		orders:   svc,
	}
}

func (f *fixture) step(t *testing.T, conversationID, message string) *domain.TurnResponse {
	t.Helper()
	resp, err := f.executor.Step(context.Background(), domain.TurnRequest{
		ConversationID: conversationID,
		Message:        message,
	})
	require.NoError(t, err)
	return resp
}

func TestStepOrderStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "what is the status of order 12345")
	assert.Equal(t, intent.OrderStatus, resp.Intent)
	assert.Contains(t, resp.Response, "Order 12345 is currently **Shipped**")
	assert.Contains(t, resp.Response, "UPS")
	assert.Contains(t, resp.Response, "1Z999AA10123456784")
	assert.False(t, resp.NeedsHumanReview)
}

func TestStepOrderPrice(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "how much did order 12345 cost")
	assert.Equal(t, intent.OrderPrice, resp.Intent)
	assert.Contains(t, resp.Response, "$215.99")
	assert.Contains(t, resp.Response, "subtotal $199.99")
}

func TestStepTracking(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "track order 67890")
	assert.Equal(t, intent.TrackOrder, resp.Intent)
	assert.Contains(t, resp.Response, "FedEx")
	assert.Contains(t, resp.Response, "Chicago, IL")

	resp = f.step(t, "c2", "track order 22222")
	assert.Contains(t, resp.Response, "has not shipped yet")
}

func TestStepOrderNotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "check order 99999")
	assert.Contains(t, resp.Response, "couldn't find order 99999")
	assert.Empty(t, resp.Error)
}

func TestStepChitChatWithoutOrderID(t *testing.T) {
	f := newFixture(t)

	// An order question without an id never classifies as an order intent.
	resp := f.step(t, "c1", "what is the status of my order")
	assert.Equal(t, intent.ChitChat, resp.Intent)
	assert.Contains(t, resp.Response, "order status")
}

func TestStepPolicyQuestion(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "what is your return policy")
	assert.Equal(t, intent.PolicyQuestion, resp.Intent)
	assert.Contains(t, resp.Response, "30 days")
	assert.Contains(t, resp.Response, "Source:")
}

func TestStepAgentEscalation(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "which bolt should I use for decking")
	assert.Equal(t, intent.FastenerSearch, resp.Intent)
	assert.NotEmpty(t, resp.Response)
	assert.False(t, resp.NeedsHumanReview)
}

func TestStepEntitiesPersistAcrossTurns(t *testing.T) {
	f := newFixture(t)

	f.step(t, "c1", "check order 12345")
	resp := f.step(t, "c1", "and how much did it cost")

	assert.Equal(t, intent.OrderPrice, resp.Intent)
	assert.Contains(t, resp.Response, "Order 12345 total")
}

func TestStepGeneratesConversationID(t *testing.T) {
	f := newFixture(t)

	resp, err := f.executor.Step(context.Background(), domain.TurnRequest{Message: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)

	_, err = f.store.Get(context.Background(), resp.ConversationID)
	assert.NoError(t, err)
}

func TestRefundSuspendsForApproval(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "I want a refund for order 11111")
	assert.Equal(t, intent.Refund, resp.Intent)
	assert.True(t, resp.NeedsHumanReview)
	assert.Contains(t, resp.Response, "Pending Approval")
	assert.Equal(t, "/return?orderId=11111", resp.RedirectURL)

	state, err := f.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, state.NeedsHumanReview)
	assert.Equal(t, "review", state.CurrentActivity)
	assert.Equal(t, 1, state.TurnCount)
}

func TestRefundApproval(t *testing.T) {
	f := newFixture(t)

	f.step(t, "c1", "I want a refund for order 11111")
	resp := f.step(t, "c1", "yes")

	assert.False(t, resp.NeedsHumanReview)
	assert.Contains(t, resp.Response, "Refund Approved")

	state, err := f.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, state.WorkflowComplete)
	assert.False(t, state.NeedsHumanReview)
}

func TestRefundRejection(t *testing.T) {
	f := newFixture(t)

	f.step(t, "c1", "refund order 11111 please")
	resp := f.step(t, "c1", "no")

	assert.False(t, resp.NeedsHumanReview)
	assert.Contains(t, resp.Response, "Refund Rejected")
}

func TestRefundApprovalTokens(t *testing.T) {
	for _, token := range []string{"yes", "Y", "approve", "Approved", "CONFIRM"} {
		t.Run(token, func(t *testing.T) {
			f := newFixture(t)
			f.step(t, "c1", "refund order 11111")
			resp := f.step(t, "c1", token)
			assert.Contains(t, resp.Response, "Refund Approved")
		})
	}
}

func TestRefundUnclearReplyStaysPending(t *testing.T) {
	f := newFixture(t)

	f.step(t, "c1", "refund order 11111")
	resp := f.step(t, "c1", "maybe later?")

	assert.True(t, resp.NeedsHumanReview)
	assert.Contains(t, resp.Response, "didn't catch that")

	// A clear answer afterwards still resolves.
	resp = f.step(t, "c1", "yes")
	assert.Contains(t, resp.Response, "Refund Approved")
}

func TestRefundUnclearRepliesHitTurnCap(t *testing.T) {
	f := newFixture(t, WithTurnCap(2))

	f.step(t, "c1", "refund order 11111") // TurnCount 1
	resp := f.step(t, "c1", "hmm")        // 2, still within cap
	assert.True(t, resp.NeedsHumanReview)

	resp = f.step(t, "c1", "dunno") // 3 > cap, auto-cancel
	assert.False(t, resp.NeedsHumanReview)
	assert.Contains(t, resp.Response, "cancelled")

	state, err := f.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, state.WorkflowComplete)
}

func TestRefundNotEligible(t *testing.T) {
	f := newFixture(t)

	resp := f.step(t, "c1", "I want a refund for order 12345")
	assert.False(t, resp.NeedsHumanReview)
	assert.Contains(t, resp.Response, "not eligible")
	assert.Contains(t, resp.Response, "Shipped")
}

func TestRefundFollowUp(t *testing.T) {
	f := newFixture(t, WithFollowUp(""))

	f.step(t, "c1", "refund order 11111")
	resp := f.step(t, "c1", "yes")

	assert.False(t, resp.NeedsHumanReview)
	assert.Contains(t, resp.Response, "Refund Approved")
	assert.Contains(t, resp.Response, "anything else")

	state, err := f.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, state.WorkflowComplete)
}

func TestHumanInputFieldTakesPriority(t *testing.T) {
	f := newFixture(t)

	f.step(t, "c1", "refund order 11111")
	resp, err := f.executor.Step(context.Background(), domain.TurnRequest{
		ConversationID: "c1",
		Message:        "whatever the message says",
		HumanInput:     "approve",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "Refund Approved")
}

func TestMessageLogGrows(t *testing.T) {
	f := newFixture(t)

	f.step(t, "c1", "hello")
	f.step(t, "c1", "check order 12345")

	state, err := f.store.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, state.MessageLog, 4)
	assert.Equal(t, "user", state.MessageLog[0].Role)
	assert.Equal(t, "assistant", state.MessageLog[1].Role)
	assert.Equal(t, "check order 12345", state.MessageLog[2].Text)
}

type explodingOrders struct {
	orders.Service
}

func (explodingOrders) Status(context.Context, string) (*orders.Order, error) {
	return nil, errors.New("backoffice unavailable")
}

func TestHandlerErrorIsIsolated(t *testing.T) {
	g, err := graph.Compile(graph.DefaultDefinition())
	require.NoError(t, err)
	store := memory.NewStore()
	exec := New(g, session.NewManager(store), Dependencies{
		Orders: explodingOrders{Service: orders.NewMemoryService()},
	})

	resp, err := exec.Step(context.Background(), domain.TurnRequest{
		ConversationID: "c1",
		Message:        "check order 12345",
	})
	require.NoError(t, err, "handler failures must not surface as engine errors")
	assert.Contains(t, resp.Response, "Something went wrong")
	assert.NotEmpty(t, resp.Error)

	// The failed turn still committed and the conversation stays usable.
	// The walk kept resolving past the failing node, so the checkpoint
	// rests on the terminal render node, not on the tool node.
	state, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, state.ToolResult.Failed())
	assert.True(t, state.WorkflowComplete)
	assert.Equal(t, "render", state.CurrentActivity)

	resp, err = exec.Step(context.Background(), domain.TurnRequest{
		ConversationID: "c1",
		Message:        "hello",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
}

type panickingOrders struct {
	orders.Service
}

func (panickingOrders) Status(context.Context, string) (*orders.Order, error) {
	panic("boom")
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	g, err := graph.Compile(graph.DefaultDefinition())
	require.NoError(t, err)
	store := memory.NewStore()
	exec := New(g, session.NewManager(store), Dependencies{
		Orders: panickingOrders{Service: orders.NewMemoryService()},
	})

	resp, err := exec.Step(context.Background(), domain.TurnRequest{
		ConversationID: "c1",
		Message:        "check order 12345",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Error, "panicked")
	assert.Contains(t, resp.Response, "Something went wrong")

	state, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "render", state.CurrentActivity)
}

func TestStepBudgetExhaustionKeepsPriorCheckpoint(t *testing.T) {
	g, err := graph.Compile(graph.DefaultDefinition())
	require.NoError(t, err)
	store := memory.NewStore()
	sessions := session.NewManager(store)
	deps := Dependencies{Orders: orders.NewMemoryService()}

	// Establish a checkpoint with a healthy executor first.
	healthy := New(g, sessions, deps)
	_, err = healthy.Step(context.Background(), domain.TurnRequest{
		ConversationID: "c1", Message: "check order 12345",
	})
	require.NoError(t, err)
	before, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)

	starved := New(g, sessions, deps, WithStepBudget(2))
	_, err = starved.Step(context.Background(), domain.TurnRequest{
		ConversationID: "c1", Message: "check order 67890",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step budget")

	after, err := store.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, before.Intent, after.Intent)
	assert.Len(t, after.MessageLog, len(before.MessageLog))
}

func TestHooksObserveTurn(t *testing.T) {
	var entered []string
	var tools []string
	var outcomes []string

	hooks := domain.LifecycleHooks{
		OnActivityEnter: func(_ context.Context, e *domain.ActivityEvent) {
			entered = append(entered, e.ActivityID)
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			tools = append(tools, e.Tool)
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			outcomes = append(outcomes, e.Outcome)
		},
	}

	f := newFixture(t, WithHooks(hooks))
	f.step(t, "c1", "refund order 11111")
	f.step(t, "c1", "yes")

	assert.Contains(t, entered, "intake")
	assert.Contains(t, entered, "review")
	assert.Contains(t, tools, intent.Refund)
	assert.Equal(t, []string{domain.TurnOutcomeSuspended, domain.TurnOutcomeTerminated}, outcomes)
}

func TestCorruptCheckpointStartsFresh(t *testing.T) {
	f := newFixture(t)

	// Point the checkpoint at an activity the graph does not know.
	state := domain.NewState("c1", "chat", "ghost-activity")
	require.NoError(t, f.store.Put(context.Background(), "c1", state))

	resp := f.step(t, "c1", "check order 12345")
	assert.Contains(t, resp.Response, "Shipped")
}
