package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/intent"
	"github.com/ordercopilot/lattice/pkg/orders"
	"github.com/ordercopilot/lattice/pkg/ports"
)

// Handler executes the behavior of one activity kind against the live
// state. Handlers mutate state and return an error only for failures the
// executor should isolate; routing is the resolvers' job.
type Handler interface {
	Execute(ctx context.Context, state *domain.ConversationState) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, state *domain.ConversationState) error

func (f HandlerFunc) Execute(ctx context.Context, state *domain.ConversationState) error {
	return f(ctx, state)
}

// Dependencies are the collaborators handlers are built from. Orders is
// required; the rest degrade gracefully when nil.
type Dependencies struct {
	Orders     orders.Service
	Retriever  ports.DocRetriever
	Classifier ports.Classifier
	Generator  ports.TextGenerator
}

const retrievalLimit = 3

// intakeHandler extracts entities from the raw input and takes a first
// pass at the intent so retrieval can run before the refining classify
// step.
type intakeHandler struct{}

func (intakeHandler) Execute(_ context.Context, state *domain.ConversationState) error {
	for k, v := range intent.ExtractEntities(state.Input) {
		state.Entities[k] = v
	}
	state.Intent = intent.Classify(state.Input, state.Entities)
	return nil
}

// retrievalHandler fetches supporting documents for knowledge intents.
// Retrieval failures are logged and swallowed: a missing document set
// never blocks an answer.
type retrievalHandler struct {
	retriever ports.DocRetriever
	logger    *slog.Logger
}

func (h retrievalHandler) Execute(ctx context.Context, state *domain.ConversationState) error {
	if h.retriever == nil {
		return nil
	}
	switch state.Intent {
	case intent.PolicyQuestion, intent.FastenerSearch:
	default:
		return nil
	}
	docs, err := h.retriever.Retrieve(ctx, state.Input, retrievalLimit)
	if err != nil {
		h.logger.Warn("document retrieval failed", "error", err)
		return nil
	}
	state.Retrieved = docs
	return nil
}

// classifyHandler settles the final intent, escalating to the model-based
// classifier only when the rules come up empty.
type classifyHandler struct {
	policy intent.Policy
}

func (h classifyHandler) Execute(ctx context.Context, state *domain.ConversationState) error {
	if strings.TrimSpace(state.Input) == "" {
		state.Intent = intent.ChitChat
		return nil
	}
	state.Intent = h.policy.Classify(ctx, state.Input, state.Entities)
	return nil
}

// toolHandler dispatches order operations by intent. Each branch records a
// ToolOutcome; the refund branch additionally raises the review flag so
// the router diverts to human approval.
type toolHandler struct {
	orders orders.Service
}

func (h toolHandler) Execute(ctx context.Context, state *domain.ConversationState) error {
	orderID := state.Entities[intent.EntityOrderID]

	switch state.Intent {
	case intent.OrderStatus:
		o, err := h.orders.Status(ctx, orderID)
		if errors.Is(err, orders.ErrOrderNotFound) {
			state.ToolResult = notFoundOutcome("order_status", orderID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("order status lookup: %w", err)
		}
		state.ToolResult = &domain.ToolOutcome{
			Tool:    "order_status",
			Success: true,
			Data: map[string]any{
				"order_id":        o.ID,
				"status":          o.Status,
				"carrier":         o.Carrier,
				"tracking_number": o.TrackingNumber,
			},
		}

	case intent.OrderPrice:
		p, err := h.orders.Price(ctx, orderID)
		if errors.Is(err, orders.ErrOrderNotFound) {
			state.ToolResult = notFoundOutcome("order_price", orderID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("order price lookup: %w", err)
		}
		state.ToolResult = &domain.ToolOutcome{
			Tool:    "order_price",
			Success: true,
			Data: map[string]any{
				"order_id": p.OrderID,
				"subtotal": p.Subtotal,
				"shipping": p.Shipping,
				"tax":      p.Tax,
				"total":    p.Total,
			},
		}

	case intent.TrackOrder:
		tr, err := h.orders.Track(ctx, orderID)
		if errors.Is(err, orders.ErrOrderNotFound) {
			state.ToolResult = notFoundOutcome("track_order", orderID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("order tracking lookup: %w", err)
		}
		data := map[string]any{
			"order_id":        tr.OrderID,
			"carrier":         tr.Carrier,
			"tracking_number": tr.TrackingNumber,
			"event_count":     len(tr.Events),
		}
		if n := len(tr.Events); n > 0 {
			last := tr.Events[n-1]
			data["last_location"] = last.Location
			data["last_event"] = last.Description
		}
		state.ToolResult = &domain.ToolOutcome{Tool: "track_order", Success: true, Data: data}

	case intent.Refund:
		req, err := h.orders.RequestReturn(ctx, orderID, state.Input)
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			state.ToolResult = notFoundOutcome("refund", orderID)
			return nil
		case errors.Is(err, orders.ErrNotEligible):
			status := ""
			if o, serr := h.orders.Status(ctx, orderID); serr == nil {
				status = o.Status
			}
			state.ToolResult = &domain.ToolOutcome{
				Tool:    "refund",
				Success: true,
				Message: "order not eligible for return",
				Data: map[string]any{
					"order_id": orderID,
					"eligible": false,
					"status":   status,
				},
			}
			return nil
		case err != nil:
			return fmt.Errorf("refund request: %w", err)
		}
		state.ToolResult = &domain.ToolOutcome{
			Tool:             "refund",
			Success:          true,
			RequiresApproval: true,
			NeedsHumanReview: true,
			Data: map[string]any{
				"order_id":     req.OrderID,
				"request_id":   req.ID,
				"redirect_url": req.RedirectURL,
				"eligible":     true,
			},
		}
		state.NeedsHumanReview = true
		state.RedirectURL = req.RedirectURL

	case intent.PolicyQuestion:
		answer, err := h.orders.Policy(ctx, strings.ToLower(state.Input))
		if err != nil {
			return fmt.Errorf("policy lookup: %w", err)
		}
		state.ToolResult = &domain.ToolOutcome{
			Tool:    "policy",
			Success: true,
			Data:    map[string]any{"answer": answer},
		}
	}
	return nil
}

func notFoundOutcome(tool, orderID string) *domain.ToolOutcome {
	return &domain.ToolOutcome{
		Tool:    tool,
		Success: false,
		Message: "order not found",
		Data:    map[string]any{"order_id": orderID},
	}
}

// agentHandler answers product questions, through the configured text
// generator when available or from the retrieved documents otherwise.
type agentHandler struct {
	generator ports.TextGenerator
}

const agentSystemPrompt = "You are a fastener product specialist. Answer using the provided documents when relevant, and say so when you are unsure."

func (h agentHandler) Execute(ctx context.Context, state *domain.ConversationState) error {
	if h.generator != nil {
		var prompt strings.Builder
		prompt.WriteString(state.Input)
		for _, doc := range state.Retrieved {
			prompt.WriteString("\n\n")
			prompt.WriteString(doc.Title)
			prompt.WriteString(": ")
			prompt.WriteString(doc.Body)
		}
		text, err := h.generator.Generate(ctx, agentSystemPrompt, prompt.String())
		if err != nil {
			return fmt.Errorf("agent generation: %w", err)
		}
		state.Response = text
		return nil
	}

	if len(state.Retrieved) == 0 {
		state.Response = "I can help with fastener selection. Could you share what material and load you are working with?"
		return nil
	}
	var b strings.Builder
	b.WriteString("Here is what I found:\n")
	for _, doc := range state.Retrieved {
		b.WriteString("\n**")
		b.WriteString(doc.Title)
		b.WriteString("**: ")
		b.WriteString(doc.Body)
	}
	state.Response = b.String()
	return nil
}

// buildHandlers wires the kind dispatch table. Start and router entries are
// deliberately absent: start is inert and the router is pure resolution.
func buildHandlers(deps Dependencies, logger *slog.Logger, review *reviewHandler) map[domain.ActivityKind]Handler {
	return map[domain.ActivityKind]Handler{
		domain.KindIntake:      intakeHandler{},
		domain.KindRetrieval:   retrievalHandler{retriever: deps.Retriever, logger: logger},
		domain.KindClassify:    classifyHandler{policy: intent.Policy{Fallback: deps.Classifier}},
		domain.KindTool:        toolHandler{orders: deps.Orders},
		domain.KindAgent:       agentHandler{generator: deps.Generator},
		domain.KindRender:      renderHandler{},
		domain.KindHumanReview: review,
	}
}
