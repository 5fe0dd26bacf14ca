package engine

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/orders"
)

var approveTokens = map[string]bool{
	"yes": true, "y": true, "approve": true, "approved": true, "confirm": true,
}

var rejectTokens = map[string]bool{
	"no": true, "n": true, "reject": true, "rejected": true, "cancel": true,
}

// reviewHandler is the human-in-the-loop gate. On first arrival it parks
// the conversation pending approval; on resumption it applies the decision
// table: approve and reject resolve the refund, anything else asks again
// until the turn cap forces a cancellation.
type reviewHandler struct {
	orders           orders.Service
	turnCap          int
	allowFollowUp    bool
	followUpQuestion string
	logger           *slog.Logger
}

func (h *reviewHandler) Execute(ctx context.Context, state *domain.ConversationState) error {
	var v refundView
	if err := decodeData(state.ToolResult, &v); err != nil {
		return fmt.Errorf("review: decode refund ticket: %w", err)
	}

	decision := strings.ToLower(strings.TrimSpace(state.HumanInput))
	state.HumanInput = ""

	if decision == "" {
		// First arrival from the router: park pending approval.
		state.NeedsHumanReview = true
		state.Response = pendingMessage(v)
		return nil
	}

	switch {
	case approveTokens[decision]:
		if _, err := h.orders.ResolveReturn(ctx, v.RequestID, true); err != nil {
			return fmt.Errorf("review: approve refund: %w", err)
		}
		state.Response = approvedMessage(v)
		h.resolve(state)

	case rejectTokens[decision]:
		if _, err := h.orders.ResolveReturn(ctx, v.RequestID, false); err != nil {
			return fmt.Errorf("review: reject refund: %w", err)
		}
		state.Response = rejectedMessage(v)
		h.resolve(state)

	default:
		if state.TurnCount > h.turnCap {
			if v.RequestID != "" {
				if _, err := h.orders.CancelReturn(ctx, v.RequestID); err != nil {
					h.logger.Warn("failed to cancel refund request", "request_id", v.RequestID, "error", err)
				}
			}
			state.Response = cancelledMessage(v)
			state.NeedsHumanReview = false
			state.WorkflowComplete = true
			state.Input = ""
			return nil
		}
		// Stay pending and ask again.
		state.NeedsHumanReview = true
		state.Response = clarifyMessage(v)
	}
	return nil
}

// resolve closes out the review. With follow-up enabled the walk loops
// back through classify once more to offer further help; otherwise the
// conversation terminates here.
func (h *reviewHandler) resolve(state *domain.ConversationState) {
	state.NeedsHumanReview = false
	state.Input = ""
	if h.allowFollowUp {
		state.FollowUpNeeded = true
		state.Response += "\n\n" + h.followUpQuestion
	} else {
		state.WorkflowComplete = true
	}
}

func pendingMessage(v refundView) string {
	msg := "⏳ **Refund Request Pending Approval**\n\n" +
		fmt.Sprintf("A refund for order %s has been submitted for review. Reply **yes** to approve or **no** to reject.", v.OrderID)
	if v.RedirectURL != "" {
		msg += fmt.Sprintf("\n\nYou can also manage it here: %s", v.RedirectURL)
	}
	return msg
}

func approvedMessage(v refundView) string {
	msg := "✅ **Refund Approved**\n\n" +
		fmt.Sprintf("Your refund for order %s is being processed.", v.OrderID)
	if v.RedirectURL != "" {
		msg += fmt.Sprintf(" Track it here: %s", v.RedirectURL)
	}
	return msg
}

func rejectedMessage(v refundView) string {
	return "❌ **Refund Rejected**\n\n" +
		fmt.Sprintf("The refund for order %s was not approved. Let me know if I can help with anything else.", v.OrderID)
}

func cancelledMessage(v refundView) string {
	return fmt.Sprintf("The refund request for order %s was cancelled after repeated unclear replies. You can start over anytime by asking for a refund again.", v.OrderID)
}

func clarifyMessage(v refundView) string {
	return fmt.Sprintf("I didn't catch that. Reply **yes** to approve the refund for order %s or **no** to reject it.", v.OrderID)
}
