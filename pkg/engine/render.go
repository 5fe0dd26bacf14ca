package engine

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/intent"
)

// View models decoded from ToolOutcome.Data. The tool handler writes the
// generic map; render and review read it back through these.
type orderView struct {
	OrderID        string `mapstructure:"order_id"`
	Status         string `mapstructure:"status"`
	Carrier        string `mapstructure:"carrier"`
	TrackingNumber string `mapstructure:"tracking_number"`
}

type priceView struct {
	OrderID  string  `mapstructure:"order_id"`
	Subtotal float64 `mapstructure:"subtotal"`
	Shipping float64 `mapstructure:"shipping"`
	Tax      float64 `mapstructure:"tax"`
	Total    float64 `mapstructure:"total"`
}

type trackView struct {
	OrderID        string `mapstructure:"order_id"`
	Carrier        string `mapstructure:"carrier"`
	TrackingNumber string `mapstructure:"tracking_number"`
	EventCount     int    `mapstructure:"event_count"`
	LastLocation   string `mapstructure:"last_location"`
	LastEvent      string `mapstructure:"last_event"`
}

type refundView struct {
	OrderID     string `mapstructure:"order_id"`
	RequestID   string `mapstructure:"request_id"`
	RedirectURL string `mapstructure:"redirect_url"`
	Eligible    bool   `mapstructure:"eligible"`
	Status      string `mapstructure:"status"`
}

type policyView struct {
	Answer string `mapstructure:"answer"`
}

func decodeData(outcome *domain.ToolOutcome, out any) error {
	if outcome == nil || outcome.Data == nil {
		return nil
	}
	return mapstructure.Decode(outcome.Data, out)
}

const (
	failureResponse  = "Something went wrong while handling your request. Please try again."
	chitChatResponse = "Hi! I can help with order status, pricing, tracking, refunds, and product questions. Try something like \"check order 12345\"."
)

// renderHandler formats the user-facing response from the turn's outcome.
// It leaves an existing response alone on the follow-up pass so a refund
// resolution message is not overwritten by the chit-chat default.
type renderHandler struct{}

func (renderHandler) Execute(_ context.Context, state *domain.ConversationState) error {
	if state.FollowUpNeeded && state.Response != "" {
		return nil
	}
	state.Response = renderResponse(state)
	return nil
}

func renderResponse(state *domain.ConversationState) string {
	outcome := state.ToolResult
	if outcome.Failed() {
		return failureResponse
	}
	if outcome != nil && !outcome.Success {
		var v orderView
		if err := decodeData(outcome, &v); err == nil && v.OrderID != "" {
			return fmt.Sprintf("I couldn't find order %s. Please double-check the number.", v.OrderID)
		}
		return "I couldn't find that order. Please double-check the number."
	}

	switch state.Intent {
	case intent.OrderStatus:
		var v orderView
		if err := decodeData(outcome, &v); err != nil {
			return failureResponse
		}
		msg := fmt.Sprintf("Order %s is currently **%s**.", v.OrderID, v.Status)
		if v.Carrier != "" {
			msg += fmt.Sprintf(" It shipped via %s with tracking number `%s`.", v.Carrier, v.TrackingNumber)
		}
		return msg

	case intent.OrderPrice:
		var v priceView
		if err := decodeData(outcome, &v); err != nil {
			return failureResponse
		}
		return fmt.Sprintf("Order %s total: **$%.2f** (subtotal $%.2f, shipping $%.2f, tax $%.2f).",
			v.OrderID, v.Total, v.Subtotal, v.Shipping, v.Tax)

	case intent.TrackOrder:
		var v trackView
		if err := decodeData(outcome, &v); err != nil {
			return failureResponse
		}
		if v.EventCount == 0 {
			return fmt.Sprintf("Order %s has not shipped yet, so there is no tracking activity to show.", v.OrderID)
		}
		return fmt.Sprintf("Order %s is with **%s**, tracking number `%s`. Last scan: %s (%s).",
			v.OrderID, v.Carrier, v.TrackingNumber, v.LastEvent, v.LastLocation)

	case intent.Refund:
		var v refundView
		if err := decodeData(outcome, &v); err != nil {
			return failureResponse
		}
		if !v.Eligible {
			return fmt.Sprintf("Order %s is not eligible for a return (status: %s). Returns are accepted within 30 days of delivery.",
				v.OrderID, v.Status)
		}
		// Eligible refunds route through review and never reach here, but a
		// custom graph without a review node still gets a sane message.
		return fmt.Sprintf("Your return for order %s has been opened. Continue here: %s", v.OrderID, v.RedirectURL)

	case intent.PolicyQuestion:
		var v policyView
		if err := decodeData(outcome, &v); err != nil || v.Answer == "" {
			return failureResponse
		}
		msg := v.Answer
		if len(state.Retrieved) > 0 {
			msg += fmt.Sprintf("\n\n_Source: %s_", state.Retrieved[0].Title)
		}
		return msg
	}

	return chitChatResponse
}
