// Package orders defines the order backoffice the tool activity calls into:
// status lookups, price breakdowns, tracking, and the return/refund flow
// with its eligibility rule and human approval step.
package orders

import (
	"context"
	"errors"
	"time"
)

// Order statuses as the backoffice reports them.
const (
	StatusProcessing = "Processing"
	StatusPending    = "Pending"
	StatusShipped    = "Shipped"
	StatusInTransit  = "In Transit"
	StatusDelivered  = "Delivered"
	StatusCancelled  = "Cancelled"
)

// Return request lifecycle.
const (
	ReturnPending   = "pending"
	ReturnApproved  = "approved"
	ReturnRejected  = "rejected"
	ReturnCancelled = "cancelled"
)

// ReturnWindow is how long after delivery an order stays refundable.
const ReturnWindow = 30 * 24 * time.Hour

var (
	ErrOrderNotFound  = errors.New("orders: order not found")
	ErrReturnNotFound = errors.New("orders: return request not found")
	ErrNotEligible    = errors.New("orders: order not eligible for return")
)

// LineItem is one purchased article on an order.
type LineItem struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Order is the backoffice view of a purchase.
type Order struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	Items          []LineItem `json:"items"`
	Email          string     `json:"email,omitempty"`
	OrderedAt      time.Time  `json:"ordered_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// PriceBreakdown itemizes what an order cost.
type PriceBreakdown struct {
	OrderID  string  `json:"order_id"`
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// TrackingEvent is one scan on a shipment's journey.
type TrackingEvent struct {
	At          time.Time `json:"at"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
}

// Tracking is the shipment trail of an order.
type Tracking struct {
	OrderID        string          `json:"order_id"`
	Carrier        string          `json:"carrier"`
	TrackingNumber string          `json:"tracking_number"`
	Events         []TrackingEvent `json:"events"`
}

// ReturnRequest is a refund awaiting or past human resolution.
type ReturnRequest struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	Reason      string     `json:"reason,omitempty"`
	Status      string     `json:"status"`
	RedirectURL string     `json:"redirect_url"`
	RequestedAt time.Time  `json:"requested_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Service is the backoffice port the tool and review activities depend on.
// Implementations live in this package (in-memory) and under pkg/adapters.
type Service interface {
	// Status returns the order, or ErrOrderNotFound.
	Status(ctx context.Context, orderID string) (*Order, error)

	// Price itemizes the order's cost.
	Price(ctx context.Context, orderID string) (*PriceBreakdown, error)

	// Track returns the shipment trail. Orders that never shipped get an
	// empty event list.
	Track(ctx context.Context, orderID string) (*Tracking, error)

	// RequestReturn opens a pending refund for an eligible order. Returns
	// ErrNotEligible when the order is not delivered or the return window
	// has lapsed.
	RequestReturn(ctx context.Context, orderID, reason string) (*ReturnRequest, error)

	// ResolveReturn applies a human decision to a pending request.
	ResolveReturn(ctx context.Context, requestID string, approve bool) (*ReturnRequest, error)

	// CancelReturn withdraws a pending request without a decision.
	CancelReturn(ctx context.Context, requestID string) (*ReturnRequest, error)

	// Policy answers a policy topic ("returns", "shipping", "warranty").
	Policy(ctx context.Context, topic string) (string, error)
}

// Eligible applies the return rule: delivered, and within the window as of
// now.
func Eligible(o *Order, now time.Time) bool {
	if o == nil || o.Status != StatusDelivered || o.DeliveredAt == nil {
		return false
	}
	return now.Sub(*o.DeliveredAt) <= ReturnWindow
}
