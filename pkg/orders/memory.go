package orders

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryService is the seeded in-process backoffice. Seed timestamps are
// computed relative to construction time so the eligibility rule behaves
// the same no matter when the process starts.
type MemoryService struct {
	mu      sync.RWMutex
	orders  map[string]*Order
	trails  map[string][]TrackingEvent
	returns map[string]*ReturnRequest
	now     func() time.Time
}

// NewMemoryService builds the seeded backoffice.
func NewMemoryService() *MemoryService {
	return newMemoryService(time.Now)
}

func newMemoryService(now func() time.Time) *MemoryService {
	s := &MemoryService{
		orders:  make(map[string]*Order),
		trails:  make(map[string][]TrackingEvent),
		returns: make(map[string]*ReturnRequest),
		now:     now,
	}
	s.seed()
	return s
}

func (s *MemoryService) seed() {
	base := s.now().UTC()
	deliveredAt := base.Add(-15 * 24 * time.Hour)
	staleDelivery := base.Add(-45 * 24 * time.Hour)

	s.orders["12345"] = &Order{
		ID: "12345", Status: StatusShipped,
		Carrier: "UPS", TrackingNumber: "1Z999AA10123456784",
		Items: []LineItem{
			{SKU: "HXB-M8-50", Description: "Hex bolt M8x50, zinc, box of 100", Quantity: 1, UnitPrice: 119.99},
			{SKU: "WSH-M8", Description: "Flat washer M8, box of 200", Quantity: 2, UnitPrice: 40.00},
		},
		Email:     "pat@example.com",
		OrderedAt: base.Add(-5 * 24 * time.Hour),
	}
	s.trails["12345"] = []TrackingEvent{
		{At: base.Add(-4 * 24 * time.Hour), Location: "Louisville, KY", Description: "Package picked up"},
		{At: base.Add(-2 * 24 * time.Hour), Location: "Columbus, OH", Description: "Departed sorting facility"},
	}

	s.orders["67890"] = &Order{
		ID: "67890", Status: StatusInTransit,
		Carrier: "FedEx", TrackingNumber: "771234567890",
		Items: []LineItem{
			{SKU: "SCR-WD-35", Description: "Wood screw assortment", Quantity: 1, UnitPrice: 54.50},
		},
		OrderedAt: base.Add(-7 * 24 * time.Hour),
	}
	s.trails["67890"] = []TrackingEvent{
		{At: base.Add(-6 * 24 * time.Hour), Location: "Memphis, TN", Description: "Package picked up"},
		{At: base.Add(-3 * 24 * time.Hour), Location: "Indianapolis, IN", Description: "In transit"},
		{At: base.Add(-1 * 24 * time.Hour), Location: "Chicago, IL", Description: "Arrived at local facility"},
	}

	s.orders["11111"] = &Order{
		ID: "11111", Status: StatusDelivered,
		Carrier: "USPS", TrackingNumber: "9400110200881234567890",
		Items: []LineItem{
			{SKU: "ANC-CNC-10", Description: "Concrete anchor kit", Quantity: 1, UnitPrice: 89.99},
		},
		OrderedAt:   base.Add(-20 * 24 * time.Hour),
		DeliveredAt: &deliveredAt,
	}
	s.trails["11111"] = []TrackingEvent{
		{At: base.Add(-18 * 24 * time.Hour), Location: "Denver, CO", Description: "Package picked up"},
		{At: deliveredAt, Location: "Boulder, CO", Description: "Delivered, front porch"},
	}

	s.orders["22222"] = &Order{
		ID: "22222", Status: StatusProcessing,
		Items: []LineItem{
			{SKU: "NUT-LCK-M10", Description: "Lock nut M10, box of 50", Quantity: 3, UnitPrice: 21.25},
		},
		OrderedAt: base.Add(-1 * 24 * time.Hour),
	}

	s.orders["33333"] = &Order{
		ID: "33333", Status: StatusPending,
		Items: []LineItem{
			{SKU: "RVT-AL-48", Description: "Aluminum rivet pack", Quantity: 1, UnitPrice: 33.10},
		},
		OrderedAt: base,
	}

	s.orders["44444"] = &Order{
		ID: "44444", Status: StatusCancelled,
		Items: []LineItem{
			{SKU: "HXB-M12-80", Description: "Hex bolt M12x80, box of 25", Quantity: 2, UnitPrice: 47.80},
		},
		OrderedAt: base.Add(-10 * 24 * time.Hour),
	}

	// Delivered but outside the window, for eligibility tests and demos.
	s.orders["55555"] = &Order{
		ID: "55555", Status: StatusDelivered,
		Carrier: "UPS", TrackingNumber: "1Z999AA10198765432",
		Items: []LineItem{
			{SKU: "CLP-SPR-20", Description: "Spring clamp set", Quantity: 1, UnitPrice: 27.95},
		},
		OrderedAt:   base.Add(-50 * 24 * time.Hour),
		DeliveredAt: &staleDelivery,
	}
}

func (s *MemoryService) Status(_ context.Context, orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	return &cp, nil
}

func (s *MemoryService) Price(ctx context.Context, orderID string) (*PriceBreakdown, error) {
	o, err := s.Status(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var subtotal float64
	for _, item := range o.Items {
		subtotal += float64(item.Quantity) * item.UnitPrice
	}
	shipping := 0.0
	if subtotal < 150 {
		shipping = 9.95
	}
	tax := round2(subtotal * 0.08)
	return &PriceBreakdown{
		OrderID:  orderID,
		Subtotal: round2(subtotal),
		Shipping: shipping,
		Tax:      tax,
		Total:    round2(subtotal + shipping + tax),
	}, nil
}

func (s *MemoryService) Track(_ context.Context, orderID string) (*Tracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return &Tracking{
		OrderID:        orderID,
		Carrier:        o.Carrier,
		TrackingNumber: o.TrackingNumber,
		Events:         append([]TrackingEvent(nil), s.trails[orderID]...),
	}, nil
}

func (s *MemoryService) RequestReturn(_ context.Context, orderID, reason string) (*ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if !Eligible(o, s.now()) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEligible, orderID, o.Status)
	}
	req := &ReturnRequest{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		Reason:      reason,
		Status:      ReturnPending,
		RedirectURL: "/return?orderId=" + orderID,
		RequestedAt: s.now().UTC(),
	}
	s.returns[req.ID] = req
	cp := *req
	return &cp, nil
}

func (s *MemoryService) ResolveReturn(_ context.Context, requestID string, approve bool) (*ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.returns[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReturnNotFound, requestID)
	}
	if approve {
		req.Status = ReturnApproved
	} else {
		req.Status = ReturnRejected
	}
	resolved := s.now().UTC()
	req.ResolvedAt = &resolved
	cp := *req
	return &cp, nil
}

func (s *MemoryService) CancelReturn(_ context.Context, requestID string) (*ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.returns[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReturnNotFound, requestID)
	}
	req.Status = ReturnCancelled
	resolved := s.now().UTC()
	req.ResolvedAt = &resolved
	cp := *req
	return &cp, nil
}

func (s *MemoryService) Policy(_ context.Context, topic string) (string, error) {
	switch {
	case strings.Contains(topic, "return"), strings.Contains(topic, "refund"):
		return "Items can be returned within 30 days of delivery for a full refund. Returns require the order to be delivered.", nil
	case strings.Contains(topic, "ship"):
		return "Orders over $150 ship free. Standard shipping takes 3-5 business days.", nil
	case strings.Contains(topic, "warranty"):
		return "All fasteners carry a 1-year defect warranty.", nil
	default:
		return "Our support team can help with returns, shipping, and warranty questions.", nil
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
