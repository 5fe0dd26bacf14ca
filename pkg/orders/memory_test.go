package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusSeedData(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	tests := []struct {
		orderID string
		status  string
		carrier string
	}{
		{"12345", StatusShipped, "UPS"},
		{"67890", StatusInTransit, "FedEx"},
		{"11111", StatusDelivered, "USPS"},
		{"22222", StatusProcessing, ""},
		{"33333", StatusPending, ""},
		{"44444", StatusCancelled, ""},
	}

	for _, tt := range tests {
		t.Run(tt.orderID, func(t *testing.T) {
			o, err := svc.Status(ctx, tt.orderID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, o.Status)
			assert.Equal(t, tt.carrier, o.Carrier)
		})
	}

	_, err := svc.Status(ctx, "99999")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestStatusReturnsCopy(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	o, err := svc.Status(ctx, "12345")
	require.NoError(t, err)
	o.Status = "Mangled"
	o.Items[0].Quantity = 99

	again, err := svc.Status(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, again.Status)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestPriceBreakdown(t *testing.T) {
	svc := NewMemoryService()

	p, err := svc.Price(context.Background(), "12345")
	require.NoError(t, err)
	// 119.99 + 2*40.00 = 199.99, over the free shipping threshold.
	assert.InDelta(t, 199.99, p.Subtotal, 0.001)
	assert.Zero(t, p.Shipping)
	assert.InDelta(t, 16.00, p.Tax, 0.001)
	assert.InDelta(t, 215.99, p.Total, 0.001)

	p, err = svc.Price(context.Background(), "11111")
	require.NoError(t, err)
	assert.InDelta(t, 89.99, p.Subtotal, 0.001)
	assert.InDelta(t, 9.95, p.Shipping, 0.001)
}

func TestTrack(t *testing.T) {
	svc := NewMemoryService()

	tr, err := svc.Track(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "UPS", tr.Carrier)
	assert.Equal(t, "1Z999AA10123456784", tr.TrackingNumber)
	assert.NotEmpty(t, tr.Events)

	tr, err = svc.Track(context.Background(), "22222")
	require.NoError(t, err)
	assert.Empty(t, tr.Events)
}

func TestEligible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * 24 * time.Hour)
	stale := now.Add(-40 * 24 * time.Hour)

	tests := []struct {
		name  string
		order *Order
		want  bool
	}{
		{"delivered inside window", &Order{Status: StatusDelivered, DeliveredAt: &recent}, true},
		{"delivered outside window", &Order{Status: StatusDelivered, DeliveredAt: &stale}, false},
		{"shipped", &Order{Status: StatusShipped}, false},
		{"delivered without timestamp", &Order{Status: StatusDelivered}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.order, now))
		})
	}
}

func TestReturnFlow(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	t.Run("eligible order opens pending request", func(t *testing.T) {
		req, err := svc.RequestReturn(ctx, "11111", "wrong size")
		require.NoError(t, err)
		assert.Equal(t, ReturnPending, req.Status)
		assert.NotEmpty(t, req.ID)
		assert.Equal(t, "/return?orderId=11111", req.RedirectURL)
	})

	t.Run("undelivered order rejected", func(t *testing.T) {
		_, err := svc.RequestReturn(ctx, "12345", "changed my mind")
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("stale delivery rejected", func(t *testing.T) {
		_, err := svc.RequestReturn(ctx, "55555", "too late")
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("approve", func(t *testing.T) {
		req, err := svc.RequestReturn(ctx, "11111", "damaged")
		require.NoError(t, err)
		resolved, err := svc.ResolveReturn(ctx, req.ID, true)
		require.NoError(t, err)
		assert.Equal(t, ReturnApproved, resolved.Status)
		require.NotNil(t, resolved.ResolvedAt)
	})

	t.Run("reject", func(t *testing.T) {
		req, err := svc.RequestReturn(ctx, "11111", "damaged")
		require.NoError(t, err)
		resolved, err := svc.ResolveReturn(ctx, req.ID, false)
		require.NoError(t, err)
		assert.Equal(t, ReturnRejected, resolved.Status)
	})

	t.Run("cancel", func(t *testing.T) {
		req, err := svc.RequestReturn(ctx, "11111", "never mind")
		require.NoError(t, err)
		cancelled, err := svc.CancelReturn(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, ReturnCancelled, cancelled.Status)
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := svc.ResolveReturn(ctx, "missing", true)
		assert.ErrorIs(t, err, ErrReturnNotFound)
	})
}

func TestPolicy(t *testing.T) {
	svc := NewMemoryService()
	ctx := context.Background()

	answer, err := svc.Policy(ctx, "return policy")
	require.NoError(t, err)
	assert.Contains(t, answer, "30 days")

	answer, err = svc.Policy(ctx, "shipping")
	require.NoError(t, err)
	assert.Contains(t, answer, "ship")

	answer, err = svc.Policy(ctx, "something else")
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
}
