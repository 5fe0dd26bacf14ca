package neo4j

import (
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ordercopilot/lattice/pkg/orders"
)

// isNotFound detects the driver's usage error from Single on an empty
// match ("Result contains no more records").
func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no more records")
}

func orderFromRecord(record *neo4j.Record) (*orders.Order, error) {
	get := func(key string) any {
		v, _ := record.Get(key)
		return v
	}
	o := &orders.Order{
		ID:             asString(get("id")),
		Status:         asString(get("status")),
		Carrier:        asString(get("carrier")),
		TrackingNumber: asString(get("trackingNumber")),
		Email:          asString(get("email")),
		OrderedAt:      asTime(get("orderedAt")),
	}
	if v := get("deliveredAt"); v != nil {
		t := asTime(v)
		if !t.IsZero() {
			o.DeliveredAt = &t
		}
	}
	return o, nil
}

func returnFromRecord(record *neo4j.Record) (*orders.ReturnRequest, error) {
	get := func(key string) any {
		v, _ := record.Get(key)
		return v
	}
	req := &orders.ReturnRequest{
		ID:          asString(get("id")),
		OrderID:     asString(get("orderId")),
		Reason:      asString(get("reason")),
		Status:      asString(get("status")),
		RedirectURL: asString(get("redirectUrl")),
		RequestedAt: asTime(get("requestedAt")),
	}
	if v := get("resolvedAt"); v != nil {
		t := asTime(v)
		if !t.IsZero() {
			req.ResolvedAt = &t
		}
	}
	return req, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
