// Package neo4j backs the order service and the document retriever with a
// Neo4j graph, mirroring the deployment where order, shipment, and policy
// data already live in the same graph database.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ordercopilot/lattice/pkg/orders"
)

// OrderService implements orders.Service over a Neo4j driver.
type OrderService struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewOrderService wraps an existing driver. database may be empty for the
// server default.
func NewOrderService(driver neo4j.DriverWithContext, database string) *OrderService {
	return &OrderService{driver: driver, database: database}
}

func (s *OrderService) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *OrderService) Status(ctx context.Context, orderID string) (*orders.Order, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	record, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Order {id: $id})
			RETURN o.id AS id, o.status AS status, o.carrier AS carrier,
			       o.trackingNumber AS trackingNumber, o.email AS email,
			       o.orderedAt AS orderedAt, o.deliveredAt AS deliveredAt
		`, map[string]any{"id": orderID})
		if err != nil {
			return nil, err
		}
		return result.Single(ctx)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("neo4j order lookup: %w", err)
	}
	return orderFromRecord(record)
}

func (s *OrderService) Price(ctx context.Context, orderID string) (*orders.PriceBreakdown, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	record, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
		result, err := tx.Run(ctx, `
			MATCH (o:Order {id: $id})
			OPTIONAL MATCH (o)-[:CONTAINS]->(i:LineItem)
			WITH o, sum(coalesce(i.quantity, 0) * coalesce(i.unitPrice, 0.0)) AS subtotal
			RETURN o.id AS id, subtotal
		`, map[string]any{"id": orderID})
		if err != nil {
			return nil, err
		}
		return result.Single(ctx)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("neo4j price lookup: %w", err)
	}

	subtotal, _ := record.Get("subtotal")
	sub := asFloat(subtotal)
	shipping := 0.0
	if sub < 150 {
		shipping = 9.95
	}
	tax := roundCents(sub * 0.08)
	return &orders.PriceBreakdown{
		OrderID:  orderID,
		Subtotal: roundCents(sub),
		Shipping: shipping,
		Tax:      tax,
		Total:    roundCents(sub + shipping + tax),
	}, nil
}

func (s *OrderService) Track(ctx context.Context, orderID string) (*orders.Tracking, error) {
	o, err := s.Status(ctx, orderID)
	if err != nil {
		return nil, err
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	events, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) ([]orders.TrackingEvent, error) {
		result, err := tx.Run(ctx, `
			MATCH (:Order {id: $id})-[:HAS_SCAN]->(e:TrackingEvent)
			RETURN e.at AS at, e.location AS location, e.description AS description
			ORDER BY e.at
		`, map[string]any{"id": orderID})
		if err != nil {
			return nil, err
		}
		var out []orders.TrackingEvent
		for result.Next(ctx) {
			rec := result.Record()
			at, _ := rec.Get("at")
			location, _ := rec.Get("location")
			description, _ := rec.Get("description")
			out = append(out, orders.TrackingEvent{
				At:          asTime(at),
				Location:    asString(location),
				Description: asString(description),
			})
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j tracking lookup: %w", err)
	}

	return &orders.Tracking{
		OrderID:        orderID,
		Carrier:        o.Carrier,
		TrackingNumber: o.TrackingNumber,
		Events:         events,
	}, nil
}

func (s *OrderService) RequestReturn(ctx context.Context, orderID, reason string) (*orders.ReturnRequest, error) {
	o, err := s.Status(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !orders.Eligible(o, time.Now()) {
		return nil, fmt.Errorf("%w: %s is %s", orders.ErrNotEligible, orderID, o.Status)
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	req := &orders.ReturnRequest{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		Reason:      reason,
		Status:      orders.ReturnPending,
		RedirectURL: "/return?orderId=" + orderID,
		RequestedAt: time.Now().UTC(),
	}
	_, err = neo4j.ExecuteWrite(ctx, sess, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (o:Order {id: $orderId})
			CREATE (r:ReturnRequest {
				id: $id, status: $status, reason: $reason,
				redirectUrl: $redirectUrl, requestedAt: $requestedAt
			})-[:FOR]->(o)
		`, map[string]any{
			"orderId":     orderID,
			"id":          req.ID,
			"status":      req.Status,
			"reason":      req.Reason,
			"redirectUrl": req.RedirectURL,
			"requestedAt": req.RequestedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j create return request: %w", err)
	}
	return req, nil
}

func (s *OrderService) ResolveReturn(ctx context.Context, requestID string, approve bool) (*orders.ReturnRequest, error) {
	status := orders.ReturnRejected
	if approve {
		status = orders.ReturnApproved
	}
	return s.setReturnStatus(ctx, requestID, status)
}

func (s *OrderService) CancelReturn(ctx context.Context, requestID string) (*orders.ReturnRequest, error) {
	return s.setReturnStatus(ctx, requestID, orders.ReturnCancelled)
}

func (s *OrderService) setReturnStatus(ctx context.Context, requestID, status string) (*orders.ReturnRequest, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	record, err := neo4j.ExecuteWrite(ctx, sess, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
		result, err := tx.Run(ctx, `
			MATCH (r:ReturnRequest {id: $id})-[:FOR]->(o:Order)
			SET r.status = $status, r.resolvedAt = $resolvedAt
			RETURN r.id AS id, o.id AS orderId, r.reason AS reason,
			       r.status AS status, r.redirectUrl AS redirectUrl,
			       r.requestedAt AS requestedAt, r.resolvedAt AS resolvedAt
		`, map[string]any{
			"id":         requestID,
			"status":     status,
			"resolvedAt": time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		return result.Single(ctx)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", orders.ErrReturnNotFound, requestID)
		}
		return nil, fmt.Errorf("neo4j resolve return: %w", err)
	}
	return returnFromRecord(record)
}

func (s *OrderService) Policy(ctx context.Context, topic string) (string, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	record, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) (*neo4j.Record, error) {
		result, err := tx.Run(ctx, `
			MATCH (p:Policy)
			WHERE any(kw IN p.keywords WHERE toLower($topic) CONTAINS kw)
			RETURN p.answer AS answer
			LIMIT 1
		`, map[string]any{"topic": topic})
		if err != nil {
			return nil, err
		}
		return result.Single(ctx)
	})
	if err != nil {
		if isNotFound(err) {
			return "Our support team can help with returns, shipping, and warranty questions.", nil
		}
		return "", fmt.Errorf("neo4j policy lookup: %w", err)
	}
	answer, _ := record.Get("answer")
	return asString(answer), nil
}

// Close closes the underlying driver.
func (s *OrderService) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
