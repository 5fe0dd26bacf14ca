package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Seed loads the demo dataset: the same orders, shipments, policies, and
// documents the in-memory adapters carry, so the two backends are
// interchangeable in demos. Idempotent through MERGE.
func Seed(ctx context.Context, driver neo4j.DriverWithContext, database string) error {
	sess := driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database})
	defer sess.Close(ctx)

	base := time.Now().UTC()
	params := map[string]any{
		"now":           base,
		"orderedAt5d":   base.Add(-5 * 24 * time.Hour),
		"orderedAt7d":   base.Add(-7 * 24 * time.Hour),
		"orderedAt20d":  base.Add(-20 * 24 * time.Hour),
		"deliveredAt":   base.Add(-15 * 24 * time.Hour),
		"staleDelivery": base.Add(-45 * 24 * time.Hour),
		"orderedAt50d":  base.Add(-50 * 24 * time.Hour),
	}

	statements := []string{
		`MERGE (o:Order {id: '12345'})
		 SET o.status = 'Shipped', o.carrier = 'UPS',
		     o.trackingNumber = '1Z999AA10123456784',
		     o.email = 'pat@example.com', o.orderedAt = $orderedAt5d
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'HXB-M8-50', quantity: 1, unitPrice: 119.99})
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'WSH-M8', quantity: 2, unitPrice: 40.0})`,

		`MERGE (o:Order {id: '67890'})
		 SET o.status = 'In Transit', o.carrier = 'FedEx',
		     o.trackingNumber = '771234567890', o.orderedAt = $orderedAt7d
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'SCR-WD-35', quantity: 1, unitPrice: 54.5})`,

		`MERGE (o:Order {id: '11111'})
		 SET o.status = 'Delivered', o.carrier = 'USPS',
		     o.trackingNumber = '9400110200881234567890',
		     o.orderedAt = $orderedAt20d, o.deliveredAt = $deliveredAt
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'ANC-CNC-10', quantity: 1, unitPrice: 89.99})`,

		`MERGE (o:Order {id: '22222'})
		 SET o.status = 'Processing', o.orderedAt = $now
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'NUT-LCK-M10', quantity: 3, unitPrice: 21.25})`,

		`MERGE (o:Order {id: '33333'})
		 SET o.status = 'Pending', o.orderedAt = $now
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'RVT-AL-48', quantity: 1, unitPrice: 33.1})`,

		`MERGE (o:Order {id: '44444'})
		 SET o.status = 'Cancelled', o.orderedAt = $now
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'HXB-M12-80', quantity: 2, unitPrice: 47.8})`,

		`MERGE (o:Order {id: '55555'})
		 SET o.status = 'Delivered', o.carrier = 'UPS',
		     o.trackingNumber = '1Z999AA10198765432',
		     o.orderedAt = $orderedAt50d, o.deliveredAt = $staleDelivery
		 MERGE (o)-[:CONTAINS]->(:LineItem {sku: 'CLP-SPR-20', quantity: 1, unitPrice: 27.95})`,

		`MERGE (p:Policy {id: 'returns'})
		 SET p.keywords = ['return', 'refund'],
		     p.answer = 'Items can be returned within 30 days of delivery for a full refund. Returns require the order to be delivered.'`,

		`MERGE (p:Policy {id: 'shipping'})
		 SET p.keywords = ['ship'],
		     p.answer = 'Orders over $150 ship free. Standard shipping takes 3-5 business days.'`,

		`MERGE (p:Policy {id: 'warranty'})
		 SET p.keywords = ['warranty'],
		     p.answer = 'All fasteners carry a 1-year defect warranty.'`,

		`MERGE (d:Document {id: 'policy-returns'})
		 SET d.title = 'Return Policy',
		     d.body = 'Items can be returned within 30 days of delivery for a full refund. The order must be in Delivered status before a return can be opened.'`,

		`MERGE (d:Document {id: 'policy-shipping'})
		 SET d.title = 'Shipping Policy',
		     d.body = 'Orders over $150 ship free. Standard shipping takes 3-5 business days. Expedited shipping is available at checkout.'`,

		`MERGE (d:Document {id: 'guide-fasteners'})
		 SET d.title = 'Fastener Selection Guide',
		     d.body = 'Hex bolts suit structural joints; wood screws need pilot holes; lock nuts resist vibration. Metric sizes run M3 through M20.'`,
	}

	_, err := neo4j.ExecuteWrite(ctx, sess, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range statements {
			if _, err := tx.Run(ctx, stmt, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j seed: %w", err)
	}
	return nil
}

func roundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
