package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// Retriever implements ports.DocRetriever against Document nodes, scoring
// by keyword overlap in Cypher so the ranking happens where the data is.
type Retriever struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewRetriever wraps an existing driver.
func NewRetriever(driver neo4j.DriverWithContext, database string) *Retriever {
	return &Retriever{driver: driver, database: database}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	sess := r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})
	defer sess.Close(ctx)

	docs, err := neo4j.ExecuteRead(ctx, sess, func(tx neo4j.ManagedTransaction) ([]domain.Document, error) {
		result, err := tx.Run(ctx, `
			MATCH (d:Document)
			WITH d, reduce(score = 0, term IN $terms |
				score + CASE WHEN toLower(d.title + ' ' + d.body) CONTAINS term THEN 1 ELSE 0 END
			) AS score
			WHERE score > 0
			RETURN d.id AS id, d.title AS title, d.body AS body
			ORDER BY score DESC
			LIMIT $limit
		`, map[string]any{"terms": terms, "limit": limit})
		if err != nil {
			return nil, err
		}
		var out []domain.Document
		for result.Next(ctx) {
			rec := result.Record()
			id, _ := rec.Get("id")
			title, _ := rec.Get("title")
			body, _ := rec.Get("body")
			out = append(out, domain.Document{
				ID:    asString(id),
				Title: asString(title),
				Body:  asString(body),
			})
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j document retrieval: %w", err)
	}
	return docs, nil
}
