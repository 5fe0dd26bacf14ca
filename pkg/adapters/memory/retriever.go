package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// Retriever is a keyword-scored document retriever over a fixed corpus. It
// backs the retrieval activity when no external knowledge base is wired.
type Retriever struct {
	docs []domain.Document
}

// NewRetriever builds a retriever over the given corpus. A nil corpus gets
// the built-in policy documents.
func NewRetriever(docs []domain.Document) *Retriever {
	if docs == nil {
		docs = defaultCorpus()
	}
	return &Retriever{docs: docs}
}

func defaultCorpus() []domain.Document {
	return []domain.Document{
		{
			ID:    "policy-returns",
			Title: "Return Policy",
			Body:  "Items can be returned within 30 days of delivery for a full refund. The order must be in Delivered status before a return can be opened.",
		},
		{
			ID:    "policy-shipping",
			Title: "Shipping Policy",
			Body:  "Orders over $150 ship free. Standard shipping takes 3-5 business days. Expedited shipping is available at checkout.",
		},
		{
			ID:    "policy-warranty",
			Title: "Warranty",
			Body:  "All fasteners carry a 1-year warranty against manufacturing defects. Warranty claims need the original order id.",
		},
		{
			ID:    "guide-fasteners",
			Title: "Fastener Selection Guide",
			Body:  "Hex bolts suit structural joints; wood screws need pilot holes; lock nuts resist vibration. Metric sizes run M3 through M20.",
		},
	}
}

// Retrieve scores documents by query term overlap and returns the top
// matches, best first. Documents with no overlap are excluded.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		doc   domain.Document
		score int
	}
	hits := make([]scored, 0, len(r.docs))
	for _, doc := range r.docs {
		text := strings.ToLower(doc.Title + " " + doc.Body)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{doc, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]domain.Document, 0, limit)
	for _, h := range hits[:limit] {
		out = append(out, h.doc)
	}
	return out, nil
}
