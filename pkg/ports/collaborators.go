package ports

import (
	"context"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// Classifier is the pluggable intent model the routing policy escalates to
// when the ordered-rule pass yields only the default label. Implementations
// are expected to be pure or bounded-latency; callers supply a timeout via
// the context.
type Classifier interface {
	Classify(ctx context.Context, text string, entities map[string]string) (string, error)
}

// DocRetriever serves supporting documents for policy questions.
type DocRetriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error)
}

// TextGenerator produces free-form text for the agent activity. The model
// behind it is an external collaborator; the engine only ever sees strings.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}
