package middleware

import (
	"context"
	"regexp"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/ports"
)

const mask = "***"

type piiStore struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewPIIMasking creates a middleware that masks extracted entities and tool
// payload fields whose keys match any of the patterns before they reach the
// underlying store. Masking is one-way: Get returns what was stored.
func NewPIIMasking(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &piiStore{next: next, patterns: patterns}
	}
}

func (s *piiStore) Put(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	// Clone so the in-memory state the executor keeps using stays intact.
	cloned := state.Clone()

	for k := range cloned.Entities {
		if s.matches(k) {
			cloned.Entities[k] = mask
		}
	}
	if cloned.ToolResult != nil && cloned.ToolResult.Data != nil {
		// Clone copies the payload map shallowly, so nested maps still
		// alias the original. Copy them before masking in place.
		cloned.ToolResult.Data = deepCopyMap(cloned.ToolResult.Data)
		s.maskMap(cloned.ToolResult.Data)
	}

	return s.next.Put(ctx, conversationID, cloned)
}

func (s *piiStore) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	return s.next.Get(ctx, conversationID)
}

func (s *piiStore) Delete(ctx context.Context, conversationID string) error {
	return s.next.Delete(ctx, conversationID)
}

func (s *piiStore) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}

func (s *piiStore) matches(key string) bool {
	for _, p := range s.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func (s *piiStore) maskMap(m map[string]any) {
	for k, v := range m {
		if s.matches(k) {
			m[k] = mask
			continue
		}
		if subMap, ok := v.(map[string]any); ok {
			s.maskMap(subMap)
		}
	}
}
