package ports

import (
	"context"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// CheckpointStore persists the latest ConversationState per conversation id.
// Put is the sole externally observable commit point of a turn, so
// implementations must be atomic per id: a reader either sees the previous
// checkpoint or the new one, never a partial write.
type CheckpointStore interface {
	// Put overwrites the checkpoint for the given conversation id.
	Put(ctx context.Context, conversationID string, state *domain.ConversationState) error

	// Get retrieves the checkpoint for the given conversation id.
	// Returns domain.ErrConversationNotFound if none exists.
	Get(ctx context.Context, conversationID string) (*domain.ConversationState, error)

	// Delete removes the checkpoint. Deleting an absent id is not an error.
	Delete(ctx context.Context, conversationID string) error

	// List returns the ids of all stored conversations.
	List(ctx context.Context) ([]string, error)
}
