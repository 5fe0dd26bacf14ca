package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// RunCheckpointStoreContract verifies that a CheckpointStore implementation
// adheres to the interface contract. Every adapter test suite runs it.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	conversationID := "contract-conv-" + time.Now().Format("20060102150405")

	t.Run("PutAndGet", func(t *testing.T) {
		state := domain.NewState(conversationID, "chat", "start")
		state.Intent = "order_status"
		state.Entities["orderId"] = "12345"
		state.TurnCount = 2
		state.NeedsHumanReview = true
		state.AppendMessage("user", "check order 12345")

		require.NoError(t, store.Put(ctx, conversationID, state))

		loaded, err := store.Get(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, state.CurrentActivity, loaded.CurrentActivity)
		assert.Equal(t, "order_status", loaded.Intent)
		assert.Equal(t, "12345", loaded.Entities["orderId"])
		assert.Equal(t, 2, loaded.TurnCount)
		assert.True(t, loaded.NeedsHumanReview)
		require.Len(t, loaded.MessageLog, 1)
		assert.Equal(t, "check order 12345", loaded.MessageLog[0].Text)
	})

	t.Run("GetIsolation", func(t *testing.T) {
		loaded, err := store.Get(ctx, conversationID)
		require.NoError(t, err)
		loaded.Entities["orderId"] = "mutated"

		again, err := store.Get(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, "12345", again.Entities["orderId"],
			"mutating a loaded state must not leak into the store")
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		_, err := store.Get(ctx, "absent-"+conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		state := domain.NewState(conversationID, "chat", "render")
		state.TurnCount = 3
		require.NoError(t, store.Put(ctx, conversationID, state))

		loaded, err := store.Get(ctx, conversationID)
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.TurnCount)
		assert.Equal(t, "render", loaded.CurrentActivity)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, conversationID))
		_, err := store.Get(ctx, conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := conversationID + "-1"
		id2 := conversationID + "-2"
		require.NoError(t, store.Put(ctx, id1, domain.NewState(id1, "chat", "start")))
		require.NoError(t, store.Put(ctx, id2, domain.NewState(id2, "chat", "start")))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
