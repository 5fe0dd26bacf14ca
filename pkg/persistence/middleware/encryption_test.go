package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercopilot/lattice/pkg/adapters/memory"
	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func TestEncryptionRoundtrip(t *testing.T) {
	underlying := memory.NewStore()
	key := generateKey(t)
	secure := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: key})(underlying)

	ctx := context.Background()
	original := domain.NewState("conv-1", "chat", "start")
	original.Entities["email"] = "jane@example.com"
	original.Response = "Order 12345 is currently **Shipped**."

	require.NoError(t, secure.Put(ctx, "conv-1", original))

	// The underlying store must only see the opaque envelope.
	stored, err := underlying.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.NotContains(t, stored.Entities, "email")
	assert.Contains(t, stored.Entities, "__encrypted__")
	assert.Empty(t, stored.Response)
	assert.Equal(t, "chat", stored.Channel)

	loaded, err := secure.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", loaded.Entities["email"])
	assert.Equal(t, original.Response, loaded.Response)
}

func TestEncryptionKeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	ctx := context.Background()
	withOld := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)

	state := domain.NewState("conv-2", "chat", "start")
	state.Input = "written under the old key"
	require.NoError(t, withOld.Put(ctx, "conv-2", state))

	// New active key with the old one as fallback still decrypts.
	withRotation := middleware.NewEncryption(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := withRotation.Get(ctx, "conv-2")
	require.NoError(t, err)
	assert.Equal(t, "written under the old key", loaded.Input)

	// After a rewrite the old key alone no longer works.
	require.NoError(t, withRotation.Put(ctx, "conv-2", loaded))
	_, err = withOld.Get(ctx, "conv-2")
	assert.Error(t, err)
}

func TestEncryptionRejectsPlainCheckpoint(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	require.NoError(t, underlying.Put(ctx, "conv-3", domain.NewState("conv-3", "chat", "start")))

	_, err := secure.Get(ctx, "conv-3")
	assert.ErrorContains(t, err, "envelope")
}

func TestEncryptionInvalidKeyPanics(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
