package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/ports"
)

func TestStoreContract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, New(t.TempDir()))
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	state := domain.NewState("c1", "chat", "start")
	require.NoError(t, store.Put(ctx, "c1", state))
	require.NoError(t, store.Put(ctx, "c1", state)) // overwrite path

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c1.json", entries[0].Name())
}

func TestGetCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestEmptyConversationID(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, "", domain.NewState("", "chat", "start")))
	_, err := store.Get(ctx, "")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, ""))
}

func TestRejectsPathTraversalIDs(t *testing.T) {
	parent := t.TempDir()
	store := New(filepath.Join(parent, "conversations"))
	ctx := context.Background()

	// A file one level up must stay out of reach.
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.json"), []byte("{}"), 0o644))

	for _, id := range []string{"../secret", "../escape", "a/b", `a\b`, ".."} {
		assert.Error(t, store.Put(ctx, id, domain.NewState(id, "chat", "start")), "Put %q", id)
		_, err := store.Get(ctx, id)
		assert.Error(t, err, "Get %q", id)
		assert.NotErrorIs(t, err, domain.ErrConversationNotFound, "Get %q", id)
		assert.Error(t, store.Delete(ctx, id), "Delete %q", id)
	}

	// Nothing was written or removed outside the base directory.
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "secret.json", entries[0].Name())
}

func TestListEmptyDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-created"))

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
