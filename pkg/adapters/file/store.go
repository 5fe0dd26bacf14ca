// Package file persists checkpoints as JSON files, one per conversation.
// Writes are atomic: temp file in the same directory, fsync, then rename,
// so a crash mid-write never leaves a torn checkpoint behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ordercopilot/lattice/pkg/domain"
)

// Store implements ports.CheckpointStore on the local filesystem.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath. An empty basePath defaults to
// ".lattice/conversations".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "conversations")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(conversationID string) string {
	return filepath.Join(s.BasePath, conversationID+".json")
}

// validateID rejects ids that would resolve outside the checkpoint
// directory. Conversation ids come straight from API callers.
func validateID(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}
	if strings.ContainsAny(conversationID, `/\`) || strings.Contains(conversationID, "..") {
		return fmt.Errorf("invalid conversation id %q", conversationID)
	}
	return nil
}

// Put writes the checkpoint atomically.
func (s *Store) Put(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	if err := validateID(conversationID); err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Temp file lives in the target directory so the rename stays on one
	// filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+conversationID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(conversationID)

	// os.Rename on Windows refuses to replace an existing file; the short
	// delete window is acceptable against serving a torn checkpoint.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing checkpoint for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to checkpoint: %w", err)
	}
	return nil
}

// Get reads the checkpoint from disk.
func (s *Store) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	if err := validateID(conversationID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if state.Entities == nil {
		state.Entities = make(map[string]string)
	}
	return &state, nil
}

// Delete removes the checkpoint file. Absent files are not an error.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if err := validateID(conversationID); err != nil {
		return err
	}

	err := os.Remove(s.path(conversationID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// List returns all stored conversation ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && filepath.Ext(name) == ".json" {
			ids = append(ids, name[:len(name)-len(".json")])
		}
	}
	return ids, nil
}
