package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ordercopilot/lattice/pkg/domain"
	"github.com/ordercopilot/lattice/pkg/ports"
)

const envelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new checkpoints.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionStore struct {
	next   ports.CheckpointStore
	config EncryptionConfig
}

// NewEncryption creates a middleware that encrypts checkpoints with AES-GCM.
// The underlying store only ever sees an opaque envelope.
func NewEncryption(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &encryptionStore{next: next, config: config}
	}
}

func (s *encryptionStore) Put(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	plaintext, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	ciphertext, err := encrypt(plaintext, s.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("encrypt checkpoint: %w", err)
	}

	// The envelope keeps only what monitoring needs: id, channel and the
	// terminal flag. Everything else lives inside the ciphertext.
	envelope := domain.NewState(conversationID, state.Channel, "encrypted")
	envelope.WorkflowComplete = state.WorkflowComplete
	envelope.Entities[envelopeKey] = base64.StdEncoding.EncodeToString(ciphertext)

	return s.next.Put(ctx, conversationID, envelope)
}

func (s *encryptionStore) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	envelope, err := s.next.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Entities[envelopeKey]
	if !ok {
		// A plain checkpoint under an encryption-enabled store means a
		// misconfiguration or tampering. Fail closed.
		return nil, errors.New("checkpoint is missing the encrypted envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode envelope base64: %w", err)
	}

	plaintext, err := decryptWithRotation(ciphertext, s.config.ActiveKey, s.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("decrypt checkpoint: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, fmt.Errorf("unmarshal decrypted checkpoint: %w", err)
	}
	return &state, nil
}

func (s *encryptionStore) Delete(ctx context.Context, conversationID string) error {
	return s.next.Delete(ctx, conversationID)
}

func (s *encryptionStore) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
