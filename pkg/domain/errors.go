package domain

import "errors"

// ErrConversationNotFound is returned when a conversation id has no
// checkpoint in the store.
var ErrConversationNotFound = errors.New("conversation not found")
