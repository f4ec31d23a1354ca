package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "memoir-backend/pkg/errors"
)

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// IsValid reports whether r is a known role.
func (r MessageRole) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ConversationMessage is one turn in a session's append-only log.
// Messages are immutable once written; the sequence number is strictly
// increasing per session.
type ConversationMessage struct {
	ID             string
	SessionID      string
	Role           MessageRole
	Content        string
	AudioURL       string
	SequenceNumber int
	CreatedAt      time.Time
}

// NewConversationMessage creates a message for the given sequence slot.
func NewConversationMessage(sessionID string, role MessageRole, content, audioURL string, sequenceNumber int) (*ConversationMessage, error) {
	if sessionID == "" {
		return nil, pkgerrors.NewValidationError("session id cannot be empty")
	}
	if !role.IsValid() {
		return nil, pkgerrors.NewValidationError("message role must be user or assistant")
	}
	if sequenceNumber < 1 {
		return nil, pkgerrors.NewValidationError("sequence number must be positive")
	}

	return &ConversationMessage{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		Role:           role,
		Content:        content,
		AudioURL:       audioURL,
		SequenceNumber: sequenceNumber,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
