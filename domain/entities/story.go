package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "memoir-backend/pkg/errors"
)

// StoryStatus is the editorial lifecycle of a generated story. Transitions
// are forward-only and driven by external editing flows.
type StoryStatus string

const (
	StoryGenerated StoryStatus = "generated"
	StoryEdited    StoryStatus = "edited"
	StoryPublished StoryStatus = "published"
)

// StyleNarrative is the only generation style currently produced.
const StyleNarrative = "narrative"

// Story is the durable narrative artifact generated from one completed
// conversation session. At most one story exists per session.
type Story struct {
	ID            string
	MemorySpaceID string
	SessionID     string
	Title         string
	Content       string
	Topic         Topic
	Style         string
	Status        StoryStatus
	GeneratedAt   time.Time
	UpdatedAt     time.Time
}

// NewStory creates a freshly generated story for a session.
func NewStory(memorySpaceID, sessionID, title, content string, topic Topic) (*Story, error) {
	if memorySpaceID == "" {
		return nil, pkgerrors.NewValidationError("memory space id cannot be empty")
	}
	if sessionID == "" {
		return nil, pkgerrors.NewValidationError("session id cannot be empty")
	}
	if title == "" {
		return nil, pkgerrors.NewValidationError("story title cannot be empty")
	}

	now := time.Now().UTC()
	return &Story{
		ID:            uuid.New().String(),
		MemorySpaceID: memorySpaceID,
		SessionID:     sessionID,
		Title:         title,
		Content:       content,
		Topic:         topic,
		Style:         StyleNarrative,
		Status:        StoryGenerated,
		GeneratedAt:   now,
		UpdatedAt:     now,
	}, nil
}
