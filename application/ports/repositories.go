package ports

import (
	"context"

	"memoir-backend/domain/entities"
)

// MemorySpaceRepository defines persistence for memory spaces.
// This is a port in hexagonal architecture - the application doesn't know
// about the storage implementation.
type MemorySpaceRepository interface {
	// Create persists a new memory space
	Create(ctx context.Context, space *entities.MemorySpace) error

	// GetByID retrieves a memory space by its ID
	GetByID(ctx context.Context, id string) (*entities.MemorySpace, error)
}

// FamilyMemberRepository defines persistence for family members.
type FamilyMemberRepository interface {
	// Create persists a new family member
	Create(ctx context.Context, member *entities.FamilyMember) error

	// FindByEmail returns the first member registered with the given email,
	// or nil when none exists
	FindByEmail(ctx context.Context, email string) (*entities.FamilyMember, error)
}

// SessionRepository defines persistence for conversation sessions.
type SessionRepository interface {
	// Create persists a new session
	Create(ctx context.Context, session *entities.ConversationSession) error

	// GetByID retrieves a session by its ID
	GetByID(ctx context.Context, id string) (*entities.ConversationSession, error)

	// Update persists session state changes (status, timestamps, count)
	Update(ctx context.Context, session *entities.ConversationSession) error
}

// MessageRepository is the append-only ordered log of conversation turns.
type MessageRepository interface {
	// Append persists a message at the next sequence number for the
	// session. A sequence collision between concurrent writers surfaces
	// as a ConcurrentWrite error.
	Append(ctx context.Context, sessionID string, role entities.MessageRole, content, audioURL string) (*entities.ConversationMessage, error)

	// ListBySession returns all messages ascending by sequence number
	ListBySession(ctx context.Context, sessionID string) ([]*entities.ConversationMessage, error)

	// CountBySession returns the number of messages in the session
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

// StoryWithSpace pairs a story with its owning space for member-level reads.
type StoryWithSpace struct {
	Story           *entities.Story
	GrandparentName string
}

// StoryRepository defines persistence for generated stories.
type StoryRepository interface {
	// Create persists a new story
	Create(ctx context.Context, story *entities.Story) error

	// GetByID retrieves a story by its ID
	GetByID(ctx context.Context, id string) (*entities.Story, error)

	// GetBySessionID returns the story generated for a session, or nil
	// when none exists
	GetBySessionID(ctx context.Context, sessionID string) (*entities.Story, error)

	// ListByMemorySpace returns all stories for a space, newest first
	ListByMemorySpace(ctx context.Context, spaceID string) ([]*entities.Story, error)

	// ListByMemberEmail returns all stories across every space the member
	// with this email belongs to, newest first
	ListByMemberEmail(ctx context.Context, email string) ([]StoryWithSpace, error)
}
