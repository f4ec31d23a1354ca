package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "memoir-backend/pkg/errors"
)

// Topic is the fixed set of interview topics.
type Topic string

const (
	TopicChildhood   Topic = "childhood"
	TopicLoveStory   Topic = "love_story"
	TopicCareer      Topic = "career"
	TopicLifeLessons Topic = "life_lessons"
	TopicSurprise    Topic = "surprise"
)

// DefaultTopic is assigned to sessions created implicitly on the first
// chat call.
const DefaultTopic = TopicChildhood

// Topics lists all valid interview topics.
func Topics() []Topic {
	return []Topic{TopicChildhood, TopicLoveStory, TopicCareer, TopicLifeLessons, TopicSurprise}
}

// IsValid reports whether t is a known topic.
func (t Topic) IsValid() bool {
	for _, known := range Topics() {
		if t == known {
			return true
		}
	}
	return false
}

// SessionStatus is the lifecycle state of a conversation session.
// in_progress is initial; completed and abandoned are terminal.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// IsTerminal reports whether no transition leaves this state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// continueCheckInterval controls how often the assistant asks whether the
// family wants to keep going.
const continueCheckInterval = 10

// ConversationSession represents one guided interview. It owns the
// lifecycle state machine: turns may only be processed while the session
// is in progress, and completion is a one-way transition.
type ConversationSession struct {
	ID            string
	MemorySpaceID string
	Topic         Topic
	Status        SessionStatus
	InputMode     string
	StartedAt     time.Time
	CompletedAt   *time.Time
	QuestionCount int
	CreatedAt     time.Time
}

// NewConversationSession creates an in-progress session for a memory space.
func NewConversationSession(memorySpaceID string, topic Topic) (*ConversationSession, error) {
	if memorySpaceID == "" {
		return nil, pkgerrors.NewValidationError("memory space id cannot be empty")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if !topic.IsValid() {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown topic %q, expected one of %v", topic, Topics()))
	}

	now := time.Now().UTC()
	return &ConversationSession{
		ID:            uuid.New().String(),
		MemorySpaceID: memorySpaceID,
		Topic:         topic,
		Status:        SessionInProgress,
		InputMode:     "text",
		StartedAt:     now,
		QuestionCount: 0,
		CreatedAt:     now,
	}, nil
}

// TurnOutcome describes the state-machine result of one processed turn.
// ShouldAskToContinue is derived for the current turn only and is never
// persisted as session state.
type TurnOutcome struct {
	QuestionCount       int
	IsComplete          bool
	ShouldAskToContinue bool
}

// AdvanceTurn applies one chat turn to the session: the question count
// increments by exactly one, an explicit end signal completes the session,
// and every tenth question flags a continuation check unless the session
// completes in the same turn.
//
// Turns against a terminal session are rejected with an InvalidState error.
func (s *ConversationSession) AdvanceTurn(endConversation bool, now time.Time) (TurnOutcome, error) {
	if s.Status.IsTerminal() {
		return TurnOutcome{}, pkgerrors.NewInvalidStateError(
			fmt.Sprintf("conversation session is already %s", s.Status))
	}

	s.QuestionCount++

	outcome := TurnOutcome{QuestionCount: s.QuestionCount}

	if endConversation {
		completedAt := now.UTC()
		s.Status = SessionCompleted
		s.CompletedAt = &completedAt
		outcome.IsComplete = true
		return outcome, nil
	}

	if s.QuestionCount > 0 && s.QuestionCount%continueCheckInterval == 0 {
		outcome.ShouldAskToContinue = true
	}

	return outcome, nil
}

// Abandon marks an in-progress session as abandoned. Used by external
// cleanup flows, never by the turn orchestration itself.
func (s *ConversationSession) Abandon() error {
	if s.Status.IsTerminal() {
		return pkgerrors.NewInvalidStateError(
			fmt.Sprintf("conversation session is already %s", s.Status))
	}
	s.Status = SessionAbandoned
	return nil
}

// IsComplete reports whether the session finished successfully.
func (s *ConversationSession) IsComplete() bool {
	return s.Status == SessionCompleted
}
