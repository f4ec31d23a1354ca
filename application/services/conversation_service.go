package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"memoir-backend/application/ports"
	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
	"memoir-backend/pkg/observability"
)

// Canned prompt fragments used to shape the agent conversation.
const (
	// greetingSentinel stands in for the user's first message when the
	// client opens a session without saying anything.
	greetingSentinel = "Start the conversation with a warm greeting and your first question."

	// continuationPrompt is appended to the assistant reply every tenth
	// question, both in the stream and in the persisted message.
	continuationPrompt = "\n\nWe've covered quite a bit! Would you like to continue sharing more memories, or shall we catch up another time?"

	// truncationMarker is appended to partial assistant content persisted
	// after a mid-stream client disconnect.
	truncationMarker = "\n\n[response interrupted]"
)

// closingRequest asks the agent for a warm farewell addressed to the
// subject by name.
func closingRequest(userMessage, subjectName string) string {
	return fmt.Sprintf("%s\n\nPlease provide a warm closing message thanking %s for sharing their memories.", userMessage, subjectName)
}

// EventType tags one frame of a chat turn's event stream.
type EventType string

const (
	EventMetadata EventType = "metadata"
	EventToken    EventType = "token"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// StreamEvent is one event emitted while processing a chat turn. Metadata
// and done events carry the session fields; token events carry Content;
// error events carry Message and terminate the stream.
type StreamEvent struct {
	Type                EventType
	SessionID           string
	QuestionCount       int
	IsComplete          bool
	ShouldAskToContinue bool
	Content             string
	Message             string
}

// ProcessTurnInput is the caller's request for one chat turn.
type ProcessTurnInput struct {
	MemorySpaceID   string
	SessionID       string
	UserMessage     string
	GrandparentName string
	EndConversation bool
}

// ConversationService orchestrates chat turns: it resolves or creates the
// session, applies the lifecycle state machine, persists both sides of the
// turn in order, and relays the agent's reply as an event stream.
type ConversationService struct {
	spaces   ports.MemorySpaceRepository
	sessions ports.SessionRepository
	messages ports.MessageRepository
	agent    ports.ConversationAgent
	locks    *sessionLocks
	metrics  *observability.Collector
	logger   *zap.Logger

	historyDepth int
	agentTimeout time.Duration
}

// NewConversationService creates a conversation service.
func NewConversationService(
	spaces ports.MemorySpaceRepository,
	sessions ports.SessionRepository,
	messages ports.MessageRepository,
	agent ports.ConversationAgent,
	metrics *observability.Collector,
	logger *zap.Logger,
	historyDepth int,
	agentTimeout time.Duration,
) *ConversationService {
	if historyDepth <= 0 {
		historyDepth = 100
	}
	if agentTimeout <= 0 {
		agentTimeout = 2 * time.Minute
	}
	return &ConversationService{
		spaces:       spaces,
		sessions:     sessions,
		messages:     messages,
		agent:        agent,
		locks:        newSessionLocks(),
		metrics:      metrics,
		logger:       logger,
		historyDepth: historyDepth,
		agentTimeout: agentTimeout,
	}
}

// ProcessTurn runs one chat turn. Validation, session resolution, and the
// state transition happen synchronously and surface as an error return; the
// session state is durable before the first event is emitted. Everything
// after that - message persistence, the agent call, the token relay - runs
// in the returned stream, where failures become a single terminal error
// event. Writes committed before a mid-stream failure stay committed.
func (s *ConversationService) ProcessTurn(ctx context.Context, input ProcessTurnInput) (<-chan StreamEvent, error) {
	var (
		session *entities.ConversationSession
		space   *entities.MemorySpace
		err     error
	)

	created := false
	sessionID := input.SessionID
	if sessionID == "" {
		space, err = s.spaces.GetByID(ctx, input.MemorySpaceID)
		if err != nil {
			return nil, err
		}
		session, err = entities.NewConversationSession(input.MemorySpaceID, entities.DefaultTopic)
		if err != nil {
			return nil, err
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, err
		}
		created = true
		sessionID = session.ID
	}

	// The session row must be read and advanced under the per-session
	// lock; loading it earlier would let a concurrent turn act on a stale
	// question count or a status that has since become terminal.
	release := s.locks.acquire(sessionID)

	if !created {
		session, err = s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			release()
			return nil, err
		}
	}

	subjectName := input.GrandparentName
	if subjectName == "" {
		if space == nil {
			space, err = s.spaces.GetByID(ctx, session.MemorySpaceID)
			if err != nil {
				release()
				return nil, err
			}
		}
		subjectName = space.GrandparentName
	}

	outcome, err := session.AdvanceTurn(input.EndConversation, time.Now())
	if err != nil {
		release()
		return nil, err
	}

	// Commit-before-stream: the caller must never observe a metadata
	// event whose session state is not yet durable.
	if err := s.sessions.Update(ctx, session); err != nil {
		release()
		return nil, err
	}

	if s.metrics != nil {
		if created {
			s.metrics.SessionsStarted.Inc()
		}
		s.metrics.TurnsProcessed.Inc()
		if outcome.IsComplete {
			s.metrics.SessionsCompleted.Inc()
		}
	}

	events := make(chan StreamEvent)
	go s.streamTurn(ctx, events, release, session.ID, subjectName, input, outcome)

	return events, nil
}

// streamTurn emits the turn's event stream. It owns the session lock until
// every pending write has been committed.
func (s *ConversationService) streamTurn(
	ctx context.Context,
	events chan<- StreamEvent,
	release func(),
	sessionID, subjectName string,
	input ProcessTurnInput,
	outcome entities.TurnOutcome,
) {
	defer close(events)
	defer release()

	meta := StreamEvent{
		Type:                EventMetadata,
		SessionID:           sessionID,
		QuestionCount:       outcome.QuestionCount,
		IsComplete:          outcome.IsComplete,
		ShouldAskToContinue: outcome.ShouldAskToContinue,
	}
	if !s.emit(ctx, events, meta) {
		return
	}

	userMessage := input.UserMessage
	if userMessage == "" {
		userMessage = greetingSentinel
	}

	// History is loaded before this turn's user message is appended so the
	// agent does not see the message twice.
	history, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		s.emitError(ctx, events, err)
		return
	}
	if len(history) > s.historyDepth {
		history = history[len(history)-s.historyDepth:]
	}

	if _, err := s.messages.Append(ctx, sessionID, entities.RoleUser, userMessage, ""); err != nil {
		s.emitError(ctx, events, err)
		return
	}

	// The closing request reaches the agent but is not part of the
	// persisted user turn.
	agentMessage := userMessage
	if input.EndConversation {
		agentMessage = closingRequest(userMessage, subjectName)
	}

	agentCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	start := time.Now()
	fragments, err := s.agent.StreamReply(agentCtx, ports.AgentRequest{
		SessionID:   sessionID,
		SubjectName: subjectName,
		Message:     agentMessage,
		History:     history,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveCollaborator("conversation_agent", start, err)
		}
		s.emitError(ctx, events, pkgerrors.NewCollaboratorError("conversation agent", err))
		return
	}

	var reply strings.Builder
	for fragment := range fragments {
		if fragment.Err != nil {
			if s.metrics != nil {
				s.metrics.ObserveCollaborator("conversation_agent", start, fragment.Err)
			}
			if ctx.Err() != nil {
				// Client disconnected mid-stream: keep what the agent
				// already said rather than discarding it.
				s.persistPartialReply(sessionID, reply.String())
				return
			}
			s.emitError(ctx, events, pkgerrors.NewCollaboratorError("conversation agent", fragment.Err))
			return
		}
		reply.WriteString(fragment.Content)
		if !s.emit(ctx, events, StreamEvent{Type: EventToken, Content: fragment.Content}) {
			s.persistPartialReply(sessionID, reply.String())
			return
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveCollaborator("conversation_agent", start, nil)
	}

	assistantContent := reply.String()
	if outcome.ShouldAskToContinue && !outcome.IsComplete {
		assistantContent += continuationPrompt
	}

	if _, err := s.messages.Append(ctx, sessionID, entities.RoleAssistant, assistantContent, ""); err != nil {
		s.emitError(ctx, events, err)
		return
	}

	if outcome.ShouldAskToContinue && !outcome.IsComplete {
		if !s.emit(ctx, events, StreamEvent{Type: EventToken, Content: continuationPrompt}) {
			return
		}
	}

	done := meta
	done.Type = EventDone
	s.emit(ctx, events, done)
}

// persistPartialReply stores whatever assistant content accumulated before
// a client disconnect, marked as interrupted. It runs on a detached context
// because the request context is already canceled.
func (s *ConversationService) persistPartialReply(sessionID, content string) {
	if content == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.messages.Append(ctx, sessionID, entities.RoleAssistant, content+truncationMarker, ""); err != nil {
		s.logger.Error("failed to persist partial assistant reply",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (s *ConversationService) emit(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *ConversationService) emitError(ctx context.Context, events chan<- StreamEvent, err error) {
	s.logger.Error("chat turn failed mid-stream", zap.Error(err))

	message := err.Error()
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		message = appErr.Message
	}
	s.emit(ctx, events, StreamEvent{Type: EventError, Message: message})
}

// History returns a session and its ordered messages.
func (s *ConversationService) History(ctx context.Context, sessionID string) (*entities.ConversationSession, []*entities.ConversationMessage, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	return session, messages, nil
}
