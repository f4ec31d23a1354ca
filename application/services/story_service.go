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
	"memoir-backend/pkg/utils"
)

// Speaker labels used when rendering a transcript for the story writer.
// The assistant plays the interviewer, so the roles invert: the assistant
// is labeled as the grandchild and the user as the grandparent.
const (
	labelInterviewer = "Grandchild"
	labelSubject     = "Grandparent"
)

// fallbackTitle is used when the story writer's response has no usable
// title line.
const fallbackTitle = "Untitled Story"

// ExcerptWords is the word bound for story excerpts in summary responses.
const ExcerptWords = 50

// StoryService generates the durable story artifact from a completed
// session's transcript and serves story read projections.
type StoryService struct {
	sessions ports.SessionRepository
	messages ports.MessageRepository
	stories  ports.StoryRepository
	writer   ports.StoryWriter
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewStoryService creates a story service.
func NewStoryService(
	sessions ports.SessionRepository,
	messages ports.MessageRepository,
	stories ports.StoryRepository,
	writer ports.StoryWriter,
	metrics *observability.Collector,
	logger *zap.Logger,
) *StoryService {
	return &StoryService{
		sessions: sessions,
		messages: messages,
		stories:  stories,
		writer:   writer,
		metrics:  metrics,
		logger:   logger,
	}
}

// GenerateResult is the summary returned after generating a story.
type GenerateResult struct {
	StoryID string
	Title   string
	Excerpt string
	Status  entities.StoryStatus
}

// Generate produces the story for a completed session, exactly once.
// Preconditions are checked in order: the session must exist, must be
// completed, and must not already have a story.
func (s *StoryService) Generate(ctx context.Context, sessionID string) (*GenerateResult, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status != entities.SessionCompleted {
		return nil, pkgerrors.NewInvalidStateError("cannot generate story from incomplete conversation")
	}

	existing, err := s.stories.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.NewConflictError("story already generated for this conversation")
	}

	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	transcript := RenderTranscript(messages)

	start := time.Now()
	response, err := s.writer.WriteStory(ctx, transcript)
	if s.metrics != nil {
		s.metrics.ObserveCollaborator("story_writer", start, err)
	}
	if err != nil {
		return nil, pkgerrors.NewCollaboratorError("story writer", err)
	}

	title, content := ParseStoryResponse(response)

	story, err := entities.NewStory(session.MemorySpaceID, sessionID, title, content, session.Topic)
	if err != nil {
		return nil, err
	}

	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StoriesGenerated.Inc()
	}
	s.logger.Info("story generated",
		zap.String("story_id", story.ID),
		zap.String("session_id", sessionID),
		zap.String("title", title),
	)

	return &GenerateResult{
		StoryID: story.ID,
		Title:   story.Title,
		Excerpt: utils.ExtractExcerpt(story.Content, ExcerptWords),
		Status:  story.Status,
	}, nil
}

// RenderTranscript formats a message log for the story writer: one
// speaker-labeled line per message, in sequence order, separated by blank
// lines.
func RenderTranscript(messages []*entities.ConversationMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		label := labelSubject
		if msg.Role == entities.RoleAssistant {
			label = labelInterviewer
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, msg.Content))
	}
	return strings.Join(lines, "\n\n")
}

// ParseStoryResponse splits the story writer's free-form response into a
// title and body. The first line is the title when it is markup-prefixed
// or short; otherwise the whole response is the body and the title falls
// back to a fixed default.
func ParseStoryResponse(response string) (title, content string) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return fallbackTitle, ""
	}

	lines := strings.Split(trimmed, "\n")
	first := strings.TrimSpace(lines[0])

	if strings.HasPrefix(first, "#") || len(first) < 100 {
		title = strings.TrimSpace(strings.TrimLeft(first, "#"))
		if title == "" {
			title = fallbackTitle
		}
		content = strings.TrimSpace(strings.Join(lines[1:], "\n"))
		return title, content
	}

	return fallbackTitle, trimmed
}

// GetByID returns a story by its ID.
func (s *StoryService) GetByID(ctx context.Context, storyID string) (*entities.Story, error) {
	return s.stories.GetByID(ctx, storyID)
}

// SpaceStories is the listing of stories in one memory space.
type SpaceStories struct {
	Stories []*entities.Story
	Total   int
}

// ListByMemorySpace returns all stories for a space, newest first, plus the
// total count.
func (s *StoryService) ListByMemorySpace(ctx context.Context, spaceID string) (*SpaceStories, error) {
	stories, err := s.stories.ListByMemorySpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return &SpaceStories{Stories: stories, Total: len(stories)}, nil
}

// ListByMemberEmail returns all stories across the spaces the member with
// this email belongs to, with full content for owner views.
func (s *StoryService) ListByMemberEmail(ctx context.Context, email string) ([]ports.StoryWithSpace, error) {
	return s.stories.ListByMemberEmail(ctx, email)
}
