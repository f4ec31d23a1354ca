package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"memoir-backend/application/ports"
	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
)

// StoryRepository implements ports.StoryRepository on SQLite.
type StoryRepository struct {
	db *sql.DB
}

// NewStoryRepository creates a story repository.
func NewStoryRepository(db *sql.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// Create persists a new story. The UNIQUE session_id column enforces the
// one-story-per-session invariant at the storage layer.
func (r *StoryRepository) Create(ctx context.Context, story *entities.Story) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stories (id, memory_space_id, session_id, title, content, topic, style, status, generated_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		story.ID, story.MemorySpaceID, story.SessionID, story.Title, story.Content,
		string(story.Topic), story.Style, string(story.Status), story.GeneratedAt, story.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.NewConflictError("story already generated for this conversation").WithCause(err)
		}
		return pkgerrors.NewDatabaseError("create story", err)
	}
	return nil
}

const storyColumns = `id, memory_space_id, session_id, title, content, topic, style, status, generated_at, updated_at`

// GetByID retrieves a story by its ID.
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entities.Story, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE id = ?`, id)

	story, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("story")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get story", err)
	}
	return story, nil
}

// GetBySessionID returns the story generated for a session, or nil when
// none exists.
func (r *StoryRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.Story, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE session_id = ?`, sessionID)

	story, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get story by session", err)
	}
	return story, nil
}

// ListByMemorySpace returns all stories for a space, newest first.
func (r *StoryRepository) ListByMemorySpace(ctx context.Context, spaceID string) ([]*entities.Story, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE memory_space_id = ? ORDER BY generated_at DESC`, spaceID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list stories", err)
	}
	defer rows.Close()

	var stories []*entities.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("scan story", err)
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list stories", err)
	}

	return stories, nil
}

// ListByMemberEmail returns all stories across every space the member with
// this email belongs to, newest first, joined with the space for the
// grandparent's name.
func (r *StoryRepository) ListByMemberEmail(ctx context.Context, email string) ([]ports.StoryWithSpace, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.memory_space_id, s.session_id, s.title, s.content, s.topic, s.style, s.status,
		        s.generated_at, s.updated_at, ms.grandparent_name
		 FROM stories s
		 JOIN memory_spaces ms ON ms.id = s.memory_space_id
		 WHERE s.memory_space_id IN (
			SELECT memory_space_id FROM family_members WHERE email = ?
		 )
		 ORDER BY s.generated_at DESC`, email)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list stories by email", err)
	}
	defer rows.Close()

	var results []ports.StoryWithSpace
	for rows.Next() {
		var story entities.Story
		var topic, status, grandparentName string
		if err := rows.Scan(&story.ID, &story.MemorySpaceID, &story.SessionID, &story.Title, &story.Content,
			&topic, &story.Style, &status, &story.GeneratedAt, &story.UpdatedAt, &grandparentName); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan story", err)
		}
		story.Topic = entities.Topic(topic)
		story.Status = entities.StoryStatus(status)
		results = append(results, ports.StoryWithSpace{Story: &story, GrandparentName: grandparentName})
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list stories by email", err)
	}

	return results, nil
}

func scanStory(row rowScanner) (*entities.Story, error) {
	var story entities.Story
	var topic, status string
	err := row.Scan(&story.ID, &story.MemorySpaceID, &story.SessionID, &story.Title, &story.Content,
		&topic, &story.Style, &status, &story.GeneratedAt, &story.UpdatedAt)
	if err != nil {
		return nil, err
	}
	story.Topic = entities.Topic(topic)
	story.Status = entities.StoryStatus(status)
	return &story, nil
}
