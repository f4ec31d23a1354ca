package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
)

// SessionRepository implements ports.SessionRepository on SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new conversation session.
func (r *SessionRepository) Create(ctx context.Context, session *entities.ConversationSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversation_sessions
		 (id, memory_space_id, topic, status, input_mode, started_at, completed_at, question_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.MemorySpaceID, string(session.Topic), string(session.Status),
		session.InputMode, session.StartedAt, nullTime(session.CompletedAt), session.QuestionCount, session.CreatedAt,
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("create session", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.ConversationSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, memory_space_id, topic, status, input_mode, started_at, completed_at, question_count, created_at
		 FROM conversation_sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("conversation session")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get session", err)
	}
	return session, nil
}

// Update persists session state changes.
func (r *SessionRepository) Update(ctx context.Context, session *entities.ConversationSession) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE conversation_sessions
		 SET status = ?, completed_at = ?, question_count = ?
		 WHERE id = ?`,
		string(session.Status), nullTime(session.CompletedAt), session.QuestionCount, session.ID,
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("update session", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return pkgerrors.NewNotFoundError("conversation session")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*entities.ConversationSession, error) {
	var session entities.ConversationSession
	var topic, status string
	var completedAt sql.NullTime

	err := row.Scan(&session.ID, &session.MemorySpaceID, &topic, &status,
		&session.InputMode, &session.StartedAt, &completedAt, &session.QuestionCount, &session.CreatedAt)
	if err != nil {
		return nil, err
	}

	session.Topic = entities.Topic(topic)
	session.Status = entities.SessionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}

	return &session, nil
}

// nullTime maps a nil time pointer to NULL.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
