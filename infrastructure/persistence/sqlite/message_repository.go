package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
)

// MessageRepository implements the append-only message log on SQLite.
//
// Sequence numbers are computed as count+1 inside the append transaction.
// The UNIQUE(session_id, sequence_number) index is the backstop against
// concurrent writers that bypass the per-session lock: a collision
// surfaces as a ConcurrentWrite error instead of corrupting the log.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a message repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append persists a message at the next sequence number for the session.
func (r *MessageRepository) Append(ctx context.Context, sessionID string, role entities.MessageRole, content, audioURL string) (*entities.ConversationMessage, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("append message", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_messages WHERE session_id = ?`, sessionID,
	).Scan(&count); err != nil {
		return nil, pkgerrors.NewDatabaseError("count messages", err)
	}

	message, err := entities.NewConversationMessage(sessionID, role, content, audioURL, count+1)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_messages (id, session_id, role, content, audio_url, sequence_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.ID, message.SessionID, string(message.Role), message.Content,
		nullString(message.AudioURL), message.SequenceNumber, message.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, pkgerrors.NewConcurrentWriteError("concurrent write to conversation session").WithCause(err)
		}
		return nil, pkgerrors.NewDatabaseError("append message", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, pkgerrors.NewConcurrentWriteError("concurrent write to conversation session").WithCause(err)
		}
		return nil, pkgerrors.NewDatabaseError("append message", err)
	}

	return message, nil
}

// ListBySession returns all messages ascending by sequence number.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*entities.ConversationMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, audio_url, sequence_number, created_at
		 FROM conversation_messages WHERE session_id = ? ORDER BY sequence_number`, sessionID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list messages", err)
	}
	defer rows.Close()

	var messages []*entities.ConversationMessage
	for rows.Next() {
		var message entities.ConversationMessage
		var role string
		var audioURL sql.NullString
		if err := rows.Scan(&message.ID, &message.SessionID, &role, &message.Content,
			&audioURL, &message.SequenceNumber, &message.CreatedAt); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan message", err)
		}
		message.Role = entities.MessageRole(role)
		message.AudioURL = audioURL.String
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list messages", err)
	}

	return messages, nil
}

// CountBySession returns the number of messages in the session.
func (r *MessageRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_messages WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, pkgerrors.NewDatabaseError("count messages", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
