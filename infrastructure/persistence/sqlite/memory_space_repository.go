package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
)

// MemorySpaceRepository implements ports.MemorySpaceRepository on SQLite.
type MemorySpaceRepository struct {
	db *sql.DB
}

// NewMemorySpaceRepository creates a memory space repository.
func NewMemorySpaceRepository(db *sql.DB) *MemorySpaceRepository {
	return &MemorySpaceRepository{db: db}
}

// Create persists a new memory space.
func (r *MemorySpaceRepository) Create(ctx context.Context, space *entities.MemorySpace) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memory_spaces (id, grandparent_name, grandparent_photo_url, relation, access_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		space.ID, space.GrandparentName, nullString(space.PhotoURL), space.Relation, space.AccessToken, space.CreatedAt,
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("create memory space", err)
	}
	return nil
}

// GetByID retrieves a memory space by its ID.
func (r *MemorySpaceRepository) GetByID(ctx context.Context, id string) (*entities.MemorySpace, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, grandparent_name, grandparent_photo_url, relation, access_token, created_at
		 FROM memory_spaces WHERE id = ?`, id)

	var space entities.MemorySpace
	var photoURL sql.NullString
	err := row.Scan(&space.ID, &space.GrandparentName, &photoURL, &space.Relation, &space.AccessToken, &space.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("memory space")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get memory space", err)
	}
	space.PhotoURL = photoURL.String

	return &space, nil
}

// nullString maps an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
