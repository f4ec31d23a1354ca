package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"memoir-backend/domain/entities"
	pkgerrors "memoir-backend/pkg/errors"
)

// FamilyMemberRepository implements ports.FamilyMemberRepository on SQLite.
type FamilyMemberRepository struct {
	db *sql.DB
}

// NewFamilyMemberRepository creates a family member repository.
func NewFamilyMemberRepository(db *sql.DB) *FamilyMemberRepository {
	return &FamilyMemberRepository{db: db}
}

// Create persists a new family member.
func (r *FamilyMemberRepository) Create(ctx context.Context, member *entities.FamilyMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO family_members (id, memory_space_id, name, email, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		member.ID, member.MemorySpaceID, member.Name, nullString(member.Email), member.Role, member.CreatedAt,
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("create family member", err)
	}
	return nil
}

// FindByEmail returns the earliest-registered member with the given email,
// or nil when the email is unseen. Lookup is global across spaces to keep
// one user identity per email.
func (r *FamilyMemberRepository) FindByEmail(ctx context.Context, email string) (*entities.FamilyMember, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, memory_space_id, name, email, role, created_at
		 FROM family_members WHERE email = ? ORDER BY created_at LIMIT 1`, email)

	var member entities.FamilyMember
	var memberEmail sql.NullString
	err := row.Scan(&member.ID, &member.MemorySpaceID, &member.Name, &memberEmail, &member.Role, &member.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("find family member", err)
	}
	member.Email = memberEmail.String

	return &member, nil
}
