package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "memoir-backend/pkg/errors"
)

// Member roles within a memory space.
const (
	RoleCreator = "creator"
	RoleMember  = "member"
)

// FamilyMember is a person linked to a memory space by email. Members are
// created implicitly with lookup-or-create semantics keyed by email.
type FamilyMember struct {
	ID            string
	MemorySpaceID string
	Name          string
	Email         string
	Role          string
	CreatedAt     time.Time
}

// NewFamilyMember creates a family member for a memory space.
func NewFamilyMember(memorySpaceID, name, email, role string) (*FamilyMember, error) {
	if memorySpaceID == "" {
		return nil, pkgerrors.NewValidationError("memory space id cannot be empty")
	}
	if name == "" {
		return nil, pkgerrors.NewValidationError("member name cannot be empty")
	}
	if role == "" {
		role = RoleMember
	}

	return &FamilyMember{
		ID:            uuid.New().String(),
		MemorySpaceID: memorySpaceID,
		Name:          name,
		Email:         email,
		Role:          role,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
