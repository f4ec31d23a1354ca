package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "memoir-backend/pkg/errors"
)

// MemorySpace is the profile/workspace representing one interview subject
// (the grandparent) and their family circle. The access token is a unique
// bookmark credential, not an authentication secret.
type MemorySpace struct {
	ID              string
	GrandparentName string
	PhotoURL        string
	Relation        string
	AccessToken     string
	CreatedAt       time.Time
}

// NewMemorySpace creates a memory space with a freshly minted access token.
func NewMemorySpace(grandparentName, relation, photoURL string) (*MemorySpace, error) {
	if grandparentName == "" {
		return nil, pkgerrors.NewValidationError("grandparent name cannot be empty")
	}
	if relation == "" {
		return nil, pkgerrors.NewValidationError("relation cannot be empty")
	}

	return &MemorySpace{
		ID:              uuid.New().String(),
		GrandparentName: grandparentName,
		PhotoURL:        photoURL,
		Relation:        relation,
		AccessToken:     uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
	}, nil
}
