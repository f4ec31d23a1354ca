package services

import (
	"context"

	"go.uber.org/zap"

	"memoir-backend/application/ports"
	"memoir-backend/domain/entities"
	"memoir-backend/pkg/utils"
)

// MemorySpaceService creates and reads memory spaces (grandparent
// profiles) and their implicitly created family members.
type MemorySpaceService struct {
	spaces  ports.MemorySpaceRepository
	members ports.FamilyMemberRepository
	logger  *zap.Logger
}

// NewMemorySpaceService creates a memory space service.
func NewMemorySpaceService(
	spaces ports.MemorySpaceRepository,
	members ports.FamilyMemberRepository,
	logger *zap.Logger,
) *MemorySpaceService {
	return &MemorySpaceService{
		spaces:  spaces,
		members: members,
		logger:  logger,
	}
}

// CreateInput is the request to create a memory space.
type CreateInput struct {
	GrandparentName string
	Relation        string
	CreatorEmail    string
	PhotoURL        string
}

// CreateResult identifies the new space and the creator's member record.
type CreateResult struct {
	MemorySpaceID string
	UserID        string
}

// Create persists a new memory space. The creator is looked up by email
// across all spaces; an unseen email gets a new creator member whose name
// defaults to the email's local part.
func (s *MemorySpaceService) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	space, err := entities.NewMemorySpace(input.GrandparentName, input.Relation, input.PhotoURL)
	if err != nil {
		return nil, err
	}

	if err := s.spaces.Create(ctx, space); err != nil {
		return nil, err
	}

	existing, err := s.members.FindByEmail(ctx, input.CreatorEmail)
	if err != nil {
		return nil, err
	}

	var userID string
	if existing != nil {
		userID = existing.ID
	} else {
		member, err := entities.NewFamilyMember(
			space.ID,
			utils.EmailLocalPart(input.CreatorEmail),
			input.CreatorEmail,
			entities.RoleCreator,
		)
		if err != nil {
			return nil, err
		}
		if err := s.members.Create(ctx, member); err != nil {
			return nil, err
		}
		userID = member.ID
	}

	s.logger.Info("memory space created",
		zap.String("memory_space_id", space.ID),
		zap.String("grandparent_name", space.GrandparentName),
	)

	return &CreateResult{MemorySpaceID: space.ID, UserID: userID}, nil
}

// GetByID returns a memory space by its ID.
func (s *MemorySpaceService) GetByID(ctx context.Context, spaceID string) (*entities.MemorySpace, error) {
	return s.spaces.GetByID(ctx, spaceID)
}
