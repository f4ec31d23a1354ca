package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"memoir-backend/application/services"
	"memoir-backend/pkg/common"
	pkgerrors "memoir-backend/pkg/errors"
	"memoir-backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

// MemorySpaceHandler handles memory-space HTTP requests
type MemorySpaceHandler struct {
	service    *services.MemorySpaceService
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
	appBaseURL string
}

// NewMemorySpaceHandler creates a new memory space handler
func NewMemorySpaceHandler(
	service *services.MemorySpaceService,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
	appBaseURL string,
) *MemorySpaceHandler {
	return &MemorySpaceHandler{
		service:    service,
		errors:     errorHandler,
		logger:     logger,
		appBaseURL: appBaseURL,
	}
}

// CreateMemorySpaceRequest represents the request body for creating a memory space
type CreateMemorySpaceRequest struct {
	GrandparentName string `json:"grandparent_name" validate:"required,min=1,max=200"`
	Relation        string `json:"relation" validate:"required,min=1,max=100"`
	CreatorEmail    string `json:"creator_email" validate:"required,email"`
	PhotoURL        string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// CreateMemorySpaceResponse represents the response for creating a memory space
type CreateMemorySpaceResponse struct {
	MemorySpaceID string `json:"memory_space_id"`
	UserID        string `json:"user_id"`
}

// Create handles POST /memory-spaces
func (h *MemorySpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMemorySpaceRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.service.Create(r.Context(), services.CreateInput{
		GrandparentName: req.GrandparentName,
		Relation:        req.Relation,
		CreatorEmail:    req.CreatorEmail,
		PhotoURL:        req.PhotoURL,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, CreateMemorySpaceResponse{
		MemorySpaceID: result.MemorySpaceID,
		UserID:        result.UserID,
	})
}

// MemorySpaceDetailResponse represents a memory space detail view
type MemorySpaceDetailResponse struct {
	ID              string `json:"id"`
	GrandparentName string `json:"grandparent_name"`
	PhotoURL        string `json:"grandparent_photo_url,omitempty"`
	Relation        string `json:"relation"`
	BookmarkURL     string `json:"bookmark_url"`
	CreatedAt       string `json:"created_at"`
}

// Get handles GET /memory-spaces/{spaceID}
func (h *MemorySpaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "spaceID")
	if spaceID == "" {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("memory space id is required"))
		return
	}

	space, err := h.service.GetByID(r.Context(), spaceID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, MemorySpaceDetailResponse{
		ID:              space.ID,
		GrandparentName: space.GrandparentName,
		PhotoURL:        space.PhotoURL,
		Relation:        space.Relation,
		BookmarkURL:     utils.CreateBookmarkURL(h.appBaseURL, space.ID, space.AccessToken),
		CreatedAt:       utils.FormatRFC3339(space.CreatedAt),
	})
}
