package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"memoir-backend/application/ports"
	"memoir-backend/application/services"
	"memoir-backend/domain/entities"
	"memoir-backend/pkg/common"
	pkgerrors "memoir-backend/pkg/errors"
	"memoir-backend/pkg/utils"
)

// StoryHandler handles story generation and retrieval HTTP requests
type StoryHandler struct {
	service *services.StoryService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(
	service *services.StoryService,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *StoryHandler {
	return &StoryHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// GenerateStoryRequest represents the request body for story generation
type GenerateStoryRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

// Generate handles POST /stories/generate
func (h *StoryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateStoryRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.service.Generate(r.Context(), req.SessionID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"story_id": result.StoryID,
		"title":    result.Title,
		"excerpt":  result.Excerpt,
		"status":   result.Status,
	})
}

// StoryDetailResponse is the full representation of a single story
type StoryDetailResponse struct {
	ID            string `json:"id"`
	MemorySpaceID string `json:"memory_space_id"`
	SessionID     string `json:"session_id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Topic         string `json:"topic"`
	Style         string `json:"style"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// StorySummary is the listing representation with an excerpt instead of
// the full content
type StorySummary struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	Topic     string `json:"topic"`
	Style     string `json:"style"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// MemberStoryResponse is a story with its grandparent attribution, used
// by the cross-space member listing
type MemberStoryResponse struct {
	StoryDetailResponse
	GrandparentName string `json:"grandparent_name"`
}

// Get handles GET /stories/{storyID}
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "storyID")

	story, err := h.service.GetByID(r.Context(), storyID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, storyDetail(story))
}

// ListByMemorySpace handles GET /stories/by-memory-space/{spaceID}
func (h *StoryHandler) ListByMemorySpace(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "spaceID")

	result, err := h.service.ListByMemorySpace(r.Context(), spaceID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	summaries := make([]StorySummary, 0, len(result.Stories))
	for _, story := range result.Stories {
		summaries = append(summaries, StorySummary{
			ID:        story.ID,
			SessionID: story.SessionID,
			Title:     story.Title,
			Excerpt:   utils.ExtractExcerpt(story.Content, services.ExcerptWords),
			Topic:     string(story.Topic),
			Style:     string(story.Style),
			Status:    string(story.Status),
			CreatedAt: utils.FormatRFC3339(story.GeneratedAt),
		})
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"stories": summaries,
		"total":   result.Total,
	})
}

// ListByMemberEmail handles GET /stories/by-email/{email}
func (h *StoryHandler) ListByMemberEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	stories, err := h.service.ListByMemberEmail(r.Context(), email)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	responses := make([]MemberStoryResponse, 0, len(stories))
	for _, item := range stories {
		responses = append(responses, memberStory(item))
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"stories": responses,
		"total":   len(responses),
	})
}

func storyDetail(story *entities.Story) StoryDetailResponse {
	return StoryDetailResponse{
		ID:            story.ID,
		MemorySpaceID: story.MemorySpaceID,
		SessionID:     story.SessionID,
		Title:         story.Title,
		Content:       story.Content,
		Topic:         string(story.Topic),
		Style:         string(story.Style),
		Status:        string(story.Status),
		CreatedAt:     utils.FormatRFC3339(story.GeneratedAt),
	}
}

func memberStory(item ports.StoryWithSpace) MemberStoryResponse {
	return MemberStoryResponse{
		StoryDetailResponse: storyDetail(item.Story),
		GrandparentName:     item.GrandparentName,
	}
}
