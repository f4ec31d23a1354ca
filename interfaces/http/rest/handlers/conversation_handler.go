package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"memoir-backend/application/services"
	"memoir-backend/domain/entities"
	"memoir-backend/pkg/common"
	pkgerrors "memoir-backend/pkg/errors"
	"memoir-backend/pkg/utils"
)

// ConversationHandler handles chat and history HTTP requests
type ConversationHandler struct {
	service *services.ConversationService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(
	service *services.ConversationService,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// ChatRequest represents the request body for a chat turn
type ChatRequest struct {
	MemorySpaceID   string `json:"memory_space_id" validate:"required_without=SessionID,omitempty,uuid"`
	SessionID       string `json:"session_id,omitempty" validate:"omitempty,uuid"`
	UserMessage     string `json:"user_message,omitempty"`
	GrandparentName string `json:"grandparent_name,omitempty"`
	EndConversation bool   `json:"end_conversation,omitempty"`
}

// sessionFrame is the wire shape of metadata and done events
type sessionFrame struct {
	Type                string `json:"type"`
	SessionID           string `json:"session_id"`
	QuestionCount       int    `json:"question_count"`
	IsComplete          bool   `json:"is_complete"`
	ShouldAskToContinue bool   `json:"should_ask_to_continue"`
}

// tokenFrame is the wire shape of token events
type tokenFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// errorFrame is the wire shape of error events
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Chat handles POST /conversations/chat. Validation and session
// resolution errors surface as plain HTTP errors; once streaming starts,
// failures arrive as a terminal error frame.
func (h *ConversationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	events, err := h.service.ProcessTurn(r.Context(), services.ProcessTurnInput{
		MemorySpaceID:   req.MemorySpaceID,
		SessionID:       req.SessionID,
		UserMessage:     req.UserMessage,
		GrandparentName: req.GrandparentName,
		EndConversation: req.EndConversation,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		payload, err := json.Marshal(frameFor(event))
		if err != nil {
			h.logger.Error("failed to marshal stream frame", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func frameFor(event services.StreamEvent) interface{} {
	switch event.Type {
	case services.EventToken:
		return tokenFrame{Type: string(event.Type), Content: event.Content}
	case services.EventError:
		return errorFrame{Type: string(event.Type), Message: event.Message}
	default:
		return sessionFrame{
			Type:                string(event.Type),
			SessionID:           event.SessionID,
			QuestionCount:       event.QuestionCount,
			IsComplete:          event.IsComplete,
			ShouldAskToContinue: event.ShouldAskToContinue,
		}
	}
}

// MessageDetail is one message in a history response
type MessageDetail struct {
	Role           string `json:"role"`
	Content        string `json:"content"`
	SequenceNumber int    `json:"sequence_number"`
	CreatedAt      string `json:"created_at"`
}

// HistoryResponse represents a session's transcript
type HistoryResponse struct {
	SessionID   string          `json:"session_id"`
	Topic       string          `json:"topic"`
	Status      string          `json:"status"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Messages    []MessageDetail `json:"messages"`
}

// History handles GET /conversations/history?session_id=
func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("session_id is required"))
		return
	}

	session, messages, err := h.service.History(r.Context(), sessionID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	response := HistoryResponse{
		SessionID: session.ID,
		Topic:     string(session.Topic),
		Status:    string(session.Status),
		StartedAt: utils.FormatRFC3339(session.StartedAt),
		Messages:  make([]MessageDetail, 0, len(messages)),
	}
	if session.CompletedAt != nil {
		response.CompletedAt = utils.FormatRFC3339(*session.CompletedAt)
	}
	for _, msg := range messages {
		response.Messages = append(response.Messages, messageDetail(msg))
	}

	common.RespondJSON(w, http.StatusOK, response)
}

func messageDetail(msg *entities.ConversationMessage) MessageDetail {
	return MessageDetail{
		Role:           string(msg.Role),
		Content:        msg.Content,
		SequenceNumber: msg.SequenceNumber,
		CreatedAt:      utils.FormatRFC3339(msg.CreatedAt),
	}
}
