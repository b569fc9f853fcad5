package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hearthchat/hearth/internal/domain/conversation"
)

// ConversationService is the slice of the conversation store the handlers use.
type ConversationService interface {
	Create(ctx context.Context, input conversation.CreateInput) (*conversation.Conversation, error)
	Get(ctx context.Context, id string) (*conversation.Conversation, error)
	List(ctx context.Context) ([]*conversation.Conversation, error)
	UpdateMeta(ctx context.Context, id string, update conversation.MetaUpdate) (*conversation.Conversation, error)
	AddDivider(ctx context.Context, id, messageID string) (*conversation.Conversation, error)
	RemoveDivider(ctx context.Context, id, messageID string) (*conversation.Conversation, error)
	Delete(ctx context.Context, id string) error
	GetMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
	EditMessage(ctx context.Context, conversationID, messageID, content string) error
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
	TruncateFrom(ctx context.Context, conversationID, messageID string) error
}

// ConversationHandler serves conversation and message CRUD.
type ConversationHandler struct {
	service ConversationService
}

// NewConversationHandler creates a ConversationHandler.
func NewConversationHandler(service ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

type createConversationRequest struct {
	Title     string `json:"title"`
	Model     string `json:"model"`
	BackendID string `json:"backendId"`
}

type updateConversationRequest struct {
	Title         *string `json:"title,omitempty"`
	Model         *string `json:"model,omitempty"`
	BackendID     *string `json:"backendId,omitempty"`
	ContextRounds *int    `json:"contextRounds,omitempty"`
	Pinned        *bool   `json:"pinned,omitempty"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/v1/conversations.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Model == "" || req.BackendID == "" {
		writeError(w, http.StatusBadRequest, "model and backendId are required")
		return
	}

	conv, err := h.service.Create(r.Context(), conversation.CreateInput{
		Title:     req.Title,
		Model:     req.Model,
		BackendID: req.BackendID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/v1/conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// Get handles GET /api/v1/conversations/{id}.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeNotFoundOr(w, err, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Update handles PATCH /api/v1/conversations/{id}: a partial metadata update
// covering rename, model/backend switch, pin and context-rounds changes.
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	conv, err := h.service.UpdateMeta(r.Context(), chi.URLParam(r, "id"), conversation.MetaUpdate{
		Title:         req.Title,
		Model:         req.Model,
		BackendID:     req.BackendID,
		ContextRounds: req.ContextRounds,
		Pinned:        req.Pinned,
	})
	if err != nil {
		writeNotFoundOr(w, err, "failed to update conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/v1/conversations/{id}.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeNotFoundOr(w, err, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDivider handles PUT /api/v1/conversations/{id}/dividers/{messageId}.
func (h *ConversationHandler) AddDivider(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.AddDivider(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"))
	if err != nil {
		writeNotFoundOr(w, err, "failed to add divider")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// RemoveDivider handles DELETE /api/v1/conversations/{id}/dividers/{messageId}.
func (h *ConversationHandler) RemoveDivider(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.RemoveDivider(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"))
	if err != nil {
		writeNotFoundOr(w, err, "failed to remove divider")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListMessages handles GET /api/v1/conversations/{id}/messages.
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.service.GetMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// EditMessage handles PUT /api/v1/conversations/{id}/messages/{messageId}.
func (h *ConversationHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := h.service.EditMessage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"), req.Content)
	if err != nil {
		writeNotFoundOr(w, err, "failed to edit message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMessage handles DELETE /api/v1/conversations/{id}/messages/{messageId}.
func (h *ConversationHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteMessage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"))
	if err != nil {
		writeNotFoundOr(w, err, "failed to delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TruncateFrom handles DELETE /api/v1/conversations/{id}/messages/{messageId}/from:
// deletes the message and everything after it, the regenerate primitive.
func (h *ConversationHandler) TruncateFrom(w http.ResponseWriter, r *http.Request) {
	err := h.service.TruncateFrom(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageId"))
	if err != nil {
		writeNotFoundOr(w, err, "failed to truncate messages")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeNotFoundOr maps sql.ErrNoRows to 404 and anything else to a 500 with
// the given message.
func writeNotFoundOr(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, message)
}
