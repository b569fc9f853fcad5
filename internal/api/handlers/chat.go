package handlers

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hearthchat/hearth/internal/domain/chat"
	"github.com/hearthchat/hearth/internal/domain/conversation"
	"github.com/hearthchat/hearth/internal/infra/eventbus"
)

// ChatOrchestrator is the turn surface the chat handler drives.
type ChatOrchestrator interface {
	Send(ctx context.Context, in chat.SendInput)
	Stop(conversationID string)
	GenerateTitle(ctx context.Context, in chat.TitleInput) string
}

// TitleStore is the slice of the conversation store the title endpoint needs.
type TitleStore interface {
	Get(ctx context.Context, id string) (*conversation.Conversation, error)
	GetMessages(ctx context.Context, id string) ([]conversation.Message, error)
	UpdateMeta(ctx context.Context, id string, update conversation.MetaUpdate) (*conversation.Conversation, error)
}

// ChatHandler serves send/stop/title plus the per-conversation event stream.
type ChatHandler struct {
	orchestrator ChatOrchestrator
	store        TitleStore
	bus          eventbus.EventBus
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(orchestrator ChatOrchestrator, store TitleStore, bus eventbus.EventBus) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, store: store, bus: bus}
}

type sendRequest struct {
	Text            string   `json:"text"`
	Attachments     []string `json:"attachments,omitempty"`
	SystemPrompt    string   `json:"systemPrompt,omitempty"`
	ThinkingEnabled bool     `json:"thinkingEnabled,omitempty"`
	Model           string   `json:"model,omitempty"`
	BackendID       string   `json:"backendId,omitempty"`
}

// Send handles POST /api/v1/conversations/{id}/send. The turn runs in the
// background; all output arrives on the conversation's event stream. 202 only
// acknowledges that the turn was accepted.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" && len(req.Attachments) == 0 {
		writeError(w, http.StatusBadRequest, "text or attachments required")
		return
	}

	// Detached from the request context: the stream must outlive this POST.
	go h.orchestrator.Send(context.Background(), chat.SendInput{
		ConversationID:  chi.URLParam(r, "id"),
		Text:            req.Text,
		Attachments:     req.Attachments,
		SystemPrompt:    req.SystemPrompt,
		ThinkingEnabled: req.ThinkingEnabled,
		Model:           req.Model,
		BackendID:       req.BackendID,
	})

	w.WriteHeader(http.StatusAccepted)
}

// Stop handles POST /api/v1/conversations/{id}/stop. Always 204: stopping an
// idle conversation is a no-op, not an error.
func (h *ChatHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.Stop(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// Title handles POST /api/v1/conversations/{id}/title: synthesizes a title
// from the first user message and persists it. Returns the conversation with
// whatever title it ends up with — the placeholder survives a failed synthesis.
func (h *ChatHandler) Title(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	conv, err := h.store.Get(ctx, id)
	if err != nil {
		writeNotFoundOr(w, err, "failed to load conversation")
		return
	}

	userText := firstUserMessage(ctx, h.store, id)
	if userText == "" {
		writeError(w, http.StatusConflict, "conversation has no user messages")
		return
	}

	title := h.orchestrator.GenerateTitle(ctx, chat.TitleInput{
		BackendID: conv.BackendID,
		Model:     conv.Model,
		UserText:  userText,
	})
	if title == "" {
		writeJSON(w, http.StatusOK, conv)
		return
	}

	updated, err := h.store.UpdateMeta(ctx, id, conversation.MetaUpdate{Title: &title})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save title")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Events handles GET /api/v1/conversations/{id}/events: an SSE bridge from
// the event bus to the UI. The subscription lives until the client disconnects.
func (h *ChatHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.Get(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set(headerContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	topic := chat.Topic(id)
	sub := h.bus.Subscribe(topic)
	defer h.bus.Unsubscribe(topic, sub)

	bw := bufio.NewWriter(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			b, err := json.Marshal(evt.Payload)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(bw, "data: %s\n\n", b); err != nil {
				return
			}
			if err := bw.Flush(); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// firstUserMessage returns the content of the oldest user message, or "".
func firstUserMessage(ctx context.Context, store TitleStore, conversationID string) string {
	msgs, err := store.GetMessages(ctx, conversationID)
	if err != nil {
		return ""
	}
	for _, m := range msgs {
		if m.Role == conversation.RoleUser {
			return m.Content
		}
	}
	return ""
}
