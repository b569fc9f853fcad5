package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthchat/hearth/internal/domain/conversation"
)

func newConversationFixture(t *testing.T) (*ConversationHandler, *conversation.Service) {
	t.Helper()
	db := mustOpenDBWithMigrations(t)
	svc := conversation.NewService(db)
	return NewConversationHandler(svc), svc
}

func TestConversationCreateAndGet(t *testing.T) {
	handler, _ := newConversationFixture(t)

	body, _ := json.Marshal(map[string]any{
		"title":     "New Chat",
		"model":     "claude-sonnet",
		"backendId": "anthropic-main",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Create status = %d body=%s", w.Code, w.Body.String())
	}
	var created conversation.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Model != "claude-sonnet" {
		t.Fatalf("created = %+v", created)
	}

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/conversations/%s", created.ID), nil)
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": created.ID}))
	w = httptest.NewRecorder()
	handler.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Get status = %d", w.Code)
	}
}

func TestConversationCreateValidation(t *testing.T) {
	handler, _ := newConversationFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", bytes.NewBufferString(`{"title":"x"}`))
	w := httptest.NewRecorder()
	handler.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing model/backendId", w.Code)
	}
}

func TestConversationGetNotFound(t *testing.T) {
	handler, _ := newConversationFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/nope", nil)
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": "nope"}))
	w := httptest.NewRecorder()
	handler.Get(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestConversationUpdateMeta(t *testing.T) {
	handler, svc := newConversationFixture(t)

	created, err := svc.Create(context.Background(), conversation.CreateInput{
		Title: "New Chat", Model: "m1", BackendID: "b1",
	})
	if err != nil {
		t.Fatal(err)
	}

	body := `{"title":"Renamed","pinned":true,"contextRounds":4}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/conversations/"+created.ID, bytes.NewBufferString(body))
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": created.ID}))
	w := httptest.NewRecorder()
	handler.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Update status = %d body=%s", w.Code, w.Body.String())
	}
	var updated conversation.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Renamed" || !updated.Pinned || updated.ContextRounds != 4 {
		t.Fatalf("updated = %+v", updated)
	}
	// The partial update left untouched fields alone.
	if updated.Model != "m1" {
		t.Fatalf("model changed unexpectedly: %q", updated.Model)
	}
}

func TestConversationDividerLifecycle(t *testing.T) {
	handler, svc := newConversationFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, conversation.CreateInput{Title: "t", Model: "m", BackendID: "b"})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := svc.AppendMessage(ctx, created.ID, conversation.AppendMessageInput{
		Role: conversation.RoleUser, Content: "hello",
	})
	if err != nil {
		t.Fatal(err)
	}

	params := map[string]string{"id": created.ID, "messageId": msg.ID}

	req := httptest.NewRequest(http.MethodPut, "/x", nil)
	req = req.WithContext(withURLParams(req.Context(), params))
	w := httptest.NewRecorder()
	handler.AddDivider(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("AddDivider status = %d", w.Code)
	}
	var conv conversation.Conversation
	json.Unmarshal(w.Body.Bytes(), &conv) //nolint:errcheck
	if len(conv.DividerIDs) != 1 || conv.DividerIDs[0] != msg.ID {
		t.Fatalf("dividers = %v", conv.DividerIDs)
	}

	req = httptest.NewRequest(http.MethodDelete, "/x", nil)
	req = req.WithContext(withURLParams(req.Context(), params))
	w = httptest.NewRecorder()
	handler.RemoveDivider(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("RemoveDivider status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &conv) //nolint:errcheck
	if len(conv.DividerIDs) != 0 {
		t.Fatalf("dividers = %v, want empty", conv.DividerIDs)
	}
}

func TestMessageEditDeleteTruncate(t *testing.T) {
	handler, svc := newConversationFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, conversation.CreateInput{Title: "t", Model: "m", BackendID: "b"})
	if err != nil {
		t.Fatal(err)
	}
	var msgIDs []string
	for _, content := range []string{"one", "two", "three"} {
		m, err := svc.AppendMessage(ctx, created.ID, conversation.AppendMessageInput{
			Role: conversation.RoleUser, Content: content,
		})
		if err != nil {
			t.Fatal(err)
		}
		msgIDs = append(msgIDs, m.ID)
	}

	// Edit the first message.
	req := httptest.NewRequest(http.MethodPut, "/x", bytes.NewBufferString(`{"content":"edited"}`))
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": created.ID, "messageId": msgIDs[0]}))
	w := httptest.NewRecorder()
	handler.EditMessage(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("EditMessage status = %d", w.Code)
	}

	// Truncate from the second message: "two" and "three" go, "one" stays.
	req = httptest.NewRequest(http.MethodDelete, "/x", nil)
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": created.ID, "messageId": msgIDs[1]}))
	w = httptest.NewRecorder()
	handler.TruncateFrom(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("TruncateFrom status = %d", w.Code)
	}

	msgs, err := svc.GetMessages(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "edited" {
		t.Fatalf("remaining messages = %+v", msgs)
	}

	// Deleting the survivor empties the log.
	req = httptest.NewRequest(http.MethodDelete, "/x", nil)
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": created.ID, "messageId": msgIDs[0]}))
	w = httptest.NewRecorder()
	handler.DeleteMessage(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DeleteMessage status = %d", w.Code)
	}
}

func TestConversationDelete(t *testing.T) {
	handler, svc := newConversationFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, conversation.CreateInput{Title: "t", Model: "m", BackendID: "b"})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/x", nil)
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": created.ID}))
	w := httptest.NewRecorder()
	handler.Delete(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Delete status = %d", w.Code)
	}

	if _, err := svc.Get(ctx, created.ID); err == nil {
		t.Fatal("conversation still exists after delete")
	}
}
