package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hearthchat/hearth/internal/infra/backends"
)

func newBackendFixture(t *testing.T) (*BackendHandler, *backends.Registry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backends.yaml")
	reg, err := backends.Load(path, "master-secret")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return NewBackendHandler(reg), reg
}

func TestBackendUpsertAndList(t *testing.T) {
	handler, _ := newBackendFixture(t)

	body, _ := json.Marshal(map[string]any{
		"kind":    "anthropic",
		"name":    "Anthropic",
		"baseUrl": "https://api.anthropic.com",
		"models":  []string{"claude-sonnet"},
	})
	req := httptest.NewRequest(http.MethodPut, "/x", bytes.NewReader(body))
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": "anthropic-main"}))
	w := httptest.NewRecorder()
	handler.Upsert(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Upsert status = %d body=%s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	w = httptest.NewRecorder()
	handler.List(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("List status = %d", w.Code)
	}
	var items []backendResponse
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "anthropic-main" || items[0].Kind != "anthropic" {
		t.Fatalf("items = %+v", items)
	}
}

func TestBackendUpsertValidation(t *testing.T) {
	handler, _ := newBackendFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/x", bytes.NewBufferString(`{"name":"x"}`))
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": "b1"}))
	w := httptest.NewRecorder()
	handler.Upsert(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestBackendCredentialNeverLeaves(t *testing.T) {
	handler, reg := newBackendFixture(t)

	if err := reg.Upsert(backends.Backend{ID: "b1", Kind: "openai", BaseURL: "https://api.openai.com/v1"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPut, "/x", bytes.NewBufferString(`{"apiKey":"sk-super-secret"}`))
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": "b1"}))
	w := httptest.NewRecorder()
	handler.SetCredential(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("SetCredential status = %d body=%s", w.Code, w.Body.String())
	}

	// The stored credential round-trips through the registry...
	plaintext, err := reg.DecryptCredential("b1")
	if err != nil || plaintext != "sk-super-secret" {
		t.Fatalf("DecryptCredential = %q, %v", plaintext, err)
	}

	// ...but never appears in any API response.
	for _, fetch := range []http.HandlerFunc{handler.List, handler.Get} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": "b1"}))
		w := httptest.NewRecorder()
		fetch(w, req)
		if strings.Contains(w.Body.String(), "sk-super-secret") || strings.Contains(w.Body.String(), "apiKey") {
			t.Fatalf("credential material leaked: %s", w.Body.String())
		}
	}
}

func TestBackendSetCredentialUnknownID(t *testing.T) {
	handler, _ := newBackendFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/x", bytes.NewBufferString(`{"apiKey":"k"}`))
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": "nope"}))
	w := httptest.NewRecorder()
	handler.SetCredential(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestBackendGetNotFound(t *testing.T) {
	handler, _ := newBackendFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(withURLParams(req.Context(), map[string]string{"id": "nope"}))
	w := httptest.NewRecorder()
	handler.Get(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
