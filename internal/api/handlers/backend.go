package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hearthchat/hearth/internal/infra/backends"
)

// BackendRegistry is the backend management surface exposed over the API.
type BackendRegistry interface {
	List() []backends.Backend
	Get(id string) (*backends.Backend, error)
	Upsert(b backends.Backend) error
	SetCredential(id, plaintext string) error
}

// BackendHandler serves backend descriptors and credential updates.
// Plaintext keys flow in through SetCredential and never flow back out.
type BackendHandler struct {
	registry BackendRegistry
}

// NewBackendHandler creates a BackendHandler.
func NewBackendHandler(registry BackendRegistry) *BackendHandler {
	return &BackendHandler{registry: registry}
}

type upsertBackendRequest struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	BaseURL string   `json:"baseUrl"`
	Models  []string `json:"models"`
}

type backendResponse struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	BaseURL string   `json:"baseUrl"`
	Models  []string `json:"models"`
}

type setCredentialRequest struct {
	APIKey string `json:"apiKey"`
}

// List handles GET /api/v1/backends.
func (h *BackendHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.registry.List()
	out := make([]backendResponse, len(items))
	for i, b := range items {
		out[i] = toBackendResponse(b)
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/backends/{id}.
func (h *BackendHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, backends.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load backend")
		return
	}
	writeJSON(w, http.StatusOK, toBackendResponse(*b))
}

// Upsert handles PUT /api/v1/backends/{id}: creates or replaces a backend
// descriptor. A credential already stored for the id is preserved.
func (h *BackendHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertBackendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if req.Kind == "" || req.BaseURL == "" {
		writeError(w, http.StatusBadRequest, "kind and baseUrl are required")
		return
	}

	err := h.registry.Upsert(backends.Backend{
		ID:      id,
		Kind:    req.Kind,
		Name:    req.Name,
		BaseURL: req.BaseURL,
		Models:  req.Models,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save backend")
		return
	}

	b, err := h.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load backend")
		return
	}
	writeJSON(w, http.StatusOK, toBackendResponse(*b))
}

// SetCredential handles PUT /api/v1/backends/{id}/credential.
func (h *BackendHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req setCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "apiKey is required")
		return
	}

	if err := h.registry.SetCredential(chi.URLParam(r, "id"), req.APIKey); err != nil {
		if errors.Is(err, backends.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toBackendResponse maps a descriptor to its API shape. The APIKey envelope is
// deliberately absent from the response type.
func toBackendResponse(b backends.Backend) backendResponse {
	return backendResponse{
		ID:      b.ID,
		Kind:    b.Kind,
		Name:    b.Name,
		BaseURL: b.BaseURL,
		Models:  b.Models,
	}
}
