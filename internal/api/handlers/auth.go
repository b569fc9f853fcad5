package handlers

import (
	"errors"
	"net/http"

	"github.com/hearthchat/hearth/internal/domain/auth"
)

// PairingService is the contract the auth handler needs.
type PairingService interface {
	Pair(code string) (*auth.PairResult, error)
}

// AuthHandler exchanges pairing codes for session tokens.
type AuthHandler struct {
	service PairingService
}

// NewAuthHandler creates an AuthHandler backed by the given service.
func NewAuthHandler(service PairingService) *AuthHandler {
	return &AuthHandler{service: service}
}

type pairRequest struct {
	Code string `json:"code"`
}

type pairResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

// Pair handles POST /auth/pair.
func (h *AuthHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	res, err := h.service.Pair(req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			writeError(w, http.StatusUnauthorized, "invalid pairing code")
			return
		}
		writeError(w, http.StatusInternalServerError, "pairing failed")
		return
	}

	writeJSON(w, http.StatusOK, pairResponse{Token: res.Token, ClientID: res.ClientID})
}
