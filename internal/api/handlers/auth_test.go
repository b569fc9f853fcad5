package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthchat/hearth/internal/domain/auth"
	pkgauth "github.com/hearthchat/hearth/pkg/auth"
)

func newAuthFixture(t *testing.T) *AuthHandler {
	t.Helper()
	t.Setenv("HEARTH_SESSION_SECRET", "test-secret")
	svc, err := auth.NewService("914-267")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewAuthHandler(svc)
}

func TestPairReturnsSessionToken(t *testing.T) {
	handler := newAuthFixture(t)

	body, _ := json.Marshal(map[string]string{"code": "914-267"})
	req := httptest.NewRequest(http.MethodPost, "/auth/pair", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.Pair(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp pairResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	claims, err := pkgauth.ParseJWT(resp.Token)
	if err != nil {
		t.Fatalf("returned token does not parse: %v", err)
	}
	if claims.ClientID != resp.ClientID {
		t.Fatalf("claims client id = %q, response says %q", claims.ClientID, resp.ClientID)
	}
}

func TestPairRejectsWrongCode(t *testing.T) {
	handler := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/pair", bytes.NewBufferString(`{"code":"000-000"}`))
	w := httptest.NewRecorder()
	handler.Pair(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPairValidation(t *testing.T) {
	handler := newAuthFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/pair", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			handler.Pair(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}
