// Route registration and go-chi router setup: public routes (/health,
// /auth/pair) and session-protected routes (/api/v1/*).
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hearthchat/hearth/internal/api/handlers"
	apmiddleware "github.com/hearthchat/hearth/internal/api/middleware"
	"github.com/hearthchat/hearth/internal/infra/eventbus"
)

// Deps are the application services the router serves. Everything is
// constructed in main and injected; the router only wires URLs to handlers.
type Deps struct {
	Pairing       handlers.PairingService
	Conversations handlers.ConversationService
	TitleStore    handlers.TitleStore
	Orchestrator  handlers.ChatOrchestrator
	Backends      handlers.BackendRegistry
	Bus           eventbus.EventBus
}

// NewRouter creates and configures the chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES (no session required) =====

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handlers.NewAuthHandler(deps.Pairing)
	r.Post("/auth/pair", authHandler.Pair)

	// ===== PROTECTED ROUTES (session JWT required) =====

	conversationHandler := handlers.NewConversationHandler(deps.Conversations)
	chatHandler := handlers.NewChatHandler(deps.Orchestrator, deps.TitleStore, deps.Bus)
	backendHandler := handlers.NewBackendHandler(deps.Backends)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)       // POST   /api/v1/conversations
			r.Get("/", conversationHandler.List)          // GET    /api/v1/conversations
			r.Get("/{id}", conversationHandler.Get)       // GET    /api/v1/conversations/{id}
			r.Patch("/{id}", conversationHandler.Update)  // PATCH  /api/v1/conversations/{id}
			r.Delete("/{id}", conversationHandler.Delete) // DELETE /api/v1/conversations/{id}

			r.Put("/{id}/dividers/{messageId}", conversationHandler.AddDivider)
			r.Delete("/{id}/dividers/{messageId}", conversationHandler.RemoveDivider)

			r.Get("/{id}/messages", conversationHandler.ListMessages)
			r.Put("/{id}/messages/{messageId}", conversationHandler.EditMessage)
			r.Delete("/{id}/messages/{messageId}", conversationHandler.DeleteMessage)
			r.Delete("/{id}/messages/{messageId}/from", conversationHandler.TruncateFrom)

			r.Post("/{id}/send", chatHandler.Send)   // POST /api/v1/conversations/{id}/send
			r.Post("/{id}/stop", chatHandler.Stop)   // POST /api/v1/conversations/{id}/stop
			r.Post("/{id}/title", chatHandler.Title) // POST /api/v1/conversations/{id}/title
			r.Get("/{id}/events", chatHandler.Events)
		})

		r.Route("/backends", func(r chi.Router) {
			r.Get("/", backendHandler.List)
			r.Get("/{id}", backendHandler.Get)
			r.Put("/{id}", backendHandler.Upsert)
			r.Put("/{id}/credential", backendHandler.SetCredential)
		})
	})

	return r
}
