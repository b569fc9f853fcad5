// HTTP server initialization and lifecycle management for the local daemon.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns the default configuration: loopback only — the daemon
// serves the desktop UI on the same machine and must never listen on a public
// interface. WriteTimeout is zero because the event stream and chat turns are
// open-ended; per-request deadlines belong to the handlers.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8787,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
}

// Server wraps the HTTP server and the database it owns.
type Server struct {
	config Config
	db     *sql.DB
	http   *http.Server
}

// NewServer creates the HTTP server around an already-wired handler.
func NewServer(handler http.Handler, db *sql.DB, config Config) *Server {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		config: config,
		db:     db,
		http:   httpServer,
	}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	log.Printf("hearthd listening on http://%s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("shutting down...")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("database close error: %w", err)
	}

	log.Println("shutdown complete")
	return nil
}
