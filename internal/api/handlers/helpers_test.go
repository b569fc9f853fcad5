package handlers

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hearthchat/hearth/internal/infra/sqlite"
)

// mustOpenDBWithMigrations opens an in-memory database with the full schema.
func mustOpenDBWithMigrations(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// withURLParams attaches chi URL parameters to a request context.
func withURLParams(ctx context.Context, params map[string]string) context.Context {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}
