// Package ctxkeys holds the shared context keys for the API layer.
// Extracted to a leaf package to avoid import cycles between api and
// api/handlers.
package ctxkeys

import "context"

// Key is the unexported named type for all API context keys. context.Value
// compares both type and value, so a named type cannot collide with plain
// string keys from other packages.
type Key string

// ClientID is the context key for the paired UI client. Injected by
// AuthMiddleware from the session JWT claims.
const ClientID Key = "client_id"

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
