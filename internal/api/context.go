// Shared context helpers for the API layer.
package api

import (
	"context"

	"github.com/hearthchat/hearth/internal/api/ctxkeys"
)

// WithClientID adds the paired client id to the request context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ctxkeys.ClientID, clientID)
}

// GetClientID retrieves the paired client id from context.
func GetClientID(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(ctxkeys.ClientID).(string)
	if !ok || clientID == "" {
		return "", ErrMissingClientID
	}
	return clientID, nil
}
