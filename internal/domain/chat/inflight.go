package chat

import (
	"context"
	"sync"
)

// Turn is a handle to one registered in-flight stream. Deregister only removes
// the registry entry if it still points at this handle, so a finished turn
// never evicts the turn that replaced it.
type Turn struct {
	conversationID string
	cancel         context.CancelFunc
}

// InflightRegistry tracks at most one cancellable stream per conversation id.
// It is an owned object injected into the Orchestrator — not process-global —
// so tests instantiate isolated registries.
type InflightRegistry struct {
	mu    sync.Mutex
	turns map[string]*Turn
}

// NewInflightRegistry returns an empty registry.
func NewInflightRegistry() *InflightRegistry {
	return &InflightRegistry{turns: make(map[string]*Turn)}
}

// Register installs cancel as the conversation's in-flight turn. If a prior
// turn is still registered it is force-cancelled first — a second send for the
// same conversation preempts the first rather than leaving it unstoppable.
func (r *InflightRegistry) Register(conversationID string, cancel context.CancelFunc) *Turn {
	t := &Turn{conversationID: conversationID, cancel: cancel}
	r.mu.Lock()
	prior := r.turns[conversationID]
	r.turns[conversationID] = t
	r.mu.Unlock()
	if prior != nil {
		prior.cancel()
	}
	return t
}

// Cancel triggers and removes the conversation's registered turn.
// Returns false if nothing was in flight (stop is then a silent no-op).
func (r *InflightRegistry) Cancel(conversationID string) bool {
	r.mu.Lock()
	t := r.turns[conversationID]
	delete(r.turns, conversationID)
	r.mu.Unlock()
	if t == nil {
		return false
	}
	t.cancel()
	return true
}

// Deregister removes t from the registry if it is still the registered turn.
func (r *InflightRegistry) Deregister(t *Turn) {
	r.mu.Lock()
	if r.turns[t.conversationID] == t {
		delete(r.turns, t.conversationID)
	}
	r.mu.Unlock()
}

// Active reports whether a turn is currently registered for the conversation.
func (r *InflightRegistry) Active(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turns[conversationID] != nil
}
