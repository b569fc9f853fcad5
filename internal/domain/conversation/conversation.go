// Package conversation is the durable store for conversations: a small mutable
// index of conversation metadata plus an append-only per-conversation message
// log, both on SQLite.
//
// Messages are never silently overwritten: content changes only through the
// explicit Edit/Delete/Truncate operations. Message ids are UUIDv7, so log
// order is id order.
package conversation

import (
	"time"
)

// RoundsUnlimited is the context-length sentinel meaning "replay everything".
const RoundsUnlimited = -1

// Roles a stored message can carry.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Reasoning      string    `json:"reasoning,omitempty"` // assistant thinking output
	Model          string    `json:"model,omitempty"`     // assistant only
	Stopped        bool      `json:"stopped,omitempty"`   // user aborted this turn mid-stream
	Attachments    []string  `json:"attachments,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Conversation is one conversation's mutable summary record.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	BackendID string `json:"backendId"`
	// ContextRounds bounds how many recent rounds are replayed to the
	// backend; RoundsUnlimited disables the bound.
	ContextRounds int `json:"contextRounds"`
	// DividerIDs are message ids marking context resets, oldest first.
	DividerIDs []string  `json:"dividerIds"`
	Pinned     bool      `json:"pinned"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CreateInput are the caller-supplied fields for a new conversation.
type CreateInput struct {
	Title     string
	Model     string
	BackendID string
}

// AppendMessageInput are the caller-supplied fields for a new message.
// The store assigns id and creation timestamp.
type AppendMessageInput struct {
	Role        string
	Content     string
	Reasoning   string
	Model       string
	Stopped     bool
	Attachments []string
}

// MetaUpdate is a partial update of the conversation summary.
// Nil fields are left untouched.
type MetaUpdate struct {
	Title         *string
	Model         *string
	BackendID     *string
	ContextRounds *int
	Pinned        *bool
}
