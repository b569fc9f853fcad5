package chat

// Event is the payload pushed to the UI process over the event bus. The UI
// receives every chunk/reasoning fragment in stream order and exactly one
// terminal event (complete or error) per turn.
type Event struct {
	Type      string `json:"type"` // "chunk" | "reasoning" | "complete" | "error"
	Delta     string `json:"delta,omitempty"`
	MessageID string `json:"messageId,omitempty"` // complete: persisted assistant message, if any
	Message   string `json:"message,omitempty"`   // error: human-readable description
}

// Event types.
const (
	EventChunk     = "chunk"
	EventReasoning = "reasoning"
	EventComplete  = "complete"
	EventError     = "error"
)

// Topic returns the bus topic scoping events to one conversation.
func Topic(conversationID string) string {
	return "chat." + conversationID
}
