// Package provider defines the model-agnostic adapter contract for LLM
// backends plus the three concrete wire-protocol adapters (Anthropic, OpenAI,
// Gemini) and the SSE stream reader that drives them.
//
// Adapters are pure transformations: they build request payloads and parse
// response frames, and never perform network or file I/O themselves. That keeps
// each wire protocol verifiable with fixed input/output fixtures.
package provider

import "net/http"

// Roles shared by all backends. Adapters map these onto each backend's own
// role vocabulary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of trimmed history handed to an adapter.
type ChatMessage struct {
	Role        string
	Content     string
	Attachments []string // attachment refs; image refs are inlined by the adapter
}

// EventKind discriminates the normalized stream event union.
type EventKind string

const (
	// EventChunk carries a fragment of assistant-visible text.
	EventChunk EventKind = "chunk"
	// EventReasoning carries a fragment of provider "thinking" output.
	EventReasoning EventKind = "reasoning"
	// EventError carries a backend-signaled failure; it terminates the stream.
	EventError EventKind = "error"
	// EventDone marks the backend-signaled end of the stream.
	EventDone EventKind = "done"
)

// StreamEvent is the only vocabulary adapters may emit. Provider-specific
// framing never leaks past the adapter boundary.
type StreamEvent struct {
	Kind    EventKind
	Delta   string // chunk/reasoning payload
	Message string // error payload
}

// HTTPRequest is a fully built provider request, ready for execution.
// Adapters produce it; the stream reader (or a plain POST for titles) sends it.
type HTTPRequest struct {
	URL    string
	Header http.Header
	Body   []byte
}

// ImageData is one inlined image attachment.
type ImageData struct {
	MediaType  string
	Base64Data string
}

// ImageReader resolves attachment refs into inlined image payloads.
// Injected into adapters so they stay free of file I/O; non-image refs are
// skipped by the implementation.
type ImageReader func(refs []string) ([]ImageData, error)

// StreamInput is everything an adapter needs to build a streaming request.
type StreamInput struct {
	BaseURL         string
	APIKey          string
	Model           string
	History         []ChatMessage // windowed history, oldest first
	UserText        string        // current outgoing user message
	Attachments     []string      // attachment refs for the current turn
	SystemPrompt    string
	ThinkingEnabled bool
	ReadImages      ImageReader
}

// TitleInput is the input for the one-shot title synthesis request.
type TitleInput struct {
	BaseURL  string
	APIKey   string
	Model    string
	UserText string // first user message of the conversation
}

// Adapter is the capability contract each backend kind implements.
type Adapter interface {
	// Kind returns the provider kind tag ("anthropic", "openai", "gemini").
	Kind() string

	// BuildStreamRequest builds the streaming chat request.
	BuildStreamRequest(in StreamInput) (*HTTPRequest, error)

	// ParseSSELine parses one raw SSE data payload into zero or more events.
	// It never fails: malformed or unknown payloads yield nil. A single
	// payload may legitimately yield two events (reasoning + text in one frame).
	ParseSSELine(line string) []StreamEvent

	// BuildTitleRequest builds the non-streaming, low-token title request.
	BuildTitleRequest(in TitleInput) (*HTTPRequest, error)

	// ParseTitleResponse extracts the title text from a title response body.
	// Returns "" on any parse failure.
	ParseTitleResponse(body []byte) string
}
