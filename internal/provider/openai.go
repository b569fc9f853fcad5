// OpenAI Chat Completions adapter, also the dialect spoken by most
// OpenAI-compatible servers (DeepSeek, vLLM, llama.cpp, ...).
// Endpoint: POST {base}/chat/completions with bearer auth; the base URL is
// expected to carry the version prefix (".../v1").
// Reasoning output arrives as delta.reasoning_content (DeepSeek-style), which
// can share a frame with visible text — that is the one case where a single
// SSE line yields two events.
package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAIAdapter implements Adapter for the Chat Completions wire protocol.
type OpenAIAdapter struct{}

// NewOpenAIAdapter returns the OpenAI adapter.
func NewOpenAIAdapter() *OpenAIAdapter { return &OpenAIAdapter{} }

// Kind returns "openai".
func (a *OpenAIAdapter) Kind() string { return "openai" }

// ─── wire types ──────────────────────────────────────────────────────────────

type openAIImageURL struct {
	URL string `json:"url"` // data: URI with inlined base64
}

type openAIPart struct {
	Type     string          `json:"type"` // "text" | "image_url"
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

// openAIMessage content is a plain string or a part list for multimodal turns.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIRequest struct {
	Model           string          `json:"model"`
	Stream          bool            `json:"stream,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
	Messages        []openAIMessage `json:"messages"`
}

type openAIStreamFrame struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type openAITitleResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// doneSentinel terminates an OpenAI-style stream in place of a JSON frame.
const doneSentinel = "[DONE]"

// ─── Adapter implementation ─────────────────────────────────────────────────

// BuildStreamRequest builds the streaming /chat/completions request.
// The uniform role set maps straight through; the system prompt becomes the
// leading system message.
func (a *OpenAIAdapter) BuildStreamRequest(in StreamInput) (*HTTPRequest, error) {
	messages := make([]openAIMessage, 0, len(in.History)+2)
	if in.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: RoleSystem, Content: in.SystemPrompt})
	}
	for _, m := range in.History {
		content, err := openAIContent(m.Content, m.Attachments, in.ReadImages)
		if err != nil {
			return nil, fmt.Errorf("openai: inline history attachments: %w", err)
		}
		messages = append(messages, openAIMessage{Role: m.Role, Content: content})
	}
	content, err := openAIContent(in.UserText, in.Attachments, in.ReadImages)
	if err != nil {
		return nil, fmt.Errorf("openai: inline attachments: %w", err)
	}
	messages = append(messages, openAIMessage{Role: RoleUser, Content: content})

	req := openAIRequest{
		Model:    in.Model,
		Stream:   true,
		Messages: messages,
	}
	if in.ThinkingEnabled {
		// Reasoning models reject a custom temperature; send effort instead.
		req.ReasoningEffort = "medium"
	} else {
		temp := defaultTemperature
		req.Temperature = &temp
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	return &HTTPRequest{
		URL:    in.BaseURL + "/chat/completions",
		Header: openAIHeaders(in.APIKey),
		Body:   body,
	}, nil
}

// ParseSSELine parses one Chat Completions stream frame.
// A frame carrying both reasoning_content and content yields two events, in
// that order (reasoning precedes the text it produced).
func (a *OpenAIAdapter) ParseSSELine(line string) []StreamEvent {
	if strings.TrimSpace(line) == doneSentinel {
		return []StreamEvent{{Kind: EventDone}}
	}

	var frame openAIStreamFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return nil
	}
	if frame.Error != nil {
		return []StreamEvent{{Kind: EventError, Message: frame.Error.Message}}
	}
	if len(frame.Choices) == 0 {
		return nil
	}

	var events []StreamEvent
	delta := frame.Choices[0].Delta
	if delta.ReasoningContent != "" {
		events = append(events, StreamEvent{Kind: EventReasoning, Delta: delta.ReasoningContent})
	}
	if delta.Content != "" {
		events = append(events, StreamEvent{Kind: EventChunk, Delta: delta.Content})
	}
	return events
}

// BuildTitleRequest builds a non-streaming, low-token completion request.
func (a *OpenAIAdapter) BuildTitleRequest(in TitleInput) (*HTTPRequest, error) {
	req := openAIRequest{
		Model:     in.Model,
		MaxTokens: titleMaxTokens,
		Messages: []openAIMessage{
			{Role: RoleUser, Content: titlePrompt(in.UserText)},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal title request: %w", err)
	}
	return &HTTPRequest{
		URL:    in.BaseURL + "/chat/completions",
		Header: openAIHeaders(in.APIKey),
		Body:   body,
	}, nil
}

// ParseTitleResponse extracts the completion text from a title response.
func (a *OpenAIAdapter) ParseTitleResponse(body []byte) string {
	var resp openAITitleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func openAIHeaders(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+apiKey)
	return h
}

// openAIContent returns a plain string without attachments, or a part list
// with the text first and images after (data: URIs).
func openAIContent(text string, refs []string, read ImageReader) (any, error) {
	images, err := readImages(read, refs)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return text, nil
	}
	parts := make([]openAIPart, 0, len(images)+1)
	parts = append(parts, openAIPart{Type: "text", Text: text})
	for _, img := range images {
		parts = append(parts, openAIPart{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: "data:" + img.MediaType + ";base64," + img.Base64Data},
		})
	}
	return parts, nil
}
