// Anthropic Messages API adapter.
// Endpoint: POST {base}/v1/messages with "x-api-key" auth.
// The system prompt travels as a top-level "system" field, not a message.
// Extended thinking is enabled via the "thinking" block; Anthropic rejects a
// custom temperature alongside thinking, so temperature is omitted in that case.
package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
	// Token budget granted to the thinking block when reasoning is enabled.
	anthropicThinkingBudget = 2048

	defaultTemperature = 0.7
)

// AnthropicAdapter implements Adapter for the Anthropic Messages API.
type AnthropicAdapter struct{}

// NewAnthropicAdapter returns the Anthropic adapter.
func NewAnthropicAdapter() *AnthropicAdapter { return &AnthropicAdapter{} }

// Kind returns "anthropic".
func (a *AnthropicAdapter) Kind() string { return "anthropic" }

// ─── wire types ──────────────────────────────────────────────────────────────

type anthropicImageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string                `json:"type"` // "text" | "image"
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

// anthropicMessage content is either a plain string or a block list; `any`
// covers both without a custom marshaller.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicThinking struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicStreamFrame struct {
	Type  string `json:"type"`
	Delta struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicTitleResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// ─── Adapter implementation ─────────────────────────────────────────────────

// BuildStreamRequest builds the streaming /v1/messages request.
func (a *AnthropicAdapter) BuildStreamRequest(in StreamInput) (*HTTPRequest, error) {
	messages := make([]anthropicMessage, 0, len(in.History)+1)
	for _, m := range in.History {
		// Anthropic carries no system role inside messages; the top-level
		// system field is the only system channel.
		if m.Role == RoleSystem {
			continue
		}
		content, err := anthropicContent(m.Content, m.Attachments, in.ReadImages)
		if err != nil {
			return nil, fmt.Errorf("anthropic: inline history attachments: %w", err)
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: content})
	}

	content, err := anthropicContent(in.UserText, in.Attachments, in.ReadImages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: inline attachments: %w", err)
	}
	messages = append(messages, anthropicMessage{Role: RoleUser, Content: content})

	req := anthropicRequest{
		Model:     in.Model,
		MaxTokens: anthropicMaxTokens,
		Stream:    true,
		System:    in.SystemPrompt,
		Messages:  messages,
	}
	if in.ThinkingEnabled {
		req.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: anthropicThinkingBudget}
	} else {
		temp := defaultTemperature
		req.Temperature = &temp
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	return &HTTPRequest{
		URL:    in.BaseURL + "/v1/messages",
		Header: anthropicHeaders(in.APIKey),
		Body:   body,
	}, nil
}

// ParseSSELine parses one Anthropic stream frame.
// content_block_delta frames yield chunk (text_delta) or reasoning
// (thinking_delta) events; message_stop yields done; error frames yield error.
// Everything else (message_start, ping, content_block_start, ...) yields nil.
func (a *AnthropicAdapter) ParseSSELine(line string) []StreamEvent {
	var frame anthropicStreamFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return nil
	}

	switch frame.Type {
	case "content_block_delta":
		switch frame.Delta.Type {
		case "text_delta":
			if frame.Delta.Text == "" {
				return nil
			}
			return []StreamEvent{{Kind: EventChunk, Delta: frame.Delta.Text}}
		case "thinking_delta":
			if frame.Delta.Thinking == "" {
				return nil
			}
			return []StreamEvent{{Kind: EventReasoning, Delta: frame.Delta.Thinking}}
		}
		return nil
	case "message_stop":
		return []StreamEvent{{Kind: EventDone}}
	case "error":
		return []StreamEvent{{Kind: EventError, Message: frame.Error.Message}}
	default:
		return nil
	}
}

// BuildTitleRequest builds a non-streaming, low-token /v1/messages request.
func (a *AnthropicAdapter) BuildTitleRequest(in TitleInput) (*HTTPRequest, error) {
	req := anthropicRequest{
		Model:     in.Model,
		MaxTokens: titleMaxTokens,
		Messages: []anthropicMessage{
			{Role: RoleUser, Content: titlePrompt(in.UserText)},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal title request: %w", err)
	}
	return &HTTPRequest{
		URL:    in.BaseURL + "/v1/messages",
		Header: anthropicHeaders(in.APIKey),
		Body:   body,
	}, nil
}

// ParseTitleResponse extracts the first text block from a messages response.
func (a *AnthropicAdapter) ParseTitleResponse(body []byte) string {
	var resp anthropicTitleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text
		}
	}
	return ""
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func anthropicHeaders(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("x-api-key", apiKey)
	h.Set("anthropic-version", anthropicVersion)
	return h
}

// anthropicContent returns a plain string when there are no image attachments,
// or a block list with images first and the text last.
func anthropicContent(text string, refs []string, read ImageReader) (any, error) {
	images, err := readImages(read, refs)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return text, nil
	}
	blocks := make([]anthropicBlock, 0, len(images)+1)
	for _, img := range images {
		blocks = append(blocks, anthropicBlock{
			Type: "image",
			Source: &anthropicImageSource{
				Type:      "base64",
				MediaType: img.MediaType,
				Data:      img.Base64Data,
			},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: text})
	return blocks, nil
}

// readImages resolves refs through the injected reader.
// A nil reader or empty ref list yields no images.
func readImages(read ImageReader, refs []string) ([]ImageData, error) {
	if read == nil || len(refs) == 0 {
		return nil, nil
	}
	return read(refs)
}
