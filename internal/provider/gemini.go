// Google Gemini (generativelanguage) adapter.
// Streaming endpoint: POST {base}/v1beta/models/{model}:streamGenerateContent?alt=sse
// with "x-goog-api-key" auth.
// Role mapping: assistant turns are relabeled "model"; system prompts travel as
// the top-level system_instruction, never inside contents. Thought parts are
// flagged per-part, so one frame can carry reasoning and visible text together.
package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// geminiThinkingBudget is the token budget granted to thought output when
// reasoning is enabled.
const geminiThinkingBudget = 2048

// GeminiAdapter implements Adapter for the Gemini REST API.
type GeminiAdapter struct{}

// NewGeminiAdapter returns the Gemini adapter.
func NewGeminiAdapter() *GeminiAdapter { return &GeminiAdapter{} }

// Kind returns "gemini".
func (a *GeminiAdapter) Kind() string { return "gemini" }

// ─── wire types ──────────────────────────────────────────────────────────────

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // "user" | "model"
	Parts []geminiPart `json:"parts"`
}

type geminiThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64              `json:"temperature,omitempty"`
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiFrame struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ─── Adapter implementation ─────────────────────────────────────────────────

// BuildStreamRequest builds the streaming :streamGenerateContent request.
func (a *GeminiAdapter) BuildStreamRequest(in StreamInput) (*HTTPRequest, error) {
	contents := make([]geminiContent, 0, len(in.History)+1)
	for _, m := range in.History {
		// System turns never appear inside contents; system_instruction is
		// the only system channel.
		if m.Role == RoleSystem {
			continue
		}
		parts, err := geminiParts(m.Content, m.Attachments, in.ReadImages)
		if err != nil {
			return nil, fmt.Errorf("gemini: inline history attachments: %w", err)
		}
		contents = append(contents, geminiContent{Role: geminiRole(m.Role), Parts: parts})
	}
	parts, err := geminiParts(in.UserText, in.Attachments, in.ReadImages)
	if err != nil {
		return nil, fmt.Errorf("gemini: inline attachments: %w", err)
	}
	contents = append(contents, geminiContent{Role: "user", Parts: parts})

	req := geminiRequest{Contents: contents}
	if in.SystemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: in.SystemPrompt}}}
	}
	if in.ThinkingEnabled {
		req.GenerationConfig = &geminiGenerationConfig{
			ThinkingConfig: &geminiThinkingConfig{
				ThinkingBudget:  geminiThinkingBudget,
				IncludeThoughts: true,
			},
		}
	} else {
		temp := defaultTemperature
		req.GenerationConfig = &geminiGenerationConfig{Temperature: &temp}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}
	return &HTTPRequest{
		URL:    in.BaseURL + "/v1beta/models/" + in.Model + ":streamGenerateContent?alt=sse",
		Header: geminiHeaders(in.APIKey),
		Body:   body,
	}, nil
}

// ParseSSELine parses one Gemini stream frame. Thought parts become reasoning
// events, plain parts become chunks; a finishReason of STOP appends done.
func (a *GeminiAdapter) ParseSSELine(line string) []StreamEvent {
	var frame geminiFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return nil
	}
	if frame.Error != nil {
		return []StreamEvent{{Kind: EventError, Message: frame.Error.Message}}
	}
	if len(frame.Candidates) == 0 {
		return nil
	}

	var events []StreamEvent
	cand := frame.Candidates[0]
	for _, part := range cand.Content.Parts {
		if part.Text == "" {
			continue
		}
		if part.Thought {
			events = append(events, StreamEvent{Kind: EventReasoning, Delta: part.Text})
		} else {
			events = append(events, StreamEvent{Kind: EventChunk, Delta: part.Text})
		}
	}
	if cand.FinishReason == "STOP" {
		events = append(events, StreamEvent{Kind: EventDone})
	}
	return events
}

// BuildTitleRequest builds a non-streaming :generateContent request.
func (a *GeminiAdapter) BuildTitleRequest(in TitleInput) (*HTTPRequest, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: titlePrompt(in.UserText)}}},
		},
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: titleMaxTokens},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal title request: %w", err)
	}
	return &HTTPRequest{
		URL:    in.BaseURL + "/v1beta/models/" + in.Model + ":generateContent",
		Header: geminiHeaders(in.APIKey),
		Body:   body,
	}, nil
}

// ParseTitleResponse extracts the first text part from a generateContent response.
func (a *GeminiAdapter) ParseTitleResponse(body []byte) string {
	var frame geminiFrame
	if err := json.Unmarshal(body, &frame); err != nil {
		return ""
	}
	if len(frame.Candidates) == 0 {
		return ""
	}
	for _, part := range frame.Candidates[0].Content.Parts {
		if !part.Thought && part.Text != "" {
			return part.Text
		}
	}
	return ""
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func geminiHeaders(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("x-goog-api-key", apiKey)
	return h
}

// geminiRole maps the uniform role set onto Gemini's user/model vocabulary.
func geminiRole(role string) string {
	if role == RoleAssistant {
		return "model"
	}
	return "user"
}

// geminiParts builds the part list: text first, inlined images after.
func geminiParts(text string, refs []string, read ImageReader) ([]geminiPart, error) {
	images, err := readImages(read, refs)
	if err != nil {
		return nil, err
	}
	parts := make([]geminiPart, 0, len(images)+1)
	parts = append(parts, geminiPart{Text: text})
	for _, img := range images {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{MimeType: img.MediaType, Data: img.Base64Data},
		})
	}
	return parts, nil
}
