package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// titleMaxTokens caps the one-shot title request; a short noun phrase never
// needs more.
const titleMaxTokens = 32

// DoOnce executes a single non-streaming provider request and returns the
// response body. Non-2xx statuses become a BackendError.
func DoOnce(ctx context.Context, client *http.Client, req *HTTPRequest) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	httpReq.Header = req.Header.Clone()

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("provider: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// titlePrompt wraps the first user message into the title-synthesis
// instruction shared by all adapters.
func titlePrompt(userText string) string {
	return "Summarize the following message as a conversation title of at most five words. " +
		"Reply with the title only, no quotes, no punctuation around it.\n\n" + userText
}
