// SSE stream reader: executes exactly one streaming HTTP request and drives it
// to completion or cancellation, normalizing frames through the adapter.
package provider

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// dataPrefix marks an SSE data line; everything after it is the raw payload
// handed to the adapter.
const dataPrefix = "data: "

// maxErrorBodyBytes caps how much of a non-2xx response body is kept for
// diagnostics.
const maxErrorBodyBytes = 8 << 10

// StreamResult is the accumulated output of one streaming call.
// On the failure path it carries whatever was gathered before the failure —
// partial output must survive cancellation.
type StreamResult struct {
	Content   string
	Reasoning string
}

// BackendError is a backend-signaled failure: either an error event inside the
// stream or a non-2xx HTTP status.
type BackendError struct {
	Status  int    // 0 for in-stream error events
	Message string // error event message, or response body excerpt
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
	}
	return "backend error: " + e.Message
}

// StreamSSE executes req and feeds every SSE data payload to
// adapter.ParseSSELine. chunk and reasoning events are appended to the
// accumulators and relayed to onEvent in parse order; a done event ends the
// stream; an error event or non-2xx status fails the call.
//
// Cancellation is cooperative via ctx: it is observed at the next frame
// boundary, and the accumulated partials are returned alongside the error so
// the caller can persist them. The result is non-nil whenever the response
// body was opened.
func StreamSSE(ctx context.Context, client *http.Client, req *HTTPRequest, adapter Adapter, onEvent func(StreamEvent)) (*StreamResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("sse: build request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sse: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &BackendError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	result := &StreamResult{}
	var content, reasoning strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)

scan:
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, dataPrefix) {
			continue // blank separators, comments, event: lines
		}
		payload := strings.TrimPrefix(line, dataPrefix)

		for _, evt := range adapter.ParseSSELine(payload) {
			switch evt.Kind {
			case EventChunk:
				content.WriteString(evt.Delta)
				onEvent(evt)
			case EventReasoning:
				reasoning.WriteString(evt.Delta)
				onEvent(evt)
			case EventError:
				result.Content = content.String()
				result.Reasoning = reasoning.String()
				return result, &BackendError{Message: evt.Message}
			case EventDone:
				break scan
			}
		}
	}

	result.Content = content.String()
	result.Reasoning = reasoning.String()

	// Cancellation surfaces either via ctx directly or as the scanner's read
	// error once the transport aborts the body.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		return result, fmt.Errorf("sse: read stream: %w", err)
	}
	return result, nil
}
