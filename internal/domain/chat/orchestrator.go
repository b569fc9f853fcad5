// Package chat coordinates one full turn: send → stream → persist → terminal
// event, plus stop and title generation. It owns no transport and no storage
// of its own — the store, backend registry, adapter registry, event bus and
// HTTP client are all injected.
package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/hearthchat/hearth/internal/domain/conversation"
	"github.com/hearthchat/hearth/internal/infra/backends"
	"github.com/hearthchat/hearth/internal/provider"
)

// Store is the slice of the conversation service a turn needs.
type Store interface {
	Get(ctx context.Context, id string) (*conversation.Conversation, error)
	GetMessages(ctx context.Context, id string) ([]conversation.Message, error)
	AppendMessage(ctx context.Context, id string, input conversation.AppendMessageInput) (*conversation.Message, error)
}

// BackendResolver resolves backend descriptors and their credentials.
type BackendResolver interface {
	Get(id string) (*backends.Backend, error)
	DecryptCredential(id string) (string, error)
}

// Publisher is the one-directional push channel to the UI process.
type Publisher interface {
	Publish(topic string, payload any)
}

// SendInput is one outgoing user turn.
type SendInput struct {
	ConversationID  string
	Text            string
	Attachments     []string
	SystemPrompt    string
	ThinkingEnabled bool
	// Model and BackendID override the conversation's defaults when non-empty.
	Model     string
	BackendID string
}

// TitleInput is one title-generation request.
type TitleInput struct {
	BackendID string
	Model     string
	UserText  string
}

// titleMaxRunes caps generated conversation titles.
const titleMaxRunes = 50

// Orchestrator runs chat turns. Safe for concurrent use across conversations;
// sends for the same conversation preempt each other (see InflightRegistry).
type Orchestrator struct {
	store      Store
	backends   BackendResolver
	adapters   *provider.Registry
	bus        Publisher
	client     *http.Client
	readImages provider.ImageReader
	inflight   *InflightRegistry
}

// NewOrchestrator wires an Orchestrator. A nil client gets a default with no
// overall timeout — streams are long-lived and are ended by cancellation, not
// by a client deadline.
func NewOrchestrator(store Store, resolver BackendResolver, adapters *provider.Registry, bus Publisher, client *http.Client, readImages provider.ImageReader, inflight *InflightRegistry) *Orchestrator {
	if client == nil {
		client = &http.Client{}
	}
	return &Orchestrator{
		store:      store,
		backends:   resolver,
		adapters:   adapters,
		bus:        bus,
		client:     client,
		readImages: readImages,
		inflight:   inflight,
	}
}

// Send runs one full turn synchronously. All outcomes — success, partial stop,
// error — are delivered as push events on the conversation's topic; exactly
// one terminal event is published per call.
func (o *Orchestrator) Send(ctx context.Context, in SendInput) {
	topic := Topic(in.ConversationID)

	// Resolve configuration first: a config failure creates no state at all.
	conv, err := o.store.Get(ctx, in.ConversationID)
	if err != nil {
		o.bus.Publish(topic, Event{Type: EventError, Message: "conversation not found"})
		return
	}
	backendID := coalesce(in.BackendID, conv.BackendID)
	model := coalesce(in.Model, conv.Model)

	backend, adapter, apiKey, err := o.resolveBackend(backendID)
	if err != nil {
		o.bus.Publish(topic, Event{Type: EventError, Message: err.Error()})
		return
	}

	// The user's input is durable before any network call — a failed stream
	// never loses what they typed.
	userMsg, err := o.store.AppendMessage(ctx, in.ConversationID, conversation.AppendMessageInput{
		Role:        conversation.RoleUser,
		Content:     in.Text,
		Attachments: in.Attachments,
	})
	if err != nil {
		o.bus.Publish(topic, Event{Type: EventError, Message: "failed to save message: " + err.Error()})
		return
	}

	// Reload from the store — it is the single source of truth — and window
	// everything before the message just appended.
	history, err := o.store.GetMessages(ctx, in.ConversationID)
	if err != nil {
		o.bus.Publish(topic, Event{Type: EventError, Message: "failed to load history: " + err.Error()})
		return
	}
	history = dropMessage(history, userMsg.ID)
	windowed := Window(history, conv.DividerIDs, conv.ContextRounds)

	req, err := adapter.BuildStreamRequest(provider.StreamInput{
		BaseURL:         backend.BaseURL,
		APIKey:          apiKey,
		Model:           model,
		History:         toChatMessages(windowed),
		UserText:        in.Text,
		Attachments:     in.Attachments,
		SystemPrompt:    in.SystemPrompt,
		ThinkingEnabled: in.ThinkingEnabled,
		ReadImages:      o.readImages,
	})
	if err != nil {
		o.bus.Publish(topic, Event{Type: EventError, Message: "failed to build request: " + err.Error()})
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	turn := o.inflight.Register(in.ConversationID, cancel)
	defer o.inflight.Deregister(turn)

	result, streamErr := provider.StreamSSE(turnCtx, o.client, req, adapter, func(evt provider.StreamEvent) {
		switch evt.Kind {
		case provider.EventChunk:
			o.bus.Publish(topic, Event{Type: EventChunk, Delta: evt.Delta})
		case provider.EventReasoning:
			o.bus.Publish(topic, Event{Type: EventReasoning, Delta: evt.Delta})
		}
	})

	switch {
	case streamErr == nil:
		o.finishTurn(ctx, topic, in.ConversationID, model, result, false)

	case errors.Is(streamErr, context.Canceled):
		// A stop is a completion, never an error. Partial output — if any —
		// is persisted as an explicitly stopped message.
		if result != nil && (result.Content != "" || result.Reasoning != "") {
			o.finishTurn(ctx, topic, in.ConversationID, model, result, true)
			return
		}
		o.bus.Publish(topic, Event{Type: EventComplete})

	default:
		o.bus.Publish(topic, Event{Type: EventError, Message: streamErr.Error()})
	}
}

// Stop cancels the conversation's in-flight turn, if any. Stopping an idle
// conversation is a silent no-op.
func (o *Orchestrator) Stop(conversationID string) {
	o.inflight.Cancel(conversationID)
}

// GenerateTitle synthesizes a short conversation title from the first user
// message. Best-effort: any failure yields "" and is logged, never raised —
// the conversation simply keeps its placeholder title.
func (o *Orchestrator) GenerateTitle(ctx context.Context, in TitleInput) string {
	backend, adapter, apiKey, err := o.resolveBackend(in.BackendID)
	if err != nil {
		log.Printf("chat: title: %v", err)
		return ""
	}

	req, err := adapter.BuildTitleRequest(provider.TitleInput{
		BaseURL:  backend.BaseURL,
		APIKey:   apiKey,
		Model:    in.Model,
		UserText: in.UserText,
	})
	if err != nil {
		log.Printf("chat: title: build request: %v", err)
		return ""
	}

	body, err := o.postOnce(ctx, req)
	if err != nil {
		log.Printf("chat: title: %v", err)
		return ""
	}
	return CleanTitle(adapter.ParseTitleResponse(body))
}

// finishTurn persists the assistant message and publishes the terminal event.
func (o *Orchestrator) finishTurn(ctx context.Context, topic, conversationID, model string, result *provider.StreamResult, stopped bool) {
	msg, err := o.store.AppendMessage(ctx, conversationID, conversation.AppendMessageInput{
		Role:      conversation.RoleAssistant,
		Content:   result.Content,
		Reasoning: result.Reasoning,
		Model:     model,
		Stopped:   stopped,
	})
	if err != nil {
		o.bus.Publish(topic, Event{Type: EventError, Message: "failed to save reply: " + err.Error()})
		return
	}
	o.bus.Publish(topic, Event{Type: EventComplete, MessageID: msg.ID})
}

// resolveBackend looks up the backend descriptor, its adapter and its
// plaintext credential.
func (o *Orchestrator) resolveBackend(backendID string) (*backends.Backend, provider.Adapter, string, error) {
	backend, err := o.backends.Get(backendID)
	if err != nil {
		return nil, nil, "", errors.New("backend not configured")
	}
	adapter, err := o.adapters.Resolve(backend.Kind)
	if err != nil {
		return nil, nil, "", err
	}
	apiKey, err := o.backends.DecryptCredential(backendID)
	if err != nil {
		return nil, nil, "", errors.New("credential unavailable: " + err.Error())
	}
	return backend, adapter, apiKey, nil
}

// postOnce executes a non-streaming provider request with a short deadline.
func (o *Orchestrator) postOnce(ctx context.Context, req *provider.HTTPRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return provider.DoOnce(ctx, o.client, req)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// dropMessage removes the message with id (the just-appended user turn) so
// windowing sees only prior history.
func dropMessage(history []conversation.Message, id string) []conversation.Message {
	out := history[:0]
	for _, m := range history {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func toChatMessages(msgs []conversation.Message) []provider.ChatMessage {
	out := make([]provider.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = provider.ChatMessage{Role: m.Role, Content: m.Content, Attachments: m.Attachments}
	}
	return out
}

// coalesce returns val if non-empty, otherwise fallback.
func coalesce(val, fallback string) string {
	if val == "" {
		return fallback
	}
	return val
}
