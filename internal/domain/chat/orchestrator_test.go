package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hearthchat/hearth/internal/domain/conversation"
	"github.com/hearthchat/hearth/internal/infra/backends"
	"github.com/hearthchat/hearth/internal/provider"
)

// ─── fakes ───────────────────────────────────────────────────────────────────

type memStore struct {
	mu   sync.Mutex
	conv conversation.Conversation
	msgs []conversation.Message
	seq  int
}

func (s *memStore) Get(_ context.Context, id string) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.conv.ID {
		return nil, sql.ErrNoRows
	}
	c := s.conv
	return &c, nil
}

func (s *memStore) GetMessages(_ context.Context, id string) ([]conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Message, len(s.msgs))
	copy(out, s.msgs)
	return out, nil
}

func (s *memStore) AppendMessage(_ context.Context, id string, in conversation.AppendMessageInput) (*conversation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	m := conversation.Message{
		ID:             fmt.Sprintf("m%02d", s.seq),
		ConversationID: id,
		Role:           in.Role,
		Content:        in.Content,
		Reasoning:      in.Reasoning,
		Model:          in.Model,
		Stopped:        in.Stopped,
		Attachments:    in.Attachments,
		CreatedAt:      time.Now().UTC(),
	}
	s.msgs = append(s.msgs, m)
	return &m, nil
}

func (s *memStore) messages() []conversation.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

type fakeResolver struct {
	backend *backends.Backend
	key     string
	err     error
}

func (r *fakeResolver) Get(id string) (*backends.Backend, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.backend, nil
}

func (r *fakeResolver) DecryptCredential(id string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.key, nil
}

// recordingBus records published events and mirrors them onto a channel so
// tests can synchronize with an in-flight stream.
type recordingBus struct {
	mu     sync.Mutex
	topics []string
	events []Event
	ch     chan Event
}

func newRecordingBus() *recordingBus {
	return &recordingBus{ch: make(chan Event, 64)}
}

func (b *recordingBus) Publish(topic string, payload any) {
	evt, ok := payload.(Event)
	if !ok {
		return
	}
	b.mu.Lock()
	b.topics = append(b.topics, topic)
	b.events = append(b.events, evt)
	b.mu.Unlock()
	select {
	case b.ch <- evt:
	default:
	}
}

func (b *recordingBus) all() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *recordingBus) waitFor(t *testing.T, eventType string) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt := <-b.ch:
			if evt.Type == eventType {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`+"\n\n", content)
}

func newTestOrchestrator(t *testing.T, baseURL string) (*Orchestrator, *memStore, *recordingBus) {
	t.Helper()
	store := &memStore{
		conv: conversation.Conversation{
			ID:            "conv1",
			Title:         "New Chat",
			Model:         "gpt-test",
			BackendID:     "b1",
			ContextRounds: conversation.RoundsUnlimited,
		},
	}
	resolver := &fakeResolver{
		backend: &backends.Backend{ID: "b1", Kind: "openai", BaseURL: baseURL},
		key:     "test-key",
	}
	bus := newRecordingBus()
	orch := NewOrchestrator(store, resolver, provider.NewRegistry(), bus, &http.Client{}, nil, NewInflightRegistry())
	return orch, store, bus
}

// ─── tests ───────────────────────────────────────────────────────────────────

func TestSendStreamsAndPersists(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseChunk("Hello"))
		io.WriteString(w, sseChunk(" world"))
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	orch, store, bus := newTestOrchestrator(t, srv.URL)
	orch.Send(context.Background(), SendInput{ConversationID: "conv1", Text: "hi there"})

	msgs := store.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user + assistant", len(msgs))
	}
	if msgs[0].Role != conversation.RoleUser || msgs[0].Content != "hi there" {
		t.Fatalf("user message = %+v", msgs[0])
	}
	reply := msgs[1]
	if reply.Role != conversation.RoleAssistant || reply.Content != "Hello world" {
		t.Fatalf("assistant message = %+v", reply)
	}
	if reply.Stopped {
		t.Fatal("completed reply must not be marked stopped")
	}
	if reply.Model != "gpt-test" {
		t.Fatalf("reply model = %q, want conversation default", reply.Model)
	}

	events := bus.all()
	if len(events) != 3 {
		t.Fatalf("got %d events %v, want chunk, chunk, complete", len(events), events)
	}
	if events[0].Type != EventChunk || events[0].Delta != "Hello" {
		t.Fatalf("event[0] = %+v", events[0])
	}
	if events[1].Type != EventChunk || events[1].Delta != " world" {
		t.Fatalf("event[1] = %+v", events[1])
	}
	if events[2].Type != EventComplete || events[2].MessageID != reply.ID {
		t.Fatalf("terminal event = %+v, want complete with %q", events[2], reply.ID)
	}
	for _, topic := range bus.topics {
		if topic != Topic("conv1") {
			t.Fatalf("event published on %q, want %q", topic, Topic("conv1"))
		}
	}
}

func TestSendRelaysReasoning(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `data: {"choices":[{"delta":{"reasoning_content":"thinking..."}}]}`+"\n\n")
		io.WriteString(w, sseChunk("Answer"))
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	orch, store, bus := newTestOrchestrator(t, srv.URL)
	orch.Send(context.Background(), SendInput{ConversationID: "conv1", Text: "why?", ThinkingEnabled: true})

	msgs := store.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[1].Reasoning != "thinking..." || msgs[1].Content != "Answer" {
		t.Fatalf("assistant message = %+v", msgs[1])
	}

	events := bus.all()
	if events[0].Type != EventReasoning || events[0].Delta != "thinking..." {
		t.Fatalf("event[0] = %+v, want reasoning first", events[0])
	}
}

func TestSendWindowsHistory(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, sseChunk("ok"))
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	orch, store, _ := newTestOrchestrator(t, srv.URL)
	store.conv.ContextRounds = 1
	ctx := context.Background()
	store.AppendMessage(ctx, "conv1", conversation.AppendMessageInput{Role: conversation.RoleUser, Content: "old question"})
	store.AppendMessage(ctx, "conv1", conversation.AppendMessageInput{Role: conversation.RoleAssistant, Content: "old answer"})
	store.AppendMessage(ctx, "conv1", conversation.AppendMessageInput{Role: conversation.RoleUser, Content: "recent question"})
	store.AppendMessage(ctx, "conv1", conversation.AppendMessageInput{Role: conversation.RoleAssistant, Content: "recent answer"})

	orch.Send(ctx, SendInput{ConversationID: "conv1", Text: "latest question"})

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	// One prior round plus the outgoing message; the just-persisted user turn
	// must not appear twice.
	want := []string{"recent question", "recent answer", "latest question"}
	if len(req.Messages) != len(want) {
		t.Fatalf("sent %d messages, want %d: %+v", len(req.Messages), len(want), req.Messages)
	}
	for i, content := range want {
		if req.Messages[i].Content != content {
			t.Fatalf("message[%d] = %q, want %q", i, req.Messages[i].Content, content)
		}
	}
}

func TestSendBackendNotConfigured(t *testing.T) {
	t.Parallel()

	store := &memStore{conv: conversation.Conversation{ID: "conv1", Model: "m", BackendID: "gone"}}
	resolver := &fakeResolver{err: errors.New("no such backend")}
	bus := newRecordingBus()
	orch := NewOrchestrator(store, resolver, provider.NewRegistry(), bus, &http.Client{}, nil, NewInflightRegistry())

	orch.Send(context.Background(), SendInput{ConversationID: "conv1", Text: "hi"})

	// A configuration failure leaves no state behind at all.
	if len(store.messages()) != 0 {
		t.Fatalf("messages persisted despite config failure: %+v", store.messages())
	}
	events := bus.all()
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("events = %+v, want a single error", events)
	}
}

func TestSendHTTPErrorKeepsUserMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	orch, store, bus := newTestOrchestrator(t, srv.URL)
	orch.Send(context.Background(), SendInput{ConversationID: "conv1", Text: "hi"})

	msgs := store.messages()
	if len(msgs) != 1 || msgs[0].Role != conversation.RoleUser {
		t.Fatalf("messages = %+v, want only the user turn", msgs)
	}
	events := bus.all()
	last := events[len(events)-1]
	if last.Type != EventError || !strings.Contains(last.Message, "401") {
		t.Fatalf("terminal event = %+v, want error carrying the status", last)
	}
}

func TestSendInStreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sseChunk("partial"))
		io.WriteString(w, `data: {"error":{"message":"overloaded"}}`+"\n\n")
	}))
	defer srv.Close()

	orch, store, bus := newTestOrchestrator(t, srv.URL)
	orch.Send(context.Background(), SendInput{ConversationID: "conv1", Text: "hi"})

	// A mid-stream backend error fails the turn; no assistant message is saved.
	msgs := store.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %+v, want only the user turn", msgs)
	}
	events := bus.all()
	last := events[len(events)-1]
	if last.Type != EventError || !strings.Contains(last.Message, "overloaded") {
		t.Fatalf("terminal event = %+v", last)
	}
}

func TestStopPersistsPartialReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseChunk("partial out"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	orch, store, bus := newTestOrchestrator(t, srv.URL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Send(context.Background(), SendInput{ConversationID: "conv1", Text: "hi"})
	}()

	bus.waitFor(t, EventChunk)
	orch.Stop("conv1")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after stop")
	}

	msgs := store.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user + stopped assistant", len(msgs))
	}
	reply := msgs[1]
	if !reply.Stopped || reply.Content != "partial out" {
		t.Fatalf("assistant message = %+v, want stopped partial", reply)
	}

	events := bus.all()
	last := events[len(events)-1]
	if last.Type != EventComplete || last.MessageID != reply.ID {
		t.Fatalf("terminal event = %+v, want complete with %q", last, reply.ID)
	}
}

func TestStopWithoutOutputCompletesEmpty(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	orch, store, bus := newTestOrchestrator(t, srv.URL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Send(context.Background(), SendInput{ConversationID: "conv1", Text: "hi"})
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("backend never saw the request")
	}
	orch.Stop("conv1")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after stop")
	}

	// Nothing was produced, so nothing is saved; still a clean completion.
	if msgs := store.messages(); len(msgs) != 1 {
		t.Fatalf("messages = %+v, want only the user turn", msgs)
	}
	last := bus.waitFor(t, EventComplete)
	if last.MessageID != "" {
		t.Fatalf("empty stop carried messageId %q", last.MessageID)
	}
}

func TestStopIdleConversationIsNoop(t *testing.T) {
	t.Parallel()

	orch, _, bus := newTestOrchestrator(t, "http://unused.invalid")
	orch.Stop("conv1")
	if len(bus.all()) != 0 {
		t.Fatalf("stop on idle conversation published events: %+v", bus.all())
	}
}

func TestGenerateTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"\"My Trip Plan\""}}]}`)
	}))
	defer srv.Close()

	orch, _, _ := newTestOrchestrator(t, srv.URL)
	got := orch.GenerateTitle(context.Background(), TitleInput{
		BackendID: "b1",
		Model:     "gpt-test",
		UserText:  "help me plan a trip to Lisbon",
	})
	if got != "My Trip Plan" {
		t.Fatalf("title = %q, want quotes stripped", got)
	}
}

func TestGenerateTitleFailureReturnsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	orch, _, _ := newTestOrchestrator(t, srv.URL)
	if got := orch.GenerateTitle(context.Background(), TitleInput{BackendID: "b1", Model: "m", UserText: "x"}); got != "" {
		t.Fatalf("title = %q, want empty on backend failure", got)
	}
}
