// Package eventbus is the in-memory publish/subscribe channel between the
// chat core and the UI process. The orchestrator publishes chunk/reasoning/
// complete/error events onto per-conversation topics; the API layer bridges a
// subscription onto whatever transport the UI is attached through.
//
// Delivery is best-effort: Publish never blocks, and a subscriber whose
// buffer is full misses the event. A UI that falls behind re-fetches the
// conversation from the store instead of relying on replay — the bus holds
// nothing.
package eventbus

import "sync"

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
	Unsubscribe(topic string, ch <-chan Event)
}

// subscriberBuffer sizes each subscription channel. Streaming turns emit
// one event per SSE chunk, so the buffer must absorb short consumer stalls.
const subscriberBuffer = 100

// Bus is the in-memory implementation of EventBus. Subscribers are kept
// as a set per topic so Unsubscribe stays O(1) regardless of fan-out.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
}

// New returns an empty in-memory Bus.
func New() *Bus {
	return &Bus{topics: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel receiving every event published to topic
// from now on. The caller must drain it and call Unsubscribe when done;
// an abandoned subscription leaks until Unsubscribe runs.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[chan Event]struct{})
		b.topics[topic] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

// Unsubscribe detaches ch from topic and closes it. Calling it with a
// channel that was never subscribed, or twice, is a no-op.
func (b *Bus) Unsubscribe(topic string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.topics[topic]
	for sub := range set {
		if (<-chan Event)(sub) == ch {
			delete(set, sub)
			close(sub)
			break
		}
	}
	if len(set) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers payload to every current subscriber of topic without
// blocking. Subscribers with a full buffer are skipped.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		select {
		case sub <- evt:
		default:
		}
	}
}
