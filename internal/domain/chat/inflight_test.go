package chat

import (
	"context"
	"testing"
)

func TestInflightCancel(t *testing.T) {
	t.Parallel()

	r := NewInflightRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	r.Register("c1", cancel)

	if !r.Active("c1") {
		t.Fatal("expected turn to be active after register")
	}
	if !r.Cancel("c1") {
		t.Fatal("Cancel returned false for a registered turn")
	}
	if ctx.Err() == nil {
		t.Fatal("cancel func was not invoked")
	}
	if r.Active("c1") {
		t.Fatal("turn still active after cancel")
	}
}

func TestInflightCancelIdleIsNoop(t *testing.T) {
	t.Parallel()

	r := NewInflightRegistry()
	if r.Cancel("nope") {
		t.Fatal("Cancel returned true with nothing in flight")
	}
}

func TestInflightRegisterPreemptsPriorTurn(t *testing.T) {
	t.Parallel()

	r := NewInflightRegistry()
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())

	first := r.Register("c1", cancel1)
	r.Register("c1", cancel2)

	if ctx1.Err() == nil {
		t.Fatal("prior turn was not cancelled by the new register")
	}
	if ctx2.Err() != nil {
		t.Fatal("new turn must stay live")
	}

	// The preempted turn's deferred deregister must not evict its successor.
	r.Deregister(first)
	if !r.Active("c1") {
		t.Fatal("stale deregister removed the current turn")
	}
}

func TestInflightDeregisterRemovesOwnTurn(t *testing.T) {
	t.Parallel()

	r := NewInflightRegistry()
	_, cancel := context.WithCancel(context.Background())
	turn := r.Register("c1", cancel)

	r.Deregister(turn)
	if r.Active("c1") {
		t.Fatal("turn still active after deregister")
	}
}

func TestInflightConversationsAreIndependent(t *testing.T) {
	t.Parallel()

	r := NewInflightRegistry()
	ctx1, cancel1 := context.WithCancel(context.Background())
	_, cancel2 := context.WithCancel(context.Background())

	r.Register("c1", cancel1)
	r.Register("c2", cancel2)

	if !r.Cancel("c2") {
		t.Fatal("Cancel(c2) returned false")
	}
	if ctx1.Err() != nil {
		t.Fatal("cancelling c2 must not touch c1")
	}
	if !r.Active("c1") {
		t.Fatal("c1 should remain in flight")
	}
}
