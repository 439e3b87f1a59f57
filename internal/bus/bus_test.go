package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMessageBusInboundRoundTrip(t *testing.T) {
	b := New(4)
	b.PublishInbound(InboundMessage{Channel: "telegram", ChatID: "1", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Content != "hi" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
}

func TestMessageBusConsumeInboundRespectsContextCancellation(t *testing.T) {
	b := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Fatal("expected ConsumeInbound to return false for a cancelled context")
	}
}

func TestMessageBusOutboundRoundTrip(t *testing.T) {
	b := New(4)
	b.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "2", Content: "reply"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Content != "reply" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
}

func TestMessageBusPublishInboundDropsWhenFull(t *testing.T) {
	b := New(1)
	b.PublishInbound(InboundMessage{Content: "first"})
	b.PublishInbound(InboundMessage{Content: "second"}) // should be dropped, not block

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok || msg.Content != "first" {
		t.Fatalf("expected only the first message to survive, got %+v ok=%v", msg, ok)
	}
}

func TestMessageBusBroadcastFansOutToSubscribers(t *testing.T) {
	b := New(4)

	var mu sync.Mutex
	received := map[string]Event{}
	var wg sync.WaitGroup
	wg.Add(2)

	b.Subscribe("a", func(e Event) {
		mu.Lock()
		received["a"] = e
		mu.Unlock()
		wg.Done()
	})
	b.Subscribe("b", func(e Event) {
		mu.Lock()
		received["b"] = e
		mu.Unlock()
		wg.Done()
	})

	b.Broadcast(Event{Name: "health"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected both subscribers to receive the event, got %v", received)
	}
}

func TestMessageBusUnsubscribeStopsDelivery(t *testing.T) {
	b := New(4)
	called := false
	b.Subscribe("a", func(e Event) { called = true })
	b.Unsubscribe("a")
	b.Broadcast(Event{Name: "health"})

	time.Sleep(20 * time.Millisecond)
	if called {
		t.Fatal("expected unsubscribed handler not to be called")
	}
}

func TestDedupeCacheDetectsDuplicateWithinTTL(t *testing.T) {
	d := NewDedupeCache(time.Minute, 10)
	if d.IsDuplicate("k1") {
		t.Fatal("first sighting of a key must not be a duplicate")
	}
	if !d.IsDuplicate("k1") {
		t.Fatal("second sighting within TTL must be reported as a duplicate")
	}
}

func TestDedupeCacheExpiresAfterTTL(t *testing.T) {
	d := NewDedupeCache(10*time.Millisecond, 10)
	d.IsDuplicate("k1")
	time.Sleep(30 * time.Millisecond)
	if d.IsDuplicate("k1") {
		t.Fatal("expected key to have expired and not be reported as a duplicate")
	}
}

func TestDedupeCacheEvictsOldestAtCapacity(t *testing.T) {
	d := NewDedupeCache(time.Hour, 2)
	d.IsDuplicate("k1")
	time.Sleep(time.Millisecond)
	d.IsDuplicate("k2")
	time.Sleep(time.Millisecond)
	d.IsDuplicate("k3") // evicts k1 to make room

	if d.IsDuplicate("k1") {
		t.Fatal("k1 should have been evicted and treated as new again")
	}
}

func TestInboundDebouncerMergesRapidMessages(t *testing.T) {
	flushed := make(chan InboundMessage, 1)
	d := NewInboundDebouncer(20*time.Millisecond, func(msg InboundMessage) {
		flushed <- msg
	})
	defer d.Stop()

	d.Push(InboundMessage{Channel: "telegram", ChatID: "1", SenderID: "u1", Content: "hello"})
	d.Push(InboundMessage{Channel: "telegram", ChatID: "1", SenderID: "u1", Content: "world"})

	select {
	case msg := <-flushed:
		if msg.Content != "hello\n\nworld" {
			t.Fatalf("expected merged content, got %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced flush")
	}
}

func TestInboundDebouncerKeepsDistinctSendersSeparate(t *testing.T) {
	flushed := make(chan InboundMessage, 2)
	d := NewInboundDebouncer(10*time.Millisecond, func(msg InboundMessage) {
		flushed <- msg
	})
	defer d.Stop()

	d.Push(InboundMessage{Channel: "telegram", ChatID: "1", SenderID: "u1", Content: "a"})
	d.Push(InboundMessage{Channel: "telegram", ChatID: "1", SenderID: "u2", Content: "b"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-flushed:
			seen[msg.SenderID] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for both debounced flushes")
		}
	}
	if !seen["u1"] || !seen["u2"] {
		t.Fatalf("expected both senders to flush independently, got %v", seen)
	}
}
