package chatsessions

import (
	"context"
	"sync"
	"testing"
	"time"
)

// blockingRun lets a test control exactly when a run completes, so it can
// assert on state while a run is still in flight.
func blockingRun(release <-chan string) RunFunc {
	return func(ctx context.Context, sessionKey string, turn Turn) (string, error) {
		msg := <-release
		return msg, nil
	}
}

func TestSendWaitsForActiveRunQueueMode(t *testing.T) {
	release := make(chan string)
	var calls []string
	var mu sync.Mutex

	a := New(func(ctx context.Context, sessionKey string, turn Turn) (string, error) {
		mu.Lock()
		calls = append(calls, turn.Message)
		mu.Unlock()
		return <-release, nil
	})

	a.Send(context.Background(), "s1", Turn{Message: "first"})
	time.Sleep(20 * time.Millisecond) // let the first run start

	a.Send(context.Background(), "s1", Turn{Message: "second"})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	if len(calls) != 1 {
		t.Fatalf("expected only the first turn to have started, got %v", calls)
	}
	mu.Unlock()

	release <- "done-1"
	release <- "done-2"
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected both turns to run in order, got %v", calls)
	}
}

func TestSendCollectModeCoalesces(t *testing.T) {
	release := make(chan string)
	var calls []string
	var mu sync.Mutex

	a := New(func(ctx context.Context, sessionKey string, turn Turn) (string, error) {
		mu.Lock()
		calls = append(calls, turn.Message)
		mu.Unlock()
		return <-release, nil
	})
	a.SetMode("s1", ModeCollect)

	a.Send(context.Background(), "s1", Turn{Message: "first"})
	time.Sleep(20 * time.Millisecond)
	a.Send(context.Background(), "s1", Turn{Message: "second"})
	a.Send(context.Background(), "s1", Turn{Message: "third"})
	time.Sleep(20 * time.Millisecond)

	release <- "done-1"
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Fatalf("expected the coalesced pending turns to run as a single second call, got %v", calls)
	}
	if calls[1] != "second\n\nthird" {
		t.Fatalf("expected coalesced message, got %q", calls[1])
	}
	release <- "done-2"
}

func TestPublishFansOutToSubscribers(t *testing.T) {
	a := New(func(ctx context.Context, sessionKey string, turn Turn) (string, error) {
		return "", nil
	})

	ch := make(chan Delta, 1)
	unsub := a.Subscribe("s1", "sub1", ch)
	defer unsub()

	a.Publish("s1", Delta{RunID: "r1", Content: "hello"})

	select {
	case d := <-ch:
		if d.Content != "hello" {
			t.Fatalf("expected delta content 'hello', got %q", d.Content)
		}
	default:
		t.Fatal("expected a delta to be delivered to the subscriber")
	}
}
