package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionLocks(t *testing.T) {
	l := newSessionLocks()

	release, err := l.acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	t.Run("Same Session Waits", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := l.acquire(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected DeadlineExceeded, got %v", err)
		}
	})

	t.Run("Other Session Proceeds", func(t *testing.T) {
		rb, err := l.acquire(context.Background(), "b")
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		rb()
	})

	t.Run("Handoff", func(t *testing.T) {
		got := make(chan struct{})
		go func() {
			r, err := l.acquire(context.Background(), "a")
			if err == nil {
				r()
			}
			close(got)
		}()
		release()
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("Expected waiter to acquire after release")
		}
	})

	if l.size() != 0 {
		t.Errorf("Expected empty registry, got %d", l.size())
	}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var specific, all int
	bus.Subscribe(EventStageChanged, func(ev Event) {
		specific++
		if ev.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set")
		}
	})
	bus.SubscribeAll(func(Event) { all++ })

	bus.PublishWithData(EventStageChanged, "s1", map[string]interface{}{"to": "deep_interview"})
	bus.PublishWithData(EventTurnCommitted, "s1", nil)

	if specific != 1 {
		t.Errorf("Expected 1 specific call, got %d", specific)
	}
	if all != 2 {
		t.Errorf("Expected 2 calls, got %d", all)
	}

	var nilBus *EventBus
	nilBus.PublishWithData(EventTurnCommitted, "s1", nil)
}
