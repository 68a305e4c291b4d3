package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/quickshop/catalog/internal/app/domain/event"
	"github.com/quickshop/catalog/internal/app/storage/memory"
)

func TestWorkerTickDispatchesPending(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.AppendEvent(ctx, event.Event{
			Kind:    event.KindProductCreated,
			Payload: map[string]string{"product_id": "1"},
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	w := NewWorker(store, time.Second, nil)
	w.tick(ctx)

	pending, err := store.ListPendingEvents(ctx, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected all events dispatched, got %d pending", len(pending))
	}
}

func TestWorkerStartStop(t *testing.T) {
	store := memory.New()
	w := NewWorker(store, 10*time.Millisecond, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Second start is a no-op.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) Cleanup() { c.calls++ }

func TestSweeperSweep(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	ev, err := store.AppendEvent(ctx, event.Event{Kind: event.KindProductDeleted})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.MarkEventDispatched(ctx, ev.ID, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	if _, err := store.AppendEvent(ctx, event.Event{Kind: event.KindProductCreated}); err != nil {
		t.Fatalf("append pending: %v", err)
	}

	cleaner := &countingCleaner{}
	s := NewSweeper(store, "@hourly", 24*time.Hour, cleaner, nil)
	s.sweep()

	if cleaner.calls != 1 {
		t.Fatalf("expected cleaner invoked once, got %d", cleaner.calls)
	}
	pending, _ := store.ListPendingEvents(ctx, 0)
	if len(pending) != 1 {
		t.Fatalf("expected pending event kept, got %d", len(pending))
	}
}

func TestSweeperStartStop(t *testing.T) {
	s := NewSweeper(memory.New(), "@hourly", time.Hour, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	s := NewSweeper(memory.New(), "not a schedule", time.Hour, nil, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
