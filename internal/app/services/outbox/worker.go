// Package outbox dispatches queued catalog events in the background.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/quickshop/catalog/internal/app/metrics"
	"github.com/quickshop/catalog/internal/app/storage"
	"github.com/quickshop/catalog/internal/app/system"
	"github.com/quickshop/catalog/pkg/logger"
)

var _ system.Service = (*Worker)(nil)

const dispatchBatchSize = 100

// Worker periodically drains pending events from the store and dispatches
// them. Dispatch currently means structured logging plus metrics; the sink
// is the integration point for real downstream delivery.
type Worker struct {
	store    storage.EventStore
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewWorker constructs a lifecycle-managed outbox worker.
func NewWorker(store storage.EventStore, interval time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.NewDefault("outbox")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{store: store, log: log, interval: interval}
}

func (w *Worker) Name() string { return "outbox-worker" }

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.tick(runCtx)
			}
		}
	}()

	w.log.Info("outbox worker started")
	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.log.Info("outbox worker stopped")
	return nil
}

func (w *Worker) tick(ctx context.Context) {
	events, err := w.store.ListPendingEvents(ctx, dispatchBatchSize)
	if err != nil {
		w.log.WithError(err).Warn("list pending events")
		return
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}

		fields := map[string]interface{}{
			"event_id": ev.ID,
			"kind":     ev.Kind,
		}
		for k, v := range ev.Payload {
			fields[k] = v
		}
		w.log.WithFields(fields).Info("event dispatched")
		metrics.RecordEventDispatch(ev.Kind)

		if err := w.store.MarkEventDispatched(ctx, ev.ID, time.Now()); err != nil {
			w.log.WithError(err).WithField("event_id", ev.ID).Warn("mark event dispatched")
		}
	}
}
