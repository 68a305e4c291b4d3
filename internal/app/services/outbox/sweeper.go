package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quickshop/catalog/internal/app/storage"
	"github.com/quickshop/catalog/internal/app/system"
	"github.com/quickshop/catalog/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// Cleaner is an optional hook run on every sweep, used to drop stale upload
// temp files alongside dispatched events.
type Cleaner interface {
	Cleanup()
}

// Sweeper purges dispatched events older than the retention window on a
// cron schedule.
type Sweeper struct {
	store     storage.EventStore
	schedule  string
	retention time.Duration
	cleaner   Cleaner
	log       *logger.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper constructs a sweeper. schedule accepts cron expressions and
// descriptors like "@hourly"; cleaner may be nil.
func NewSweeper(store storage.EventStore, schedule string, retention time.Duration, cleaner Cleaner, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("outbox-sweeper")
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Sweeper{store: store, schedule: schedule, retention: retention, cleaner: cleaner, log: log}
}

func (s *Sweeper) Name() string { return "outbox-sweeper" }

func (s *Sweeper) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	c.Start()
	s.cron = c

	s.log.WithField("schedule", s.schedule).Info("outbox sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("outbox sweeper stopped")
	return nil
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.retention)
	purged, err := s.store.PurgeDispatchedEvents(context.Background(), cutoff)
	if err != nil {
		s.log.WithError(err).Warn("purge dispatched events")
		return
	}
	if purged > 0 {
		s.log.WithField("purged", purged).Info("dispatched events purged")
	}
	if s.cleaner != nil {
		s.cleaner.Cleanup()
	}
}
