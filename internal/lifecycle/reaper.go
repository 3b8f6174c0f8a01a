package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fabrik-io/fabrik/internal/progress"
	"github.com/fabrik-io/fabrik/internal/ticket"
	"github.com/fabrik-io/fabrik/pkg/protocol"
)

// Reaper force-fails tickets stuck in_progress beyond a bound, so a crashed
// or abandoned development can never leave a ticket in_progress forever.
type Reaper struct {
	store    ticket.Store
	progress *progress.Broadcaster
	maxAge   time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewReaper creates a reaper with the given stuck-ticket bound.
func NewReaper(store ticket.Store, bc *progress.Broadcaster, maxAge time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		progress: bc,
		maxAge:   maxAge,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start sweeps every minute. Blocks until the context is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc("@every 1m", r.Sweep); err != nil {
		return fmt.Errorf("reaper: schedule: %w", err)
	}
	r.cron.Start()
	r.logger.Info("reaper started", "max_age", r.maxAge)

	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("reaper stopped")
	return ctx.Err()
}

// Sweep fails every in_progress ticket older than the bound. The
// compare-and-set keeps the sweep safe against a development finishing
// concurrently: whoever transitions first wins.
func (r *Reaper) Sweep() {
	tickets, err := r.store.List()
	if err != nil {
		r.logger.Error("reaper list failed", "error", err)
		return
	}

	cutoff := time.Now().UTC().Add(-r.maxAge)
	for _, t := range tickets {
		if t.Status != protocol.TicketInProgress {
			continue
		}
		if t.StartedAt == nil || t.StartedAt.After(cutoff) {
			continue
		}
		_, ok, err := r.store.Transition(t.ID, protocol.TicketInProgress, protocol.TicketFailed, func(t *protocol.Ticket) {
			t.Error = fmt.Sprintf("development timed out after %s", r.maxAge)
		})
		if err != nil {
			r.logger.Error("reaper transition failed", "ticket", t.ID, "error", err)
			continue
		}
		if ok {
			r.progress.Publish(protocol.EventWarning, "ticket %s timed out and was marked failed", t.ID)
		}
	}
}
