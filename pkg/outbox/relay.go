// Package outbox relays committed outbox events to the event bus.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/folio/pkg/eventbus"
	"github.com/dukex/folio/pkg/events"
	"github.com/dukex/folio/pkg/metrics"
	"github.com/dukex/folio/pkg/persistence"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Relay polls the outbox and publishes every pending event keyed by its
// manuscript id. Delivery is at-least-once: an event is marked published only
// after the bus accepted it, so a crash in between publishes it again.
type Relay struct {
	repo      persistence.OutboxRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(repo persistence.OutboxRepository, publisher eventbus.EventPublisher, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("module", "outbox_relay"),
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		metrics:   metrics.NewNoop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RelayOnce publishes one batch and returns how many events left the outbox.
// Publishing stops at the first bus failure so per-manuscript order holds.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	done := make([]string, 0, len(pending))

	var publishErr error

	for _, record := range pending {
		event, err := events.Decode(events.EventType(record.Type), record.Payload)
		if err != nil {
			// Undecodable records would block the outbox forever.
			r.logger.ErrorContext(ctx, "dropping undecodable outbox event", "event_id", record.ID, "type", record.Type, "error", err)
			done = append(done, record.ID)

			continue
		}

		if err := r.publisher.Publish(ctx, record.AggregateID, event); err != nil {
			publishErr = err

			break
		}

		done = append(done, record.ID)
	}

	if len(done) > 0 {
		if err := r.repo.MarkPublished(ctx, done, r.now().UTC()); err != nil {
			return 0, errors.Join(publishErr, err)
		}

		r.metrics.RecordRelayed(ctx, len(done))
	}

	return len(done), publishErr
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")

			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "failed to relay outbox events", "error", err)

					break
				}

				if n < r.batchSize {
					break
				}
			}
		}
	}
}
