// Package holds releases court holds whose payment window has lapsed, so the slot becomes
// bookable again.
package holds

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clubbook/libs/outbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	AggregateBooking = "booking"
	HoldExpired      = "booking.hold.expired.v1"
)

type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type HoldStore interface {
	DeleteExpired(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]ExpiredHold, error)
}

type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Config struct {
	Interval  time.Duration
	TTL       time.Duration
	BatchSize int
}

type Reaper struct {
	db        Beginner
	store     HoldStore
	events    EventWriter
	logger    *slog.Logger
	tracer    trace.Tracer
	interval  time.Duration
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

func NewReaper(db Beginner, store HoldStore, events EventWriter, logger *slog.Logger, cfg Config) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 20 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reaper{
		db:        db,
		store:     store,
		events:    events,
		logger:    logger,
		tracer:    otel.Tracer("clubbook/scheduler-service"),
		interval:  cfg.Interval,
		ttl:       cfg.TTL,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("hold sweep failed", "err", err)
			}
		}
	}
}

// Sweep releases one batch of expired holds and reports how many were removed. The deletes and
// their events commit together or not at all.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "holds.sweep")
	defer span.End()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := r.now().UTC()
	expired, err := r.store.DeleteExpired(ctx, tx, now.Add(-r.ttl), r.batchSize)
	if err != nil {
		return 0, err
	}
	for _, h := range expired {
		evt, err := outbox.NewEvent(AggregateBooking, h.BookingID, HoldExpired, map[string]any{
			"booking_id":     h.BookingID,
			"club_id":        h.ClubID,
			"court_id":       h.CourtID,
			"customer_email": h.CustomerEmail,
			"start_time":     h.StartTime.UTC().Format(time.RFC3339),
			"end_time":       h.EndTime.UTC().Format(time.RFC3339),
			"held_since":     h.CreatedAt.UTC().Format(time.RFC3339),
			"occurred_at":    now.Format(time.RFC3339),
		})
		if err != nil {
			return 0, err
		}
		if err := r.events.Insert(ctx, tx, evt); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("holds.released", len(expired)))
	if len(expired) > 0 {
		r.logger.Info("expired holds released", "count", len(expired))
	}
	return len(expired), nil
}
