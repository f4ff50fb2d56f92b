package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clubbook/libs/outbox"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultHoldTTL = 20 * time.Minute

type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Pool() storage.Querier
	LockCourt(ctx context.Context, tx pgx.Tx, courtID string) error
	ListHolding(ctx context.Context, q storage.Querier, courtID string, from, to time.Time) ([]availability.Booking, error)
	Create(ctx context.Context, tx pgx.Tx, b *storage.Booking) (string, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, clubID, bookingID string) (storage.Booking, error)
	Cancel(ctx context.Context, tx pgx.Tx, bookingID, reason string) (time.Time, error)
	SetCheckoutSession(ctx context.Context, tx pgx.Tx, bookingID, sessionID string) error
	ListByClub(ctx context.Context, clubID string, limit int) ([]storage.Booking, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, clubID, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, clubID, key, bookingID string, statusCode int, response []byte) error
}

type ClubReader interface {
	GetClub(ctx context.Context, clubID string) (storage.Club, error)
	GetCourt(ctx context.Context, courtID string) (storage.Court, error)
	ListBlockedPeriods(ctx context.Context, clubID string, from, to time.Time) ([]availability.BlockedPeriod, error)
	ListCourtSessions(ctx context.Context, courtID string, from, to time.Time) ([]availability.CourseSession, error)
	GetCourse(ctx context.Context, courseID string) (availability.Course, error)
	ListCourseSessions(ctx context.Context, courseID string) ([]availability.CourseSession, error)
}

type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// CheckoutCreator opens a hosted payment page for a new hold.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (payments.Checkout, error)
}

type Options struct {
	// Checkout is optional; without it holds are created with no payment link.
	Checkout CheckoutCreator
	HoldTTL  time.Duration
}

type BookingHandler struct {
	store    BookingStore
	clubs    ClubReader
	events   EventWriter
	checkout CheckoutCreator
	holdTTL  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewBookingHandler(store BookingStore, clubs ClubReader, evts EventWriter, logger *slog.Logger, opts Options) *BookingHandler {
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = defaultHoldTTL
	}
	return &BookingHandler{
		store:    store,
		clubs:    clubs,
		events:   evts,
		checkout: opts.Checkout,
		holdTTL:  opts.HoldTTL,
		logger:   logger,
		tracer:   otel.Tracer("clubbook/booking-service"),
		now:      time.Now,
	}
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func errorBody(msg string) []byte {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return body
}
