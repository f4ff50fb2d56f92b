package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/libs/outbox"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/storage"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	provider = "stripe"

	eventCheckoutCompleted = "checkout.session.completed"
	eventCheckoutExpired   = "checkout.session.expired"

	reasonCheckoutExpired = "checkout_expired"
)

// PaymentStore is the slice of the booking repository the webhook needs.
type PaymentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertPaymentEvent(ctx context.Context, tx pgx.Tx, evt storage.PaymentEvent) error
	ActivatePending(ctx context.Context, tx pgx.Tx, bookingID string) (storage.Booking, error)
	CancelPending(ctx context.Context, tx pgx.Tx, bookingID, reason string) (storage.Booking, error)
}

type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type WebhookHandler struct {
	store     PaymentStore
	events    EventWriter
	secret    string
	tolerance time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewWebhookHandler(store PaymentStore, evts EventWriter, secret string, tolerance time.Duration, logger *slog.Logger) *WebhookHandler {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookHandler{
		store:     store,
		events:    evts,
		secret:    secret,
		tolerance: tolerance,
		logger:    logger,
		now:       time.Now,
	}
}

// ServeHTTP verifies the Stripe signature, records the event once, and settles the hold it
// refers to. Signature verification is the only authentication on this path.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", provider,
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.store.InsertPaymentEvent(ctx, tx, storage.PaymentEvent{
		Provider:        provider,
		ProviderEventID: evt.ID,
		EventType:       evtType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicatePaymentEvent) {
			h.logger.Info("payment provider event duplicate ignored", "provider_event_id", evt.ID)
			_ = tx.Commit(ctx)
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	switch evtType {
	case eventCheckoutCompleted, eventCheckoutExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		bookingID := bookingIDFromSession(&session)
		if bookingID == "" {
			h.logger.Warn("stripe: checkout session without booking_id", "session_id", session.ID)
			break
		}
		if err := h.settle(ctx, tx, evtType, bookingID); err != nil {
			h.logger.Error("settle booking failed", "booking_id", bookingID, "err", err)
			http.Error(w, "failed to apply payment outcome", http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Debug("stripe event ignored", "event_type", evtType)
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *WebhookHandler) settle(ctx context.Context, tx pgx.Tx, evtType, bookingID string) error {
	var (
		b         storage.Booking
		err       error
		eventType string
		reason    string
	)
	if evtType == eventCheckoutCompleted {
		b, err = h.store.ActivatePending(ctx, tx, bookingID)
		eventType = events.BookingActivated
	} else {
		reason = reasonCheckoutExpired
		b, err = h.store.CancelPending(ctx, tx, bookingID, reason)
		eventType = events.BookingCancelled
	}
	if db.IsNotFound(err) {
		// Reaped or already settled. A late payment needs manual reconciliation.
		h.logger.Warn("payment outcome for booking that is no longer pending",
			"booking_id", bookingID,
			"event_type", evtType,
		)
		return nil
	}
	if err != nil {
		return err
	}
	out, err := events.ForBooking(eventType, b, reason, h.now())
	if err != nil {
		return err
	}
	return h.events.Insert(ctx, tx, out)
}

func bookingIDFromSession(s *stripe.CheckoutSession) string {
	if id := strings.TrimSpace(s.Metadata["booking_id"]); id != "" {
		return id
	}
	return strings.TrimSpace(s.ClientReferenceID)
}
