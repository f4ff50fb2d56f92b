package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/storage"
)

type createBookingRequest struct {
	ClubID        string `json:"club_id"`
	CourtID       string `json:"court_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type createBookingResponse struct {
	BookingID     string `json:"booking_id"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	HoldExpiresAt string `json:"hold_expires_at"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
}

type cancelBookingRequest struct {
	ClubID    string `json:"club_id"`
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

type listBookingItem struct {
	BookingID     string `json:"booking_id"`
	CourtID       string `json:"court_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	ActivatedAt   string `json:"activated_at,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// Create places an awaiting_payment hold. Unlike Slots it refuses to proceed on any load
// failure, and the court lock plus the exclusion constraint settle concurrent attempts.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ClubID = strings.TrimSpace(req.ClubID)
	req.CourtID = strings.TrimSpace(req.CourtID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.ClubID == "" || req.CourtID == "" || req.CustomerName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !endTime.After(startTime) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.store.LockIdempotencyKey(ctx, tx, req.ClubID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 && len(rec.ResponsePayload) > 0 {
			writeRaw(w, rec.StatusCode, rec.ResponsePayload)
			return
		}
	}

	club, court, ok := h.loadClubCourt(ctx, w, req.ClubID, req.CourtID)
	if !ok {
		return
	}
	if !court.IsActive {
		h.rejectCreate(ctx, w, tx, req.ClubID, idempotencyKey, http.StatusUnprocessableEntity, "court is not accepting bookings")
		return
	}

	loc, _ := club.Location()
	local := startTime.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	if err := h.store.LockCourt(ctx, tx, court.ID); err != nil {
		http.Error(w, "failed to lock court", http.StatusServiceUnavailable)
		return
	}
	check, err := h.loadReservationSnapshot(ctx, tx, club, court.ID, day)
	if err != nil {
		// No idempotency record on dependency errors so the client can retry with the same key.
		h.logger.Error("availability snapshot failed", "club_id", club.ID, "court_id", court.ID, "err", err)
		http.Error(w, "availability unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := availability.CheckReservation(check, startTime, endTime); err != nil {
		h.rejectCreate(ctx, w, tx, req.ClubID, idempotencyKey, reservationStatus(err), err.Error())
		return
	}

	b := &storage.Booking{
		ClubID:        club.ID,
		CourtID:       court.ID,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		StartTime:     startTime,
		EndTime:       endTime,
	}
	id, err := h.store.Create(ctx, tx, b)
	if err != nil {
		if db.IsConflict(err) {
			http.Error(w, availability.ErrSlotTaken.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	evt, err := events.ForBooking(events.BookingCreated, *b, "", h.now())
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.events.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	resp := createBookingResponse{
		BookingID:     id,
		Status:        string(availability.StatusAwaitingPayment),
		StartTime:     startTime.UTC().Format(time.RFC3339),
		EndTime:       endTime.UTC().Format(time.RFC3339),
		HoldExpiresAt: b.CreatedAt.Add(h.holdTTL).UTC().Format(time.RFC3339),
	}
	if h.checkout != nil {
		co, err := h.checkout.CreateCheckout(ctx, payments.CheckoutRequest{
			BookingID:      id,
			ClubID:         club.ID,
			Start:          startTime,
			End:            endTime,
			CustomerEmail:  b.CustomerEmail,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			h.logger.Error("checkout session failed", "booking_id", id, "err", err)
			http.Error(w, "payment provider unavailable", http.StatusBadGateway)
			return
		}
		if err := h.store.SetCheckoutSession(ctx, tx, id, co.SessionID); err != nil {
			http.Error(w, "failed to store checkout session", http.StatusInternalServerError)
			return
		}
		resp.CheckoutURL = co.URL
	}

	respBody, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.store.FinalizeIdempotency(ctx, tx, req.ClubID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.logger.Info("booking hold created", "booking_id", id, "club_id", club.ID, "court_id", court.ID)
	writeRaw(w, http.StatusCreated, respBody)
}

// loadReservationSnapshot reads everything CheckReservation needs inside the locked transaction.
// A court booking carries no course context, so Request.Course stays nil and course capacity
// never gates it. Course sessions still block the court through Sessions.
func (h *BookingHandler) loadReservationSnapshot(ctx context.Context, tx pgx.Tx, club storage.Club, courtID string, day time.Time) (availability.Request, error) {
	from, to := day, day.AddDate(0, 0, 1)
	periods, err := h.clubs.ListBlockedPeriods(ctx, club.ID, day, day)
	if err != nil {
		return availability.Request{}, err
	}
	bookings, err := h.store.ListHolding(ctx, tx, courtID, from, to)
	if err != nil {
		return availability.Request{}, err
	}
	sessions, err := h.clubs.ListCourtSessions(ctx, courtID, from, to)
	if err != nil {
		return availability.Request{}, err
	}
	return availability.Request{
		Date:           day,
		CourtID:        courtID,
		Window:         club.Window,
		BlockedPeriods: availability.SortBlockedPeriods(periods),
		Bookings:       bookings,
		Sessions:       sessions,
		Now:            h.now(),
	}, nil
}

func reservationStatus(err error) int {
	switch {
	case errors.Is(err, availability.ErrSlotTaken),
		errors.Is(err, availability.ErrCourseConflict),
		errors.Is(err, availability.ErrBlackout):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// rejectCreate records a deterministic rejection against the idempotency key so a retry gets the
// same answer.
func (h *BookingHandler) rejectCreate(ctx context.Context, w http.ResponseWriter, tx pgx.Tx, clubID, key string, statusCode int, msg string) {
	body := errorBody(msg)
	if key != "" {
		if err := h.store.FinalizeIdempotency(ctx, tx, clubID, key, "", statusCode, body); err != nil {
			h.logger.Error("failed to finalize idempotency (error)", "err", err)
		} else if err := tx.Commit(ctx); err != nil {
			h.logger.Error("failed to commit idempotency (error)", "err", err)
		}
	}
	writeRaw(w, statusCode, body)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ClubID = strings.TrimSpace(req.ClubID)
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ClubID == "" || req.BookingID == "" {
		http.Error(w, "club_id and booking_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := h.store.GetForUpdate(ctx, tx, req.ClubID, req.BookingID)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	if b.Status == availability.StatusCancelled && b.CancelledAt != nil {
		httpx.WriteJSON(w, http.StatusOK, cancelBookingResponse{
			BookingID:   b.ID,
			Status:      string(b.Status),
			CancelledAt: b.CancelledAt.UTC().Format(time.RFC3339),
		})
		return
	}

	cancelledAt, err := h.store.Cancel(ctx, tx, b.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}
	b.Status = availability.StatusCancelled
	evt, err := events.ForBooking(events.BookingCancelled, b, req.Reason, cancelledAt)
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.events.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.logger.Info("booking cancelled", "booking_id", b.ID, "club_id", b.ClubID)
	httpx.WriteJSON(w, http.StatusOK, cancelBookingResponse{
		BookingID:   b.ID,
		Status:      string(b.Status),
		CancelledAt: cancelledAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	clubID := strings.TrimSpace(r.Header.Get("X-Club-Id"))
	if clubID == "" {
		clubID = strings.TrimSpace(r.URL.Query().Get("club_id"))
	}
	if clubID == "" {
		http.Error(w, "club_id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.store.ListByClub(r.Context(), clubID, limit)
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]listBookingItem, 0, len(bookings))
	for _, b := range bookings {
		item := listBookingItem{
			BookingID:     b.ID,
			CourtID:       b.CourtID,
			CustomerName:  b.CustomerName,
			CustomerEmail: b.CustomerEmail,
			StartTime:     b.StartTime.UTC().Format(time.RFC3339),
			EndTime:       b.EndTime.UTC().Format(time.RFC3339),
			Status:        string(b.Status),
			CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if b.ActivatedAt != nil {
			item.ActivatedAt = b.ActivatedAt.UTC().Format(time.RFC3339)
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
