package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/availability"
)

// Querier is satisfied by both the pool and a transaction, so reads can run inside or outside
// the write transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var ErrDuplicatePaymentEvent = errors.New("payment event already recorded")

type Booking struct {
	ID                string
	ClubID            string
	CourtID           string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	StartTime         time.Time
	EndTime           time.Time
	Status            availability.BookingStatus
	CheckoutSessionID string
	ActivatedAt       *time.Time
	CancelledAt       *time.Time
	CancelReason      string
	CreatedAt         time.Time
}

// Engine projects the row onto the availability engine's view.
func (b Booking) Engine() availability.Booking {
	return availability.Booking{
		ID:        b.ID,
		CourtID:   b.CourtID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    b.Status,
	}
}

type IdempotencyRecord struct {
	ClubID          string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Pool exposes the pool as a Querier for reads outside a transaction.
func (r *BookingRepository) Pool() Querier {
	return r.pool
}

// LockCourt serializes writers for one court until tx ends.
func (r *BookingRepository) LockCourt(ctx context.Context, tx pgx.Tx, courtID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "court:"+courtID)
	return err
}

const bookingColumns = `
	id::text, club_id::text, court_id::text, customer_name, customer_email, customer_phone,
	start_time, end_time, status, COALESCE(checkout_session_id, ''), activated_at, cancelled_at,
	COALESCE(cancellation_reason, ''), created_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	var status string
	err := row.Scan(
		&b.ID,
		&b.ClubID,
		&b.CourtID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.StartTime,
		&b.EndTime,
		&status,
		&b.CheckoutSessionID,
		&b.ActivatedAt,
		&b.CancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	b.Status = availability.BookingStatus(status)
	return b, err
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Create inserts an awaiting_payment hold. Overlap with another hold on the court fails with
// an exclusion violation (db.IsConflict).
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *Booking) (string, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(club_id, court_id, customer_name, customer_email, customer_phone, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'awaiting_payment')
		RETURNING id::text, created_at
	`, b.ClubID, b.CourtID, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.StartTime, b.EndTime).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return "", err
	}
	b.Status = availability.StatusAwaitingPayment
	return b.ID, nil
}

// ListHolding returns awaiting_payment and active bookings on courtID that overlap [from, to).
func (r *BookingRepository) ListHolding(ctx context.Context, q Querier, courtID string, from, to time.Time) ([]availability.Booking, error) {
	rows, err := q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE court_id = $1
			AND status IN ('awaiting_payment', 'active')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, courtID, from, to)
	if err != nil {
		return nil, err
	}
	rowsOut, err := collectBookings(rows)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Booking, 0, len(rowsOut))
	for _, b := range rowsOut {
		out = append(out, b.Engine())
	}
	return out, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, clubID, bookingID string) (Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND club_id = $2
		FOR UPDATE
	`, bookingID, clubID))
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, bookingID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, bookingID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) SetCheckoutSession(ctx context.Context, tx pgx.Tx, bookingID, sessionID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings SET checkout_session_id = $2 WHERE id = $1
	`, bookingID, sessionID)
	return err
}

// ActivatePending promotes an awaiting_payment booking to active. It returns pgx.ErrNoRows when
// the booking is gone (reaped) or no longer pending.
func (r *BookingRepository) ActivatePending(ctx context.Context, tx pgx.Tx, bookingID string) (Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'active', activated_at = now()
		WHERE id = $1 AND status = 'awaiting_payment'
		RETURNING `+bookingColumns,
		bookingID))
}

// CancelPending cancels the booking only while it is still awaiting payment.
func (r *BookingRepository) CancelPending(ctx context.Context, tx pgx.Tx, bookingID, reason string) (Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now(), cancellation_reason = $2
		WHERE id = $1 AND status = 'awaiting_payment'
		RETURNING `+bookingColumns,
		bookingID, reason))
}

func (r *BookingRepository) ListByClub(ctx context.Context, clubID string, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE club_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, clubID, limit)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepository) InsertPaymentEvent(ctx context.Context, tx pgx.Tx, evt PaymentEvent) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO payment_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, evt.Payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicatePaymentEvent
	}
	return nil
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, clubID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, clubID, key)
	if err == nil {
		return rec, true, nil
	}
	if !db.IsNotFound(err) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (club_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (club_id, idempotency_key) DO NOTHING
	`, clubID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, clubID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, clubID, key, bookingID string, statusCode int, response []byte) error {
	var booking any
	if bookingID != "" {
		booking = bookingID
	}
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE club_id = $1 AND idempotency_key = $2
	`, clubID, key, booking, statusCode, response)
	return err
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, clubID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT club_id::text,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE club_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, clubID, key).Scan(
		&rec.ClubID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
