package holds

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// ExpiredHold is an awaiting_payment booking removed by the reaper.
type ExpiredHold struct {
	BookingID     string
	ClubID        string
	CourtID       string
	CustomerEmail string
	StartTime     time.Time
	EndTime       time.Time
	CreatedAt     time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// DeleteExpired removes up to limit awaiting_payment bookings created before cutoff, oldest
// first. Rows locked by a concurrent writer (a webhook activating the hold) are skipped and
// picked up on a later tick if they are still pending.
func (r *Repository) DeleteExpired(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]ExpiredHold, error) {
	rows, err := tx.Query(ctx, `
		DELETE FROM bookings
		WHERE id IN (
			SELECT id
			FROM bookings
			WHERE status = 'awaiting_payment' AND created_at < $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id::text, club_id::text, court_id::text, customer_email, start_time, end_time, created_at
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ExpiredHold, error) {
		var h ExpiredHold
		err := row.Scan(&h.BookingID, &h.ClubID, &h.CourtID, &h.CustomerEmail, &h.StartTime, &h.EndTime, &h.CreatedAt)
		return h, err
	})
}
