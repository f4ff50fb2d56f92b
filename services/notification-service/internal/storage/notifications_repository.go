package storage

import (
	"context"

	"github.com/md-rashed-zaman/clubbook/libs/db"
)

type Notification struct {
	BookingID string
	ClubID    string
	EventType string
	Channel   string
	Recipient string
	Status    string
	Error     string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_id, club_id, event_type, channel, recipient, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, n.BookingID, n.ClubID, n.EventType, n.Channel, n.Recipient, n.Status, n.Error)
	return err
}
