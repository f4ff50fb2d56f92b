// Package events names the booking lifecycle events written to the outbox and builds their
// payloads.
package events

import (
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/outbox"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/storage"
)

const (
	AggregateBooking = "booking"

	BookingCreated   = "booking.created.v1"
	BookingActivated = "booking.activated.v1"
	BookingCancelled = "booking.cancelled.v1"
)

type bookingPayload struct {
	BookingID     string `json:"booking_id"`
	ClubID        string `json:"club_id"`
	CourtID       string `json:"court_id"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Reason        string `json:"reason,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// ForBooking builds the outbox event for a state change of b.
func ForBooking(eventType string, b storage.Booking, reason string, at time.Time) (outbox.Event, error) {
	return outbox.NewEvent(AggregateBooking, b.ID, eventType, bookingPayload{
		BookingID:     b.ID,
		ClubID:        b.ClubID,
		CourtID:       b.CourtID,
		Status:        string(b.Status),
		StartTime:     b.StartTime.UTC().Format(time.RFC3339),
		EndTime:       b.EndTime.UTC().Format(time.RFC3339),
		CustomerEmail: b.CustomerEmail,
		Reason:        reason,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	})
}
