// Package notify turns booking lifecycle events into customer emails.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/kafkax"
	"github.com/md-rashed-zaman/clubbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/clubbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const (
	BookingActivated = "booking.activated.v1"
	BookingCancelled = "booking.cancelled.v1"
	HoldExpired      = "booking.hold.expired.v1"
)

// Topics lists the events the notifier subscribes to.
var Topics = []string{BookingActivated, BookingCancelled, HoldExpired}

type Store interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type bookingEvent struct {
	BookingID     string `json:"booking_id"`
	ClubID        string `json:"club_id"`
	CourtID       string `json:"court_id"`
	CustomerEmail string `json:"customer_email"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Reason        string `json:"reason"`
}

type Notifier struct {
	sender email.Sender
	store  Store
	logger *slog.Logger
}

func New(sender email.Sender, store Store, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, store: store, logger: logger}
}

// Handle sends the email for one booking event. Malformed or unknown events are dropped with a
// log line; only a failure to record the outcome is returned.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := kafkax.ExtractEventMeta(msg).EventType

	var evt bookingEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		n.logger.Error("invalid booking event", "err", err, "event_type", eventType)
		return nil
	}
	if evt.BookingID == "" {
		n.logger.Error("booking event without booking_id", "event_type", eventType)
		return nil
	}
	if strings.TrimSpace(evt.CustomerEmail) == "" {
		n.logger.Debug("no customer email, skipping", "booking_id", evt.BookingID, "event_type", eventType)
		return nil
	}

	subject, body, ok := render(eventType, evt)
	if !ok {
		n.logger.Warn("unsupported event type", "event_type", eventType)
		return nil
	}

	record := storage.Notification{
		BookingID: evt.BookingID,
		ClubID:    evt.ClubID,
		EventType: eventType,
		Channel:   "email",
		Recipient: evt.CustomerEmail,
		Status:    "sent",
	}
	if err := n.sender.Send(evt.CustomerEmail, subject, body); err != nil {
		record.Status = "failed"
		record.Error = err.Error()
		n.logger.Error("email send failed", "err", err, "booking_id", evt.BookingID)
	}
	if err := n.store.Insert(ctx, record); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	n.logger.Info("booking notification processed", "booking_id", evt.BookingID, "event_type", eventType, "status", record.Status)
	return nil
}

func render(eventType string, evt bookingEvent) (string, string, bool) {
	when := formatWindow(evt.StartTime, evt.EndTime)
	switch eventType {
	case BookingActivated:
		return "Your court booking is confirmed",
			fmt.Sprintf("Payment received. Court %s is yours %s.\nBooking reference: %s", evt.CourtID, when, evt.BookingID), true
	case BookingCancelled:
		body := fmt.Sprintf("Your booking of court %s %s was cancelled.", evt.CourtID, when)
		if evt.Reason != "" {
			body += "\nReason: " + strings.ReplaceAll(evt.Reason, "_", " ")
		}
		return "Your court booking was cancelled", body + "\nBooking reference: " + evt.BookingID, true
	case HoldExpired:
		return "Your court hold has expired",
			fmt.Sprintf("We did not receive payment in time, so court %s %s has been released.\nBooking reference: %s", evt.CourtID, when, evt.BookingID), true
	default:
		return "", "", false
	}
}

func formatWindow(startRaw, endRaw string) string {
	start, err1 := time.Parse(time.RFC3339, startRaw)
	end, err2 := time.Parse(time.RFC3339, endRaw)
	if err1 != nil || err2 != nil {
		return "at the requested time"
	}
	start, end = start.UTC(), end.UTC()
	return fmt.Sprintf("on %s from %s to %s UTC", start.Format("Mon 2 Jan 2006"), start.Format("15:04"), end.Format("15:04"))
}
