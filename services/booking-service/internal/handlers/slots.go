package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

type slotItem struct {
	Label         string `json:"label"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Available     bool   `json:"available"`
	BlockedReason string `json:"blocked_reason,omitempty"`
}

type courseAvailabilityResponse struct {
	CourseID     string `json:"course_id"`
	PricingMode  string `json:"pricing_mode"`
	Bookable     bool   `json:"bookable"`
	SessionCount int    `json:"session_count"`
}

// Slots lists every generated slot of one court on one day with its verdict. Supporting data that
// fails to load is treated as empty so the page keeps rendering; the write path re-checks.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clubID := strings.TrimSpace(q.Get("club_id"))
	courtID := strings.TrimSpace(q.Get("court_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	courseID := strings.TrimSpace(q.Get("course_id"))
	if clubID == "" || courtID == "" || dateStr == "" {
		http.Error(w, "club_id, court_id, and date are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	club, court, ok := h.loadClubCourt(ctx, w, clubID, courtID)
	if !ok {
		return
	}
	loc, known := club.Location()
	if !known {
		h.logger.Warn("unknown club timezone; using UTC", "club_id", clubID, "timezone", club.Timezone)
	}
	day, err := time.ParseInLocation(time.DateOnly, dateStr, loc)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if !court.IsActive {
		httpx.WriteJSON(w, http.StatusOK, []slotItem{})
		return
	}

	req := availability.Request{
		Date:    day,
		CourtID: courtID,
		Window:  club.Window,
		Now:     h.now(),
	}
	from, to := day, day.AddDate(0, 0, 1)

	req.BlockedPeriods, err = h.clubs.ListBlockedPeriods(ctx, clubID, day, day)
	if err != nil {
		h.logger.Warn("blocked periods unavailable; showing slots without blackouts", "club_id", clubID, "err", err)
		req.BlockedPeriods = nil
	}
	req.Bookings, err = h.store.ListHolding(ctx, h.store.Pool(), courtID, from, to)
	if err != nil {
		h.logger.Warn("bookings unavailable; showing slots as free", "court_id", courtID, "err", err)
		req.Bookings = nil
	}
	req.Sessions, err = h.clubs.ListCourtSessions(ctx, courtID, from, to)
	if err != nil {
		h.logger.Warn("course sessions unavailable", "court_id", courtID, "err", err)
		req.Sessions = nil
	}
	if courseID != "" {
		req.Course = h.loadCourse(ctx, courseID)
	}
	req.BlockedPeriods = availability.SortBlockedPeriods(req.BlockedPeriods)

	_, span := h.tracer.Start(ctx, "availability.evaluate")
	verdicts := availability.Evaluate(req)
	span.SetAttributes(
		attribute.String("club.id", clubID),
		attribute.String("court.id", courtID),
		attribute.String("date", dateStr),
		attribute.Int("slots", len(verdicts)),
	)
	span.End()

	if len(verdicts) == 0 {
		h.logger.Warn("club window yields no slots", "club_id", clubID,
			"opening_hour", club.Window.StartHour,
			"closing_hour", club.Window.EndHour,
			"slot_duration_minutes", club.Window.SlotDurationMinutes,
		)
	}

	items := make([]slotItem, 0, len(verdicts))
	for _, v := range verdicts {
		items = append(items, slotItem{
			Label:         v.Slot.Label,
			StartTime:     v.Start.Format(time.RFC3339),
			EndTime:       v.End.Format(time.RFC3339),
			Available:     v.Bookable,
			BlockedReason: v.BlockedReason,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// CourseAvailability answers whether a course can still take participants.
func (h *BookingHandler) CourseAvailability(w http.ResponseWriter, r *http.Request) {
	courseID := strings.TrimSpace(r.URL.Query().Get("course_id"))
	if courseID == "" {
		http.Error(w, "course_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	course, err := h.clubs.GetCourse(ctx, courseID)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		http.Error(w, "course unavailable", http.StatusServiceUnavailable)
		return
	}
	sessions, err := h.clubs.ListCourseSessions(ctx, courseID)
	if err != nil {
		h.logger.Warn("course sessions unavailable; treating as none", "course_id", courseID, "err", err)
		sessions = nil
	}

	httpx.WriteJSON(w, http.StatusOK, courseAvailabilityResponse{
		CourseID:     course.ID,
		PricingMode:  string(course.Mode),
		Bookable:     availability.CourseBookable(course, sessions),
		SessionCount: len(sessions),
	})
}

func (h *BookingHandler) loadCourse(ctx context.Context, courseID string) *availability.CourseContext {
	course, err := h.clubs.GetCourse(ctx, courseID)
	if err != nil {
		h.logger.Warn("course unavailable; ignoring course capacity", "course_id", courseID, "err", err)
		return nil
	}
	sessions, err := h.clubs.ListCourseSessions(ctx, courseID)
	if err != nil {
		h.logger.Warn("course sessions unavailable; treating as none", "course_id", courseID, "err", err)
		sessions = nil
	}
	return &availability.CourseContext{Course: course, Sessions: sessions}
}

// loadClubCourt writes the error response itself and reports whether the caller may continue.
func (h *BookingHandler) loadClubCourt(ctx context.Context, w http.ResponseWriter, clubID, courtID string) (storage.Club, storage.Court, bool) {
	club, err := h.clubs.GetClub(ctx, clubID)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "club not found", http.StatusNotFound)
		} else {
			h.logger.Error("load club failed", "club_id", clubID, "err", err)
			http.Error(w, "club configuration unavailable", http.StatusServiceUnavailable)
		}
		return storage.Club{}, storage.Court{}, false
	}
	court, err := h.clubs.GetCourt(ctx, courtID)
	if err != nil && !db.IsNotFound(err) {
		h.logger.Error("load court failed", "court_id", courtID, "err", err)
		http.Error(w, "club configuration unavailable", http.StatusServiceUnavailable)
		return storage.Club{}, storage.Court{}, false
	}
	if err != nil || court.ClubID != club.ID {
		http.Error(w, "court not found", http.StatusNotFound)
		return storage.Club{}, storage.Court{}, false
	}
	return club, court, true
}
