package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/services/club-service/internal/storage"
)

type Store interface {
	GetSettings(ctx context.Context, clubID string) (storage.Settings, error)
	UpsertSettings(ctx context.Context, s storage.Settings) error
	CreateCourt(ctx context.Context, clubID, name string, isActive bool) (string, error)
	ListCourts(ctx context.Context, clubID string) ([]storage.Court, error)
	CourtInClub(ctx context.Context, clubID, courtID string) (bool, error)
	CreateBlockedPeriod(ctx context.Context, p storage.BlockedPeriod) (string, error)
	ListBlockedPeriods(ctx context.Context, clubID string, from, to time.Time) ([]storage.BlockedPeriod, error)
	DeleteBlockedPeriod(ctx context.Context, clubID, id string) (bool, error)
	CreateCourse(ctx context.Context, c storage.Course) (string, error)
	GetCourse(ctx context.Context, clubID, courseID string) (storage.Course, error)
	ListCourses(ctx context.Context, clubID string) ([]storage.Course, error)
	AdjustCourseConfirmed(ctx context.Context, courseID string, delta int) (storage.Course, error)
	CreateSession(ctx context.Context, s storage.Session) (string, error)
	ListSessions(ctx context.Context, courseID string) ([]storage.Session, error)
	AdjustSessionBooked(ctx context.Context, courseID, sessionID string, delta int) (storage.Session, error)
}

type Handler struct {
	repo   Store
	logger *slog.Logger
}

func New(repo Store, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func clubIDFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Club-Id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("club_id"))
}

// requireClub writes 400 and returns "" when the request names no club.
func requireClub(w http.ResponseWriter, r *http.Request) string {
	clubID := clubIDFrom(r)
	if clubID == "" {
		http.Error(w, "missing X-Club-Id or club_id", http.StatusBadRequest)
	}
	return clubID
}

var (
	errInvalidHours    = errors.New("opening_hour must be before closing_hour, within 0-24")
	errInvalidDuration = errors.New("slot_duration_minutes must be positive and fit inside opening hours")
	errInvalidTimezone = errors.New("unknown timezone")
)

// validateSettings rejects configurations that would generate no slots at all.
func validateSettings(s storage.Settings) error {
	if s.OpeningHour < 0 || s.ClosingHour > 24 || s.OpeningHour >= s.ClosingHour {
		return errInvalidHours
	}
	if s.SlotDurationMinutes <= 0 || s.SlotDurationMinutes > (s.ClosingHour-s.OpeningHour)*60 {
		return errInvalidDuration
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: %s", errInvalidTimezone, s.Timezone)
	}
	return nil
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}
	s, err := h.repo.GetSettings(r.Context(), clubID)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "club not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}

	var req struct {
		Name                string `json:"name"`
		Timezone            string `json:"timezone"`
		OpeningHour         *int   `json:"opening_hour"`
		ClosingHour         *int   `json:"closing_hour"`
		SlotDurationMinutes *int   `json:"slot_duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.OpeningHour == nil || req.ClosingHour == nil || req.SlotDurationMinutes == nil {
		http.Error(w, "opening_hour, closing_hour, and slot_duration_minutes are required", http.StatusBadRequest)
		return
	}
	s := storage.Settings{
		ClubID:              clubID,
		Name:                strings.TrimSpace(req.Name),
		Timezone:            strings.TrimSpace(req.Timezone),
		OpeningHour:         *req.OpeningHour,
		ClosingHour:         *req.ClosingHour,
		SlotDurationMinutes: *req.SlotDurationMinutes,
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if err := validateSettings(s); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := h.repo.UpsertSettings(r.Context(), s); err != nil {
		h.logger.Error("update settings failed", "club_id", clubID, "err", err)
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}
	h.logger.Info("club settings updated", "club_id", clubID,
		"opening_hour", s.OpeningHour,
		"closing_hour", s.ClosingHour,
		"slot_duration_minutes", s.SlotDurationMinutes,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateCourt(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}

	var req struct {
		Name     string `json:"name"`
		IsActive *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	id, err := h.repo.CreateCourt(r.Context(), clubID, req.Name, active)
	if err != nil {
		http.Error(w, "failed to create court", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) ListCourts(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}
	courts, err := h.repo.ListCourts(r.Context(), clubID)
	if err != nil {
		http.Error(w, "failed to list courts", http.StatusInternalServerError)
		return
	}
	if courts == nil {
		courts = []storage.Court{}
	}
	httpx.WriteJSON(w, http.StatusOK, courts)
}
