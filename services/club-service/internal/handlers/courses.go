package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/services/club-service/internal/storage"
)

const (
	pricingFullCourse = "full_course"
	pricingPerSession = "per_session"
)

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}

	var req struct {
		Name            string `json:"name"`
		PricingMode     string `json:"pricing_mode"`
		MaxParticipants int    `json:"max_participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.PricingMode = strings.TrimSpace(req.PricingMode)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	if req.PricingMode != pricingFullCourse && req.PricingMode != pricingPerSession {
		http.Error(w, "pricing_mode must be full_course or per_session", http.StatusUnprocessableEntity)
		return
	}
	if req.MaxParticipants < 0 {
		http.Error(w, "max_participants must not be negative (0 means unlimited)", http.StatusUnprocessableEntity)
		return
	}

	id, err := h.repo.CreateCourse(r.Context(), storage.Course{
		ClubID:          clubID,
		Name:            req.Name,
		PricingMode:     req.PricingMode,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		http.Error(w, "failed to create course", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}
	courses, err := h.repo.ListCourses(r.Context(), clubID)
	if err != nil {
		http.Error(w, "failed to list courses", http.StatusInternalServerError)
		return
	}
	if courses == nil {
		courses = []storage.Course{}
	}
	httpx.WriteJSON(w, http.StatusOK, courses)
}

// loadCourse writes 404/500 itself and reports whether the caller may continue.
func (h *Handler) loadCourse(w http.ResponseWriter, r *http.Request, clubID, courseID string) (storage.Course, bool) {
	course, err := h.repo.GetCourse(r.Context(), clubID, courseID)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "course not found", http.StatusNotFound)
			return storage.Course{}, false
		}
		http.Error(w, "failed to load course", http.StatusInternalServerError)
		return storage.Course{}, false
	}
	return course, true
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}

	var req struct {
		CourseID        string `json:"course_id"`
		CourtID         string `json:"court_id"`
		StartTime       string `json:"start_time"`
		EndTime         string `json:"end_time"`
		MaxParticipants int    `json:"max_participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CourseID = strings.TrimSpace(req.CourseID)
	req.CourtID = strings.TrimSpace(req.CourtID)
	if req.CourseID == "" || req.CourtID == "" {
		http.Error(w, "course_id and court_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}
	if req.MaxParticipants < 0 {
		http.Error(w, "max_participants must not be negative (0 means unlimited)", http.StatusUnprocessableEntity)
		return
	}

	if _, ok := h.loadCourse(w, r, clubID, req.CourseID); !ok {
		return
	}
	inClub, err := h.repo.CourtInClub(r.Context(), clubID, req.CourtID)
	if err != nil {
		http.Error(w, "failed to check court", http.StatusInternalServerError)
		return
	}
	if !inClub {
		http.Error(w, "court not found", http.StatusNotFound)
		return
	}

	id, err := h.repo.CreateSession(r.Context(), storage.Session{
		CourseID:        req.CourseID,
		CourtID:         req.CourtID,
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}
	courseID := strings.TrimSpace(r.URL.Query().Get("course_id"))
	if courseID == "" {
		http.Error(w, "course_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := h.loadCourse(w, r, clubID, courseID); !ok {
		return
	}
	sessions, err := h.repo.ListSessions(r.Context(), courseID)
	if err != nil {
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []storage.Session{}
	}
	httpx.WriteJSON(w, http.StatusOK, sessions)
}

// AdjustParticipants moves a course's fill level: confirmed_count for full_course pricing, the
// named session's booked_count for per_session pricing. Negative deltas release seats.
func (h *Handler) AdjustParticipants(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}

	var req struct {
		CourseID  string `json:"course_id"`
		SessionID string `json:"session_id"`
		Delta     int    `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CourseID = strings.TrimSpace(req.CourseID)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.CourseID == "" || req.Delta == 0 {
		http.Error(w, "course_id and a non-zero delta are required", http.StatusBadRequest)
		return
	}

	course, ok := h.loadCourse(w, r, clubID, req.CourseID)
	if !ok {
		return
	}

	switch course.PricingMode {
	case pricingFullCourse:
		updated, err := h.repo.AdjustCourseConfirmed(r.Context(), course.ID, req.Delta)
		if err != nil {
			h.writeAdjustError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, updated)
	case pricingPerSession:
		if req.SessionID == "" {
			http.Error(w, "session_id is required for per_session courses", http.StatusBadRequest)
			return
		}
		updated, err := h.repo.AdjustSessionBooked(r.Context(), course.ID, req.SessionID, req.Delta)
		if err != nil {
			h.writeAdjustError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, updated)
	default:
		http.Error(w, "course has an unknown pricing mode", http.StatusConflict)
	}
}

func (h *Handler) writeAdjustError(w http.ResponseWriter, err error) {
	if db.IsNotFound(err) {
		http.Error(w, "seat change rejected: capacity exceeded or unknown session", http.StatusConflict)
		return
	}
	h.logger.Error("adjust participants failed", "err", err)
	http.Error(w, "failed to adjust participants", http.StatusInternalServerError)
}
