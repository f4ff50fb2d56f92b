package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/httpx"
	"github.com/md-rashed-zaman/clubbook/services/club-service/internal/storage"
)

var (
	errMissingDates  = errors.New("start_date and end_date are required (YYYY-MM-DD)")
	errInvertedDates = errors.New("start_date must not be after end_date")
)

type blockedPeriodItem struct {
	ID        string `json:"id"`
	CourtID   string `json:"court_id,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

// parseDateRange validates an inclusive calendar range.
func parseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	startRaw, endRaw = strings.TrimSpace(startRaw), strings.TrimSpace(endRaw)
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, errMissingDates
	}
	start, err := time.Parse(time.DateOnly, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errMissingDates
	}
	end, err := time.Parse(time.DateOnly, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errMissingDates
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errInvertedDates
	}
	return start, end, nil
}

func (h *Handler) CreateBlockedPeriod(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}

	var req struct {
		CourtID   string `json:"court_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errInvertedDates) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	req.CourtID = strings.TrimSpace(req.CourtID)
	if req.CourtID != "" {
		ok, err := h.repo.CourtInClub(r.Context(), clubID, req.CourtID)
		if err != nil {
			http.Error(w, "failed to check court", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "court not found", http.StatusNotFound)
			return
		}
	}

	id, err := h.repo.CreateBlockedPeriod(r.Context(), storage.BlockedPeriod{
		ClubID:    clubID,
		CourtID:   req.CourtID,
		StartDate: start,
		EndDate:   end,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		h.logger.Error("create blocked period failed", "club_id", clubID, "err", err)
		http.Error(w, "failed to create blocked period", http.StatusInternalServerError)
		return
	}
	h.logger.Info("blocked period created", "club_id", clubID, "id", id,
		"start_date", start.Format(time.DateOnly),
		"end_date", end.Format(time.DateOnly),
	)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// ListBlockedPeriods returns periods ascending by start date, the order the booking engine
// resolves them in. from and to are optional YYYY-MM-DD bounds.
func (h *Handler) ListBlockedPeriods(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}

	var from, to time.Time
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = t
	}

	periods, err := h.repo.ListBlockedPeriods(r.Context(), clubID, from, to)
	if err != nil {
		http.Error(w, "failed to list blocked periods", http.StatusInternalServerError)
		return
	}
	items := make([]blockedPeriodItem, 0, len(periods))
	for _, p := range periods {
		items = append(items, blockedPeriodItem{
			ID:        p.ID,
			CourtID:   p.CourtID,
			StartDate: p.StartDate.Format(time.DateOnly),
			EndDate:   p.EndDate.Format(time.DateOnly),
			Reason:    p.Reason,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) DeleteBlockedPeriod(w http.ResponseWriter, r *http.Request) {
	clubID := requireClub(w, r)
	if clubID == "" {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	deleted, err := h.repo.DeleteBlockedPeriod(r.Context(), clubID, id)
	if err != nil {
		http.Error(w, "failed to delete blocked period", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "blocked period not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
