package availability

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrEmptyStartDate = errors.New("start date cannot be zero")
	ErrEmptyEndDate   = errors.New("end date cannot be zero")
	ErrInvalidDates   = errors.New("start date must be before or equal to end date")
)

// BlockedPeriod is an administrator-defined inclusive date range during which no bookings are
// allowed. Only the calendar dates of StartDate and EndDate are significant. An empty CourtID
// blocks every court of the club.
type BlockedPeriod struct {
	ID        string
	CourtID   string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

func (p BlockedPeriod) Validate() error {
	if p.StartDate.IsZero() {
		return ErrEmptyStartDate
	}
	if p.EndDate.IsZero() {
		return ErrEmptyEndDate
	}
	if civilDay(p.StartDate) > civilDay(p.EndDate) {
		return ErrInvalidDates
	}
	return nil
}

// Contains reports whether date's calendar day, read in date's own location, lies within
// [StartDate 00:00, EndDate 23:59:59.999].
func (p BlockedPeriod) Contains(date time.Time) bool {
	d := civilDay(date)
	return d >= civilDay(p.StartDate) && d <= civilDay(p.EndDate)
}

// AppliesTo reports whether the period covers courtID. Club-wide periods cover every court.
func (p BlockedPeriod) AppliesTo(courtID string) bool {
	return p.CourtID == "" || p.CourtID == courtID
}

// SortBlockedPeriods returns a copy ordered by start date ascending. Periods starting on the
// same day keep their relative order.
func SortBlockedPeriods(periods []BlockedPeriod) []BlockedPeriod {
	out := make([]BlockedPeriod, len(periods))
	copy(out, periods)
	sort.SliceStable(out, func(i, j int) bool {
		return civilDay(out[i].StartDate) < civilDay(out[j].StartDate)
	})
	return out
}

// ResolveBlackout returns the first period, in slice order, that covers courtID on date.
// First match wins even when a later period is narrower; pass the slice through
// SortBlockedPeriods to make the winner deterministic.
func ResolveBlackout(date time.Time, courtID string, periods []BlockedPeriod) (BlockedPeriod, bool) {
	for _, p := range periods {
		if !p.AppliesTo(courtID) {
			continue
		}
		if p.Contains(date) {
			return p, true
		}
	}
	return BlockedPeriod{}, false
}

// civilDay maps a time to a comparable day number using its own location's calendar date.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
