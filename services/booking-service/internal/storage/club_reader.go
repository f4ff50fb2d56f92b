package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clubbook/libs/db"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/availability"
)

// Club is the subset of club settings the booking engine needs.
type Club struct {
	ID       string
	Timezone string
	Window   availability.OperatingWindow
}

// Location resolves the club's IANA timezone, falling back to UTC for unknown names.
func (c Club) Location() (*time.Location, bool) {
	if c.Timezone == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

type Court struct {
	ID       string
	ClubID   string
	Name     string
	IsActive bool
}

// ClubConfigReader reads administrator configuration owned by club-service. It never writes.
type ClubConfigReader struct {
	pool *db.Pool
}

func NewClubConfigReader(pool *db.Pool) *ClubConfigReader {
	return &ClubConfigReader{pool: pool}
}

func (r *ClubConfigReader) GetClub(ctx context.Context, clubID string) (Club, error) {
	var c Club
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, timezone, opening_hour, closing_hour, slot_duration_minutes
		FROM clubs
		WHERE id = $1
	`, clubID).Scan(&c.ID, &c.Timezone, &c.Window.StartHour, &c.Window.EndHour, &c.Window.SlotDurationMinutes)
	return c, err
}

func (r *ClubConfigReader) GetCourt(ctx context.Context, courtID string) (Court, error) {
	var c Court
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, club_id::text, name, is_active
		FROM courts
		WHERE id = $1
	`, courtID).Scan(&c.ID, &c.ClubID, &c.Name, &c.IsActive)
	return c, err
}

// ListBlockedPeriods returns club-wide and court-scoped periods overlapping [from, to] (calendar
// dates), ordered by start date so first-match resolution is deterministic.
func (r *ClubConfigReader) ListBlockedPeriods(ctx context.Context, clubID string, from, to time.Time) ([]availability.BlockedPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, COALESCE(court_id::text, ''), start_date, end_date, reason
		FROM blocked_periods
		WHERE club_id = $1
			AND start_date <= $3::date
			AND end_date >= $2::date
		ORDER BY start_date ASC, created_at ASC
	`, clubID, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.BlockedPeriod
	for rows.Next() {
		var p availability.BlockedPeriod
		if err := rows.Scan(&p.ID, &p.CourtID, &p.StartDate, &p.EndDate, &p.Reason); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListCourtSessions returns course sessions scheduled on courtID overlapping [from, to).
func (r *ClubConfigReader) ListCourtSessions(ctx context.Context, courtID string, from, to time.Time) ([]availability.CourseSession, error) {
	return r.listSessions(ctx, `
		SELECT id::text, course_id::text, court_id::text, start_time, end_time, max_participants, booked_count
		FROM course_sessions
		WHERE court_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time ASC
	`, courtID, from, to)
}

func (r *ClubConfigReader) ListCourseSessions(ctx context.Context, courseID string) ([]availability.CourseSession, error) {
	return r.listSessions(ctx, `
		SELECT id::text, course_id::text, court_id::text, start_time, end_time, max_participants, booked_count
		FROM course_sessions
		WHERE course_id = $1
		ORDER BY start_time ASC
	`, courseID)
}

func (r *ClubConfigReader) GetCourse(ctx context.Context, courseID string) (availability.Course, error) {
	var c availability.Course
	var mode string
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, pricing_mode, max_participants, confirmed_count
		FROM courses
		WHERE id = $1
	`, courseID).Scan(&c.ID, &mode, &c.MaxParticipants, &c.ConfirmedCount)
	c.Mode = availability.PricingMode(mode)
	return c, err
}

func (r *ClubConfigReader) listSessions(ctx context.Context, query string, args ...any) ([]availability.CourseSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.CourseSession
	for rows.Next() {
		var s availability.CourseSession
		if err := rows.Scan(&s.ID, &s.CourseID, &s.CourtID, &s.StartTime, &s.EndTime, &s.MaxParticipants, &s.BookedCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
