package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clubbook/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

type Settings struct {
	ClubID              string `json:"club_id"`
	Name                string `json:"name"`
	Timezone            string `json:"timezone"`
	OpeningHour         int    `json:"opening_hour"`
	ClosingHour         int    `json:"closing_hour"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
}

func (r *Repository) GetSettings(ctx context.Context, clubID string) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, timezone, opening_hour, closing_hour, slot_duration_minutes
		FROM clubs
		WHERE id = $1
	`, clubID).Scan(&s.ClubID, &s.Name, &s.Timezone, &s.OpeningHour, &s.ClosingHour, &s.SlotDurationMinutes)
	return s, err
}

func (r *Repository) UpsertSettings(ctx context.Context, s Settings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clubs (id, name, timezone, opening_hour, closing_hour, slot_duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			opening_hour = EXCLUDED.opening_hour,
			closing_hour = EXCLUDED.closing_hour,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			updated_at = now()
	`, s.ClubID, s.Name, s.Timezone, s.OpeningHour, s.ClosingHour, s.SlotDurationMinutes)
	return err
}

type Court struct {
	ID        string    `json:"id"`
	ClubID    string    `json:"club_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Repository) CreateCourt(ctx context.Context, clubID, name string, isActive bool) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO courts (club_id, name, is_active)
		VALUES ($1, $2, $3)
		RETURNING id::text
	`, clubID, name, isActive).Scan(&id)
	return id, err
}

func (r *Repository) ListCourts(ctx context.Context, clubID string) ([]Court, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, club_id::text, name, is_active, created_at
		FROM courts
		WHERE club_id = $1
		ORDER BY created_at ASC
	`, clubID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Court, error) {
		var c Court
		err := row.Scan(&c.ID, &c.ClubID, &c.Name, &c.IsActive, &c.CreatedAt)
		return c, err
	})
}

// CourtInClub reports whether courtID exists and belongs to clubID.
func (r *Repository) CourtInClub(ctx context.Context, clubID, courtID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM courts WHERE id = $1 AND club_id = $2)
	`, courtID, clubID).Scan(&ok)
	return ok, err
}

type BlockedPeriod struct {
	ID        string    `json:"id"`
	ClubID    string    `json:"club_id"`
	CourtID   string    `json:"court_id,omitempty"`
	StartDate time.Time `json:"-"`
	EndDate   time.Time `json:"-"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Repository) CreateBlockedPeriod(ctx context.Context, p BlockedPeriod) (string, error) {
	id := uuid.NewString()
	var courtID any
	if p.CourtID != "" {
		courtID = p.CourtID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_periods (id, club_id, court_id, start_date, end_date, reason)
		VALUES ($1, $2, $3, $4::date, $5::date, $6)
	`, id, p.ClubID, courtID, p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly), p.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListBlockedPeriods returns periods ordered by start date, then creation. A zero from or to
// leaves that side unbounded.
func (r *Repository) ListBlockedPeriods(ctx context.Context, clubID string, from, to time.Time) ([]BlockedPeriod, error) {
	var fromArg, toArg any
	if !from.IsZero() {
		fromArg = from.Format(time.DateOnly)
	}
	if !to.IsZero() {
		toArg = to.Format(time.DateOnly)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, club_id::text, COALESCE(court_id::text, ''), start_date, end_date, reason, created_at
		FROM blocked_periods
		WHERE club_id = $1
			AND ($2::date IS NULL OR end_date >= $2::date)
			AND ($3::date IS NULL OR start_date <= $3::date)
		ORDER BY start_date ASC, created_at ASC
	`, clubID, fromArg, toArg)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BlockedPeriod, error) {
		var p BlockedPeriod
		err := row.Scan(&p.ID, &p.ClubID, &p.CourtID, &p.StartDate, &p.EndDate, &p.Reason, &p.CreatedAt)
		return p, err
	})
}

func (r *Repository) DeleteBlockedPeriod(ctx context.Context, clubID, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_periods WHERE id = $1 AND club_id = $2
	`, id, clubID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type Course struct {
	ID              string    `json:"id"`
	ClubID          string    `json:"club_id"`
	Name            string    `json:"name"`
	PricingMode     string    `json:"pricing_mode"`
	MaxParticipants int       `json:"max_participants"`
	ConfirmedCount  int       `json:"confirmed_count"`
	CreatedAt       time.Time `json:"created_at"`
}

const courseColumns = `id::text, club_id::text, name, pricing_mode, max_participants, confirmed_count, created_at`

func scanCourse(row pgx.Row) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.ClubID, &c.Name, &c.PricingMode, &c.MaxParticipants, &c.ConfirmedCount, &c.CreatedAt)
	return c, err
}

func (r *Repository) CreateCourse(ctx context.Context, c Course) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO courses (id, club_id, name, pricing_mode, max_participants)
		VALUES ($1, $2, $3, $4, $5)
	`, id, c.ClubID, c.Name, c.PricingMode, c.MaxParticipants)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) GetCourse(ctx context.Context, clubID, courseID string) (Course, error) {
	return scanCourse(r.pool.QueryRow(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE id = $1 AND club_id = $2
	`, courseID, clubID))
}

func (r *Repository) ListCourses(ctx context.Context, clubID string) ([]Course, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE club_id = $1
		ORDER BY created_at ASC
	`, clubID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Course, error) {
		return scanCourse(row)
	})
}

// AdjustCourseConfirmed changes a full_course course's confirmed count by delta. It returns
// pgx.ErrNoRows when the change would overfill the course or drop below zero.
func (r *Repository) AdjustCourseConfirmed(ctx context.Context, courseID string, delta int) (Course, error) {
	return scanCourse(r.pool.QueryRow(ctx, `
		UPDATE courses
		SET confirmed_count = confirmed_count + $2
		WHERE id = $1
			AND pricing_mode = 'full_course'
			AND confirmed_count + $2 >= 0
			AND (max_participants = 0 OR confirmed_count + $2 <= max_participants)
		RETURNING `+courseColumns,
		courseID, delta))
}

type Session struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	CourtID         string    `json:"court_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MaxParticipants int       `json:"max_participants"`
	BookedCount     int       `json:"booked_count"`
}

const sessionColumns = `id::text, course_id::text, court_id::text, start_time, end_time, max_participants, booked_count`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.CourseID, &s.CourtID, &s.StartTime, &s.EndTime, &s.MaxParticipants, &s.BookedCount)
	return s, err
}

func (r *Repository) CreateSession(ctx context.Context, s Session) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO course_sessions (id, course_id, court_id, start_time, end_time, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, s.CourseID, s.CourtID, s.StartTime, s.EndTime, s.MaxParticipants)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListSessions(ctx context.Context, courseID string) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM course_sessions
		WHERE course_id = $1
		ORDER BY start_time ASC
	`, courseID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Session, error) {
		return scanSession(row)
	})
}

// AdjustSessionBooked is the per-session counterpart of AdjustCourseConfirmed.
func (r *Repository) AdjustSessionBooked(ctx context.Context, courseID, sessionID string, delta int) (Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		UPDATE course_sessions
		SET booked_count = booked_count + $3
		WHERE id = $2
			AND course_id = $1
			AND booked_count + $3 >= 0
			AND (max_participants = 0 OR booked_count + $3 <= max_participants)
		RETURNING `+sessionColumns,
		courseID, sessionID, delta))
}
