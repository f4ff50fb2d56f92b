package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clubbook/libs/outbox"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/clubbook/services/booking-service/internal/storage"
)

var errBoom = errors.New("boom")

type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { return nil }

type finalized struct {
	bookingID string
	status    int
	body      []byte
}

type fakeStore struct {
	tx          *fakeTx
	holding     []availability.Booking
	holdingErr  error
	createErr   error
	created     []storage.Booking
	lockedCourt string
	byID        map[string]storage.Booking
	cancelled   []string
	sessions    map[string]string
	idem        map[string]storage.IdempotencyRecord
	finalized   map[string]finalized
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:      map[string]storage.Booking{},
		sessions:  map[string]string{},
		idem:      map[string]storage.IdempotencyRecord{},
		finalized: map[string]finalized{},
	}
}

func (s *fakeStore) Begin(context.Context) (pgx.Tx, error) {
	s.tx = &fakeTx{}
	return s.tx, nil
}

func (s *fakeStore) Pool() storage.Querier { return nil }

func (s *fakeStore) LockCourt(_ context.Context, _ pgx.Tx, courtID string) error {
	s.lockedCourt = courtID
	return nil
}

func (s *fakeStore) ListHolding(context.Context, storage.Querier, string, time.Time, time.Time) ([]availability.Booking, error) {
	return s.holding, s.holdingErr
}

func (s *fakeStore) Create(_ context.Context, _ pgx.Tx, b *storage.Booking) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	b.ID = "booking-1"
	b.Status = availability.StatusAwaitingPayment
	b.CreatedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.created = append(s.created, *b)
	return b.ID, nil
}

func (s *fakeStore) GetForUpdate(_ context.Context, _ pgx.Tx, clubID, bookingID string) (storage.Booking, error) {
	b, ok := s.byID[bookingID]
	if !ok || b.ClubID != clubID {
		return storage.Booking{}, pgx.ErrNoRows
	}
	return b, nil
}

func (s *fakeStore) Cancel(_ context.Context, _ pgx.Tx, bookingID, _ string) (time.Time, error) {
	s.cancelled = append(s.cancelled, bookingID)
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), nil
}

func (s *fakeStore) SetCheckoutSession(_ context.Context, _ pgx.Tx, bookingID, sessionID string) error {
	s.sessions[bookingID] = sessionID
	return nil
}

func (s *fakeStore) ListByClub(_ context.Context, clubID string, _ int) ([]storage.Booking, error) {
	var out []storage.Booking
	for _, b := range s.byID {
		if b.ClubID == clubID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) LockIdempotencyKey(_ context.Context, _ pgx.Tx, clubID, key string) (storage.IdempotencyRecord, bool, error) {
	rec, ok := s.idem[clubID+"/"+key]
	return rec, ok, nil
}

func (s *fakeStore) FinalizeIdempotency(_ context.Context, _ pgx.Tx, clubID, key, bookingID string, statusCode int, response []byte) error {
	s.finalized[clubID+"/"+key] = finalized{bookingID: bookingID, status: statusCode, body: response}
	return nil
}

type fakeClubs struct {
	club        storage.Club
	clubErr     error
	courts      map[string]storage.Court
	periods     []availability.BlockedPeriod
	periodsErr  error
	sessions    []availability.CourseSession
	sessionsErr error
	course      availability.Course
	courseErr   error
}

func (c *fakeClubs) GetClub(_ context.Context, clubID string) (storage.Club, error) {
	if c.clubErr != nil {
		return storage.Club{}, c.clubErr
	}
	if clubID != c.club.ID {
		return storage.Club{}, pgx.ErrNoRows
	}
	return c.club, nil
}

func (c *fakeClubs) GetCourt(_ context.Context, courtID string) (storage.Court, error) {
	court, ok := c.courts[courtID]
	if !ok {
		return storage.Court{}, pgx.ErrNoRows
	}
	return court, nil
}

func (c *fakeClubs) ListBlockedPeriods(context.Context, string, time.Time, time.Time) ([]availability.BlockedPeriod, error) {
	return c.periods, c.periodsErr
}

func (c *fakeClubs) ListCourtSessions(context.Context, string, time.Time, time.Time) ([]availability.CourseSession, error) {
	return c.sessions, c.sessionsErr
}

func (c *fakeClubs) GetCourse(_ context.Context, courseID string) (availability.Course, error) {
	if c.courseErr != nil {
		return availability.Course{}, c.courseErr
	}
	if courseID != c.course.ID {
		return availability.Course{}, pgx.ErrNoRows
	}
	return c.course, nil
}

func (c *fakeClubs) ListCourseSessions(context.Context, string) ([]availability.CourseSession, error) {
	return c.sessions, c.sessionsErr
}

type fakeEvents struct{ got []outbox.Event }

func (f *fakeEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.got = append(f.got, evt)
	return nil
}

type fakeCheckout struct {
	err error
	got []payments.CheckoutRequest
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (payments.Checkout, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return payments.Checkout{}, f.err
	}
	return payments.Checkout{SessionID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

type fixture struct {
	store  *fakeStore
	clubs  *fakeClubs
	events *fakeEvents
	h      *BookingHandler
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		store: newFakeStore(),
		clubs: &fakeClubs{
			club: storage.Club{
				ID:       "club-1",
				Timezone: "UTC",
				Window:   availability.OperatingWindow{StartHour: 8, EndHour: 12, SlotDurationMinutes: 60},
			},
			courts: map[string]storage.Court{
				"court-1": {ID: "court-1", ClubID: "club-1", Name: "Centre", IsActive: true},
				"court-x": {ID: "court-x", ClubID: "club-2", Name: "Elsewhere", IsActive: true},
				"court-off": {ID: "court-off", ClubID: "club-1", Name: "Closed", IsActive: false},
			},
		},
		events: &fakeEvents{},
	}
	f.h = NewBookingHandler(f.store, f.clubs, f.events, slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
	f.h.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

func at(day, h int) time.Time {
	return time.Date(2026, 3, day, h, 0, 0, 0, time.UTC)
}

func decodeSlots(t *testing.T, rec *httptest.ResponseRecorder) []slotItem {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var items []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return items
}

func slotStates(items []slotItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Available {
			out = append(out, "ok")
			continue
		}
		out = append(out, it.BlockedReason)
	}
	return out
}

func getSlots(f *fixture, query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.h.Slots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?"+query, nil))
	return rec
}

func TestSlots_Verdicts(t *testing.T) {
	f := newFixture(Options{})
	f.store.holding = []availability.Booking{{ID: "b", CourtID: "court-1", StartTime: at(2, 9), EndTime: at(2, 10), Status: availability.StatusActive}}
	f.clubs.sessions = []availability.CourseSession{{ID: "s", CourtID: "court-1", StartTime: at(2, 11), EndTime: at(2, 12)}}

	items := decodeSlots(t, getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-02"))
	got := strings.Join(slotStates(items), ",")
	if got != "ok,taken,ok,course" {
		t.Fatalf("unexpected states %s", got)
	}
	if items[0].Label != "08:00" || items[0].StartTime != "2026-03-02T08:00:00Z" || items[0].EndTime != "2026-03-02T09:00:00Z" {
		t.Fatalf("unexpected first slot %+v", items[0])
	}
}

func TestSlots_FailOpenOnLoadErrors(t *testing.T) {
	f := newFixture(Options{})
	f.store.holdingErr = errBoom
	f.clubs.periodsErr = errBoom
	f.clubs.sessionsErr = errBoom

	items := decodeSlots(t, getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-02"))
	if got := strings.Join(slotStates(items), ","); got != "ok,ok,ok,ok" {
		t.Fatalf("expected all slots open, got %s", got)
	}
}

func TestSlots_BlackoutAndPast(t *testing.T) {
	f := newFixture(Options{})
	f.clubs.periods = []availability.BlockedPeriod{{ID: "p", StartDate: at(1, 0), EndDate: at(1, 0), Reason: "club day"}}

	items := decodeSlots(t, getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-01"))
	if got := strings.Join(slotStates(items), ","); got != "club day,club day,club day,club day" {
		t.Fatalf("expected blackout on every slot, got %s", got)
	}

	f.clubs.periods = nil
	f.h.now = func() time.Time { return at(1, 10) }
	items = decodeSlots(t, getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-01"))
	if got := strings.Join(slotStates(items), ","); got != "past,past,ok,ok" {
		t.Fatalf("unexpected states %s", got)
	}
}

func TestSlots_MisconfiguredWindowIsEmptyList(t *testing.T) {
	f := newFixture(Options{})
	f.clubs.club.Window = availability.OperatingWindow{StartHour: 18, EndHour: 9, SlotDurationMinutes: 60}

	rec := getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-02")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected 200 [], got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSlots_CourseCapacity(t *testing.T) {
	f := newFixture(Options{})
	f.clubs.course = availability.Course{ID: "course-1", Mode: availability.PricingFullCourse, MaxParticipants: 8, ConfirmedCount: 8}

	items := decodeSlots(t, getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-02&course_id=course-1"))
	if got := strings.Join(slotStates(items), ","); got != "full,full,full,full" {
		t.Fatalf("expected full course, got %s", got)
	}

	// An unreadable course does not hide the court's slots.
	f.clubs.courseErr = errBoom
	items = decodeSlots(t, getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-02&course_id=course-1"))
	if got := strings.Join(slotStates(items), ","); got != "ok,ok,ok,ok" {
		t.Fatalf("expected open slots, got %s", got)
	}
}

func TestSlots_ClubTimezone(t *testing.T) {
	f := newFixture(Options{})
	f.clubs.club.Timezone = "Asia/Dhaka"

	items := decodeSlots(t, getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-02"))
	if len(items) != 4 || items[0].StartTime != "2026-03-02T08:00:00+06:00" {
		t.Fatalf("expected local slot times, got %+v", items)
	}
}

func TestSlots_RequestErrors(t *testing.T) {
	f := newFixture(Options{})
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing court", "club_id=club-1&date=2026-03-02", http.StatusBadRequest},
		{"bad date", "club_id=club-1&court_id=court-1&date=03/02/2026", http.StatusBadRequest},
		{"unknown club", "club_id=nope&court_id=court-1&date=2026-03-02", http.StatusNotFound},
		{"court of another club", "club_id=club-1&court_id=court-x&date=2026-03-02", http.StatusNotFound},
		{"unknown court", "club_id=club-1&court_id=court-9&date=2026-03-02", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := getSlots(f, tt.query); rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	f.clubs.clubErr = errBoom
	if rec := getSlots(f, "club_id=club-1&court_id=court-1&date=2026-03-02"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when club settings cannot load, got %d", rec.Code)
	}
}

func TestSlots_InactiveCourt(t *testing.T) {
	f := newFixture(Options{})
	rec := getSlots(f, "club_id=club-1&court_id=court-off&date=2026-03-02")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected 200 [], got %d %q", rec.Code, rec.Body.String())
	}
}

func TestCourseAvailability(t *testing.T) {
	f := newFixture(Options{})
	f.clubs.course = availability.Course{ID: "course-1", Mode: availability.PricingPerSession, MaxParticipants: 4}
	f.clubs.sessions = []availability.CourseSession{
		{ID: "s1", MaxParticipants: 4, BookedCount: 4},
		{ID: "s2", MaxParticipants: 4, BookedCount: 1},
	}

	get := func(courseID string) (*httptest.ResponseRecorder, courseAvailabilityResponse) {
		rec := httptest.NewRecorder()
		f.h.CourseAvailability(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/courses/availability?course_id="+courseID, nil))
		var resp courseAvailabilityResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return rec, resp
	}

	rec, resp := get("course-1")
	if rec.Code != http.StatusOK || !resp.Bookable || resp.SessionCount != 2 {
		t.Fatalf("expected bookable course, got %d %+v", rec.Code, resp)
	}

	// Sessions that cannot be read count as none, which leaves a per-session course unbookable.
	f.clubs.sessionsErr = errBoom
	rec, resp = get("course-1")
	if rec.Code != http.StatusOK || resp.Bookable {
		t.Fatalf("expected unbookable course, got %d %+v", rec.Code, resp)
	}

	if rec, _ := get("missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec, _ := get(""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func postBooking(f *fixture, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	f.h.Create(rec, req)
	return rec
}

func bookingBody(start, end string) string {
	return `{"club_id":"club-1","court_id":"court-1","customer_name":"Ana","customer_email":"ana@example.com",` +
		`"start_time":"` + start + `","end_time":"` + end + `"}`
}

func TestCreate_HoldsSlot(t *testing.T) {
	f := newFixture(Options{})
	rec := postBooking(f, bookingBody("2026-03-02T09:00:00Z", "2026-03-02T11:00:00Z"), "key-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createBookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BookingID != "booking-1" || resp.Status != "awaiting_payment" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.HoldExpiresAt != "2026-03-01T08:20:00Z" {
		t.Fatalf("unexpected hold expiry %s", resp.HoldExpiresAt)
	}
	if resp.CheckoutURL != "" {
		t.Fatal("expected no checkout url without a payment provider")
	}
	if f.store.lockedCourt != "court-1" {
		t.Fatal("expected the court to be locked")
	}
	if !f.store.tx.committed {
		t.Fatal("expected commit")
	}
	if len(f.events.got) != 1 || f.events.got[0].EventType != events.BookingCreated {
		t.Fatalf("expected %s event, got %+v", events.BookingCreated, f.events.got)
	}
	if fin := f.store.finalized["club-1/key-1"]; fin.status != http.StatusCreated || fin.bookingID != "booking-1" {
		t.Fatalf("expected finalized idempotency record, got %+v", fin)
	}
}

func TestCreate_WithCheckout(t *testing.T) {
	co := &fakeCheckout{}
	f := newFixture(Options{Checkout: co, HoldTTL: 10 * time.Minute})

	rec := postBooking(f, bookingBody("2026-03-02T08:00:00Z", "2026-03-02T09:00:00Z"), "key-2")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createBookingResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.CheckoutURL == "" || f.store.sessions["booking-1"] != "cs_test_1" {
		t.Fatalf("expected checkout session to be stored, got %+v %v", resp, f.store.sessions)
	}
	if resp.HoldExpiresAt != "2026-03-01T08:10:00Z" {
		t.Fatalf("unexpected hold expiry %s", resp.HoldExpiresAt)
	}
	if len(co.got) != 1 || co.got[0].IdempotencyKey != "key-2" || co.got[0].CustomerEmail != "ana@example.com" {
		t.Fatalf("unexpected checkout request %+v", co.got)
	}
}

func TestCreate_CheckoutFailureRollsBack(t *testing.T) {
	f := newFixture(Options{Checkout: &fakeCheckout{err: errBoom}})
	rec := postBooking(f, bookingBody("2026-03-02T08:00:00Z", "2026-03-02T09:00:00Z"), "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if f.store.tx.committed {
		t.Fatal("hold must not be committed without a checkout session")
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		start    string
		end      string
		want     int
		contains string
	}{
		{
			name: "slot taken",
			setup: func(f *fixture) {
				f.store.holding = []availability.Booking{{CourtID: "court-1", StartTime: at(2, 9), EndTime: at(2, 10), Status: availability.StatusAwaitingPayment}}
			},
			start: "2026-03-02T09:00:00Z", end: "2026-03-02T10:00:00Z",
			want: http.StatusConflict, contains: "already booked",
		},
		{
			name: "blocked date",
			setup: func(f *fixture) {
				f.clubs.periods = []availability.BlockedPeriod{{StartDate: at(2, 0), EndDate: at(2, 0), Reason: "resurfacing"}}
			},
			start: "2026-03-02T09:00:00Z", end: "2026-03-02T10:00:00Z",
			want: http.StatusConflict, contains: "resurfacing",
		},
		{
			name: "course session on court",
			setup: func(f *fixture) {
				f.clubs.sessions = []availability.CourseSession{{CourtID: "court-1", StartTime: at(2, 10), EndTime: at(2, 11)}}
			},
			start: "2026-03-02T10:00:00Z", end: "2026-03-02T11:00:00Z",
			want: http.StatusConflict, contains: "course",
		},
		{
			name:  "misaligned",
			setup: func(*fixture) {},
			start: "2026-03-02T09:30:00Z", end: "2026-03-02T10:30:00Z",
			want: http.StatusUnprocessableEntity, contains: "slots",
		},
		{
			name:  "after closing",
			setup: func(*fixture) {},
			start: "2026-03-02T12:00:00Z", end: "2026-03-02T13:00:00Z",
			want: http.StatusUnprocessableEntity, contains: "slots",
		},
		{
			name:  "in the past",
			setup: func(*fixture) {},
			start: "2026-02-28T09:00:00Z", end: "2026-02-28T10:00:00Z",
			want: http.StatusUnprocessableEntity, contains: "past",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Options{})
			tt.setup(f)
			rec := postBooking(f, bookingBody(tt.start, tt.end), "key-r")
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Fatalf("expected body to mention %q, got %s", tt.contains, rec.Body.String())
			}
			if len(f.store.created) != 0 || len(f.events.got) != 0 {
				t.Fatal("rejected booking must not be stored")
			}
			if fin := f.store.finalized["club-1/key-r"]; fin.status != tt.want {
				t.Fatalf("expected rejection recorded against key, got %+v", fin)
			}
		})
	}
}

func TestCreate_CourseCapacityDoesNotGateCourts(t *testing.T) {
	f := newFixture(Options{})
	f.clubs.course = availability.Course{ID: "course-1", Mode: availability.PricingFullCourse, MaxParticipants: 8, ConfirmedCount: 8}
	f.clubs.sessions = []availability.CourseSession{{ID: "s", CourtID: "court-1", StartTime: at(2, 10), EndTime: at(2, 11), MaxParticipants: 8, BookedCount: 8}}

	rec := postBooking(f, bookingBody("2026-03-02T08:00:00Z", "2026-03-02T10:00:00Z"), "key-c")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 next to a full course, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.store.created) != 1 {
		t.Fatalf("expected one stored booking, got %d", len(f.store.created))
	}
}

func TestCreate_FailsClosedOnLoadErrors(t *testing.T) {
	for name, setup := range map[string]func(f *fixture){
		"blocked periods": func(f *fixture) { f.clubs.periodsErr = errBoom },
		"bookings":        func(f *fixture) { f.store.holdingErr = errBoom },
		"course sessions": func(f *fixture) { f.clubs.sessionsErr = errBoom },
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(Options{})
			setup(f)
			rec := postBooking(f, bookingBody("2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"), "key-f")
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", rec.Code)
			}
			if len(f.store.created) != 0 {
				t.Fatal("booking must not be created")
			}
			if _, ok := f.store.finalized["club-1/key-f"]; ok {
				t.Fatal("dependency errors must stay retryable")
			}
		})
	}
}

func TestCreate_ExclusionViolationIsConflict(t *testing.T) {
	f := newFixture(Options{})
	f.store.createErr = &pgconn.PgError{Code: "23P01"}
	rec := postBooking(f, bookingBody("2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreate_IdempotentReplay(t *testing.T) {
	f := newFixture(Options{})
	f.store.idem["club-1/key-3"] = storage.IdempotencyRecord{
		ClubID:          "club-1",
		IdempotencyKey:  "key-3",
		BookingID:       "booking-prev",
		StatusCode:      http.StatusCreated,
		ResponsePayload: []byte(`{"booking_id":"booking-prev","status":"awaiting_payment"}`),
	}
	rec := postBooking(f, bookingBody("2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"), "key-3")
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), "booking-prev") {
		t.Fatalf("expected replayed response, got %d %s", rec.Code, rec.Body.String())
	}
	if len(f.store.created) != 0 {
		t.Fatal("replay must not create a second booking")
	}
}

func TestCreate_BadRequests(t *testing.T) {
	f := newFixture(Options{})
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"missing name", `{"club_id":"club-1","court_id":"court-1","start_time":"2026-03-02T09:00:00Z","end_time":"2026-03-02T10:00:00Z"}`, http.StatusBadRequest},
		{"bad start", bookingBody("tomorrow", "2026-03-02T10:00:00Z"), http.StatusBadRequest},
		{"inverted", bookingBody("2026-03-02T10:00:00Z", "2026-03-02T09:00:00Z"), http.StatusBadRequest},
		{"inactive court", strings.Replace(bookingBody("2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"), "court-1", "court-off", 1), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := postBooking(f, tt.body, ""); rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func postCancel(f *fixture, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.h.Cancel(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings/cancel", strings.NewReader(body)))
	return rec
}

func TestCancel(t *testing.T) {
	f := newFixture(Options{})
	f.store.byID["b1"] = storage.Booking{ID: "b1", ClubID: "club-1", CourtID: "court-1", StartTime: at(2, 9), EndTime: at(2, 10), Status: availability.StatusActive}

	rec := postCancel(f, `{"club_id":"club-1","booking_id":"b1","reason":"rain"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp cancelBookingResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "cancelled" || resp.CancelledAt != "2026-03-01T09:00:00Z" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(f.events.got) != 1 || f.events.got[0].EventType != events.BookingCancelled {
		t.Fatalf("expected cancellation event, got %+v", f.events.got)
	}
	if !strings.Contains(string(f.events.got[0].Payload), `"reason":"rain"`) {
		t.Fatalf("expected reason in payload, got %s", f.events.got[0].Payload)
	}
}

func TestCancel_AlreadyCancelledIsIdempotent(t *testing.T) {
	f := newFixture(Options{})
	cancelledAt := at(1, 7)
	f.store.byID["b1"] = storage.Booking{ID: "b1", ClubID: "club-1", Status: availability.StatusCancelled, CancelledAt: &cancelledAt}

	rec := postCancel(f, `{"club_id":"club-1","booking_id":"b1"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "2026-03-01T07:00:00Z") {
		t.Fatalf("expected original cancellation, got %d %s", rec.Code, rec.Body.String())
	}
	if len(f.store.cancelled) != 0 || len(f.events.got) != 0 {
		t.Fatal("second cancel must be a no-op")
	}
}

func TestCancel_Errors(t *testing.T) {
	f := newFixture(Options{})
	f.store.byID["b1"] = storage.Booking{ID: "b1", ClubID: "club-1", Status: availability.StatusActive}

	if rec := postCancel(f, `{"club_id":"club-2","booking_id":"b1"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another club, got %d", rec.Code)
	}
	if rec := postCancel(f, `{"club_id":"club-1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestList(t *testing.T) {
	f := newFixture(Options{})
	activated := at(1, 8)
	f.store.byID["b1"] = storage.Booking{ID: "b1", ClubID: "club-1", CourtID: "court-1", CustomerName: "Ana", StartTime: at(2, 9), EndTime: at(2, 10), Status: availability.StatusActive, ActivatedAt: &activated}
	f.store.byID["b2"] = storage.Booking{ID: "b2", ClubID: "club-2", Status: availability.StatusActive}

	rec := httptest.NewRecorder()
	f.h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings?club_id=club-1&limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []listBookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].BookingID != "b1" || items[0].ActivatedAt != "2026-03-01T08:00:00Z" {
		t.Fatalf("unexpected items %+v", items)
	}

	rec = httptest.NewRecorder()
	f.h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without club, got %d", rec.Code)
	}
}
