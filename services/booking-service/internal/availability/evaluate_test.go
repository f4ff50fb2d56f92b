package availability

import (
	"reflect"
	"testing"
	"time"
	_ "time/tzdata"
)

func baseRequest() Request {
	return Request{
		Date:    time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
		CourtID: "court-1",
		Window:  OperatingWindow{StartHour: 8, EndHour: 12, SlotDurationMinutes: 60},
	}
}

func at(h, m int) time.Time {
	return time.Date(2026, 2, 9, h, m, 0, 0, time.UTC)
}

func reasons(vs []Verdict) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v.Bookable {
			out = append(out, "ok")
			continue
		}
		out = append(out, v.BlockedReason)
	}
	return out
}

func assertReasons(t *testing.T, vs []Verdict, want ...string) {
	t.Helper()
	got := reasons(vs)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEvaluate_AllOpen(t *testing.T) {
	vs := Evaluate(baseRequest())
	assertReasons(t, vs, "ok", "ok", "ok", "ok")
	if !vs[0].Start.Equal(at(8, 0)) || !vs[0].End.Equal(at(9, 0)) {
		t.Fatalf("unexpected first slot bounds: %s-%s", vs[0].Start, vs[0].End)
	}
}

func TestEvaluate_MisconfiguredWindow(t *testing.T) {
	req := baseRequest()
	req.Window.SlotDurationMinutes = 0
	if vs := Evaluate(req); len(vs) != 0 {
		t.Fatalf("expected no verdicts, got %d", len(vs))
	}
}

func TestEvaluate_BlackoutWinsOverEverything(t *testing.T) {
	req := baseRequest()
	req.BlockedPeriods = []BlockedPeriod{
		{ID: "later", StartDate: day(2026, 2, 9), EndDate: day(2026, 2, 9), Reason: "league night"},
		{ID: "earlier", StartDate: day(2026, 2, 1), EndDate: day(2026, 2, 28), Reason: "maintenance"},
	}
	req.Bookings = []Booking{{CourtID: "court-1", StartTime: at(8, 0), EndTime: at(9, 0), Status: StatusActive}}
	// Sorted by start date, so the February-wide period is the first match.
	assertReasons(t, Evaluate(req), "maintenance", "maintenance", "maintenance", "maintenance")
}

func TestEvaluate_BlackoutWithoutReason(t *testing.T) {
	req := baseRequest()
	req.BlockedPeriods = []BlockedPeriod{{StartDate: day(2026, 2, 9), EndDate: day(2026, 2, 9)}}
	assertReasons(t, Evaluate(req), ReasonBlocked, ReasonBlocked, ReasonBlocked, ReasonBlocked)
}

func TestEvaluate_OtherCourtBlackoutIgnored(t *testing.T) {
	req := baseRequest()
	req.BlockedPeriods = []BlockedPeriod{{CourtID: "court-9", StartDate: day(2026, 2, 9), EndDate: day(2026, 2, 9), Reason: "x"}}
	assertReasons(t, Evaluate(req), "ok", "ok", "ok", "ok")
}

func TestEvaluate_Bookings(t *testing.T) {
	req := baseRequest()
	req.Bookings = []Booking{
		{ID: "b1", CourtID: "court-1", StartTime: at(8, 30), EndTime: at(9, 30), Status: StatusAwaitingPayment},
		{ID: "b2", CourtID: "court-1", StartTime: at(11, 0), EndTime: at(12, 0), Status: StatusCancelled},
		{ID: "b3", CourtID: "court-2", StartTime: at(10, 0), EndTime: at(11, 0), Status: StatusActive},
		{ID: "b4", CourtID: "court-1", StartTime: at(10, 0), EndTime: at(10, 0), Status: StatusActive},
	}
	// b1 straddles 08:00 and 09:00; b2 is cancelled; b3 is another court; b4 is empty.
	assertReasons(t, Evaluate(req), ReasonTaken, ReasonTaken, "ok", "ok")
}

func TestEvaluate_AdjacentBookingDoesNotBlock(t *testing.T) {
	req := baseRequest()
	req.Bookings = []Booking{{CourtID: "court-1", StartTime: at(7, 0), EndTime: at(8, 0), Status: StatusActive}}
	assertReasons(t, Evaluate(req), "ok", "ok", "ok", "ok")
}

func TestEvaluate_PastSlots(t *testing.T) {
	req := baseRequest()
	req.Now = at(9, 15)
	req.Bookings = []Booking{{CourtID: "court-1", StartTime: at(8, 0), EndTime: at(9, 0), Status: StatusActive}}
	assertReasons(t, Evaluate(req), ReasonPast, ReasonPast, "ok", "ok")
}

func TestEvaluate_CourseSessionsOccupyCourt(t *testing.T) {
	req := baseRequest()
	req.Sessions = []CourseSession{
		{ID: "s1", CourtID: "court-1", StartTime: at(10, 0), EndTime: at(11, 30)},
		{ID: "s2", CourtID: "court-3", StartTime: at(8, 0), EndTime: at(9, 0)},
	}
	assertReasons(t, Evaluate(req), "ok", "ok", ReasonCourse, ReasonCourse)
}

func TestEvaluate_CourseCapacity(t *testing.T) {
	req := baseRequest()
	req.Course = &CourseContext{Course: Course{Mode: PricingFullCourse, MaxParticipants: 10, ConfirmedCount: 10}}
	req.Bookings = []Booking{{CourtID: "court-1", StartTime: at(9, 0), EndTime: at(10, 0), Status: StatusActive}}
	assertReasons(t, Evaluate(req), ReasonFull, ReasonTaken, ReasonFull, ReasonFull)

	req.Course.Course.MaxParticipants = 0
	assertReasons(t, Evaluate(req), "ok", ReasonTaken, "ok", "ok")

	req.Course = &CourseContext{Course: Course{Mode: PricingPerSession, MaxParticipants: 5}}
	assertReasons(t, Evaluate(req), ReasonFull, ReasonTaken, ReasonFull, ReasonFull)
}

func TestEvaluate_Idempotent(t *testing.T) {
	req := baseRequest()
	req.Now = at(8, 30)
	req.BlockedPeriods = []BlockedPeriod{
		{CourtID: "court-2", StartDate: day(2026, 2, 9), EndDate: day(2026, 2, 9)},
		{StartDate: day(2026, 2, 10), EndDate: day(2026, 2, 11)},
	}
	req.Bookings = []Booking{{CourtID: "court-1", StartTime: at(10, 0), EndTime: at(11, 0), Status: StatusActive}}
	req.Course = &CourseContext{
		Course:   Course{Mode: PricingPerSession, MaxParticipants: 4},
		Sessions: []CourseSession{{MaxParticipants: 4, BookedCount: 3}},
	}

	first := Evaluate(req)
	second := Evaluate(req)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical verdicts:\n%+v\n%+v", first, second)
	}
	if req.BlockedPeriods[0].CourtID != "court-2" {
		t.Fatal("request blocked periods were reordered")
	}
}

func TestEvaluate_ClubTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	req := baseRequest()
	req.Date = time.Date(2026, 2, 9, 0, 0, 0, 0, loc)
	// 13:00Z is 08:00 local.
	req.Bookings = []Booking{{CourtID: "court-1", StartTime: time.Date(2026, 2, 9, 13, 0, 0, 0, time.UTC), EndTime: time.Date(2026, 2, 9, 14, 0, 0, 0, time.UTC), Status: StatusActive}}
	assertReasons(t, Evaluate(req), ReasonTaken, "ok", "ok", "ok")
}

func romeDay(t *testing.T, month time.Month, day int) Request {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return Request{
		Date:    time.Date(2024, month, day, 0, 0, 0, 0, loc),
		CourtID: "court-1",
		Window:  OperatingWindow{StartHour: 1, EndHour: 5, SlotDurationMinutes: 60},
	}
}

func TestEvaluate_DaylightSavingDays(t *testing.T) {
	tests := []struct {
		name   string
		month  time.Month
		day    int
		labels []string
		spans  []time.Duration
	}{
		{
			name: "spring forward drops the missing hour", month: time.March, day: 31,
			labels: []string{"01:00", "03:00", "04:00"},
			spans:  []time.Duration{time.Hour, time.Hour, time.Hour},
		},
		{
			name: "fall back stretches the repeated hour", month: time.October, day: 27,
			labels: []string{"01:00", "02:00", "03:00", "04:00"},
			spans:  []time.Duration{2 * time.Hour, time.Hour, time.Hour, time.Hour},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := Evaluate(romeDay(t, tt.month, tt.day))
			if len(vs) != len(tt.labels) {
				t.Fatalf("expected %d verdicts, got %d: %+v", len(tt.labels), len(vs), vs)
			}
			for i, v := range vs {
				if v.Slot.Label != tt.labels[i] {
					t.Fatalf("verdict %d label = %q, want %q", i, v.Slot.Label, tt.labels[i])
				}
				if got := v.End.Sub(v.Start); got != tt.spans[i] {
					t.Fatalf("verdict %s spans %s, want %s", v.Slot.Label, got, tt.spans[i])
				}
				if !v.Bookable {
					t.Fatalf("verdict %s not bookable: %s", v.Slot.Label, v.BlockedReason)
				}
				if i > 0 && !vs[i-1].End.Equal(v.Start) {
					t.Fatalf("gap between %s and %s", vs[i-1].Slot.Label, v.Slot.Label)
				}
			}
		})
	}
}
