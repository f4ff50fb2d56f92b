package availability

import "time"

type BookingStatus string

const (
	StatusAwaitingPayment BookingStatus = "awaiting_payment"
	StatusActive          BookingStatus = "active"
	StatusCancelled       BookingStatus = "cancelled"
)

// Booking is the engine's read-only view of a reservation.
type Booking struct {
	ID        string
	CourtID   string
	StartTime time.Time
	EndTime   time.Time
	Status    BookingStatus
}

// Holds reports whether the booking occupies its court. Pending holds block the slot until they
// are paid, cancelled, or reaped.
func (b Booking) Holds() bool {
	return b.Status == StatusActive || b.Status == StatusAwaitingPayment
}

const (
	ReasonBlocked = "blocked"
	ReasonPast    = "past"
	ReasonTaken   = "taken"
	ReasonCourse  = "course"
	ReasonFull    = "full"
)

type CourseContext struct {
	Course   Course
	Sessions []CourseSession
}

// Request is a snapshot of everything needed to judge one court on one day. Date supplies both
// the calendar day and the club's location. A zero Now disables past-slot marking.
type Request struct {
	Date           time.Time
	CourtID        string
	Window         OperatingWindow
	BlockedPeriods []BlockedPeriod
	Bookings       []Booking
	Sessions       []CourseSession
	Course         *CourseContext
	Now            time.Time
}

type Verdict struct {
	Slot          TimeSlot
	Start         time.Time
	End           time.Time
	Bookable      bool
	BlockedReason string
}

// Evaluate produces one verdict per generated slot. It reads nothing but req, so repeated calls
// with the same snapshot return identical results.
//
// Slots are wall-clock times in the day's location. A start skipped by a daylight-saving gap
// yields no verdict, and each End is the wall clock of the following boundary, so consecutive
// verdicts always meet.
func Evaluate(req Request) []Verdict {
	slots := req.Window.Slots()
	if len(slots) == 0 {
		return nil
	}

	blackoutReason, blackedOut := blackoutFor(req)
	busy := holdingIntervals(req.CourtID, req.Bookings)
	occupied := sessionIntervals(req.CourtID, req.Sessions)
	courseFull := req.Course != nil && !CourseBookable(req.Course.Course, req.Course.Sessions)

	verdicts := make([]Verdict, 0, len(slots))
	for _, slot := range slots {
		if !slot.Exists(req.Date) {
			continue
		}
		start := slot.On(req.Date)
		end := slot.next(req.Window.SlotDurationMinutes).On(req.Date)
		v := Verdict{Slot: slot, Start: start, End: end}

		switch {
		case blackedOut:
			v.BlockedReason = blackoutReason
		case !req.Now.IsZero() && start.Before(req.Now):
			v.BlockedReason = ReasonPast
		case overlapsAny(start, end, busy):
			v.BlockedReason = ReasonTaken
		case overlapsAny(start, end, occupied):
			v.BlockedReason = ReasonCourse
		case courseFull:
			v.BlockedReason = ReasonFull
		default:
			v.Bookable = true
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}

func blackoutFor(req Request) (string, bool) {
	p, ok := ResolveBlackout(req.Date, req.CourtID, SortBlockedPeriods(req.BlockedPeriods))
	if !ok {
		return "", false
	}
	if p.Reason == "" {
		return ReasonBlocked, true
	}
	return p.Reason, true
}

func holdingIntervals(courtID string, bookings []Booking) []Interval {
	var out []Interval
	for _, b := range bookings {
		if b.CourtID != courtID || !b.Holds() {
			continue
		}
		if !b.EndTime.After(b.StartTime) {
			continue
		}
		out = append(out, Interval{Start: b.StartTime, End: b.EndTime})
	}
	return out
}

func sessionIntervals(courtID string, sessions []CourseSession) []Interval {
	var out []Interval
	for _, s := range sessions {
		if s.CourtID != courtID || !s.EndTime.After(s.StartTime) {
			continue
		}
		out = append(out, Interval{Start: s.StartTime, End: s.EndTime})
	}
	return out
}
