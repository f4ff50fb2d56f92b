package availability

import "time"

type PricingMode string

const (
	PricingFullCourse PricingMode = "full_course"
	PricingPerSession PricingMode = "per_session"
)

func (m PricingMode) Valid() bool {
	return m == PricingFullCourse || m == PricingPerSession
}

// Course is a multi-session offering. ConfirmedCount is only meaningful for full_course
// pricing; per_session courses track fill on each CourseSession.
type Course struct {
	ID              string
	Mode            PricingMode
	MaxParticipants int
	ConfirmedCount  int
}

type CourseSession struct {
	ID              string
	CourseID        string
	CourtID         string
	StartTime       time.Time
	EndTime         time.Time
	MaxParticipants int
	BookedCount     int
}

// Full reports whether the session has no seats left. MaxParticipants of zero means unlimited.
func (s CourseSession) Full() bool {
	return s.MaxParticipants > 0 && s.BookedCount >= s.MaxParticipants
}

// CourseBookable applies the capacity policy for the course's pricing mode.
//
// full_course: bookable while ConfirmedCount < MaxParticipants (zero max is unlimited).
// per_session: bookable while at least one session has room; no sessions means unavailable.
// A session max of zero is treated as unlimited here too, extending the full_course rule.
func CourseBookable(course Course, sessions []CourseSession) bool {
	switch course.Mode {
	case PricingFullCourse:
		if course.MaxParticipants == 0 {
			return true
		}
		return course.ConfirmedCount < course.MaxParticipants
	case PricingPerSession:
		for _, s := range sessions {
			if !s.Full() {
				return true
			}
		}
		return false
	default:
		return false
	}
}
