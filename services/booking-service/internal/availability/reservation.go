package availability

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRange   = errors.New("end time must be after start time")
	ErrOutsideHours   = errors.New("requested time does not match the club's slots")
	ErrBlackout       = errors.New("requested date is blocked")
	ErrInPast         = errors.New("requested time is in the past")
	ErrSlotTaken      = errors.New("requested time is already booked")
	ErrCourseConflict = errors.New("court is reserved for a course session")
	ErrCourseFull     = errors.New("course is full")
)

// CheckReservation is the write-side counterpart of Evaluate. The booking [start,end) must cover
// one or more consecutive generated slots, and every covered slot must be bookable. Unlike the
// display path it never degrades: any mismatch is an error.
func CheckReservation(req Request, start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	duration := req.Window.Duration()
	if duration <= 0 {
		return ErrOutsideHours
	}

	verdicts := Evaluate(req)
	expected := start
	covered := 0
	for _, v := range verdicts {
		if v.Start.Before(start) || v.End.After(end) {
			continue
		}
		if !v.Start.Equal(expected) {
			return ErrOutsideHours
		}
		if !v.Bookable {
			return reasonError(v.BlockedReason)
		}
		expected = v.End
		covered++
	}
	if covered == 0 || !expected.Equal(end) {
		return ErrOutsideHours
	}
	return nil
}

func reasonError(reason string) error {
	switch reason {
	case ReasonPast:
		return ErrInPast
	case ReasonTaken:
		return ErrSlotTaken
	case ReasonCourse:
		return ErrCourseConflict
	case ReasonFull:
		return ErrCourseFull
	default:
		return fmt.Errorf("%w: %s", ErrBlackout, reason)
	}
}
