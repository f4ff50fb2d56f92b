package availability

import (
	"fmt"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// OperatingWindow is a club's daily opening hours and the fixed slot length.
type OperatingWindow struct {
	StartHour           int
	EndHour             int
	SlotDurationMinutes int
}

func (w OperatingWindow) Slots() []TimeSlot {
	return GenerateSlots(w.StartHour, w.EndHour, w.SlotDurationMinutes)
}

func (w OperatingWindow) Duration() time.Duration {
	return time.Duration(w.SlotDurationMinutes) * time.Minute
}

type TimeSlot struct {
	Label         string
	OffsetMinutes int
}

// On returns the slot's wall-clock start on the given calendar day, in the day's location.
func (s TimeSlot) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.OffsetMinutes/60, s.OffsetMinutes%60, 0, 0, day.Location())
}

// Exists reports whether the slot's wall-clock start occurs on day. It is false for a start that
// falls into a daylight-saving gap, which time.Date would otherwise shift forward.
func (s TimeSlot) Exists(day time.Time) bool {
	t := s.On(day)
	y, m, d := day.Date()
	ty, tm, td := t.Date()
	return ty == y && tm == m && td == d && t.Hour()*60+t.Minute() == s.OffsetMinutes
}

// next is the boundary one slot length after s.
func (s TimeSlot) next(durationMinutes int) TimeSlot {
	return TimeSlot{OffsetMinutes: s.OffsetMinutes + durationMinutes}
}

// GenerateSlots returns candidate start times from startHour:00, stepping by durationMinutes
// while the slot still ends at or before endHour:00.
//
// Misconfiguration (non-positive duration, inverted or out-of-range hours) yields no slots.
func GenerateSlots(startHour, endHour, durationMinutes int) []TimeSlot {
	if durationMinutes <= 0 {
		return nil
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil
	}

	limit := endHour * 60
	var slots []TimeSlot
	for offset := startHour * 60; offset+durationMinutes <= limit; offset += durationMinutes {
		slots = append(slots, TimeSlot{
			Label:         fmt.Sprintf("%02d:%02d", offset/60, offset%60),
			OffsetMinutes: offset,
		})
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// Half-open intervals: [aStart,aEnd) overlaps [bStart,bEnd) iff aStart < bEnd && bStart < aEnd.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
