package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/truecosmic/calbook-api/internal/models"
)

// ErrInvalidPolicy marks a malformed availability policy. It is only ever
// returned from the write boundary; stored policies are trusted.
var ErrInvalidPolicy = errors.New("invalid availability policy")

var weekdayNames = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// WeekdayIndex maps a time.Time to the Monday=0 weekday convention used by
// models.WeeklyHours.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekdayName returns the short lowercase name for a Monday=0 weekday index.
func WeekdayName(idx int) string {
	return weekdayNames[idx]
}

// ValidatePolicy rejects policies with out-of-range scalars or day ranges
// that are unsorted, overlapping, empty, or outside [0, 1440).
func ValidatePolicy(p models.AvailabilityPolicy) error {
	if p.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidPolicy)
	}
	if p.BufferMinutes < 0 {
		return fmt.Errorf("%w: buffer minutes must not be negative", ErrInvalidPolicy)
	}
	if p.MinNoticeMinutes < 0 {
		return fmt.Errorf("%w: min notice minutes must not be negative", ErrInvalidPolicy)
	}
	if p.MaxDaysAhead < 0 {
		return fmt.Errorf("%w: max days ahead must not be negative", ErrInvalidPolicy)
	}
	for day, ranges := range p.Hours {
		prevEnd := -1
		for _, r := range ranges {
			if r.StartMinute < 0 || r.EndMinute > models.MinutesPerDay {
				return fmt.Errorf("%w: %s range %d-%d outside day bounds", ErrInvalidPolicy, weekdayNames[day], r.StartMinute, r.EndMinute)
			}
			if r.StartMinute >= r.EndMinute {
				return fmt.Errorf("%w: %s range %d-%d is empty or inverted", ErrInvalidPolicy, weekdayNames[day], r.StartMinute, r.EndMinute)
			}
			if r.StartMinute < prevEnd {
				return fmt.Errorf("%w: %s ranges overlap or are unsorted", ErrInvalidPolicy, weekdayNames[day])
			}
			prevEnd = r.EndMinute
		}
	}
	return nil
}

// RangesOn converts the working ranges for the calendar date (year, month,
// day) in loc into UTC intervals. The conversion anchors each range on the
// local wall clock, so the UTC offset in effect at that instant is applied
// and daylight-saving transitions resolve correctly.
func RangesOn(hours models.WeeklyHours, year int, month time.Month, day int, loc *time.Location) []Interval {
	anchor := time.Date(year, month, day, 0, 0, 0, 0, loc)
	ranges := hours[WeekdayIndex(anchor)]
	if len(ranges) == 0 {
		return nil
	}

	out := make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		start := time.Date(year, month, day, r.StartMinute/60, r.StartMinute%60, 0, 0, loc)
		end := time.Date(year, month, day, r.EndMinute/60, r.EndMinute%60, 0, 0, loc)
		out = append(out, Interval{Start: start.UTC(), End: end.UTC()})
	}
	return out
}

// ParseClock converts an "HH:MM" wall-clock string into minutes of day.
func ParseClock(raw string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", raw, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || h*60+m > models.MinutesPerDay {
		return 0, fmt.Errorf("clock %q out of range", raw)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes of day as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
