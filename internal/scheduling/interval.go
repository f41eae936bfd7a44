package scheduling

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) span of UTC instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// only touch at an endpoint do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Expand widens the interval by buffer on both sides.
func (iv Interval) Expand(buffer time.Duration) Interval {
	if buffer <= 0 {
		return iv
	}
	return Interval{Start: iv.Start.Add(-buffer), End: iv.End.Add(buffer)}
}

// MergeOverlapping sorts intervals by start and coalesces overlapping or
// touching neighbours. The input may contain duplicates and overlaps; the
// result is sorted and disjoint.
func MergeOverlapping(list []Interval) []Interval {
	if len(list) < 2 {
		return list
	}
	sorted := make([]Interval, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := sorted[:1]
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// OverlapsAny reports whether [start, end) intersects any interval in busy.
func OverlapsAny(start, end time.Time, busy []Interval) bool {
	candidate := Interval{Start: start, End: end}
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
