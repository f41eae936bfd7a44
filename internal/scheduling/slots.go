package scheduling

import "time"

// GenerateInput carries everything the slot walk needs. Ranges are the UTC
// working intervals for one day (ascending); Busy may overlap itself.
type GenerateInput struct {
	Ranges    []Interval
	Busy      []Interval
	Duration  time.Duration
	Buffer    time.Duration
	MinNotice time.Duration
	Now       time.Time
}

// Generate walks each working range in steps of Duration and returns the UTC
// start instants a booking of that length could take. Candidates are dropped
// when they begin before Now+MinNotice or when they intersect a busy interval
// expanded by Buffer. Results are ascending and, because the step equals the
// duration, never overlap. A range shorter than one duration yields nothing,
// and a slot never spans two ranges.
func Generate(in GenerateInput) []time.Time {
	if in.Duration <= 0 {
		return nil
	}

	busy := make([]Interval, 0, len(in.Busy))
	for _, b := range in.Busy {
		busy = append(busy, b.Expand(in.Buffer))
	}
	busy = MergeOverlapping(busy)

	earliest := in.Now.Add(in.MinNotice)

	var slots []time.Time
	for _, r := range in.Ranges {
		for start := r.Start; !start.Add(in.Duration).After(r.End); start = start.Add(in.Duration) {
			if start.Before(earliest) {
				continue
			}
			if OverlapsAny(start, start.Add(in.Duration), busy) {
				continue
			}
			slots = append(slots, start)
		}
	}
	return slots
}
