package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecosmic/calbook-api/internal/models"
)

func TestGenerateBusyDayInNewYork(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	var hours models.WeeklyHours
	hours[0] = []models.TimeRange{{StartMinute: 9 * 60, EndMinute: 17 * 60}}

	// Monday 2026-01-05, working 09:00-17:00 local (14:00-22:00 UTC), one
	// busy block 13:00-13:30 local (18:00-18:30 UTC).
	ranges := RangesOn(hours, 2026, time.January, 5, loc)
	busy := []Interval{{
		Start: time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 5, 18, 30, 0, 0, time.UTC),
	}}

	now := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)
	slots := Generate(GenerateInput{
		Ranges:    ranges,
		Busy:      busy,
		Duration:  30 * time.Minute,
		MinNotice: 120 * time.Minute,
		Now:       now,
	})

	// 16 half-hour slots in 8 working hours, minus the one busy slot.
	require.Len(t, slots, 15)
	assert.Equal(t, time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC), slots[0])
	assert.Equal(t, time.Date(2026, 1, 5, 21, 30, 0, 0, time.UTC), slots[len(slots)-1])
	for _, s := range slots {
		assert.False(t, s.Equal(busy[0].Start), "13:00 local must be excluded")
	}
}

func TestGenerateBufferExcludesNeighbours(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ranges := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)}}
	busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)}}

	slots := Generate(GenerateInput{
		Ranges:   ranges,
		Busy:     busy,
		Duration: 30 * time.Minute,
		Buffer:   15 * time.Minute,
		Now:      day.Add(-24 * time.Hour),
	})

	// 09:30 ends at 10:00 but the buffer pulls the busy start back to 09:45;
	// 10:30 starts inside the pushed-out busy end 10:45. Both drop, the
	// adjacent 09:00 and 11:00 survive.
	require.Len(t, slots, 3)
	assert.Equal(t, day.Add(9*time.Hour), slots[0])
	assert.Equal(t, day.Add(11*time.Hour), slots[1])
	assert.Equal(t, day.Add(11*time.Hour+30*time.Minute), slots[2])
}

func TestGenerateMinNotice(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ranges := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour)}}

	now := day.Add(8 * time.Hour)
	slots := Generate(GenerateInput{
		Ranges:    ranges,
		Duration:  30 * time.Minute,
		MinNotice: 90 * time.Minute,
		Now:       now,
	})

	earliest := now.Add(90 * time.Minute)
	require.NotEmpty(t, slots)
	assert.Equal(t, day.Add(9*time.Hour+30*time.Minute), slots[0])
	for _, s := range slots {
		assert.False(t, s.Before(earliest))
	}
}

func TestGenerateSlotsStrictlyIncreasing(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ranges := []Interval{
		{Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour)},
		{Start: day.Add(14 * time.Hour), End: day.Add(16 * time.Hour)},
	}

	slots := Generate(GenerateInput{
		Ranges:   ranges,
		Duration: 30 * time.Minute,
		Now:      day.Add(-time.Hour),
	})

	require.Len(t, slots, 8)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Before(slots[i]))
		assert.False(t, slots[i].Before(slots[i-1].Add(30*time.Minute)))
	}
}

func TestGenerateRangeShorterThanDuration(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ranges := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 20*time.Minute)}}

	slots := Generate(GenerateInput{
		Ranges:   ranges,
		Duration: 30 * time.Minute,
		Now:      day.Add(-time.Hour),
	})
	assert.Empty(t, slots)
}

func TestGenerateSlotNeverSpansRanges(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	// Adjacent ranges: 09:00-09:45 and 09:45-10:30. The 09:30 candidate in
	// the first range would fit only by crossing into the second.
	ranges := []Interval{
		{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 45*time.Minute)},
		{Start: day.Add(9*time.Hour + 45*time.Minute), End: day.Add(10*time.Hour + 30*time.Minute)},
	}

	slots := Generate(GenerateInput{
		Ranges:   ranges,
		Duration: 30 * time.Minute,
		Now:      day.Add(-time.Hour),
	})

	require.Len(t, slots, 2)
	assert.Equal(t, day.Add(9*time.Hour), slots[0])
	assert.Equal(t, day.Add(9*time.Hour+45*time.Minute), slots[1])
}

func TestGenerateOverlappingBusyInput(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ranges := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)}}
	busy := []Interval{
		{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
		{Start: day.Add(10*time.Hour + 30*time.Minute), End: day.Add(11*time.Hour + 30*time.Minute)},
	}

	slots := Generate(GenerateInput{
		Ranges:   ranges,
		Busy:     busy,
		Duration: 30 * time.Minute,
		Now:      day.Add(-time.Hour),
	})

	require.Len(t, slots, 3)
	assert.Equal(t, day.Add(9*time.Hour), slots[0])
	assert.Equal(t, day.Add(9*time.Hour+30*time.Minute), slots[1])
	assert.Equal(t, day.Add(11*time.Hour+30*time.Minute), slots[2])
}
