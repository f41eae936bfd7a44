package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecosmic/calbook-api/internal/models"
)

func validPolicy() models.AvailabilityPolicy {
	p := models.AvailabilityPolicy{
		BufferMinutes:       0,
		MinNoticeMinutes:    120,
		MaxDaysAhead:        30,
		SlotDurationMinutes: 30,
	}
	for day := 0; day < 5; day++ {
		p.Hours[day] = []models.TimeRange{{StartMinute: 9 * 60, EndMinute: 17 * 60}}
	}
	return p
}

func TestValidatePolicyAccepts(t *testing.T) {
	require.NoError(t, ValidatePolicy(validPolicy()))
}

func TestValidatePolicyRejects(t *testing.T) {
	cases := map[string]func(*models.AvailabilityPolicy){
		"zero duration":    func(p *models.AvailabilityPolicy) { p.SlotDurationMinutes = 0 },
		"negative buffer":  func(p *models.AvailabilityPolicy) { p.BufferMinutes = -1 },
		"negative notice":  func(p *models.AvailabilityPolicy) { p.MinNoticeMinutes = -5 },
		"negative horizon": func(p *models.AvailabilityPolicy) { p.MaxDaysAhead = -1 },
		"inverted range": func(p *models.AvailabilityPolicy) {
			p.Hours[0] = []models.TimeRange{{StartMinute: 600, EndMinute: 540}}
		},
		"empty range": func(p *models.AvailabilityPolicy) {
			p.Hours[2] = []models.TimeRange{{StartMinute: 600, EndMinute: 600}}
		},
		"out of bounds": func(p *models.AvailabilityPolicy) {
			p.Hours[3] = []models.TimeRange{{StartMinute: 1380, EndMinute: 1441}}
		},
		"overlapping ranges": func(p *models.AvailabilityPolicy) {
			p.Hours[1] = []models.TimeRange{
				{StartMinute: 540, EndMinute: 720},
				{StartMinute: 700, EndMinute: 900},
			}
		},
		"unsorted ranges": func(p *models.AvailabilityPolicy) {
			p.Hours[4] = []models.TimeRange{
				{StartMinute: 780, EndMinute: 900},
				{StartMinute: 540, EndMinute: 660},
			}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validPolicy()
			mutate(&p)
			err := ValidatePolicy(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestWeekdayIndexMondayZero(t *testing.T) {
	monday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	assert.Equal(t, 0, WeekdayIndex(monday))
	assert.Equal(t, 5, WeekdayIndex(monday.AddDate(0, 0, 5)))
	assert.Equal(t, 6, WeekdayIndex(monday.AddDate(0, 0, 6)))
}

func TestRangesOnStandardTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	var hours models.WeeklyHours
	hours[0] = []models.TimeRange{{StartMinute: 9 * 60, EndMinute: 17 * 60}}

	// 2026-01-05 is a Monday, UTC-5 in effect.
	ranges := RangesOn(hours, 2026, time.January, 5, loc)
	require.Len(t, ranges, 1)
	assert.Equal(t, time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC), ranges[0].Start)
	assert.Equal(t, time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC), ranges[0].End)
}

func TestRangesOnDaylightSaving(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	var hours models.WeeklyHours
	hours[0] = []models.TimeRange{{StartMinute: 9 * 60, EndMinute: 17 * 60}}

	// 2026-07-06 is a Monday, UTC-4 in effect.
	ranges := RangesOn(hours, 2026, time.July, 6, loc)
	require.Len(t, ranges, 1)
	assert.Equal(t, time.Date(2026, 7, 6, 13, 0, 0, 0, time.UTC), ranges[0].Start)
	assert.Equal(t, time.Date(2026, 7, 6, 21, 0, 0, 0, time.UTC), ranges[0].End)
}

func TestRangesOnEmptyWeekday(t *testing.T) {
	var hours models.WeeklyHours
	hours[0] = []models.TimeRange{{StartMinute: 540, EndMinute: 1020}}

	// 2026-01-06 is a Tuesday with no configured hours.
	assert.Nil(t, RangesOn(hours, 2026, time.January, 6, time.UTC))
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	_, err = ParseClock("25:00")
	require.Error(t, err)
	_, err = ParseClock("oops")
	require.Error(t, err)

	assert.Equal(t, "09:30", FormatClock(570))
	assert.Equal(t, "00:00", FormatClock(0))
}
