package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecosmic/calbook-api/internal/models"
	"github.com/truecosmic/calbook-api/internal/scheduling"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
)

type hostRepoStub struct {
	hosts map[string]*models.Host
	err   error
}

func (s *hostRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Host, error) {
	if s.err != nil {
		return nil, s.err
	}
	if host, ok := s.hosts[slug]; ok {
		return host, nil
	}
	return nil, sql.ErrNoRows
}

func (s *hostRepoStub) GetByID(ctx context.Context, id string) (*models.Host, error) {
	for _, host := range s.hosts {
		if host.ID == id {
			return host, nil
		}
	}
	return nil, sql.ErrNoRows
}

type bookedStub struct {
	booked []models.Booking
	err    error
	calls  int
}

func (s *bookedStub) BookedBetween(ctx context.Context, hostID string, from, to time.Time) ([]models.Booking, error) {
	s.calls++
	return s.booked, s.err
}

type busyStub struct {
	busy  []scheduling.Interval
	err   error
	calls int
}

func (s *busyStub) FreeBusy(ctx context.Context, credential string, windowStart, windowEnd time.Time) ([]scheduling.Interval, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.busy, nil
}

func weekdayHours() models.WeeklyHours {
	var hours models.WeeklyHours
	// Mon-Fri 09:00-17:00.
	for day := 0; day < 5; day++ {
		hours[day] = []models.TimeRange{{StartMinute: 9 * 60, EndMinute: 17 * 60}}
	}
	return hours
}

func testHost() *models.Host {
	return &models.Host{
		ID:          "host-1",
		Slug:        "jane-doe",
		DisplayName: "Jane Doe",
		Email:       "jane@example.com",
		Timezone:    "America/New_York",
		Credential:  `{"access_token":"x"}`,
		Active:      true,
		Policy: models.AvailabilityPolicy{
			Hours:               weekdayHours(),
			BufferMinutes:       0,
			MinNoticeMinutes:    0,
			MaxDaysAhead:        14,
			SlotDurationMinutes: 30,
		},
	}
}

func newAvailabilityService(hosts *hostRepoStub, booked *bookedStub, busy *busyStub) *AvailabilityService {
	svc := NewAvailabilityService(AvailabilityServiceParams{
		Hosts:    hosts,
		Bookings: booked,
		Busy:     busy,
	})
	// 2026-09-07 is a Monday.
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestAvailabilitySlotsExcludesBusy(t *testing.T) {
	host := testHost()
	// 13:00-13:30 New York is 17:00-17:30 UTC in September (EDT).
	busy := &busyStub{busy: []scheduling.Interval{{
		Start: time.Date(2026, 9, 7, 17, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 7, 17, 30, 0, 0, time.UTC),
	}}}
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, &bookedStub{}, busy)

	resp, hit, err := svc.Slots(context.Background(), "jane-doe", "2026-09-07", "America/New_York")
	require.NoError(t, err)
	assert.False(t, hit)
	// 16 half-hour slots in an 8 hour day, minus the busy one.
	require.Len(t, resp.Slots, 15)
	for _, slot := range resp.Slots {
		assert.False(t, slot.Start.Equal(time.Date(2026, 9, 7, 17, 0, 0, 0, time.UTC)))
	}
	assert.Equal(t, "09:00", resp.Slots[0].LocalLabel)
	assert.Equal(t, 30, resp.DurationMinutes)
	assert.Equal(t, 1, busy.calls)
}

func TestAvailabilityOwnBookingsBlockSlots(t *testing.T) {
	host := testHost()
	booked := &bookedStub{booked: []models.Booking{{
		StartUTC: time.Date(2026, 9, 7, 13, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 9, 7, 13, 30, 0, 0, time.UTC),
		Status:   models.BookingStatusBooked,
	}}}
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, booked, &busyStub{})

	resp, _, err := svc.Slots(context.Background(), "jane-doe", "2026-09-07", "UTC")
	require.NoError(t, err)
	require.Len(t, resp.Slots, 15)
	for _, slot := range resp.Slots {
		assert.False(t, slot.Start.Equal(time.Date(2026, 9, 7, 13, 0, 0, 0, time.UTC)))
	}
}

func TestAvailabilityEmptyWeekdaySkipsUpstream(t *testing.T) {
	host := testHost()
	busy := &busyStub{}
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, &bookedStub{}, busy)

	// 2026-09-06 is a Sunday with no working ranges.
	resp, _, err := svc.Slots(context.Background(), "jane-doe", "2026-09-06", "UTC")
	require.NoError(t, err)
	assert.Empty(t, resp.Slots)
	assert.Zero(t, busy.calls)
}

func TestAvailabilityBeyondHorizonIsEmpty(t *testing.T) {
	host := testHost()
	busy := &busyStub{}
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, &bookedStub{}, busy)

	resp, _, err := svc.Slots(context.Background(), "jane-doe", "2026-10-19", "UTC")
	require.NoError(t, err)
	assert.Empty(t, resp.Slots)
	assert.Zero(t, busy.calls)
}

func TestAvailabilityZeroDaysAheadIsTodayOnly(t *testing.T) {
	host := testHost()
	host.Policy.MaxDaysAhead = 0
	busy := &busyStub{}
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, &bookedStub{}, busy)

	// The pinned clock is 2026-09-01, a Tuesday, 08:00 in New York.
	resp, _, err := svc.Slots(context.Background(), "jane-doe", "2026-09-01", "UTC")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Slots)
	assert.Equal(t, 1, busy.calls)

	resp, _, err = svc.Slots(context.Background(), "jane-doe", "2026-09-02", "UTC")
	require.NoError(t, err)
	assert.Empty(t, resp.Slots)
	assert.Equal(t, 1, busy.calls)
}

func TestAvailabilityUpstreamFailureNeverEmptyDay(t *testing.T) {
	host := testHost()
	busy := &busyStub{err: appErrors.Clone(appErrors.ErrUpstreamUnavailable, "")}
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, &bookedStub{}, busy)

	_, _, err := svc.Slots(context.Background(), "jane-doe", "2026-09-07", "UTC")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstreamUnavailable))
}

func TestAvailabilityDisconnectedHost(t *testing.T) {
	host := testHost()
	host.Credential = ""
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, &bookedStub{}, &busyStub{})

	_, _, err := svc.Slots(context.Background(), "jane-doe", "2026-09-07", "UTC")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstreamUnavailable))
}

func TestAvailabilityUnknownHost(t *testing.T) {
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{}}, &bookedStub{}, &busyStub{})

	_, _, err := svc.Slots(context.Background(), "nobody", "2026-09-07", "UTC")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAvailabilityValidatesInput(t *testing.T) {
	host := testHost()
	svc := newAvailabilityService(&hostRepoStub{hosts: map[string]*models.Host{"jane-doe": host}}, &bookedStub{}, &busyStub{})

	_, _, err := svc.Slots(context.Background(), "jane-doe", "07-09-2026", "UTC")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.Slots(context.Background(), "jane-doe", "2026-09-07", "Mars/Olympus")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
