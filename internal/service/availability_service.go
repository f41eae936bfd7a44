package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/truecosmic/calbook-api/internal/dto"
	"github.com/truecosmic/calbook-api/internal/models"
	"github.com/truecosmic/calbook-api/internal/scheduling"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
)

type hostReader interface {
	GetBySlug(ctx context.Context, slug string) (*models.Host, error)
}

type bookedRangeLister interface {
	BookedBetween(ctx context.Context, hostID string, from, to time.Time) ([]models.Booking, error)
}

type busyProvider interface {
	FreeBusy(ctx context.Context, credential string, windowStart, windowEnd time.Time) ([]scheduling.Interval, error)
}

// AvailabilityService computes offerable slots for a host and date.
type AvailabilityService struct {
	hosts    hostReader
	bookings bookedRangeLister
	busy     busyProvider
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// AvailabilityServiceParams groups constructor dependencies.
type AvailabilityServiceParams struct {
	Hosts    hostReader
	Bookings bookedRangeLister
	Busy     busyProvider
	Cache    *CacheService
	Metrics  *MetricsService
	Logger   *zap.Logger
	CacheTTL time.Duration
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(params AvailabilityServiceParams) *AvailabilityService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AvailabilityService{
		hosts:    params.Hosts,
		bookings: params.Bookings,
		busy:     params.Busy,
		cache:    params.Cache,
		metrics:  params.Metrics,
		logger:   logger,
		cacheTTL: ttl,
		now:      time.Now,
	}
}

// Slots returns the bookable starts for the host's date rendered in the
// viewer's timezone. The second return reports cache utilisation.
func (s *AvailabilityService) Slots(ctx context.Context, slug, dateRaw, viewerTZ string) (*dto.AvailabilityResponse, bool, error) {
	host, err := s.lookupHost(ctx, slug)
	if err != nil {
		return nil, false, err
	}

	date, err := time.Parse("2006-01-02", dateRaw)
	if err != nil {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	if viewerTZ == "" {
		viewerTZ = host.Timezone
	}
	viewerLoc, err := time.LoadLocation(viewerTZ)
	if err != nil {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
	}

	cacheKey := fmt.Sprintf("avail:%s:%s:%s", slug, dateRaw, viewerTZ)
	if s.cache != nil {
		var cached dto.AvailabilityResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	starts, err := s.startsFor(ctx, host, date.Year(), date.Month(), date.Day())
	if err != nil {
		return nil, false, err
	}

	duration := time.Duration(host.Policy.SlotDurationMinutes) * time.Minute
	resp := &dto.AvailabilityResponse{
		HostSlug:        host.Slug,
		Date:            dateRaw,
		Timezone:        viewerTZ,
		DurationMinutes: host.Policy.SlotDurationMinutes,
		Slots:           make([]dto.Slot, 0, len(starts)),
	}
	for _, start := range starts {
		local := start.In(viewerLoc)
		resp.Slots = append(resp.Slots, dto.Slot{
			Start:      start,
			End:        start.Add(duration),
			LocalLabel: local.Format("15:04"),
			LocalDate:  local.Format("2006-01-02"),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, resp, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return resp, false, nil
}

// StartsFor exposes the raw UTC slot starts for one of the host's local
// calendar dates. The booking service revalidates against this at commit.
func (s *AvailabilityService) StartsFor(ctx context.Context, host *models.Host, year int, month time.Month, day int) ([]time.Time, error) {
	return s.startsFor(ctx, host, year, month, day)
}

// InvalidateHost drops every cached availability payload for the slug. Called
// after each lifecycle write.
func (s *AvailabilityService) InvalidateHost(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("avail:%s:*", slug)); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("slug", slug), zap.Error(err))
	}
}

func (s *AvailabilityService) lookupHost(ctx context.Context, slug string) (*models.Host, error) {
	host, err := s.hosts.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "host not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load host")
	}
	return host, nil
}

func (s *AvailabilityService) startsFor(ctx context.Context, host *models.Host, year int, month time.Month, day int) ([]time.Time, error) {
	hostLoc, err := time.LoadLocation(host.Timezone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "host timezone")
	}

	now := s.now().UTC()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, hostLoc)

	// Horizon counts host-local calendar days, so zero means today only.
	localNow := now.In(hostLoc)
	todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, hostLoc)
	if dayStart.After(todayStart.AddDate(0, 0, host.Policy.MaxDaysAhead)) {
		return nil, nil
	}

	ranges := scheduling.RangesOn(host.Policy.Hours, year, month, day, hostLoc)
	if len(ranges) == 0 {
		return nil, nil
	}

	if !host.Connected() {
		return nil, appErrors.Clone(appErrors.ErrUpstreamUnavailable, "host calendar not connected")
	}

	buffer := time.Duration(host.Policy.BufferMinutes) * time.Minute
	windowStart := ranges[0].Start.Add(-buffer)
	windowEnd := ranges[len(ranges)-1].End.Add(buffer)

	upstreamStart := time.Now()
	busy, err := s.busy.FreeBusy(ctx, host.Credential, windowStart, windowEnd)
	if s.metrics != nil {
		s.metrics.ObserveUpstreamCall("freebusy", time.Since(upstreamStart), err)
	}
	if err != nil {
		// An unknown upstream is never reported as a free day.
		s.logger.Warn("freebusy lookup failed", zap.String("host", host.Slug), zap.Error(err))
		if appErrors.Is(err, appErrors.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
	}

	if s.bookings != nil {
		booked, err := s.bookings.BookedBetween(ctx, host.ID, windowStart, windowEnd)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load booked range")
		}
		for _, b := range booked {
			busy = append(busy, scheduling.Interval{Start: b.StartUTC, End: b.EndUTC})
		}
	}

	genStart := time.Now()
	starts := scheduling.Generate(scheduling.GenerateInput{
		Ranges:    ranges,
		Busy:      busy,
		Duration:  time.Duration(host.Policy.SlotDurationMinutes) * time.Minute,
		Buffer:    buffer,
		MinNotice: time.Duration(host.Policy.MinNoticeMinutes) * time.Minute,
		Now:       now,
	})
	if s.metrics != nil {
		s.metrics.ObserveSlotGeneration(time.Since(genStart))
	}
	return starts, nil
}
