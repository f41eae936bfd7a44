package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/truecosmic/calbook-api/internal/dto"
	"github.com/truecosmic/calbook-api/internal/models"
	"github.com/truecosmic/calbook-api/internal/scheduling"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
)

type hostStore interface {
	GetBySlug(ctx context.Context, slug string) (*models.Host, error)
	List(ctx context.Context) ([]models.Host, error)
	UpdatePolicy(ctx context.Context, hostID string, policy models.AvailabilityPolicy) error
}

type bookingLister interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

type cacheInvalidator interface {
	InvalidateHost(ctx context.Context, slug string)
}

// HostService serves the public roster and the authenticated host surface:
// policy writes and the booking dashboard.
type HostService struct {
	hosts     hostStore
	bookings  bookingLister
	slots     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHostService constructs the service.
func NewHostService(hosts hostStore, bookings bookingLister, slots cacheInvalidator, logger *zap.Logger) *HostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostService{
		hosts:     hosts,
		bookings:  bookings,
		slots:     slots,
		validator: validator.New(),
		logger:    logger,
	}
}

// List returns the public roster of active hosts.
func (s *HostService) List(ctx context.Context) ([]dto.HostSummary, error) {
	hosts, err := s.hosts.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list hosts")
	}
	out := make([]dto.HostSummary, 0, len(hosts))
	for i := range hosts {
		h := &hosts[i]
		out = append(out, dto.HostSummary{
			Slug:        h.Slug,
			DisplayName: h.DisplayName,
			Timezone:    h.Timezone,
			Connected:   h.Connected(),
		})
	}
	return out, nil
}

// Profile returns the public profile with display hours.
func (s *HostService) Profile(ctx context.Context, slug string) (*dto.HostProfile, error) {
	host, err := s.getHost(ctx, slug)
	if err != nil {
		return nil, err
	}

	hours := make(map[string][]string, 7)
	for day, ranges := range host.Policy.Hours {
		if len(ranges) == 0 {
			continue
		}
		name := scheduling.WeekdayName(day)
		for _, r := range ranges {
			hours[name] = append(hours[name],
				fmt.Sprintf("%s-%s", scheduling.FormatClock(r.StartMinute), scheduling.FormatClock(r.EndMinute)))
		}
	}

	return &dto.HostProfile{
		Slug:                host.Slug,
		DisplayName:         host.DisplayName,
		Timezone:            host.Timezone,
		Connected:           host.Connected(),
		SlotDurationMinutes: host.Policy.SlotDurationMinutes,
		Hours:               hours,
	}, nil
}

// UpdateAvailability replaces the host's policy. This is the only place a
// policy is validated; reads trust the stored value.
func (s *HostService) UpdateAvailability(ctx context.Context, slug string, claims *models.HostClaims, req dto.UpdateAvailabilityRequest) error {
	if claims == nil || !claims.CanManage(slug) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	host, err := s.getHost(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	policy, err := policyFromRequest(req)
	if err != nil {
		return err
	}
	if err := scheduling.ValidatePolicy(*policy); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if err := s.hosts.UpdatePolicy(ctx, host.ID, *policy); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store policy")
	}
	if s.slots != nil {
		s.slots.InvalidateHost(ctx, slug)
	}
	s.logger.Info("availability policy updated", zap.String("slug", slug))
	return nil
}

// Bookings returns the host dashboard listing.
func (s *HostService) Bookings(ctx context.Context, slug string, claims *models.HostClaims, filter dto.BookingListFilter) ([]dto.BookingListItem, *models.Pagination, error) {
	if claims == nil || !claims.CanManage(slug) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	host, err := s.getHost(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	repoFilter := models.BookingFilter{
		HostID:   host.ID,
		From:     filter.From,
		To:       filter.To,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if filter.Status != "" {
		status := models.BookingStatus(filter.Status)
		if status != models.BookingStatusBooked && status != models.BookingStatusCancelled {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be booked or cancelled")
		}
		repoFilter.Status = &status
	}

	bookings, total, err := s.bookings.List(ctx, repoFilter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list bookings")
	}

	items := make([]dto.BookingListItem, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		item := dto.BookingListItem{
			ID:           b.ID,
			VisitorName:  b.VisitorName,
			VisitorEmail: b.VisitorEmail,
			Start:        b.StartUTC,
			End:          b.EndUTC,
			Timezone:     b.Timezone,
			Status:       b.Status,
		}
		if b.JoinLink != nil {
			item.JoinLink = *b.JoinLink
		}
		items = append(items, item)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *HostService) getHost(ctx context.Context, slug string) (*models.Host, error) {
	host, err := s.hosts.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "host not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load host")
	}
	return host, nil
}

func policyFromRequest(req dto.UpdateAvailabilityRequest) (*models.AvailabilityPolicy, error) {
	policy := models.AvailabilityPolicy{
		BufferMinutes:       req.BufferMinutes,
		MinNoticeMinutes:    req.MinNoticeMinutes,
		MaxDaysAhead:        req.MaxDaysAhead,
		SlotDurationMinutes: req.SlotDurationMinutes,
	}

	for name, pairs := range req.Hours {
		day := -1
		for i := 0; i < 7; i++ {
			if scheduling.WeekdayName(i) == name {
				day = i
				break
			}
		}
		if day < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown weekday %q", name))
		}
		for _, pair := range pairs {
			start, err := scheduling.ParseClock(pair[0])
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: %v", name, err))
			}
			end, err := scheduling.ParseClock(pair[1])
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: %v", name, err))
			}
			policy.Hours[day] = append(policy.Hours[day], models.TimeRange{StartMinute: start, EndMinute: end})
		}
	}
	for day := range policy.Hours {
		sort.Slice(policy.Hours[day], func(i, j int) bool {
			return policy.Hours[day][i].StartMinute < policy.Hours[day][j].StartMinute
		})
	}
	return &policy, nil
}
