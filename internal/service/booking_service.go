package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/truecosmic/calbook-api/internal/calendar"
	"github.com/truecosmic/calbook-api/internal/dto"
	"github.com/truecosmic/calbook-api/internal/models"
	"github.com/truecosmic/calbook-api/internal/repository"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
)

type bookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	Cancel(ctx context.Context, id string) error
	UpdateTimes(ctx context.Context, params repository.UpdateTimesParams) error
	SetSyncState(ctx context.Context, id string, pending bool) error
}

type hostLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Host, error)
	GetByID(ctx context.Context, id string) (*models.Host, error)
}

type eventWriter interface {
	CreateEvent(ctx context.Context, credential string, event calendar.Event) (*calendar.CreatedEvent, error)
	CancelEvent(ctx context.Context, credential string, eventID string) error
	PatchEvent(ctx context.Context, credential string, eventID string, start, end time.Time) error
}

type slotSource interface {
	StartsFor(ctx context.Context, host *models.Host, year int, month time.Month, day int) ([]time.Time, error)
	InvalidateHost(ctx context.Context, slug string)
}

type notifier interface {
	Dispatch(n Notification)
}

// BookingServiceConfig carries booking policy knobs.
type BookingServiceConfig struct {
	EventName        string
	ObserverEmail    string
	ReminderLeadTime time.Duration
}

// BookingService owns the booking lifecycle. Every write revalidates the
// requested start against freshly computed availability before committing;
// the storage layer's unique index settles any remaining race.
type BookingService struct {
	bookings bookingStore
	hosts    hostLookup
	events   eventWriter
	slots    slotSource
	notifier notifier
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      BookingServiceConfig
	newToken func() (string, error)
}

// BookingServiceParams groups constructor dependencies.
type BookingServiceParams struct {
	Bookings bookingStore
	Hosts    hostLookup
	Events   eventWriter
	Slots    slotSource
	Notifier notifier
	Metrics  *MetricsService
	Logger   *zap.Logger
	Config   BookingServiceConfig
}

// NewBookingService constructs the service.
func NewBookingService(params BookingServiceParams) *BookingService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.EventName == "" {
		cfg.EventName = "Coaching Session"
	}
	if cfg.ReminderLeadTime <= 0 {
		cfg.ReminderLeadTime = 30 * time.Minute
	}
	return &BookingService{
		bookings: params.Bookings,
		hosts:    params.Hosts,
		events:   params.Events,
		slots:    params.Slots,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logger:   logger,
		cfg:      cfg,
		newToken: newManageToken,
	}
}

// Create books the requested slot for the visitor.
func (s *BookingService) Create(ctx context.Context, slug string, req dto.CreateBookingRequest) (*dto.BookingResponse, error) {
	host, err := s.hosts.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "host not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load host")
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
	}

	start := req.Start.UTC()
	if err := s.revalidateStart(ctx, host, start); err != nil {
		return nil, err
	}
	duration := time.Duration(host.Policy.SlotDurationMinutes) * time.Minute
	end := start.Add(duration)

	created, err := s.events.CreateEvent(ctx, host.Credential, calendar.Event{
		Summary:     fmt.Sprintf("%s: %s / %s", s.cfg.EventName, req.Name, host.DisplayName),
		Description: fmt.Sprintf("Booked by %s (%s)", req.Name, req.Email),
		Start:       start,
		End:         end,
		Attendees:   s.attendees(req.Email, host.Email),
	})
	if err != nil {
		// The external event is the meeting of record; without it no local
		// booking exists.
		return nil, s.asUpstream(err)
	}

	token, err := s.newToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generate manage token")
	}

	booking := &models.Booking{
		HostID:          host.ID,
		VisitorName:     req.Name,
		VisitorEmail:    req.Email,
		StartUTC:        start,
		EndUTC:          end,
		Timezone:        req.Timezone,
		Status:          models.BookingStatusBooked,
		ExternalEventID: &created.ID,
		ManageToken:     token,
		ReminderAt:      s.reminderAt(start),
	}
	if created.JoinLink != "" {
		booking.JoinLink = &created.JoinLink
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlot) {
			s.cancelEventQuietly(ctx, host, created.ID)
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "")
		}
		s.cancelEventQuietly(ctx, host, created.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store booking")
	}

	if s.metrics != nil {
		s.metrics.RecordBookingEvent("created")
	}
	s.dispatch(NotifyBookingCreated, booking, host)
	s.slots.InvalidateHost(ctx, host.Slug)

	resp := s.toResponse(booking, host)
	resp.ManageToken = booking.ManageToken
	return resp, nil
}

// Get returns the visitor manage view for a booking.
func (s *BookingService) Get(ctx context.Context, id, token string) (*dto.BookingResponse, error) {
	booking, host, err := s.authorize(ctx, id, token)
	if err != nil {
		return nil, err
	}
	return s.toResponse(booking, host), nil
}

// Cancel flips the booking to cancelled. Cancelling twice succeeds quietly;
// a failed external delete is logged and never blocks the cancellation.
func (s *BookingService) Cancel(ctx context.Context, id, token string) (*dto.BookingResponse, error) {
	booking, host, err := s.authorize(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return s.toResponse(booking, host), nil
	}

	if booking.ExternalEventID != nil {
		s.cancelEventQuietly(ctx, host, *booking.ExternalEventID)
	}

	if err := s.bookings.Cancel(ctx, booking.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with another cancel; the end state is the same.
			booking.Status = models.BookingStatusCancelled
			return s.toResponse(booking, host), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "cancel booking")
	}
	booking.Status = models.BookingStatusCancelled

	if s.metrics != nil {
		s.metrics.RecordBookingEvent("cancelled")
	}
	s.dispatch(NotifyBookingCancelled, booking, host)
	s.slots.InvalidateHost(ctx, host.Slug)
	return s.toResponse(booking, host), nil
}

// Reschedule moves the booking to a new start. The local store is the truth:
// times are committed first, then the external event is patched. A failed
// patch leaves the booking flagged sync-pending for out-of-band retry and
// reports the sync failure to the caller.
func (s *BookingService) Reschedule(ctx context.Context, id, token string, newStart time.Time) (*dto.BookingResponse, error) {
	booking, host, err := s.authorize(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusBooked {
		return nil, appErrors.Clone(appErrors.ErrInvalidLink, "")
	}

	previousStart := booking.StartUTC

	start := newStart.UTC()
	if err := s.revalidateStart(ctx, host, start); err != nil {
		return nil, err
	}
	duration := time.Duration(host.Policy.SlotDurationMinutes) * time.Minute
	end := start.Add(duration)

	err = s.bookings.UpdateTimes(ctx, repository.UpdateTimesParams{
		ID:         booking.ID,
		StartUTC:   start,
		EndUTC:     end,
		ReminderAt: s.reminderAt(start),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSlot) {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidLink, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update booking times")
	}
	booking.StartUTC = start
	booking.EndUTC = end

	if s.metrics != nil {
		s.metrics.RecordBookingEvent("rescheduled")
	}
	if s.notifier != nil {
		n := FromBooking(NotifyBookingRescheduled, booking, host, s.cfg.ObserverEmail)
		n.PreviousStartUTC = previousStart
		s.notifier.Dispatch(n)
	}
	s.slots.InvalidateHost(ctx, host.Slug)

	if booking.ExternalEventID != nil {
		if err := s.events.PatchEvent(ctx, host.Credential, *booking.ExternalEventID, start, end); err != nil {
			s.logger.Warn("external event patch failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
			if serr := s.bookings.SetSyncState(ctx, booking.ID, true); serr != nil {
				s.logger.Error("failed to flag booking sync-pending",
					zap.String("booking_id", booking.ID), zap.Error(serr))
			}
			return nil, s.asUpstream(err)
		}
	}
	return s.toResponse(booking, host), nil
}

func (s *BookingService) authorize(ctx context.Context, id, token string) (*models.Booking, *models.Host, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown booking and bad token share one answer so the manage
			// link leaks nothing.
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidLink, "")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load booking")
	}
	if subtle.ConstantTimeCompare([]byte(booking.ManageToken), []byte(token)) != 1 {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidLink, "")
	}
	host, err := s.hosts.GetByID(ctx, booking.HostID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load host")
	}
	return booking, host, nil
}

// revalidateStart recomputes availability for the host's local date of the
// requested instant and rejects anything not offered.
func (s *BookingService) revalidateStart(ctx context.Context, host *models.Host, start time.Time) error {
	hostLoc, err := time.LoadLocation(host.Timezone)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "host timezone")
	}
	local := start.In(hostLoc)
	starts, err := s.slots.StartsFor(ctx, host, local.Year(), local.Month(), local.Day())
	if err != nil {
		return err
	}
	for _, candidate := range starts {
		if candidate.Equal(start) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrSlotUnavailable, "")
}

func (s *BookingService) cancelEventQuietly(ctx context.Context, host *models.Host, eventID string) {
	if err := s.events.CancelEvent(ctx, host.Credential, eventID); err != nil {
		s.logger.Warn("external event cleanup failed",
			zap.String("host", host.Slug), zap.String("event_id", eventID), zap.Error(err))
	}
}

func (s *BookingService) dispatch(kind NotificationKind, booking *models.Booking, host *models.Host) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(FromBooking(kind, booking, host, s.cfg.ObserverEmail))
}

func (s *BookingService) attendees(visitorEmail, hostEmail string) []string {
	attendees := []string{visitorEmail}
	if hostEmail != "" {
		attendees = append(attendees, hostEmail)
	}
	if s.cfg.ObserverEmail != "" {
		attendees = append(attendees, s.cfg.ObserverEmail)
	}
	return attendees
}

func (s *BookingService) reminderAt(start time.Time) *time.Time {
	at := start.Add(-s.cfg.ReminderLeadTime)
	return &at
}

func (s *BookingService) asUpstream(err error) error {
	if appErrors.Is(err, appErrors.ErrUpstream) || appErrors.Is(err, appErrors.ErrUpstreamUnavailable) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
}

func (s *BookingService) toResponse(booking *models.Booking, host *models.Host) *dto.BookingResponse {
	resp := &dto.BookingResponse{
		ID:          booking.ID,
		HostSlug:    host.Slug,
		HostName:    host.DisplayName,
		VisitorName: booking.VisitorName,
		Start:       booking.StartUTC,
		End:         booking.EndUTC,
		Timezone:    booking.Timezone,
		Status:      booking.Status,
	}
	if loc, err := time.LoadLocation(booking.Timezone); err == nil {
		resp.LocalLabel = booking.StartUTC.In(loc).Format("Mon, 02 Jan 2006 15:04")
	}
	if booking.JoinLink != nil {
		resp.JoinLink = *booking.JoinLink
	}
	return resp
}

func newManageToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
