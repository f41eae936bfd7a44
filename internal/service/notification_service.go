package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/truecosmic/calbook-api/internal/models"
	"github.com/truecosmic/calbook-api/pkg/jobs"
)

// NotificationKind identifies the lifecycle notice being sent.
type NotificationKind string

const (
	NotifyBookingCreated     NotificationKind = "booking_created"
	NotifyBookingCancelled   NotificationKind = "booking_cancelled"
	NotifyBookingRescheduled NotificationKind = "booking_rescheduled"
	NotifyBookingReminder    NotificationKind = "booking_reminder"
)

// Notification is the queued payload. It carries copies of everything the
// workers need so dispatch never touches the database.
type Notification struct {
	Kind          NotificationKind
	BookingID     string
	HostName      string
	HostEmail     string
	VisitorName   string
	VisitorEmail  string
	ObserverEmail string
	StartUTC      time.Time
	// PreviousStartUTC is set only on reschedules.
	PreviousStartUTC time.Time
	Timezone         string
	JoinLink         string
	ManageToken      string
}

type mailSender interface {
	Send(to string, subject string, body string) error
}

type crmSyncer interface {
	SyncBooking(ctx context.Context, visitorEmail, bookingTimeLocal, hostName string) error
}

// NotificationService fans lifecycle notices out to email and the CRM via an
// async queue. Dispatch is fire-and-forget: enqueue failures are logged and
// delivery failures are retried by the queue, never surfaced to callers.
type NotificationService struct {
	queue   *jobs.Queue
	mailer  mailSender
	crm     crmSyncer
	metrics *MetricsService
	logger  *zap.Logger
}

// NotificationServiceParams groups constructor dependencies.
type NotificationServiceParams struct {
	Mailer     mailSender
	CRM        crmSyncer
	Metrics    *MetricsService
	Logger     *zap.Logger
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewNotificationService constructs the service and its queue. Call Start
// before dispatching.
func NewNotificationService(params NotificationServiceParams) *NotificationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		mailer:  params.Mailer,
		crm:     params.CRM,
		metrics: params.Metrics,
		logger:  logger,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    params.Workers,
		MaxRetries: params.MaxRetries,
		RetryDelay: params.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues a notification. Errors are swallowed after logging.
func (s *NotificationService) Dispatch(n Notification) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(n.Kind),
		Payload: n,
	})
	if err != nil {
		s.logger.Warn("notification enqueue failed",
			zap.String("kind", string(n.Kind)),
			zap.String("booking_id", n.BookingID),
			zap.Error(err))
	}
}

// FromBooking builds the queued payload from the persisted booking and host.
func FromBooking(kind NotificationKind, booking *models.Booking, host *models.Host, observerEmail string) Notification {
	n := Notification{
		Kind:          kind,
		BookingID:     booking.ID,
		HostName:      host.DisplayName,
		HostEmail:     host.Email,
		VisitorName:   booking.VisitorName,
		VisitorEmail:  booking.VisitorEmail,
		ObserverEmail: observerEmail,
		StartUTC:      booking.StartUTC,
		Timezone:      booking.Timezone,
		ManageToken:   booking.ManageToken,
	}
	if booking.JoinLink != nil {
		n.JoinLink = *booking.JoinLink
	}
	return n
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(Notification)
	if !ok {
		s.logger.Error("notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	subject, body := s.compose(n)

	var firstErr error
	for _, to := range []string{n.VisitorEmail, n.HostEmail, n.ObserverEmail} {
		if to == "" {
			continue
		}
		err := s.mailer.Send(to, subject, body)
		if s.metrics != nil {
			s.metrics.RecordNotification("email", err == nil)
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("send %s to %s: %w", n.Kind, to, err)
		}
	}

	if n.Kind == NotifyBookingCreated || n.Kind == NotifyBookingRescheduled {
		s.syncCRM(ctx, n)
	}
	return firstErr
}

func (s *NotificationService) syncCRM(ctx context.Context, n Notification) {
	if s.crm == nil {
		return
	}
	err := s.crm.SyncBooking(ctx, n.VisitorEmail, s.localTime(n).Format(time.RFC3339), n.HostName)
	if s.metrics != nil {
		s.metrics.RecordNotification("crm", err == nil)
	}
	if err != nil {
		// CRM sync is wholly best-effort; a failure never retries the email.
		s.logger.Warn("crm sync failed", zap.String("booking_id", n.BookingID), zap.Error(err))
	}
}

func (s *NotificationService) compose(n Notification) (string, string) {
	when := s.localTime(n).Format("Mon, 02 Jan 2006 at 15:04 (MST)")
	var subject, intro string
	switch n.Kind {
	case NotifyBookingCreated:
		subject = fmt.Sprintf("Booking confirmed with %s", n.HostName)
		intro = fmt.Sprintf("Hi %s,\n\nYour session with %s is confirmed for %s.", n.VisitorName, n.HostName, when)
	case NotifyBookingCancelled:
		subject = fmt.Sprintf("Booking with %s cancelled", n.HostName)
		intro = fmt.Sprintf("Hi %s,\n\nYour session with %s for %s has been cancelled.", n.VisitorName, n.HostName, when)
	case NotifyBookingRescheduled:
		subject = fmt.Sprintf("Booking with %s rescheduled", n.HostName)
		if n.PreviousStartUTC.IsZero() {
			intro = fmt.Sprintf("Hi %s,\n\nYour session with %s has moved to %s.", n.VisitorName, n.HostName, when)
		} else {
			was := s.inZone(n, n.PreviousStartUTC).Format("Mon, 02 Jan 2006 at 15:04 (MST)")
			intro = fmt.Sprintf("Hi %s,\n\nYour session with %s has moved from %s to %s.", n.VisitorName, n.HostName, was, when)
		}
	case NotifyBookingReminder:
		subject = fmt.Sprintf("Reminder: session with %s soon", n.HostName)
		intro = fmt.Sprintf("Hi %s,\n\nA reminder that your session with %s starts at %s.", n.VisitorName, n.HostName, when)
	default:
		subject = "Booking update"
		intro = fmt.Sprintf("Hi %s,\n\nThere is an update to your booking.", n.VisitorName)
	}

	body := intro
	if n.JoinLink != "" && n.Kind != NotifyBookingCancelled {
		body += fmt.Sprintf("\n\nJoin link: %s", n.JoinLink)
	}
	body += "\n"
	return subject, body
}

func (s *NotificationService) localTime(n Notification) time.Time {
	return s.inZone(n, n.StartUTC)
}

func (s *NotificationService) inZone(n Notification, t time.Time) time.Time {
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return t
	}
	return t.In(loc)
}
