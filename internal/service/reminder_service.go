package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/truecosmic/calbook-api/internal/models"
)

type reminderStore interface {
	DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, id string) error
	ListSyncPending(ctx context.Context, limit int) ([]models.Booking, error)
	SetSyncState(ctx context.Context, id string, pending bool) error
}

type eventPatcher interface {
	PatchEvent(ctx context.Context, credential string, eventID string, start, end time.Time) error
}

type hostByID interface {
	GetByID(ctx context.Context, id string) (*models.Host, error)
}

// ReminderWorkerConfig tunes the periodic scan.
type ReminderWorkerConfig struct {
	ScanInterval  time.Duration
	BatchSize     int
	ObserverEmail string
}

// ReminderWorker periodically scans the store for due, unsent reminders and
// dispatches them. Because due-ness lives on the row rather than in an
// in-memory timer, a restart never loses a reminder. The same scan retries
// external patches that failed during a reschedule.
type ReminderWorker struct {
	bookings reminderStore
	hosts    hostByID
	events   eventPatcher
	notifier notifier
	logger   *zap.Logger
	cfg      ReminderWorkerConfig
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReminderWorker constructs the worker.
func NewReminderWorker(bookings reminderStore, hosts hostByID, events eventPatcher, n notifier, logger *zap.Logger, cfg ReminderWorkerConfig) *ReminderWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &ReminderWorker{
		bookings: bookings,
		hosts:    hosts,
		events:   events,
		notifier: n,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start launches the scan loop.
func (w *ReminderWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.ScanInterval)
		defer ticker.Stop()
		w.logger.Sugar().Infow("reminder worker started", "interval", w.cfg.ScanInterval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Scan(ctx)
				w.RetrySyncPending(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the current scan to finish.
func (w *ReminderWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Sugar().Infow("reminder worker stopped")
}

// Scan dispatches every due, unsent reminder and marks it sent. Marking
// happens after dispatch, so a crash in between re-sends rather than drops.
func (w *ReminderWorker) Scan(ctx context.Context) {
	due, err := w.bookings.DueReminders(ctx, w.now().UTC(), w.cfg.BatchSize)
	if err != nil {
		w.logger.Warn("reminder scan failed", zap.Error(err))
		return
	}
	for i := range due {
		booking := &due[i]
		host, err := w.hosts.GetByID(ctx, booking.HostID)
		if err != nil {
			w.logger.Warn("reminder host lookup failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
			continue
		}
		if w.notifier != nil {
			w.notifier.Dispatch(FromBooking(NotifyBookingReminder, booking, host, w.cfg.ObserverEmail))
		}
		if err := w.bookings.MarkReminderSent(ctx, booking.ID); err != nil {
			w.logger.Warn("mark reminder sent failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}
}

// RetrySyncPending replays failed external patches for rescheduled bookings.
func (w *ReminderWorker) RetrySyncPending(ctx context.Context) {
	pending, err := w.bookings.ListSyncPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.Warn("sync-pending scan failed", zap.Error(err))
		return
	}
	for i := range pending {
		booking := &pending[i]
		if booking.ExternalEventID == nil {
			continue
		}
		host, err := w.hosts.GetByID(ctx, booking.HostID)
		if err != nil {
			w.logger.Warn("sync-pending host lookup failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
			continue
		}
		if err := w.events.PatchEvent(ctx, host.Credential, *booking.ExternalEventID, booking.StartUTC, booking.EndUTC); err != nil {
			w.logger.Warn("sync-pending patch retry failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
			continue
		}
		if err := w.bookings.SetSyncState(ctx, booking.ID, false); err != nil {
			w.logger.Warn("clear sync-pending failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}
}
