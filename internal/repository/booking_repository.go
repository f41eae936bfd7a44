package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/truecosmic/calbook-api/internal/models"
)

const bookingColumns = `id, host_id, visitor_name, visitor_email, start_utc, end_utc, timezone, status,
       external_event_id, join_link, manage_token, sync_pending, reminder_at, reminder_sent, created_at, updated_at`

// ErrDuplicateSlot marks an insert rejected by the unique booked-slot index.
// It backs the commit-time race check: two visitors can pass revalidation for
// the same instant, only one insert wins.
var ErrDuplicateSlot = errors.New("slot already booked")

// BookingRepository persists bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking. A violation of the partial unique index on
// (host_id, start_utc) for booked rows is reported as ErrDuplicateSlot.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	const query = `INSERT INTO bookings
	(id, host_id, visitor_name, visitor_email, start_utc, end_utc, timezone, status,
	 external_event_id, join_link, manage_token, sync_pending, reminder_at, reminder_sent, created_at, updated_at)
	VALUES (:id, :host_id, :visitor_name, :visitor_email, :start_utc, :end_utc, :timezone, :status,
	 :external_event_id, :join_link, :manage_token, :sync_pending, :reminder_at, :reminder_sent, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// GetByID fetches a booking by identifier.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns a host's bookings matching the filter plus the total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	conditions := []string{"host_id = $1"}
	args := []interface{}{filter.HostID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("start_utc >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("start_utc < $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM bookings WHERE " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := fmt.Sprintf("SELECT %s FROM bookings WHERE %s ORDER BY start_utc ASC LIMIT %d OFFSET %d",
		bookingColumns, where, pageSize, (page-1)*pageSize)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, total, nil
}

// BookedBetween returns booked rows for a host intersecting [from, to).
func (r *BookingRepository) BookedBetween(ctx context.Context, hostID string, from, to time.Time) ([]models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings
	WHERE host_id = $1 AND status = 'booked' AND start_utc < $2 AND end_utc > $3
	ORDER BY start_utc ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, hostID, to.UTC(), from.UTC()); err != nil {
		return nil, fmt.Errorf("list booked range: %w", err)
	}
	return bookings, nil
}

// Cancel flips a booked row to cancelled. Returns sql.ErrNoRows when the row
// was not in the booked state.
func (r *BookingRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE bookings SET status = 'cancelled', updated_at = $1 WHERE id = $2 AND status = 'booked'`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateTimesParams groups the columns rewritten by a reschedule.
type UpdateTimesParams struct {
	ID          string
	StartUTC    time.Time
	EndUTC      time.Time
	ReminderAt  *time.Time
	SyncPending bool
}

// UpdateTimes moves a booked row to new instants. The unique-index race is
// reported the same way as Create.
func (r *BookingRepository) UpdateTimes(ctx context.Context, params UpdateTimesParams) error {
	const query = `UPDATE bookings
	SET start_utc = $1, end_utc = $2, reminder_at = $3, reminder_sent = FALSE, sync_pending = $4, updated_at = $5
	WHERE id = $6 AND status = 'booked'`
	result, err := r.db.ExecContext(ctx, query,
		params.StartUTC.UTC(), params.EndUTC.UTC(), params.ReminderAt, params.SyncPending, time.Now().UTC(), params.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("update booking times: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check booking update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetSyncState records the outcome of an external calendar patch attempt.
func (r *BookingRepository) SetSyncState(ctx context.Context, id string, pending bool) error {
	const query = `UPDATE bookings SET sync_pending = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, pending, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set booking sync state: %w", err)
	}
	return nil
}

// ListSyncPending returns booked rows whose external event still needs a patch.
func (r *BookingRepository) ListSyncPending(ctx context.Context, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM bookings
	WHERE status = 'booked' AND sync_pending = TRUE AND external_event_id IS NOT NULL
	ORDER BY updated_at ASC LIMIT %d`, bookingColumns, limit)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, fmt.Errorf("list sync pending: %w", err)
	}
	return bookings, nil
}

// DueReminders returns booked rows whose reminder instant has passed and was
// not sent yet.
func (r *BookingRepository) DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM bookings
	WHERE status = 'booked' AND reminder_sent = FALSE AND reminder_at IS NOT NULL AND reminder_at <= $1
	ORDER BY reminder_at ASC LIMIT %d`, bookingColumns, limit)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, now.UTC()); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return bookings, nil
}

// MarkReminderSent records that the reminder for a booking went out.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, id string) error {
	const query = `UPDATE bookings SET reminder_sent = TRUE, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
