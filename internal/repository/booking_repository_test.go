package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/truecosmic/calbook-api/internal/models"
)

func sampleBookingRows(booking *models.Booking) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "host_id", "visitor_name", "visitor_email", "start_utc", "end_utc", "timezone", "status",
		"external_event_id", "join_link", "manage_token", "sync_pending", "reminder_at", "reminder_sent",
		"created_at", "updated_at",
	}).AddRow(
		booking.ID, booking.HostID, booking.VisitorName, booking.VisitorEmail,
		booking.StartUTC, booking.EndUTC, booking.Timezone, string(booking.Status),
		booking.ExternalEventID, booking.JoinLink, booking.ManageToken, booking.SyncPending,
		booking.ReminderAt, booking.ReminderSent, time.Now(), time.Now(),
	)
}

func TestBookingRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	start := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		HostID:       "host-1",
		VisitorName:  "Sam Visitor",
		VisitorEmail: "sam@example.com",
		StartUTC:     start,
		EndUTC:       start.Add(30 * time.Minute),
		Timezone:     "America/New_York",
		Status:       models.BookingStatusBooked,
		ManageToken:  "token-1",
	}
	require.NoError(t, repo.Create(context.Background(), booking))
	require.NotEmpty(t, booking.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, host_id, visitor_name")).
		WithArgs(booking.ID).
		WillReturnRows(sampleBookingRows(booking))

	found, err := repo.GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Equal(t, booking.ID, found.ID)
	require.True(t, found.StartUTC.Equal(start))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateDuplicateSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&pq.Error{Code: "23505"})

	booking := &models.Booking{
		HostID:      "host-1",
		StartUTC:    time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC),
		EndUTC:      time.Date(2026, 9, 7, 14, 30, 0, 0, time.UTC),
		Status:      models.BookingStatusBooked,
		ManageToken: "token-1",
	}
	err := repo.Create(context.Background(), booking)
	require.ErrorIs(t, err, ErrDuplicateSlot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	status := models.BookingStatusBooked
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings")).
		WithArgs("host-1", string(status), from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	booking := &models.Booking{
		ID:       "bk-1",
		HostID:   "host-1",
		StartUTC: time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 9, 7, 14, 30, 0, 0, time.UTC),
		Status:   status,
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, host_id, visitor_name")).
		WithArgs("host-1", string(status), from).
		WillReturnRows(sampleBookingRows(booking))

	list, total, err := repo.List(context.Background(), models.BookingFilter{
		HostID: "host-1",
		Status: &status,
		From:   &from,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "bk-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = 'cancelled'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Cancel(context.Background(), "bk-1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = 'cancelled'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Cancel(context.Background(), "bk-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateTimesDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.UpdateTimes(context.Background(), UpdateTimesParams{
		ID:       "bk-1",
		StartUTC: time.Date(2026, 9, 8, 15, 0, 0, 0, time.UTC),
		EndUTC:   time.Date(2026, 9, 8, 15, 30, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrDuplicateSlot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryDueReminders(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookingRepository(db)
	now := time.Date(2026, 9, 7, 13, 30, 0, 0, time.UTC)
	reminderAt := now.Add(-time.Minute)
	booking := &models.Booking{
		ID:         "bk-1",
		HostID:     "host-1",
		StartUTC:   now.Add(29 * time.Minute),
		EndUTC:     now.Add(59 * time.Minute),
		Status:     models.BookingStatusBooked,
		ReminderAt: &reminderAt,
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, host_id, visitor_name")).
		WithArgs(now).
		WillReturnRows(sampleBookingRows(booking))

	due, err := repo.DueReminders(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "bk-1", due[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
