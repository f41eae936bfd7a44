package models

import "time"

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is one confirmed meeting. Rows are never deleted; cancellation is a
// terminal status flip so history stays queryable. The booking service is the
// only writer.
type Booking struct {
	ID              string        `db:"id" json:"id"`
	HostID          string        `db:"host_id" json:"host_id"`
	VisitorName     string        `db:"visitor_name" json:"visitor_name"`
	VisitorEmail    string        `db:"visitor_email" json:"visitor_email"`
	StartUTC        time.Time     `db:"start_utc" json:"start_utc"`
	EndUTC          time.Time     `db:"end_utc" json:"end_utc"`
	Timezone        string        `db:"timezone" json:"timezone"`
	Status          BookingStatus `db:"status" json:"status"`
	ExternalEventID *string       `db:"external_event_id" json:"-"`
	JoinLink        *string       `db:"join_link" json:"join_link,omitempty"`
	ManageToken     string        `db:"manage_token" json:"-"`
	SyncPending     bool          `db:"sync_pending" json:"-"`
	ReminderAt      *time.Time    `db:"reminder_at" json:"-"`
	ReminderSent    bool          `db:"reminder_sent" json:"-"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter captures filtering options for listing a host's bookings.
type BookingFilter struct {
	HostID   string
	Status   *BookingStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
