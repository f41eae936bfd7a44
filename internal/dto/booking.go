package dto

import (
	"time"

	"github.com/truecosmic/calbook-api/internal/models"
)

// CreateBookingRequest is the public booking form.
type CreateBookingRequest struct {
	Name     string    `json:"name" binding:"required" validate:"required,min=1,max=200"`
	Email    string    `json:"email" binding:"required" validate:"required,email"`
	Start    time.Time `json:"start" binding:"required" validate:"required"`
	Timezone string    `json:"timezone" binding:"required" validate:"required"`
}

// RescheduleRequest carries the replacement start instant.
type RescheduleRequest struct {
	Start time.Time `json:"start" binding:"required" validate:"required"`
}

// BookingResponse is the visitor-facing view of a booking. The manage token is
// only populated on create, where the visitor needs the self-service link.
type BookingResponse struct {
	ID          string               `json:"id"`
	HostSlug    string               `json:"host_slug"`
	HostName    string               `json:"host_name"`
	VisitorName string               `json:"visitor_name"`
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	Timezone    string               `json:"timezone"`
	LocalLabel  string               `json:"local_label"`
	Status      models.BookingStatus `json:"status"`
	JoinLink    string               `json:"join_link,omitempty"`
	ManageToken string               `json:"manage_token,omitempty"`
}

// BookingListItem is one row of the host dashboard.
type BookingListItem struct {
	ID           string               `json:"id"`
	VisitorName  string               `json:"visitor_name"`
	VisitorEmail string               `json:"visitor_email"`
	Start        time.Time            `json:"start"`
	End          time.Time            `json:"end"`
	Timezone     string               `json:"timezone"`
	Status       models.BookingStatus `json:"status"`
	JoinLink     string               `json:"join_link,omitempty"`
}

// BookingListFilter captures dashboard query parameters.
type BookingListFilter struct {
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
