package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/truecosmic/calbook-api/internal/dto"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
	"github.com/truecosmic/calbook-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, slug string, req dto.CreateBookingRequest) (*dto.BookingResponse, error)
	Get(ctx context.Context, id, token string) (*dto.BookingResponse, error)
	Cancel(ctx context.Context, id, token string) (*dto.BookingResponse, error)
	Reschedule(ctx context.Context, id, token string, newStart time.Time) (*dto.BookingResponse, error)
}

// BookingHandler exposes booking creation and the tokenized manage surface.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Book a slot with a host
// @Tags Bookings
// @Accept json
// @Produce json
// @Param slug path string true "Host slug"
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /hosts/{slug}/bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload"))
		return
	}

	booking, err := h.service.Create(c.Request.Context(), c.Param("slug"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Get godoc
// @Summary View a booking through its manage link
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Param token path string true "Manage token"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/{token} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Cancel godoc
// @Summary Cancel a booking through its manage link
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Param token path string true "Manage token"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/{token}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	booking, err := h.service.Cancel(c.Request.Context(), c.Param("id"), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Reschedule godoc
// @Summary Move a booking to a new start time
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param token path string true "Manage token"
// @Param payload body dto.RescheduleRequest true "New start time"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/{token}/reschedule [post]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload"))
		return
	}

	booking, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), c.Param("token"), req.Start)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
