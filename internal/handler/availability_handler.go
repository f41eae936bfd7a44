package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/truecosmic/calbook-api/internal/dto"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
	"github.com/truecosmic/calbook-api/pkg/response"
)

type availabilityService interface {
	Slots(ctx context.Context, slug, date, timezone string) (*dto.AvailabilityResponse, bool, error)
}

// AvailabilityHandler exposes the public slot listing.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Slots godoc
// @Summary List bookable slots for a host on a date
// @Tags Availability
// @Produce json
// @Param slug path string true "Host slug"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param timezone query string false "IANA timezone for display, defaults to the host's"
// @Success 200 {object} response.Envelope
// @Router /availability/{slug} [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}

	result, hit, err := h.service.Slots(c.Request.Context(), c.Param("slug"), date, c.Query("timezone"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"cached": hit})
}
