package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/truecosmic/calbook-api/internal/dto"
	"github.com/truecosmic/calbook-api/internal/models"
	"github.com/truecosmic/calbook-api/internal/service"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
	"github.com/truecosmic/calbook-api/pkg/response"
)

type hostService interface {
	List(ctx context.Context) ([]dto.HostSummary, error)
	Profile(ctx context.Context, slug string) (*dto.HostProfile, error)
	UpdateAvailability(ctx context.Context, slug string, claims *models.HostClaims, req dto.UpdateAvailabilityRequest) error
	Bookings(ctx context.Context, slug string, claims *models.HostClaims, filter dto.BookingListFilter) ([]dto.BookingListItem, *models.Pagination, error)
}

type exportService interface {
	Agenda(ctx context.Context, slug string, claims *models.HostClaims, format string, filter dto.BookingListFilter) (*service.ExportFile, error)
}

// HostHandler exposes the public host roster and the authenticated host surface.
type HostHandler struct {
	hosts   hostService
	exports exportService
}

// NewHostHandler constructs the handler.
func NewHostHandler(hosts hostService, exports exportService) *HostHandler {
	return &HostHandler{hosts: hosts, exports: exports}
}

// List godoc
// @Summary List bookable hosts
// @Tags Hosts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /hosts [get]
func (h *HostHandler) List(c *gin.Context) {
	hosts, err := h.hosts.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hosts, nil)
}

// Profile godoc
// @Summary Public host profile with working hours
// @Tags Hosts
// @Produce json
// @Param slug path string true "Host slug"
// @Success 200 {object} response.Envelope
// @Router /hosts/{slug} [get]
func (h *HostHandler) Profile(c *gin.Context) {
	profile, err := h.hosts.Profile(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateAvailability godoc
// @Summary Replace the host's availability policy
// @Tags Hosts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Host slug"
// @Param payload body dto.UpdateAvailabilityRequest true "Availability policy"
// @Success 204
// @Router /hosts/{slug}/availability [put]
func (h *HostHandler) UpdateAvailability(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload"))
		return
	}

	if err := h.hosts.UpdateAvailability(c.Request.Context(), c.Param("slug"), claims, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bookings godoc
// @Summary List the host's bookings
// @Tags Hosts
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Host slug"
// @Param status query string false "Filter by status (booked or cancelled)"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /hosts/{slug}/bookings [get]
func (h *HostHandler) Bookings(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := bookingFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.hosts.Bookings(c.Request.Context(), c.Param("slug"), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Download the host's agenda as CSV or PDF
// @Tags Hosts
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param slug path string true "Host slug"
// @Param format query string false "csv (default) or pdf"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200
// @Router /hosts/{slug}/bookings/export [get]
func (h *HostHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := bookingFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Agenda(c.Request.Context(), c.Param("slug"), claims, c.Query("format"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func bookingFilterFromQuery(c *gin.Context) (dto.BookingListFilter, error) {
	filter := dto.BookingListFilter{Status: c.Query("status")}

	from, err := parseDateQuery(c.Query("from"))
	if err != nil {
		return filter, err
	}
	to, err := parseDateQuery(c.Query("to"))
	if err != nil {
		return filter, err
	}
	filter.From = from
	filter.To = to

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "page must be an integer")
		}
		filter.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "page_size must be an integer")
		}
		filter.PageSize = size
	}
	return filter, nil
}

func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
