package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/truecosmic/calbook-api/internal/dto"
	internalmiddleware "github.com/truecosmic/calbook-api/internal/middleware"
	"github.com/truecosmic/calbook-api/internal/models"
	"github.com/truecosmic/calbook-api/internal/service"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
)

const manageToken = "a3f8c2d94b1e7f60a3f8c2d94b1e7f60"

type availabilityServiceMock struct{}

func (m *availabilityServiceMock) Slots(ctx context.Context, slug, date, timezone string) (*dto.AvailabilityResponse, bool, error) {
	if slug != "jane-doe" {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "host not found")
	}
	return &dto.AvailabilityResponse{
		HostSlug:        slug,
		Date:            date,
		Timezone:        "America/New_York",
		DurationMinutes: 30,
		Slots: []dto.Slot{{
			Start:      time.Date(2026, 9, 7, 13, 0, 0, 0, time.UTC),
			End:        time.Date(2026, 9, 7, 13, 30, 0, 0, time.UTC),
			LocalLabel: "09:00",
			LocalDate:  "2026-09-07",
		}},
	}, false, nil
}

type bookingServiceMock struct{}

func (m *bookingServiceMock) sample(status models.BookingStatus) *dto.BookingResponse {
	return &dto.BookingResponse{
		ID:          "bk-1",
		HostSlug:    "jane-doe",
		HostName:    "Jane Doe",
		VisitorName: "Sam Visitor",
		Start:       time.Date(2026, 9, 7, 13, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 9, 7, 13, 30, 0, 0, time.UTC),
		Timezone:    "Europe/London",
		Status:      status,
		JoinLink:    "https://meet.example/abc",
	}
}

func (m *bookingServiceMock) Create(ctx context.Context, slug string, req dto.CreateBookingRequest) (*dto.BookingResponse, error) {
	if slug != "jane-doe" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "host not found")
	}
	resp := m.sample(models.BookingStatusBooked)
	resp.ManageToken = manageToken
	return resp, nil
}

func (m *bookingServiceMock) Get(ctx context.Context, id, token string) (*dto.BookingResponse, error) {
	if id != "bk-1" || token != manageToken {
		return nil, appErrors.Clone(appErrors.ErrInvalidLink, "")
	}
	return m.sample(models.BookingStatusBooked), nil
}

func (m *bookingServiceMock) Cancel(ctx context.Context, id, token string) (*dto.BookingResponse, error) {
	if id != "bk-1" || token != manageToken {
		return nil, appErrors.Clone(appErrors.ErrInvalidLink, "")
	}
	return m.sample(models.BookingStatusCancelled), nil
}

func (m *bookingServiceMock) Reschedule(ctx context.Context, id, token string, newStart time.Time) (*dto.BookingResponse, error) {
	if id != "bk-1" || token != manageToken {
		return nil, appErrors.Clone(appErrors.ErrInvalidLink, "")
	}
	resp := m.sample(models.BookingStatusBooked)
	resp.Start = newStart
	resp.End = newStart.Add(30 * time.Minute)
	return resp, nil
}

type hostServiceMock struct{}

func (m *hostServiceMock) List(ctx context.Context) ([]dto.HostSummary, error) {
	return []dto.HostSummary{{Slug: "jane-doe", DisplayName: "Jane Doe", Timezone: "America/New_York", Connected: true}}, nil
}

func (m *hostServiceMock) Profile(ctx context.Context, slug string) (*dto.HostProfile, error) {
	if slug != "jane-doe" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "host not found")
	}
	return &dto.HostProfile{Slug: slug, DisplayName: "Jane Doe", Hours: map[string][]string{"mon": {"09:00-17:00"}}}, nil
}

func (m *hostServiceMock) UpdateAvailability(ctx context.Context, slug string, claims *models.HostClaims, req dto.UpdateAvailabilityRequest) error {
	if !claims.CanManage(slug) {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return nil
}

func (m *hostServiceMock) Bookings(ctx context.Context, slug string, claims *models.HostClaims, filter dto.BookingListFilter) ([]dto.BookingListItem, *models.Pagination, error) {
	if !claims.CanManage(slug) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return []dto.BookingListItem{{ID: "bk-1", VisitorName: "Sam Visitor", Status: models.BookingStatusBooked}},
		&models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

type exportServiceMock struct{}

func (m *exportServiceMock) Agenda(ctx context.Context, slug string, claims *models.HostClaims, format string, filter dto.BookingListFilter) (*service.ExportFile, error) {
	if !claims.CanManage(slug) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return &service.ExportFile{Filename: "jane-doe-agenda-20260907.csv", ContentType: "text/csv", Data: []byte("Date,Start\n")}, nil
}

func buildBookingRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if slug := c.GetHeader("X-Test-Host"); slug != "" {
			c.Set(internalmiddleware.ContextHostKey, &models.HostClaims{HostID: "host-1", Slug: slug})
		}
		c.Next()
	})

	availabilityHandler := NewAvailabilityHandler(&availabilityServiceMock{})
	bookingHandler := NewBookingHandler(&bookingServiceMock{})
	hostHandler := NewHostHandler(&hostServiceMock{}, &exportServiceMock{})

	router.GET("/hosts", hostHandler.List)
	router.GET("/hosts/:slug", hostHandler.Profile)
	router.PUT("/hosts/:slug/availability", hostHandler.UpdateAvailability)
	router.GET("/hosts/:slug/bookings", hostHandler.Bookings)
	router.GET("/hosts/:slug/bookings/export", hostHandler.Export)
	router.GET("/availability/:slug", availabilityHandler.Slots)
	router.POST("/hosts/:slug/bookings", bookingHandler.Create)
	router.GET("/bookings/:id/:token", bookingHandler.Get)
	router.POST("/bookings/:id/:token/cancel", bookingHandler.Cancel)
	router.POST("/bookings/:id/:token/reschedule", bookingHandler.Reschedule)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestBookingRoutes(t *testing.T) {
	router := buildBookingRouter()

	t.Run("availability success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/availability/jane-doe?date=2026-09-07", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"local_label":"09:00"`)
	})

	t.Run("availability missing date", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/availability/jane-doe", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("availability unknown host", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/availability/nobody?date=2026-09-07", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("booking create", func(t *testing.T) {
		payload := `{"name":"Sam Visitor","email":"sam@example.com","start":"2026-09-07T13:00:00Z","timezone":"Europe/London"}`
		req, _ := http.NewRequest(http.MethodPost, "/hosts/jane-doe/bookings", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"manage_token":"`+manageToken+`"`)
	})

	t.Run("booking create rejects bad payload", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/hosts/jane-doe/bookings", bytes.NewBufferString(`{"name":"Sam"}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("booking manage view", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/bookings/bk-1/"+manageToken, nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"join_link"`)
	})

	t.Run("booking bad token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/bookings/bk-1/wrong", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("booking cancel", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/bookings/bk-1/"+manageToken+"/cancel", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"cancelled"`)
	})

	t.Run("booking reschedule", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/bookings/bk-1/"+manageToken+"/reschedule",
			bytes.NewBufferString(`{"start":"2026-09-07T14:00:00Z"}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"2026-09-07T14:00:00Z"`)
	})

	t.Run("host roster", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/hosts", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"jane-doe"`)
	})

	t.Run("availability update unauthorized", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, "/hosts/jane-doe/availability", bytes.NewBufferString(`{"hours":{}}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("availability update forbidden for other host", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, "/hosts/jane-doe/availability", availabilityPayload())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Host", "other-host")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("availability update success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, "/hosts/jane-doe/availability", availabilityPayload())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Host", "jane-doe")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("host bookings", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/hosts/jane-doe/bookings?status=booked", nil)
		req.Header.Set("X-Test-Host", "jane-doe")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"pagination"`)
	})

	t.Run("host bookings rejects bad date", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/hosts/jane-doe/bookings?from=tomorrow", nil)
		req.Header.Set("X-Test-Host", "jane-doe")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("host export", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/hosts/jane-doe/bookings/export?format=csv", nil)
		req.Header.Set("X-Test-Host", "jane-doe")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, "text/csv", resp.Header().Get("Content-Type"))
		require.Contains(t, resp.Header().Get("Content-Disposition"), "jane-doe-agenda")
	})
}

func availabilityPayload() *bytes.Buffer {
	return bytes.NewBufferString(`{"hours":{"mon":[["09:00","17:00"]]},"slot_duration_minutes":30}`)
}
