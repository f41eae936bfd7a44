package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/truecosmic/calbook-api/internal/dto"
	"github.com/truecosmic/calbook-api/internal/models"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
	"github.com/truecosmic/calbook-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered agenda ready to stream to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a host's booking agenda as CSV or PDF.
type ExportService struct {
	hosts    hostStore
	bookings bookingLister
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(hosts hostStore, bookings bookingLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		hosts:    hosts,
		bookings: bookings,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Agenda renders the host's bookings in the requested format.
func (s *ExportService) Agenda(ctx context.Context, slug string, claims *models.HostClaims, format string, filter dto.BookingListFilter) (*ExportFile, error) {
	if claims == nil || !claims.CanManage(slug) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	host, err := s.hosts.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "host not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load host")
	}

	repoFilter := models.BookingFilter{
		HostID:   host.ID,
		From:     filter.From,
		To:       filter.To,
		Page:     1,
		PageSize: 200,
	}
	if filter.Status != "" {
		status := models.BookingStatus(filter.Status)
		repoFilter.Status = &status
	}
	bookings, _, err := s.bookings.List(ctx, repoFilter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list bookings")
	}

	dataset := s.dataset(host, bookings)
	stamp := time.Now().UTC().Format("20060102")

	switch strings.ToLower(format) {
	case "csv", "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("%s-agenda-%s.csv", host.Slug, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case "pdf":
		data, err := s.pdf.Render(dataset, fmt.Sprintf("%s agenda", host.DisplayName))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf")
		}
		return &ExportFile{
			Filename:    fmt.Sprintf("%s-agenda-%s.pdf", host.Slug, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *ExportService) dataset(host *models.Host, bookings []models.Booking) export.Dataset {
	loc, err := time.LoadLocation(host.Timezone)
	if err != nil {
		loc = time.UTC
	}

	headers := []string{"Date", "Start", "End", "Visitor", "Email", "Status", "Join Link"}
	rows := make([]map[string]string, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		start := b.StartUTC.In(loc)
		end := b.EndUTC.In(loc)
		row := map[string]string{
			"Date":    start.Format("2006-01-02"),
			"Start":   start.Format("15:04"),
			"End":     end.Format("15:04"),
			"Visitor": b.VisitorName,
			"Email":   b.VisitorEmail,
			"Status":  string(b.Status),
		}
		if b.JoinLink != nil {
			row["Join Link"] = *b.JoinLink
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
