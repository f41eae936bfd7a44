package calendar

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/truecosmic/calbook-api/internal/scheduling"
	"github.com/truecosmic/calbook-api/pkg/config"
	appErrors "github.com/truecosmic/calbook-api/pkg/errors"
)

// GoogleAdapter talks to the Google Calendar API with per-host OAuth tokens.
type GoogleAdapter struct {
	oauth      oauth2.Config
	calendarID string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewGoogleAdapter constructs the adapter from service configuration.
func NewGoogleAdapter(cfg config.GoogleConfig, logger *zap.Logger) *GoogleAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleAdapter{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{gcal.CalendarScope},
		},
		calendarID: calendarID,
		timeout:    timeout,
		logger:     logger,
	}
}

func (g *GoogleAdapter) service(ctx context.Context, credential string) (*gcal.Service, error) {
	if credential == "" {
		return nil, fmt.Errorf("calendar credential missing")
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(credential), &token); err != nil {
		return nil, fmt.Errorf("decode calendar credential: %w", err)
	}
	// Token refresh happens inside the token source; the stored blob stays
	// opaque to everything above this adapter.
	source := g.oauth.TokenSource(ctx, &token)
	return gcal.NewService(ctx, option.WithTokenSource(source))
}

// FreeBusy queries busy intervals for the window.
func (g *GoogleAdapter) FreeBusy(ctx context.Context, credential string, windowStart, windowEnd time.Time) ([]scheduling.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	svc, err := g.service(ctx, credential)
	if err != nil {
		return nil, wrapAs(err, appErrors.ErrUpstreamUnavailable)
	}

	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: windowStart.UTC().Format(time.RFC3339),
		TimeMax: windowEnd.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, wrapAs(err, appErrors.ErrUpstreamUnavailable)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	busy := make([]scheduling.Interval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			continue
		}
		busy = append(busy, scheduling.Interval{Start: start.UTC(), End: end.UTC()})
	}
	return busy, nil
}

// CreateEvent inserts an event with a Meet conference and invites attendees.
func (g *GoogleAdapter) CreateEvent(ctx context.Context, credential string, event Event) (*CreatedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	svc, err := g.service(ctx, credential)
	if err != nil {
		return nil, wrapAs(err, appErrors.ErrUpstream)
	}

	attendees := make([]*gcal.EventAttendee, 0, len(event.Attendees))
	for _, email := range event.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: email})
	}

	payload := &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       &gcal.EventDateTime{DateTime: event.Start.UTC().Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: event.End.UTC().Format(time.RFC3339)},
		Attendees:   attendees,
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             fmt.Sprintf("calbook-%d", time.Now().UnixNano()),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	created, err := svc.Events.Insert(g.calendarID, payload).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapAs(err, appErrors.ErrUpstream)
	}

	result := &CreatedEvent{ID: created.Id}
	if created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				result.JoinLink = ep.Uri
				break
			}
		}
	}
	return result, nil
}

// CancelEvent deletes the external event. An event that is already gone
// counts as cancelled.
func (g *GoogleAdapter) CancelEvent(ctx context.Context, credential string, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	svc, err := g.service(ctx, credential)
	if err != nil {
		return wrapAs(err, appErrors.ErrUpstream)
	}

	err = svc.Events.Delete(g.calendarID, eventID).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if stderrors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return nil
		}
		return wrapAs(err, appErrors.ErrUpstream)
	}
	return nil
}

// PatchEvent moves the external event to new start/end instants.
func (g *GoogleAdapter) PatchEvent(ctx context.Context, credential string, eventID string, start, end time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	svc, err := g.service(ctx, credential)
	if err != nil {
		return wrapAs(err, appErrors.ErrUpstream)
	}

	_, err = svc.Events.Patch(g.calendarID, eventID, &gcal.Event{
		Start: &gcal.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:   &gcal.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
	}).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return wrapAs(err, appErrors.ErrUpstream)
	}
	return nil
}

func wrapAs(err error, template *appErrors.Error) *appErrors.Error {
	return appErrors.Wrap(err, template.Code, template.Status, template.Message)
}
