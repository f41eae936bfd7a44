package calendar

import (
	"context"
	"time"

	"github.com/truecosmic/calbook-api/internal/scheduling"
)

// Event is the provider-neutral payload for creating an external event.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// CreatedEvent is the provider's reference for a created event.
type CreatedEvent struct {
	ID       string
	JoinLink string
}

// Adapter is the narrow surface the scheduling engine consumes. Every call is
// scoped to one host's opaque credential blob; the engine never inspects it.
// Read failures surface as ErrUpstreamUnavailable, write rejections as
// ErrUpstream, so an empty busy list is never confusable with a failed query.
type Adapter interface {
	FreeBusy(ctx context.Context, credential string, windowStart, windowEnd time.Time) ([]scheduling.Interval, error)
	CreateEvent(ctx context.Context, credential string, event Event) (*CreatedEvent, error)
	CancelEvent(ctx context.Context, credential string, eventID string) error
	PatchEvent(ctx context.Context, credential string, eventID string, start, end time.Time) error
}
