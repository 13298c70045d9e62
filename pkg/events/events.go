package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types emitted after a state change commits.
const (
	UserRegistered   = "user.registered"
	SwapRequested    = "swap.requested"
	SwapAccepted     = "swap.accepted"
	SwapRejected     = "swap.rejected"
	PaymentSubmitted = "payment.submitted"
	PaymentVerified  = "payment.verified"
	PaymentRejected  = "payment.rejected"
	BookDeleted      = "book.deleted"
	UserDeleted      = "user.deleted"
)

// Event is a domain notification. Subject is the ID of the entity that
// changed; ActorID is the user who changed it.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Subject    string            `json:"subject"`
	ActorID    string            `json:"actorId,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// New stamps an event with a fresh ID and the current time.
func New(eventType, subject, actorID string, data map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		ActorID:    actorID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error { return nil }

// Fanout publishes each event to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
