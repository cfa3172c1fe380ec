package service

import (
	"context"
	"time"

	"github.com/iliyamo/event-checkin/internal/formprovider"
	"github.com/iliyamo/event-checkin/internal/issuance"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// EventStore is the subset of repository.EventRepo the services use.
type EventStore interface {
	GetByFormID(ctx context.Context, formID string) (model.Event, error)
	GetByID(ctx context.Context, id uint64) (model.Event, error)
	Create(ctx context.Context, e *model.Event) error
	UpdateTitle(ctx context.Context, id uint64, title string) error
	List(ctx context.Context) ([]model.Event, error)
	Stats(ctx context.Context, eventID uint64) (model.EventStats, error)
}

// UserStore is the subset of repository.UserRepo the services use.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Create(ctx context.Context, u *model.User) error
}

// TicketStore is the subset of repository.TicketRepo the services use.
// MarkCheckedIn must be a single atomic conditional update.
type TicketStore interface {
	Get(ctx context.Context, key repository.TicketKey, eventID *uint64) (model.Ticket, error)
	Create(ctx context.Context, t *model.Ticket) error
	MarkCheckedIn(ctx context.Context, key repository.TicketKey, eventID *uint64, at time.Time) (bool, error)
	Search(ctx context.Context, eventID uint64, query string, limit int) ([]model.Ticket, error)
}

// QRGenerator encodes a string as a scannable image.
type QRGenerator interface {
	Encode(content string) ([]byte, error)
}

// Mailer delivers the confirmation email.
type Mailer interface {
	SendTicket(ctx context.Context, e issuance.TicketEmail) error
}

// EventPublisher publishes domain events.  Failures are logged by the
// caller and never change an operation's outcome.
type EventPublisher interface {
	PublishTicketIssued(ctx context.Context, ev queue.TicketIssuedEvent) error
	PublishTicketCheckedIn(ctx context.Context, ev queue.TicketCheckedInEvent) error
}

// FormLister lists the provider's forms for event pre-sync.
type FormLister interface {
	ListForms(ctx context.Context) ([]formprovider.Form, error)
}
