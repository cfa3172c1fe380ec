package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/submission"
)

// CheckInConfig holds the check-in settings taken from config.Config.
type CheckInConfig struct {
	SearchLimit int
}

// CheckInRequest identifies the ticket to admit.  One of TicketID or
// InvoiceNo is required; the invoice may be in its printed form.  EventID,
// when set, must match the ticket's event.
type CheckInRequest struct {
	TicketID  uint64
	InvoiceNo string
	EventID   *uint64
	StaffID   uint64
}

// CheckInService runs the door-side operations.  A ticket moves from
// Issued to CheckedIn exactly once; the transition is delegated to the
// store's conditional update so it holds across server instances.
type CheckInService struct {
	cfg       CheckInConfig
	tickets   TicketStore
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewCheckInService wires the service.  publisher may be nil.
func NewCheckInService(cfg CheckInConfig, tickets TicketStore, publisher EventPublisher, log *zap.Logger) *CheckInService {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 50
	}
	if log == nil {
		log = zap.L()
	}
	return &CheckInService{cfg: cfg, tickets: tickets, publisher: publisher, log: log.Named("checkin"), now: time.Now}
}

// CheckIn admits the ticket.  Outcomes besides success: ErrNotFound,
// ErrWrongEvent, and *AlreadyCheckedInError carrying the stored time and
// name.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (model.Guest, error) {
	key, err := ticketKey(req.TicketID, req.InvoiceNo)
	if err != nil {
		return model.Guest{}, err
	}

	// A zero-row update followed by a read that finds an unchecked ticket
	// can only mean the row changed in between; one more attempt settles it.
	for attempt := 0; attempt < 2; attempt++ {
		at := s.now().UTC().Truncate(time.Millisecond)
		ok, err := s.tickets.MarkCheckedIn(ctx, key, req.EventID, at)
		if err != nil {
			return model.Guest{}, fmt.Errorf("s.tickets.MarkCheckedIn -> %w", err)
		}
		if ok {
			t, err := s.tickets.Get(ctx, key, nil)
			if err != nil {
				return model.Guest{}, fmt.Errorf("s.tickets.Get -> %w", err)
			}
			s.log.Info("checked in",
				zap.Uint64("ticket_id", t.ID), zap.String("invoice_no", t.InvoiceNo),
				zap.Uint64("event_id", t.EventID), zap.Uint64("staff_id", req.StaffID))
			s.publishCheckedIn(ctx, t, req.StaffID)
			return t.Guest(), nil
		}

		t, err := s.tickets.Get(ctx, key, req.EventID)
		switch {
		case err == nil && t.CheckedIn:
			return model.Guest{}, &AlreadyCheckedInError{Guest: t.Guest()}
		case err == nil:
			continue
		case errors.Is(err, repository.ErrNotFound):
			return model.Guest{}, s.missing(ctx, key, req.EventID)
		default:
			return model.Guest{}, fmt.Errorf("s.tickets.Get -> %w", err)
		}
	}
	return model.Guest{}, fmt.Errorf("check-in of %s did not settle", describe(key))
}

// Lookup returns the ticket without changing it.
func (s *CheckInService) Lookup(ctx context.Context, invoiceNo string, eventID *uint64) (model.Guest, error) {
	key, err := ticketKey(0, invoiceNo)
	if err != nil {
		return model.Guest{}, err
	}
	t, err := s.tickets.Get(ctx, key, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Guest{}, s.missing(ctx, key, eventID)
		}
		return model.Guest{}, fmt.Errorf("s.tickets.Get -> %w", err)
	}
	return t.Guest(), nil
}

// Search lists the event's tickets whose name or email contains query,
// ordered by name and capped at the configured limit.
func (s *CheckInService) Search(ctx context.Context, eventID uint64, query string) ([]model.Guest, error) {
	if err := validationErr(validation.Errors{
		"eventId": validation.Validate(eventID, validation.Required),
	}); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.Search(ctx, eventID, query, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("s.tickets.Search -> %w", err)
	}
	out := make([]model.Guest, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.Guest())
	}
	return out, nil
}

// missing tells a ticket of another event apart from no ticket at all.
func (s *CheckInService) missing(ctx context.Context, key repository.TicketKey, eventID *uint64) error {
	if eventID == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, describe(key))
	}
	t, err := s.tickets.Get(ctx, key, nil)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s belongs to event %d", ErrWrongEvent, describe(key), t.EventID)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, describe(key))
	default:
		return fmt.Errorf("s.tickets.Get -> %w", err)
	}
}

func (s *CheckInService) publishCheckedIn(ctx context.Context, t model.Ticket, staffID uint64) {
	if s.publisher == nil {
		return
	}
	at := ""
	if t.CheckInTime != nil {
		at = t.CheckInTime.UTC().Format(time.RFC3339Nano)
	}
	err := s.publisher.PublishTicketCheckedIn(context.WithoutCancel(ctx), queue.TicketCheckedInEvent{
		TicketID:    t.ID,
		InvoiceNo:   t.InvoiceNo,
		EventID:     t.EventID,
		Name:        t.Name,
		Quantity:    t.Quantity,
		StaffID:     staffID,
		CheckedInAt: at,
	})
	if err != nil {
		s.log.Warn("publish ticket.checked_in failed", zap.Uint64("ticket_id", t.ID), zap.Error(err))
	}
}

// ticketKey builds the store key, normalizing the invoice the same way
// ingestion does.
func ticketKey(id uint64, invoiceNo string) (repository.TicketKey, error) {
	key := repository.TicketKey{ID: id, InvoiceNo: submission.NormalizeInvoice(invoiceNo)}
	if key.IsZero() {
		return key, &ValidationError{Fields: validation.Errors{
			"invoiceNo": errors.New("ticketId or invoiceNo is required"),
		}}
	}
	return key, nil
}

func describe(k repository.TicketKey) string {
	if k.ID != 0 {
		return fmt.Sprintf("ticket %d", k.ID)
	}
	return "invoice " + k.InvoiceNo
}
