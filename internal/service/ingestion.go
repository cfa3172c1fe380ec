package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/issuance"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/submission"
	"github.com/iliyamo/event-checkin/internal/utils"
)

// IngestionConfig holds the ingestion settings taken from config.Config.
type IngestionConfig struct {
	DefaultEventDuration time.Duration // end - start for lazily created events
	IssueTimeout         time.Duration // bound on QR + email per new ticket
	BcryptCost           int           // cost for placeholder credentials
}

// IngestionDeps are the collaborators of IngestionService.
type IngestionDeps struct {
	Normalizer *submission.Normalizer
	Events     EventStore
	Users      UserStore
	Tickets    TicketStore
	QR         QRGenerator
	Mailer     Mailer
	Publisher  EventPublisher
	Logger     *zap.Logger
}

// IngestResult describes what one webhook delivery did.
type IngestResult struct {
	Ticket  model.Ticket
	Event   model.Event
	Created bool // false when the invoice was already ingested
	// IssuanceErr is non-nil when the ticket was stored but QR or email
	// failed.  It satisfies errors.Is(err, ErrDependencyFailure).
	IssuanceErr error
	Synthetic   bool
}

// IngestionService turns webhook deliveries into Event/User/Ticket rows and
// issues each new ticket exactly once.  Redelivery of the same invoice is a
// no-op.
type IngestionService struct {
	cfg  IngestionConfig
	deps IngestionDeps
	log  *zap.Logger
	now  func() time.Time
}

// NewIngestionService wires the service.
func NewIngestionService(cfg IngestionConfig, deps IngestionDeps) *IngestionService {
	if cfg.DefaultEventDuration <= 0 {
		cfg.DefaultEventDuration = 7 * 24 * time.Hour
	}
	if cfg.IssueTimeout <= 0 {
		cfg.IssueTimeout = 15 * time.Second
	}
	log := deps.Logger
	if log == nil {
		log = zap.L()
	}
	return &IngestionService{cfg: cfg, deps: deps, log: log.Named("ingestion"), now: time.Now}
}

// Ingest parses a JSON webhook body and ingests it.
func (s *IngestionService) Ingest(ctx context.Context, body []byte) (IngestResult, error) {
	sub, err := s.deps.Normalizer.Parse(body)
	if err != nil {
		return IngestResult{}, err
	}
	return s.IngestSubmission(ctx, sub)
}

// IngestPayload ingests an already decoded payload, e.g. from a
// form-encoded webhook.
func (s *IngestionService) IngestPayload(ctx context.Context, payload map[string]any) (IngestResult, error) {
	return s.IngestSubmission(ctx, s.deps.Normalizer.Normalize(payload))
}

// IngestSubmission stores sub.  It returns a ValidationError without
// writing anything when email, formId or invoiceNo is empty.
func (s *IngestionService) IngestSubmission(ctx context.Context, sub model.ParsedSubmission) (IngestResult, error) {
	if err := validateSubmission(sub); err != nil {
		return IngestResult{}, err
	}
	log := s.log.With(zap.String("form_id", sub.FormID), zap.String("invoice_no", sub.InvoiceNo))
	if sub.EnvelopeInvalid {
		log.Warn("envelope field is not valid JSON, used raw payload fields")
	}
	if sub.SyntheticInvoice {
		log.Warn("submission has no invoice number, using synthetic id", zap.String("email", sub.Email))
	}

	ev, err := s.ensureEvent(ctx, sub)
	if err != nil {
		return IngestResult{}, err
	}
	user, err := s.ensureUser(ctx, sub)
	if err != nil {
		return IngestResult{}, err
	}

	key := repository.TicketKey{InvoiceNo: sub.InvoiceNo}
	existing, err := s.deps.Tickets.Get(ctx, key, nil)
	switch {
	case err == nil:
		log.Info("invoice already ingested, skipping", zap.Uint64("ticket_id", existing.ID))
		return IngestResult{Ticket: existing, Event: ev, Synthetic: sub.SyntheticInvoice}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return IngestResult{}, fmt.Errorf("s.deps.Tickets.Get -> %w", err)
	}

	t := model.Ticket{
		InvoiceNo:      sub.InvoiceNo,
		EventID:        ev.ID,
		UserID:         user.ID,
		Name:           sub.Name,
		Email:          sub.Email,
		Phone:          sub.Phone,
		Church:         sub.Church,
		Quantity:       sub.Quantity,
		ProductDetails: sub.ProductDetails,
		TotalAmount:    sub.TotalAmount,
		EventDate:      sub.EventDate,
		ChooseYour:     sub.ChooseYour,
	}
	if err := s.deps.Tickets.Create(ctx, &t); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return IngestResult{}, fmt.Errorf("s.deps.Tickets.Create -> %w", err)
		}
		// lost the race against a concurrent delivery of the same invoice
		existing, err := s.deps.Tickets.Get(ctx, key, nil)
		if err != nil {
			return IngestResult{}, fmt.Errorf("s.deps.Tickets.Get -> %w", err)
		}
		log.Info("invoice created concurrently, skipping", zap.Uint64("ticket_id", existing.ID))
		return IngestResult{Ticket: existing, Event: ev, Synthetic: sub.SyntheticInvoice}, nil
	}

	res := IngestResult{Ticket: t, Event: ev, Created: true, Synthetic: sub.SyntheticInvoice}
	res.IssuanceErr = s.issue(ctx, ev, t)
	status := "sent"
	if res.IssuanceErr != nil {
		status = "delayed"
		log.Error("ticket stored but issuance failed", zap.Uint64("ticket_id", t.ID), zap.Error(res.IssuanceErr))
	} else {
		log.Info("ticket issued", zap.Uint64("ticket_id", t.ID), zap.Uint64("event_id", ev.ID))
	}

	if s.deps.Publisher != nil {
		err := s.deps.Publisher.PublishTicketIssued(context.WithoutCancel(ctx), queue.TicketIssuedEvent{
			TicketID:  t.ID,
			InvoiceNo: t.InvoiceNo,
			EventID:   ev.ID,
			FormID:    ev.FormID,
			Email:     t.Email,
			Name:      t.Name,
			Quantity:  t.Quantity,
			Synthetic: sub.SyntheticInvoice,
			Issuance:  status,
			IssuedAt:  s.now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Warn("publish ticket.issued failed", zap.Error(err))
		}
	}
	return res, nil
}

func validateSubmission(sub model.ParsedSubmission) error {
	return validationErr(validation.Errors{
		"email":     validation.Validate(sub.Email, validation.Required, validation.Length(0, 255)),
		"formId":    validation.Validate(sub.FormID, validation.Required, validation.Length(0, 64)),
		"invoiceNo": validation.Validate(sub.InvoiceNo, validation.Required, validation.Length(0, 64)),
	})
}

// ensureEvent finds the event for the submission's form or creates it.
func (s *IngestionService) ensureEvent(ctx context.Context, sub model.ParsedSubmission) (model.Event, error) {
	ev, err := s.deps.Events.GetByFormID(ctx, sub.FormID)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Event{}, fmt.Errorf("s.deps.Events.GetByFormID -> %w", err)
	}
	start := s.now().UTC()
	ev = model.Event{
		FormID:    sub.FormID,
		Title:     eventTitle(sub.FormTitle, sub.FormID),
		StartTime: start,
		EndTime:   start.Add(s.cfg.DefaultEventDuration),
	}
	if err := s.deps.Events.Create(ctx, &ev); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return model.Event{}, fmt.Errorf("s.deps.Events.Create -> %w", err)
		}
		if ev, err = s.deps.Events.GetByFormID(ctx, sub.FormID); err != nil {
			return model.Event{}, fmt.Errorf("s.deps.Events.GetByFormID -> %w", err)
		}
	}
	return ev, nil
}

// ensureUser finds the registrant by email or creates a GUEST account with
// a placeholder credential.
func (s *IngestionService) ensureUser(ctx context.Context, sub model.ParsedSubmission) (model.User, error) {
	u, err := s.deps.Users.GetByEmail(ctx, sub.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("s.deps.Users.GetByEmail -> %w", err)
	}
	hash, err := utils.PlaceholderHash(s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("utils.PlaceholderHash -> %w", err)
	}
	u = model.User{Email: sub.Email, Name: sub.Name, PasswordHash: hash, Role: model.RoleGuest}
	if err := s.deps.Users.Create(ctx, &u); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, fmt.Errorf("s.deps.Users.Create -> %w", err)
		}
		if u, err = s.deps.Users.GetByEmail(ctx, sub.Email); err != nil {
			return model.User{}, fmt.Errorf("s.deps.Users.GetByEmail -> %w", err)
		}
	}
	return u, nil
}

// issue renders the QR code and sends the confirmation email.  It runs
// detached from the request's cancellation but bounded by IssueTimeout.
func (s *IngestionService) issue(ctx context.Context, ev model.Event, t model.Ticket) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.IssueTimeout)
	defer cancel()

	png, err := s.deps.QR.Encode(t.InvoiceNo)
	if err != nil {
		return &DependencyError{Stage: "qr", Err: err}
	}
	err = s.deps.Mailer.SendTicket(ctx, issuance.TicketEmail{
		To:         t.Email,
		Name:       t.Name,
		EventTitle: ev.Title,
		EventDate:  t.EventDate,
		InvoiceNo:  t.InvoiceNo,
		QRCode:     png,
	})
	if err != nil {
		return &DependencyError{Stage: "email", Err: err}
	}
	return nil
}

func eventTitle(title, formID string) string {
	if title != "" {
		return title
	}
	return "Form " + formID
}
