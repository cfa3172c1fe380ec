package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// SyncResult counts what a provider sync changed.
type SyncResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// EventService lists events, reports door stats and pre-syncs events from
// the form provider.
type EventService struct {
	events   EventStore
	forms    FormLister
	duration time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewEventService wires the service.  forms may be nil, in which case
// SyncFromProvider fails.
func NewEventService(events EventStore, forms FormLister, defaultDuration time.Duration, log *zap.Logger) *EventService {
	if defaultDuration <= 0 {
		defaultDuration = 7 * 24 * time.Hour
	}
	if log == nil {
		log = zap.L()
	}
	return &EventService{events: events, forms: forms, duration: defaultDuration, log: log.Named("events"), now: time.Now}
}

func (s *EventService) List(ctx context.Context) ([]model.Event, error) {
	evs, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.events.List -> %w", err)
	}
	return evs, nil
}

// Stats returns door progress for an existing event.
func (s *EventService) Stats(ctx context.Context, eventID uint64) (model.EventStats, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.EventStats{}, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
		}
		return model.EventStats{}, fmt.Errorf("s.events.GetByID -> %w", err)
	}
	st, err := s.events.Stats(ctx, eventID)
	if err != nil {
		return model.EventStats{}, fmt.Errorf("s.events.Stats -> %w", err)
	}
	return st, nil
}

// SyncFromProvider creates events for unseen forms and refreshes the
// titles of known ones.
func (s *EventService) SyncFromProvider(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	if s.forms == nil {
		return res, ErrProviderNotConfigured
	}
	forms, err := s.forms.ListForms(ctx)
	if err != nil {
		return res, fmt.Errorf("s.forms.ListForms -> %w", err)
	}
	for _, f := range forms {
		title := eventTitle(strings.TrimSpace(f.Title), f.ID)
		ev, err := s.events.GetByFormID(ctx, f.ID)
		switch {
		case err == nil:
			if ev.Title == title {
				res.Unchanged++
				continue
			}
			if err := s.events.UpdateTitle(ctx, ev.ID, title); err != nil {
				return res, fmt.Errorf("s.events.UpdateTitle -> %w", err)
			}
			res.Updated++
		case errors.Is(err, repository.ErrNotFound):
			start := s.now().UTC()
			ev := model.Event{FormID: f.ID, Title: title, StartTime: start, EndTime: start.Add(s.duration)}
			if err := s.events.Create(ctx, &ev); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					res.Unchanged++
					continue
				}
				return res, fmt.Errorf("s.events.Create -> %w", err)
			}
			res.Created++
		default:
			return res, fmt.Errorf("s.events.GetByFormID -> %w", err)
		}
	}
	s.log.Info("provider sync done",
		zap.Int("created", res.Created), zap.Int("updated", res.Updated), zap.Int("unchanged", res.Unchanged))
	return res, nil
}
