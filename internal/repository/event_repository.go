package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-checkin/internal/model"
)

const eventColumns = "id,form_id,title,start_time,end_time,created_at,updated_at"

// EventRepo provides access to the events table.  Events are keyed by the
// provider's form id, which is unique.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to db.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// GetByFormID returns the event for formID or ErrNotFound.
func (r *EventRepo) GetByFormID(ctx context.Context, formID string) (model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE form_id=? LIMIT 1", formID).
		Scan(&e.ID, &e.FormID, &e.Title, &e.StartTime, &e.EndTime, &e.CreatedAt, &e.UpdatedAt)
	return e, mapErr(err)
}

// GetByID returns the event with the given id or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id=? LIMIT 1", id).
		Scan(&e.ID, &e.FormID, &e.Title, &e.StartTime, &e.EndTime, &e.CreatedAt, &e.UpdatedAt)
	return e, mapErr(err)
}

// Create inserts e and sets its ID.  Two webhooks for an unseen form can
// race here; the loser gets ErrDuplicate and should re-read by form id.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO events (form_id, title, start_time, end_time) VALUES (?,?,?,?)",
		e.FormID, e.Title, e.StartTime.UTC(), e.EndTime.UTC())
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// UpdateTitle renames an event.  Missing events are not an error.
func (r *EventRepo) UpdateTitle(ctx context.Context, id uint64, title string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE events SET title=? WHERE id=?", title, id)
	return err
}

// List returns all events, newest first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY start_time DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.FormID, &e.Title, &e.StartTime, &e.EndTime, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates ticket counts for one event.  An event without tickets
// reports zeros.
func (r *EventRepo) Stats(ctx context.Context, eventID uint64) (model.EventStats, error) {
	s := model.EventStats{EventID: eventID}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(checked_in), 0),
		       COALESCE(SUM(quantity), 0)
		  FROM tickets WHERE event_id=?`, eventID).
		Scan(&s.Total, &s.CheckedIn, &s.Guests)
	if err != nil {
		return s, err
	}
	s.Remaining = s.Total - s.CheckedIn
	return s, nil
}
