package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/event-checkin/internal/model"
)

const ticketColumns = `id, invoice_no, event_id, user_id, name, email, phone, church, quantity,
	product_details, total_amount, event_date, choose_your, checked_in, check_in_time,
	created_at, updated_at`

// TicketKey identifies a ticket either by primary key or by canonical
// invoice number.  ID wins when both are set.
type TicketKey struct {
	ID        uint64
	InvoiceNo string
}

// IsZero reports whether neither identifier is set.
func (k TicketKey) IsZero() bool { return k.ID == 0 && k.InvoiceNo == "" }

func (k TicketKey) where() (string, any) {
	if k.ID != 0 {
		return "id = ?", k.ID
	}
	return "invoice_no = ?", k.InvoiceNo
}

// TicketRepo provides access to the tickets table.  The unique key on
// invoice_no is what makes ingestion idempotent, and MarkCheckedIn is the
// only statement that ever flips checked_in.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to db.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// Create inserts t and sets its ID.  An existing invoice number yields
// ErrDuplicate; the caller treats that as "already ingested".
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets
		(invoice_no, event_id, user_id, name, email, phone, church, quantity,
		 product_details, total_amount, event_date, choose_your)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		t.InvoiceNo, t.EventID, t.UserID, t.Name, t.Email, t.Phone, t.Church, t.Quantity,
		t.ProductDetails, t.TotalAmount, t.EventDate, t.ChooseYour)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.CheckedIn = false
	t.CheckInTime = nil
	return nil
}

// Get returns the ticket matching key.  When eventID is non-nil the ticket
// must also belong to that event, otherwise ErrNotFound is returned.
func (r *TicketRepo) Get(ctx context.Context, key TicketKey, eventID *uint64) (model.Ticket, error) {
	cond, arg := key.where()
	q := "SELECT " + ticketColumns + " FROM tickets WHERE " + cond
	args := []any{arg}
	if eventID != nil {
		q += " AND event_id = ?"
		args = append(args, *eventID)
	}
	q += " LIMIT 1"
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, args...))
	return t, mapErr(err)
}

// MarkCheckedIn performs the Issued -> CheckedIn transition as a single
// conditional update.  It reports whether this call made the transition;
// false means the ticket is missing, already checked in, or (with eventID
// set) belongs to another event.  Concurrent callers for the same ticket
// see true exactly once.
func (r *TicketRepo) MarkCheckedIn(ctx context.Context, key TicketKey, eventID *uint64, at time.Time) (bool, error) {
	cond, arg := key.where()
	q := "UPDATE tickets SET checked_in = 1, check_in_time = ? WHERE " + cond + " AND checked_in = 0"
	args := []any{at.UTC(), arg}
	if eventID != nil {
		q += " AND event_id = ?"
		args = append(args, *eventID)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Search returns tickets of eventID whose name or email contains query,
// case-insensitively, ordered by name and capped at limit.  An empty query
// lists the event's tickets.
func (r *TicketRepo) Search(ctx context.Context, eventID uint64, query string, limit int) ([]model.Ticket, error) {
	q := "SELECT " + ticketColumns + " FROM tickets WHERE event_id = ?"
	args := []any{eventID}
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q += " AND (LOWER(name) LIKE ? OR LOWER(email) LIKE ?)"
		args = append(args, pattern, pattern)
	}
	q += " ORDER BY name ASC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(s rowScanner) (model.Ticket, error) {
	var (
		t  model.Ticket
		at sql.NullTime
	)
	err := s.Scan(&t.ID, &t.InvoiceNo, &t.EventID, &t.UserID, &t.Name, &t.Email, &t.Phone, &t.Church,
		&t.Quantity, &t.ProductDetails, &t.TotalAmount, &t.EventDate, &t.ChooseYour,
		&t.CheckedIn, &at, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if at.Valid {
		ts := at.Time.UTC()
		t.CheckInTime = &ts
	}
	return t, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
