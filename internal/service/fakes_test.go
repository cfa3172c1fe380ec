package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/event-checkin/internal/formprovider"
	"github.com/iliyamo/event-checkin/internal/issuance"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
)

type fakeEvents struct {
	mu     sync.Mutex
	byID   map[uint64]model.Event
	nextID uint64
	stats  model.EventStats
}

func newFakeEvents() *fakeEvents { return &fakeEvents{byID: map[uint64]model.Event{}} }

func (f *fakeEvents) GetByFormID(_ context.Context, formID string) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.FormID == formID {
			return e, nil
		}
	}
	return model.Event{}, repository.ErrNotFound
}

func (f *fakeEvents) GetByID(_ context.Context, id uint64) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return e, nil
}

func (f *fakeEvents) Create(_ context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.FormID == e.FormID {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	e.ID = f.nextID
	f.byID[e.ID] = *e
	return nil
}

func (f *fakeEvents) UpdateTitle(_ context.Context, id uint64, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.byID[id]
	e.Title = title
	f.byID[id] = e
	return nil
}

func (f *fakeEvents) List(context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Event, 0, len(f.byID))
	for _, e := range f.byID {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEvents) Stats(_ context.Context, id uint64) (model.EventStats, error) {
	s := f.stats
	s.EventID = id
	return s, nil
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uint64]model.User
	nextID uint64
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uint64]model.User{}} }

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.IsActive = true
	f.byID[u.ID] = *u
	return nil
}

// fakeTickets models the store: MarkCheckedIn is a compare-and-set under
// one lock, like the conditional UPDATE.
type fakeTickets struct {
	mu          sync.Mutex
	byID        map[uint64]*model.Ticket
	nextID      uint64
	searchLimit int
	creates     int
}

func newFakeTickets() *fakeTickets { return &fakeTickets{byID: map[uint64]*model.Ticket{}} }

func (f *fakeTickets) find(key repository.TicketKey) *model.Ticket {
	if key.ID != 0 {
		return f.byID[key.ID]
	}
	for _, t := range f.byID {
		if t.InvoiceNo == key.InvoiceNo {
			return t
		}
	}
	return nil
}

func copyTicket(t *model.Ticket) model.Ticket {
	c := *t
	if t.CheckInTime != nil {
		at := *t.CheckInTime
		c.CheckInTime = &at
	}
	return c
}

func (f *fakeTickets) Get(_ context.Context, key repository.TicketKey, eventID *uint64) (model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.find(key)
	if t == nil || (eventID != nil && t.EventID != *eventID) {
		return model.Ticket{}, repository.ErrNotFound
	}
	return copyTicket(t), nil
}

func (f *fakeTickets) Create(_ context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(repository.TicketKey{InvoiceNo: t.InvoiceNo}) != nil {
		return repository.ErrDuplicate
	}
	f.nextID++
	f.creates++
	t.ID = f.nextID
	c := *t
	f.byID[t.ID] = &c
	return nil
}

func (f *fakeTickets) MarkCheckedIn(_ context.Context, key repository.TicketKey, eventID *uint64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.find(key)
	if t == nil || t.CheckedIn || (eventID != nil && t.EventID != *eventID) {
		return false, nil
	}
	t.CheckedIn = true
	t.CheckInTime = &at
	return true, nil
}

func (f *fakeTickets) Search(_ context.Context, eventID uint64, query string, limit int) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchLimit = limit
	q := strings.ToLower(query)
	var out []model.Ticket
	for _, t := range f.byID {
		if t.EventID != eventID {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Email), q) {
			out = append(out, copyTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTickets) put(t model.Ticket) model.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	f.byID[t.ID] = &t
	return t
}

func (f *fakeTickets) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeQR struct{ err error }

func (q fakeQR) Encode(content string) ([]byte, error) {
	if q.err != nil {
		return nil, q.err
	}
	return []byte("qr:" + content), nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []issuance.TicketEmail
	err  error
}

func (m *fakeMailer) SendTicket(_ context.Context, e issuance.TicketEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.err
}

func (m *fakeMailer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakePublisher struct {
	mu      sync.Mutex
	issued  []queue.TicketIssuedEvent
	checked []queue.TicketCheckedInEvent
}

func (p *fakePublisher) PublishTicketIssued(_ context.Context, ev queue.TicketIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued = append(p.issued, ev)
	return nil
}

func (p *fakePublisher) PublishTicketCheckedIn(_ context.Context, ev queue.TicketCheckedInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checked = append(p.checked, ev)
	return nil
}

type fakeForms struct {
	forms []formprovider.Form
	err   error
}

func (f fakeForms) ListForms(context.Context) ([]formprovider.Form, error) { return f.forms, f.err }
