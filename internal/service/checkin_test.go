package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/model"
)

var doorOpen = time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC)

func newCheckInFixture() (*CheckInService, *fakeTickets, *fakePublisher) {
	tickets := newFakeTickets()
	pub := &fakePublisher{}
	svc := NewCheckInService(CheckInConfig{SearchLimit: 50}, tickets, pub, zap.NewNop())
	svc.now = func() time.Time { return doorOpen }
	return svc, tickets, pub
}

func ptr(v uint64) *uint64 { return &v }

func TestCheckInSuccessThenAlreadyCheckedIn(t *testing.T) {
	svc, tickets, pub := newCheckInFixture()
	tickets.put(model.Ticket{InvoiceNo: "000099", EventID: 1, Name: "A B", Quantity: 2})

	g, err := svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000099", StaffID: 5})
	require.NoError(t, err)
	assert.True(t, g.CheckedIn)
	require.NotNil(t, g.CheckInTime)
	assert.Equal(t, doorOpen, *g.CheckInTime)
	assert.Equal(t, 2, g.Quantity)
	require.Len(t, pub.checked, 1)
	assert.Equal(t, uint64(5), pub.checked[0].StaffID)

	svc.now = func() time.Time { return doorOpen.Add(time.Minute) }
	_, err = svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000099"})
	require.ErrorIs(t, err, ErrAlreadyCheckedIn)

	var ae *AlreadyCheckedInError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "A B", ae.Guest.Name)
	require.NotNil(t, ae.Guest.CheckInTime)
	assert.Equal(t, doorOpen, *ae.Guest.CheckInTime, "check-in time must not be overwritten")
	assert.Len(t, pub.checked, 1)
}

func TestCheckInAcceptsPrintedInvoiceAndTicketID(t *testing.T) {
	svc, tickets, _ := newCheckInFixture()
	a := tickets.put(model.Ticket{InvoiceNo: "000026", EventID: 1})
	b := tickets.put(model.Ticket{InvoiceNo: "000027", EventID: 1})

	g, err := svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "# INV-000026", EventID: ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, a.ID, g.TicketID)

	g, err = svc.CheckIn(context.Background(), CheckInRequest{TicketID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, "000027", g.InvoiceNo)
}

func TestCheckInConcurrentRaceHasOneWinner(t *testing.T) {
	svc, tickets, pub := newCheckInFixture()
	tickets.put(model.Ticket{InvoiceNo: "000099", EventID: 1, Name: "A B"})

	var tick atomic.Int64
	svc.now = func() time.Time { return doorOpen.Add(time.Duration(tick.Add(1)) * time.Millisecond) }

	const n = 32
	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		conflict atomic.Int32
		mu       sync.Mutex
		winnerAt time.Time
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000099"})
			switch {
			case err == nil:
				wins.Add(1)
				mu.Lock()
				winnerAt = *g.CheckInTime
				mu.Unlock()
			case errors.Is(err, ErrAlreadyCheckedIn):
				conflict.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), conflict.Load())
	assert.Len(t, pub.checked, 1)

	stored, err := svc.Lookup(context.Background(), "000099", nil)
	require.NoError(t, err)
	assert.Equal(t, winnerAt, *stored.CheckInTime)
}

func TestCheckInWrongEventAndNotFound(t *testing.T) {
	svc, tickets, _ := newCheckInFixture()
	tickets.put(model.Ticket{InvoiceNo: "000099", EventID: 1})

	_, err := svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000099", EventID: ptr(2)})
	assert.ErrorIs(t, err, ErrWrongEvent)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000100", EventID: ptr(1)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000100"})
	assert.ErrorIs(t, err, ErrNotFound)

	g, err := svc.Lookup(context.Background(), "000099", nil)
	require.NoError(t, err)
	assert.False(t, g.CheckedIn, "wrong-event attempt must not admit the ticket")
}

func TestCheckInOutcomesAfterAdmission(t *testing.T) {
	svc, tickets, _ := newCheckInFixture()
	tickets.put(model.Ticket{InvoiceNo: "000099", EventID: 1})

	_, err := svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000099", EventID: ptr(1)})
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000099", EventID: ptr(1)})
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	_, err = svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: "000099", EventID: ptr(9)})
	assert.ErrorIs(t, err, ErrWrongEvent)
}

func TestCheckInRequiresIdentifier(t *testing.T) {
	svc, _, _ := newCheckInFixture()
	_, err := svc.CheckIn(context.Background(), CheckInRequest{InvoiceNo: " # "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLookupIsReadOnly(t *testing.T) {
	svc, tickets, pub := newCheckInFixture()
	tickets.put(model.Ticket{InvoiceNo: "000099", EventID: 1, Name: "A B"})

	for i := 0; i < 3; i++ {
		g, err := svc.Lookup(context.Background(), "INV-000099", ptr(1))
		require.NoError(t, err)
		assert.False(t, g.CheckedIn)
		assert.Nil(t, g.CheckInTime)
	}
	assert.Empty(t, pub.checked)

	_, err := svc.Lookup(context.Background(), "000099", ptr(3))
	assert.ErrorIs(t, err, ErrWrongEvent)
	_, err = svc.Lookup(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearchScopesOrdersAndCaps(t *testing.T) {
	svc, tickets, _ := newCheckInFixture()
	for i := 0; i < 60; i++ {
		tickets.put(model.Ticket{InvoiceNo: fmt.Sprintf("%06d", i), EventID: 1, Name: fmt.Sprintf("Guest %02d", 59-i)})
	}
	tickets.put(model.Ticket{InvoiceNo: "x1", EventID: 2, Name: "Other Event", Email: "guest@elsewhere.io"})

	got, err := svc.Search(context.Background(), 1, "guest")
	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, 50, tickets.searchLimit)
	assert.Equal(t, "Guest 00", got[0].Name)
	for _, g := range got {
		assert.Equal(t, uint64(1), g.EventID)
	}

	_, err = svc.Search(context.Background(), 0, "guest")
	assert.ErrorIs(t, err, ErrValidation)
}
