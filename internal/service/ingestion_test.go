package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/submission"
)

const happyBody = `{"formID":"F1","rawRequest":"{\"q4_email\":\"a@b.com\",\"q3_name\":{\"first\":\"A\",\"last\":\"B\"},\"q11_invoiceId\":\"# INV-000099\"}"}`

var ingestNow = time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC)

type ingestFixture struct {
	svc     *IngestionService
	events  *fakeEvents
	users   *fakeUsers
	tickets *fakeTickets
	mailer  *fakeMailer
	pub     *fakePublisher
}

func newIngestFixture(qr fakeQR, mailErr error) *ingestFixture {
	f := &ingestFixture{
		events:  newFakeEvents(),
		users:   newFakeUsers(),
		tickets: newFakeTickets(),
		mailer:  &fakeMailer{err: mailErr},
		pub:     &fakePublisher{},
	}
	clock := func() time.Time { return ingestNow }
	f.svc = NewIngestionService(
		IngestionConfig{DefaultEventDuration: 7 * 24 * time.Hour, IssueTimeout: time.Second, BcryptCost: bcrypt.MinCost},
		IngestionDeps{
			Normalizer: submission.New(submission.Options{SessionLabels: []string{"Friday", "Saturday"}, Now: clock}),
			Events:     f.events,
			Users:      f.users,
			Tickets:    f.tickets,
			QR:         qr,
			Mailer:     f.mailer,
			Publisher:  f.pub,
			Logger:     zap.NewNop(),
		})
	f.svc.now = clock
	return f
}

func TestIngestHappyPath(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)

	res, err := f.svc.Ingest(context.Background(), []byte(happyBody))
	require.NoError(t, err)
	require.NoError(t, res.IssuanceErr)

	assert.True(t, res.Created)
	assert.Equal(t, "000099", res.Ticket.InvoiceNo)
	assert.Equal(t, "a@b.com", res.Ticket.Email)
	assert.Equal(t, "A B", res.Ticket.Name)
	assert.False(t, res.Ticket.CheckedIn)
	assert.Nil(t, res.Ticket.CheckInTime)

	assert.Equal(t, "Form F1", res.Event.Title)
	assert.Equal(t, ingestNow, res.Event.StartTime)
	assert.Equal(t, ingestNow.Add(7*24*time.Hour), res.Event.EndTime)

	u, err := f.users.GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleGuest, u.Role)
	assert.NotEmpty(t, u.PasswordHash)

	require.Equal(t, 1, f.mailer.calls())
	sent := f.mailer.sent[0]
	assert.Equal(t, "a@b.com", sent.To)
	assert.Equal(t, "000099", sent.InvoiceNo)
	assert.Equal(t, []byte("qr:000099"), sent.QRCode)

	require.Len(t, f.pub.issued, 1)
	assert.Equal(t, "sent", f.pub.issued[0].Issuance)
}

func TestIngestRedeliveryIsIdempotent(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)

	first, err := f.svc.Ingest(context.Background(), []byte(happyBody))
	require.NoError(t, err)
	second, err := f.svc.Ingest(context.Background(), []byte(happyBody))
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Ticket.ID, second.Ticket.ID)
	assert.Equal(t, 1, f.tickets.count())
	assert.Equal(t, 1, f.mailer.calls())
	assert.Len(t, f.pub.issued, 1)
}

func TestIngestConcurrentDeliveriesIssueOnce(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)

	const n = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Ingest(context.Background(), []byte(happyBody))
			if !assert.NoError(t, err) {
				return
			}
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, f.tickets.count())
	assert.Equal(t, 1, f.mailer.calls())
	assert.Equal(t, 1, f.events.count())
}

func TestIngestValidationWritesNothing(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)

	_, err := f.svc.Ingest(context.Background(), []byte(`{"formID":"F1","name":"No Email","invoiceId":"INV-1"}`))
	require.ErrorIs(t, err, ErrValidation)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "email")
	assert.NotContains(t, ve.Fields, "invoiceNo")

	_, err = f.svc.Ingest(context.Background(), []byte(`{"email":"a@b.com"}`))
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, f.events.count())
	assert.Zero(t, f.tickets.count())
	assert.Zero(t, f.mailer.calls())
}

func TestIngestRejectsOversizedKeys(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)

	_, err := f.svc.IngestPayload(context.Background(), map[string]any{
		"formID": "F1", "email": "a@b.com", "invoiceNo": strings.Repeat("9", 65),
	})
	require.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "invoiceNo")
	assert.Zero(t, f.tickets.count())
}

func TestIngestMalformedPayload(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)
	_, err := f.svc.Ingest(context.Background(), []byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestIngestEmailFailureKeepsTicket(t *testing.T) {
	f := newIngestFixture(fakeQR{}, errors.New("smtp down"))

	res, err := f.svc.Ingest(context.Background(), []byte(happyBody))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.ErrorIs(t, res.IssuanceErr, ErrDependencyFailure)

	var de *DependencyError
	require.ErrorAs(t, res.IssuanceErr, &de)
	assert.Equal(t, "email", de.Stage)

	assert.Equal(t, 1, f.tickets.count())
	require.Len(t, f.pub.issued, 1)
	assert.Equal(t, "delayed", f.pub.issued[0].Issuance)

	// a redelivery does not retry issuance
	again, err := f.svc.Ingest(context.Background(), []byte(happyBody))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, 1, f.mailer.calls())
}

func TestIngestQRFailureSkipsEmail(t *testing.T) {
	f := newIngestFixture(fakeQR{err: errors.New("encode")}, nil)

	res, err := f.svc.Ingest(context.Background(), []byte(happyBody))
	require.NoError(t, err)
	var de *DependencyError
	require.ErrorAs(t, res.IssuanceErr, &de)
	assert.Equal(t, "qr", de.Stage)
	assert.Zero(t, f.mailer.calls())
	assert.Equal(t, 1, f.tickets.count())
}

func TestIngestSyntheticInvoiceAndFormTitle(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)

	res, err := f.svc.IngestPayload(context.Background(), map[string]any{
		"formID":    "F7",
		"formTitle": "Spring Retreat",
		"email":     "x@y.org",
	})
	require.NoError(t, err)
	assert.True(t, res.Synthetic)
	assert.Equal(t, "1772820000000", res.Ticket.InvoiceNo)
	assert.Equal(t, "Spring Retreat", res.Event.Title)
}

func TestIngestReusesExistingEventAndUser(t *testing.T) {
	f := newIngestFixture(fakeQR{}, nil)

	_, err := f.svc.Ingest(context.Background(), []byte(happyBody))
	require.NoError(t, err)
	res, err := f.svc.IngestPayload(context.Background(), map[string]any{
		"formID": "F1", "email": "A@B.com", "invoiceId": "INV-000100",
	})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, 1, f.events.count())
	assert.Len(t, f.users.byID, 1)
	assert.Equal(t, 2, f.tickets.creates)
}

func TestIssuedQRChecksIn(t *testing.T) {
	for _, printed := range []string{"INV-INV-7", "# INV-# 12", "# # 5", "# INV-000099"} {
		f := newIngestFixture(fakeQR{}, nil)
		checkin := NewCheckInService(CheckInConfig{SearchLimit: 50}, f.tickets, f.pub, zap.NewNop())

		res, err := f.svc.IngestPayload(context.Background(), map[string]any{
			"formID": "F1", "email": "a@b.com", "invoiceNo": printed,
		})
		require.NoError(t, err, printed)
		require.True(t, res.Created, printed)
		require.Equal(t, 1, f.mailer.calls(), printed)

		scanned := strings.TrimPrefix(string(f.mailer.sent[0].QRCode), "qr:")
		assert.Equal(t, res.Ticket.InvoiceNo, scanned, printed)

		g, err := checkin.CheckIn(context.Background(), CheckInRequest{InvoiceNo: scanned, EventID: &res.Event.ID})
		require.NoError(t, err, printed)
		assert.Equal(t, res.Ticket.ID, g.TicketID, printed)
		assert.True(t, g.CheckedIn, printed)
	}
}
