package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/database"
	"github.com/iliyamo/event-checkin/internal/model"
)

// startMySQL runs a throwaway MySQL container.  Set CHECKIN_DOCKER_TESTS=1
// to enable; the tests are skipped otherwise and under -short.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() || os.Getenv("CHECKIN_DOCKER_TESTS") == "" {
		t.Skip("set CHECKIN_DOCKER_TESTS=1 to run MySQL integration tests")
	}
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	pool.MaxWait = 2 * time.Minute

	res, err := pool.Run("mysql", "8.0", []string{
		"MYSQL_ROOT_PASSWORD=secret",
		"MYSQL_DATABASE=checkin",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(res) })

	var db *sql.DB
	err = pool.Retry(func() error {
		var err error
		db, err = database.Open("root", "secret", "localhost", res.GetPort("3306/tcp"), "checkin")
		return err
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), db))
	return db
}

func TestIntegrationConcurrentCheckIn(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()

	events := NewEventRepo(db)
	users := NewUserRepo(db)
	tickets := NewTicketRepo(db)

	ev := &model.Event{FormID: "F1", Title: "Form F1", StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}
	require.NoError(t, events.Create(ctx, ev))
	u := &model.User{Email: "a@b.com", Name: "A B", PasswordHash: "x", Role: model.RoleGuest}
	require.NoError(t, users.Create(ctx, u))
	tk := &model.Ticket{InvoiceNo: "000099", EventID: ev.ID, UserID: u.ID, Name: "A B", Email: u.Email, Quantity: 1}
	require.NoError(t, tickets.Create(ctx, tk))

	dup := *tk
	assert.ErrorIs(t, tickets.Create(ctx, &dup), ErrDuplicate)

	const workers = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := tickets.MarkCheckedIn(ctx, TicketKey{InvoiceNo: "000099"}, &ev.ID, time.Now())
			if assert.NoError(t, err, fmt.Sprintf("worker %d", i)) && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := tickets.Get(ctx, TicketKey{ID: tk.ID}, nil)
	require.NoError(t, err)
	assert.True(t, got.CheckedIn)
	assert.NotNil(t, got.CheckInTime)

	other := ev.ID + 1000
	_, err = tickets.Get(ctx, TicketKey{InvoiceNo: "000099"}, &other)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := events.Stats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CheckedIn)
	assert.Equal(t, int64(0), stats.Remaining)
}
