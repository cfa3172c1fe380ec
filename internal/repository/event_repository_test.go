package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-checkin/internal/model"
)

func TestEventCreateAndDuplicate(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs("F1", "Form F1", start, start.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	repo := NewEventRepo(db)
	e := &model.Event{FormID: "F1", Title: "Form F1", StartTime: start, EndTime: start.Add(time.Hour)}
	require.NoError(t, repo.Create(context.Background(), e))
	assert.Equal(t, uint64(5), e.ID)

	err := repo.Create(context.Background(), &model.Event{FormID: "F1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestEventGetByFormIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE form_id=?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_id", "title", "start_time", "end_time", "created_at", "updated_at"}))

	_, err := NewEventRepo(db).GetByFormID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventStats(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE event_id=?")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "checked", "guests"}).AddRow(10, 4, 13))

	s, err := NewEventRepo(db).Stats(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, model.EventStats{EventID: 2, Total: 10, CheckedIn: 4, Remaining: 6, Guests: 13}, s)
}
