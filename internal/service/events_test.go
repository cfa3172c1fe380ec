package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/formprovider"
	"github.com/iliyamo/event-checkin/internal/model"
)

func TestSyncFromProvider(t *testing.T) {
	events := newFakeEvents()
	require.NoError(t, events.Create(context.Background(), &model.Event{FormID: "F1", Title: "Old title"}))
	require.NoError(t, events.Create(context.Background(), &model.Event{FormID: "F2", Title: "Same"}))

	forms := fakeForms{forms: []formprovider.Form{
		{ID: "F1", Title: "New title"},
		{ID: "F2", Title: "Same"},
		{ID: "F3", Title: ""},
	}}
	svc := NewEventService(events, forms, 48*time.Hour, zap.NewNop())

	res, err := svc.SyncFromProvider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1, Updated: 1, Unchanged: 1}, res)

	f1, _ := events.GetByFormID(context.Background(), "F1")
	assert.Equal(t, "New title", f1.Title)
	f3, err := events.GetByFormID(context.Background(), "F3")
	require.NoError(t, err)
	assert.Equal(t, "Form F3", f3.Title)
	assert.Equal(t, 48*time.Hour, f3.EndTime.Sub(f3.StartTime))
}

func TestSyncFromProviderErrors(t *testing.T) {
	svc := NewEventService(newFakeEvents(), nil, 0, zap.NewNop())
	_, err := svc.SyncFromProvider(context.Background())
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	svc = NewEventService(newFakeEvents(), fakeForms{err: formprovider.ErrNotConfigured}, 0, zap.NewNop())
	_, err = svc.SyncFromProvider(context.Background())
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	svc = NewEventService(newFakeEvents(), fakeForms{err: errors.New("boom")}, 0, zap.NewNop())
	_, err = svc.SyncFromProvider(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestStats(t *testing.T) {
	events := newFakeEvents()
	events.stats = model.EventStats{Total: 3, CheckedIn: 1, Remaining: 2, Guests: 4}
	require.NoError(t, events.Create(context.Background(), &model.Event{FormID: "F1"}))
	svc := NewEventService(events, nil, 0, zap.NewNop())

	st, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.EventStats{EventID: 1, Total: 3, CheckedIn: 1, Remaining: 2, Guests: 4}, st)

	_, err = svc.Stats(context.Background(), 99)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
