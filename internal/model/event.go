package model

import "time"

// Event is one external form/template.  It is created lazily on the first
// webhook for an unseen form id or pre-synced from the provider's form list.
//
// Fields:
//
//	ID        – events.id
//	FormID    – provider form id (unique)
//	Title     – display title
//	StartTime – event start (defaults to creation time)
//	EndTime   – event end (defaults to start + configured duration)
type Event struct {
	ID        uint64    `json:"id"`
	FormID    string    `json:"formId"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventStats summarises door progress for one event.  Total and CheckedIn
// count tickets; Guests sums ticket quantities.
type EventStats struct {
	EventID   uint64 `json:"eventId"`
	Total     int64  `json:"total"`
	CheckedIn int64  `json:"checkedIn"`
	Remaining int64  `json:"remaining"`
	Guests    int64  `json:"guests"`
}
