package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Update when no record matches the event id.
// GetByID reports absence as (nil, nil) instead, matching the read contract.
var ErrNotFound = errors.New("event not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Event is a calendar record.
//
// Date is "YYYY-MM-DD". Time is "HH:MM" 24-hour, or "" for an all-day event
// (no reminder possible). Reminder records user intent to be notified; it is
// independent of whether a trigger is currently armed.
type Event struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Reminder    bool   `json:"reminder"`
}

// Trigger is a persisted armed reminder: the (eventID, title, time) snapshot
// captured at arming time plus the absolute wake instant. At most one row
// exists per event id.
type Trigger struct {
	EventID int64
	FireAt  time.Time
	Title   string
	Time    string
}
