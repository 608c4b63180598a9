package wake

import (
	"context"
	"time"
)

// Payload is the snapshot carried by an armed trigger. It is captured at
// arming time and deliberately not a live reference: the event record may be
// edited or deleted before the trigger fires, and the snapshot must still be
// enough to render a notification.
type Payload struct {
	EventID int64
	Title   string
	Time    string // "HH:MM" or ""
}

// Handler receives a fired trigger. It runs on a timer goroutine.
type Handler func(ctx context.Context, p Payload)

// Registry is the three-method capability the reminder scheduler depends on.
// Tests inject a fake; the daemon uses *Service.
type Registry interface {
	// RegisterOneShot arms exactly one trigger for key at the given instant,
	// atomically replacing any existing trigger for the same key.
	RegisterOneShot(key int64, at time.Time, p Payload) error

	// Unregister disarms any trigger for key. Always succeeds; disarming a
	// non-existent trigger is a no-op.
	Unregister(key int64)

	// CanScheduleExact reports whether exact wakes may be scheduled.
	CanScheduleExact() bool
}

type Config struct {
	// Exact models the exact-wake capability; when false, RegisterOneShot is
	// refused upstream by the scheduler.
	Exact bool

	// SweepEvery is the catch-up sweep interval. 0 means 1m.
	SweepEvery time.Duration
}
