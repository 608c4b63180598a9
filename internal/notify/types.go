package notify

import "context"

// Notification is a display payload. Slot is the display key: a second
// notification for the same slot replaces the first instead of stacking.
type Notification struct {
	Slot    int64
	Title   string
	Body    string
	OpenURL string // tap action: open the calendar UI
}

// Displayer renders notifications. Implementations must treat CreateChannel
// as idempotent create-if-absent setup, called once per process before the
// first Display.
type Displayer interface {
	CreateChannel(ctx context.Context) error
	Display(ctx context.Context, n Notification) error
}
