package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"calendd/internal/notify"
	"calendd/internal/wake"
	logx "calendd/pkg/logx"
)

type fakeDisplayer struct {
	mu        sync.Mutex
	channels  int
	displayed []notify.Notification

	channelErr error
	displayErr error
}

func (f *fakeDisplayer) CreateChannel(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels++
	return f.channelErr
}

func (f *fakeDisplayer) Display(ctx context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.displayed = append(f.displayed, n)
	return f.displayErr
}

func TestHandleFireBuildsPayload(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		payload   wake.Payload
		wantTitle string
		wantBody  string
	}{
		{
			name:      "timed event",
			payload:   wake.Payload{EventID: 1, Title: "Dentist", Time: "09:00"},
			wantTitle: "Dentist",
			wantBody:  "Scheduled for 09:00",
		},
		{
			name:      "empty time",
			payload:   wake.Payload{EventID: 2, Title: "Standup", Time: ""},
			wantTitle: "Standup",
			wantBody:  "Today",
		},
		{
			name:      "missing title falls back",
			payload:   wake.Payload{EventID: 3, Title: "", Time: "12:00"},
			wantTitle: "Event",
			wantBody:  "Scheduled for 12:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeDisplayer{}
			d := New(f, 100, logx.Nop())
			d.HandleFire(context.Background(), tt.payload)

			if len(f.displayed) != 1 {
				t.Fatalf("displayed %d notifications, want 1", len(f.displayed))
			}
			n := f.displayed[0]
			if n.Slot != tt.payload.EventID {
				t.Fatalf("slot = %d, want %d (event id keys the display slot)", n.Slot, tt.payload.EventID)
			}
			if n.Title != tt.wantTitle || n.Body != tt.wantBody {
				t.Fatalf("got (%q, %q), want (%q, %q)", n.Title, n.Body, tt.wantTitle, tt.wantBody)
			}
		})
	}
}

func TestChannelSetupHappensOnce(t *testing.T) {
	t.Parallel()
	f := &fakeDisplayer{}
	d := New(f, 100, logx.Nop())

	for i := 0; i < 5; i++ {
		d.HandleFire(context.Background(), wake.Payload{EventID: int64(i), Title: "x", Time: "09:00"})
	}
	if f.channels != 1 {
		t.Fatalf("CreateChannel called %d times, want 1", f.channels)
	}
	if len(f.displayed) != 5 {
		t.Fatalf("displayed %d notifications, want 5", len(f.displayed))
	}
}

func TestChannelSetupFailureSuppressesDelivery(t *testing.T) {
	t.Parallel()
	f := &fakeDisplayer{channelErr: errors.New("no channel")}
	d := New(f, 100, logx.Nop())

	d.HandleFire(context.Background(), wake.Payload{EventID: 1, Title: "x"})
	if len(f.displayed) != 0 {
		t.Fatalf("displayed %d notifications despite channel failure", len(f.displayed))
	}
}

func TestChannelSetupRetriesAfterFailure(t *testing.T) {
	t.Parallel()
	f := &fakeDisplayer{channelErr: errors.New("no channel")}
	d := New(f, 100, logx.Nop())

	// A transient setup failure must not latch: the next fire retries and,
	// once the backend recovers, delivery resumes.
	d.HandleFire(context.Background(), wake.Payload{EventID: 1, Title: "x", Time: "09:00"})
	f.mu.Lock()
	f.channelErr = nil
	f.mu.Unlock()
	d.HandleFire(context.Background(), wake.Payload{EventID: 1, Title: "x", Time: "09:00"})

	if f.channels != 2 {
		t.Fatalf("CreateChannel called %d times, want a retry after the failure", f.channels)
	}
	if len(f.displayed) != 1 {
		t.Fatalf("displayed %d notifications after recovery, want 1", len(f.displayed))
	}

	// And once set up, later fires skip the channel call again.
	d.HandleFire(context.Background(), wake.Payload{EventID: 2, Title: "y", Time: "10:00"})
	if f.channels != 2 {
		t.Fatalf("CreateChannel called %d times after success, want 2", f.channels)
	}
}

func TestDisplayFailureDoesNotPanic(t *testing.T) {
	t.Parallel()
	f := &fakeDisplayer{displayErr: errors.New("send failed")}
	d := New(f, 100, logx.Nop())

	// Delivery failures are logged, never raised: the snapshot render path
	// must stay crash-free even when the backend is down.
	d.HandleFire(context.Background(), wake.Payload{EventID: 1, Title: "x", Time: "09:00"})
}
