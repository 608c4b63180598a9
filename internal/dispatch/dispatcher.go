// Package dispatch resolves fired triggers into notifications.
//
// The dispatcher renders exclusively from the trigger snapshot and never
// re-queries the event store: an event deleted between arming and firing
// still produces a sensible notification instead of a crash.
package dispatch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"calendd/internal/notify"
	"calendd/internal/wake"
	logx "calendd/pkg/logx"
)

const fallbackTitle = "Event"

type Dispatcher struct {
	disp notify.Displayer
	log  logx.Logger

	// limiter bounds delivery bursts; startup rehydration can fire a batch
	// of overdue triggers at once.
	limiter *rate.Limiter

	channelMu    sync.Mutex
	channelReady bool
}

func New(disp notify.Displayer, ratePerSec int, log logx.Logger) *Dispatcher {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		disp:    disp,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// HandleFire is the wake service's fire callback.
func (d *Dispatcher) HandleFire(ctx context.Context, p wake.Payload) {
	if err := d.ensureChannel(ctx); err != nil {
		d.log.Error("notification channel setup failed",
			logx.Int64("event_id", p.EventID), logx.Err(err))
		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	n := buildNotification(p)
	if err := d.disp.Display(ctx, n); err != nil {
		d.log.Error("notification delivery failed",
			logx.Int64("event_id", p.EventID), logx.String("title", n.Title), logx.Err(err))
		return
	}
	d.log.Info("notification delivered",
		logx.Int64("event_id", p.EventID), logx.String("title", n.Title))
}

// ensureChannel creates the backend channel on first delivery. Setup runs at
// most once on success; a failure is retried on the next fire so a transient
// backend outage does not mute the process for good.
func (d *Dispatcher) ensureChannel(ctx context.Context) error {
	d.channelMu.Lock()
	defer d.channelMu.Unlock()
	if d.channelReady {
		return nil
	}
	if err := d.disp.CreateChannel(ctx); err != nil {
		return err
	}
	d.channelReady = true
	return nil
}

func buildNotification(p wake.Payload) notify.Notification {
	title := p.Title
	if title == "" {
		title = fallbackTitle
	}
	body := "Today"
	if p.Time != "" {
		body = "Scheduled for " + p.Time
	}
	return notify.Notification{Slot: p.EventID, Title: title, Body: body}
}
