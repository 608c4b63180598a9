// Package reminder turns a stored event into at most one armed future wake.
//
// State machine per event id:
//
//	Unarmed --Schedule(valid future time)--> Armed
//	Armed   --fires | Cancel | Schedule(replace)--> Unarmed
//
// The wake registry enforces "at most one trigger per id"; this package owns
// the policy around it (preconditions, wall-clock combine, past/permission
// refusals).
package reminder

import (
	"fmt"
	"time"

	"calendd/internal/store"
	"calendd/internal/wake"
	logx "calendd/pkg/logx"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type Scheduler struct {
	reg wake.Registry
	loc *time.Location
	log logx.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(reg wake.Registry, loc *time.Location, log logx.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{reg: reg, loc: loc, log: log, now: time.Now}
}

// Schedule arms exactly one trigger for ev, replacing any existing one.
//
// When the event carries no reminder intent (Reminder false or empty time),
// any existing trigger is canceled and Schedule returns nil: the user turned
// the reminder off. ErrPastTime and ErrPermissionDenied are refusals that
// leave no trigger armed for ev.ID (past time also clears a stale one).
func (s *Scheduler) Schedule(ev store.Event) error {
	if !ev.Reminder || ev.Time == "" {
		s.reg.Unregister(ev.ID)
		return nil
	}

	at, err := s.combine(ev.Date, ev.Time)
	if err != nil {
		return err
	}

	if !at.After(s.now()) {
		s.reg.Unregister(ev.ID)
		s.log.Debug("reminder refused: instant not in future",
			logx.Int64("event_id", ev.ID), logx.Time("at", at))
		return ErrPastTime
	}

	if !s.reg.CanScheduleExact() {
		s.log.Warn("reminder refused: exact wakes not permitted", logx.Int64("event_id", ev.ID))
		return ErrPermissionDenied
	}

	err = s.reg.RegisterOneShot(ev.ID, at, wake.Payload{
		EventID: ev.ID,
		Title:   ev.Title,
		Time:    ev.Time,
	})
	if err != nil {
		return fmt.Errorf("arm reminder for event %d: %w", ev.ID, err)
	}

	s.log.Info("reminder armed",
		logx.Int64("event_id", ev.ID), logx.String("title", ev.Title), logx.Time("at", at))
	return nil
}

// Cancel disarms any trigger for eventID. Unconditional and error-free;
// canceling a non-existent trigger is a successful no-op. Callers pair every
// update/delete with Cancel before (re)scheduling.
func (s *Scheduler) Cancel(eventID int64) {
	s.reg.Unregister(eventID)
}

// combine resolves "YYYY-MM-DD" + "HH:MM" to an absolute instant in the
// scheduler's wall clock, seconds zeroed. Calendar arithmetic (month/year
// rollover) is time.Date's problem, not ours.
func (s *Scheduler) combine(date, clock string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	t, err := time.ParseInLocation(timeLayout, clock, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, s.loc), nil
}
