package wake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calendd/internal/store"
	logx "calendd/pkg/logx"
)

// TriggerStore is the durable half of the registry.
type TriggerStore interface {
	PutTrigger(ctx context.Context, t store.Trigger) error
	DeleteTrigger(ctx context.Context, eventID int64) error
	ListTriggers(ctx context.Context) ([]store.Trigger, error)
}

// armed is one live registry slot. The pointer identity doubles as a
// generation token: a timer that fires after its slot was replaced finds a
// different pointer in the map and drops itself.
type armed struct {
	at      time.Time
	payload Payload
	timer   *time.Timer
}

type Service struct {
	log logx.Logger
	db  TriggerStore
	now func() time.Time

	mu      sync.Mutex
	cfg     Config
	slots   map[int64]*armed
	handler Handler
	ctx     context.Context
	c       *cron.Cron
	started bool
}

func New(cfg Config, db TriggerStore, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		db:    db,
		log:   log,
		now:   time.Now,
		slots: map[int64]*armed{},
	}
}

// SetHandler installs the fire callback. Must be called before Start.
func (s *Service) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Apply updates runtime-tunable config (the exact-wake switch).
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg.Exact = cfg.Exact
	s.mu.Unlock()
}

func (s *Service) CanScheduleExact() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Exact
}

// Start rehydrates persisted triggers and begins the catch-up sweep.
// Overdue triggers fire immediately (at-or-after semantics).
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx = ctx

	sweep := s.cfg.SweepEvery
	if sweep <= 0 {
		sweep = time.Minute
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", sweep), s.sweep); err != nil {
		s.started = false
		s.mu.Unlock()
		return err
	}
	s.c = c
	s.mu.Unlock()

	persisted, err := s.db.ListTriggers(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate triggers: %w", err)
	}

	now := s.now()
	var due []Payload
	s.mu.Lock()
	for _, t := range persisted {
		p := Payload{EventID: t.EventID, Title: t.Title, Time: t.Time}
		if t.FireAt.After(now) {
			s.armLocked(t.EventID, t.FireAt, p)
			continue
		}
		due = append(due, p)
	}
	n := len(s.slots)
	s.mu.Unlock()

	c.Start()
	s.log.Info("wake service started",
		logx.Int("armed", n), logx.Int("overdue", len(due)), logx.Duration("sweep", sweep))

	// Fire missed wakes after the registry is consistent. Rows are consumed
	// before delivery so a crash mid-handler cannot double-fire on the next
	// start.
	for _, p := range due {
		if err := s.db.DeleteTrigger(ctx, p.EventID); err != nil {
			s.log.Warn("trigger row delete failed", logx.Int64("event_id", p.EventID), logx.Err(err))
		}
		s.deliver(p)
	}
	return nil
}

// Stop halts timers and the sweep. Persisted rows are kept so pending
// reminders rehydrate on the next run.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.c
	s.c = nil
	for _, a := range s.slots {
		a.timer.Stop()
	}
	s.slots = map[int64]*armed{}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.log.Info("wake service stopped")
}

// RegisterOneShot arms the trigger for key, replacing any existing one. The
// slot swap happens under one lock hold BEFORE the row is persisted: an old
// timer firing mid-replace finds the new pointer in the map and drops itself
// instead of consuming the replacement's row. A persist failure disarms the
// new slot again, so an error means nothing is registered for key.
func (s *Service) RegisterOneShot(key int64, at time.Time, p Payload) error {
	s.mu.Lock()
	if old, ok := s.slots[key]; ok {
		old.timer.Stop()
	}
	a := s.armLocked(key, at, p)
	s.mu.Unlock()

	ctx := s.baseCtx()
	if err := s.db.PutTrigger(ctx, store.Trigger{EventID: key, FireAt: at, Title: p.Title, Time: p.Time}); err != nil {
		s.mu.Lock()
		if s.slots[key] == a {
			a.timer.Stop()
			delete(s.slots, key)
		}
		s.mu.Unlock()
		return err
	}

	s.log.Debug("trigger armed",
		logx.Int64("event_id", key), logx.Time("at", at), logx.String("title", p.Title))
	return nil
}

// Unregister disarms key. Always succeeds; persistence failures are logged
// and otherwise swallowed (the sweep will not resurrect a disarmed slot, and
// a leftover row only costs one spurious fire after a crash).
func (s *Service) Unregister(key int64) {
	s.mu.Lock()
	if a, ok := s.slots[key]; ok {
		a.timer.Stop()
		delete(s.slots, key)
	}
	s.mu.Unlock()

	if err := s.db.DeleteTrigger(s.baseCtx(), key); err != nil {
		s.log.Warn("trigger row delete failed", logx.Int64("event_id", key), logx.Err(err))
	}
	s.log.Debug("trigger disarmed", logx.Int64("event_id", key))
}

func (s *Service) armLocked(key int64, at time.Time, p Payload) *armed {
	a := &armed{at: at, payload: p}
	a.timer = time.AfterFunc(time.Until(at), func() { s.fire(key, a) })
	s.slots[key] = a
	return a
}

// fire runs on the timer goroutine. The map lookup under the lock is the
// staleness check: a replaced or disarmed slot no longer maps to this armed
// value and the fire is dropped.
func (s *Service) fire(key int64, a *armed) {
	s.mu.Lock()
	cur, ok := s.slots[key]
	if !ok || cur != a {
		s.mu.Unlock()
		return
	}
	delete(s.slots, key)
	s.mu.Unlock()

	if err := s.db.DeleteTrigger(s.baseCtx(), key); err != nil {
		s.log.Warn("trigger row delete failed", logx.Int64("event_id", key), logx.Err(err))
	}
	s.deliver(a.payload)
}

// sweep fires armed triggers whose instant has passed without the runtime
// timer firing (process suspend, clock jump).
func (s *Service) sweep() {
	now := s.now()

	type overdue struct {
		key int64
		a   *armed
	}
	s.mu.Lock()
	var late []overdue
	for key, a := range s.slots {
		if !a.at.After(now) {
			late = append(late, overdue{key, a})
		}
	}
	s.mu.Unlock()

	for _, it := range late {
		it.a.timer.Stop()
		s.log.Warn("sweep firing overdue trigger",
			logx.Int64("event_id", it.key), logx.Time("at", it.a.at))
		s.fire(it.key, it.a)
	}
}

func (s *Service) deliver(p Payload) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		s.log.Warn("trigger fired with no handler installed", logx.Int64("event_id", p.EventID))
		return
	}
	h(s.baseCtx(), p)
}

func (s *Service) baseCtx() context.Context {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
