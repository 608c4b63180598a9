// Package app wires calendd together: config, logging, store, wake service,
// reminder scheduler, dispatcher, notification backend, HTTP API.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"calendd/internal/config"
	"calendd/internal/dispatch"
	"calendd/internal/httpapi"
	"calendd/internal/notify"
	"calendd/internal/reminder"
	"calendd/internal/store"
	"calendd/internal/wake"
	logx "calendd/pkg/logx"
)

// deliveryRatePerSec bounds notification bursts (startup rehydration can
// fire several overdue reminders at once).
const deliveryRatePerSec = 2

type App struct {
	cfgm *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	db    *store.Store
	wakes *wake.Service
	sched *reminder.Scheduler
	http  *httpapi.Server

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busy, err := config.DurationField("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Wake.Timezone); tz != "" {
		if l, lerr := time.LoadLocation(tz); lerr == nil {
			loc = l
		} else {
			log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz))
		}
	}

	sweep, err := config.DurationField("wake.sweep_every", cfg.Wake.SweepEvery, time.Minute)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	wakes := wake.New(wake.Config{
		Exact:      exactEnabled(cfg),
		SweepEvery: sweep,
	}, db, log.With(logx.String("comp", "wake")))

	displayer, err := pickDisplayer(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dispatcher := dispatch.New(displayer, deliveryRatePerSec, log.With(logx.String("comp", "dispatch")))
	wakes.SetHandler(dispatcher.HandleFire)

	sched := reminder.New(wakes, loc, log.With(logx.String("comp", "reminder")))

	var httpSrv *httpapi.Server
	if cfg.HTTP.Enabled {
		httpSrv = httpapi.New(httpapi.Config{Addr: cfg.HTTP.Addr},
			db, sched, log.With(logx.String("comp", "http")))
	}

	return &App{
		cfgm:   cfgm,
		logSvc: logSvc,
		log:    log,
		db:     db,
		wakes:  wakes,
		sched:  sched,
		http:   httpSrv,
	}, nil
}

func exactEnabled(cfg *config.Config) bool {
	return cfg.Wake.Exact == nil || *cfg.Wake.Exact
}

func pickDisplayer(cfg *config.Config, log logx.Logger) (notify.Displayer, error) {
	tg := cfg.Notify.Telegram
	if strings.TrimSpace(tg.Token) == "" {
		log.Info("no notification backend configured; reminders go to the log")
		return notify.NewLogSink(log.With(logx.String("comp", "notify"))), nil
	}
	openURL := tg.OpenURL
	if openURL == "" && cfg.HTTP.Enabled {
		openURL = "http://" + orDefault(cfg.HTTP.Addr, "127.0.0.1:8343")
	}
	return notify.NewTelegram(notify.TelegramConfig{
		Token:   tg.Token,
		ChatID:  tg.ChatID,
		OpenURL: openURL,
	}, log.With(logx.String("comp", "notify")))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func (a *App) Start(ctx context.Context) error {
	if a.started {
		return nil
	}
	a.started = true

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.wakes.Start(runCtx); err != nil {
		cancel()
		return err
	}

	if a.http != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.http.Start(); err != nil {
				a.log.Error("http api stopped", logx.Err(err))
			}
		}()
	}

	// Config hot reload: logging level/sinks and the exact-wake switch.
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	sub := a.cfgm.Subscribe(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok || cfg == nil {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("calendd started")
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.wakes.Apply(wake.Config{Exact: exactEnabled(cfg)})
	a.log.Info("config applied", logx.Bool("wake_exact", exactEnabled(cfg)))
}

func (a *App) Stop(ctx context.Context) error {
	if !a.started {
		return nil
	}
	a.started = false

	if a.http != nil {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = a.http.Stop(sctx)
		cancel()
	}
	a.wakes.Stop(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	err := a.db.Close()
	a.log.Info("calendd stopped")
	_ = a.logSvc.Close()
	return err
}
