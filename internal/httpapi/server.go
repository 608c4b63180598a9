// Package httpapi is the caller surface over the event store and reminder
// scheduler. Every mutation follows the pairing contract: edits and deletes
// cancel the event's trigger first, then touch the store, then reschedule
// when a reminder is wanted.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"

	"calendd/internal/store"
	logx "calendd/pkg/logx"
)

type Config struct {
	Addr string
}

// EventStore is the persistence surface the API needs.
type EventStore interface {
	Insert(ctx context.Context, ev store.Event) (int64, error)
	Update(ctx context.Context, ev store.Event) error
	DeleteByID(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*store.Event, error)
	ListByDate(ctx context.Context, date string) ([]store.Event, error)
	ListAll(ctx context.Context) ([]store.Event, error)
	Search(ctx context.Context, query string) ([]store.Event, error)
}

// Scheduler is the reminder surface the API needs.
type Scheduler interface {
	Schedule(ev store.Event) error
	Cancel(eventID int64)
}

type Server struct {
	cfg   Config
	log   logx.Logger
	db    EventStore
	sched Scheduler
	app   *fiber.App
}

func New(cfg Config, db EventStore, sched Scheduler, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8343"
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{cfg: cfg, log: log, db: db, sched: sched}

	app := fiber.New(fiber.Config{
		AppName:               "calendd",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Post("/events", s.createEvent)
	api.Get("/events", s.listEvents)
	api.Get("/events/search", s.searchEvents)
	api.Get("/events/:id", s.getEvent)
	api.Put("/events/:id", s.updateEvent)
	api.Delete("/events/:id", s.deleteEvent)

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Start() error {
	s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": err.Error()})
}
