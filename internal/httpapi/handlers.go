package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"calendd/internal/reminder"
	"calendd/internal/store"
	logx "calendd/pkg/logx"
)

type eventBody struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Reminder    bool   `json:"reminder"`
}

func (b *eventBody) validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return errors.New("title is required")
	}
	if _, err := time.Parse("2006-01-02", b.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	if b.Time != "" {
		if _, err := time.Parse("15:04", b.Time); err != nil {
			return errors.New("time must be HH:MM (24h) or empty")
		}
	}
	return nil
}

func (b *eventBody) toEvent(id int64) store.Event {
	return store.Event{
		ID:          id,
		Title:       strings.TrimSpace(b.Title),
		Date:        b.Date,
		Time:        b.Time,
		Description: strings.TrimSpace(b.Description),
		Reminder:    b.Reminder,
	}
}

// reminderErrorCode maps scheduling refusals to stable API codes. The event
// save itself already succeeded; the caller decides user messaging.
func reminderErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, reminder.ErrPastTime):
		return "past_time"
	case errors.Is(err, reminder.ErrPermissionDenied):
		return "permission_denied"
	default:
		return "schedule_failed"
	}
}

func (s *Server) createEvent(c *fiber.Ctx) error {
	var body eventBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := body.validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	id, err := s.db.Insert(c.Context(), body.toEvent(0))
	if err != nil {
		s.log.Error("event insert failed", logx.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create event")
	}
	ev := body.toEvent(id)

	resp := fiber.Map{"success": true, "event": ev}
	if ev.Reminder && ev.Time != "" {
		if serr := s.sched.Schedule(ev); serr != nil {
			resp["reminder_error"] = reminderErrorCode(serr)
		}
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) updateEvent(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body eventBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := body.validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	// Cancel unconditionally before the record changes, so no trigger armed
	// for the old date/time outlives the edit.
	s.sched.Cancel(id)

	ev := body.toEvent(id)
	if err := s.db.Update(c.Context(), ev); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "event not found")
		}
		s.log.Error("event update failed", logx.Int64("event_id", id), logx.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update event")
	}

	resp := fiber.Map{"success": true, "event": ev}
	if ev.Reminder && ev.Time != "" {
		if serr := s.sched.Schedule(ev); serr != nil {
			resp["reminder_error"] = reminderErrorCode(serr)
		}
	}
	return c.JSON(resp)
}

func (s *Server) deleteEvent(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	// Cancel strictly before the store delete: a trigger must never fire for
	// a row we are about to remove.
	s.sched.Cancel(id)

	if err := s.db.DeleteByID(c.Context(), id); err != nil {
		s.log.Error("event delete failed", logx.Int64("event_id", id), logx.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete event")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) getEvent(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ev, err := s.db.GetByID(c.Context(), id)
	if err != nil {
		s.log.Error("event get failed", logx.Int64("event_id", id), logx.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch event")
	}
	if ev == nil {
		return fiber.NewError(fiber.StatusNotFound, "event not found")
	}
	return c.JSON(fiber.Map{"success": true, "event": ev})
}

func (s *Server) listEvents(c *fiber.Ctx) error {
	date := c.Query("date")
	var (
		events []store.Event
		err    error
	)
	if date != "" {
		if _, perr := time.Parse("2006-01-02", date); perr != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		events, err = s.db.ListByDate(c.Context(), date)
	} else {
		events, err = s.db.ListAll(c.Context())
	}
	if err != nil {
		s.log.Error("event list failed", logx.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch events")
	}
	return c.JSON(fiber.Map{"success": true, "events": emptyIfNil(events)})
}

func (s *Server) searchEvents(c *fiber.Ctx) error {
	events, err := s.db.Search(c.Context(), c.Query("q"))
	if err != nil {
		s.log.Error("event search failed", logx.Err(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to search events")
	}
	return c.JSON(fiber.Map{"success": true, "events": emptyIfNil(events)})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid event id")
	}
	return id, nil
}

func emptyIfNil(evs []store.Event) []store.Event {
	if evs == nil {
		return []store.Event{}
	}
	return evs
}
