package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"calendd/internal/reminder"
	"calendd/internal/store"
	logx "calendd/pkg/logx"
)

// recorder keeps the interleaved call order of store and scheduler so the
// cancel-before-mutate contract is checkable.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type fakeStore struct {
	rec *recorder

	events    map[int64]store.Event
	nextID    int64
	updateErr error
}

func newFakeStore(rec *recorder) *fakeStore {
	return &fakeStore{rec: rec, events: map[int64]store.Event{}, nextID: 1}
}

func (f *fakeStore) Insert(ctx context.Context, ev store.Event) (int64, error) {
	id := f.nextID
	f.nextID++
	ev.ID = id
	f.events[id] = ev
	f.rec.add("insert:%d", id)
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, ev store.Event) error {
	f.rec.add("update:%d", ev.ID)
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.events[ev.ID]; !ok {
		return store.ErrNotFound
	}
	f.events[ev.ID] = ev
	return nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, id int64) error {
	f.rec.add("delete:%d", id)
	delete(f.events, id)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*store.Event, error) {
	if ev, ok := f.events[id]; ok {
		return &ev, nil
	}
	return nil, nil
}

func (f *fakeStore) ListByDate(ctx context.Context, date string) ([]store.Event, error) {
	return nil, nil
}
func (f *fakeStore) ListAll(ctx context.Context) ([]store.Event, error) { return nil, nil }
func (f *fakeStore) Search(ctx context.Context, q string) ([]store.Event, error) {
	f.rec.add("search:%s", q)
	return nil, nil
}

type fakeScheduler struct {
	rec         *recorder
	scheduleErr error
	scheduled   []store.Event
}

func (f *fakeScheduler) Schedule(ev store.Event) error {
	f.rec.add("schedule:%d", ev.ID)
	f.scheduled = append(f.scheduled, ev)
	return f.scheduleErr
}

func (f *fakeScheduler) Cancel(eventID int64) {
	f.rec.add("cancel:%d", eventID)
}

func newTestServer(t *testing.T) (*Server, *fakeStore, *fakeScheduler, *recorder) {
	t.Helper()
	rec := &recorder{}
	db := newFakeStore(rec)
	sched := &fakeScheduler{rec: rec}
	srv := New(Config{}, db, sched, logx.Nop())
	return srv, db, sched, rec
}

func doJSON(t *testing.T, srv *Server, method, target string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var m map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("decode body %q: %v", raw, err)
		}
	}
	return resp.StatusCode, m
}

func eventBodyJSON(title, date, clock string, remind bool) map[string]any {
	return map[string]any{
		"title":    title,
		"date":     date,
		"time":     clock,
		"reminder": remind,
	}
}

func TestCreateSchedulesWithAssignedID(t *testing.T) {
	srv, _, sched, rec := newTestServer(t)

	code, body := doJSON(t, srv, "POST", "/api/events", eventBodyJSON("Dentist", "2024-03-10", "09:00", true))
	if code != 201 {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0].ID != 1 {
		t.Fatalf("scheduled = %+v, want event with store-assigned id 1", sched.scheduled)
	}
	want := []string{"insert:1", "schedule:1"}
	assertCalls(t, rec, want)
}

func TestCreateWithoutReminderDoesNotSchedule(t *testing.T) {
	srv, _, sched, rec := newTestServer(t)

	code, _ := doJSON(t, srv, "POST", "/api/events", eventBodyJSON("Gym", "2024-03-10", "", true))
	if code != 201 {
		t.Fatalf("status = %d", code)
	}
	if len(sched.scheduled) != 0 {
		t.Fatalf("scheduled %d events, want 0", len(sched.scheduled))
	}
	assertCalls(t, rec, []string{"insert:1"})
}

func TestCreateReportsPastTimeButSaves(t *testing.T) {
	srv, db, sched, _ := newTestServer(t)
	sched.scheduleErr = reminder.ErrPastTime

	code, body := doJSON(t, srv, "POST", "/api/events", eventBodyJSON("Dentist", "2020-01-01", "09:00", true))
	if code != 201 {
		t.Fatalf("status = %d", code)
	}
	if body["reminder_error"] != "past_time" {
		t.Fatalf("reminder_error = %v, want past_time", body["reminder_error"])
	}
	if len(db.events) != 1 {
		t.Fatal("event not saved despite reminder refusal")
	}
}

func TestCreateReportsPermissionDenied(t *testing.T) {
	srv, _, sched, _ := newTestServer(t)
	sched.scheduleErr = reminder.ErrPermissionDenied

	code, body := doJSON(t, srv, "POST", "/api/events", eventBodyJSON("Dentist", "2030-01-01", "09:00", true))
	if code != 201 {
		t.Fatalf("status = %d", code)
	}
	if body["reminder_error"] != "permission_denied" {
		t.Fatalf("reminder_error = %v, want permission_denied", body["reminder_error"])
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "empty title", body: eventBodyJSON("  ", "2024-03-10", "09:00", true)},
		{name: "bad date", body: eventBodyJSON("x", "10.03.2024", "09:00", true)},
		{name: "bad time", body: eventBodyJSON("x", "2024-03-10", "9am", true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, db, _, _ := newTestServer(t)
			code, _ := doJSON(t, srv, "POST", "/api/events", tt.body)
			if code != 400 {
				t.Fatalf("status = %d, want 400", code)
			}
			if len(db.events) != 0 {
				t.Fatal("invalid event reached the store")
			}
		})
	}
}

func TestUpdateCancelsBeforeStoreAndReschedules(t *testing.T) {
	srv, db, _, rec := newTestServer(t)
	db.events[1] = store.Event{ID: 1, Title: "Dentist", Date: "2024-03-10", Time: "09:00", Reminder: true}
	db.nextID = 2
	rec.calls = nil

	code, _ := doJSON(t, srv, "PUT", "/api/events/1", eventBodyJSON("Dentist", "2024-03-10", "10:30", true))
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	assertCalls(t, rec, []string{"cancel:1", "update:1", "schedule:1"})
}

func TestUpdateAbsentStillCancels(t *testing.T) {
	srv, _, _, rec := newTestServer(t)

	code, _ := doJSON(t, srv, "PUT", "/api/events/7", eventBodyJSON("ghost", "2024-03-10", "09:00", true))
	if code != 404 {
		t.Fatalf("status = %d, want 404", code)
	}
	assertCalls(t, rec, []string{"cancel:7", "update:7"})
}

func TestDeleteCancelsFirst(t *testing.T) {
	srv, db, _, rec := newTestServer(t)
	db.events[1] = store.Event{ID: 1, Title: "Dentist"}
	rec.calls = nil

	code, _ := doJSON(t, srv, "DELETE", "/api/events/1", nil)
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	assertCalls(t, rec, []string{"cancel:1", "delete:1"})
	if len(db.events) != 0 {
		t.Fatal("event not deleted")
	}
}

func TestGetAbsentIs404(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	code, _ := doJSON(t, srv, "GET", "/api/events/99", nil)
	if code != 404 {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestListRejectsMalformedDate(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	code, _ := doJSON(t, srv, "GET", "/api/events?date=notadate", nil)
	if code != 400 {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestSearchPassesQuery(t *testing.T) {
	srv, _, _, rec := newTestServer(t)
	code, _ := doJSON(t, srv, "GET", "/api/events/search?q=dent", nil)
	if code != 200 {
		t.Fatalf("status = %d", code)
	}
	assertCalls(t, rec, []string{"search:dent"})
}

func assertCalls(t *testing.T, rec *recorder, want []string) {
	t.Helper()
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", rec.calls, want)
		}
	}
}
