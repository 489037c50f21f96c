package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"choreminder/internal/chores"
	"choreminder/internal/delivery"
	"choreminder/internal/dispatch"
	"choreminder/internal/reminder"
	"choreminder/internal/runtime/supervisor"
	"choreminder/internal/scheduler"
	"choreminder/internal/storage"
	logx "choreminder/pkg/logx"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config, journal storage.Store) *Server {
	t.Helper()
	clock := func() time.Time { return t0 }
	store := reminder.NewStore(reminder.WithClock(clock))
	tracker := dispatch.NewTracker()
	queue := delivery.NewMemory()
	opts := []scheduler.Option{scheduler.WithClock(clock)}
	if journal != nil {
		opts = append(opts, scheduler.WithJournal(journal))
	}
	sched := scheduler.New(scheduler.Config{Enabled: true}, store, tracker, queue, opts...)
	svc := chores.New(chores.Deps{Store: store, Tracker: tracker, Queue: queue, Scheduler: sched, Now: clock})
	var jr JournalReader
	if journal != nil {
		jr = journal
	}
	return New(cfg, svc, jr, logx.Nop())
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, string) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.String()
}

func TestReminderCRUD(t *testing.T) {
	h := newTestServer(t, Config{}, nil).Handler()

	code, body := do(t, h, http.MethodPost, "/reminders",
		`{"user_id":"u1","chore_name":"Take out trash","due_date":"2024-06-01T12:01:00Z","remind_offset_minutes":1}`)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, body)
	}
	var created reminder.Reminder
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || !created.RemindAt.Equal(t0) {
		t.Fatalf("unexpected reminder: %+v", created)
	}

	code, body = do(t, h, http.MethodGet, "/owners/u1/reminders", "")
	if code != http.StatusOK || !strings.Contains(body, created.ID) {
		t.Fatalf("list: %d %s", code, body)
	}
	if code, body = do(t, h, http.MethodGet, "/owners/nobody/reminders", ""); code != http.StatusOK || strings.TrimSpace(body) != "[]" {
		t.Fatalf("empty list: %d %s", code, body)
	}

	code, body = do(t, h, http.MethodPut, "/reminders/"+created.ID, `{"chore_name":"Recycling"}`)
	if code != http.StatusOK || !strings.Contains(body, `"chore_name":"Recycling"`) {
		t.Fatalf("update: %d %s", code, body)
	}

	if code, _ = do(t, h, http.MethodGet, "/reminders/"+created.ID, ""); code != http.StatusOK {
		t.Fatalf("get: %d", code)
	}

	code, body = do(t, h, http.MethodDelete, "/reminders/"+created.ID, "")
	if code != http.StatusOK || !strings.Contains(body, `"message":"Reminder deleted"`) {
		t.Fatalf("delete: %d %s", code, body)
	}
	if code, _ = do(t, h, http.MethodDelete, "/reminders/"+created.ID, ""); code != http.StatusNotFound {
		t.Fatalf("second delete: %d", code)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(t, Config{}, nil).Handler()
	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed json", http.MethodPost, "/reminders", `{"user_id":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/reminders", ``, http.StatusBadRequest},
		{"bad due", http.MethodPost, "/reminders", `{"user_id":"u","chore_name":"x","due_date":"someday","remind_offset_minutes":1}`, http.StatusBadRequest},
		{"string lead", http.MethodPost, "/reminders", `{"user_id":"u","chore_name":"x","due_date":"2024-06-01T12:00:00Z","remind_offset_minutes":"5"}`, http.StatusBadRequest},
		{"missing lead", http.MethodPost, "/reminders", `{"user_id":"u","chore_name":"x","due_date":"2024-06-01T12:00:00Z"}`, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/reminders/nope", `{"chore_name":"x"}`, http.StatusNotFound},
		{"update unknown with bad patch", http.MethodPut, "/reminders/nope", `{"chore_name":"","due_date":"someday","remind_offset_minutes":5}`, http.StatusNotFound},
		{"get unknown", http.MethodGet, "/reminders/nope", ``, http.StatusNotFound},
		{"no route", http.MethodGet, "/nowhere", ``, http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/reminders/x", ``, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := do(t, h, tc.method, tc.path, tc.body)
			if code != tc.want {
				t.Fatalf("status=%d want %d body=%s", code, tc.want, body)
			}
			if !strings.Contains(body, `"error"`) {
				t.Fatalf("error body missing: %s", body)
			}
		})
	}
}

func TestDispatchAndDrain(t *testing.T) {
	journal, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "j.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	defer journal.Close()
	h := newTestServer(t, Config{}, journal).Handler()

	do(t, h, http.MethodPost, "/reminders", `{"user_id":"u1","chore_name":"due now","due_date":"2024-06-01T12:00:00Z","remind_offset_minutes":0}`)
	do(t, h, http.MethodPost, "/reminders", `{"user_id":"u1","chore_name":"later","due_date":"2024-06-01T13:00:00Z","remind_offset_minutes":5}`)

	code, body := do(t, h, http.MethodPost, "/admin/dispatch", "")
	if code != http.StatusOK || !strings.Contains(body, `"dispatched":1`) {
		t.Fatalf("admin dispatch: %d %s", code, body)
	}

	code, body = do(t, h, http.MethodGet, "/dispatched", "")
	if code != http.StatusOK || !strings.Contains(body, "due now") || strings.Contains(body, "later") || !strings.Contains(body, "dispatched_at") {
		t.Fatalf("drain: %d %s", code, body)
	}
	if code, body = do(t, h, http.MethodGet, "/dispatched", ""); strings.TrimSpace(body) != "[]" {
		t.Fatalf("second drain: %d %s", code, body)
	}

	code, body = do(t, h, http.MethodGet, "/admin/journal?limit=10", "")
	if code != http.StatusOK || !strings.Contains(body, "due now") {
		t.Fatalf("journal: %d %s", code, body)
	}
	if code, _ = do(t, h, http.MethodGet, "/admin/journal?limit=zero", ""); code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", code)
	}
}

func TestJournalDisabled(t *testing.T) {
	h := newTestServer(t, Config{}, nil).Handler()
	if code, _ := do(t, h, http.MethodGet, "/admin/journal", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{RateRPS: 1, RateBurst: 2}, nil)
	h := srv.Handler()
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		code, _ := do(t, h, http.MethodGet, "/owners/u1/reminders", "")
		codes = append(codes, code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes=%v", codes)
	}
	// Health checks bypass the limiter.
	if code, _ := do(t, h, http.MethodGet, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz=%d", code)
	}

	srv.ApplyRateLimit(0, 0)
	if code, _ := do(t, h, http.MethodGet, "/owners/u1/reminders", ""); code != http.StatusOK {
		t.Fatalf("disabled limiter still limiting: %d", code)
	}
}

func TestHealthzRuntimeStats(t *testing.T) {
	srv := newTestServer(t, Config{}, nil)
	h := srv.Handler()
	if code, body := do(t, h, http.MethodGet, "/healthz", ""); code != http.StatusOK || strings.Contains(body, `"runtime"`) {
		t.Fatalf("healthz without runtime: %d %s", code, body)
	}

	sup := supervisor.New(context.Background())
	sup.Go("worker", func(context.Context) error { return errors.New("disk full") })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = sup.Wait(ctx)

	srv.SetRuntimeStats(sup.Snapshot)
	code, body := do(t, h, http.MethodGet, "/healthz", "")
	if code != http.StatusOK {
		t.Fatalf("healthz=%d", code)
	}
	for _, want := range []string{`"status":"degraded"`, `"runtime"`, `"name":"worker"`, "disk full"} {
		if !strings.Contains(body, want) {
			t.Fatalf("healthz body missing %s: %s", want, body)
		}
	}
}

func TestListenServeStop(t *testing.T) {
	srv := newTestServer(t, Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	srv.Stop(context.Background())
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not return after stop")
	}
}
