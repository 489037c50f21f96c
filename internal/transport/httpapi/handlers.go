package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"choreminder/internal/chores"
	"choreminder/internal/reminder"
	"choreminder/internal/runtime/supervisor"
	"choreminder/internal/scheduler"
	"choreminder/internal/storage"
	logx "choreminder/pkg/logx"
)

// Service is the core surface the handlers call.
type Service interface {
	Create(ctx context.Context, d reminder.Draft) (reminder.Reminder, error)
	List(ctx context.Context, owner string) []reminder.Reminder
	Get(ctx context.Context, id string) (reminder.Reminder, error)
	Update(ctx context.Context, id string, p reminder.Patch) (reminder.Reminder, error)
	Delete(ctx context.Context, id string) error
	DrainDispatched(ctx context.Context) ([]reminder.Snapshot, error)
	RunDispatch(ctx context.Context) (scheduler.CycleReport, error)
	Stats(ctx context.Context) chores.Stats
}

// JournalReader serves /admin/journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]storage.DispatchRecord, error)
}

type handlers struct {
	svc     Service
	journal JournalReader
	log     logx.Logger

	// runtime is optional; set before serving.
	runtime func() supervisor.Snapshot
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", logx.String("path", r.URL.Path), logx.Err(err))
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func (h *handlers) createReminder(w http.ResponseWriter, r *http.Request) {
	var d reminder.Draft
	if err := decodeBody(r, w, &d); err != nil {
		h.fail(w, r, err)
		return
	}
	rem, err := h.svc.Create(r.Context(), d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (h *handlers) listReminders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.List(r.Context(), chi.URLParam(r, "owner")))
}

func (h *handlers) getReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (h *handlers) updateReminder(w http.ResponseWriter, r *http.Request) {
	var p reminder.Patch
	if err := decodeBody(r, w, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	rem, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (h *handlers) deleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Reminder deleted"})
}

func (h *handlers) drainDispatched(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.DrainDispatched(r.Context())
	if err != nil {
		if len(out) == 0 {
			h.fail(w, r, err)
			return
		}
		// The drained entries are gone from the queue; hand back what decoded.
		h.log.Warn("partial drain", logx.Int("returned", len(out)), logx.Err(err))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) runDispatch(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.RunDispatch(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycle": rep,
		"stats": h.svc.Stats(r.Context()),
	})
}

func (h *handlers) journalTail(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in 1..1000")
			return
		}
		limit = n
	}
	recs, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"stats":  h.svc.Stats(r.Context()),
	}
	if h.runtime != nil {
		rt := h.runtime()
		if rt.FirstError != "" {
			body["status"] = "degraded"
		}
		body["runtime"] = rt
	}
	writeJSON(w, http.StatusOK, body)
}
