package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"choreminder/internal/eventbus"
	"choreminder/internal/reminder"
	logx "choreminder/pkg/logx"
)

// RunCycle performs one dispatch pass and returns its report.
// Per-reminder errors are logged, counted and published; they never abort the pass.
func (s *Service) RunCycle(ctx context.Context) CycleReport {
	if ctx == nil {
		ctx = context.Background()
	}
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	started := time.Now()
	now := s.now().UTC()
	items := s.store.Snapshot()
	rep := CycleReport{Started: now, Considered: len(items)}

	live := make([]string, 0, len(items))
	for _, r := range items {
		live = append(live, r.ID)
		if ctx.Err() != nil {
			continue
		}
		sent, err := s.dispatchOne(ctx, r, now)
		switch {
		case err != nil:
			rep.Failed++
			s.reportFailure(now, r, err)
		case sent:
			rep.Dispatched++
		}
	}
	// Ids of reminders deleted since they were marked.
	rep.Pruned = s.tracker.Retain(live)
	rep.Duration = time.Since(started)

	s.statsMu.Lock()
	s.stats.Cycles++
	s.stats.Dispatched += uint64(rep.Dispatched)
	s.stats.Failures += uint64(rep.Failed)
	s.stats.LastCycle = now
	s.stats.LastDuration = rep.Duration
	s.stats.LastReport = rep
	s.statsMu.Unlock()

	if rep.Dispatched > 0 || rep.Failed > 0 {
		s.log.Info("dispatch cycle",
			logx.Int("considered", rep.Considered),
			logx.Int("dispatched", rep.Dispatched),
			logx.Int("failed", rep.Failed),
			logx.Int("pruned", rep.Pruned),
			logx.Duration("took", rep.Duration),
		)
	} else {
		s.log.Debug("dispatch cycle", logx.Int("considered", rep.Considered), logx.Duration("took", rep.Duration))
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleCompleted, Time: now, Data: rep})
	return rep
}

func (s *Service) dispatchOne(ctx context.Context, r reminder.Reminder, now time.Time) (sent bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("dispatch panic", logx.String("reminder_id", r.ID), logx.Stack(string(debug.Stack())))
			sent, err = false, fmt.Errorf("panic: %v", rec)
		}
	}()

	if s.tracker.IsDispatched(r.ID) {
		return false, nil
	}
	if r.RemindAt.IsZero() {
		return false, fmt.Errorf("%w: %s", ErrInvalidRemindTime, r.ID)
	}
	if !r.DueBy(now) {
		return false, nil
	}

	snap := r.Snapshot(now)
	if err := s.queue.Enqueue(ctx, snap); err != nil {
		return false, fmt.Errorf("enqueue: %w", err)
	}
	s.tracker.MarkDispatched(r.ID)
	if !s.store.Contains(r.ID) {
		// Deleted while we were dispatching it.
		s.tracker.Forget(r.ID)
	}

	if s.journal != nil {
		if err := s.journal.AppendDispatch(ctx, snap); err != nil {
			s.log.Warn("journal append failed", logx.String("reminder_id", r.ID), logx.Err(err))
		}
	}
	s.log.Info("reminder due",
		logx.String("reminder_id", r.ID),
		logx.String("owner", r.Owner),
		logx.String("label", r.Label),
		logx.Time("due_at", r.DueAt),
		logx.Time("remind_at", r.RemindAt),
		logx.Duration("lead", r.Lead()),
	)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeDispatchSent, Time: now, Data: snap})
	return true, nil
}

func (s *Service) reportFailure(now time.Time, r reminder.Reminder, err error) {
	s.bus.Publish(eventbus.Event{
		Type: eventbus.TypeDispatchFailed,
		Time: now,
		Data: Failure{ReminderID: r.ID, Owner: r.Owner, Err: err.Error()},
	})
	if !s.failLimiter.Allow() {
		atomic.AddUint64(&s.suppressed, 1)
		return
	}
	fields := []logx.Field{logx.String("reminder_id", r.ID), logx.Err(err)}
	if n := atomic.SwapUint64(&s.suppressed, 0); n > 0 {
		fields = append(fields, logx.Uint64("suppressed", n))
	}
	s.log.Warn("dispatch failed, will retry next cycle", fields...)
}
