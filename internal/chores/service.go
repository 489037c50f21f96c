// Package chores is the operation surface of the reminder core. It composes
// the store, the dispatch tracker, the delivery queue and the scheduler, and
// publishes lifecycle events for every mutation.
package chores

import (
	"context"
	"fmt"
	"time"

	"choreminder/internal/delivery"
	"choreminder/internal/dispatch"
	"choreminder/internal/eventbus"
	"choreminder/internal/reminder"
	"choreminder/internal/scheduler"
	logx "choreminder/pkg/logx"
)

// Dispatcher is the slice of the scheduler the service needs.
type Dispatcher interface {
	RunCycle(ctx context.Context) scheduler.CycleReport
	Snapshot() scheduler.Snapshot
	RearmOnUpdate() bool
	Exclusive(fn func())
}

type Service struct {
	store   *reminder.Store
	tracker *dispatch.Tracker
	queue   delivery.Queue
	sched   Dispatcher
	bus     eventbus.Bus
	log     logx.Logger
	now     func() time.Time
}

type Deps struct {
	Store     *reminder.Store
	Tracker   *dispatch.Tracker
	Queue     delivery.Queue
	Scheduler Dispatcher
	Bus       eventbus.Bus
	Log       logx.Logger
	Now       func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		store:   d.Store,
		tracker: d.Tracker,
		queue:   d.Queue,
		sched:   d.Scheduler,
		bus:     d.Bus,
		log:     d.Log,
		now:     d.Now,
	}
	if s.bus == nil {
		s.bus = eventbus.Nop()
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) publish(typ string, data any) {
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now().UTC(), Data: data})
}

func (s *Service) Create(_ context.Context, d reminder.Draft) (reminder.Reminder, error) {
	r, err := s.store.Create(d)
	if err != nil {
		return reminder.Reminder{}, err
	}
	s.log.Debug("reminder created", logx.String("reminder_id", r.ID), logx.String("owner", r.Owner), logx.Time("remind_at", r.RemindAt))
	s.publish(eventbus.TypeReminderCreated, r)
	return r, nil
}

// List returns the owner's reminders in ascending due order.
func (s *Service) List(_ context.Context, owner string) []reminder.Reminder {
	return s.store.ListByOwner(owner)
}

func (s *Service) Get(_ context.Context, id string) (reminder.Reminder, error) {
	return s.store.Get(id)
}

// Update applies p. When rearming is enabled, a due/lead change clears the
// dispatch mark so the reminder can fire again at its new time. The store
// write and the clear run between dispatch cycles, so a cycle that is busy
// dispatching the old remind time cannot mark the id after the clear.
func (s *Service) Update(_ context.Context, id string, p reminder.Patch) (reminder.Reminder, error) {
	if !p.Reschedules() || s.sched == nil || !s.sched.RearmOnUpdate() {
		r, err := s.store.Update(id, p)
		if err != nil {
			return reminder.Reminder{}, err
		}
		s.publish(eventbus.TypeReminderUpdated, r)
		return r, nil
	}

	var (
		r       reminder.Reminder
		err     error
		rearmed bool
	)
	s.sched.Exclusive(func() {
		if r, err = s.store.Update(id, p); err != nil {
			return
		}
		if s.tracker.IsDispatched(id) {
			s.tracker.Forget(id)
			rearmed = true
		}
	})
	if err != nil {
		return reminder.Reminder{}, err
	}
	if rearmed {
		s.log.Debug("reminder rearmed", logx.String("reminder_id", id), logx.Time("remind_at", r.RemindAt))
	}
	s.publish(eventbus.TypeReminderUpdated, r)
	return r, nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.tracker.Forget(id)
	s.publish(eventbus.TypeReminderDeleted, id)
	return nil
}

// DrainDispatched empties the delivery queue and returns its entries in dispatch order.
func (s *Service) DrainDispatched(ctx context.Context) ([]reminder.Snapshot, error) {
	out, err := s.queue.DrainAll(ctx)
	if err != nil {
		return out, fmt.Errorf("drain dispatched: %w", err)
	}
	return out, nil
}

// RunDispatch forces a dispatch cycle outside the schedule.
func (s *Service) RunDispatch(ctx context.Context) (scheduler.CycleReport, error) {
	if s.sched == nil {
		return scheduler.CycleReport{}, fmt.Errorf("dispatch: no scheduler configured")
	}
	return s.sched.RunCycle(ctx), nil
}

// Stats is the health view served by the HTTP adapter.
type Stats struct {
	Reminders  int                `json:"reminders"`
	QueueDepth int                `json:"queue_depth"`
	Scheduler  scheduler.Snapshot `json:"scheduler"`
}

func (s *Service) Stats(ctx context.Context) Stats {
	st := Stats{Reminders: s.store.Len()}
	if n, err := s.queue.Len(ctx); err == nil {
		st.QueueDepth = n
	} else {
		st.QueueDepth = -1
		s.log.Warn("queue length unavailable", logx.Err(err))
	}
	if s.sched != nil {
		st.Scheduler = s.sched.Snapshot()
	}
	return st
}
