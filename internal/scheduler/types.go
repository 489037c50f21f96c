package scheduler

import (
	"context"
	"errors"
	"time"

	"choreminder/internal/reminder"
)

const (
	DefaultInterval = 60 * time.Second
	MinInterval     = time.Second
)

var ErrInvalidRemindTime = errors.New("reminder has no valid remind time")

type Config struct {
	Enabled  bool
	Interval time.Duration
	// RearmOnUpdate lets a reminder fire again after its due date or lead
	// time is changed. Consumed by the chores service.
	RearmOnUpdate bool
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return DefaultInterval
	}
	if c.Interval < MinInterval {
		return MinInterval
	}
	return c.Interval
}

// Source is the read side of the reminder store used by a cycle.
type Source interface {
	Snapshot() []reminder.Reminder
	Contains(id string) bool
}

// Journal records dispatched snapshots. Journal errors are logged, never fatal.
type Journal interface {
	AppendDispatch(ctx context.Context, s reminder.Snapshot) error
}

// CycleReport summarizes one RunCycle call.
type CycleReport struct {
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Considered int           `json:"considered"`
	Dispatched int           `json:"dispatched"`
	Failed     int           `json:"failed"`
	Pruned     int           `json:"pruned"`
}

// Failure is the payload of a dispatch.failed event.
type Failure struct {
	ReminderID string `json:"reminder_id"`
	Owner      string `json:"user_id"`
	Err        string `json:"error"`
}

// Snapshot is a read-only view of scheduler state.
type Snapshot struct {
	Enabled       bool          `json:"enabled"`
	Running       bool          `json:"running"`
	Interval      time.Duration `json:"interval"`
	RearmOnUpdate bool          `json:"rearm_on_update"`
	Next          time.Time     `json:"next"`
	Cycles        uint64        `json:"cycles"`
	Dispatched    uint64        `json:"dispatched"`
	Failures      uint64        `json:"failures"`
	LastCycle     time.Time     `json:"last_cycle"`
	LastDuration  time.Duration `json:"last_duration"`
	LastReport    CycleReport   `json:"last_report"`
	TrackerSize   int           `json:"tracker_size"`
}
