package reminder

import "time"

// Reminder is one chore notification obligation.
type Reminder struct {
	ID          string    `json:"reminder_id"`
	Owner       string    `json:"user_id"`
	Label       string    `json:"chore_name"`
	DueAt       time.Time `json:"due_date"`
	RemindAt    time.Time `json:"remind_time"`
	LeadMinutes float64   `json:"lead_minutes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Lead returns the lead time as a duration.
func (r Reminder) Lead() time.Duration { return minutes(r.LeadMinutes) }

// DueBy reports whether the reminder is eligible for dispatch at now.
func (r Reminder) DueBy(now time.Time) bool { return !r.RemindAt.After(now) }

// Snapshot copies the reminder as it looked when it was dispatched.
func (r Reminder) Snapshot(dispatchedAt time.Time) Snapshot {
	return Snapshot{Reminder: r, DispatchedAt: dispatchedAt.UTC()}
}

// Snapshot is an immutable copy of a reminder taken at dispatch time.
// All fields are values, so later changes to the source record never reach it.
type Snapshot struct {
	Reminder
	DispatchedAt time.Time `json:"dispatched_at"`
}

// Draft is the input of Store.Create. Field names follow the wire format.
type Draft struct {
	Owner string `json:"user_id" validate:"required,max=128"`
	Label string `json:"chore_name" validate:"required,max=512"`
	DueAt string `json:"due_date" validate:"required"`
	// LeadMinutes must be a JSON number (or a Go int/float); see ParseLeadMinutes.
	LeadMinutes any `json:"remind_offset_minutes"`
}

// Patch is the input of Store.Update. Nil fields are left alone.
//
// DueAt and LeadMinutes only take effect together; either one alone leaves the
// date fields untouched so RemindAt never drifts from DueAt.
type Patch struct {
	Label       *string `json:"chore_name,omitempty"`
	DueAt       *string `json:"due_date,omitempty"`
	LeadMinutes any     `json:"remind_offset_minutes,omitempty"`
}

// Reschedules reports whether the patch changes the due/remind pair.
func (p Patch) Reschedules() bool { return p.DueAt != nil && p.LeadMinutes != nil }
