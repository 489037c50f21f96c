package storage

import (
	"errors"
	"time"

	"choreminder/internal/reminder"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the journal.
//
// Driver values:
//   - "file": JSON Lines file at Path
//   - "sqlite": SQLite database file at Path (pure Go driver)
//
// If Driver is empty or "none", the journal is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DispatchRecord is one journal line. Keep it compact and schema-stable.
type DispatchRecord struct {
	At          time.Time `json:"at"`
	ReminderID  string    `json:"reminder_id"`
	Owner       string    `json:"user_id"`
	Label       string    `json:"chore_name"`
	DueAt       time.Time `json:"due_date"`
	RemindAt    time.Time `json:"remind_time"`
	LeadMinutes float64   `json:"lead_minutes"`
}

func recordOf(s reminder.Snapshot) DispatchRecord {
	at := s.DispatchedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return DispatchRecord{
		At:          at,
		ReminderID:  s.ID,
		Owner:       s.Owner,
		Label:       s.Label,
		DueAt:       s.DueAt,
		RemindAt:    s.RemindAt,
		LeadMinutes: s.LeadMinutes,
	}
}
