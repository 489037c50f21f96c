// Package reminder owns the authoritative set of chore reminders.
//
// A Reminder is due at DueAt and becomes eligible for dispatch at
// RemindAt = DueAt - lead time. The Store keeps records keyed by id with an
// owner index, hands out copies only, and is safe for concurrent use by the
// request handlers and the dispatch scheduler.
package reminder
