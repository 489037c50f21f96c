// Package dispatch records which reminders have already been handed to the
// delivery queue.
package dispatch

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Tracker is the set of dispatched reminder ids. It is safe for concurrent use.
type Tracker struct {
	set mapset.Set[string]
}

func NewTracker() *Tracker {
	return &Tracker{set: mapset.NewSet[string]()}
}

func (t *Tracker) IsDispatched(id string) bool { return t.set.Contains(id) }

// MarkDispatched records id and reports whether it was newly marked.
func (t *Tracker) MarkDispatched(id string) bool { return t.set.Add(id) }

// Forget drops id. Forgetting an unknown id is a no-op.
func (t *Tracker) Forget(id string) { t.set.Remove(id) }

// Retain drops every id not in live and returns how many were removed.
func (t *Tracker) Retain(live []string) int {
	keep := mapset.NewThreadUnsafeSet[string](live...)
	removed := 0
	for _, id := range t.set.ToSlice() {
		if !keep.Contains(id) {
			t.set.Remove(id)
			removed++
		}
	}
	return removed
}

func (t *Tracker) Len() int { return t.set.Cardinality() }
