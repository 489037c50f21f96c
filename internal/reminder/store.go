package reminder

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory reminder repository.
type Store struct {
	mu      sync.RWMutex
	items   map[string]Reminder
	byOwner map[string]map[string]struct{}

	now   func() time.Time
	newID func() string
}

type StoreOption func(*Store)

// WithClock overrides the clock used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides id generation (tests use deterministic ids).
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		items:   make(map[string]Reminder),
		byOwner: make(map[string]map[string]struct{}),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates d and stores a new reminder.
func (s *Store) Create(d Draft) (Reminder, error) {
	d.Owner = strings.TrimSpace(d.Owner)
	d.Label = strings.TrimSpace(d.Label)
	if err := validateDraft(d); err != nil {
		return Reminder{}, err
	}
	due, err := ParseDue(d.DueAt)
	if err != nil {
		return Reminder{}, err
	}
	lead, err := ParseLeadMinutes(d.LeadMinutes)
	if err != nil {
		return Reminder{}, err
	}

	now := s.now().UTC()
	r := Reminder{
		Owner:       d.Owner,
		Label:       d.Label,
		DueAt:       due,
		RemindAt:    due.Add(-minutes(lead)),
		LeadMinutes: lead,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.uniqueIDLocked()
	s.items[r.ID] = r
	set := s.byOwner[r.Owner]
	if set == nil {
		set = make(map[string]struct{})
		s.byOwner[r.Owner] = set
	}
	set[r.ID] = struct{}{}
	return r, nil
}

func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if _, taken := s.items[id]; !taken && id != "" {
			return id
		}
	}
}

// Get returns a copy of the reminder with the given id.
func (s *Store) Get(id string) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return Reminder{}, &NotFoundError{ID: id}
	}
	return r, nil
}

// Contains reports whether id is currently stored.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	_, ok := s.items[id]
	s.mu.RUnlock()
	return ok
}

// ListByOwner returns the owner's reminders ordered by DueAt, then CreatedAt, then ID.
// An unknown owner yields an empty, non-nil slice.
func (s *Store) ListByOwner(owner string) []Reminder {
	s.mu.RLock()
	set := s.byOwner[strings.TrimSpace(owner)]
	out := make([]Reminder, 0, len(set))
	for id := range set {
		out = append(out, s.items[id])
	}
	s.mu.RUnlock()
	sortReminders(out)
	return out
}

// Update applies p to the reminder with the given id. An unknown id is
// reported before the patch is looked at. Validation happens before anything
// is written, so a rejected patch changes nothing.
func (s *Store) Update(id string, p Patch) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return Reminder{}, &NotFoundError{ID: id}
	}

	var label string
	if p.Label != nil {
		label = strings.TrimSpace(*p.Label)
		if err := validateLabel(label); err != nil {
			return Reminder{}, invalid("chore_name", "must be non-empty and at most 512 characters")
		}
	}
	var (
		due  time.Time
		lead float64
	)
	if p.Reschedules() {
		var err error
		if due, err = ParseDue(*p.DueAt); err != nil {
			return Reminder{}, err
		}
		if lead, err = ParseLeadMinutes(p.LeadMinutes); err != nil {
			return Reminder{}, err
		}
	}

	if p.Label != nil {
		r.Label = label
	}
	if p.Reschedules() {
		r.DueAt = due
		r.LeadMinutes = lead
		r.RemindAt = due.Add(-minutes(lead))
	}
	r.UpdatedAt = s.now().UTC()
	s.items[id] = r
	return r, nil
}

// Delete removes the reminder with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	delete(s.items, id)
	if set := s.byOwner[r.Owner]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byOwner, r.Owner)
		}
	}
	return nil
}

// Snapshot returns a point-in-time copy of every stored reminder,
// ordered like ListByOwner.
func (s *Store) Snapshot() []Reminder {
	s.mu.RLock()
	out := make([]Reminder, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sortReminders(out)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func sortReminders(rs []Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if !a.DueAt.Equal(b.DueAt) {
			return a.DueAt.Before(b.DueAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
