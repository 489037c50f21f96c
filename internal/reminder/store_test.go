package reminder

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testStore() *Store {
	n := 0
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return NewStore(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("r%d", n) }),
	)
}

func TestCreateComputesRemindTime(t *testing.T) {
	s := testStore()
	r, err := s.Create(Draft{Owner: "u1", Label: "trash", DueAt: "2024-01-01T10:00:00+00:00", LeadMinutes: 30.0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	if !r.RemindAt.Equal(want) {
		t.Fatalf("remind_at=%v want %v", r.RemindAt, want)
	}
	if r.ID != "r1" || r.Lead() != 30*time.Minute {
		t.Fatalf("unexpected reminder: %+v", r)
	}
}

func TestCreateNormalizesOffsetToUTC(t *testing.T) {
	s := testStore()
	r, err := s.Create(Draft{Owner: "u1", Label: "dishes", DueAt: "2024-01-01T12:00:00+02:00", LeadMinutes: 0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.DueAt.Location() != time.UTC || r.DueAt.Hour() != 10 {
		t.Fatalf("due_at=%v", r.DueAt)
	}
	if !r.RemindAt.Equal(r.DueAt) {
		t.Fatalf("zero lead should remind at due time")
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		draft Draft
		field string
	}{
		{"missing owner", Draft{Label: "x", DueAt: "2024-01-01T10:00:00Z", LeadMinutes: 1}, "user_id"},
		{"blank label", Draft{Owner: "u", Label: "   ", DueAt: "2024-01-01T10:00:00Z", LeadMinutes: 1}, "chore_name"},
		{"naive due", Draft{Owner: "u", Label: "x", DueAt: "2024-01-01T10:00:00", LeadMinutes: 1}, "due_date"},
		{"garbage due", Draft{Owner: "u", Label: "x", DueAt: "tomorrow", LeadMinutes: 1}, "due_date"},
		{"missing lead", Draft{Owner: "u", Label: "x", DueAt: "2024-01-01T10:00:00Z"}, "remind_offset_minutes"},
		{"string lead", Draft{Owner: "u", Label: "x", DueAt: "2024-01-01T10:00:00Z", LeadMinutes: "30"}, "remind_offset_minutes"},
		{"negative lead", Draft{Owner: "u", Label: "x", DueAt: "2024-01-01T10:00:00Z", LeadMinutes: -1.0}, "remind_offset_minutes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testStore()
			_, err := s.Create(tc.draft)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("field=%v want %q", err, tc.field)
			}
			if s.Len() != 0 {
				t.Fatalf("invalid draft was stored")
			}
		})
	}
}

func TestListByOwnerOrderAndIsolation(t *testing.T) {
	s := testStore()
	mk := func(owner, label, due string) {
		if _, err := s.Create(Draft{Owner: owner, Label: label, DueAt: due, LeadMinutes: 0}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mk("u1", "late", "2024-01-03T00:00:00Z")
	mk("u1", "early", "2024-01-01T00:00:00Z")
	mk("u2", "other", "2024-01-02T00:00:00Z")

	got := s.ListByOwner("u1")
	if len(got) != 2 || got[0].Label != "early" || got[1].Label != "late" {
		t.Fatalf("unexpected list: %+v", got)
	}
	if empty := s.ListByOwner("nobody"); empty == nil || len(empty) != 0 {
		t.Fatalf("unknown owner should yield empty non-nil slice, got %#v", empty)
	}
}

func TestUpdateSemantics(t *testing.T) {
	s := testStore()
	r, _ := s.Create(Draft{Owner: "u1", Label: "trash", DueAt: "2024-01-01T10:00:00Z", LeadMinutes: 30})

	label := "recycling"
	due := "2024-01-02T10:00:00Z"

	// Due date without a lead leaves the dates alone.
	got, err := s.Update(r.ID, Patch{Label: &label, DueAt: &due})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Label != "recycling" || !got.DueAt.Equal(r.DueAt) || !got.RemindAt.Equal(r.RemindAt) {
		t.Fatalf("unexpected partial update: %+v", got)
	}

	got, err = s.Update(r.ID, Patch{DueAt: &due, LeadMinutes: 60.0})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !got.RemindAt.Equal(want) {
		t.Fatalf("remind_at=%v want %v", got.RemindAt, want)
	}

	bad := "nope"
	if _, err := s.Update(r.ID, Patch{Label: &label, DueAt: &bad, LeadMinutes: 5}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	after, _ := s.Get(r.ID)
	if !after.DueAt.Equal(got.DueAt) {
		t.Fatalf("rejected patch changed the record")
	}

	empty := ""
	for _, tc := range []struct {
		name  string
		patch Patch
	}{
		{"valid label", Patch{Label: &label}},
		{"empty label", Patch{Label: &empty}},
		{"bad due date", Patch{DueAt: &bad, LeadMinutes: 5}},
		{"negative lead", Patch{DueAt: &due, LeadMinutes: -1}},
	} {
		_, err := s.Update("missing", tc.patch)
		if !errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected not found, got %v", tc.name, err)
		}
	}
}

func TestDeleteAndCopies(t *testing.T) {
	s := testStore()
	r, _ := s.Create(Draft{Owner: "u1", Label: "trash", DueAt: "2024-01-01T10:00:00Z", LeadMinutes: 0})

	snap := s.Snapshot()
	snap[0].Label = "mutated"
	if got, _ := s.Get(r.ID); got.Label != "trash" {
		t.Fatalf("snapshot aliases the store")
	}

	if err := s.Delete(r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if s.Contains(r.ID) || len(s.ListByOwner("u1")) != 0 {
		t.Fatalf("reminder still visible after delete")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r, err := s.Create(Draft{Owner: "u", Label: "x", DueAt: "2024-01-01T10:00:00Z", LeadMinutes: j})
				if err != nil {
					t.Errorf("create: %v", err)
					return
				}
				_ = s.Snapshot()
				if j%2 == 0 {
					_ = s.Delete(r.ID)
				}
			}
		}(i)
	}
	wg.Wait()
	if got := s.Len(); got != 8*25 {
		t.Fatalf("len=%d want %d", got, 8*25)
	}
}

func TestParseLeadMinutes(t *testing.T) {
	for _, v := range []any{0, 15, 1.5, int64(2)} {
		if _, err := ParseLeadMinutes(v); err != nil {
			t.Fatalf("ParseLeadMinutes(%v): %v", v, err)
		}
	}
	for _, v := range []any{nil, "5", true, -0.5} {
		if _, err := ParseLeadMinutes(v); err == nil {
			t.Fatalf("ParseLeadMinutes(%v) should fail", v)
		}
	}
}
