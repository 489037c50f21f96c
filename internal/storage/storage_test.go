package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"choreminder/internal/reminder"
	logx "choreminder/pkg/logx"
)

func snapshot(i int) reminder.Snapshot {
	due := time.Date(2024, 2, 1, 10, 0, i, 0, time.UTC)
	r := reminder.Reminder{
		ID:          fmt.Sprintf("r%d", i),
		Owner:       "u1",
		Label:       "chore",
		DueAt:       due,
		RemindAt:    due.Add(-5 * time.Minute),
		LeadMinutes: 5,
	}
	return r.Snapshot(due.Add(-4 * time.Minute))
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: st=%v err=%v", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver should fail")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("file driver without path should fail")
	}
}

func TestJournalDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		driver string
		file   string
	}{
		{"file", "journal.jsonl"},
		{"sqlite", "journal.db"},
	}
	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tc.file)
			st, err := Open(Config{Driver: tc.driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer st.Close()

			for i := 0; i < 5; i++ {
				if err := st.AppendDispatch(ctx, snapshot(i)); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			got, err := st.Recent(ctx, 3)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(got) != 3 || got[0].ReminderID != "r2" || got[2].ReminderID != "r4" {
				t.Fatalf("unexpected records: %+v", got)
			}
			want := snapshot(4)
			if !got[2].At.Equal(want.DispatchedAt) || !got[2].RemindAt.Equal(want.RemindAt) || got[2].LeadMinutes != 5 {
				t.Fatalf("record fields lost: %+v", got[2])
			}

			all, err := st.Recent(ctx, 100)
			if err != nil || len(all) != 5 {
				t.Fatalf("recent(100)=%d err=%v", len(all), err)
			}
		})
	}
}

func TestFileJournalSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "j.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = st.AppendDispatch(ctx, snapshot(1))
	_ = st.Close()

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	_ = st.AppendDispatch(ctx, snapshot(2))
	got, err := st.Recent(ctx, 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("got %d records err=%v", len(got), err)
	}
}
