package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"choreminder/internal/reminder"
	logx "choreminder/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("journal.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	log.Debug("journal opened", logx.String("driver", "sqlite"), logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendDispatch(ctx context.Context, snap reminder.Snapshot) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	r := recordOf(snap)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches(at, reminder_id, owner, label, due_at, remind_at, lead_minutes)
		 VALUES(?,?,?,?,?,?,?)`,
		r.At.Format(time.RFC3339Nano), r.ReminderID, r.Owner, r.Label,
		r.DueAt.Format(time.RFC3339Nano), r.RemindAt.Format(time.RFC3339Nano), r.LeadMinutes,
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]DispatchRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		return []DispatchRecord{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, reminder_id, owner, label, due_at, remind_at, lead_minutes
		 FROM dispatches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DispatchRecord
	for rows.Next() {
		var (
			rec               DispatchRecord
			at, due, remindAt string
		)
		if err := rows.Scan(&at, &rec.ReminderID, &rec.Owner, &rec.Label, &due, &remindAt, &rec.LeadMinutes); err != nil {
			return nil, err
		}
		rec.At = parseTime(at)
		rec.DueAt = parseTime(due)
		rec.RemindAt = parseTime(remindAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest first from the query; callers want oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []DispatchRecord{}
	}
	return out, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
