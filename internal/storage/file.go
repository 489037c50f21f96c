package storage

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"choreminder/internal/reminder"
	logx "choreminder/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fileStore appends one JSON object per dispatch to a .jsonl file.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
	f  *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("journal.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("journal opened", logx.String("driver", "file"), logx.String("path", path))
	return &fileStore{log: log, path: path, f: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendDispatch(_ context.Context, snap reminder.Snapshot) error {
	b, err := json.Marshal(recordOf(snap))
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("journal file closed")
	}
	_, err = s.f.Write(b)
	return err
}

func (s *fileStore) Recent(ctx context.Context, limit int) ([]DispatchRecord, error) {
	if limit <= 0 {
		return []DispatchRecord{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Ring of the last limit records.
	ring := make([]DispatchRecord, 0, limit)
	start := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec DispatchRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			s.log.Warn("journal: skipping malformed line", logx.Err(err))
			continue
		}
		if len(ring) < limit {
			ring = append(ring, rec)
			continue
		}
		ring[start] = rec
		start = (start + 1) % limit
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	out := make([]DispatchRecord, 0, len(ring))
	out = append(out, ring[start:]...)
	out = append(out, ring[:start]...)
	return out, nil
}
