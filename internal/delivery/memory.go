package delivery

import (
	"context"
	"errors"
	"sync"

	"choreminder/internal/reminder"
)

var ErrClosed = errors.New("queue closed")

// Memory is an unbounded in-process queue.
type Memory struct {
	mu     sync.Mutex
	items  []reminder.Snapshot
	closed bool
}

func NewMemory() *Memory { return &Memory{} }

func (q *Memory) Enqueue(ctx context.Context, s reminder.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, s)
	return nil
}

func (q *Memory) DrainAll(ctx context.Context) ([]reminder.Snapshot, error) {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	if out == nil {
		out = []reminder.Snapshot{}
	}
	return out, nil
}

func (q *Memory) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *Memory) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}
