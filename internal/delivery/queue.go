// Package delivery buffers dispatched reminder snapshots until a consumer
// drains them.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"choreminder/internal/reminder"
)

var ErrUnknownDriver = errors.New("unknown queue driver")

// Queue is a FIFO buffer of reminder snapshots.
type Queue interface {
	Enqueue(ctx context.Context, s reminder.Snapshot) error
	// DrainAll removes and returns every buffered entry in FIFO order.
	DrainAll(ctx context.Context) ([]reminder.Snapshot, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

type Config struct {
	Driver string // memory | redis
	Redis  RedisConfig
}

// Open builds the queue selected by cfg.Driver. An empty driver means memory.
func Open(ctx context.Context, cfg Config) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
