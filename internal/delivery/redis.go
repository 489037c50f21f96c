package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"choreminder/internal/reminder"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Key         string
	DialTimeout time.Duration
}

// Redis keeps the queue in a Redis list so dispatched reminders survive a
// restart of this process.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis queue: addr is required")
	}
	if cfg.Key == "" {
		cfg.Key = "choreminder:dispatched"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis queue: ping %s: %w", cfg.Addr, err)
	}
	return &Redis{client: rdb, key: cfg.Key}, nil
}

func (q *Redis) Enqueue(ctx context.Context, s reminder.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis queue: encode %s: %w", s.ID, err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("redis queue: rpush: %w", err)
	}
	return nil
}

// DrainAll reads and deletes the list inside MULTI/EXEC, so pushes that race
// with the drain land either in this batch or in the next one.
func (q *Redis) DrainAll(ctx context.Context) ([]reminder.Snapshot, error) {
	var lr *redis.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lr = pipe.LRange(ctx, q.key, 0, -1)
		pipe.Del(ctx, q.key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis queue: drain: %w", err)
	}
	raw, err := lr.Result()
	if err != nil {
		return nil, fmt.Errorf("redis queue: drain: %w", err)
	}
	out := make([]reminder.Snapshot, 0, len(raw))
	var errs []error
	for i, item := range raw {
		var s reminder.Snapshot
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			// Already deleted from Redis: keep the rest of the batch and report the bad entry.
			errs = append(errs, fmt.Errorf("redis queue: decode entry %d: %w", i, err))
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

func (q *Redis) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis queue: llen: %w", err)
	}
	return int(n), nil
}

func (q *Redis) Close() error { return q.client.Close() }
