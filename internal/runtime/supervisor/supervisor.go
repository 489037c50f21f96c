// Package supervisor runs the service's background goroutines under one
// cancelable context with panic recovery and deadline-aware shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	logx "choreminder/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
// - Named goroutines (for logging/debug)
// - Panic recovery
// - Optional cancel-on-first-error
// - Graceful stop with timeout-aware waiting
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	started uint64
	active  int64

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}
	wg          sync.WaitGroup

	mu    sync.Mutex
	stats map[string]*routineStats
}

type Option func(*Supervisor)

// Counters exposes best-effort goroutine counters.
type Counters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
}

// RoutineStats is an aggregated view of goroutines started under one name.
type RoutineStats struct {
	Name      string    `json:"name"`
	Active    int64     `json:"active"`
	Started   uint64    `json:"started"`
	Panics    uint64    `json:"panics"`
	Restarts  uint64    `json:"restarts"`
	LastStart time.Time `json:"last_start"`
	LastErr   string    `json:"last_err,omitempty"`
}

// Snapshot is a point-in-time view for /healthz.
type Snapshot struct {
	Counters   Counters       `json:"counters"`
	FirstError string         `json:"first_error,omitempty"`
	Routines   []RoutineStats `json:"routines"`
}

type routineStats struct {
	active    int64
	started   uint64
	panics    uint64
	restarts  uint64
	lastStart time.Time
	lastErr   string
}

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError makes the first non-nil goroutine error cancel the supervisor context.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
		stats:  map[string]*routineStats{},
		log:    logx.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines to exit.
func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	if err, ok := s.firstErr.Load().(error); ok {
		return err
	}
	return nil
}

func (s *Supervisor) Counters() Counters {
	if s == nil {
		return Counters{}
	}
	return Counters{
		Active:  atomic.LoadInt64(&s.active),
		Started: atomic.LoadUint64(&s.started),
	}
}

func (s *Supervisor) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snap := Snapshot{Counters: s.Counters()}
	if err := s.Err(); err != nil {
		snap.FirstError = err.Error()
	}

	s.mu.Lock()
	rs := make([]RoutineStats, 0, len(s.stats))
	for name, st := range s.stats {
		rs = append(rs, RoutineStats{
			Name:      name,
			Active:    st.active,
			Started:   st.started,
			Panics:    st.panics,
			Restarts:  st.restarts,
			LastStart: st.lastStart,
			LastErr:   st.lastErr,
		})
	}
	s.mu.Unlock()

	sort.Slice(rs, func(i, j int) bool { return rs[i].Name < rs[j].Name })
	snap.Routines = rs
	return snap
}

func (s *Supervisor) statsFor(name string) *routineStats {
	st := s.stats[name]
	if st == nil {
		st = &routineStats{}
		s.stats[name] = st
	}
	return st
}

func (s *Supervisor) noteStart(name string, restart bool) {
	s.mu.Lock()
	st := s.statsFor(name)
	st.started++
	st.active++
	if restart {
		st.restarts++
	}
	st.lastStart = time.Now()
	s.mu.Unlock()
}

func (s *Supervisor) noteStop(name string, err error, panicked bool) {
	s.mu.Lock()
	st := s.statsFor(name)
	if st.active > 0 {
		st.active--
	}
	if panicked {
		st.panics++
	}
	if err != nil {
		st.lastErr = err.Error()
	}
	s.mu.Unlock()
}

// runOnce calls fn, converting a panic into an error.
func (s *Supervisor) runOnce(name string, fn func(ctx context.Context) error) (err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("panic in %s: %v", name, r)
			s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return fn(s.ctx), false
}

// Go runs fn once. A returned error (other than context.Canceled) or a panic is
// recorded as the supervisor error.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		s.noteStart(name, false)
		s.log.Debug("goroutine started", logx.String("name", name))

		err, panicked := s.runOnce(name, fn)
		if err != nil && errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil && !panicked {
			err = fmt.Errorf("%s: %w", name, err)
		}
		s.noteStop(name, err, panicked)
		if err != nil {
			s.fail(err)
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// GoRestart runs fn and restarts it on error or panic with jittered exponential
// backoff until the supervisor context is canceled. A nil return stops it.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, minBackoff, maxBackoff time.Duration) {
	if fn == nil {
		return
	}
	if minBackoff <= 0 {
		minBackoff = 250 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	s.Go0(name+".restart", func(ctx context.Context) {
		backoff := minBackoff
		restarts := 0
		for ctx.Err() == nil {
			s.noteStart(name, restarts > 0)
			startedAt := time.Now()
			err, panicked := s.runOnce(name, fn)

			if ctx.Err() != nil || errors.Is(err, context.Canceled) || (err == nil && !panicked) {
				s.noteStop(name, nil, false)
				return
			}
			s.noteStop(name, err, panicked)
			restarts++

			// A loop that ran for a while before failing starts over at the short backoff.
			if time.Since(startedAt) >= 30*time.Second {
				backoff = minBackoff
			}
			wait := backoff
			if j := int64(wait) / 5; j > 0 {
				wait += time.Duration(time.Now().UnixNano() % (j + 1))
			}
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	})
}

func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

func (s *Supervisor) fail(err error) {
	s.errOnce.Do(func() { s.firstErr.Store(err) })
	if s.cancelOnErr {
		s.cancel()
	}
}
