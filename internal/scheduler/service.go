package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"choreminder/internal/delivery"
	"choreminder/internal/dispatch"
	"choreminder/internal/eventbus"
	logx "choreminder/pkg/logx"
)

type Service struct {
	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	entryID cron.EntryID
	runCtx  context.Context

	// cycleMu serializes RunCycle so check/enqueue/mark is one step per id.
	cycleMu sync.Mutex

	store   Source
	tracker *dispatch.Tracker
	queue   delivery.Queue
	journal Journal
	log     logx.Logger
	bus     eventbus.Bus
	now     func() time.Time

	failLimiter *rate.Limiter
	suppressed  uint64

	statsMu sync.Mutex
	stats   Snapshot
}

type Option func(*Service)

func WithLogger(log logx.Logger) Option { return func(s *Service) { s.log = log } }

func WithBus(bus eventbus.Bus) Option {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithJournal(j Journal) Option { return func(s *Service) { s.journal = j } }

func New(cfg Config, store Source, tracker *dispatch.Tracker, queue delivery.Queue, opts ...Option) *Service {
	s := &Service{
		cfg:         cfg,
		store:       store,
		tracker:     tracker,
		queue:       queue,
		bus:         eventbus.Nop(),
		now:         time.Now,
		failLimiter: rate.NewLimiter(rate.Every(5*time.Second), 3),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// RearmOnUpdate reports whether updated reminders may be dispatched again.
func (s *Service) RearmOnUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.RearmOnUpdate
}

// Exclusive runs fn between dispatch cycles: no cycle can check, enqueue or
// mark while fn runs.
func (s *Service) Exclusive(fn func()) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	fn()
}

// Apply swaps the config. A changed interval or enabled flag re-registers the
// cron entry when the service is running.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if s.c == nil {
		return
	}
	if old.interval() != cfg.interval() || old.Enabled != cfg.Enabled {
		s.registerLocked()
		s.log.Info("dispatch schedule updated",
			logx.Bool("enabled", cfg.Enabled),
			logx.Duration("interval", cfg.interval()),
		)
	}
}

// Start begins cron triggering. Cycles run with ctx until Stop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	cl := cronLogger{log: s.log}
	s.runCtx = ctx
	s.c = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.registerLocked()
	s.c.Start()
	s.log.Info("service started",
		logx.Bool("enabled", s.cfg.Enabled),
		logx.Duration("interval", s.cfg.interval()),
	)
}

func (s *Service) registerLocked() {
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
		s.entryID = 0
	}
	if !s.cfg.Enabled {
		return
	}
	ctx := s.runCtx
	s.entryID = s.c.Schedule(cron.Every(s.cfg.interval()), cron.FuncJob(func() {
		s.RunCycle(ctx)
	}))
}

// Stop halts triggering and waits for a running cycle until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entryID = 0
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) Snapshot() Snapshot {
	s.statsMu.Lock()
	out := s.stats
	s.statsMu.Unlock()

	s.mu.Lock()
	out.Enabled = s.cfg.Enabled
	out.Interval = s.cfg.interval()
	out.RearmOnUpdate = s.cfg.RearmOnUpdate
	out.Running = s.c != nil
	if s.c != nil && s.entryID != 0 {
		out.Next = s.c.Entry(s.entryID).Next
	}
	s.mu.Unlock()

	out.TrackerSize = s.tracker.Len()
	return out
}
