package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"choreminder/internal/chores"
	"choreminder/internal/config"
	"choreminder/internal/delivery"
	"choreminder/internal/dispatch"
	"choreminder/internal/eventbus"
	"choreminder/internal/reminder"
	"choreminder/internal/runtime/sdnotify"
	"choreminder/internal/runtime/supervisor"
	"choreminder/internal/scheduler"
	"choreminder/internal/storage"
	"choreminder/internal/transport/httpapi"
	logx "choreminder/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   *reminder.Store
	tracker *dispatch.Tracker
	queue   delivery.Queue
	journal storage.Store

	sched *scheduler.Service
	svc   *chores.Service
	http  *httpapi.Server
	sd    *sdnotify.Notifier
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	queue, err := delivery.Open(context.Background(), mapQueueConfig(cfg))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open queue: %w", err)
	}

	var journal storage.Store
	if jc, enabled := mapJournalConfig(cfg); enabled {
		st, err := storage.Open(jc, root.With(logx.String("comp", "journal")))
		if err != nil {
			_ = queue.Close()
			_ = logSvc.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		journal = st
		log.Info("journal enabled", logx.String("driver", jc.Driver), logx.String("path", jc.Path))
	}

	// One clock for remind-time math, dispatch checks and event stamps.
	now := time.Now
	bus := eventbus.New()
	store := reminder.NewStore(reminder.WithClock(now))
	tracker := dispatch.NewTracker()

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(root.With(logx.String("comp", "scheduler"))),
		scheduler.WithBus(bus),
		scheduler.WithClock(now),
	}
	var jr httpapi.JournalReader
	if journal != nil {
		schedOpts = append(schedOpts, scheduler.WithJournal(journal))
		jr = journal
	}
	sched := scheduler.New(mapSchedulerConfig(cfg), store, tracker, queue, schedOpts...)

	svc := chores.New(chores.Deps{
		Store:     store,
		Tracker:   tracker,
		Queue:     queue,
		Scheduler: sched,
		Bus:       bus,
		Log:       root.With(logx.String("comp", "chores")),
		Now:       now,
	})

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		tracker: tracker,
		queue:   queue,
		journal: journal,
		sched:   sched,
		svc:     svc,
		http:    httpapi.New(mapHTTPConfig(cfg), svc, jr, root.With(logx.String("comp", "http"))),
		sd:      sdnotify.New(mapSystemdConfig(cfg), root.With(logx.String("comp", "systemd"))),
	}, nil
}

// HTTPAddr is the bound API address after Start.
func (a *App) HTTPAddr() string { return a.http.Addr() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.http.Listen(); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("http listen: %w", err)
	}
	a.http.SetRuntimeStats(a.sup.Snapshot)
	a.sup.Go("http.serve", a.http.Serve)

	a.sched.Start(a.sup.Context())

	a.startEventLog()
	a.startConfigReload()
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return a.sd.RunWatchdog(c, func() bool { return a.sup.Err() == nil })
	})

	a.sd.Ready()
	a.sd.Status("serving on %s", a.HTTPAddr())
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("http", a.HTTPAddr()),
		logx.Duration("dispatch_interval", a.sched.Snapshot().Interval),
	)
	return nil
}

// startEventLog logs bus events at debug level.
func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
				switch d := e.Data.(type) {
				case reminder.Reminder:
					fields = append(fields, logx.String("reminder_id", d.ID))
				case reminder.Snapshot:
					fields = append(fields, logx.String("reminder_id", d.ID))
				case scheduler.Failure:
					fields = append(fields, logx.String("reminder_id", d.ReminderID), logx.String("error", d.Err))
				case string:
					fields = append(fields, logx.String("reminder_id", d))
				}
				if e.Type == eventbus.TypeCycleCompleted {
					a.log.Trace("event", fields...)
					continue
				}
				a.log.Debug("event", fields...)
			}
		}
	})
}

func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

// applyConfig pushes the live-reloadable parts of newCfg into running components.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	ch := config.SummarizeConfigChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogConfig(newCfg))
	a.sched.Apply(mapSchedulerConfig(newCfg))
	hc := mapHTTPConfig(newCfg)
	if oldCfg == nil || oldCfg.HTTP.RateLimit != newCfg.HTTP.RateLimit {
		a.http.ApplyRateLimit(hc.RateRPS, hc.RateBurst)
	}
	if len(ch.RestartRequired) > 0 {
		a.log.Warn("config changed in sections that need a restart to take effect",
			logx.String("sections", strings.Join(ch.RestartRequired, ",")))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		a.runStopStep(ctx, name, max, fn)
	}

	step("http", 6*time.Second, func(c context.Context) error { a.http.Stop(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("queue", 1*time.Second, func(context.Context) error { return a.queue.Close() })
	step("journal", 1*time.Second, func(context.Context) error {
		if a.journal != nil {
			return a.journal.Close()
		}
		return nil
	})
	// Finally wait for supervised goroutines (config watch/reload, event log, watchdog).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Stop(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// runStopStep runs fn with an upper bound so one component can't stall the whole stop.
func (a *App) runStopStep(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx := ctx
	if max > 0 {
		// Respect the caller's deadline; never extend it.
		if dl, ok := ctx.Deadline(); ok {
			max = min(max, time.Until(dl))
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			if err := <-done; err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
			}
		}()
	}
}
