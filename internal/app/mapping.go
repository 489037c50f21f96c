package app

import (
	"strings"
	"time"

	"choreminder/internal/config"
	"choreminder/internal/delivery"
	"choreminder/internal/runtime/sdnotify"
	"choreminder/internal/scheduler"
	"choreminder/internal/storage"
	"choreminder/internal/transport/httpapi"
	logx "choreminder/pkg/logx"
)

// The map* functions turn a validated config into component configs,
// filling defaults for omitted values.

func mapLogConfig(cfg *config.Config) logx.Config {
	level := strings.TrimSpace(cfg.Logging.Level)
	if level == "" {
		level = "info"
	}
	return logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:       cfg.SchedulerEnabled(),
		Interval:      config.DurationOr(cfg.Scheduler.Interval, scheduler.DefaultInterval),
		RearmOnUpdate: cfg.Scheduler.RearmOnUpdate,
	}
}

func mapHTTPConfig(cfg *config.Config) httpapi.Config {
	h := cfg.HTTP
	addr := strings.TrimSpace(h.Addr)
	if addr == "" {
		addr = ":8080"
	}
	return httpapi.Config{
		Addr:            addr,
		ReadTimeout:     config.DurationOr(h.ReadTimeout, 10*time.Second),
		WriteTimeout:    config.DurationOr(h.WriteTimeout, 10*time.Second),
		IdleTimeout:     config.DurationOr(h.IdleTimeout, 60*time.Second),
		ShutdownTimeout: config.DurationOr(h.ShutdownTimeout, 5*time.Second),
		RateRPS:         h.RateLimit.RPS,
		RateBurst:       h.RateLimit.Burst,
		Pprof:           h.Pprof,
	}
}

func mapQueueConfig(cfg *config.Config) delivery.Config {
	q := cfg.Queue
	return delivery.Config{
		Driver: strings.ToLower(strings.TrimSpace(q.Driver)),
		Redis: delivery.RedisConfig{
			Addr:        strings.TrimSpace(q.Redis.Addr),
			Password:    q.Redis.Password,
			DB:          q.Redis.DB,
			Key:         strings.TrimSpace(q.Redis.Key),
			DialTimeout: config.DurationOr(q.Redis.DialTimeout, 3*time.Second),
		},
	}
}

// mapJournalConfig reports enabled=false for the "none" driver.
func mapJournalConfig(cfg *config.Config) (storage.Config, bool) {
	j := cfg.Journal
	driver := strings.ToLower(strings.TrimSpace(j.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(j.Path),
		BusyTimeout: config.DurationOr(j.BusyTimeout, time.Second),
	}, true
}

func mapSystemdConfig(cfg *config.Config) sdnotify.Config {
	return sdnotify.Config{Notify: cfg.Systemd.Notify, Watchdog: cfg.Systemd.Watchdog}
}
