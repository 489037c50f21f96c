package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "choreminder/pkg/logx"
)

var ErrInvalid = errors.New("invalid config")

// Validate checks values that cannot be expressed by the JSON schema alone.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	check := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	check("http.read_timeout", cfg.HTTP.ReadTimeout)
	check("http.write_timeout", cfg.HTTP.WriteTimeout)
	check("http.idle_timeout", cfg.HTTP.IdleTimeout)
	check("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	check("queue.redis.dial_timeout", cfg.Queue.Redis.DialTimeout)
	check("journal.busy_timeout", cfg.Journal.BusyTimeout)

	if d, err := ParseDurationField("scheduler.interval", cfg.Scheduler.Interval); err != nil {
		errs = append(errs, err)
	} else if d > 0 && d < time.Second {
		errs = append(errs, fmt.Errorf("scheduler.interval: must be >= 1s, got %s", d))
	}

	if cfg.HTTP.RateLimit.RPS < 0 || cfg.HTTP.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("http.rate_limit: rps and burst must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Queue.Driver)) {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(cfg.Queue.Redis.Addr) == "" {
			errs = append(errs, errors.New("queue.redis.addr: required for redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.driver: unknown driver %q", cfg.Queue.Driver))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Journal.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Journal.Path) == "" {
			errs = append(errs, errors.New("journal.path: required when journal is enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.driver: unknown driver %q", cfg.Journal.Driver))
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && logx.ParseLevel(lvl, logx.LevelInfo) != logx.ParseLevel(lvl, logx.LevelError) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", lvl))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path: required when file logging is enabled"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
