package config

import (
	"strings"

	logx "choreminder/pkg/logx"
)

// Change describes what a reload touched.
type Change struct {
	// Sections lists changed top-level sections in file order.
	Sections []string
	// Fields are safe log attributes for the changed sections (no secrets).
	Fields []logx.Field
	// RestartRequired lists changed settings that only apply on restart.
	RestartRequired []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeConfigChange compares two configs for logging and restart warnings.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	o, n := oldCfg, newCfg

	if o.HTTP != n.HTTP {
		ch.Sections = append(ch.Sections, "http")
		ch.Fields = append(ch.Fields,
			logx.String("http.addr", n.HTTP.Addr),
			logx.Any("http.rate_limit.rps", n.HTTP.RateLimit.RPS),
			logx.Int("http.rate_limit.burst", n.HTTP.RateLimit.Burst),
		)
		withoutLimit := func(h HTTPConfig) HTTPConfig { h.RateLimit = RateLimitConfig{}; return h }
		if withoutLimit(o.HTTP) != withoutLimit(n.HTTP) {
			ch.RestartRequired = append(ch.RestartRequired, "http")
		}
	}

	if o.Logging != n.Logging {
		ch.Sections = append(ch.Sections, "logging")
		ch.Fields = append(ch.Fields,
			logx.String("logging.level", n.Logging.Level),
			logx.Bool("logging.console", n.Logging.Console),
			logx.Bool("logging.file_enabled", n.Logging.File.Enabled),
		)
	}

	if schedulerEnabled(o.Scheduler) != schedulerEnabled(n.Scheduler) ||
		strings.TrimSpace(o.Scheduler.Interval) != strings.TrimSpace(n.Scheduler.Interval) ||
		o.Scheduler.RearmOnUpdate != n.Scheduler.RearmOnUpdate {
		ch.Sections = append(ch.Sections, "scheduler")
		ch.Fields = append(ch.Fields,
			logx.Bool("scheduler.enabled", schedulerEnabled(n.Scheduler)),
			logx.String("scheduler.interval", n.Scheduler.Interval),
			logx.Bool("scheduler.rearm_on_update", n.Scheduler.RearmOnUpdate),
		)
	}

	// Never log the redis password; only whether it is set.
	if o.Queue != n.Queue {
		ch.Sections = append(ch.Sections, "queue")
		ch.RestartRequired = append(ch.RestartRequired, "queue")
		ch.Fields = append(ch.Fields,
			logx.String("queue.driver", n.Queue.Driver),
			logx.String("queue.redis.addr", n.Queue.Redis.Addr),
			logx.Bool("queue.redis.password_set", n.Queue.Redis.Password != ""),
		)
	}

	if o.Journal != n.Journal {
		ch.Sections = append(ch.Sections, "journal")
		ch.RestartRequired = append(ch.RestartRequired, "journal")
		ch.Fields = append(ch.Fields,
			logx.String("journal.driver", n.Journal.Driver),
			logx.String("journal.path", n.Journal.Path),
		)
	}

	if o.Systemd != n.Systemd {
		ch.Sections = append(ch.Sections, "systemd")
		ch.RestartRequired = append(ch.RestartRequired, "systemd")
	}
	return ch
}

func schedulerEnabled(s SchedulerConfig) bool {
	return s.Enabled == nil || *s.Enabled
}

// SchedulerEnabled reports the effective scheduler flag (default true).
func (c *Config) SchedulerEnabled() bool { return schedulerEnabled(c.Scheduler) }
