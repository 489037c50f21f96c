package config

// Config is the on-disk configuration. All durations are Go duration strings
// (e.g. "500ms", "10s", "1m").
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Queue     QueueConfig     `json:"queue"`
	Journal   JournalConfig   `json:"journal"`
	Systemd   SystemdConfig   `json:"systemd"`
}

// HTTPConfig controls the REST adapter. Only rate_limit applies live; the
// rest needs a restart.
//
// Defaults:
//   - addr: ":8080"
//   - read_timeout: "10s", write_timeout: "10s", idle_timeout: "60s"
//   - shutdown_timeout: "5s"
type HTTPConfig struct {
	Addr            string          `json:"addr,omitempty"`
	ReadTimeout     string          `json:"read_timeout,omitempty"`
	WriteTimeout    string          `json:"write_timeout,omitempty"`
	IdleTimeout     string          `json:"idle_timeout,omitempty"`
	ShutdownTimeout string          `json:"shutdown_timeout,omitempty"`
	RateLimit       RateLimitConfig `json:"rate_limit"`
	// Pprof mounts /debug/pprof on the API router.
	Pprof bool `json:"pprof,omitempty"`
}

// RateLimitConfig is a process-wide token bucket. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `json:"rps,omitempty"`
	Burst int     `json:"burst,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the dispatch loop.
//
// Enabled is a pointer so an omitted value can default to true.
type SchedulerConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	Interval      string `json:"interval,omitempty"` // default "60s", min "1s"
	RearmOnUpdate bool   `json:"rearm_on_update,omitempty"`
}

// QueueConfig selects the delivery queue driver: "memory" (default) or "redis".
type QueueConfig struct {
	Driver string      `json:"driver,omitempty"`
	Redis  RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr        string `json:"addr,omitempty"`
	Password    string `json:"password,omitempty"`
	DB          int    `json:"db,omitempty"`
	Key         string `json:"key,omitempty"`
	DialTimeout string `json:"dial_timeout,omitempty"`
}

// JournalConfig selects the dispatch journal: "none" (default), "file" or "sqlite".
type JournalConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SystemdConfig enables sd_notify readiness and watchdog pings.
// Both are no-ops when NOTIFY_SOCKET is unset.
type SystemdConfig struct {
	Notify   bool `json:"notify,omitempty"`
	Watchdog bool `json:"watchdog,omitempty"`
}
