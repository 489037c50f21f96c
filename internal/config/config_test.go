package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

const sampleYAML = `
http:
  addr: ":9090"
  rate_limit:
    rps: 5
    burst: 10
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
scheduler:
  interval: 30s
  rearm_on_update: true
queue:
  driver: memory
journal:
  driver: none
systemd:
  notify: true
`

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	m := NewManager(p)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.HTTP.RateLimit.Burst != 10 || cfg.Scheduler.Interval != "30s" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.SchedulerEnabled() || !cfg.Scheduler.RearmOnUpdate || !cfg.Systemd.Notify {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatalf("load did not commit")
	}
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown.json":  `{"http":{"addr":":1"},"bogus":1}`,
		"trailing.json": `{"http":{}}{"http":{}}`,
		"unknown.yaml":  "scheduler:\n  every: 10s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewManager(writeFile(t, dir, name, body))
			if _, err := m.Parse(); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"ok", Config{}, ""},
		{"short interval", Config{Scheduler: SchedulerConfig{Interval: "500ms"}}, "scheduler.interval"},
		{"bad duration", Config{HTTP: HTTPConfig{ReadTimeout: "soon"}}, "http.read_timeout"},
		{"redis without addr", Config{Queue: QueueConfig{Driver: "redis"}}, "queue.redis.addr"},
		{"unknown queue", Config{Queue: QueueConfig{Driver: "kafka"}}, "queue.driver"},
		{"journal without path", Config{Journal: JournalConfig{Driver: "sqlite"}}, "journal.path"},
		{"negative rps", Config{HTTP: HTTPConfig{RateLimit: RateLimitConfig{RPS: -1}}}, "http.rate_limit"},
		{"known log level", Config{Logging: LoggingConfig{Level: "Warning"}}, ""},
		{"unknown log level", Config{Logging: LoggingConfig{Level: "verbose"}}, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			err := Validate(&cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want mention of %q", err, tc.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{"scheduler":{"interval":"60s"},"queue":{"driver":"memory"}}`)
	t.Setenv("CHOREMINDER_SCHEDULER__INTERVAL", "15s")
	t.Setenv("CHOREMINDER_SCHEDULER__ENABLED", "false")
	t.Setenv("CHOREMINDER_HTTP__RATE_LIMIT__BURST", "7")

	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.Interval != "15s" || cfg.SchedulerEnabled() || cfg.HTTP.RateLimit.Burst != 7 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Queue.Driver != "memory" {
		t.Fatalf("file value lost: %+v", cfg.Queue)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	f := false
	oldCfg := &Config{Scheduler: SchedulerConfig{Interval: "60s"}, HTTP: HTTPConfig{Addr: ":8080"}}
	newCfg := &Config{
		Scheduler: SchedulerConfig{Interval: "60s", Enabled: &f},
		HTTP:      HTTPConfig{Addr: ":8080", RateLimit: RateLimitConfig{RPS: 3}},
		Queue:     QueueConfig{Driver: "redis", Redis: RedisConfig{Addr: "x:1", Password: "secret"}},
	}
	ch := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(ch.Sections, ",") != "http,scheduler,queue" {
		t.Fatalf("sections=%v", ch.Sections)
	}
	if strings.Join(ch.RestartRequired, ",") != "queue" {
		t.Fatalf("restart=%v", ch.RestartRequired)
	}
	if !SummarizeConfigChange(newCfg, newCfg).Empty() {
		t.Fatalf("identical configs reported a change")
	}
}

func TestWatchPublishesReload(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"scheduler":{"interval":"60s"}}`)
	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)

	writeFile(t, dir, "config.json", `{"scheduler":{"interval":"500ms"}}`) // rejected
	time.Sleep(600 * time.Millisecond)
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config was published: %+v", cfg.Scheduler)
	default:
	}

	writeFile(t, dir, "config.json", `{"scheduler":{"interval":"5s"}}`)
	select {
	case cfg := <-sub:
		if cfg.Scheduler.Interval != "5s" {
			t.Fatalf("published interval=%q", cfg.Scheduler.Interval)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no config published after change")
	}
	cancel()
	<-done
}
