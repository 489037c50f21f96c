// Package sdnotify reports service state to systemd over NOTIFY_SOCKET.
// Every call is a no-op when the process is not started by systemd.
package sdnotify

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "choreminder/pkg/logx"
)

type Config struct {
	Notify   bool
	Watchdog bool
}

type Notifier struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{cfg: cfg, log: log}
}

func (n *Notifier) send(state string) {
	if !n.cfg.Notify {
		return
	}
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	case sent:
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

func (n *Notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Status publishes a free-form status line (shown by systemctl status).
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// WatchdogInterval returns how often to ping, or 0 when the watchdog is off.
func (n *Notifier) WatchdogInterval() time.Duration {
	if !n.cfg.Notify || !n.cfg.Watchdog {
		return 0
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog check failed", logx.Err(err))
		return 0
	}
	// Ping at half the deadline.
	return d / 2
}

// RunWatchdog pings systemd until ctx is done. healthy is consulted before
// every ping; a false result skips the ping so systemd can restart us.
func (n *Notifier) RunWatchdog(ctx context.Context, healthy func() bool) error {
	every := n.WatchdogInterval()
	if every <= 0 {
		return nil
	}
	n.log.Info("watchdog enabled", logx.Duration("every", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy != nil && !healthy() {
				n.log.Warn("watchdog ping skipped: unhealthy")
				continue
			}
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
