// Package systemd reports agent lifecycle to the service manager when the
// process runs as a Type=notify unit. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady signals that startup finished and the agent is serving.
// The bool reports whether a notification socket was present.
func NotifyReady() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady)
}

// NotifyStopping signals that shutdown has begun.
func NotifyStopping() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// WatchdogInterval returns the keep-alive ping interval derived from
// WatchdogSec, or 0 when no watchdog is configured for this unit.
func WatchdogInterval() (time.Duration, error) {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d == 0 {
		return 0, err
	}
	// Ping at half of WatchdogSec so a single delayed beat doesn't kill the unit.
	return d / 2, nil
}

// Watchdog pings the service manager every interval until ctx is done.
func Watchdog(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
