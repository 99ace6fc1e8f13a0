// Package systemd reports service readiness, status and watchdog liveness to
// systemd through sd_notify.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// StatusFunc returns the one-line status shown by systemctl status.
type StatusFunc func() string

// Notifier sends sd_notify messages. Without NOTIFY_SOCKET every call is a
// no-op.
type Notifier struct {
	status StatusFunc
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a notifier. status may be nil.
func NewNotifier(status StatusFunc, logger *slog.Logger) *Notifier {
	return &Notifier{status: status, logger: logger}
}

// Ready reports startup complete and starts the watchdog loop when the unit
// sets WatchdogSec.
func (n *Notifier) Ready() {
	if !n.send(daemon.SdNotifyReady) {
		return
	}
	n.sendStatus()

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog settings", "error", err)
		return
	}
	if interval == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.mu.Lock()
	n.cancel = cancel
	n.done = make(chan struct{})
	done := n.done
	n.mu.Unlock()

	// Ping at half the timeout.
	go n.watchdog(ctx, interval/2, done)
	n.logger.Info("Systemd watchdog enabled", "interval", interval)
}

// Stopping reports shutdown and stops the watchdog loop.
func (n *Notifier) Stopping() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) watchdog(ctx context.Context, every time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
			n.sendStatus()
		}
	}
}

func (n *Notifier) sendStatus() {
	if n.status == nil {
		return
	}
	n.send(fmt.Sprintf("STATUS=%s", n.status()))
}

// send returns true when the message reached systemd.
func (n *Notifier) send(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("Failed to notify systemd", "state", state, "error", err)
		return false
	}
	return sent
}
