package subdev

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/signalnode/internal/detect"
	"github.com/smazurov/signalnode/internal/timing"
)

const (
	// sourceChangeWait bounds one wait for a hardware source-change event so
	// the monitor can observe cancellation and ticks.
	sourceChangeWait = 500 * time.Millisecond
	// settleDelay spaces the confirming readings taken after a source change.
	settleDelay = 100 * time.Millisecond
)

// debouncer holds back a changed reading until it repeats.
type debouncer struct {
	need      int
	candidate timing.Descriptor
	count     int
}

// observe records reading against the published descriptor and reports
// whether it should be published.
func (d *debouncer) observe(published, reading timing.Descriptor) bool {
	if reading.SameSignal(published) {
		d.count = 0
		return false
	}
	if d.count > 0 && reading.SameSignal(d.candidate) {
		d.count++
	} else {
		d.candidate = reading
		d.count = 1
	}
	if d.count >= d.need {
		d.count = 0
		return true
	}
	return false
}

// pending reports whether a changed reading is awaiting confirmation.
func (d *debouncer) pending() bool {
	return d.count > 0
}

// startMonitor launches re-detection when configured. Callers hold mu.
func (s *Subdevice) startMonitor() {
	if s.redetect <= 0 && !s.edge {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})
	go s.monitor(ctx, s.done)
}

// stopMonitor cancels re-detection and waits for it to exit. Callers hold mu.
func (s *Subdevice) stopMonitor() {
	if s.stop == nil {
		return
	}
	s.stop()
	<-s.done
	s.stop, s.done = nil, nil
}

func (s *Subdevice) monitor(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if s.redetect > 0 {
		ticker := time.NewTicker(s.redetect)
		defer ticker.Stop()
		tick = ticker.C
	}

	waiter, _ := s.detector.(detect.SourceChangeWaiter)
	edge := s.edge && waiter != nil
	deb := &debouncer{need: s.debounce}

	s.logger.Debug("Re-detection started", "interval", s.redetect, "source_change", edge, "debounce", s.debounce)
	defer s.logger.Debug("Re-detection stopped")

	for {
		if !edge {
			if tick == nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-tick:
				s.redetectOnce(ctx, deb)
			}
			continue
		}

		changed, err := waiter.WaitForSourceChange(ctx, sourceChangeWait)
		switch {
		case errors.Is(err, detect.ErrSourceChangeUnsupported):
			s.logger.Info("Source change events unavailable, falling back to polling")
			edge = false
			continue
		case err != nil && ctx.Err() == nil:
			s.logger.Warn("Waiting for source change failed", "error", err)
			if !sleep(ctx, sourceChangeWait) {
				return
			}
		case changed:
			s.logger.Debug("Source change reported")
			s.confirmChange(ctx, deb)
		}

		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.redetectOnce(ctx, deb)
		default:
		}
	}
}

// confirmChange takes up to debounce readings after a source change, stopping
// early once the change is published or the signal reads as unchanged.
func (s *Subdevice) confirmChange(ctx context.Context, deb *debouncer) {
	for i := 0; i < s.debounce; i++ {
		if i > 0 && !sleep(ctx, settleDelay) {
			return
		}
		if published := s.redetectOnce(ctx, deb); published || !deb.pending() {
			return
		}
	}
}

// redetectOnce runs one background detection and publishes it when the
// debouncer confirms the change. Failures are logged and never change state.
func (s *Subdevice) redetectOnce(ctx context.Context, deb *debouncer) bool {
	s.detectMu.Lock()
	defer s.detectMu.Unlock()

	d, err := s.detect(ctx, true)
	if err != nil || ctx.Err() != nil || !s.Streaming() {
		return false
	}
	if !deb.observe(s.registry.Snapshot(), d) {
		return false
	}
	s.publish(d)
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
