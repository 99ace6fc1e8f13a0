package detect

import (
	"context"
	"time"

	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/timing"
)

// DefaultTimeout bounds a single detection when configuration sets none.
const DefaultTimeout = 2 * time.Second

type timeoutDetector struct {
	inner   Detector
	timeout time.Duration

	// busy holds a token while an inner Detect is running, including one
	// whose caller already gave up on it.
	busy chan struct{}
}

// WithTimeout bounds every Detect call on inner. The inner detector runs in
// its own goroutine so a transport that ignores ctx cannot stall the caller;
// its late result is discarded. Inner calls never overlap: while an abandoned
// call is still running, later calls wait for it within their own deadline
// and fail if it does not finish.
func WithTimeout(inner Detector, timeout time.Duration) Detector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutDetector{inner: inner, timeout: timeout, busy: make(chan struct{}, 1)}
}

type detectResult struct {
	d   timing.Descriptor
	err error
}

// Detect runs the wrapped detector with a deadline.
func (t *timeoutDetector) Detect(ctx context.Context) (timing.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	select {
	case t.busy <- struct{}{}:
	case <-ctx.Done():
		return timing.Descriptor{}, fault.Wrap(fault.CodeDetection, "previous detection still running", ctx.Err(),
			map[string]any{"timeout": t.timeout.String()})
	}

	done := make(chan detectResult, 1)
	go func() {
		defer func() { <-t.busy }()
		d, err := t.inner.Detect(ctx)
		done <- detectResult{d: d, err: err}
	}()

	select {
	case r := <-done:
		return r.d, r.err
	case <-ctx.Done():
		return timing.Descriptor{}, fault.Wrap(fault.CodeDetection, "detection did not complete", ctx.Err(),
			map[string]any{"timeout": t.timeout.String()})
	}
}

// WaitForSourceChange forwards to the wrapped detector when it supports it.
func (t *timeoutDetector) WaitForSourceChange(ctx context.Context, timeout time.Duration) (bool, error) {
	w, ok := t.inner.(SourceChangeWaiter)
	if !ok {
		return false, nil
	}
	return w.WaitForSourceChange(ctx, timeout)
}

// Unwrap returns the wrapped detector.
func (t *timeoutDetector) Unwrap() Detector {
	return t.inner
}

// SupportsSourceChange reports whether d, or a detector it wraps, can wait
// for hardware source-change notifications.
func SupportsSourceChange(d Detector) bool {
	for d != nil {
		if t, ok := d.(*timeoutDetector); ok {
			d = t.Unwrap()
			continue
		}
		_, ok := d.(SourceChangeWaiter)
		return ok
	}
	return false
}
