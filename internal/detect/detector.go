// Package detect produces timing descriptors from raw signal observation.
//
// Detectors report an absent or unstable signal as data (SignalPresent=false)
// and return an error only when the transport itself cannot be reached.
// Errors are *fault.Error values with code DETECTION_FAILED.
package detect

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/timing"
	"github.com/smazurov/signalnode/internal/transport"
)

// Detector observes the external signal and describes it.
type Detector interface {
	Detect(ctx context.Context) (timing.Descriptor, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context) (timing.Descriptor, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context) (timing.Descriptor, error) {
	return f(ctx)
}

// SourceChangeWaiter is implemented by detectors that can block until the
// hardware signals a source change. It returns false on timeout.
type SourceChangeWaiter interface {
	WaitForSourceChange(ctx context.Context, timeout time.Duration) (bool, error)
}

// Transport reads consecutive chip registers starting at reg.
type Transport interface {
	ReadRegisters(ctx context.Context, reg uint16, buf []byte) error
}

// PulseTimer measures the period of a sync signal. It returns
// ErrNoPulses when no edges arrive within its observation window.
type PulseTimer interface {
	Period(ctx context.Context) (time.Duration, error)
}

// ErrNoPulses is returned by a PulseTimer that saw no edges.
var ErrNoPulses = transport.ErrNoPulses

// Clock returns the capture time stamped on descriptors.
type Clock func() time.Time

// NoSignalDetector is used for chips with no detector wired up.
type NoSignalDetector struct {
	Now Clock
}

// Detect always reports no signal.
func (n NoSignalDetector) Detect(_ context.Context) (timing.Descriptor, error) {
	d := timing.NoSignal()
	d.CapturedAt = now(n.Now)
	return d, nil
}

// Fixed returns a detector that always reports d.
func Fixed(d timing.Descriptor) Detector {
	return DetectorFunc(func(_ context.Context) (timing.Descriptor, error) {
		out := d
		out.CapturedAt = time.Now()
		return out, nil
	})
}

// Placeholder reproduces the hardcoded readings of the vendor drivers:
// 640x480@60 with VGA blanking on the decoder, a locked passthrough on the bridge.
func Placeholder(variant timing.Variant) Detector {
	vga, _ := timing.ModeByName("640x480@60")
	d := vga.Descriptor()

	if variant == timing.VariantBridge {
		d = timing.Descriptor{
			ActiveWidth:   vga.Width,
			ActiveHeight:  vga.Height,
			Framerate:     vga.Refresh,
			PixelClockHz:  uint64(vga.Refresh) * uint64(vga.Width) * uint64(vga.Height),
			BridgeClockHz: defaultBridgeRefClockHz,
			BridgeEnabled: true,
			CSIActive:     true,
			SignalPresent: true,
			ClockLocked:   true,
		}
	}
	return Fixed(d)
}

// detectionError wraps a transport failure.
func detectionError(message string, cause error) error {
	return fault.Wrap(fault.CodeDetection, message, cause, nil)
}

// framerateFromPeriod converts a sync period to an integer rate, returning 0
// when the result falls outside the plausible range.
func framerateFromPeriod(period time.Duration) uint32 {
	if period <= 0 {
		return 0
	}
	hz := (time.Second + period/2) / period
	if hz < timing.MinFramerate || hz > timing.MaxFramerate {
		return 0
	}
	return uint32(hz)
}

// measureFramerate asks the pulse timer for the VSYNC period. A missing or
// silent timer yields 0; a failing one yields an error.
func measureFramerate(ctx context.Context, vsync PulseTimer) (uint32, error) {
	if vsync == nil {
		return 0, nil
	}
	period, err := vsync.Period(ctx)
	if errors.Is(err, ErrNoPulses) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return framerateFromPeriod(period), nil
}

func now(c Clock) time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
