package detect

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/smazurov/signalnode/internal/timing"
	"github.com/smazurov/signalnode/pkg/linuxav/v4l2"
)

// ErrSourceChangeUnsupported is returned by WaitForSourceChange when the
// node cannot deliver source-change events.
var ErrSourceChangeUnsupported = errors.New("source change events not supported")

// DVTimings detects the signal through a kernel receiver driver that
// implements VIDIOC_QUERY_DV_TIMINGS on a video or subdevice node.
type DVTimings struct {
	Node   string
	Logger *slog.Logger
	Now    Clock

	// query and wait default to the v4l2 package.
	query func(node string) (v4l2.SignalStatus, error)
	wait  func(node string, timeout time.Duration) (uint32, error)
}

// Detect implements Detector.
func (k *DVTimings) Detect(ctx context.Context) (timing.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return timing.Descriptor{}, detectionError("query dv timings", err)
	}

	query := k.query
	if query == nil {
		query = v4l2.QueryDVTimings
	}

	d := timing.NoSignal()
	d.CapturedAt = now(k.Now)

	status, err := query(k.Node)
	if err != nil {
		return timing.Descriptor{}, detectionError("query dv timings on "+k.Node, err)
	}
	if status.State != v4l2.SignalStateLocked {
		k.debug("receiver reports no usable signal", "node", k.Node, "state", status.State.String())
		return d, nil
	}

	bt := status.Timings
	if bt.Interlaced {
		k.debug("interlaced input not supported", "node", k.Node)
		return d, nil
	}
	fps := uint32(math.Round(bt.FPS()))
	if fps < timing.MinFramerate || fps > timing.MaxFramerate ||
		bt.Width > timing.MaxDimension || bt.Height > timing.MaxDimension {
		k.debug("timings out of range", "node", k.Node, "width", bt.Width, "height", bt.Height, "framerate", fps)
		return d, nil
	}

	d.ActiveWidth = bt.Width
	d.ActiveHeight = bt.Height
	d.Framerate = fps
	d.HSyncLen = bt.HSync
	d.VSyncLen = bt.VSync
	d.HBackPorch = bt.HBackPorch
	d.VBackPorch = bt.VBackPorch
	d.HFrontPorch = bt.HFrontPorch
	d.VFrontPorch = bt.VFrontPorch
	d.PixelClockHz = bt.PixelClock
	d.SignalPresent = true
	d.ClockLocked = true
	k.debug("timings detected", "node", k.Node, "signal", d.String())
	return d, nil
}

// WaitForSourceChange implements SourceChangeWaiter. It returns true when
// the receiver reports a resolution change before timeout elapses.
func (k *DVTimings) WaitForSourceChange(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	wait := k.wait
	if wait == nil {
		wait = v4l2.WaitForSourceChange
	}

	changes, err := wait(k.Node, timeout)
	if errors.Is(err, v4l2.ErrEventsNotSupported) || errors.Is(err, v4l2.ErrUnsupportedPlatform) {
		return false, ErrSourceChangeUnsupported
	}
	if err != nil {
		return false, err
	}
	return changes&v4l2.SourceChangeResolution != 0, nil
}

func (k *DVTimings) debug(msg string, args ...any) {
	if k.Logger != nil {
		k.Logger.Debug(msg, args...)
	}
}
