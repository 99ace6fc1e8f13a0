// Package v4l2 provides pure Go bindings to the Video4Linux2 DV timings and
// event APIs used to observe an external video signal.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm). Kernel structures are
// decoded from byte buffers rather than mirrored as Go structs, because
// v4l2_dv_timings is packed and its pixel clock field is unaligned.
//
// # Signal Detection
//
// Query the timings currently detected on a video or subdevice node:
//
//	status, err := v4l2.QueryDVTimings("/dev/v4l-subdev0")
//	if err == nil && status.State == v4l2.SignalStateLocked {
//	    fmt.Printf("Signal: %dx%d @ %.2f fps\n", status.Timings.Width, status.Timings.Height, status.Timings.FPS())
//	}
//
// # Source Change Events
//
// Wait for source change events (e.g., resolution change on the input):
//
//	changes, err := v4l2.WaitForSourceChange("/dev/v4l-subdev0", 5*time.Second)
//	if err == nil && changes&v4l2.SourceChangeResolution != 0 {
//	    // Resolution or signal changed
//	}
package v4l2

import "errors"

// SignalState represents the state of a video signal.
type SignalState int

// Signal states.
const (
	SignalStateNoDevice     SignalState = -1
	SignalStateNoLink       SignalState = 0 // No cable connected
	SignalStateNoSignal     SignalState = 1 // Cable connected, no signal
	SignalStateUnstable     SignalState = 2 // Signal present but unstable
	SignalStateLocked       SignalState = 3 // Signal locked and stable
	SignalStateOutOfRange   SignalState = 4 // Signal out of supported range
	SignalStateNotSupported SignalState = 5 // Device doesn't support DV timings
)

func (s SignalState) String() string {
	switch s {
	case SignalStateNoDevice:
		return "no device"
	case SignalStateNoLink:
		return "no link"
	case SignalStateNoSignal:
		return "no signal"
	case SignalStateUnstable:
		return "unstable"
	case SignalStateLocked:
		return "locked"
	case SignalStateOutOfRange:
		return "out of range"
	case SignalStateNotSupported:
		return "not supported"
	default:
		return "unknown"
	}
}

// SignalStatus is the outcome of a DV timings query.
type SignalStatus struct {
	State   SignalState
	Timings BTTimings
}

// Source change flags reported by WaitForSourceChange.
const (
	SourceChangeResolution = 1 << 0
)

// ErrEventsNotSupported is returned when the node doesn't support V4L2 events.
var ErrEventsNotSupported = errors.New("v4l2: source change events not supported")

// ErrUnsupportedPlatform is returned on systems without V4L2.
var ErrUnsupportedPlatform = errors.New("v4l2: not supported on this platform")
