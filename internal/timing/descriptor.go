// Package timing describes detected video signal geometry and timing.
//
// A Descriptor is a value type. Once published through the telemetry
// registry it is never mutated; updates replace it wholesale.
package timing

import (
	"fmt"
	"time"
)

// Limits applied to a descriptor that claims a present signal.
const (
	MaxDimension     = 8192
	MinFramerate     = 1
	MaxFramerate     = 240
	MaxPixelClockHz  = 1_000_000_000
	DefaultFramerate = 60

	// pixelClockTolerance is the allowed relative deviation between the
	// reported pixel clock and the one implied by geometry and framerate.
	pixelClockTolerance = 0.02
)

// Descriptor is a coherent reading of the external signal at one point in time.
type Descriptor struct {
	ActiveWidth  uint32 `json:"active_width"`
	ActiveHeight uint32 `json:"active_height"`
	Framerate    uint32 `json:"framerate"`

	// Blanking, decoder variant only.
	HSyncLen    uint32 `json:"h_sync_len"`
	VSyncLen    uint32 `json:"v_sync_len"`
	HBackPorch  uint32 `json:"h_back_porch"`
	VBackPorch  uint32 `json:"v_back_porch"`
	HFrontPorch uint32 `json:"h_front_porch"`
	VFrontPorch uint32 `json:"v_front_porch"`

	PixelClockHz uint64 `json:"pixel_clock_hz"`

	// Bridge variant only.
	BridgeClockHz uint64 `json:"bridge_clock_hz"`
	BridgeEnabled bool   `json:"bridge_enabled"`
	CSIActive     bool   `json:"csi_active"`

	SignalPresent bool `json:"signal_present"`
	ClockLocked   bool `json:"clock_locked"`

	// Sequence is assigned by the registry on publish and strictly increases.
	Sequence   uint64    `json:"sequence"`
	CapturedAt time.Time `json:"captured_at"`
}

// NoSignal returns the descriptor every registry slot starts with.
func NoSignal() Descriptor {
	return Descriptor{}
}

// HasBlanking reports whether any sync or porch value is known.
func (d Descriptor) HasBlanking() bool {
	return d.HSyncLen|d.VSyncLen|d.HBackPorch|d.VBackPorch|d.HFrontPorch|d.VFrontPorch != 0
}

// TotalWidth is the line length including horizontal blanking.
func (d Descriptor) TotalWidth() uint32 {
	return d.ActiveWidth + d.HFrontPorch + d.HSyncLen + d.HBackPorch
}

// TotalHeight is the frame height including vertical blanking.
func (d Descriptor) TotalHeight() uint32 {
	return d.ActiveHeight + d.VFrontPorch + d.VSyncLen + d.VBackPorch
}

// ExpectedPixelClock derives the pixel clock from framerate and geometry.
// Total geometry is used when blanking is known, active geometry otherwise.
func (d Descriptor) ExpectedPixelClock() uint64 {
	if d.HasBlanking() {
		return uint64(d.Framerate) * uint64(d.TotalWidth()) * uint64(d.TotalHeight())
	}
	return uint64(d.Framerate) * uint64(d.ActiveWidth) * uint64(d.ActiveHeight)
}

// Validate checks the invariants of a present signal. A descriptor without a
// signal is always valid: its fields are stale by definition.
func (d Descriptor) Validate() error {
	if !d.SignalPresent {
		return nil
	}
	if d.ActiveWidth == 0 || d.ActiveWidth > MaxDimension {
		return fmt.Errorf("active width %d outside 1..%d", d.ActiveWidth, MaxDimension)
	}
	if d.ActiveHeight == 0 || d.ActiveHeight > MaxDimension {
		return fmt.Errorf("active height %d outside 1..%d", d.ActiveHeight, MaxDimension)
	}
	if d.Framerate < MinFramerate || d.Framerate > MaxFramerate {
		return fmt.Errorf("framerate %d outside %d..%d", d.Framerate, MinFramerate, MaxFramerate)
	}
	if d.PixelClockHz == 0 || d.PixelClockHz > MaxPixelClockHz {
		return fmt.Errorf("pixel clock %d outside 1..%d", d.PixelClockHz, MaxPixelClockHz)
	}

	expected := d.ExpectedPixelClock()
	diff := float64(d.PixelClockHz) - float64(expected)
	if diff < 0 {
		diff = -diff
	}
	if diff > float64(expected)*pixelClockTolerance {
		return fmt.Errorf("pixel clock %d inconsistent with %dx%d@%d (expected ~%d)",
			d.PixelClockHz, d.ActiveWidth, d.ActiveHeight, d.Framerate, expected)
	}
	return nil
}

// SameSignal compares two descriptors ignoring Sequence and CapturedAt.
func (d Descriptor) SameSignal(other Descriptor) bool {
	d.Sequence, other.Sequence = 0, 0
	d.CapturedAt, other.CapturedAt = time.Time{}, time.Time{}
	return d == other
}

// WithoutLiveness returns a copy with the liveness flags cleared and the last
// geometry retained for diagnostics.
func (d Descriptor) WithoutLiveness() Descriptor {
	d.SignalPresent = false
	d.ClockLocked = false
	return d
}

// String renders a short human-readable summary.
func (d Descriptor) String() string {
	if !d.SignalPresent {
		return "no signal"
	}
	return fmt.Sprintf("%dx%d@%d", d.ActiveWidth, d.ActiveHeight, d.Framerate)
}
