// Package format answers pipeline format negotiation from the latest
// detected timing. Every call reads a fresh snapshot; nothing is cached.
package format

import (
	"fmt"

	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/timing"
)

// Media bus and V4L2 constants.
const (
	MBusFmtRGB888_1X24 = 0x100a
	FieldNone          = 1
	ColorspaceSRGB     = 8
)

// Source supplies the latest published descriptor.
type Source interface {
	Snapshot() timing.Descriptor
}

// MBusFormat is the format on one pad.
type MBusFormat struct {
	Width      uint32 `json:"width" example:"640" doc:"Frame width in pixels"`
	Height     uint32 `json:"height" example:"480" doc:"Frame height in lines"`
	Code       uint32 `json:"code" example:"4106" doc:"Media bus code (MEDIA_BUS_FMT_RGB888_1X24)"`
	Field      uint32 `json:"field" example:"1" doc:"V4L2 field order (NONE)"`
	Colorspace uint32 `json:"colorspace" example:"8" doc:"V4L2 colorspace (SRGB)"`
}

// FrameSize is a discrete size range; min equals max for a detected signal.
type FrameSize struct {
	MinWidth  uint32 `json:"min_width"`
	MaxWidth  uint32 `json:"max_width"`
	MinHeight uint32 `json:"min_height"`
	MaxHeight uint32 `json:"max_height"`
}

// Fraction is a frame interval in seconds.
type Fraction struct {
	Numerator   uint32 `json:"numerator" example:"1"`
	Denominator uint32 `json:"denominator" example:"60"`
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// DVTimings mirrors the BT timings a receiver reports for the current signal.
type DVTimings struct {
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	PixelClock  uint64 `json:"pixel_clock"`
	HFrontPorch uint32 `json:"h_front_porch"`
	HSync       uint32 `json:"h_sync"`
	HBackPorch  uint32 `json:"h_back_porch"`
	VFrontPorch uint32 `json:"v_front_porch"`
	VSync       uint32 `json:"v_sync"`
	VBackPorch  uint32 `json:"v_back_porch"`
	Locked      bool   `json:"locked" doc:"False when the values are the last known geometry"`
}

// Negotiator answers format queries for a subdevice with padCount pads.
type Negotiator struct {
	padCount uint32
	source   Source
}

// New returns a negotiator over source.
func New(padCount int, source Source) *Negotiator {
	return &Negotiator{padCount: uint32(padCount), source: source}
}

// EnumMBusCode returns the index-th supported bus code. Only index 0 exists.
func (n *Negotiator) EnumMBusCode(pad, index uint32) (uint32, error) {
	if err := n.checkPad(pad); err != nil {
		return 0, err
	}
	if index != 0 {
		return 0, fault.New(fault.CodeOutOfRange, "no more media bus codes",
			map[string]any{"pad": pad, "index": index})
	}
	return MBusFmtRGB888_1X24, nil
}

// GetFormat returns the format implied by the detected signal.
func (n *Negotiator) GetFormat(pad uint32) (MBusFormat, error) {
	if err := n.checkPad(pad); err != nil {
		return MBusFormat{}, err
	}
	return formatFor(n.source.Snapshot()), nil
}

// SetFormat is informational: the chips cannot be told what to receive, so
// the detected format is returned whatever was requested.
func (n *Negotiator) SetFormat(pad uint32, _ MBusFormat) (MBusFormat, error) {
	return n.GetFormat(pad)
}

// EnumFrameSize returns the index-th frame size. Only the detected size exists.
func (n *Negotiator) EnumFrameSize(pad, index uint32) (FrameSize, error) {
	if err := n.checkPad(pad); err != nil {
		return FrameSize{}, err
	}
	if index != 0 {
		return FrameSize{}, fault.New(fault.CodeOutOfRange, "no more frame sizes",
			map[string]any{"pad": pad, "index": index})
	}
	d := n.source.Snapshot()
	return FrameSize{
		MinWidth:  d.ActiveWidth,
		MaxWidth:  d.ActiveWidth,
		MinHeight: d.ActiveHeight,
		MaxHeight: d.ActiveHeight,
	}, nil
}

// FrameInterval returns 1/framerate, or 1/60 while the framerate is unknown.
func (n *Negotiator) FrameInterval() Fraction {
	fps := n.source.Snapshot().Framerate
	if fps == 0 {
		fps = timing.DefaultFramerate
	}
	return Fraction{Numerator: 1, Denominator: fps}
}

// QueryDVTimings reports the detected timing in BT form. The pixel clock
// falls back to framerate x width x height when detection supplied none.
func (n *Negotiator) QueryDVTimings() DVTimings {
	d := n.source.Snapshot()
	pclk := d.PixelClockHz
	if pclk == 0 {
		pclk = uint64(d.Framerate) * uint64(d.ActiveWidth) * uint64(d.ActiveHeight)
	}
	return DVTimings{
		Width:       d.ActiveWidth,
		Height:      d.ActiveHeight,
		PixelClock:  pclk,
		HFrontPorch: d.HFrontPorch,
		HSync:       d.HSyncLen,
		HBackPorch:  d.HBackPorch,
		VFrontPorch: d.VFrontPorch,
		VSync:       d.VSyncLen,
		VBackPorch:  d.VBackPorch,
		Locked:      d.SignalPresent,
	}
}

func (n *Negotiator) checkPad(pad uint32) error {
	if pad >= n.padCount {
		return fault.New(fault.CodeInvalidArgument, "invalid pad index",
			map[string]any{"pad": pad, "pads": n.padCount})
	}
	return nil
}

func formatFor(d timing.Descriptor) MBusFormat {
	return MBusFormat{
		Width:      d.ActiveWidth,
		Height:     d.ActiveHeight,
		Code:       MBusFmtRGB888_1X24,
		Field:      FieldNone,
		Colorspace: ColorspaceSRGB,
	}
}
