package v4l2

import (
	"encoding/binary"
	"fmt"
)

// Layout of struct v4l2_dv_timings (packed).
const (
	dvTimingsSize   = 132
	dvTimingsTypeBT = 0
	btOffset        = 4 // bt follows the 32-bit type field

	btWidth       = btOffset + 0
	btHeight      = btOffset + 4
	btInterlaced  = btOffset + 8
	btPolarities  = btOffset + 12
	btPixelClock  = btOffset + 16
	btHFrontPorch = btOffset + 24
	btHSync       = btOffset + 28
	btHBackPorch  = btOffset + 32
	btVFrontPorch = btOffset + 36
	btVSync       = btOffset + 40
	btVBackPorch  = btOffset + 44
)

// BTTimings holds the progressive-scan fields of struct v4l2_bt_timings.
type BTTimings struct {
	Width       uint32
	Height      uint32
	Interlaced  bool
	Polarities  uint32
	PixelClock  uint64
	HFrontPorch uint32
	HSync       uint32
	HBackPorch  uint32
	VFrontPorch uint32
	VSync       uint32
	VBackPorch  uint32
}

// Valid reports whether the timings describe a real signal.
func (bt BTTimings) Valid() bool {
	return bt.Width > 0 && bt.Height > 0 && bt.PixelClock > 0
}

// FPS calculates the frame rate from the pixel clock and total geometry.
func (bt BTTimings) FPS() float64 {
	if bt.PixelClock == 0 {
		return 0
	}

	totalWidth := uint64(bt.Width + bt.HFrontPorch + bt.HSync + bt.HBackPorch)
	totalHeight := uint64(bt.Height + bt.VFrontPorch + bt.VSync + bt.VBackPorch)

	if bt.Interlaced {
		totalHeight /= 2
	}

	if bt.Width == 0 || bt.Height == 0 || totalWidth == 0 || totalHeight == 0 {
		return 0
	}

	return float64(bt.PixelClock) / float64(totalWidth*totalHeight)
}

// decodeDVTimings parses a little-endian v4l2_dv_timings buffer.
func decodeDVTimings(b []byte) (BTTimings, error) {
	if len(b) < dvTimingsSize {
		return BTTimings{}, fmt.Errorf("dv timings buffer too short: %d bytes", len(b))
	}
	le := binary.LittleEndian
	if typ := le.Uint32(b[0:]); typ != dvTimingsTypeBT {
		return BTTimings{}, fmt.Errorf("unsupported dv timings type %d", typ)
	}
	return BTTimings{
		Width:       le.Uint32(b[btWidth:]),
		Height:      le.Uint32(b[btHeight:]),
		Interlaced:  le.Uint32(b[btInterlaced:]) != 0,
		Polarities:  le.Uint32(b[btPolarities:]),
		PixelClock:  le.Uint64(b[btPixelClock:]),
		HFrontPorch: le.Uint32(b[btHFrontPorch:]),
		HSync:       le.Uint32(b[btHSync:]),
		HBackPorch:  le.Uint32(b[btHBackPorch:]),
		VFrontPorch: le.Uint32(b[btVFrontPorch:]),
		VSync:       le.Uint32(b[btVSync:]),
		VBackPorch:  le.Uint32(b[btVBackPorch:]),
	}, nil
}
