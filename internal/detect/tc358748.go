package detect

import (
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/smazurov/signalnode/internal/timing"
)

// TC358748 registers are 16-bit wide, big-endian on the wire.
const (
	tc358748RegChipID    = 0x0000
	tc358748RegConfCtl   = 0x0004
	tc358748RegPLLCtl0   = 0x0016
	tc358748RegPLLCtl1   = 0x0018
	tc358748RegInLines   = 0x00e0
	tc358748RegInWidth   = 0x00e2
	tc358748RegCSIStatus = 0x0410

	tc358748ChipID        = 0x4400 // upper byte, lower byte is the revision
	tc358748ConfCtlPPEn   = 1 << 6
	tc358748PLLCtl1Enable = 1 << 4
	tc358748PLLCtl1Locked = 1 << 15
	tc358748CSIHSActive   = 1 << 1

	defaultBridgeRefClockHz = 40_000_000
)

// TC358748 detects the input seen by a TC358748 parallel-to-CSI2 bridge.
//
// The bridge relays video, so it has no blanking information. Its measured
// input lines and width give the geometry; framerate comes from the VSYNC
// pulse timer, or NominalFramerate when no timer is wired. The pixel clock is
// framerate x width x height. The PLL lock bit is reported independently of
// signal presence.
type TC358748 struct {
	Bus              Transport
	VSync            PulseTimer
	RefClockHz       uint64
	NominalFramerate uint32
	Logger           *slog.Logger
	Now              Clock
}

// Detect implements Detector.
func (b *TC358748) Detect(ctx context.Context) (timing.Descriptor, error) {
	d := timing.NoSignal()
	d.CapturedAt = now(b.Now)

	chipID, err := b.read16(ctx, tc358748RegChipID)
	if err != nil {
		return timing.Descriptor{}, err
	}
	if chipID&0xff00 != tc358748ChipID {
		b.debug("unexpected chip id", "chip_id", chipID)
	}

	confCtl, err := b.read16(ctx, tc358748RegConfCtl)
	if err != nil {
		return timing.Descriptor{}, err
	}
	pll0, err := b.read16(ctx, tc358748RegPLLCtl0)
	if err != nil {
		return timing.Descriptor{}, err
	}
	pll1, err := b.read16(ctx, tc358748RegPLLCtl1)
	if err != nil {
		return timing.Descriptor{}, err
	}
	csi, err := b.read16(ctx, tc358748RegCSIStatus)
	if err != nil {
		return timing.Descriptor{}, err
	}

	d.BridgeEnabled = confCtl&tc358748ConfCtlPPEn != 0
	d.CSIActive = csi&tc358748CSIHSActive != 0
	d.ClockLocked = pll1&tc358748PLLCtl1Enable != 0 && pll1&tc358748PLLCtl1Locked != 0
	if pll1&tc358748PLLCtl1Enable != 0 {
		d.BridgeClockHz = b.pllClock(pll0)
	}

	lines, err := b.read16(ctx, tc358748RegInLines)
	if err != nil {
		return timing.Descriptor{}, err
	}
	width, err := b.read16(ctx, tc358748RegInWidth)
	if err != nil {
		return timing.Descriptor{}, err
	}
	if !d.BridgeEnabled || lines == 0 || width == 0 || lines > timing.MaxDimension || width > timing.MaxDimension {
		b.debug("no input", "bridge_enabled", d.BridgeEnabled, "lines", lines, "width", width)
		return d, nil
	}

	fps, err := measureFramerate(ctx, b.VSync)
	if err != nil {
		return timing.Descriptor{}, detectionError("measure TC358748 VSYNC period", err)
	}
	if b.VSync == nil {
		fps = b.NominalFramerate
		if fps == 0 {
			fps = timing.DefaultFramerate
		}
	}
	if fps < timing.MinFramerate || fps > timing.MaxFramerate {
		b.debug("framerate out of range", "framerate", fps)
		return d, nil
	}

	d.ActiveWidth = uint32(width)
	d.ActiveHeight = uint32(lines)
	d.Framerate = fps
	d.PixelClockHz = uint64(fps) * uint64(width) * uint64(lines)
	d.SignalPresent = true
	b.debug("input detected", "signal", d.String(), "clock_locked", d.ClockLocked)
	return d, nil
}

// pllClock computes REFCLK * (FBD+1) / (PRD+1) from PLLCTL0.
func (b *TC358748) pllClock(pll0 uint16) uint64 {
	ref := b.RefClockHz
	if ref == 0 {
		ref = defaultBridgeRefClockHz
	}
	prd := uint64(pll0>>12) & 0x0f
	fbd := uint64(pll0) & 0x1ff
	return ref * (fbd + 1) / (prd + 1)
}

func (b *TC358748) read16(ctx context.Context, reg uint16) (uint16, error) {
	var buf [2]byte
	if err := b.Bus.ReadRegisters(ctx, reg, buf[:]); err != nil {
		return 0, detectionError("read TC358748 register", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (b *TC358748) debug(msg string, args ...any) {
	if b.Logger != nil {
		b.Logger.Debug(msg, args...)
	}
}
