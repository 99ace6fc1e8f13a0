package detect

import (
	"context"
	"log/slog"

	"github.com/smazurov/signalnode/internal/timing"
)

// AD9984A register map (read-only status block).
const (
	ad9984aRegSyncDetect    = 0x24
	ad9984aRegSyncPolarity  = 0x25
	ad9984aRegLinesPerFrame = 0x26 // 12 bits: 0x26[3:0] MSB, 0x27 LSB

	ad9984aHSync0Active = 1 << 7
	ad9984aHSync1Active = 1 << 6
	ad9984aVSync0Active = 1 << 5
	ad9984aVSync1Active = 1 << 4
	ad9984aSOG0Active   = 1 << 3
	ad9984aSOG1Active   = 1 << 2
)

// AD9984A detects VGA timing on an AD9984A analog front end.
//
// The chip reports whether sync is present and how many HSYNC pulses arrive
// per VSYNC. The VSYNC period comes from a pulse timer. The pair is snapped
// onto the standard mode table, which supplies active area and blanking.
type AD9984A struct {
	Bus    Transport
	VSync  PulseTimer
	Logger *slog.Logger
	Now    Clock
}

// Detect implements Detector.
func (a *AD9984A) Detect(ctx context.Context) (timing.Descriptor, error) {
	noSignal := timing.NoSignal()
	noSignal.CapturedAt = now(a.Now)

	var status [4]byte
	if err := a.Bus.ReadRegisters(ctx, ad9984aRegSyncDetect, status[:]); err != nil {
		return timing.Descriptor{}, detectionError("read AD9984A sync status", err)
	}

	syncDetect := status[0]
	hsync := syncDetect&(ad9984aHSync0Active|ad9984aHSync1Active|ad9984aSOG0Active|ad9984aSOG1Active) != 0
	vsync := syncDetect&(ad9984aVSync0Active|ad9984aVSync1Active|ad9984aSOG0Active|ad9984aSOG1Active) != 0
	if !hsync || !vsync {
		a.debug("sync not detected", "sync_detect", syncDetect)
		return noSignal, nil
	}

	lines := uint32(status[ad9984aRegLinesPerFrame-ad9984aRegSyncDetect]&0x0f)<<8 |
		uint32(status[ad9984aRegLinesPerFrame-ad9984aRegSyncDetect+1])
	if lines == 0 {
		a.debug("no lines counted per frame")
		return noSignal, nil
	}

	fps, err := measureFramerate(ctx, a.VSync)
	if err != nil {
		return timing.Descriptor{}, detectionError("measure AD9984A VSYNC period", err)
	}
	if fps == 0 {
		a.debug("VSYNC period unavailable or out of range", "lines", lines)
		return noSignal, nil
	}

	mode, ok := timing.LookupMode(lines, fps)
	if !ok {
		a.debug("unsupported timing", "lines", lines, "framerate", fps)
		return noSignal, nil
	}

	d := mode.Descriptor()
	d.ClockLocked = true
	d.CapturedAt = noSignal.CapturedAt
	a.debug("timing detected", "mode", mode.Name, "polarity", status[ad9984aRegSyncPolarity-ad9984aRegSyncDetect])
	return d, nil
}

func (a *AD9984A) debug(msg string, args ...any) {
	if a.Logger != nil {
		a.Logger.Debug(msg, args...)
	}
}
