// Package diag renders human-readable diagnostic files from the latest
// detected timing, in the layout the chip drivers used under debugfs.
package diag

import (
	"fmt"
	"slices"
	"time"

	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/timing"
)

// DefaultLimit bounds the size of one rendered file.
const DefaultLimit = 4096

// Diagnostic file names.
const (
	FileDescriptor = "descriptor"
	FileTimings    = "timings"
	FileStatus     = "status"
)

// Files lists the files a variant exports.
func Files(variant timing.Variant) []string {
	if variant == timing.VariantBridge {
		return []string{FileDescriptor, FileStatus, FileTimings}
	}
	return []string{FileDescriptor, FileTimings}
}

// Render produces one file for d. Output that would exceed limit fails with
// TRUNCATED instead of being cut short.
func Render(variant timing.Variant, file string, d timing.Descriptor, limit int) ([]byte, error) {
	if !slices.Contains(Files(variant), file) {
		return nil, fault.New(fault.CodeNotFound, "no such diagnostic file",
			map[string]any{"file": file, "variant": string(variant)})
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	b := &boundedBuffer{limit: limit}
	switch file {
	case FileDescriptor:
		renderDescriptor(b, d)
	case FileTimings:
		if variant == timing.VariantBridge {
			b.printf("input_clock: %d\nbridge_enabled: %d\ncsi_output: %s\n",
				d.BridgeClockHz, boolInt(d.BridgeEnabled), yesNo(d.CSIActive))
		} else {
			b.printf("hsync_len: %d\nvsync_len: %d\nhbp: %d\nvbp: %d\nhfp: %d\nvfp: %d\n",
				d.HSyncLen, d.VSyncLen, d.HBackPorch, d.VBackPorch, d.HFrontPorch, d.VFrontPorch)
		}
	case FileStatus:
		b.printf("clock_locked: %d\npassthrough_ready: %d\n",
			boolInt(d.ClockLocked), boolInt(PassthroughReady(d)))
	}

	if b.overflow {
		return nil, fault.New(fault.CodeTruncated, "diagnostic output exceeds buffer",
			map[string]any{"file": file, "limit": limit})
	}
	return b.buf, nil
}

// PassthroughReady reports whether the bridge is relaying a present signal.
func PassthroughReady(d timing.Descriptor) bool {
	return d.SignalPresent && d.BridgeEnabled && d.CSIActive
}

func renderDescriptor(b *boundedBuffer, d timing.Descriptor) {
	b.printf("signal_present: %d\n", boolInt(d.SignalPresent))
	b.printf("clock_locked: %d\n", boolInt(d.ClockLocked))
	b.printf("active_width: %d\n", d.ActiveWidth)
	b.printf("active_height: %d\n", d.ActiveHeight)
	b.printf("framerate: %d\n", d.Framerate)
	b.printf("pixel_clock: %d\n", d.PixelClockHz)
	b.printf("hsync_len: %d\n", d.HSyncLen)
	b.printf("vsync_len: %d\n", d.VSyncLen)
	b.printf("hbp: %d\n", d.HBackPorch)
	b.printf("vbp: %d\n", d.VBackPorch)
	b.printf("hfp: %d\n", d.HFrontPorch)
	b.printf("vfp: %d\n", d.VFrontPorch)
	b.printf("bridge_clock: %d\n", d.BridgeClockHz)
	b.printf("bridge_enabled: %d\n", boolInt(d.BridgeEnabled))
	b.printf("csi_active: %d\n", boolInt(d.CSIActive))
	b.printf("sequence: %d\n", d.Sequence)
	captured := "never"
	if !d.CapturedAt.IsZero() {
		captured = d.CapturedAt.UTC().Format(time.RFC3339Nano)
	}
	b.printf("captured_at: %s\n", captured)
}

// boundedBuffer accumulates formatted output up to limit bytes and records
// whether anything was dropped.
type boundedBuffer struct {
	buf      []byte
	limit    int
	overflow bool
}

func (b *boundedBuffer) printf(format string, args ...any) {
	if b.overflow {
		return
	}
	next := fmt.Appendf(b.buf, format, args...)
	if len(next) > b.limit {
		b.overflow = true
		return
	}
	b.buf = next
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
