// Package controls exposes detected timing as named, range-checked
// parameters, plus the one writable control: the process-wide debug flag.
package controls

import (
	"slices"

	"github.com/smazurov/signalnode/internal/timing"
)

// UserBase is V4L2_CID_USER_BASE; control IDs are offsets from it.
const UserBase = 0x00980900

// Control IDs.
const (
	IDDebugEnable   = UserBase + 0x1000
	IDHSyncLen      = UserBase + 0x1100
	IDVSyncLen      = UserBase + 0x1101
	IDHBackPorch    = UserBase + 0x1102
	IDVBackPorch    = UserBase + 0x1103
	IDHFrontPorch   = UserBase + 0x1104
	IDVFrontPorch   = UserBase + 0x1105
	IDFramerate     = UserBase + 0x1106
	IDPixelClock    = UserBase + 0x1107
	IDWidth         = UserBase + 0x1108
	IDHeight        = UserBase + 0x1109
	IDBridgeClock   = UserBase + 0x1200
	IDCSIActive     = UserBase + 0x1201
	IDBridgeEnabled = UserBase + 0x1202
)

// Control describes one parameter. Derived controls are computed from the
// latest descriptor on every read.
type Control struct {
	ID       uint32           `json:"id" example:"9968134" doc:"Control ID"`
	Name     string           `json:"name" example:"framerate" doc:"Control name"`
	Min      int64            `json:"min" doc:"Minimum value"`
	Max      int64            `json:"max" doc:"Maximum value"`
	Step     int64            `json:"step" doc:"Value granularity"`
	Default  int64            `json:"default" doc:"Default value"`
	Writable bool             `json:"writable" doc:"False for values derived from detection"`
	Variants []timing.Variant `json:"variants" doc:"Chip variants exposing the control"`

	derive func(timing.Descriptor) int64
}

var (
	allVariants = []timing.Variant{timing.VariantDecoder, timing.VariantBridge}
	decoderOnly = []timing.Variant{timing.VariantDecoder}
	bridgeOnly  = []timing.Variant{timing.VariantBridge}
)

func u32(f func(timing.Descriptor) uint32) func(timing.Descriptor) int64 {
	return func(d timing.Descriptor) int64 { return int64(f(d)) }
}

func flag(f func(timing.Descriptor) bool) func(timing.Descriptor) int64 {
	return func(d timing.Descriptor) int64 {
		if f(d) {
			return 1
		}
		return 0
	}
}

func blanking(id uint32, name string, f func(timing.Descriptor) uint32) Control {
	return Control{ID: id, Name: name, Max: timing.MaxDimension, Step: 1, Variants: decoderOnly, derive: u32(f)}
}

// catalog lists every control in ID order.
var catalog = []Control{
	{ID: IDDebugEnable, Name: "debug_enable", Max: 1, Step: 1, Writable: true, Variants: allVariants},
	blanking(IDHSyncLen, "hsync_len", func(d timing.Descriptor) uint32 { return d.HSyncLen }),
	blanking(IDVSyncLen, "vsync_len", func(d timing.Descriptor) uint32 { return d.VSyncLen }),
	blanking(IDHBackPorch, "hbp", func(d timing.Descriptor) uint32 { return d.HBackPorch }),
	blanking(IDVBackPorch, "vbp", func(d timing.Descriptor) uint32 { return d.VBackPorch }),
	blanking(IDHFrontPorch, "hfp", func(d timing.Descriptor) uint32 { return d.HFrontPorch }),
	blanking(IDVFrontPorch, "vfp", func(d timing.Descriptor) uint32 { return d.VFrontPorch }),
	{
		ID: IDFramerate, Name: "framerate", Min: timing.MinFramerate, Max: timing.MaxFramerate, Step: 1,
		Default: timing.DefaultFramerate, Variants: allVariants,
		derive: u32(func(d timing.Descriptor) uint32 { return d.Framerate }),
	},
	{
		ID: IDPixelClock, Name: "pixel_clock", Max: timing.MaxPixelClockHz, Step: 1, Variants: allVariants,
		derive: func(d timing.Descriptor) int64 { return int64(d.PixelClockHz) },
	},
	{
		ID: IDWidth, Name: "width", Max: timing.MaxDimension, Step: 1, Variants: allVariants,
		derive: u32(func(d timing.Descriptor) uint32 { return d.ActiveWidth }),
	},
	{
		ID: IDHeight, Name: "height", Max: timing.MaxDimension, Step: 1, Variants: allVariants,
		derive: u32(func(d timing.Descriptor) uint32 { return d.ActiveHeight }),
	},
	{
		ID: IDBridgeClock, Name: "bridge_clock", Max: timing.MaxPixelClockHz, Step: 1000, Variants: bridgeOnly,
		derive: func(d timing.Descriptor) int64 { return int64(d.BridgeClockHz) },
	},
	{
		ID: IDCSIActive, Name: "csi_active", Max: 1, Step: 1, Variants: bridgeOnly,
		derive: flag(func(d timing.Descriptor) bool { return d.CSIActive }),
	},
	{
		ID: IDBridgeEnabled, Name: "bridge_enabled", Max: 1, Step: 1, Variants: bridgeOnly,
		derive: flag(func(d timing.Descriptor) bool { return d.BridgeEnabled }),
	},
}

// Catalog returns the controls a variant exposes, in ID order.
func Catalog(variant timing.Variant) []Control {
	out := make([]Control, 0, len(catalog))
	for _, c := range catalog {
		if slices.Contains(c.Variants, variant) {
			out = append(out, c)
		}
	}
	return out
}

// clamp brings v into the control's range and onto its step grid.
func (c Control) clamp(v int64) int64 {
	if v < c.Min {
		return c.Min
	}
	if v > c.Max {
		return c.Max
	}
	if c.Step > 1 {
		v -= (v - c.Min) % c.Step
	}
	return v
}

// accepts reports whether v is a legal value for the control.
func (c Control) accepts(v int64) bool {
	if v < c.Min || v > c.Max {
		return false
	}
	return c.Step <= 1 || (v-c.Min)%c.Step == 0
}
