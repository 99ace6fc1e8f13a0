package timing

// Mode is a standard progressive video timing.
type Mode struct {
	Name         string
	Width        uint32
	Height       uint32
	Refresh      uint32 // nominal integer refresh rate in Hz
	HFrontPorch  uint32
	HSync        uint32
	HBackPorch   uint32
	VFrontPorch  uint32
	VSync        uint32
	VBackPorch   uint32
	PixelClockHz uint64
}

// TotalLines is the number of HSYNC pulses per VSYNC for this mode.
func (m Mode) TotalLines() uint32 {
	return m.Height + m.VFrontPorch + m.VSync + m.VBackPorch
}

// TotalPixels is the line length including blanking.
func (m Mode) TotalPixels() uint32 {
	return m.Width + m.HFrontPorch + m.HSync + m.HBackPorch
}

// Descriptor converts the mode into a present-signal descriptor.
func (m Mode) Descriptor() Descriptor {
	return Descriptor{
		ActiveWidth:   m.Width,
		ActiveHeight:  m.Height,
		Framerate:     m.Refresh,
		HSyncLen:      m.HSync,
		VSyncLen:      m.VSync,
		HBackPorch:    m.HBackPorch,
		VBackPorch:    m.VBackPorch,
		HFrontPorch:   m.HFrontPorch,
		VFrontPorch:   m.VFrontPorch,
		PixelClockHz:  m.PixelClockHz,
		SignalPresent: true,
	}
}

// Modes lists the VESA DMT and CEA-861 progressive timings an analog
// front end can lock to. Entries must be unique by (TotalLines, Refresh).
var Modes = []Mode{
	{"640x480@60", 640, 480, 60, 16, 96, 48, 10, 2, 33, 25_175_000},
	{"640x480@72", 640, 480, 72, 24, 40, 128, 9, 3, 28, 31_500_000},
	{"640x480@75", 640, 480, 75, 16, 64, 120, 1, 3, 16, 31_500_000},
	{"720x576@50", 720, 576, 50, 12, 64, 68, 5, 5, 39, 27_000_000},
	{"800x600@56", 800, 600, 56, 24, 72, 128, 1, 2, 22, 36_000_000},
	{"800x600@60", 800, 600, 60, 40, 128, 88, 1, 4, 23, 40_000_000},
	{"800x600@72", 800, 600, 72, 56, 120, 64, 37, 6, 23, 50_000_000},
	{"800x600@75", 800, 600, 75, 16, 80, 160, 1, 3, 21, 49_500_000},
	{"1024x768@60", 1024, 768, 60, 24, 136, 160, 3, 6, 29, 65_000_000},
	{"1024x768@70", 1024, 768, 70, 24, 136, 144, 3, 6, 29, 75_000_000},
	{"1024x768@75", 1024, 768, 75, 16, 96, 176, 1, 3, 28, 78_750_000},
	{"1280x720@50", 1280, 720, 50, 440, 40, 220, 5, 5, 20, 74_250_000},
	{"1280x720@60", 1280, 720, 60, 110, 40, 220, 5, 5, 20, 74_250_000},
	{"1280x1024@60", 1280, 1024, 60, 48, 112, 248, 1, 3, 38, 108_000_000},
	{"1280x1024@75", 1280, 1024, 75, 16, 144, 248, 1, 3, 38, 135_000_000},
	{"1366x768@60", 1366, 768, 60, 70, 143, 213, 3, 3, 24, 85_500_000},
	{"1440x900@60", 1440, 900, 60, 80, 152, 232, 3, 6, 25, 106_500_000},
	{"1600x1200@60", 1600, 1200, 60, 64, 192, 304, 1, 3, 46, 162_000_000},
	{"1680x1050@60", 1680, 1050, 60, 104, 176, 280, 3, 6, 30, 146_250_000},
	{"1920x1080@50", 1920, 1080, 50, 528, 44, 148, 4, 5, 36, 148_500_000},
	{"1920x1080@60", 1920, 1080, 60, 88, 44, 148, 4, 5, 36, 148_500_000},
}

// LookupMode snaps a measured line count and refresh rate onto the mode
// table, tolerating one line and one Hz of measurement jitter.
func LookupMode(totalLines, refreshHz uint32) (Mode, bool) {
	for _, m := range Modes {
		if absDiff(m.TotalLines(), totalLines) <= 1 && absDiff(m.Refresh, refreshHz) <= 1 {
			return m, true
		}
	}
	return Mode{}, false
}

// ModeByName returns the table entry with the given name.
func ModeByName(name string) (Mode, bool) {
	for _, m := range Modes {
		if m.Name == name {
			return m, true
		}
	}
	return Mode{}, false
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
