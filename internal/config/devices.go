package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/smazurov/signalnode/internal/timing"
)

// Transport kinds of a subdevice.
const (
	TransportNone        = "none"        // no detector, always no signal
	TransportPlaceholder = "placeholder" // fixed readings of the vendor drivers
	TransportSim         = "sim"         // simulated register file
	TransportI2C         = "i2c"         // chip registers over I2C
	TransportV4L2        = "v4l2"        // kernel receiver via VIDIOC_QUERY_DV_TIMINGS
)

// Duration is a time.Duration written as a string like "500ms" in the
// devices file.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Devices is the parsed devices file.
type Devices struct {
	Subdevices []Subdevice `toml:"subdevice" yaml:"subdevices"`
	Links      []Link      `toml:"link" yaml:"links"`
}

// Subdevice configures one decoder or bridge instance.
type Subdevice struct {
	Name      string    `toml:"name" yaml:"name"`
	Variant   string    `toml:"variant" yaml:"variant"`
	Transport Transport `toml:"transport" yaml:"transport"`

	// VSyncPin names the GPIO that receives VSYNC, used to measure framerate.
	VSyncPin string `toml:"vsync_pin" yaml:"vsync_pin"`

	DetectTimeout    Duration `toml:"detect_timeout" yaml:"detect_timeout"`
	RedetectInterval Duration `toml:"redetect_interval" yaml:"redetect_interval"`
	Debounce         int      `toml:"debounce" yaml:"debounce"`

	// Bridge only.
	RefClockHz       uint64 `toml:"ref_clock_hz" yaml:"ref_clock_hz"`
	NominalFramerate uint32 `toml:"nominal_framerate" yaml:"nominal_framerate"`

	// Enable starts streaming at startup.
	Enable bool `toml:"enable" yaml:"enable"`
}

// Transport selects how a subdevice observes its chip.
type Transport struct {
	Kind    string `toml:"kind" yaml:"kind"`
	Bus     string `toml:"bus" yaml:"bus"`         // i2c bus name, e.g. "1" or "/dev/i2c-1"
	Address uint16 `toml:"address" yaml:"address"` // i2c 7-bit address
	Node    string `toml:"node" yaml:"node"`       // v4l2 device node
	Mode    string `toml:"mode" yaml:"mode"`       // sim: initial mode name, empty for no signal
}

// Link connects two subdevice pads.
type Link struct {
	Source    string `toml:"source" yaml:"source"`
	SourcePad uint32 `toml:"source_pad" yaml:"source_pad"`
	Sink      string `toml:"sink" yaml:"sink"`
	SinkPad   uint32 `toml:"sink_pad" yaml:"sink_pad"`
}

// LoadDevices reads a devices file. Files ending in .yaml or .yml are YAML;
// everything else is TOML.
func LoadDevices(path string) (Devices, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Devices{}, fmt.Errorf("failed to read devices file: %w", err)
	}

	var devices Devices
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &devices)
	default:
		err = toml.Unmarshal(data, &devices)
	}
	if err != nil {
		return Devices{}, fmt.Errorf("failed to parse devices file %s: %w", path, err)
	}

	if err := devices.Validate(); err != nil {
		return Devices{}, fmt.Errorf("invalid devices file %s: %w", path, err)
	}
	return devices, nil
}

// Validate checks names, variants and transport settings.
func (d Devices) Validate() error {
	seen := make(map[string]bool, len(d.Subdevices))
	for i, sd := range d.Subdevices {
		if sd.Name == "" {
			return fmt.Errorf("subdevice %d: name is required", i)
		}
		if strings.ContainsAny(sd.Name, "/. *>") {
			return fmt.Errorf("subdevice %q: name must not contain '/', '.', '*', '>' or spaces", sd.Name)
		}
		if seen[sd.Name] {
			return fmt.Errorf("subdevice %q: duplicate name", sd.Name)
		}
		seen[sd.Name] = true

		if _, err := timing.ParseVariant(sd.Variant); err != nil {
			return fmt.Errorf("subdevice %q: %w", sd.Name, err)
		}
		if sd.Debounce < 0 {
			return fmt.Errorf("subdevice %q: debounce must not be negative", sd.Name)
		}
		if err := sd.Transport.validate(); err != nil {
			return fmt.Errorf("subdevice %q: %w", sd.Name, err)
		}
	}

	for _, l := range d.Links {
		if !seen[l.Source] || !seen[l.Sink] {
			return fmt.Errorf("link %s:%d -> %s:%d references an unknown subdevice", l.Source, l.SourcePad, l.Sink, l.SinkPad)
		}
	}
	return nil
}

func (t Transport) validate() error {
	switch t.Kind {
	case "", TransportNone, TransportPlaceholder:
	case TransportSim:
		if t.Mode != "" {
			if _, ok := timing.ModeByName(t.Mode); !ok {
				return fmt.Errorf("unknown sim mode %q", t.Mode)
			}
		}
	case TransportI2C:
		if t.Bus == "" || t.Address == 0 || t.Address > 0x7f {
			return fmt.Errorf("i2c transport needs a bus and a 7-bit address")
		}
	case TransportV4L2:
		if t.Node == "" {
			return fmt.Errorf("v4l2 transport needs a node")
		}
	default:
		return fmt.Errorf("unknown transport kind %q", t.Kind)
	}
	return nil
}
