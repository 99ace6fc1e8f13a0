package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devicesTOML = `
[[subdevice]]
name = "vga"
variant = "decoder"
vsync_pin = "GPIO17"
detect_timeout = "1s"
redetect_interval = "2s"
debounce = 2
enable = true

[subdevice.transport]
kind = "i2c"
bus = "1"
address = 0x4c

[[subdevice]]
name = "csi"
variant = "bridge"
ref_clock_hz = 27000000
nominal_framerate = 60

[subdevice.transport]
kind = "sim"
mode = "640x480@60"

[[link]]
source = "vga"
source_pad = 0
sink = "csi"
sink_pad = 0
`

func TestLoadDevicesTOML(t *testing.T) {
	devices, err := LoadDevices(writeFile(t, "devices.toml", devicesTOML))
	require.NoError(t, err)
	require.Len(t, devices.Subdevices, 2)

	vga := devices.Subdevices[0]
	assert.Equal(t, "decoder", vga.Variant)
	assert.Equal(t, Transport{Kind: TransportI2C, Bus: "1", Address: 0x4c}, vga.Transport)
	assert.Equal(t, "GPIO17", vga.VSyncPin)
	assert.Equal(t, time.Second, vga.DetectTimeout.Duration)
	assert.Equal(t, 2*time.Second, vga.RedetectInterval.Duration)
	assert.Equal(t, 2, vga.Debounce)
	assert.True(t, vga.Enable)

	csi := devices.Subdevices[1]
	assert.Equal(t, uint64(27_000_000), csi.RefClockHz)
	assert.Equal(t, uint32(60), csi.NominalFramerate)
	assert.Equal(t, "640x480@60", csi.Transport.Mode)
	assert.Zero(t, csi.DetectTimeout.Duration)

	assert.Equal(t, []Link{{Source: "vga", Sink: "csi"}}, devices.Links)
}

func TestLoadDevicesYAML(t *testing.T) {
	devices, err := LoadDevices(writeFile(t, "devices.yaml", `
subdevices:
  - name: adc
    variant: decoder
    redetect_interval: 500ms
    transport:
      kind: v4l2
      node: /dev/v4l-subdev0
  - name: bridge
    variant: bridge
    transport:
      kind: placeholder
links:
  - source: adc
    source_pad: 0
    sink: bridge
    sink_pad: 0
`))
	require.NoError(t, err)
	require.Len(t, devices.Subdevices, 2)
	assert.Equal(t, "/dev/v4l-subdev0", devices.Subdevices[0].Transport.Node)
	assert.Equal(t, 500*time.Millisecond, devices.Subdevices[0].RedetectInterval.Duration)
	assert.Equal(t, TransportPlaceholder, devices.Subdevices[1].Transport.Kind)
	require.Len(t, devices.Links, 1)
}

func TestDevicesValidate(t *testing.T) {
	decoder := func(name string) Subdevice {
		return Subdevice{Name: name, Variant: "decoder"}
	}

	tests := []struct {
		name    string
		devices Devices
		wantErr string
	}{
		{"empty is valid", Devices{}, ""},
		{"missing name", Devices{Subdevices: []Subdevice{{Variant: "decoder"}}}, "name is required"},
		{"dotted name", Devices{Subdevices: []Subdevice{decoder("a.b")}}, "must not contain"},
		{"duplicate", Devices{Subdevices: []Subdevice{decoder("a"), decoder("a")}}, "duplicate"},
		{"bad variant", Devices{Subdevices: []Subdevice{{Name: "a", Variant: "scaler"}}}, "scaler"},
		{"negative debounce", Devices{Subdevices: []Subdevice{{Name: "a", Variant: "decoder", Debounce: -1}}}, "debounce"},
		{"unknown transport", Devices{Subdevices: []Subdevice{{Name: "a", Variant: "decoder", Transport: Transport{Kind: "usb"}}}}, "unknown transport"},
		{"i2c without bus", Devices{Subdevices: []Subdevice{{Name: "a", Variant: "decoder", Transport: Transport{Kind: TransportI2C, Address: 0x4c}}}}, "7-bit"},
		{"i2c wide address", Devices{Subdevices: []Subdevice{{Name: "a", Variant: "decoder", Transport: Transport{Kind: TransportI2C, Bus: "1", Address: 0x80}}}}, "7-bit"},
		{"v4l2 without node", Devices{Subdevices: []Subdevice{{Name: "a", Variant: "decoder", Transport: Transport{Kind: TransportV4L2}}}}, "node"},
		{"unknown sim mode", Devices{Subdevices: []Subdevice{{Name: "a", Variant: "decoder", Transport: Transport{Kind: TransportSim, Mode: "1x1@1"}}}}, "sim mode"},
		{"dangling link", Devices{Subdevices: []Subdevice{decoder("a")}, Links: []Link{{Source: "a", Sink: "b"}}}, "unknown subdevice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.devices.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDevicesRejectsInvalid(t *testing.T) {
	_, err := LoadDevices(writeFile(t, "devices.toml", "[[subdevice]]\nname = \"a\"\nvariant = \"nope\"\n"))
	assert.Error(t, err)

	_, err = LoadDevices(writeFile(t, "devices.toml", "[[subdevice]]\ndetect_timeout = \"soon\"\n"))
	assert.Error(t, err)
}

func TestDurationMarshalText(t *testing.T) {
	text, err := Duration{1500 * time.Millisecond}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(text))
}
