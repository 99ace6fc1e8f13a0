package diag

import (
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/timing"
)

type stubInstance struct {
	name    string
	variant timing.Variant
	d       timing.Descriptor
}

func (s stubInstance) Name() string                { return s.name }
func (s stubInstance) Variant() timing.Variant     { return s.variant }
func (s stubInstance) Snapshot() timing.Descriptor { return s.d }

type stubLister []Instance

func (l stubLister) Instances() []Instance { return l }

func vgaDescriptor() timing.Descriptor {
	m, ok := timing.ModeByName("640x480@60")
	if !ok {
		panic("640x480@60 missing from mode table")
	}
	d := m.Descriptor()
	d.ClockLocked = true
	return d
}

func TestRenderDecoderTimings(t *testing.T) {
	out, err := Render(timing.VariantDecoder, FileTimings, vgaDescriptor(), 0)
	require.NoError(t, err)
	assert.Equal(t, "hsync_len: 96\nvsync_len: 2\nhbp: 48\nvbp: 33\nhfp: 16\nvfp: 10\n", string(out))
}

func TestRenderBridgeFiles(t *testing.T) {
	d := timing.Descriptor{
		ActiveWidth:   640,
		ActiveHeight:  480,
		Framerate:     60,
		PixelClockHz:  18_432_000,
		BridgeClockHz: 400_000_000,
		BridgeEnabled: true,
		CSIActive:     true,
		SignalPresent: true,
		ClockLocked:   true,
	}

	out, err := Render(timing.VariantBridge, FileTimings, d, 0)
	require.NoError(t, err)
	assert.Equal(t, "input_clock: 400000000\nbridge_enabled: 1\ncsi_output: yes\n", string(out))

	out, err = Render(timing.VariantBridge, FileStatus, d, 0)
	require.NoError(t, err)
	assert.Equal(t, "clock_locked: 1\npassthrough_ready: 1\n", string(out))

	d.CSIActive = false
	out, err = Render(timing.VariantBridge, FileStatus, d, 0)
	require.NoError(t, err)
	assert.Equal(t, "clock_locked: 1\npassthrough_ready: 0\n", string(out))
}

func TestRenderNoSignalDescriptor(t *testing.T) {
	out, err := Render(timing.VariantDecoder, FileDescriptor, timing.NoSignal(), 0)
	require.NoError(t, err)
	assert.Contains(t, string(out), "signal_present: 0\n")
	assert.Contains(t, string(out), "active_width: 0\n")
	assert.Contains(t, string(out), "captured_at: never\n")
}

func TestRenderStatusOnlyForBridge(t *testing.T) {
	_, err := Render(timing.VariantDecoder, FileStatus, vgaDescriptor(), 0)
	assert.True(t, fault.HasCode(err, fault.CodeNotFound))
}

func TestRenderTruncated(t *testing.T) {
	_, err := Render(timing.VariantDecoder, FileDescriptor, vgaDescriptor(), 32)
	require.Error(t, err)
	assert.Equal(t, fault.CodeTruncated, fault.CodeOf(err))

	// The decoder timings file is 59 bytes; an exact fit is not truncation.
	out, err := Render(timing.VariantDecoder, FileTimings, vgaDescriptor(), 59)
	require.NoError(t, err)
	assert.Len(t, out, 59)

	_, err = Render(timing.VariantDecoder, FileTimings, vgaDescriptor(), 58)
	assert.True(t, fault.HasCode(err, fault.CodeTruncated))
}

func newTestFS() *FS {
	return NewFS(stubLister{
		stubInstance{name: "vga0", variant: timing.VariantDecoder, d: vgaDescriptor()},
		stubInstance{name: "csi0", variant: timing.VariantBridge, d: timing.NoSignal()},
	}, 0)
}

func TestFSConformance(t *testing.T) {
	err := fstest.TestFS(newTestFS(),
		"vga0/descriptor", "vga0/timings",
		"csi0/descriptor", "csi0/status", "csi0/timings")
	require.NoError(t, err)
}

func TestFSReadFile(t *testing.T) {
	fsys := newTestFS()

	data, err := fs.ReadFile(fsys, "csi0/status")
	require.NoError(t, err)
	assert.Equal(t, "clock_locked: 0\npassthrough_ready: 0\n", string(data))

	_, err = fs.ReadFile(fsys, "vga0/status")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = fs.ReadFile(fsys, "missing/timings")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = fsys.Contents("missing/timings")
	assert.True(t, fault.HasCode(err, fault.CodeNotFound))
}

func TestFSServedOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.FS(newTestFS())))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/vga0/timings")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hsync_len: 96\n")
}
