package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/signalnode/internal/api/models"
	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/detect"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/timing"
)

type fakeLED struct{}

func (fakeLED) Device() string { return "ACT" }
func (fakeLED) State() string  { return "solid" }

type fixture struct {
	server *Server
	api    humatest.TestAPI
	host   *subdev.Host
	debug  *controls.DebugFlag
	bus    *events.Bus
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	bus := events.New()
	debug := controls.NewDebugFlag(false)
	host := subdev.NewHost(bus, debug)

	for _, cfg := range []subdev.Config{
		{Name: "vga", Variant: timing.VariantDecoder, Detector: detect.Placeholder(timing.VariantDecoder)},
		{Name: "csi", Variant: timing.VariantBridge, Detector: detect.Placeholder(timing.VariantBridge)},
	} {
		cfg.Bus, cfg.Debug = bus, debug
		sd, err := subdev.New(cfg)
		require.NoError(t, err)
		require.NoError(t, host.Register(sd))
	}
	require.NoError(t, host.Link("vga", 0, "csi", 0))

	opts.Host, opts.Bus, opts.Debug = host, bus, debug
	server := NewServer(&opts)
	t.Cleanup(func() { host.Shutdown(context.Background()) })

	return &fixture{
		server: server,
		api:    humatest.Wrap(t, server.API()),
		host:   host,
		debug:  debug,
		bus:    bus,
	}
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.api.Get("/api/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decode[models.HealthData](t, resp.Body).Status)

	resp = f.api.Get("/api/version")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, decode[models.VersionData](t, resp.Body).GoVersion)
}

func TestListAndGetSubdevices(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.api.Get("/api/subdevices")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[struct {
		Subdevices []models.SubdeviceSummary `json:"subdevices"`
		Count      int                       `json:"count"`
	}](t, resp.Body)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "csi", list.Subdevices[0].Name)
	assert.Equal(t, subdev.StateIdle, list.Subdevices[0].State)
	assert.Equal(t, "no signal", list.Subdevices[1].Signal)

	resp = f.api.Get("/api/subdevices/csi")
	require.Equal(t, http.StatusOK, resp.Code)
	data := decode[models.SubdeviceData](t, resp.Body)
	assert.Equal(t, timing.VariantBridge, data.Variant)
	assert.Len(t, data.Pads, 2)

	resp = f.api.Get("/api/subdevices/missing")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStreamLifecycle(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.api.Put("/api/subdevices/vga/stream", map[string]any{"streaming": true})
	require.Equal(t, http.StatusOK, resp.Code)
	data := decode[models.SubdeviceData](t, resp.Body)
	assert.Equal(t, subdev.StateStreaming, data.State)
	assert.Equal(t, "640x480@60", data.Signal)
	assert.Equal(t, uint64(25_175_000), data.Timing.PixelClockHz)

	resp = f.api.Post("/api/subdevices/vga/redetect")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, uint32(640), decode[timing.Descriptor](t, resp.Body).ActiveWidth)

	resp = f.api.Put("/api/subdevices/vga/stream", map[string]any{"streaming": false})
	require.Equal(t, http.StatusOK, resp.Code)
	data = decode[models.SubdeviceData](t, resp.Body)
	assert.Equal(t, subdev.StateIdle, data.State)
	assert.False(t, data.Timing.SignalPresent)
	assert.Equal(t, uint32(640), data.Timing.ActiveWidth)

	// Re-detection needs a streaming subdevice.
	resp = f.api.Post("/api/subdevices/vga/redetect")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDetectionFailureIsServiceUnavailable(t *testing.T) {
	f := newFixture(t, Options{})
	sd, err := subdev.New(subdev.Config{
		Name:    "broken",
		Variant: timing.VariantDecoder,
		Detector: detect.DetectorFunc(func(context.Context) (timing.Descriptor, error) {
			return timing.Descriptor{}, io.ErrUnexpectedEOF
		}),
		Bus: f.bus,
	})
	require.NoError(t, err)
	require.NoError(t, f.host.Register(sd))

	resp := f.api.Put("/api/subdevices/broken/stream", map[string]any{"streaming": true})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.False(t, sd.Streaming())
}

func TestControls(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, mustGet(t, f.host, "vga").Enable(context.Background()))

	resp := f.api.Get("/api/subdevices/vga/controls")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[struct {
		Controls []controls.Value `json:"controls"`
	}](t, resp.Body)
	assert.NotEmpty(t, list.Controls)

	resp = f.api.Get("/api/subdevices/vga/controls/hsync_len")
	require.Equal(t, http.StatusOK, resp.Code)
	v := decode[controls.Value](t, resp.Body)
	assert.Equal(t, int64(96), v.Value)
	assert.True(t, v.Live)

	resp = f.api.Get("/api/subdevices/vga/controls/0x00981a06")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "framerate", decode[controls.Value](t, resp.Body).Name)

	resp = f.api.Put("/api/subdevices/vga/controls/framerate", map[string]any{"value": 30})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = f.api.Put("/api/subdevices/vga/controls/debug_enable", map[string]any{"value": 2})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, f.debug.Enabled())

	resp = f.api.Put("/api/subdevices/csi/controls/debug_enable", map[string]any{"value": 1})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, f.debug.Enabled())

	// The flag is shared by every subdevice.
	resp = f.api.Get("/api/subdevices/vga/controls/debug_enable")
	assert.Equal(t, int64(1), decode[controls.Value](t, resp.Body).Value)

	resp = f.api.Get("/api/subdevices/vga/controls/nope")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFormats(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, mustGet(t, f.host, "csi").Enable(context.Background()))

	resp := f.api.Get("/api/subdevices/csi/pads/1/format")
	require.Equal(t, http.StatusOK, resp.Code)
	format := decode[struct {
		Width  uint32 `json:"width"`
		Height uint32 `json:"height"`
		Code   uint32 `json:"code"`
	}](t, resp.Body)
	assert.Equal(t, uint32(640), format.Width)
	assert.Equal(t, uint32(480), format.Height)
	assert.Equal(t, uint32(0x100a), format.Code)

	resp = f.api.Put("/api/subdevices/csi/pads/0/format", map[string]any{"width": 1920, "height": 1080, "code": 1, "field": 1, "colorspace": 8})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, uint32(640), decode[struct {
		Width uint32 `json:"width"`
	}](t, resp.Body).Width)

	resp = f.api.Get("/api/subdevices/csi/pads/2/format")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = f.api.Get("/api/subdevices/csi/pads/0/mbus-codes")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []uint32{0x100a}, decode[struct {
		Codes []uint32 `json:"codes"`
	}](t, resp.Body).Codes)

	resp = f.api.Get("/api/subdevices/csi/pads/0/frame-sizes")
	require.Equal(t, http.StatusOK, resp.Code)
	sizes := decode[struct {
		Sizes []map[string]uint32 `json:"sizes"`
	}](t, resp.Body).Sizes
	require.Len(t, sizes, 1)
	assert.Equal(t, uint32(640), sizes[0]["max_width"])

	resp = f.api.Get("/api/subdevices/csi/frame-interval")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1/60", decode[struct {
		Text string `json:"text"`
	}](t, resp.Body).Text)

	resp = f.api.Get("/api/subdevices/csi/dv-timings")
	require.Equal(t, http.StatusOK, resp.Code)
	dv := decode[struct {
		PixelClock uint64 `json:"pixel_clock"`
		Locked     bool   `json:"locked"`
	}](t, resp.Body)
	assert.Equal(t, uint64(60*640*480), dv.PixelClock)
	assert.True(t, dv.Locked)
}

func TestLinks(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.api.Get("/api/links")
	require.Equal(t, http.StatusOK, resp.Code)
	links := decode[struct {
		Links []subdev.Link `json:"links"`
	}](t, resp.Body).Links
	assert.Equal(t, []subdev.Link{{Source: "vga", SourcePad: 0, Sink: "csi", SinkPad: 0}}, links)
}

func TestRuntimeRoutes(t *testing.T) {
	f := newFixture(t, Options{LED: fakeLED{}})

	resp := f.api.Put("/api/debug", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, f.debug.Enabled())
	resp = f.api.Get("/api/debug")
	assert.True(t, decode[models.DebugData](t, resp.Body).Enabled)

	resp = f.api.Put("/api/logging/nats", map[string]any{"level": "debug"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"module":"nats","level":"debug"`)

	resp = f.api.Put("/api/logging/nats", map[string]any{"level": "loud"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = f.api.Delete("/api/logging/nats")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.api.Get("/api/led")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"state":"solid"`)
}

func TestLEDRouteAbsentWithoutLED(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.api.Get("/api/led")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, Options{AuthUsername: "admin", AuthPassword: "secret"})

	resp := f.api.Get("/api/subdevices")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Header().Get("WWW-Authenticate"), "SignalNode")

	creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	resp = f.api.Get("/api/subdevices", "Authorization: Basic "+creds)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = f.api.Get("/api/subdevices?auth=" + creds)
	assert.Equal(t, http.StatusOK, resp.Code)

	wrong := base64.StdEncoding.EncodeToString([]byte("admin:nope"))
	resp = f.api.Get("/api/subdevices", "Authorization: Basic "+wrong)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = f.api.Get("/api/health")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{CORSOrigin: "*"})

	req := httptest.NewRequest(http.MethodOptions, "/api/subdevices", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	resp := f.api.Get("/api/health")
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestDebugFiles(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, mustGet(t, f.host, "vga").Enable(context.Background()))

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	body := fetch(t, srv.URL+"/debug/vga/timings")
	assert.Equal(t, "hsync_len: 96\nvsync_len: 2\nhbp: 48\nvbp: 33\nhfp: 16\nvfp: 10\n", body)

	body = fetch(t, srv.URL+"/debug/csi/status")
	assert.Equal(t, "clock_locked: 0\npassthrough_ready: 0\n", body)

	resp, err := http.Get(srv.URL + "/debug/vga/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsHandler(t *testing.T) {
	f := newFixture(t, Options{PrometheusHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "signalnode_up 1\n")
	})})

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()
	assert.Equal(t, "signalnode_up 1\n", fetch(t, srv.URL+"/metrics"))
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, Options{})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		buf := make([]byte, 4096)
		var pending string
		for {
			n, err := resp.Body.Read(buf)
			pending += string(buf[:n])
			for {
				i := strings.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				lines <- pending[:i]
				pending = pending[i+1:]
			}
			if err != nil {
				return
			}
		}
	}()

	// Initial state for both subdevices, then the transition.
	waitForLine(t, lines, "event: stream-state-changed")
	require.NoError(t, mustGet(t, f.host, "vga").Enable(context.Background()))
	waitForLine(t, lines, `"streaming":true`)
}

func waitForLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q", want)
			}
			if strings.Contains(line, want) {
				return
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func mustGet(t *testing.T, host *subdev.Host, name string) *subdev.Subdevice {
	t.Helper()
	sd, err := host.Get(name)
	require.NoError(t, err)
	return sd
}

func fetch(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
