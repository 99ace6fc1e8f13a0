package subdev

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/detect"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/format"
	"github.com/smazurov/signalnode/internal/timing"
	"github.com/smazurov/signalnode/internal/transport/simbus"
)

func mustNew(t *testing.T, cfg Config) *Subdevice {
	t.Helper()
	sd, err := New(cfg)
	require.NoError(t, err)
	return sd
}

// switchable returns a detector whose reading can be replaced between calls.
type switchable struct {
	mu    sync.Mutex
	d     timing.Descriptor
	err   error
	calls atomic.Int32
}

func (s *switchable) set(d timing.Descriptor, err error) {
	s.mu.Lock()
	s.d, s.err = d, err
	s.mu.Unlock()
}

func (s *switchable) Detect(_ context.Context) (timing.Descriptor, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d, s.err
}

func mode(t *testing.T, name string) timing.Descriptor {
	t.Helper()
	m, ok := timing.ModeByName(name)
	require.True(t, ok, name)
	d := m.Descriptor()
	d.ClockLocked = true
	return d
}

type recorder struct {
	mu          sync.Mutex
	detections  int
	failures    int
	transitions []bool
}

func (r *recorder) DetectionCompleted(_ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detections++
	if err != nil {
		r.failures++
	}
}

func (r *recorder) StateChanged(_ string, streaming bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, streaming)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Variant: timing.VariantDecoder})
	assert.True(t, fault.HasCode(err, fault.CodeInvalidArgument))

	_, err = New(Config{Name: "x", Variant: "scaler"})
	assert.True(t, fault.HasCode(err, fault.CodeInvalidArgument))
}

func TestPads(t *testing.T) {
	dec := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder})
	assert.Equal(t, []Pad{{Index: 0, Direction: DirectionSource}}, dec.Pads())

	br := mustNew(t, Config{Name: "br", Variant: timing.VariantBridge})
	assert.Equal(t, []Pad{{0, DirectionSink}, {1, DirectionSource}}, br.Pads())
	assert.NotEqual(t, dec.InstanceID(), br.InstanceID())
}

func TestFirstUseReturnsNoSignal(t *testing.T) {
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: detect.Placeholder(timing.VariantDecoder)})

	d := sd.Snapshot()
	assert.False(t, d.SignalPresent)
	assert.Zero(t, d.ActiveWidth)
	assert.Equal(t, StateIdle, sd.State())
}

func TestEnableWithoutDetector(t *testing.T) {
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder})

	require.NoError(t, sd.Enable(context.Background()))
	assert.Equal(t, StateStreaming, sd.State())

	d := sd.Snapshot()
	assert.False(t, d.SignalPresent)
	assert.Zero(t, d.ActiveWidth)
}

func TestDecoderScenario(t *testing.T) {
	bus := simbus.New()
	vsync := simbus.NewPulseTimer(0)
	vga, _ := timing.ModeByName("640x480@60")
	simbus.LoadAD9984A(bus, vsync, vga)

	sd := mustNew(t, Config{
		Name:     "vga",
		Variant:  timing.VariantDecoder,
		Detector: &detect.AD9984A{Bus: bus, VSync: vsync},
	})
	require.NoError(t, sd.Enable(context.Background()))

	d := sd.Snapshot()
	assert.True(t, d.SignalPresent)
	assert.Equal(t, uint32(640), d.ActiveWidth)
	assert.Equal(t, uint32(480), d.ActiveHeight)
	assert.Equal(t, uint32(60), d.Framerate)
	assert.Equal(t, uint64(25_175_000), d.PixelClockHz)

	hsync, err := sd.Controls().Get("hsync_len")
	require.NoError(t, err)
	assert.Equal(t, int64(96), hsync.Value)
	vsyncLen, err := sd.Controls().Get("vsync_len")
	require.NoError(t, err)
	assert.Equal(t, int64(2), vsyncLen.Value)
}

func TestBridgeScenario(t *testing.T) {
	bus := simbus.New()
	vsync := simbus.NewPulseTimer(0)
	simbus.LoadTC358748(bus, vsync, simbus.VGABridgeInput())

	sd := mustNew(t, Config{
		Name:     "csi",
		Variant:  timing.VariantBridge,
		Detector: &detect.TC358748{Bus: bus, VSync: vsync},
	})
	ctx := context.Background()
	require.NoError(t, sd.Enable(ctx))

	d := sd.Snapshot()
	assert.True(t, d.ClockLocked)
	assert.True(t, d.SignalPresent)

	fmtSrc, err := sd.Formats().GetFormat(1)
	require.NoError(t, err)
	assert.Equal(t, d.ActiveWidth, fmtSrc.Width)
	assert.Equal(t, d.ActiveHeight, fmtSrc.Height)
	assert.Equal(t, uint32(format.MBusFmtRGB888_1X24), fmtSrc.Code)

	require.NoError(t, sd.Disable(ctx))
	d = sd.Snapshot()
	assert.False(t, d.SignalPresent)
	assert.False(t, d.ClockLocked)
	assert.Equal(t, uint32(640), d.ActiveWidth)
}

func TestDisableClearsLivenessRetainsGeometry(t *testing.T) {
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: detect.Fixed(mode(t, "1024x768@60"))})
	ctx := context.Background()

	require.NoError(t, sd.Enable(ctx))
	enabled := sd.Snapshot()
	require.NoError(t, sd.Disable(ctx))

	d := sd.Snapshot()
	assert.False(t, d.SignalPresent)
	assert.False(t, d.ClockLocked)
	assert.Equal(t, uint32(1024), d.ActiveWidth)
	assert.Greater(t, d.Sequence, enabled.Sequence)
	assert.Equal(t, StateIdle, sd.State())

	live, err := sd.Controls().Get("width")
	require.NoError(t, err)
	assert.False(t, live.Live)
}

func TestTransitionsAreIdempotent(t *testing.T) {
	det := &switchable{}
	det.set(mode(t, "800x600@60"), nil)
	rec := &recorder{}
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: det, Observer: rec})
	ctx := context.Background()

	require.NoError(t, sd.Disable(ctx))
	require.NoError(t, sd.Enable(ctx))
	require.NoError(t, sd.Enable(ctx))
	assert.Equal(t, int32(1), det.calls.Load(), "re-enabling must not re-detect")

	require.NoError(t, sd.Disable(ctx))
	require.NoError(t, sd.Disable(ctx))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []bool{true, false}, rec.transitions)
	assert.Equal(t, 1, rec.detections)
}

func TestEnableDetectionFailureLeavesStateUnchanged(t *testing.T) {
	det := &switchable{}
	det.set(timing.Descriptor{}, errors.New("i2c nack"))
	rec := &recorder{}
	evBus := events.New()
	failed := make(chan events.DetectionFailedEvent, 1)
	unsub := evBus.Subscribe(func(e events.DetectionFailedEvent) { failed <- e })
	defer unsub()

	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: det, Bus: evBus, Observer: rec})
	before := sd.Snapshot()

	err := sd.Enable(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrDetection)
	assert.Equal(t, StateIdle, sd.State())
	assert.Equal(t, before, sd.Snapshot())

	select {
	case e := <-failed:
		assert.Equal(t, "dec", e.Subdevice)
		assert.Equal(t, string(fault.CodeDetection), e.Code)
		assert.False(t, e.Redetect)
	case <-time.After(time.Second):
		t.Fatal("no DetectionFailedEvent")
	}

	// Retryable once the transport recovers.
	det.set(mode(t, "640x480@60"), nil)
	require.NoError(t, sd.Enable(context.Background()))
	assert.True(t, sd.Snapshot().SignalPresent)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.failures)
}

func TestEnableTimesOutStalledDetector(t *testing.T) {
	stalled := detect.DetectorFunc(func(ctx context.Context) (timing.Descriptor, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return timing.Descriptor{}, ctx.Err()
	})
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: stalled, DetectTimeout: 20 * time.Millisecond})

	start := time.Now()
	err := sd.Enable(context.Background())
	assert.True(t, fault.HasCode(err, fault.CodeDetection))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateIdle, sd.State())
}

func TestEnableAfterTimeoutDoesNotOverlapDetection(t *testing.T) {
	release := make(chan struct{})
	var running, peak atomic.Int32
	stuck := detect.DetectorFunc(func(context.Context) (timing.Descriptor, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return timing.NoSignal(), nil
	})
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: stuck, DetectTimeout: 30 * time.Millisecond})

	assert.True(t, fault.HasCode(sd.Enable(context.Background()), fault.CodeDetection))
	assert.True(t, fault.HasCode(sd.Enable(context.Background()), fault.CodeDetection))
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, StateIdle, sd.State())

	close(release)
	require.Eventually(t, func() bool { return sd.Enable(context.Background()) == nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), peak.Load())
}

func TestImplausibleReadingPublishedWithoutLiveness(t *testing.T) {
	bad := mode(t, "640x480@60")
	bad.PixelClockHz = 100_000_000
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: detect.Fixed(bad)})

	require.NoError(t, sd.Enable(context.Background()))
	assert.False(t, sd.Snapshot().SignalPresent)
}

func TestEventsOnLifecycle(t *testing.T) {
	evBus := events.New()
	state := make(chan events.StreamStateChangedEvent, 4)
	changed := make(chan events.TimingChangedEvent, 4)
	defer evBus.Subscribe(func(e events.StreamStateChangedEvent) { state <- e })()
	defer evBus.Subscribe(func(e events.TimingChangedEvent) { changed <- e })()

	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: detect.Placeholder(timing.VariantDecoder), Bus: evBus})
	require.NoError(t, sd.Enable(context.Background()))

	select {
	case e := <-state:
		assert.True(t, e.Streaming)
		assert.True(t, e.Signal)
	case <-time.After(time.Second):
		t.Fatal("no StreamStateChangedEvent")
	}
	select {
	case e := <-changed:
		assert.Equal(t, "no signal", e.Previous)
		assert.Equal(t, uint32(640), e.Timing.ActiveWidth)
	case <-time.After(time.Second):
		t.Fatal("no TimingChangedEvent")
	}
}

func TestConcurrentSnapshotsSeeWholeDescriptors(t *testing.T) {
	a, b := mode(t, "640x480@60"), mode(t, "1920x1080@60")
	det := &switchable{}
	det.set(a, nil)
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: det})
	ctx := context.Background()
	require.NoError(t, sd.Enable(ctx))

	stop := make(chan struct{})
	var torn atomic.Int32
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				d := sd.Snapshot()
				if !d.SameSignal(a) && !d.SameSignal(b) {
					torn.Add(1)
				}
			}
		}()
	}

	for i := range 200 {
		if i%2 == 0 {
			det.set(b, nil)
		} else {
			det.set(a, nil)
		}
		_, err := sd.Redetect(ctx)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	assert.Zero(t, torn.Load())
}

func TestConcurrentEnableDisable(t *testing.T) {
	sd := mustNew(t, Config{
		Name:             "dec",
		Variant:          timing.VariantDecoder,
		Detector:         detect.Placeholder(timing.VariantDecoder),
		RedetectInterval: time.Millisecond,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, sd.Enable(ctx))
			} else {
				assert.NoError(t, sd.Disable(ctx))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, sd.Disable(ctx))
	assert.False(t, sd.Snapshot().SignalPresent)
}

func TestRedetectRequiresStreaming(t *testing.T) {
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder})
	_, err := sd.Redetect(context.Background())
	assert.True(t, fault.HasCode(err, fault.CodeInvalidArgument))
}

func TestPeriodicRedetectionDebounces(t *testing.T) {
	det := &switchable{}
	det.set(mode(t, "640x480@60"), nil)
	sd := mustNew(t, Config{
		Name:             "dec",
		Variant:          timing.VariantDecoder,
		Detector:         det,
		RedetectInterval: 5 * time.Millisecond,
		Debounce:         3,
	})
	ctx := context.Background()
	require.NoError(t, sd.Enable(ctx))
	defer sd.Disable(ctx)

	det.set(mode(t, "1280x720@60"), nil)
	require.Eventually(t, func() bool {
		return sd.Snapshot().ActiveWidth == 1280
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, det.calls.Load(), int32(4))
}

func TestRedetectionFailureKeepsStreaming(t *testing.T) {
	det := &switchable{}
	det.set(mode(t, "640x480@60"), nil)
	sd := mustNew(t, Config{Name: "dec", Variant: timing.VariantDecoder, Detector: det, RedetectInterval: 2 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, sd.Enable(ctx))
	published := sd.Snapshot()

	det.set(timing.Descriptor{}, errors.New("bus gone"))
	require.Eventually(t, func() bool { return det.calls.Load() > 3 }, time.Second, time.Millisecond)

	assert.Equal(t, StateStreaming, sd.State())
	assert.Equal(t, published, sd.Snapshot())
	require.NoError(t, sd.Disable(ctx))
}

// edgeDetector reports one source change and then switches its reading.
type edgeDetector struct {
	switchable
	fired atomic.Bool
	next  timing.Descriptor
}

func (e *edgeDetector) WaitForSourceChange(ctx context.Context, timeout time.Duration) (bool, error) {
	if e.fired.CompareAndSwap(false, true) {
		e.set(e.next, nil)
		return true, nil
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(timeout):
		return false, nil
	}
}

func TestSourceChangeTriggersRedetection(t *testing.T) {
	det := &edgeDetector{next: mode(t, "1920x1080@60")}
	det.set(mode(t, "640x480@60"), nil)
	sd := mustNew(t, Config{Name: "hdmi", Variant: timing.VariantDecoder, Detector: det, Debounce: 2})
	ctx := context.Background()
	require.NoError(t, sd.Enable(ctx))

	require.Eventually(t, func() bool {
		return sd.Snapshot().ActiveWidth == 1920
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, sd.Disable(ctx))
}

type unsupportedWaiter struct{ switchable }

func (u *unsupportedWaiter) WaitForSourceChange(context.Context, time.Duration) (bool, error) {
	return false, detect.ErrSourceChangeUnsupported
}

func TestSourceChangeUnsupportedFallsBackToPolling(t *testing.T) {
	det := &unsupportedWaiter{}
	det.set(mode(t, "640x480@60"), nil)
	sd := mustNew(t, Config{Name: "hdmi", Variant: timing.VariantDecoder, Detector: det, RedetectInterval: 2 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, sd.Enable(ctx))

	det.set(mode(t, "800x600@60"), nil)
	require.Eventually(t, func() bool {
		return sd.Snapshot().ActiveWidth == 800
	}, 2*time.Second, 2*time.Millisecond)
	require.NoError(t, sd.Disable(ctx))
}

func TestDebouncer(t *testing.T) {
	a, b, c := mode(t, "640x480@60"), mode(t, "800x600@60"), mode(t, "1024x768@60")
	deb := &debouncer{need: 2}

	assert.False(t, deb.observe(a, a))
	assert.False(t, deb.pending())
	assert.False(t, deb.observe(a, b))
	assert.True(t, deb.pending())
	assert.False(t, deb.observe(a, c), "a different candidate restarts the count")
	assert.True(t, deb.observe(a, c))
	assert.False(t, deb.pending())

	single := &debouncer{need: 1}
	assert.True(t, single.observe(a, b))
}

func TestHostRegistry(t *testing.T) {
	evBus := events.New()
	registered := make(chan events.SubdeviceRegisteredEvent, 4)
	defer evBus.Subscribe(func(e events.SubdeviceRegisteredEvent) { registered <- e })()

	host := NewHost(evBus, nil)
	dec := mustNew(t, Config{Name: "vga", Variant: timing.VariantDecoder, Detector: detect.Placeholder(timing.VariantDecoder)})
	br := mustNew(t, Config{Name: "csi", Variant: timing.VariantBridge, Detector: detect.Placeholder(timing.VariantBridge)})

	require.NoError(t, host.Register(dec))
	require.NoError(t, host.Register(br))
	assert.Zero(t, dec.Snapshot().Sequence, "register must not detect")

	dup := mustNew(t, Config{Name: "vga", Variant: timing.VariantDecoder})
	assert.True(t, fault.HasCode(host.Register(dup), fault.CodeAlreadyExists))

	list := host.List()
	require.Len(t, list, 2)
	assert.Equal(t, "csi", list[0].Name())
	assert.Equal(t, "vga", list[1].Name())
	assert.Len(t, host.Instances(), 2)

	_, err := host.Get("missing")
	assert.True(t, fault.HasCode(err, fault.CodeNotFound))

	select {
	case e := <-registered:
		assert.Equal(t, "registered", e.Action)
	case <-time.After(time.Second):
		t.Fatal("no SubdeviceRegisteredEvent")
	}
}

func TestHostLinks(t *testing.T) {
	host := NewHost(nil, nil)
	dec := mustNew(t, Config{Name: "vga", Variant: timing.VariantDecoder})
	br := mustNew(t, Config{Name: "csi", Variant: timing.VariantBridge})
	require.NoError(t, host.Register(dec))
	require.NoError(t, host.Register(br))

	tests := []struct {
		name    string
		src     string
		srcPad  uint32
		sink    string
		sinkPad uint32
		code    fault.Code
	}{
		{"unknown source", "nope", 0, "csi", 0, fault.CodeNotFound},
		{"unknown sink", "vga", 0, "nope", 0, fault.CodeNotFound},
		{"self link", "csi", 1, "csi", 0, fault.CodeInvalidLink},
		{"sink as source", "csi", 0, "vga", 0, fault.CodeInvalidLink},
		{"source as sink", "vga", 0, "csi", 1, fault.CodeInvalidLink},
		{"missing pad", "vga", 3, "csi", 0, fault.CodeInvalidLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := host.Link(tt.src, tt.srcPad, tt.sink, tt.sinkPad)
			assert.True(t, fault.HasCode(err, tt.code), "got %v", err)
		})
	}

	require.NoError(t, host.Link("vga", 0, "csi", 0))
	assert.True(t, fault.HasCode(host.Link("vga", 0, "csi", 0), fault.CodeInvalidLink), "sink pad already linked")
	assert.Equal(t, []Link{{Source: "vga", SourcePad: 0, Sink: "csi", SinkPad: 0}}, host.Links())
}

func TestHostUnregisterDisablesAndUnlinks(t *testing.T) {
	host := NewHost(nil, nil)
	dec := mustNew(t, Config{Name: "vga", Variant: timing.VariantDecoder, Detector: detect.Placeholder(timing.VariantDecoder)})
	br := mustNew(t, Config{Name: "csi", Variant: timing.VariantBridge})
	require.NoError(t, host.Register(dec))
	require.NoError(t, host.Register(br))
	require.NoError(t, host.Link("vga", 0, "csi", 0))

	ctx := context.Background()
	require.NoError(t, dec.Enable(ctx))
	require.NoError(t, host.Unregister(ctx, "vga"))

	assert.Equal(t, StateIdle, dec.State())
	assert.False(t, dec.Snapshot().SignalPresent)
	assert.Empty(t, host.Links())
	assert.True(t, fault.HasCode(host.Unregister(ctx, "vga"), fault.CodeNotFound))

	err := dec.Enable(ctx)
	assert.True(t, fault.HasCode(err, fault.CodeNotFound), "got %v", err)
	assert.Equal(t, StateIdle, dec.State())
}

func TestHostUnregisterRacingEnableEndsIdle(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		host := NewHost(nil, nil)
		dec := mustNew(t, Config{Name: "vga", Variant: timing.VariantDecoder, Detector: detect.Placeholder(timing.VariantDecoder)})
		require.NoError(t, host.Register(dec))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = dec.Enable(ctx)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, host.Unregister(ctx, "vga"))
		}()
		wg.Wait()

		assert.Equal(t, StateIdle, dec.State())
	}
}

func TestHostUnlink(t *testing.T) {
	host := NewHost(nil, nil)
	require.NoError(t, host.Register(mustNew(t, Config{Name: "vga", Variant: timing.VariantDecoder})))
	require.NoError(t, host.Register(mustNew(t, Config{Name: "csi", Variant: timing.VariantBridge})))
	require.NoError(t, host.Link("vga", 0, "csi", 0))

	l := Link{Source: "vga", SourcePad: 0, Sink: "csi", SinkPad: 0}
	require.NoError(t, host.Unlink(l))
	assert.Empty(t, host.Links())
	assert.True(t, fault.HasCode(host.Unlink(l), fault.CodeNotFound))
	require.NoError(t, host.Link("vga", 0, "csi", 0), "sink pad free again")
}

func TestHostDebugToggle(t *testing.T) {
	evBus := events.New()
	toggled := make(chan events.DebugToggledEvent, 1)
	defer evBus.Subscribe(func(e events.DebugToggledEvent) { toggled <- e })()

	debug := controls.NewDebugFlag(false)
	host := NewHost(evBus, debug)
	sd := mustNew(t, Config{Name: "vga", Variant: timing.VariantDecoder, Debug: debug})
	require.NoError(t, host.Register(sd))

	require.NoError(t, sd.Controls().Set("debug_enable", 1))
	assert.True(t, debug.Enabled())

	select {
	case e := <-toggled:
		assert.True(t, e.Enabled)
	case <-time.After(time.Second):
		t.Fatal("no DebugToggledEvent")
	}

	err := sd.Controls().Set("debug_enable", 2)
	assert.True(t, fault.HasCode(err, fault.CodeInvalidArgument))
	assert.True(t, debug.Enabled())

	require.NoError(t, sd.Controls().Set("debug_enable", 0))
}
