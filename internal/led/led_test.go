package led

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/signalnode/internal/detect"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/timing"
)

type setCall struct {
	enabled bool
	pattern string
}

type mockController struct {
	mu    sync.Mutex
	calls []setCall
}

func (m *mockController) Set(enabled bool, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, setCall{enabled, pattern})
	return nil
}

func (m *mockController) Name() string { return "mock" }

func (m *mockController) last() (setCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return setCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

type listFunc func() []*subdev.Subdevice

func (f listFunc) List() []*subdev.Subdevice { return f() }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newSubdevice(t *testing.T, name string, bus *events.Bus, det detect.Detector) *subdev.Subdevice {
	t.Helper()
	sd, err := subdev.New(subdev.Config{Name: name, Variant: timing.VariantDecoder, Detector: det, Bus: bus})
	if err != nil {
		t.Fatalf("subdev.New() error = %v", err)
	}
	return sd
}

func waitForState(t *testing.T, mgr *Manager, want string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if mgr.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("LED state = %q, want %q", mgr.State(), want)
}

func TestManagerFollowsSignal(t *testing.T) {
	bus := events.New()
	withSignal := newSubdevice(t, "vga0", bus, detect.Placeholder(timing.VariantDecoder))
	without := newSubdevice(t, "vga1", bus, nil)
	list := listFunc(func() []*subdev.Subdevice { return []*subdev.Subdevice{withSignal, without} })

	ctrl := &mockController{}
	mgr := NewManager(ctrl, bus, list, testLogger())
	mgr.Start()
	defer mgr.Stop()

	if got := mgr.State(); got != StateOff {
		t.Fatalf("initial state = %q, want %q", got, StateOff)
	}

	ctx := context.Background()
	if err := withSignal.Enable(ctx); err != nil {
		t.Fatal(err)
	}
	waitForState(t, mgr, StateSolid)
	if call, _ := ctrl.last(); call != (setCall{true, PatternSolid}) {
		t.Errorf("last Set = %+v, want solid", call)
	}

	if err := without.Enable(ctx); err != nil {
		t.Fatal(err)
	}
	waitForState(t, mgr, StateBlink)

	if err := without.Disable(ctx); err != nil {
		t.Fatal(err)
	}
	waitForState(t, mgr, StateSolid)

	if err := withSignal.Disable(ctx); err != nil {
		t.Fatal(err)
	}
	waitForState(t, mgr, StateOff)
	if call, _ := ctrl.last(); call.enabled {
		t.Errorf("last Set = %+v, want off", call)
	}
}

func TestManagerSkipsRedundantWrites(t *testing.T) {
	ctrl := &mockController{}
	mgr := NewManager(ctrl, events.New(), listFunc(func() []*subdev.Subdevice { return nil }), testLogger())

	mgr.Update()
	mgr.Update()
	mgr.Update()

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.calls) != 1 {
		t.Errorf("Set called %d times, want 1", len(ctrl.calls))
	}
}

func TestSysfsController(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "status")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctrl := New(root, "status", testLogger())
	if ctrl.Name() != "status" {
		t.Fatalf("New() returned %T, want sysfs controller", ctrl)
	}

	tests := []struct {
		enabled        bool
		pattern        string
		wantTrigger    string
		wantBrightness string
	}{
		{true, PatternSolid, "none", "1"},
		{true, PatternBlink, "heartbeat", "1"},
		{true, "timer", "timer", "1"},
		{false, "", "timer", "0"},
	}
	for _, tt := range tests {
		if err := ctrl.Set(tt.enabled, tt.pattern); err != nil {
			t.Fatalf("Set(%v, %q) error = %v", tt.enabled, tt.pattern, err)
		}
		trigger, _ := os.ReadFile(filepath.Join(dir, "trigger"))
		brightness, _ := os.ReadFile(filepath.Join(dir, "brightness"))
		if string(trigger) != tt.wantTrigger || string(brightness) != tt.wantBrightness {
			t.Errorf("Set(%v, %q): trigger=%q brightness=%q, want %q %q",
				tt.enabled, tt.pattern, trigger, brightness, tt.wantTrigger, tt.wantBrightness)
		}
	}
}

func TestNewFallsBackToNoop(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"", "missing"} {
		ctrl := New(root, name, testLogger())
		if ctrl.Name() != "" {
			t.Errorf("New(%q) = %T, want no-op", name, ctrl)
		}
		if err := ctrl.Set(true, PatternSolid); err != nil {
			t.Errorf("no-op Set() error = %v", err)
		}
	}
}
