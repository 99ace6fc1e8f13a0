// Package subdev owns the stream lifecycle of each video-interface subdevice
// and the host that registers instances and their pad links.
package subdev

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/detect"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/format"
	"github.com/smazurov/signalnode/internal/logging"
	"github.com/smazurov/signalnode/internal/telemetry"
	"github.com/smazurov/signalnode/internal/timing"
)

// State is the stream lifecycle state.
type State string

// Lifecycle states.
const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
)

// Observer is notified of every detection and state transition. The
// metrics collector implements it.
type Observer interface {
	DetectionCompleted(subdevice string, elapsed time.Duration, err error)
	StateChanged(subdevice string, streaming bool)
}

// Config describes one subdevice instance.
type Config struct {
	Name    string
	Variant timing.Variant

	// Detector characterizes the signal. Nil means no detector is wired and
	// the subdevice always reports no signal.
	Detector      detect.Detector
	DetectTimeout time.Duration

	// RedetectInterval enables periodic re-detection while streaming.
	// Detectors implementing detect.SourceChangeWaiter are also re-run on
	// every hardware source change.
	RedetectInterval time.Duration
	// Debounce is the number of consecutive identical readings required
	// before a changed signal is published. Values below 1 mean 1.
	Debounce int

	Debug    *controls.DebugFlag
	Bus      *events.Bus
	Observer Observer
	Logger   *slog.Logger
}

// Subdevice is one decoder or bridge instance.
type Subdevice struct {
	name       string
	instanceID string
	variant    timing.Variant
	pads       []Pad

	detector detect.Detector
	redetect time.Duration
	debounce int
	edge     bool

	registry *telemetry.Registry
	controls *controls.Surface
	formats  *format.Negotiator
	bus      *events.Bus
	observer Observer
	logger   *slog.Logger

	// mu serializes lifecycle transitions. detectMu serializes detection
	// plus publish between Enable and the re-detection monitor. Readers
	// take neither.
	mu       sync.Mutex
	detectMu sync.Mutex
	state    atomic.Value // State
	stop     context.CancelFunc
	done     chan struct{}
	removed  bool // set under mu once the host drops the instance
}

// New validates cfg and builds an idle subdevice holding the no-signal descriptor.
func New(cfg Config) (*Subdevice, error) {
	if cfg.Name == "" {
		return nil, fault.New(fault.CodeInvalidArgument, "subdevice name is required", nil)
	}
	if _, err := timing.ParseVariant(string(cfg.Variant)); err != nil {
		return nil, fault.Wrap(fault.CodeInvalidArgument, "invalid subdevice variant", err,
			map[string]any{"subdevice": cfg.Name})
	}

	det := cfg.Detector
	if det == nil {
		det = detect.NoSignalDetector{}
	}
	det = detect.WithTimeout(det, cfg.DetectTimeout)

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetLogger("subdev")
	}
	logger = logger.With("subdevice", cfg.Name)

	debug := cfg.Debug
	if debug == nil {
		debug = controls.NewDebugFlag(false)
	}

	s := &Subdevice{
		name:       cfg.Name,
		instanceID: uuid.NewString(),
		variant:    cfg.Variant,
		pads:       padsFor(cfg.Variant),
		detector:   det,
		redetect:   cfg.RedetectInterval,
		debounce:   max(cfg.Debounce, 1),
		edge:       detect.SupportsSourceChange(det),
		registry:   telemetry.NewRegistry(),
		bus:        cfg.Bus,
		observer:   cfg.Observer,
		logger:     logger,
	}
	s.controls = controls.NewSurface(cfg.Variant, s.registry, debug)
	s.formats = format.New(len(s.pads), s.registry)
	s.state.Store(StateIdle)
	return s, nil
}

// Name returns the instance name.
func (s *Subdevice) Name() string { return s.name }

// InstanceID returns the identity assigned at construction.
func (s *Subdevice) InstanceID() string { return s.instanceID }

// Variant returns the chip variant.
func (s *Subdevice) Variant() timing.Variant { return s.variant }

// Pads returns a copy of the pad layout.
func (s *Subdevice) Pads() []Pad {
	return append([]Pad(nil), s.pads...)
}

// State returns the current lifecycle state.
func (s *Subdevice) State() State {
	return s.state.Load().(State)
}

// Streaming reports whether the subdevice is in the Streaming state.
func (s *Subdevice) Streaming() bool {
	return s.State() == StateStreaming
}

// Snapshot returns the currently published descriptor.
func (s *Subdevice) Snapshot() timing.Descriptor {
	return s.registry.Snapshot()
}

// Controls returns the control surface.
func (s *Subdevice) Controls() *controls.Surface { return s.controls }

// Formats returns the format negotiator.
func (s *Subdevice) Formats() *format.Negotiator { return s.formats }

// Enable runs detection once, publishes the result and enters Streaming.
// It succeeds when no signal is present. A detection failure leaves the
// subdevice idle and the registry untouched.
func (s *Subdevice) Enable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return fault.New(fault.CodeNotFound, "subdevice was removed", map[string]any{"subdevice": s.name})
	}
	if s.Streaming() {
		return nil
	}

	s.detectMu.Lock()
	d, err := s.detect(ctx, false)
	if err != nil {
		s.detectMu.Unlock()
		return err
	}
	published := s.publish(d)
	s.detectMu.Unlock()

	s.state.Store(StateStreaming)
	s.startMonitor()
	s.logger.InfoContext(ctx, "Stream enabled", "signal", published.String(), "sequence", published.Sequence)
	s.transitioned(true, published.SignalPresent)
	return nil
}

// Disable leaves Streaming, stops re-detection and clears the liveness
// flags while keeping the last geometry for diagnostics.
func (s *Subdevice) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableLocked(ctx)
	return nil
}

// retire disables the subdevice for good. Later Enables fail with NOT_FOUND.
func (s *Subdevice) retire(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = true
	s.disableLocked(ctx)
}

func (s *Subdevice) disableLocked(ctx context.Context) {
	if !s.Streaming() {
		return
	}

	s.stopMonitor()

	s.detectMu.Lock()
	cleared := s.registry.ClearLiveness()
	s.state.Store(StateIdle)
	s.detectMu.Unlock()

	s.logger.InfoContext(ctx, "Stream disabled", "retained", fmt.Sprintf("%dx%d", cleared.ActiveWidth, cleared.ActiveHeight))
	s.transitioned(false, false)
}

// Redetect runs one detection while streaming and publishes a changed
// result immediately, bypassing debounce. An idle subdevice fails with
// INVALID_ARGUMENT.
func (s *Subdevice) Redetect(ctx context.Context) (timing.Descriptor, error) {
	s.detectMu.Lock()
	defer s.detectMu.Unlock()

	if !s.Streaming() {
		return timing.Descriptor{}, fault.New(fault.CodeInvalidArgument, "subdevice is not streaming",
			map[string]any{"subdevice": s.name})
	}

	d, err := s.detect(ctx, true)
	if err != nil {
		return timing.Descriptor{}, err
	}
	if d.SameSignal(s.registry.Snapshot()) {
		return s.registry.Snapshot(), nil
	}
	return s.publish(d), nil
}

// detect runs the detector and sanitizes its output. Callers hold detectMu.
func (s *Subdevice) detect(ctx context.Context, background bool) (timing.Descriptor, error) {
	start := time.Now()
	d, err := s.detector.Detect(ctx)
	if s.observer != nil {
		s.observer.DetectionCompleted(s.name, time.Since(start), err)
	}
	if err != nil && background && ctx.Err() != nil {
		return timing.Descriptor{}, err
	}
	if err != nil {
		if !fault.HasCode(err, fault.CodeDetection) {
			err = fault.Wrap(fault.CodeDetection, "detection failed", err, map[string]any{"subdevice": s.name})
		}
		s.logger.Warn("Detection failed", "error", err, "redetect", background)
		s.bus.Publish(events.DetectionFailedEvent{
			Subdevice: s.name,
			Code:      string(fault.CodeOf(err)),
			Error:     err.Error(),
			Redetect:  background,
			Timestamp: timestamp(),
		})
		return timing.Descriptor{}, err
	}

	if verr := d.Validate(); verr != nil {
		s.logger.Warn("Discarding implausible reading", "error", verr)
		d = d.WithoutLiveness()
	}
	if d.CapturedAt.IsZero() {
		d.CapturedAt = time.Now()
	}
	s.logger.Debug("Detection completed", "signal", d.String(), "elapsed", time.Since(start))
	return d, nil
}

// publish stores d and announces a change of signal. Callers hold detectMu.
func (s *Subdevice) publish(d timing.Descriptor) timing.Descriptor {
	previous := s.registry.Snapshot()
	stored := s.registry.Publish(d)
	if !stored.SameSignal(previous) {
		s.logger.Info("Timing changed", "from", previous.String(), "to", stored.String())
		s.bus.Publish(events.TimingChangedEvent{
			Subdevice: s.name,
			Timing:    stored,
			Previous:  previous.String(),
			Timestamp: timestamp(),
		})
	}
	return stored
}

func (s *Subdevice) transitioned(streaming, signal bool) {
	if s.observer != nil {
		s.observer.StateChanged(s.name, streaming)
	}
	s.bus.Publish(events.StreamStateChangedEvent{
		Subdevice: s.name,
		Streaming: streaming,
		Signal:    signal,
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
