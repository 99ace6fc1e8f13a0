// Package devices builds subdevices from the devices file and wires each one
// to the transport that observes its chip.
package devices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/smazurov/signalnode/internal/config"
	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/detect"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/logging"
	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/timing"
	"github.com/smazurov/signalnode/internal/transport/gpiotimer"
	"github.com/smazurov/signalnode/internal/transport/i2cbus"
	"github.com/smazurov/signalnode/internal/transport/simbus"
)

// vsyncDetectTimeout is the detect timeout of a subdevice with a VSYNC pin
// when none is configured: one full reading at the slowest framerate plus
// the register reads.
const vsyncDetectTimeout = gpiotimer.MaxReadingTime + 500*time.Millisecond

// Options carries the shared services every subdevice is built with.
type Options struct {
	Bus      *events.Bus
	Debug    *controls.DebugFlag
	Observer subdev.Observer
	Logger   *slog.Logger
}

// Sim is the simulated hardware behind a subdevice with the sim transport.
type Sim struct {
	Variant timing.Variant
	Bus     *simbus.Bus
	VSync   *simbus.PulseTimer
}

// SetMode makes the simulated chip lock onto the named mode. An empty name
// unplugs the input.
func (s *Sim) SetMode(name string) error {
	if name == "" {
		if s.Variant == timing.VariantBridge {
			in := simbus.VGABridgeInput()
			in.Width, in.Lines, in.Refresh = 0, 0, 0
			simbus.LoadTC358748(s.Bus, s.VSync, in)
		} else {
			simbus.UnplugAD9984A(s.Bus, s.VSync)
		}
		return nil
	}

	mode, ok := timing.ModeByName(name)
	if !ok {
		return fmt.Errorf("unknown mode %q", name)
	}
	if s.Variant == timing.VariantBridge {
		in := simbus.VGABridgeInput()
		in.Width, in.Lines, in.Refresh = uint16(mode.Width), uint16(mode.Height), mode.Refresh
		simbus.LoadTC358748(s.Bus, s.VSync, in)
	} else {
		simbus.LoadAD9984A(s.Bus, s.VSync, mode)
	}
	return nil
}

// part is one built subdevice with the transports it opened.
type part struct {
	cfg     config.Subdevice
	sd      *subdev.Subdevice
	sim     *Sim
	closers []io.Closer
}

func (p *part) close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i].Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Result is what Build produced.
type Result struct {
	Subdevices []*subdev.Subdevice
	Sims       map[string]*Sim
	parts      []*part
}

func (r *Result) add(p *part) {
	r.parts = append(r.parts, p)
	r.Subdevices = append(r.Subdevices, p.sd)
	if p.sim != nil {
		r.Sims[p.cfg.Name] = p.sim
	}
}

// Close releases the transports opened by Build.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.parts) - 1; i >= 0; i-- {
		errs = append(errs, r.parts[i].close())
	}
	r.parts = nil
	return errors.Join(errs...)
}

// Build registers every configured subdevice on host, links their pads and
// enables those marked enable. On error everything registered so far is
// left registered and the transports are closed.
func Build(ctx context.Context, cfg config.Devices, host *subdev.Host, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.logger()

	res := &Result{Sims: make(map[string]*Sim)}
	for _, sc := range cfg.Subdevices {
		p, err := newPart(sc, opts, logger)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("subdevice %s: %w", sc.Name, err)
		}
		if err := host.Register(p.sd); err != nil {
			p.close()
			res.Close()
			return nil, err
		}
		res.add(p)
	}

	for _, l := range cfg.Links {
		if err := host.Link(l.Source, l.SourcePad, l.Sink, l.SinkPad); err != nil {
			res.Close()
			return nil, err
		}
	}

	for _, p := range res.parts {
		enableAtStartup(ctx, p, logger)
	}
	return res, nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.GetLogger("devices")
}

// newPart builds the detector and subdevice for sc without registering it.
func newPart(sc config.Subdevice, opts Options, logger *slog.Logger) (*part, error) {
	variant, _ := timing.ParseVariant(sc.Variant)
	p := &part{cfg: sc}

	detector, err := p.detector(variant, logger)
	if err != nil {
		p.close()
		return nil, err
	}

	detectTimeout := sc.DetectTimeout.Duration
	if sc.VSyncPin != "" && transportKind(sc.Transport) == config.TransportI2C {
		if detectTimeout == 0 {
			detectTimeout = vsyncDetectTimeout
		} else if detectTimeout < gpiotimer.MaxReadingTime {
			logger.Warn("Detect timeout is shorter than a VSYNC reading at the slowest framerate",
				"subdevice", sc.Name, "detect_timeout", detectTimeout, "needed", gpiotimer.MaxReadingTime)
		}
	}

	p.sd, err = subdev.New(subdev.Config{
		Name:             sc.Name,
		Variant:          variant,
		Detector:         detector,
		DetectTimeout:    detectTimeout,
		RedetectInterval: sc.RedetectInterval.Duration,
		Debounce:         sc.Debounce,
		Debug:            opts.Debug,
		Bus:              opts.Bus,
		Observer:         opts.Observer,
	})
	if err != nil {
		p.close()
		return nil, err
	}
	logger.Info("Subdevice built", "subdevice", sc.Name, "variant", variant, "transport", transportKind(sc.Transport))
	return p, nil
}

func enableAtStartup(ctx context.Context, p *part, logger *slog.Logger) {
	if !p.cfg.Enable {
		return
	}
	if err := p.sd.Enable(ctx); err != nil {
		// A failed first detection leaves the subdevice idle; it can be
		// enabled later through the API.
		logger.Warn("Failed to enable subdevice", "subdevice", p.cfg.Name, "error", err)
	}
}

func (p *part) detector(variant timing.Variant, logger *slog.Logger) (detect.Detector, error) {
	sc := p.cfg
	detLogger := logging.GetLogger("detect").With("subdevice", sc.Name)

	switch transportKind(sc.Transport) {
	case config.TransportNone:
		return nil, nil

	case config.TransportPlaceholder:
		return detect.Placeholder(variant), nil

	case config.TransportSim:
		sim := &Sim{Variant: variant, Bus: simbus.New(), VSync: simbus.NewPulseTimer(0)}
		if err := sim.SetMode(sc.Transport.Mode); err != nil {
			return nil, err
		}
		p.sim = sim
		return chipDetector(sc, variant, sim.Bus, sim.VSync, detLogger), nil

	case config.TransportI2C:
		width := i2cbus.Reg8
		if variant == timing.VariantBridge {
			width = i2cbus.Reg16
		}
		bus, err := i2cbus.Open(sc.Transport.Bus, sc.Transport.Address, width)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, bus)

		var vsync detect.PulseTimer
		if sc.VSyncPin != "" {
			timer, err := gpiotimer.Open(sc.VSyncPin, gpiotimer.DefaultWindow)
			if err != nil {
				return nil, err
			}
			p.closers = append(p.closers, timer)
			vsync = timer
		} else if variant == timing.VariantDecoder {
			logger.Warn("Decoder has no VSYNC pin, framerate cannot be measured", "subdevice", sc.Name)
		}
		return chipDetector(sc, variant, bus, vsync, detLogger), nil

	case config.TransportV4L2:
		node, err := ResolveNode(sc.Transport.Node)
		if err != nil {
			return nil, err
		}
		return &detect.DVTimings{Node: node, Logger: detLogger}, nil
	}
	return nil, fmt.Errorf("unknown transport kind %q", sc.Transport.Kind)
}

func chipDetector(sc config.Subdevice, variant timing.Variant, bus detect.Transport, vsync detect.PulseTimer, logger *slog.Logger) detect.Detector {
	if variant == timing.VariantBridge {
		return &detect.TC358748{
			Bus:              bus,
			VSync:            vsync,
			RefClockHz:       sc.RefClockHz,
			NominalFramerate: sc.NominalFramerate,
			Logger:           logger,
		}
	}
	return &detect.AD9984A{Bus: bus, VSync: vsync, Logger: logger}
}

func transportKind(t config.Transport) string {
	if t.Kind == "" {
		return config.TransportNone
	}
	return t.Kind
}
