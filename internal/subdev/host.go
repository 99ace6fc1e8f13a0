package subdev

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/diag"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/logging"
)

// Link connects a source pad of one subdevice to a sink pad of another.
type Link struct {
	Source    string `json:"source" doc:"Source subdevice name"`
	SourcePad uint32 `json:"source_pad" doc:"Source pad index"`
	Sink      string `json:"sink" doc:"Sink subdevice name"`
	SinkPad   uint32 `json:"sink_pad" doc:"Sink pad index"`
}

// Host owns registered subdevices and the links between their pads.
type Host struct {
	mu      sync.RWMutex
	devices map[string]*Subdevice
	links   []Link

	bus    *events.Bus
	logger *slog.Logger
}

// NewHost creates an empty host. When debug is non-nil, toggling it raises
// the subdev and detect loggers to debug and announces the change on bus.
func NewHost(bus *events.Bus, debug *controls.DebugFlag) *Host {
	h := &Host{
		devices: make(map[string]*Subdevice),
		bus:     bus,
		logger:  logging.GetLogger("subdev"),
	}
	if debug != nil {
		debug.OnChange(h.debugToggled)
	}
	return h
}

func (h *Host) debugToggled(enabled bool) {
	for _, module := range []string{"subdev", "detect"} {
		if enabled {
			if err := logging.SetModuleLevel(module, "debug"); err != nil {
				h.logger.Warn("Failed to raise log level", "module", module, "error", err)
			}
		} else {
			logging.ResetModuleLevel(module)
		}
	}
	h.logger.Info("Debug output toggled", "enabled", enabled)
	h.bus.Publish(events.DebugToggledEvent{Enabled: enabled, Timestamp: timestamp()})
}

// Register adds sd. It never runs detection.
func (h *Host) Register(sd *Subdevice) error {
	h.mu.Lock()
	if _, exists := h.devices[sd.Name()]; exists {
		h.mu.Unlock()
		return fault.New(fault.CodeAlreadyExists, "subdevice already registered",
			map[string]any{"subdevice": sd.Name()})
	}
	h.devices[sd.Name()] = sd
	h.mu.Unlock()

	h.logger.Info("Subdevice registered", "subdevice", sd.Name(), "variant", sd.Variant(), "instance_id", sd.InstanceID())
	h.announce(sd, "registered")
	return nil
}

// Unregister removes a subdevice and its links, then disables it for good.
// An Enable racing with removal either finishes first and is undone, or
// fails with NOT_FOUND.
func (h *Host) Unregister(ctx context.Context, name string) error {
	h.mu.Lock()
	sd, ok := h.devices[name]
	if !ok {
		h.mu.Unlock()
		return fault.New(fault.CodeNotFound, "subdevice not registered", map[string]any{"subdevice": name})
	}
	delete(h.devices, name)
	kept := h.links[:0]
	for _, l := range h.links {
		if l.Source != name && l.Sink != name {
			kept = append(kept, l)
		}
	}
	h.links = kept
	h.mu.Unlock()

	sd.retire(ctx)
	h.logger.Info("Subdevice unregistered", "subdevice", name)
	h.announce(sd, "unregistered")
	return nil
}

// Unlink removes a pad link. Removing a link that does not exist fails
// with NOT_FOUND.
func (h *Host) Unlink(l Link) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.links {
		if existing == l {
			h.links = append(h.links[:i], h.links[i+1:]...)
			h.logger.Info("Pads unlinked", "source", l.Source, "source_pad", l.SourcePad, "sink", l.Sink, "sink_pad", l.SinkPad)
			return nil
		}
	}
	return fault.New(fault.CodeNotFound, "link does not exist",
		map[string]any{"source": l.Source, "source_pad": l.SourcePad, "sink": l.Sink, "sink_pad": l.SinkPad})
}

// Link connects source:srcPad to sink:sinkPad. The source pad must be a
// source and the sink pad a sink, on two different subdevices, and a sink
// pad accepts one link.
func (h *Host) Link(source string, srcPad uint32, sink string, sinkPad uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := map[string]any{"source": source, "source_pad": srcPad, "sink": sink, "sink_pad": sinkPad}

	src, ok := h.devices[source]
	if !ok {
		return fault.New(fault.CodeNotFound, "source subdevice not registered", ctx)
	}
	dst, ok := h.devices[sink]
	if !ok {
		return fault.New(fault.CodeNotFound, "sink subdevice not registered", ctx)
	}
	if source == sink {
		return fault.New(fault.CodeInvalidLink, "cannot link a subdevice to itself", ctx)
	}
	if !hasPad(src, srcPad, DirectionSource) {
		return fault.New(fault.CodeInvalidLink, "source pad is not a source", ctx)
	}
	if !hasPad(dst, sinkPad, DirectionSink) {
		return fault.New(fault.CodeInvalidLink, "sink pad is not a sink", ctx)
	}
	for _, l := range h.links {
		if l.Sink == sink && l.SinkPad == sinkPad {
			return fault.New(fault.CodeInvalidLink, "sink pad already linked", ctx)
		}
	}

	h.links = append(h.links, Link{Source: source, SourcePad: srcPad, Sink: sink, SinkPad: sinkPad})
	h.logger.Info("Pads linked", "source", source, "source_pad", srcPad, "sink", sink, "sink_pad", sinkPad)
	return nil
}

// Get returns the named subdevice.
func (h *Host) Get(name string) (*Subdevice, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sd, ok := h.devices[name]
	if !ok {
		return nil, fault.New(fault.CodeNotFound, "subdevice not registered", map[string]any{"subdevice": name})
	}
	return sd, nil
}

// List returns all subdevices sorted by name.
func (h *Host) List() []*Subdevice {
	h.mu.RLock()
	out := make([]*Subdevice, 0, len(h.devices))
	for _, sd := range h.devices {
		out = append(out, sd)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Links returns a copy of the pad links in creation order.
func (h *Host) Links() []Link {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Link(nil), h.links...)
}

// Instances implements diag.Lister.
func (h *Host) Instances() []diag.Instance {
	list := h.List()
	out := make([]diag.Instance, len(list))
	for i, sd := range list {
		out[i] = sd
	}
	return out
}

// Shutdown disables every streaming subdevice.
func (h *Host) Shutdown(ctx context.Context) {
	for _, sd := range h.List() {
		if err := sd.Disable(ctx); err != nil {
			h.logger.Warn("Failed to disable subdevice", "subdevice", sd.Name(), "error", err)
		}
	}
}

func (h *Host) announce(sd *Subdevice, action string) {
	h.bus.Publish(events.SubdeviceRegisteredEvent{
		Subdevice:  sd.Name(),
		InstanceID: sd.InstanceID(),
		Variant:    string(sd.Variant()),
		Action:     action,
		Timestamp:  timestamp(),
	})
}

func hasPad(sd *Subdevice, index uint32, dir Direction) bool {
	for _, p := range sd.pads {
		if p.Index == index {
			return p.Direction == dir
		}
	}
	return false
}
