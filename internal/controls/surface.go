package controls

import (
	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/timing"
)

// Source supplies the latest published descriptor.
type Source interface {
	Snapshot() timing.Descriptor
}

// Value is a control with its current value.
type Value struct {
	Control
	Value int64 `json:"value" doc:"Current value"`
	// Live is false when a derived value comes from a descriptor without a
	// signal and so only reflects the last known geometry.
	Live bool `json:"live" doc:"Whether the value reflects a present signal"`
}

// Surface is the control set of one subdevice.
type Surface struct {
	controls []Control
	source   Source
	debug    *DebugFlag
}

// NewSurface builds the controls of a variant. Derived values are read from
// source; debug_enable is backed by debug.
func NewSurface(variant timing.Variant, source Source, debug *DebugFlag) *Surface {
	if debug == nil {
		debug = NewDebugFlag(false)
	}
	return &Surface{
		controls: Catalog(variant),
		source:   source,
		debug:    debug,
	}
}

// List returns every control with a value computed from one snapshot.
func (s *Surface) List() []Value {
	d := s.source.Snapshot()
	out := make([]Value, len(s.controls))
	for i, c := range s.controls {
		out[i] = s.value(c, d)
	}
	return out
}

// Get returns a control's current value. It fails only for unknown names.
func (s *Surface) Get(name string) (Value, error) {
	c, err := s.lookup(name)
	if err != nil {
		return Value{}, err
	}
	return s.value(c, s.source.Snapshot()), nil
}

// GetByID is Get addressed by control ID.
func (s *Surface) GetByID(id uint32) (Value, error) {
	c, err := s.lookupID(id)
	if err != nil {
		return Value{}, err
	}
	return s.value(c, s.source.Snapshot()), nil
}

// Set writes a writable control. Unknown names fail with NOT_FOUND, derived
// controls with READ_ONLY, and out-of-range or off-step values with
// INVALID_ARGUMENT; the stored value is unchanged on any failure.
func (s *Surface) Set(name string, v int64) error {
	c, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.set(c, v)
}

// SetByID is Set addressed by control ID.
func (s *Surface) SetByID(id uint32, v int64) error {
	c, err := s.lookupID(id)
	if err != nil {
		return err
	}
	return s.set(c, v)
}

func (s *Surface) set(c Control, v int64) error {
	if !c.Writable {
		return fault.New(fault.CodeReadOnly, "control is derived from detection",
			map[string]any{"control": c.Name})
	}
	if !c.accepts(v) {
		return fault.New(fault.CodeInvalidArgument, "value out of range",
			map[string]any{"control": c.Name, "value": v, "min": c.Min, "max": c.Max, "step": c.Step})
	}
	if c.ID == IDDebugEnable {
		s.debug.Set(v == 1)
	}
	return nil
}

func (s *Surface) value(c Control, d timing.Descriptor) Value {
	if c.derive == nil {
		return Value{Control: c, Value: s.writableValue(c), Live: true}
	}
	return Value{Control: c, Value: c.clamp(c.derive(d)), Live: d.SignalPresent}
}

func (s *Surface) writableValue(c Control) int64 {
	switch c.ID {
	case IDDebugEnable:
		if s.debug.Enabled() {
			return 1
		}
		return 0
	default:
		return c.Default
	}
}

func (s *Surface) lookup(name string) (Control, error) {
	for _, c := range s.controls {
		if c.Name == name {
			return c, nil
		}
	}
	return Control{}, fault.New(fault.CodeNotFound, "unknown control", map[string]any{"control": name})
}

func (s *Surface) lookupID(id uint32) (Control, error) {
	for _, c := range s.controls {
		if c.ID == id {
			return c, nil
		}
	}
	return Control{}, fault.New(fault.CodeNotFound, "unknown control", map[string]any{"id": id})
}
