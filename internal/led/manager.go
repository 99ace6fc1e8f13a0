package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/subdev"
)

// Lister enumerates the subdevices whose state drives the LED.
type Lister interface {
	List() []*subdev.Subdevice
}

// Indicator states.
const (
	StateOff   = "off"   // nothing streaming
	StateSolid = "solid" // every streaming subdevice has a signal
	StateBlink = "blink" // at least one streaming subdevice lacks a signal
)

// Manager recomputes the LED whenever a stream or its timing changes. Events
// only trigger the update; the state is read from the subdevices themselves.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	lister     Lister
	unsubs     []func()
	logger     *slog.Logger

	mu      sync.Mutex
	current string
}

// NewManager creates a manager that has not applied any state yet.
func NewManager(controller Controller, eventBus *events.Bus, lister Lister, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		lister:     lister,
		logger:     logger,
	}
}

// Start applies the current state and subscribes to changes.
func (m *Manager) Start() {
	m.unsubs = []func(){
		m.eventBus.Subscribe(func(events.StreamStateChangedEvent) { m.Update() }),
		m.eventBus.Subscribe(func(events.TimingChangedEvent) { m.Update() }),
	}
	m.Update()
	m.logger.Info("LED manager started", "led", m.controller.Name())
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	if err := m.controller.Set(false, ""); err != nil {
		m.logger.Warn("Failed to turn LED off", "error", err)
	}
	m.logger.Info("LED manager stopped")
}

// State returns the last applied indicator state.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Device names the LED being driven, empty for the no-op controller.
func (m *Manager) Device() string {
	return m.controller.Name()
}

// Update recomputes and applies the indicator state when it changed.
func (m *Manager) Update() {
	state := aggregate(m.lister.List())

	m.mu.Lock()
	defer m.mu.Unlock()
	if state == m.current {
		return
	}

	var err error
	switch state {
	case StateOff:
		err = m.controller.Set(false, "")
	case StateSolid:
		err = m.controller.Set(true, PatternSolid)
	case StateBlink:
		err = m.controller.Set(true, PatternBlink)
	}
	if err != nil {
		m.logger.Warn("Failed to set LED", "state", state, "error", err)
		return
	}
	m.logger.Debug("LED state changed", "from", m.current, "to", state)
	m.current = state
}

func aggregate(list []*subdev.Subdevice) string {
	streaming, locked := 0, 0
	for _, sd := range list {
		if !sd.Streaming() {
			continue
		}
		streaming++
		if sd.Snapshot().SignalPresent {
			locked++
		}
	}
	switch {
	case streaming == 0:
		return StateOff
	case locked == streaming:
		return StateSolid
	default:
		return StateBlink
	}
}
