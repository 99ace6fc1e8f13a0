package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/signalnode/internal/events"
)

// Bridge forwards event bus telemetry to NATS. It degrades to a no-op while
// disconnected.
type Bridge struct {
	url      string
	eventBus *events.Bus
	conn     *nats.Conn
	unsubs   []func()
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewBridge creates an EventBus-to-NATS bridge.
func NewBridge(url string, eventBus *events.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		url:      url,
		eventBus: eventBus,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start connects to NATS and subscribes to the event bus.
func (b *Bridge) Start() error {
	conn, err := nats.Connect(b.url,
		nats.Name("signalnode-telemetry"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		b.logger.Warn("Failed to connect to NATS, telemetry fan-out disabled", "error", err)
		return err
	}

	b.mu.Lock()
	b.conn = conn
	b.unsubs = []func(){
		b.eventBus.Subscribe(b.handleTiming),
		b.eventBus.Subscribe(b.handleState),
		b.eventBus.Subscribe(b.handleFailure),
	}
	b.mu.Unlock()

	b.logger.Info("NATS bridge connected", "url", b.url)
	return nil
}

func (b *Bridge) handleTiming(e events.TimingChangedEvent) {
	b.publish(SubjectTiming(e.Subdevice), TimingMessage{
		Subdevice: e.Subdevice,
		Timestamp: e.Timestamp,
		Previous:  e.Previous,
		Timing:    e.Timing,
	})
}

func (b *Bridge) handleState(e events.StreamStateChangedEvent) {
	b.publish(SubjectState(e.Subdevice), StateMessage{
		Subdevice: e.Subdevice,
		Timestamp: e.Timestamp,
		Streaming: e.Streaming,
		Signal:    e.Signal,
	})
}

func (b *Bridge) handleFailure(e events.DetectionFailedEvent) {
	b.publish(SubjectFailures(e.Subdevice), FailureMessage{
		Subdevice: e.Subdevice,
		Timestamp: e.Timestamp,
		Code:      e.Code,
		Error:     e.Error,
		Redetect:  e.Redetect,
	})
}

func (b *Bridge) publish(subject string, msg any) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return
	}

	data, err := marshal(msg)
	if err != nil {
		b.logger.Warn("Failed to marshal telemetry", "error", err, "subject", subject)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		b.logger.Warn("Failed to publish telemetry", "error", err, "subject", subject)
		return
	}
	b.logger.Debug("Published telemetry", "subject", subject)
}

// Stop unsubscribes from the event bus and closes the connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.logger.Info("NATS bridge stopped")
}

// IsConnected reports whether the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil && b.conn.IsConnected()
}
