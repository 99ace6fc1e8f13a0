package events

import "github.com/smazurov/signalnode/internal/timing"

// Event type constants for kelindar/event.
const (
	TypeStreamStateChanged uint32 = iota + 1
	TypeTimingChanged
	TypeDetectionFailed
	TypeDebugToggled
	TypeSubdeviceRegistered
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamStateChangedEvent is published on every real Idle/Streaming transition.
// Used for LED control and other reactive subsystems.
type StreamStateChangedEvent struct {
	Subdevice string `json:"subdevice" example:"vga-decoder" doc:"Subdevice name"`
	Streaming bool   `json:"streaming" example:"true" doc:"Whether the subdevice is streaming"`
	Signal    bool   `json:"signal" example:"true" doc:"Whether a signal was present after the transition"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// TimingChangedEvent is published when a newly published descriptor describes
// a different signal than the one it replaced.
type TimingChangedEvent struct {
	Subdevice string            `json:"subdevice" example:"vga-decoder" doc:"Subdevice name"`
	Timing    timing.Descriptor `json:"timing" doc:"Newly published descriptor"`
	Previous  string            `json:"previous" example:"no signal" doc:"Summary of the replaced descriptor"`
	Timestamp string            `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TimingChangedEvent.
func (e TimingChangedEvent) Type() uint32 { return TypeTimingChanged }

// DetectionFailedEvent is published when a detector cannot reach its transport.
type DetectionFailedEvent struct {
	Subdevice string `json:"subdevice" example:"vga-decoder" doc:"Subdevice name"`
	Code      string `json:"code" example:"DETECTION_FAILED" doc:"Error code"`
	Error     string `json:"error" example:"read AD9984A sync status: i2c nack" doc:"Detailed error description"`
	Redetect  bool   `json:"redetect" doc:"True when the failure happened during background re-detection"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DetectionFailedEvent.
func (e DetectionFailedEvent) Type() uint32 { return TypeDetectionFailed }

// DebugToggledEvent is published when the process-wide debug flag changes.
type DebugToggledEvent struct {
	Enabled   bool   `json:"enabled" doc:"New debug_enable value"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DebugToggledEvent.
func (e DebugToggledEvent) Type() uint32 { return TypeDebugToggled }

// SubdeviceRegisteredEvent is published when a subdevice joins or leaves the host.
type SubdeviceRegisteredEvent struct {
	Subdevice  string `json:"subdevice" example:"vga-decoder" doc:"Subdevice name"`
	InstanceID string `json:"instance_id" example:"7f9c0d1e-3b1a-4f7e-9d2a-0c5e8b6a1f42" doc:"Instance identifier"`
	Variant    string `json:"variant" example:"decoder" doc:"Chip variant"`
	Action     string `json:"action" example:"registered" doc:"Action type: registered, unregistered"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SubdeviceRegisteredEvent.
func (e SubdeviceRegisteredEvent) Type() uint32 { return TypeSubdeviceRegistered }
