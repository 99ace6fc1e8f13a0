package nats

import (
	"encoding/json"
	"fmt"

	"github.com/smazurov/signalnode/internal/timing"
)

// Subject prefixes for NATS topics.
const (
	SubjectSubdevicesPrefix = "signalnode.subdevices"
	SubjectControlPrefix    = "signalnode.control"
)

// Control actions.
const (
	ActionEnable   = "enable"
	ActionDisable  = "disable"
	ActionRedetect = "redetect"
)

// SubjectTiming returns the subject for descriptor changes of a subdevice.
func SubjectTiming(name string) string {
	return fmt.Sprintf("%s.%s.timing", SubjectSubdevicesPrefix, name)
}

// SubjectState returns the subject for streaming transitions of a subdevice.
func SubjectState(name string) string {
	return fmt.Sprintf("%s.%s.state", SubjectSubdevicesPrefix, name)
}

// SubjectFailures returns the subject for detection failures of a subdevice.
func SubjectFailures(name string) string {
	return fmt.Sprintf("%s.%s.failures", SubjectSubdevicesPrefix, name)
}

// SubjectControl returns the subject for stream commands to a subdevice.
func SubjectControl(name string) string {
	return fmt.Sprintf("%s.%s.stream", SubjectControlPrefix, name)
}

// TimingMessage carries a newly published descriptor.
type TimingMessage struct {
	Subdevice string            `json:"subdevice"`
	Timestamp string            `json:"timestamp"`
	Previous  string            `json:"previous"`
	Timing    timing.Descriptor `json:"timing"`
}

// StateMessage carries a streaming transition.
type StateMessage struct {
	Subdevice string `json:"subdevice"`
	Timestamp string `json:"timestamp"`
	Streaming bool   `json:"streaming"`
	Signal    bool   `json:"signal"`
}

// FailureMessage carries a detection failure.
type FailureMessage struct {
	Subdevice string `json:"subdevice"`
	Timestamp string `json:"timestamp"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	Redetect  bool   `json:"redetect"`
}

// ControlMessage is a stream command.
type ControlMessage struct {
	Action    string `json:"action"` // enable, disable, redetect
	Subdevice string `json:"subdevice"`
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ControlReply answers a ControlMessage sent as a request.
type ControlReply struct {
	OK     bool              `json:"ok"`
	Code   string            `json:"code,omitempty"`
	Error  string            `json:"error,omitempty"`
	Timing timing.Descriptor `json:"timing"`
}

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshal[T any](data []byte) (T, error) {
	var m T
	err := json.Unmarshal(data, &m)
	return m, err
}
