// Package nats fans subdevice telemetry out over an embedded NATS server and
// accepts remote stream control.
//
// # Architecture
//
//   - Server: embedded NATS server running in the signalnode process
//   - Bridge: subscribes to the event bus and publishes timing, state and
//     failure messages
//   - ControlSubscriber: receives enable/disable/redetect commands and applies
//     them to registered subdevices, replying when the sender asked for it
//   - ControlPublisher: sends control commands (used by the CLI)
//
// # Subject Hierarchy
//
//	signalnode.subdevices.{name}.timing    # published descriptor changes
//	signalnode.subdevices.{name}.state     # streaming transitions
//	signalnode.subdevices.{name}.failures  # detection failures
//	signalnode.control.{name}.stream       # enable, disable, redetect
//
// Telemetry is fire-and-forget (core NATS, no JetStream). The bridge degrades
// to a no-op when NATS is unavailable.
//
// # Debugging with nats CLI
//
// Monitor all subdevice telemetry:
//
//	nats sub "signalnode.subdevices.>"
//
// Enable a subdevice and wait for the reply:
//
//	nats req "signalnode.control.vga0.stream" '{"action":"enable","subdevice":"vga0"}'
//
// # Message Formats
//
// TimingMessage (signalnode.subdevices.{name}.timing):
//
//	{
//	  "subdevice": "vga0",
//	  "timestamp": "2024-01-01T12:00:00Z",
//	  "previous": "no signal",
//	  "timing": {"active_width": 640, "active_height": 480, "framerate": 60, ...}
//	}
//
// ControlReply (reply to signalnode.control.{name}.stream):
//
//	{
//	  "ok": false,
//	  "code": "DETECTION_FAILED",
//	  "error": "[DETECTION_FAILED] read AD9984A sync status: i2c nack"
//	}
package nats
