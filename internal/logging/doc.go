// Package logging hands out slog loggers per module, each with its own
// level that can change while the service runs.
//
// Records go to stdout (text or json) when stdout is a terminal, pipe or
// file, and to the systemd journal when journald is reachable. With both
// present every record is written to both.
//
// Call Initialize at startup and again whenever the [logging] table of the
// config file changes:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"detect": "debug"},
//	})
//
//	logger := logging.GetLogger("subdev").With("subdevice", "vga")
//	logger.Info("Stream enabled", "signal", d.String())
//
// Loggers returned before Initialize keep working and follow later level
// changes. SetModuleLevel overrides a single module until ResetModuleLevel
// or the next Initialize; the debug_enable control and PUT
// /api/logging/{module} both go through it.
//
// Journal entries carry every attribute as an uppercase field:
//
//	journalctl -t signalnode MODULE=detect
//	journalctl -t signalnode SUBDEVICE=vga -p warning
package logging
