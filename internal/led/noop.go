package led

import "log/slog"

// noop stands in when no LED is configured or present.
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

// Set logs the request and does nothing else.
func (n *noop) Set(enabled bool, pattern string) error {
	n.logger.Debug("LED control not available (no-op)", "enabled", enabled, "pattern", pattern)
	return nil
}

// Name returns the empty string.
func (n *noop) Name() string { return "" }
