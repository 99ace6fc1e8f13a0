package led

import (
	"log/slog"
	"os"
	"path/filepath"
)

// New returns a controller for the LED class device name under root. An
// empty name or a missing device yields a no-op controller.
func New(root, name string, logger *slog.Logger) Controller {
	if root == "" {
		root = SysfsRoot
	}
	if name == "" {
		logger.Info("No status LED configured")
		return newNoop(logger)
	}
	if _, err := os.Stat(filepath.Join(root, name)); err != nil {
		logger.Warn("Status LED not present, using no-op controller", "led", name, "error", err)
		return newNoop(logger)
	}
	logger.Info("Using sysfs status LED", "led", name)
	return newSysfs(root, name)
}
