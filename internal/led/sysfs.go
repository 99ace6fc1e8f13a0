package led

import (
	"fmt"
	"os"
	"path/filepath"
)

// SysfsRoot is where the kernel exposes LED class devices.
const SysfsRoot = "/sys/class/leds"

// sysfs drives an LED through the Linux LED class interface.
type sysfs struct {
	dir  string
	name string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{dir: filepath.Join(root, name), name: name}
}

// Set writes the trigger for pattern and then the brightness.
func (s *sysfs) Set(enabled bool, pattern string) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", s.name, s.dir, err)
	}

	if pattern != "" {
		trigger := pattern
		switch pattern {
		case PatternSolid:
			trigger = "none"
		case PatternBlink:
			trigger = "heartbeat"
		}
		if err := os.WriteFile(filepath.Join(s.dir, "trigger"), []byte(trigger), 0o644); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(s.dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

// Name returns the LED class device name.
func (s *sysfs) Name() string { return s.name }
