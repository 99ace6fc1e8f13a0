package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/signalnode/internal/logging"
)

// Runtime holds the settings reapplied when the main config file changes.
type Runtime struct {
	Logging logging.Config
	Debug   bool
}

// DefaultRuntime returns info-level text logging with debug output off.
func DefaultRuntime() Runtime {
	return Runtime{
		Logging: logging.Config{Level: "info", Format: "text", Modules: make(map[string]string)},
	}
}

// LoadRuntime reads the [logging] and [debug] tables of the main config file.
// Keys under [logging] other than level and format are per-module levels.
func LoadRuntime(path string) (Runtime, error) {
	rt := DefaultRuntime()
	if path == "" {
		return rt, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rt, err
	}

	var raw struct {
		Logging map[string]string `toml:"logging"`
		Debug   struct {
			Enabled bool `toml:"enabled"`
		} `toml:"debug"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return rt, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for key, value := range raw.Logging {
		switch key {
		case "level":
			rt.Logging.Level = value
		case "format":
			rt.Logging.Format = value
		default:
			rt.Logging.Modules[key] = value
		}
	}
	rt.Debug = raw.Debug.Enabled
	return rt, nil
}

// LoadLoggingConfig returns the logging part of LoadRuntime, falling back to
// defaults when the file is missing or invalid.
func LoadLoggingConfig(path string) logging.Config {
	rt, err := LoadRuntime(path)
	if err != nil {
		return DefaultRuntime().Logging
	}
	return rt.Logging
}
