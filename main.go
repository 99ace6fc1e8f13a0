package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/signalnode/cmd"
	"github.com/smazurov/signalnode/internal/api"
	"github.com/smazurov/signalnode/internal/config"
	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/devices"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/led"
	"github.com/smazurov/signalnode/internal/logging"
	"github.com/smazurov/signalnode/internal/metrics"
	"github.com/smazurov/signalnode/internal/metrics/collectors"
	"github.com/smazurov/signalnode/internal/metrics/exporters"
	"github.com/smazurov/signalnode/internal/nats"
	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/systemd"
	"github.com/smazurov/signalnode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin, empty disables CORS" default:"" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Devices
	DevicesFile string `help:"Subdevice definitions (TOML or YAML)" default:"devices.toml" toml:"devices.file" env:"DEVICES_FILE"`

	// Debug output of every subdevice
	DebugEnabled bool `help:"Start with debug_enable set" default:"false" toml:"debug.enabled" env:"DEBUG_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// NATS settings
	NATSEnabled bool   `help:"Run the embedded NATS server and publish events" default:"true" toml:"nats.enabled" env:"NATS_ENABLED"`
	NATSHost    string `help:"Embedded NATS server listen address" default:"127.0.0.1" toml:"nats.host" env:"NATS_HOST"`
	NATSPort    int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Metrics
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Diagnostics
	DiagLimit int `help:"Size limit of each /debug file in bytes" default:"4096" toml:"diag.limit" env:"DIAG_LIMIT"`

	// Status LED
	LEDName string `help:"LED class device driven by stream state, empty for none" default:"" toml:"led.name" env:"LED_NAME"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if err := config.LoadConfig(opts, cli.Root()); err != nil {
			slog.Warn("Failed to load config", "error", err)
		}

		// Per-module levels come from the [logging] table of the config file.
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		eventBus := events.New()
		debug := controls.NewDebugFlag(false)
		host := subdev.NewHost(eventBus, debug)
		debug.Set(opts.DebugEnabled)

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			CORSOrigin:   opts.CORSOrigin,
			Host:         host,
			Bus:          eventBus,
			Debug:        debug,
			DiagLimit:    opts.DiagLimit,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler(collectors.NewTimingCollector(host))
		}

		var ledManager *led.Manager
		if opts.LEDName != "" {
			ledLogger := logging.GetLogger("led")
			ledManager = led.NewManager(led.New(led.SysfsRoot, opts.LEDName, ledLogger), eventBus, host, ledLogger)
			apiOpts.LED = ledManager
		}

		var natsServer *nats.Server
		var natsBridge *nats.Bridge
		var natsControl *nats.ControlSubscriber

		deviceSet := devices.NewSet(host, devices.Options{
			Bus:      eventBus,
			Debug:    debug,
			Observer: metrics.Observer{},
			Logger:   logging.GetLogger("devices"),
		})
		deviceSet.OnRemove = metrics.DeleteSubdeviceMetrics

		var runtimeWatcher *config.Watcher[config.Runtime]
		var devicesWatcher *config.Watcher[config.Devices]
		server := api.NewServer(apiOpts)
		notifier := systemd.NewNotifier(func() string { return serviceStatus(host) }, logging.GetLogger("systemd"))

		hooks.OnStart(func() {
			if opts.NATSEnabled {
				natsLogger := logging.GetLogger("nats")
				natsServer = nats.NewServer(nats.ServerOptions{Host: opts.NATSHost, Port: opts.NATSPort, Logger: natsLogger})
				if err := natsServer.Start(); err != nil {
					logger.Error("Failed to start NATS server", "error", err)
					os.Exit(1)
				}
				natsBridge = nats.NewBridge(natsServer.ClientURL(), eventBus, natsLogger)
				if err := natsBridge.Start(); err != nil {
					logger.Warn("Failed to start NATS event bridge", "error", err)
				}
				natsControl = nats.NewControlSubscriber(natsServer.ClientURL(), host, 0, natsLogger)
				if err := natsControl.Start(); err != nil {
					logger.Warn("Failed to start NATS control subscriber", "error", err)
				}
			}

			if ledManager != nil {
				ledManager.Start()
			}

			devicesCfg, err := config.LoadDevices(opts.DevicesFile)
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Devices file not found, starting without subdevices", "path", opts.DevicesFile)
				err = nil
			}
			if err != nil {
				logger.Error("Failed to load devices file", "path", opts.DevicesFile, "error", err)
				os.Exit(1)
			}
			// Applied after the bridges so startup transitions are published.
			if err := deviceSet.Apply(context.Background(), devicesCfg); err != nil {
				logger.Error("Failed to build subdevices", "error", err)
				os.Exit(1)
			}

			runtimeWatcher = watchRuntime(opts.Config, debug, logger)
			devicesWatcher = watchDevices(opts.DevicesFile, deviceSet, logger)
			notifier.Ready()

			if err := server.Start(opts.Port); err != nil {
				logger.Error("Failed to start HTTP server", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Stop(ctx); err != nil {
				logger.Error("Error stopping HTTP server", "error", err)
			}
			if runtimeWatcher != nil {
				if err := runtimeWatcher.Stop(); err != nil {
					logger.Warn("Error stopping config watcher", "error", err)
				}
			}
			if devicesWatcher != nil {
				if err := devicesWatcher.Stop(); err != nil {
					logger.Warn("Error stopping devices watcher", "error", err)
				}
			}

			host.Shutdown(ctx)
			if err := deviceSet.Close(ctx); err != nil {
				logger.Warn("Error closing transports", "error", err)
			}

			if ledManager != nil {
				ledManager.Stop()
			}
			if natsControl != nil {
				natsControl.Stop()
			}
			if natsBridge != nil {
				natsBridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	cli.Root().Use = "signalnode"
	cli.Root().Short = "Signal detection service for analog video front ends"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateDetectCmd())
	cli.Root().AddCommand(cmd.CreateMonitorCmd())
	cli.Root().AddCommand(cmd.CreateControlCmd())

	cli.Run()
}

// serviceStatus summarises the subdevices for systemctl status.
func serviceStatus(host *subdev.Host) string {
	list := host.List()
	streaming := 0
	for _, sd := range list {
		if sd.Streaming() {
			streaming++
		}
	}
	return fmt.Sprintf("%d subdevices, %d streaming", len(list), streaming)
}

// applyRuntime installs reloaded logging settings and the debug flag.
// Initialize resets every module to its configured level, so an unchanged
// debug flag has its hooks rerun to raise the modules again.
func applyRuntime(rt config.Runtime, debug *controls.DebugFlag, logger *slog.Logger) {
	logging.Initialize(rt.Logging)
	if debug.Set(rt.Debug) {
		logger.Info("Debug output changed by config reload", "enabled", rt.Debug)
	} else if rt.Debug {
		debug.Reapply()
	}
	logger.Info("Runtime settings reloaded", "level", rt.Logging.Level)
}

// watchRuntime reapplies logging levels and the debug flag when the config
// file changes. It returns nil when the file cannot be watched.
func watchRuntime(path string, debug *controls.DebugFlag, logger *slog.Logger) *config.Watcher[config.Runtime] {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Debug("Config file not present, reload disabled", "path", path)
		return nil
	}

	w := config.NewConfigWatcher(path, config.LoadRuntime, logging.GetLogger("config"))
	w.OnReload(func(rt config.Runtime) {
		applyRuntime(rt, debug, logger)
	})
	if err := w.Start(); err != nil {
		logger.Warn("Failed to watch config file", "path", path, "error", err)
		return nil
	}
	return w
}

// watchDevices applies devices file changes to the running set. The file
// may be created after startup.
func watchDevices(path string, set *devices.Set, logger *slog.Logger) *config.Watcher[config.Devices] {
	if path == "" {
		return nil
	}
	w := config.NewConfigWatcher(path, config.LoadDevices, logging.GetLogger("config"))
	w.OnReload(func(cfg config.Devices) {
		if err := set.Apply(context.Background(), cfg); err != nil {
			logger.Warn("Devices file applied with errors", "path", path, "error", err)
			return
		}
		logger.Info("Devices file reloaded", "path", path, "subdevices", len(cfg.Subdevices))
	})
	if err := w.Start(); err != nil {
		logger.Warn("Failed to watch devices file", "path", path, "error", err)
		return nil
	}
	return w
}
