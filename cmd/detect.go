// Package cmd holds the signalnode subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/signalnode/internal/config"
	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/devices"
	"github.com/smazurov/signalnode/internal/diag"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/logging"
	"github.com/smazurov/signalnode/internal/subdev"
)

// CreateDetectCmd creates the detect command.
func CreateDetectCmd() *cobra.Command {
	var devicesFile string
	var timeout time.Duration
	var debug bool

	cmd := &cobra.Command{
		Use:   "detect [subdevice]",
		Short: "Run detection once and print the result",
		Long: `Builds the named subdevice from the devices file, starts streaming to run detection, ` +
			`prints the diagnostic files, then stops streaming. Exits non-zero when detection fails.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			name := args[0]

			loggingConfig := logging.Config{Level: "warn", Format: "text"}
			if debug {
				loggingConfig.Level = "debug"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("detect").With("subdevice", name)

			cfg, err := config.LoadDevices(devicesFile)
			if err != nil {
				logger.Error("Failed to load devices file", "error", err, "path", devicesFile)
				os.Exit(1)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := detectOnce(ctx, os.Stdout, cfg, name, debug); err != nil {
				logger.Error("Detection failed", "error", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&devicesFile, "devices", "d", "devices.toml", "Subdevice definitions (TOML or YAML)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Overall time limit")
	cmd.Flags().BoolVar(&debug, "debug", false, "Set debug_enable and log detector internals")

	return cmd
}

// detectOnce builds only the named subdevice, runs one detection and writes
// its diagnostic files to w.
func detectOnce(ctx context.Context, w io.Writer, cfg config.Devices, name string, debug bool) error {
	var selected *config.Subdevice
	for i := range cfg.Subdevices {
		if cfg.Subdevices[i].Name == name {
			selected = &cfg.Subdevices[i]
		}
	}
	if selected == nil {
		return fmt.Errorf("subdevice %q not in devices file", name)
	}
	one := *selected
	one.Enable = false
	one.RedetectInterval = config.Duration{}

	bus := events.New()
	flag := controls.NewDebugFlag(false)
	host := subdev.NewHost(bus, flag)
	flag.Set(debug)

	built, err := devices.Build(ctx, config.Devices{Subdevices: []config.Subdevice{one}}, host, devices.Options{Bus: bus, Debug: flag})
	if err != nil {
		return err
	}
	defer built.Close()

	sd := built.Subdevices[0]
	if err := sd.Enable(ctx); err != nil {
		return err
	}
	defer sd.Disable(context.Background())

	snap := sd.Snapshot()
	fmt.Fprintf(w, "%s (%s): %s\n", sd.Name(), sd.Variant(), snap)
	for _, file := range diag.Files(sd.Variant()) {
		data, err := diag.Render(sd.Variant(), file, snap, diag.DefaultLimit)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n# %s\n%s", file, data)
	}
	return nil
}
