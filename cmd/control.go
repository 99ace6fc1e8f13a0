package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/signalnode/internal/logging"
	"github.com/smazurov/signalnode/internal/nats"
)

// CreateControlCmd creates the control command.
func CreateControlCmd() *cobra.Command {
	var natsURL string
	var reason string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "control [subdevice] [enable|disable|redetect]",
		Short:     "Send a stream command over NATS",
		Long:      `Sends a stream command to a running service through its NATS server and prints the reply.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{nats.ActionEnable, nats.ActionDisable, nats.ActionRedetect},
		Run: func(_ *cobra.Command, args []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("nats")

			name, action := args[0], args[1]
			switch action {
			case nats.ActionEnable, nats.ActionDisable, nats.ActionRedetect:
			default:
				fmt.Fprintf(os.Stderr, "unknown action %q\n", action)
				os.Exit(2)
			}

			pub, err := nats.NewControlPublisher(natsURL, logger)
			if err != nil {
				logger.Error("Failed to connect to NATS", "url", natsURL, "error", err)
				os.Exit(1)
			}
			defer pub.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			reply, err := pub.Send(ctx, name, action, reason)
			if err != nil {
				logger.Error("Control command failed", "error", err)
				os.Exit(1)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(reply)
			if !reply.OK {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the command")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Reply timeout")

	return cmd
}
