package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/signalnode/internal/controls"
)

// CreateMonitorCmd creates the monitor command.
func CreateMonitorCmd() *cobra.Command {
	var server string
	var interval time.Duration
	var username, password string

	cmd := &cobra.Command{
		Use:   "monitor [subdevice]",
		Short: "Print signal changes of a running service",
		Long: `Polls the width, height and framerate controls of a subdevice through the HTTP API ` +
			`and prints a line whenever they change.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := &monitor{
				client:   &http.Client{Timeout: 5 * time.Second},
				base:     server,
				name:     args[0],
				username: username,
				password: password,
				out:      os.Stdout,
			}
			fmt.Fprintf(os.Stdout, "Monitoring %s on %s every %s\n", m.name, server, interval)
			m.run(ctx, interval)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8090", "API base URL")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 2*time.Second, "Poll interval")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Basic auth username")
	cmd.Flags().StringVar(&password, "password", "", "Basic auth password")

	return cmd
}

type signalReading struct {
	Width, Height, Framerate int64
}

type monitor struct {
	client             *http.Client
	base               string
	name               string
	username, password string
	out                io.Writer

	last    *signalReading
	lastErr string
}

func (m *monitor) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll reads the controls once and prints a line when the signal changed.
// Errors are printed once until they change or the service recovers.
func (m *monitor) poll(ctx context.Context) {
	r, err := m.read(ctx)
	if err != nil {
		if msg := err.Error(); msg != m.lastErr {
			fmt.Fprintf(m.out, "Unable to read %s: %s\n", m.name, msg)
			m.lastErr = msg
		}
		return
	}
	m.lastErr = ""

	if m.last != nil && *m.last == r {
		return
	}
	m.last = &r
	if r.Width == 0 || r.Height == 0 {
		fmt.Fprintln(m.out, "Video signal changed: no signal")
		return
	}
	fmt.Fprintf(m.out, "Video signal changed: %dx%d @ %dfps\n", r.Width, r.Height, r.Framerate)
}

func (m *monitor) read(ctx context.Context) (signalReading, error) {
	endpoint := fmt.Sprintf("%s/api/subdevices/%s/controls", m.base, url.PathEscape(m.name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return signalReading{}, err
	}
	if m.username != "" {
		req.SetBasicAuth(m.username, m.password)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return signalReading{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return signalReading{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body struct {
		Controls []controls.Value `json:"controls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return signalReading{}, err
	}

	var r signalReading
	for _, c := range body.Controls {
		// Values without a live signal only repeat the last geometry.
		if !c.Live {
			continue
		}
		switch c.ID {
		case controls.IDWidth:
			r.Width = c.Value
		case controls.IDHeight:
			r.Height = c.Value
		case controls.IDFramerate:
			r.Framerate = c.Value
		}
	}
	return r, nil
}
