// Package gpiotimer measures a sync signal's period from GPIO edge
// interrupts through periph.
package gpiotimer

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/smazurov/signalnode/internal/timing"
	"github.com/smazurov/signalnode/internal/transport"
)

const (
	// DefaultEdges is the most consecutive periods averaged per reading.
	DefaultEdges = 4

	// SlowestPeriod is the frame period at the lowest supported framerate.
	SlowestPeriod = time.Second / timing.MinFramerate

	// DefaultWindow is how long a reading waits for each edge.
	DefaultWindow = SlowestPeriod + SlowestPeriod/4

	// minSpan ends averaging early on slow inputs, so a 1 Hz reading takes
	// one period instead of DefaultEdges.
	minSpan = 250 * time.Millisecond
)

// MaxReadingTime bounds one Period call with the default window: the wait
// for the first edge plus one slowest period.
const MaxReadingTime = DefaultWindow + SlowestPeriod

// Timer times falling edges on one input pin.
type Timer struct {
	pin    gpio.PinIn
	edges  int
	window time.Duration
	now    func() time.Time
}

// Open configures the named pin ("GPIO17", "P1_11", ...) as an edge-triggered
// input. window bounds how long a reading waits for each edge; zero means
// DefaultWindow.
func Open(pinName string, window time.Duration) (*Timer, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host drivers: %w", err)
	}
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %s not found", pinName)
	}
	return newTimer(p, window)
}

func newTimer(p gpio.PinIn, window time.Duration) (*Timer, error) {
	if err := p.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s for edge detection: %w", p, err)
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Timer{pin: p, edges: DefaultEdges, window: window, now: time.Now}, nil
}

// Period implements detect.PulseTimer. It averages up to DefaultEdges
// periods, fewer once they span minSpan. It returns transport.ErrNoPulses
// when an edge does not arrive within the window.
func (t *Timer) Period(ctx context.Context) (time.Duration, error) {
	var first, last time.Time
	periods := 0
	for i := 0; i <= t.edges; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		wait := t.window
		if dl, ok := ctx.Deadline(); ok {
			if remaining := time.Until(dl); remaining < wait {
				wait = remaining
			}
		}
		if !t.pin.WaitForEdge(wait) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return 0, transport.ErrNoPulses
		}
		last = t.now()
		if i == 0 {
			first = last
			continue
		}
		periods = i
		if last.Sub(first) >= minSpan {
			break
		}
	}
	return last.Sub(first) / time.Duration(periods), nil
}

// Close disables edge detection on the pin.
func (t *Timer) Close() error {
	return t.pin.In(gpio.PullNoChange, gpio.NoEdge)
}
