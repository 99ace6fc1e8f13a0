// Package led drives a status LED from the aggregate signal state of all
// streaming subdevices.
package led

// LED patterns.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
)

// Controller switches one board LED.
type Controller interface {
	// Set turns the LED on or off. pattern is PatternSolid, PatternBlink or
	// a raw kernel trigger name; empty leaves the trigger unchanged.
	Set(enabled bool, pattern string) error

	// Name returns the LED identifier, empty when no LED is driven.
	Name() string
}
