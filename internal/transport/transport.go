// Package transport holds what the register and sync-pulse transports share.
package transport

import "errors"

// ErrNoPulses is returned by a pulse timer that saw no edges within its
// observation window.
var ErrNoPulses = errors.New("no sync pulses observed")
