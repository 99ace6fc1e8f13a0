//go:build !linux

package v4l2

import "time"

// QueryDVTimings is unavailable off Linux.
func QueryDVTimings(node string) (SignalStatus, error) {
	return SignalStatus{State: SignalStateNoDevice}, ErrUnsupportedPlatform
}

// WaitForSourceChange is unavailable off Linux.
func WaitForSourceChange(node string, timeout time.Duration) (uint32, error) {
	return 0, ErrUnsupportedPlatform
}
