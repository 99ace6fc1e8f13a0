package controls

import (
	"sync"
	"sync/atomic"
)

// DebugFlag is the process-wide debug_enable value. One instance is created
// at startup and passed to every subdevice. Reads are lock-free.
type DebugFlag struct {
	enabled atomic.Bool

	mu    sync.Mutex
	hooks []func(enabled bool)
}

// NewDebugFlag returns a flag with the given initial value. Hooks are not
// run for the initial value.
func NewDebugFlag(enabled bool) *DebugFlag {
	f := &DebugFlag{}
	f.enabled.Store(enabled)
	return f
}

// Enabled reports the current value.
func (f *DebugFlag) Enabled() bool {
	return f.enabled.Load()
}

// Set stores the value and runs the change hooks when it differs from the
// previous one. Hooks run in registration order, serialized with other Sets.
func (f *DebugFlag) Set(enabled bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.enabled.Swap(enabled) == enabled {
		return false
	}
	for _, hook := range f.hooks {
		hook(enabled)
	}
	return true
}

// OnChange registers fn to run after every change.
func (f *DebugFlag) OnChange(fn func(enabled bool)) {
	f.mu.Lock()
	f.hooks = append(f.hooks, fn)
	f.mu.Unlock()
}

// Reapply runs the change hooks with the current value, for when something
// else has undone their effects, such as a logging reload resetting module
// levels.
func (f *DebugFlag) Reapply() {
	f.mu.Lock()
	defer f.mu.Unlock()

	enabled := f.enabled.Load()
	for _, hook := range f.hooks {
		hook(enabled)
	}
}
