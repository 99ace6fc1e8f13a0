// Package telemetry holds the published timing descriptor of one subdevice.
//
// The registry is single-writer, multi-reader. Publishers are serialised by a
// mutex; readers load an immutable pointer and never block on a publish.
package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/smazurov/signalnode/internal/timing"
)

// Registry stores the current timing descriptor.
type Registry struct {
	current atomic.Pointer[timing.Descriptor]
	writeMu sync.Mutex
	seq     uint64 // guarded by writeMu
}

// NewRegistry creates a registry holding the no-signal descriptor.
func NewRegistry() *Registry {
	r := &Registry{}
	initial := timing.NoSignal()
	r.current.Store(&initial)
	return r
}

// Publish replaces the current descriptor and returns the stored value with
// its sequence number assigned.
func (r *Registry) Publish(d timing.Descriptor) timing.Descriptor {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.storeLocked(d)
}

// ClearLiveness republishes the current descriptor with signal_present and
// clock_locked cleared.
func (r *Registry) ClearLiveness() timing.Descriptor {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.storeLocked(r.current.Load().WithoutLiveness())
}

// Snapshot returns a copy of the current descriptor.
func (r *Registry) Snapshot() timing.Descriptor {
	return *r.current.Load()
}

// Sequence returns the sequence number of the current descriptor.
func (r *Registry) Sequence() uint64 {
	return r.current.Load().Sequence
}

func (r *Registry) storeLocked(d timing.Descriptor) timing.Descriptor {
	r.seq++
	d.Sequence = r.seq
	r.current.Store(&d)
	return d
}
