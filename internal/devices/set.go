package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/smazurov/signalnode/internal/config"
	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/subdev"
)

// Set keeps the host in line with a devices file that can change while the
// service runs.
type Set struct {
	host   *subdev.Host
	opts   Options
	logger *slog.Logger

	// OnRemove runs after a subdevice has been unregistered, e.g. to drop
	// its metric series.
	OnRemove func(name string)

	mu    sync.Mutex
	parts map[string]*part
}

// NewSet creates an empty set building subdevices with opts.
func NewSet(host *subdev.Host, opts Options) *Set {
	return &Set{
		host:   host,
		opts:   opts,
		logger: opts.logger(),
		parts:  make(map[string]*part),
	}
}

// Apply makes the host match cfg. Subdevices missing from cfg, or whose
// entry changed, are unregistered and their transports closed. New and
// changed entries are built, registered and enabled when marked enable.
// Unchanged subdevices keep their state. Links not in cfg are removed and
// missing ones added. An invalid cfg changes nothing; other failures are
// joined and the remaining entries are still applied.
func (s *Set) Apply(ctx context.Context, cfg config.Devices) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]config.Subdevice, len(cfg.Subdevices))
	for _, sc := range cfg.Subdevices {
		want[sc.Name] = sc
	}

	var errs []error
	for _, name := range s.names() {
		p := s.parts[name]
		if sc, ok := want[name]; ok && reflect.DeepEqual(sc, p.cfg) {
			continue
		}
		if err := s.remove(ctx, name, p); err != nil {
			errs = append(errs, err)
		}
	}

	wantLinks := make(map[subdev.Link]bool, len(cfg.Links))
	for _, l := range cfg.Links {
		wantLinks[subdev.Link{Source: l.Source, SourcePad: l.SourcePad, Sink: l.Sink, SinkPad: l.SinkPad}] = true
	}
	have := make(map[subdev.Link]bool)
	for _, l := range s.host.Links() {
		if wantLinks[l] {
			have[l] = true
			continue
		}
		if err := s.host.Unlink(l); err != nil && !fault.HasCode(err, fault.CodeNotFound) {
			errs = append(errs, err)
		}
	}

	var added []*part
	for _, sc := range cfg.Subdevices {
		if _, ok := s.parts[sc.Name]; ok {
			continue
		}
		p, err := newPart(sc, s.opts, s.logger)
		if err != nil {
			errs = append(errs, fmt.Errorf("subdevice %s: %w", sc.Name, err))
			continue
		}
		if err := s.host.Register(p.sd); err != nil {
			p.close()
			errs = append(errs, err)
			continue
		}
		s.parts[sc.Name] = p
		added = append(added, p)
	}

	for _, l := range cfg.Links {
		if have[subdev.Link{Source: l.Source, SourcePad: l.SourcePad, Sink: l.Sink, SinkPad: l.SinkPad}] {
			continue
		}
		if err := s.host.Link(l.Source, l.SourcePad, l.Sink, l.SinkPad); err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range added {
		enableAtStartup(ctx, p, s.logger)
	}
	return errors.Join(errs...)
}

// Sim returns the simulated hardware of a sim-transport subdevice.
func (s *Set) Sim(name string) (*Sim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[name]
	if !ok || p.sim == nil {
		return nil, false
	}
	return p.sim, true
}

// Close unregisters every subdevice and releases the transports.
func (s *Set) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, name := range s.names() {
		errs = append(errs, s.remove(ctx, name, s.parts[name]))
	}
	return errors.Join(errs...)
}

// remove unregisters name and closes its transports. Callers hold mu.
func (s *Set) remove(ctx context.Context, name string, p *part) error {
	if err := s.host.Unregister(ctx, name); err != nil && !fault.HasCode(err, fault.CodeNotFound) {
		return err
	}
	delete(s.parts, name)
	if s.OnRemove != nil {
		s.OnRemove(name)
	}
	s.logger.Info("Subdevice removed", "subdevice", name)
	return p.close()
}

func (s *Set) names() []string {
	names := make([]string, 0, len(s.parts))
	for name := range s.parts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
