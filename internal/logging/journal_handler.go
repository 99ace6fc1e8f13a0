package logging

import (
	"context"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalIdentifier is the SYSLOG_IDENTIFIER of every entry, so
// `journalctl -t signalnode` selects this service.
const journalIdentifier = "signalnode"

// JournalHandler writes records to the systemd journal with each attribute
// as its own field, so entries can be filtered with e.g. SUBDEVICE=vga.
type JournalHandler struct {
	level  slog.Leveler
	fixed  map[string]string // rendered WithAttrs fields
	prefix string            // open groups, joined and sanitised
}

// NewJournalHandler creates a journal handler gated by level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, fixed: map[string]string{}}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	return journal.Send(r.Message, priority(r.Level), h.fields(r))
}

// fields renders a record into journal fields.
func (h *JournalHandler) fields(r slog.Record) map[string]string {
	fields := maps.Clone(h.fixed)
	r.Attrs(func(a slog.Attr) bool {
		putAttr(fields, h.prefix, a)
		return true
	})
	fields["SYSLOG_IDENTIFIER"] = journalIdentifier
	fields["PRIORITY"] = strconv.Itoa(int(priority(r.Level)))
	return fields
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fixed := maps.Clone(h.fixed)
	for _, a := range attrs {
		putAttr(fixed, h.prefix, a)
	}
	return &JournalHandler{level: h.level, fixed: fixed, prefix: h.prefix}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{level: h.level, fixed: h.fixed, prefix: h.prefix + fieldName(name) + "_"}
}

func priority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func putAttr(fields map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += fieldName(a.Key) + "_"
		}
		for _, g := range a.Value.Group() {
			putAttr(fields, inner, g)
		}
		return
	}

	key := prefix + fieldName(a.Key)
	switch a.Value.Kind() {
	case slog.KindTime:
		fields[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		fields[key] = a.Value.Duration().String()
	default:
		fields[key] = a.Value.String()
	}
}

// fieldName maps an attribute key onto journald's field alphabet:
// uppercase letters, digits and underscores, not starting with a digit or
// an underscore.
func fieldName(key string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(key) {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "_0123456789")
	if name == "" {
		return "FIELD"
	}
	return name
}

// IsJournalAvailable reports whether the journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
