// Package logging provides the slog handlers used by the krepl command: a
// bounded in-memory ring of recent records, shown by the :logs command, and
// a fan-out that also mirrors records to a text handler.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a Ring created with a non-positive size.
const DefaultMaxEntries = 1000

// LogEntry is a single recorded log record.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs"`
}

// String renders the entry on one line, attributes sorted by key.
func (e LogEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", e.Time.Format("15:04:05.000"), e.Level, e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, e.Attrs[k])
	}
	return b.String()
}

// ring is the storage shared by a Ring and the handlers derived from it.
type ring struct {
	mu      sync.RWMutex
	entries []LogEntry
	maxSize int
}

// Ring is a slog.Handler keeping the most recent records in memory.
type Ring struct {
	store  *ring
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewRing creates a Ring holding at most maxEntries records at or above
// level.
func NewRing(maxEntries int, level slog.Leveler) *Ring {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &Ring{
		store: &ring{entries: make([]LogEntry, 0, min(maxEntries, 64)), maxSize: maxEntries},
		level: level,
	}
}

// Enabled implements slog.Handler.
func (h *Ring) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *Ring) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+record.NumAttrs())
	prefix := strings.Join(h.groups, ".")
	add := func(a slog.Attr) {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		attrs[key] = a.Value.Resolve().String()
	}
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().String()
	}
	record.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})

	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, LogEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	if len(s.entries) > s.maxSize {
		s.entries = slices.Delete(s.entries, 0, len(s.entries)-s.maxSize)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Ring) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = slices.Clone(h.attrs)
	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		out.attrs = append(out.attrs, a)
	}
	return &out
}

// WithGroup implements slog.Handler.
func (h *Ring) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.groups = append(slices.Clone(h.groups), name)
	return &out
}

// Entries returns a copy of every recorded entry, oldest first.
func (h *Ring) Entries() []LogEntry {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	return slices.Clone(h.store.entries)
}

// Recent returns the newest count entries; non-positive count returns all.
func (h *Ring) Recent(count int) []LogEntry {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	n := len(h.store.entries)
	if count <= 0 || count > n {
		count = n
	}
	return slices.Clone(h.store.entries[n-count:])
}

// Search returns the entries whose message or attributes contain query,
// ignoring case.
func (h *Ring) Search(query string) []LogEntry {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	query = strings.ToLower(query)
	var matches []LogEntry
	for _, e := range h.store.entries {
		if strings.Contains(strings.ToLower(e.Message), query) {
			matches = append(matches, e)
			continue
		}
		for k, v := range e.Attrs {
			if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// Clear drops every entry.
func (h *Ring) Clear() {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.entries = h.store.entries[:0]
}

// Fanout sends each record to every handler that accepts its level.
type Fanout []slog.Handler

// Enabled implements slog.Handler.
func (f Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler.
func (f Fanout) Handle(ctx context.Context, record slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WithAttrs implements slog.Handler.
func (f Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(Fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

// WithGroup implements slog.Handler.
func (f Fanout) WithGroup(name string) slog.Handler {
	out := make(Fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// New builds the command logger: ring always, plus a text handler on
// mirror when it is non-nil.
func New(r *Ring, mirror io.Writer, level slog.Leveler) *slog.Logger {
	if mirror == nil {
		return slog.New(r)
	}
	return slog.New(Fanout{r, slog.NewTextHandler(mirror, &slog.HandlerOptions{Level: level})})
}
