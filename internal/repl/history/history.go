// Package history provides the append-only ledgers of a REPL session.
//
// A History is an arena: a growable slice of immutable entries plus a
// monotonic length. Readers load the length first and then the slice, so a
// snapshot never observes a half-written entry and never blocks a writer.
package history

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultLockTimeout bounds how long Push waits for another writer.
const DefaultLockTimeout = 10 * time.Second

var (
	// ErrNotMonotonic is returned when a pushed id does not follow the
	// last entry's sequence number.
	ErrNotMonotonic = errors.New("history: sequence number does not increase")
	// ErrLockTimeout is returned when Push could not acquire the writer
	// lock in time.
	ErrLockTimeout = errors.New("history: timed out waiting for writer lock")
)

// Entry pairs an item with the id of the snippet that produced it.
type Entry[T any] struct {
	ID   LineID
	Item T
}

// History is an ordered, append-only sequence of entries. The zero value
// is not usable; call New.
type History[T any] struct {
	// lock is a one-slot semaphore so writers can give up after a timeout.
	lock    chan struct{}
	timeout time.Duration

	arena  atomic.Pointer[[]Entry[T]]
	length atomic.Int64
}

// Option configures a History.
type Option func(*config)

type config struct {
	timeout  time.Duration
	capacity int
}

// WithLockTimeout sets how long Push waits for the writer lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithCapacity preallocates room for n entries.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// New returns an empty History.
func New[T any](opts ...Option) *History[T] {
	cfg := config{timeout: DefaultLockTimeout, capacity: 16}
	for _, o := range opts {
		o(&cfg)
	}
	h := &History[T]{lock: make(chan struct{}, 1), timeout: cfg.timeout}
	arena := make([]Entry[T], 0, cfg.capacity)
	h.arena.Store(&arena)
	return h
}

// Push appends item under id. id.No must exceed the sequence number of the
// last entry.
func (h *History[T]) Push(id LineID, item T) error {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case h.lock <- struct{}{}:
	case <-timer.C:
		return ErrLockTimeout
	}
	defer func() { <-h.lock }()

	n := int(h.length.Load())
	arena := *h.arena.Load()
	if n > 0 && arena[n-1].ID.No >= id.No {
		return fmt.Errorf("%w: %d after %d", ErrNotMonotonic, id.No, arena[n-1].ID.No)
	}
	if n == cap(arena) {
		grown := make([]Entry[T], n, max(2*n, 16))
		copy(grown, arena[:n])
		arena = grown
	}
	// Slots past the published length are invisible to readers, so the
	// entry can be written in place before the length moves.
	arena = arena[:n+1]
	arena[n] = Entry[T]{ID: id, Item: item}
	h.arena.Store(&arena)
	h.length.Store(int64(n + 1))
	return nil
}

// Len returns the number of entries.
func (h *History[T]) Len() int {
	return int(h.length.Load())
}

// Items returns a snapshot of every entry, oldest first. The returned
// slice must not be modified.
func (h *History[T]) Items() []Entry[T] {
	n := h.length.Load()
	arena := *h.arena.Load()
	return arena[:n:n]
}

// Peek returns the last entry.
func (h *History[T]) Peek() (Entry[T], bool) {
	items := h.Items()
	if len(items) == 0 {
		var zero Entry[T]
		return zero, false
	}
	return items[len(items)-1], true
}

// Before returns the entries whose sequence number is below no.
func (h *History[T]) Before(no int) []Entry[T] {
	items := h.Items()
	i := len(items)
	for i > 0 && items[i-1].ID.No >= no {
		i--
	}
	return items[:i:i]
}

// Find returns the entry recorded for a re-submission of id.
func (h *History[T]) Find(id LineID) (Entry[T], bool) {
	items := h.Items()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].ID.No < id.No {
			break
		}
		if items[i].ID.SameSnippet(id) {
			return items[i], true
		}
	}
	var zero Entry[T]
	return zero, false
}
