// Package repl is the incremental compile and evaluate core of the REPL.
//
// A Session accepts a growing sequence of snippets. Each is compiled
// against the cumulative scope of every snippet compiled before it and
// evaluated against the instances and classes of every snippet evaluated
// before it. The language itself is supplied as a Frontend.
//
// Sessions guard their state with one reader/writer lock: Check,
// ListErrors and Complete share it, Compile, Eval and Dispose hold it
// exclusively. User-code problems are reported inside result values; the
// error returns are reserved for session misuse and cancellation.
package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ileasile/kotlin/internal/repl/completion"
	"github.com/ileasile/kotlin/internal/repl/history"
)

var (
	// ErrSessionDisposed is returned by every operation after Dispose.
	ErrSessionDisposed = errors.New("repl: session is disposed")
	// ErrStateInitialized is returned by Init when the compilation state
	// already exists.
	ErrStateInitialized = errors.New("repl: compilation state is already initialized")
	// ErrSnippetOrder is returned when a snippet is compiled or evaluated
	// behind one that already was.
	ErrSnippetOrder = errors.New("repl: snippet is out of order")
)

// Session is one REPL session.
type Session struct {
	id     string
	cfg    Config
	fe     Frontend
	opts   options
	logger *slog.Logger
	engine *completion.Engine

	next atomic.Int64

	mu       sync.RWMutex
	state    *state
	disposed bool
}

// state is the compilation state: the open environment, the cumulative
// scope and both histories.
type state struct {
	env   Environment
	scope Scope
	// registered is set once the configured libraries were registered.
	registered bool
	compiled   *history.History[*CompiledUnit]
	evaluated  *history.History[*EvaluatedSnippet]
}

// NewSession creates a session. The frontend is opened lazily by the
// first operation, or by Init.
func NewSession(cfg Config, fe Frontend, opts ...Option) *Session {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt.applyOption(&o)
	}
	s := &Session{
		id:   uuid.NewString(),
		cfg:  cfg,
		fe:   fe,
		opts: o,
	}
	s.logger = o.logger.With("session", s.id)
	s.engine = completion.New(append([]completion.Option{completion.WithLogger(s.logger)}, o.completion...)...)
	return s
}

// ID is the session's unique id.
func (s *Session) ID() string { return s.id }

// NewSnippet numbers text as the next snippet of the session, at
// generation 0. Snippet.Replace produces later generations.
func (s *Session) NewSnippet(text string) Snippet {
	no := int(s.next.Add(1))
	return Snippet{No: no, Text: text, ID: history.NewLineID(no, 0, text)}
}

// Init creates the compilation state. It fails with ErrStateInitialized
// when the state already exists.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrSessionDisposed
	}
	if s.state != nil {
		return ErrStateInitialized
	}
	_, err := s.getOrCreateState(ctx)
	return err
}

// getOrCreateState returns the state, opening the frontend on first use.
// Callers hold the write lock.
func (s *Session) getOrCreateState(ctx context.Context) (*state, error) {
	if s.disposed {
		return nil, ErrSessionDisposed
	}
	if s.state != nil {
		return s.state, nil
	}
	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	// The environment outlives the call that happens to open it.
	env, scope, err := s.fe.Open(context.WithoutCancel(ctx), EnvConfig{
		SessionID:   s.id,
		Stdout:      s.opts.stdout,
		Stdin:       s.opts.stdin,
		Logger:      s.logger,
		EvalTimeout: s.opts.evalTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("repl: failed to open frontend: %w", err)
	}
	s.state = &state{
		env:       env,
		scope:     scope,
		compiled:  history.New[*CompiledUnit](),
		evaluated: history.New[*EvaluatedSnippet](),
	}
	s.logger.Debug("[REPL] compilation state created")
	return s.state, nil
}

// read runs fn under the shared lock, creating the state under the write
// lock first if needed.
func (s *Session) read(ctx context.Context, fn func(*state) error) error {
	s.mu.RLock()
	if s.state == nil && !s.disposed {
		s.mu.RUnlock()
		s.mu.Lock()
		_, err := s.getOrCreateState(ctx)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.mu.RLock()
	}
	defer s.mu.RUnlock()
	if s.disposed {
		return ErrSessionDisposed
	}
	return fn(s.state)
}

// write runs fn under the exclusive lock.
func (s *Session) write(ctx context.Context, fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.getOrCreateState(ctx)
	if err != nil {
		return err
	}
	return fn(st)
}

// Dispose releases the frontend. Every later call, Dispose included, fails
// with ErrSessionDisposed.
func (s *Session) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrSessionDisposed
	}
	s.disposed = true
	st := s.state
	s.state = nil
	if st == nil {
		return nil
	}
	s.logger.Debug("[REPL] disposing", "compiled", st.compiled.Len(), "evaluated", st.evaluated.Len())
	if err := st.env.Close(); err != nil {
		return fmt.Errorf("repl: failed to close frontend: %w", err)
	}
	return nil
}

// CompiledHistory returns a snapshot of the compiled units.
func (s *Session) CompiledHistory() []history.Entry[*CompiledUnit] {
	var out []history.Entry[*CompiledUnit]
	_ = s.snapshot(func(st *state) { out = st.compiled.Items() })
	return out
}

// EvaluatedHistory returns a snapshot of the evaluated snippets.
func (s *Session) EvaluatedHistory() []history.Entry[*EvaluatedSnippet] {
	var out []history.Entry[*EvaluatedSnippet]
	_ = s.snapshot(func(st *state) { out = st.evaluated.Items() })
	return out
}

// snapshot reads existing state without creating it.
func (s *Session) snapshot(fn func(*state)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disposed {
		return ErrSessionDisposed
	}
	if s.state != nil {
		fn(s.state)
	}
	return nil
}
