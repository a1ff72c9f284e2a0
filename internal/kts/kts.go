// Package kts is the Kotlin-script frontend of the REPL. It wires the
// parser, analyzer, code generator and runtime into the environment a
// repl.Session drives.
package kts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ileasile/kotlin/internal/kts/analysis"
	"github.com/ileasile/kotlin/internal/kts/runtime"
	"github.com/ileasile/kotlin/internal/kts/types"
	"github.com/ileasile/kotlin/internal/repl"
)

// Frontend opens Kotlin-script environments.
type Frontend struct {
	loadTimeout time.Duration
}

// Option configures a Frontend.
type Option func(*Frontend)

// WithLoadTimeout bounds the initialization code of each library set.
func WithLoadTimeout(d time.Duration) Option {
	return func(f *Frontend) { f.loadTimeout = d }
}

// New creates a Frontend.
func New(opts ...Option) *Frontend {
	f := &Frontend{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ repl.Frontend = (*Frontend)(nil)

// Open starts a runtime for one session. The initial scope holds the
// standard library.
func (f *Frontend) Open(ctx context.Context, cfg repl.EnvConfig) (repl.Environment, repl.Scope, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rt, err := runtime.NewRuntime(ctx, runtime.Options{
		Stdout:      cfg.Stdout,
		Stdin:       cfg.Stdin,
		Logger:      logger,
		EvalTimeout: cfg.EvalTimeout,
		LoadTimeout: f.loadTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kts: %w", err)
	}
	b := analysis.LoadBuiltins()
	e := &environment{
		rt:       rt,
		builtins: b,
		logger:   logger,
		loaded:   make(map[string]bool),
	}
	logger.Debug("[KTS] environment opened")
	return e, types.NewReplScope(b.Table), nil
}
