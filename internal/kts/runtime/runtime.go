// Package runtime executes generated programs on a goja VM.
//
// A Runtime owns one goja.Runtime behind a goja_nodejs event loop. The VM
// is not goroutine safe, so every access is routed through RunOnLoop or
// RunOnLoopContext. Blocking entry points take a context; cancelling it
// interrupts the running script.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

var (
	// ErrNotRunning is returned when the event loop has been stopped.
	ErrNotRunning = errors.New("runtime: event loop not running")
	// ErrStopped is returned when the runtime closes while a job waits.
	ErrStopped = errors.New("runtime: stopped before completion")
	// ErrTimeout is the cancellation cause of an evaluation that ran longer
	// than Options.EvalTimeout.
	ErrTimeout = errors.New("runtime: evaluation timed out")
	// ErrLoadTimeout is the cancellation cause of a library whose
	// initialization ran longer than Options.LoadTimeout.
	ErrLoadTimeout = errors.New("runtime: library initialization timed out")
)

// Options configures a Runtime. The zero value writes program output to
// io.Discard and reads no input.
type Options struct {
	Stdout io.Writer
	Stdin  io.Reader
	Logger *slog.Logger
	// EvalTimeout bounds each Run; zero means no bound.
	EvalTimeout time.Duration
	// LoadTimeout bounds each LoadLibrary; zero means no bound.
	LoadTimeout time.Duration
}

// Runtime is a goja VM with the builtin slot table installed.
type Runtime struct {
	loop   *eventloop.EventLoop
	opts   Options
	logger *slog.Logger

	loopGoroutineID atomic.Int64

	// vm is set once on the loop; only Interrupt is called on it from
	// other goroutines.
	vm *goja.Runtime

	// Loop-owned state.
	builtins *goja.Object
	packages map[string]*goja.Object

	mu      sync.RWMutex
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRuntime creates a Runtime and starts its event loop. The runtime stops
// when ctx is cancelled or Close is called. The kts:runtime module is
// registered on the loop's module registry.
func NewRuntime(ctx context.Context, opts Options) (*Runtime, error) {
	registry := require.NewRegistry()
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry.RegisterNativeModule(ModuleName, Require(opts.Stdout, opts.Stdin))

	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(false),
	)

	childCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		loop:     loop,
		opts:     opts,
		logger:   logger,
		packages: make(map[string]*goja.Object),
		ctx:      childCtx,
		cancel:   cancel,
	}

	loop.Start()
	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()

	errCh := make(chan error, 1)
	ok := loop.RunOnLoop(func(vm *goja.Runtime) {
		rt.loopGoroutineID.Store(goroutineID())
		rt.vm = vm
		vm.SetMaxCallStackSize(maxCallStackSize)
		b, err := installPrelude(vm)
		rt.builtins = b
		errCh <- err
	})
	if !ok {
		cancel()
		return nil, ErrNotRunning
	}
	if err := <-errCh; err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("runtime: failed to initialize: %w", err)
	}

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() {
			_ = rt.Close()
		})
	}
	logger.Debug("[Runtime] started", "evalTimeout", opts.EvalTimeout, "loadTimeout", opts.LoadTimeout)
	return rt, nil
}

// Close stops the event loop. It is safe to call more than once.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	rt.cancel()
	if rt.vm != nil {
		rt.vm.Interrupt(ErrStopped)
	}
	rt.loop.Stop()
	rt.logger.Debug("[Runtime] stopped")
	return nil
}

// Done is closed once the runtime stops.
func (rt *Runtime) Done() <-chan struct{} {
	return rt.ctx.Done()
}

// IsRunning reports whether the runtime was started and not yet closed.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.started && !rt.stopped
}

// RunOnLoop schedules fn on the loop goroutine. It reports false when the
// loop is not running.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopContext runs fn on the loop and waits for it. When ctx ends
// first the VM is interrupted with the context's cause and the call
// returns once fn has unwound. Called from the loop goroutine itself, as
// native functions do, fn runs directly.
func (rt *Runtime) RunOnLoopContext(ctx context.Context, fn func(*goja.Runtime) error) error {
	if !rt.IsRunning() {
		return ErrNotRunning
	}
	if err := context.Cause(ctx); err != nil {
		return err
	}
	if id := rt.loopGoroutineID.Load(); id > 0 && goroutineID() == id {
		return fn(rt.vm)
	}
	errCh := make(chan error, 1)
	ok := rt.loop.RunOnLoop(func(vm *goja.Runtime) {
		vm.ClearInterrupt()
		if err := context.Cause(ctx); err != nil {
			errCh <- err
			return
		}
		errCh <- fn(vm)
	})
	if !ok {
		return ErrNotRunning
	}
	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return ErrStopped
	case <-ctx.Done():
	}
	cause := context.Cause(ctx)
	rt.vm.Interrupt(cause)
	select {
	case <-errCh:
	case <-rt.Done():
	}
	return cause
}

// pkg returns the object holding a library package's declarations,
// creating it on first use. Loop only.
func (rt *Runtime) pkg(vm *goja.Runtime, fq string) *goja.Object {
	o, ok := rt.packages[fq]
	if !ok {
		o = vm.NewObject()
		rt.packages[fq] = o
	}
	return o
}
