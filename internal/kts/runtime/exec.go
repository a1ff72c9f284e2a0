package runtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/ileasile/kotlin/internal/kts/codegen"
)

// maxCallStackSize bounds JS recursion; exceeding it raises
// java.lang.StackOverflowError.
const maxCallStackSize = 8192

// Exception is a throwable that escaped a program.
type Exception struct {
	// Kind is the qualified exception class, e.g. java.lang.ArithmeticException.
	Kind string
	// Message is valid when HasMessage is set; Kotlin messages are nullable.
	Message    string
	HasMessage bool
	// Value is the thrown JS value.
	Value goja.Value
}

func (e *Exception) Error() string {
	if !e.HasMessage {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}

// Result is the outcome of a snippet that completed normally.
type Result struct {
	// HasResult reports whether the snippet bound a result; Value, Export
	// and Text are zero otherwise.
	HasResult bool
	Value     goja.Value
	// Export is Value exported to Go with Double boxes removed.
	Export any
	// Text renders Value the way println would.
	Text string
	// Instance holds the snippet's top-level declarations.
	Instance *goja.Object
}

// Run evaluates a snippet unit. Its line instance and classes are recorded
// in a new child of base, which is returned even when the snippet throws so
// later snippets can still reach what it defined. User exceptions are
// returned as *Exception; cancellation returns the context's cause.
//
// The earlier lines the unit uses are taken from instances, keyed by line
// number, and otherwise from the loader chain of base.
func (rt *Runtime) Run(ctx context.Context, u *codegen.Unit, base *Loader, instances map[int]*goja.Object) (*Loader, *Result, error) {
	child := NewLoader(base, u.Name)
	if d := rt.opts.EvalTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, d, ErrTimeout)
		defer cancel()
	}
	var res *Result
	err := rt.RunOnLoopContext(ctx, func(vm *goja.Runtime) error {
		earlier := vm.NewObject()
		for _, n := range u.Uses {
			inst, ok := instances[n]
			if !ok || inst == nil {
				inst, ok = child.Instance(n)
			}
			if !ok {
				return &Exception{
					Kind:       "java.lang.NoClassDefFoundError",
					Message:    "Line_" + strconv.Itoa(n) + " was compiled but never evaluated",
					HasMessage: true,
				}
			}
			_ = earlier.Set(strconv.Itoa(n), inst)
		}
		fn, err := rt.function(vm, u)
		if err != nil {
			return err
		}
		ret, err := fn(goja.Undefined(), earlier, rt.context(vm, child))
		if err != nil {
			return rt.exception(vm, err)
		}
		res, err = rt.result(vm, ret.ToObject(vm), u)
		return err
	})
	if err != nil {
		rt.logger.Debug("[Runtime] snippet failed", "unit", u.Name, "error", err)
		return child, nil, err
	}
	return child, res, nil
}

// LoadLibrary runs a library unit once, defining its declarations on the
// package objects. The classes it defines are recorded in a child of base.
func (rt *Runtime) LoadLibrary(ctx context.Context, u *codegen.Unit, base *Loader) (*Loader, error) {
	child := NewLoader(base, u.Name)
	if d := rt.opts.LoadTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, d, ErrLoadTimeout)
		defer cancel()
	}
	err := rt.RunOnLoopContext(ctx, func(vm *goja.Runtime) error {
		fn, err := rt.function(vm, u)
		if err != nil {
			return err
		}
		if _, err := fn(goja.Undefined(), rt.context(vm, child)); err != nil {
			return rt.exception(vm, err)
		}
		return nil
	})
	if err != nil {
		return child, fmt.Errorf("runtime: loading %s: %w", u.Name, err)
	}
	rt.logger.Debug("[Runtime] library loaded", "unit", u.Name, "classes", len(u.Classes))
	return child, nil
}

func (rt *Runtime) function(vm *goja.Runtime, u *codegen.Unit) (goja.Callable, error) {
	if u.Program == nil {
		return nil, fmt.Errorf("runtime: %s has no program", u.Name)
	}
	v, err := vm.RunProgram(u.Program)
	if err != nil {
		return nil, fmt.Errorf("runtime: %s: %w", u.Name, err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("runtime: %s does not evaluate to a function", u.Name)
	}
	return fn, nil
}

// context builds the $rt object generated code receives.
func (rt *Runtime) context(vm *goja.Runtime, l *Loader) *goja.Object {
	o := vm.NewObject()
	_ = o.Set("b", rt.builtins)
	_ = o.Set("begin", func(n int) *goja.Object {
		inst := vm.NewObject()
		l.begin(n, inst)
		return inst
	})
	_ = o.Set("define", func(name string, cls *goja.Object) {
		_ = cls.Set("$kname", name)
		l.define(name, cls)
	})
	_ = o.Set("pkg", func(fq string) *goja.Object {
		return rt.pkg(vm, fq)
	})
	return o
}

func (rt *Runtime) result(vm *goja.Runtime, ret *goja.Object, u *codegen.Unit) (*Result, error) {
	r := &Result{HasResult: ret.Get("hasResult").ToBoolean()}
	if inst := ret.Get("instance"); inst != nil && !goja.IsUndefined(inst) {
		r.Instance = inst.ToObject(vm)
	}
	if !r.HasResult {
		return r, nil
	}
	r.Value = ret.Get("result")
	text, err := rt.call(vm, "render", r.Value, vm.ToValue(u.ResultIsDouble()))
	if err != nil {
		return nil, rt.exception(vm, err)
	}
	r.Text = text.String()
	plain, err := rt.call(vm, "unbox", r.Value)
	if err != nil {
		return nil, rt.exception(vm, err)
	}
	r.Export = plain.Export()
	return r, nil
}

func (rt *Runtime) call(vm *goja.Runtime, name string, args ...goja.Value) (goja.Value, error) {
	fn, ok := goja.AssertFunction(rt.builtins.Get(name))
	if !ok {
		return nil, fmt.Errorf("runtime: builtin %s is not a function", name)
	}
	return fn(goja.Undefined(), args...)
}

// exception converts a goja error into an *Exception, or into the cause
// of an interrupt.
func (rt *Runtime) exception(vm *goja.Runtime, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return err
	}
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return &Exception{Kind: "java.lang.StackOverflowError"}
	}
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}
	e := &Exception{Kind: "java.lang.Throwable", Value: ex.Value()}
	d, derr := rt.call(vm, "describe", ex.Value())
	if derr != nil {
		e.Message, e.HasMessage = ex.Error(), true
		return e
	}
	o := d.ToObject(vm)
	e.Kind = o.Get("kind").String()
	if m := o.Get("message"); m != nil && !goja.IsNull(m) && !goja.IsUndefined(m) {
		e.Message, e.HasMessage = m.String(), true
	}
	return e
}
