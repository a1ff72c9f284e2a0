package repl

import (
	"context"
	"errors"
	"fmt"
)

// Eval runs a compiled unit and records the outcome. It blocks until the
// frontend has finished executing.
//
// Exceptions thrown by the snippet, evaluation timeouts included, become
// an error result with a nil error. Cancelling ctx interrupts the snippet;
// the interrupted evaluation is still recorded and returned together with
// the context's cause.
func (s *Session) Eval(ctx context.Context, unit *CompiledUnit) (*EvaluatedSnippet, error) {
	if unit == nil {
		return nil, errors.New("repl: nil compiled unit")
	}
	var ev *EvaluatedSnippet
	var cause error
	err := s.write(ctx, func(st *state) error {
		if e, ok := st.evaluated.Find(unit.ID); ok {
			ev = e.Item
			return nil
		}
		if last, ok := st.evaluated.Peek(); ok && unit.ID.No <= last.ID.No {
			return fmt.Errorf("%w: snippet %d evaluated after %d", ErrSnippetOrder, unit.ID.No, last.ID.No)
		}
		if err := context.Cause(ctx); err != nil {
			return err
		}

		items := st.evaluated.Items()
		cfg := ExecConfig{Instances: make([]LineInstance, len(items))}
		for i, e := range items {
			cfg.Instances[i] = LineInstance{ID: e.ID, Instance: e.Item.Instance}
			if e.Item.Loader != nil {
				cfg.Base = e.Item.Loader
			}
		}

		out, err := st.env.Execute(ctx, unit.Executable, cfg)
		switch {
		case err != nil:
			ev = newErrorResult(unit, cfg, out, err)
			if ctx.Err() != nil {
				cause = context.Cause(ctx)
			}
		case out.Err != nil:
			ev = newErrorResult(unit, cfg, out, out.Err)
		case out.HasResult:
			ev = newValueResult(unit, cfg, out)
		default:
			ev = newUnitResult(unit, cfg, out)
		}
		if err := st.evaluated.Push(unit.ID, ev); err != nil {
			return fmt.Errorf("repl: failed to record evaluation of snippet %d: %w", unit.ID.No, err)
		}
		s.logger.Debug("[REPL] evaluated", "line", unit.ID.No, "value", ev.HasResult(), "error", ev.Err())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, cause
}

// Submit compiles text as the next snippet and, if it compiles, evaluates
// it.
func (s *Session) Submit(ctx context.Context, text string) (SubmitResult, error) {
	cr, err := s.Compile(ctx, s.NewSnippet(text))
	if err != nil || cr.Status != Compiled {
		return SubmitResult{Compile: cr}, err
	}
	ev, err := s.Eval(ctx, cr.Unit)
	return SubmitResult{Compile: cr, Eval: ev}, err
}
