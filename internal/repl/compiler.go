package repl

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/repl/completion"
	"github.com/ileasile/kotlin/internal/repl/history"
)

var errNoResolver = errors.New("no dependency resolver is configured")

// Check classifies text as complete, incomplete or malformed. It only
// parses, and never changes what a later Compile does.
func (s *Session) Check(ctx context.Context, text string) (CheckResult, error) {
	var res CheckResult
	err := s.read(ctx, func(st *state) error {
		parsed := st.env.Parse(text)
		switch parsed.Status {
		case ParseIncomplete:
			res.Status = CheckIncomplete
		case ParseError:
			res.Status = CheckSyntaxError
			if len(parsed.Errors) > 0 {
				res.Message = parsed.Errors[0].Message
				res.Location = parsed.Errors[0].Location
			}
		}
		return nil
	})
	return res, err
}

// ListErrors analyzes text as the next snippet and returns every
// diagnostic, warnings included, without compiling it.
func (s *Session) ListErrors(ctx context.Context, text string) ([]diag.Diagnostic, error) {
	var out []diag.Diagnostic
	err := s.read(ctx, func(st *state) error {
		parsed := st.env.Parse(text)
		if parsed.Status != ParseComplete {
			out = parsed.Errors
			return nil
		}
		_, out = st.env.Analyze(ctx, text, s.pendingNo(), st.scope)
		return nil
	})
	return out, err
}

// TypeOf analyzes text as the next snippet and returns the type of its
// value, or "" when it has none. Nothing is compiled or recorded.
func (s *Session) TypeOf(ctx context.Context, text string) (string, []diag.Diagnostic, error) {
	var (
		typ string
		ds  []diag.Diagnostic
	)
	err := s.read(ctx, func(st *state) error {
		parsed := st.env.Parse(text)
		if parsed.Status != ParseComplete {
			ds = parsed.Errors
			return nil
		}
		var r Resolved
		r, ds = st.env.Analyze(ctx, text, s.pendingNo(), st.scope)
		if r != nil {
			typ = r.ResultType()
		}
		return nil
	})
	return typ, ds, err
}

// Complete returns the completion variants at cursor, a byte offset into
// text. Unrecognized contexts produce no variants rather than an error.
func (s *Session) Complete(ctx context.Context, text string, cursor int) ([]completion.Variant, error) {
	var out []completion.Variant
	err := s.read(ctx, func(st *state) error {
		cursor = max(0, min(cursor, len(text)))
		site, err := st.env.Locate(ctx, completion.Insert(text, cursor), cursor, st.scope)
		if err != nil {
			s.logger.Debug("[REPL] completion site not found", "cursor", cursor, "error", err)
			return nil
		}
		out = slices.Collect(s.engine.Complete(site))
		return nil
	})
	return out, err
}

// pendingNo is the number the next snippet will get.
func (s *Session) pendingNo() int { return int(s.next.Load()) + 1 }

// Compile compiles sn against everything compiled before it. Compiling a
// snippet again returns the unit recorded the first time.
func (s *Session) Compile(ctx context.Context, sn Snippet) (CompileResult, error) {
	var res CompileResult
	err := s.write(ctx, func(st *state) error {
		if err := context.Cause(ctx); err != nil {
			return err
		}
		if e, ok := st.compiled.Find(sn.ID); ok {
			res = CompileResult{Status: Compiled, Unit: e.Item}
			return nil
		}
		if last, ok := st.compiled.Peek(); ok && sn.No <= last.ID.No {
			return fmt.Errorf("%w: snippet %d compiled after %d", ErrSnippetOrder, sn.No, last.ID.No)
		}
		var err error
		res, err = s.compile(ctx, st, sn)
		return err
	})
	return res, err
}

func (s *Session) compile(ctx context.Context, st *state, sn Snippet) (CompileResult, error) {
	parsed := st.env.Parse(sn.Text)
	switch parsed.Status {
	case ParseIncomplete:
		return CompileResult{Status: Incomplete, Diagnostics: parsed.Errors}, nil
	case ParseError:
		return failed(parsed.Errors), nil
	}

	if !st.registered {
		// A failed registration is retried, and reported, by the next
		// snippet. Files that did load are not loaded again.
		if ds := s.registerConfig(ctx, st); len(ds) > 0 {
			return failed(ds), nil
		}
		st.registered = true
	}
	if len(parsed.Dependencies) > 0 {
		repos := slices.Clone(s.cfg.Repositories)
		for _, r := range parsed.Repositories {
			repos = append(repos, r.Value)
		}
		files, ds := s.resolve(ctx, parsed.Dependencies, repos)
		if len(ds) > 0 {
			return failed(ds), nil
		}
		if ds := s.addLibraries(ctx, st, files, parsed.Dependencies[0].Location); len(ds) > 0 {
			return failed(ds), nil
		}
	}
	if err := context.Cause(ctx); err != nil {
		return CompileResult{}, err
	}

	resolved, ds := st.env.Analyze(ctx, sn.Text, sn.No, st.scope)
	if resolved == nil || diag.HasErrors(ds) {
		s.logger.Debug("[REPL] analysis failed", "line", sn.No, "diagnostics", len(ds))
		return failed(ds), nil
	}
	exe, err := st.env.Generate(resolved, units(st.compiled.Items()))
	if err != nil {
		return failed(append(ds, diag.Diagnostic{Message: err.Error(), Severity: diag.SeverityError})), nil
	}

	unit := &CompiledUnit{
		ID:           sn.ID,
		Snippet:      sn,
		Declarations: resolved.Declarations(),
		ResultName:   resolved.ResultName(),
		ResultType:   resolved.ResultType(),
		Executable:   exe,
	}
	if err := st.compiled.Push(sn.ID, unit); err != nil {
		return CompileResult{}, fmt.Errorf("repl: failed to record snippet %d: %w", sn.No, err)
	}
	st.scope = resolved.Scope()
	s.logger.Debug("[REPL] compiled", "line", sn.No, "unit", exe.Name(), "result", unit.ResultName)
	return CompileResult{Status: Compiled, Unit: unit, Diagnostics: ds}, nil
}

// registerConfig registers the configured libraries. It runs once per
// session, before the first analysis.
func (s *Session) registerConfig(ctx context.Context, st *state) []diag.Diagnostic {
	deps := make([]Annotation, len(s.cfg.Dependencies))
	for i, d := range s.cfg.Dependencies {
		deps[i] = Annotation{Value: d}
	}
	files, ds := s.resolve(ctx, deps, s.cfg.Repositories)
	if len(ds) > 0 {
		return ds
	}
	files = append(slices.Clone(s.cfg.Classpath), files...)
	if len(files) == 0 {
		return nil
	}
	s.logger.Info("[REPL] registering libraries", "files", len(files))
	return s.addLibraries(ctx, st, files, nil)
}

// resolve resolves every dependency, collecting all failures.
func (s *Session) resolve(ctx context.Context, deps []Annotation, repos []string) ([]string, []diag.Diagnostic) {
	var files []string
	var ds []diag.Diagnostic
	for _, d := range deps {
		var got []string
		err := errNoResolver
		if s.opts.resolver != nil {
			got, err = s.opts.resolver.Resolve(ctx, d.Value, repos)
		}
		if err != nil {
			s.logger.Warn("[REPL] dependency resolution failed", "dependency", d.Value, "error", err)
			ds = append(ds, diag.Diagnostic{
				Location: d.Location,
				Message:  fmt.Sprintf("Failed to resolve %s: %v", d.Value, err),
				Severity: diag.SeverityError,
			})
			continue
		}
		files = append(files, got...)
	}
	return files, ds
}

// addLibraries loads files into the environment. The extended scope is
// kept even if the snippet that declared them fails later on.
func (s *Session) addLibraries(ctx context.Context, st *state, files []string, loc *diag.Location) []diag.Diagnostic {
	scope, err := st.env.AddLibraries(ctx, files, st.scope)
	if err != nil {
		return []diag.Diagnostic{{Location: loc, Message: "Failed to load libraries: " + err.Error(), Severity: diag.SeverityError}}
	}
	st.scope = scope
	return nil
}

func units(entries []history.Entry[*CompiledUnit]) []*CompiledUnit {
	out := make([]*CompiledUnit, len(entries))
	for i, e := range entries {
		out[i] = e.Item
	}
	return out
}
