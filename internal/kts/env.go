package kts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/kts/analysis"
	"github.com/ileasile/kotlin/internal/kts/codegen"
	"github.com/ileasile/kotlin/internal/kts/runtime"
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
	"github.com/ileasile/kotlin/internal/repl"
)

// SourceExt is the extension of library source files.
const SourceExt = ".kt"

// environment is the per-session state of the frontend.
type environment struct {
	rt       *runtime.Runtime
	builtins *analysis.Builtins
	logger   *slog.Logger

	mu sync.Mutex
	// loaded holds the absolute paths of the library files already loaded.
	loaded    map[string]bool
	libraries int
	// libLoader is the loader of the most recent library set.
	libLoader *runtime.Loader
}

// executable adapts a generated unit to repl.Executable.
type executable struct {
	unit *codegen.Unit
}

func (x *executable) Name() string { return x.unit.Name }

// resolved is an analyzed snippet.
type resolved struct {
	info  *analysis.Info
	scope *types.ReplScope
}

func (r *resolved) Scope() repl.Scope { return r.scope }

func (r *resolved) ResultName() string {
	if r.info.Result == nil {
		return ""
	}
	return r.info.Result.Name()
}

func (r *resolved) ResultType() string {
	if r.info.Result == nil {
		return ""
	}
	return r.info.Result.Type.String()
}

func (r *resolved) Declarations() []string {
	var out []string
	for _, d := range r.info.Scope.Decls() {
		if v, ok := d.(*types.VariableDescriptor); ok && v.Synthetic {
			continue
		}
		out = append(out, types.Signature(d))
	}
	return out
}

func replScope(s repl.Scope) (*types.ReplScope, error) {
	sc, ok := s.(*types.ReplScope)
	if !ok || sc == nil {
		return nil, fmt.Errorf("kts: foreign scope %T", s)
	}
	return sc, nil
}

func syntaxDiagnostics(src string, errs []*syntax.Error) []diag.Diagnostic {
	ds := make([]diag.Diagnostic, len(errs))
	for i, e := range errs {
		ds[i] = diag.New(src, e.Start, e.End, diag.SeverityError, e.Message)
	}
	return ds
}

func (e *environment) Parse(text string) repl.Parsed {
	f, errs := syntax.Parse(text)
	var p repl.Parsed
	if len(errs) > 0 {
		p.Status = repl.ParseIncomplete
		for _, err := range errs {
			if !err.AtEOF {
				p.Status = repl.ParseError
				break
			}
		}
		p.Errors = syntaxDiagnostics(text, errs)
	}
	for _, a := range f.Annotations {
		if a.Name == nil {
			continue
		}
		for _, arg := range a.Args {
			lit, ok := arg.(*syntax.StringLit)
			if !ok || lit.Interpolated {
				continue
			}
			loc := diag.LocationOf(text, lit.Pos(), lit.End())
			ann := repl.Annotation{Value: lit.Value(), Location: &loc}
			switch a.Name.Text {
			case "DependsOn":
				p.Dependencies = append(p.Dependencies, ann)
			case "Repository":
				p.Repositories = append(p.Repositories, ann)
			}
		}
	}
	return p
}

func (e *environment) Analyze(_ context.Context, text string, no int, scope repl.Scope) (repl.Resolved, []diag.Diagnostic) {
	sc, err := replScope(scope)
	if err != nil {
		return nil, []diag.Diagnostic{{Message: err.Error(), Severity: diag.SeverityFatal}}
	}
	f, errs := syntax.Parse(text)
	if len(errs) > 0 {
		return nil, syntaxDiagnostics(text, errs)
	}
	info, ds := analysis.Analyze(f, text, analysis.Config{Line: no, Scope: sc, Builtins: e.builtins})
	if diag.HasErrors(ds) {
		return nil, ds
	}
	return &resolved{info: info, scope: sc.WithLine(info.Scope)}, ds
}

func (e *environment) Generate(r repl.Resolved, prior []*repl.CompiledUnit) (repl.Executable, error) {
	res, ok := r.(*resolved)
	if !ok {
		return nil, fmt.Errorf("kts: foreign resolved unit %T", r)
	}
	earlier := make([]*codegen.Unit, 0, len(prior))
	for _, p := range prior {
		if x, ok := p.Executable.(*executable); ok {
			earlier = append(earlier, x.unit)
		}
	}
	u, err := codegen.Generate(res.info, earlier)
	if err != nil {
		return nil, err
	}
	return &executable{unit: u}, nil
}

func (e *environment) Execute(ctx context.Context, exe repl.Executable, cfg repl.ExecConfig) (repl.Outcome, error) {
	x, ok := exe.(*executable)
	if !ok {
		return repl.Outcome{}, fmt.Errorf("kts: foreign executable %T", exe)
	}
	base, _ := cfg.Base.(*runtime.Loader)
	if base == nil {
		e.mu.Lock()
		base = e.libLoader
		e.mu.Unlock()
	}
	instances := make(map[int]*goja.Object, len(cfg.Instances))
	for _, li := range cfg.Instances {
		if inst, ok := li.Instance.(*goja.Object); ok && inst != nil {
			instances[li.ID.No] = inst
		}
	}
	loader, res, err := e.rt.Run(ctx, x.unit, base, instances)
	out := repl.Outcome{Loader: loader}
	if inst, ok := loader.Instance(x.unit.Line); ok {
		out.Instance = inst
	}
	if err != nil {
		var ex *runtime.Exception
		switch {
		case errors.As(err, &ex), errors.Is(err, runtime.ErrTimeout):
			out.Err = err
			return out, nil
		case ctx.Err() != nil:
			return out, err
		}
		return out, fmt.Errorf("kts: %w", err)
	}
	out.HasResult = res.HasResult
	out.Value = res.Export
	out.Text = res.Text
	return out, nil
}

// AddLibraries analyzes, generates and runs a set of library sources.
// Directories contribute every .kt file below them. Files loaded before
// are skipped.
func (e *environment) AddLibraries(ctx context.Context, files []string, scope repl.Scope) (repl.Scope, error) {
	sc, err := replScope(scope)
	if err != nil {
		return scope, err
	}
	paths, err := expand(files)
	if err != nil {
		return scope, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var srcs []analysis.Source
	for _, p := range paths {
		if e.loaded[p] {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return scope, fmt.Errorf("kts: reading library: %w", err)
		}
		srcs = append(srcs, analysis.Source{Name: p, Text: string(data)})
	}
	if len(srcs) == 0 {
		return scope, nil
	}

	table := types.NewPackageTable()
	infos, err := analysis.AnalyzeLibrary(srcs, analysis.LibraryConfig{
		Table:    table,
		Scope:    sc,
		Builtins: e.builtins,
		Origin:   types.OriginPackage,
	})
	if err != nil {
		return scope, err
	}
	e.libraries++
	u, err := codegen.GenerateLibrary("Library_"+strconv.Itoa(e.libraries), infos)
	if err != nil {
		return scope, err
	}
	loader, err := e.rt.LoadLibrary(ctx, u, e.libLoader)
	if err != nil {
		return scope, err
	}
	e.libLoader = loader
	for _, s := range srcs {
		e.loaded[s.Name] = true
	}
	e.logger.Info("[KTS] libraries loaded", "unit", u.Name, "files", len(srcs), "classes", len(u.Classes))
	return sc.WithProviders(table), nil
}

// expand turns files and directories into sorted absolute .kt paths.
func expand(files []string) ([]string, error) {
	var out []string
	var errs []error
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fi, err := os.Stat(abs)
		if err != nil {
			errs = append(errs, fmt.Errorf("kts: library %s: %w", f, err))
			continue
		}
		if !fi.IsDir() {
			out = append(out, abs)
			continue
		}
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(p, SourceExt) {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("kts: library %s: %w", f, err))
		}
	}
	slices.Sort(out)
	return slices.Compact(out), errors.Join(errs...)
}

func (e *environment) Close() error {
	e.logger.Debug("[KTS] environment closed")
	return e.rt.Close()
}
