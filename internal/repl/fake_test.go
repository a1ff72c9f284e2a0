package repl

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/kts/types"
	"github.com/ileasile/kotlin/internal/repl/completion"
)

// fakeFrontend implements a line language:
//
//	val NAME = EXPR     declares NAME
//	EXPR                NAME, INT or NAME + INT; binds resN
//	@dep COORD          declares a dependency
//	throw MESSAGE       raises
//	block               waits for cancellation
//
// A line ending in "(" is incomplete and a "#" is a syntax error.
type fakeFrontend struct {
	opens atomic.Int32
	env   *fakeEnv
}

func newFakeFrontend() *fakeFrontend {
	return &fakeFrontend{env: &fakeEnv{}}
}

func (f *fakeFrontend) Open(context.Context, EnvConfig) (Environment, Scope, error) {
	f.opens.Add(1)
	return f.env, fakeScope{}, nil
}

type fakeScope map[string]bool

type fakeEnv struct {
	mu        sync.Mutex
	analyses  int
	libraries [][]string
	execs     []ExecConfig
	closed    bool
	locateErr error
	// loadFailures makes that many AddLibraries calls fail.
	loadFailures int
}

func (e *fakeEnv) Parse(text string) Parsed {
	var p Parsed
	if i := strings.IndexByte(text, '#'); i >= 0 {
		p.Status = ParseError
		p.Errors = []diag.Diagnostic{diag.New(text, i, i+1, diag.SeverityError, "Expecting an element")}
		return p
	}
	if strings.HasSuffix(strings.TrimSpace(text), "(") {
		p.Status = ParseIncomplete
		p.Errors = []diag.Diagnostic{diag.New(text, len(text), len(text), diag.SeverityError, "Expecting ')'")}
		return p
	}
	off := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if coord, ok := strings.CutPrefix(strings.TrimSpace(line), "@dep "); ok {
			loc := diag.LocationOf(text, off, off+len(strings.TrimSpace(line)))
			p.Dependencies = append(p.Dependencies, Annotation{Value: coord, Location: &loc})
		}
		off += len(line)
	}
	return p
}

func (e *fakeEnv) AddLibraries(_ context.Context, files []string, scope Scope) (Scope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadFailures > 0 {
		e.loadFailures--
		return scope, errors.New("library init threw")
	}
	e.libraries = append(e.libraries, files)
	next := maps.Clone(scope.(fakeScope))
	if next == nil {
		next = fakeScope{}
	}
	for _, f := range files {
		next[strings.TrimSuffix(f, ".kt")] = true
	}
	return next, nil
}

type fakeResolved struct {
	text   string
	no     int
	scope  fakeScope
	result string
	decls  []string
}

func (r *fakeResolved) Scope() Scope           { return r.scope }
func (r *fakeResolved) ResultName() string     { return r.result }
func (r *fakeResolved) ResultType() string     { return typeOf(r.result) }
func (r *fakeResolved) Declarations() []string { return r.decls }

func typeOf(result string) string {
	if result == "" {
		return ""
	}
	return "Int"
}

func (e *fakeEnv) Analyze(_ context.Context, text string, no int, scope Scope) (Resolved, []diag.Diagnostic) {
	e.mu.Lock()
	e.analyses++
	e.mu.Unlock()
	next := maps.Clone(scope.(fakeScope))
	if next == nil {
		next = fakeScope{}
	}
	r := &fakeResolved{text: text, no: no, scope: next}
	var ds []diag.Diagnostic
	off := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		stmt := strings.TrimSpace(line)
		start := off + strings.Index(line, stmt)
		off += len(line)
		r.result = ""
		switch {
		case stmt == "", strings.HasPrefix(stmt, "@dep "), strings.HasPrefix(stmt, "throw "), stmt == "block":
			continue
		case strings.HasPrefix(stmt, "val "):
			name, expr, _ := strings.Cut(strings.TrimPrefix(stmt, "val "), " = ")
			ds = append(ds, unresolved(text, start+strings.Index(stmt, expr), expr, next)...)
			next[name] = true
			r.decls = append(r.decls, "val "+name+": Int")
		default:
			ds = append(ds, unresolved(text, start, stmt, next)...)
			r.result = "res" + strconv.Itoa(no)
		}
	}
	if r.result != "" {
		next[r.result] = true
	}
	if diag.HasErrors(ds) {
		return nil, ds
	}
	return r, ds
}

func unresolved(text string, at int, expr string, scope fakeScope) []diag.Diagnostic {
	name, _, _ := strings.Cut(expr, " + ")
	if _, err := strconv.Atoi(name); err == nil || scope[name] {
		return nil
	}
	return []diag.Diagnostic{diag.New(text, at, at+len(name), diag.SeverityError, "Unresolved reference: "+name)}
}

type fakeExe struct {
	name string
	text string
	no   int
}

func (x *fakeExe) Name() string { return x.name }

func (e *fakeEnv) Generate(r Resolved, _ []*CompiledUnit) (Executable, error) {
	fr := r.(*fakeResolved)
	return &fakeExe{name: "Line_" + strconv.Itoa(fr.no), text: fr.text, no: fr.no}, nil
}

type fakeLoader struct {
	name   string
	parent Loader
}

func (l *fakeLoader) Name() string { return l.name }

func (e *fakeEnv) Execute(ctx context.Context, exe Executable, cfg ExecConfig) (Outcome, error) {
	e.mu.Lock()
	e.execs = append(e.execs, cfg)
	e.mu.Unlock()
	x := exe.(*fakeExe)
	inst := map[string]int{}
	out := Outcome{Loader: &fakeLoader{name: x.name, parent: cfg.Base}, Instance: inst}
	lookup := func(name string) int {
		if v, ok := inst[name]; ok {
			return v
		}
		for i := len(cfg.Instances) - 1; i >= 0; i-- {
			if m, ok := cfg.Instances[i].Instance.(map[string]int); ok {
				if v, ok := m[name]; ok {
					return v
				}
			}
		}
		v, _ := strconv.Atoi(name)
		return v
	}
	eval := func(expr string) int {
		a, b, ok := strings.Cut(expr, " + ")
		if !ok {
			return lookup(a)
		}
		return lookup(a) + lookup(b)
	}
	for _, stmt := range strings.Split(x.text, "\n") {
		stmt = strings.TrimSpace(stmt)
		out.HasResult = false
		switch {
		case stmt == "" || strings.HasPrefix(stmt, "@dep "):
		case stmt == "block":
			<-ctx.Done()
			return out, ctx.Err()
		case strings.HasPrefix(stmt, "throw "):
			out.Err = errors.New(strings.TrimPrefix(stmt, "throw "))
			return out, nil
		case strings.HasPrefix(stmt, "val "):
			name, expr, _ := strings.Cut(strings.TrimPrefix(stmt, "val "), " = ")
			inst[name] = eval(expr)
		default:
			v := eval(stmt)
			inst["res"+strconv.Itoa(x.no)] = v
			out.HasResult, out.Value, out.Text = true, v, strconv.Itoa(v)
		}
	}
	return out, nil
}

func (e *fakeEnv) Locate(_ context.Context, marked string, cursor int, scope Scope) (completion.Site, error) {
	if e.locateErr != nil {
		return completion.Site{}, e.locateErr
	}
	if !strings.HasSuffix(marked[:cursor+len(completion.Marker)], completion.Marker) {
		return completion.Site{}, fmt.Errorf("marker not at %d", cursor)
	}
	site := completion.Site{Kind: completion.SimpleName, Prefix: lastWord(marked[:cursor])}
	for name := range scope.(fakeScope) {
		site.Candidates = append(site.Candidates, types.NewVariable(name, nil, false, types.Public, types.OriginLine, 1))
	}
	return site, nil
}

func lastWord(s string) string {
	i := strings.LastIndexAny(s, " +=\n")
	return s[i+1:]
}

func (e *fakeEnv) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// fakeResolver resolves "ok:NAME" to NAME.kt and fails everything else.
type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	repos [][]string
}

func (r *fakeResolver) Resolve(_ context.Context, coordinate string, repositories []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, coordinate)
	r.repos = append(r.repos, repositories)
	if name, ok := strings.CutPrefix(coordinate, "ok:"); ok {
		return []string{name + ".kt"}, nil
	}
	return nil, errors.New("artifact not found")
}
