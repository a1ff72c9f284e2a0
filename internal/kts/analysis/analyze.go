// Package analysis resolves names and checks types of parsed snippets and
// library files.
package analysis

import (
	"errors"
	"strings"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

// Config describes the environment of one snippet.
type Config struct {
	// Line is the snippet number, starting at 1.
	Line int
	// Scope is everything compiled before the snippet.
	Scope    *types.ReplScope
	Builtins *Builtins
}

// Analyze checks a parsed snippet. Diagnostics are returned in the order
// they were found; the Info is usable even when there are errors.
func Analyze(f *syntax.File, src string, cfg Config) (*Info, []diag.Diagnostic) {
	b := cfg.Builtins
	if b == nil {
		b = LoadBuiltins()
	}
	scope := cfg.Scope
	if scope == nil {
		scope = types.NewReplScope(b.Table)
	}
	c := newChecker(f, src, cfg.Line, "", types.OriginLine, scope, b)
	if f.Package != nil {
		c.errorAt(f.Package, "Package directives are not allowed in snippets")
	}
	c.importDirectives()
	c.annotations()
	c.declareShells()
	c.declareHeaders()
	c.declareFunctions()
	c.snippet()
	c.classBodies()
	c.finish()
	return c.info, c.diags
}

// Source is one library source file.
type Source struct {
	Name string
	Text string
}

// LibraryConfig describes where library declarations go.
type LibraryConfig struct {
	// Table receives the declarations.
	Table *types.PackageTable
	// Scope provides the packages the library may use besides its own.
	Scope    *types.ReplScope
	Builtins *Builtins
	// Origin is OriginBuiltin for the standard library stubs and
	// OriginPackage otherwise.
	Origin types.Origin
}

// FileError is a diagnostic in a named library file.
type FileError struct {
	File string
	diag.Diagnostic
}

func (e *FileError) Error() string { return e.File + ":" + e.Diagnostic.String() }

// AnalyzeLibrary checks a set of library files as one unit: declarations
// of every file are entered before any body is checked. The error joins a
// FileError per error diagnostic.
func AnalyzeLibrary(srcs []Source, cfg LibraryConfig) ([]*Info, error) {
	if cfg.Table == nil {
		return nil, errors.New("analysis: library without a package table")
	}
	scope := types.NewReplScope(cfg.Table)
	if cfg.Scope != nil {
		scope = cfg.Scope.WithProviders(cfg.Table)
	}
	var (
		checkers []*checker
		names    []string
		errs     []error
	)
	for _, src := range srcs {
		f, perrs := syntax.Parse(src.Text)
		for _, e := range perrs {
			errs = append(errs, &FileError{File: src.Name, Diagnostic: diag.New(src.Text, e.Start, e.End, diag.SeverityError, e.Message)})
		}
		pkg := packageName(f)
		if pkg == "" {
			errs = append(errs, &FileError{File: src.Name, Diagnostic: diag.New(src.Text, 0, 0, diag.SeverityError, "Library files must declare a package")})
			continue
		}
		cfg.Table.AddPackage(pkg)
		c := newChecker(f, src.Text, 0, pkg, cfg.Origin, scope, cfg.Builtins)
		c.table = cfg.Table
		checkers = append(checkers, c)
		names = append(names, src.Name)
	}
	phase := func(run func(c *checker)) {
		for _, c := range checkers {
			run(c)
		}
	}
	phase((*checker).importDirectives)
	phase((*checker).declareShells)
	if cfg.Builtins == nil {
		b := builtinsFrom(cfg.Table)
		phase(func(c *checker) { c.b = b })
	}
	phase((*checker).declareHeaders)
	phase((*checker).declareFunctions)
	phase((*checker).library)
	phase((*checker).classBodies)
	phase((*checker).finish)

	infos := make([]*Info, 0, len(checkers))
	for i, c := range checkers {
		infos = append(infos, c.info)
		for _, d := range c.diags {
			if d.Severity.IsError() {
				errs = append(errs, &FileError{File: names[i], Diagnostic: d})
			}
		}
	}
	return infos, errors.Join(errs...)
}

func packageName(f *syntax.File) string {
	if f.Package == nil {
		return ""
	}
	names := make([]string, len(f.Package.Path))
	for i, n := range f.Package.Path {
		names[i] = n.Text
	}
	return strings.Join(names, ".")
}
