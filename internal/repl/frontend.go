package repl

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/repl/completion"
)

// Frontend is the language implementation a Session drives. It is injected
// at construction; the session never looks one up.
type Frontend interface {
	// Open creates the environment of one session together with the
	// initial cumulative scope.
	Open(ctx context.Context, cfg EnvConfig) (Environment, Scope, error)
}

// EnvConfig configures an Environment.
type EnvConfig struct {
	// SessionID names the session in the frontend's logs.
	SessionID string
	Stdout    io.Writer
	Stdin     io.Reader
	Logger    *slog.Logger
	// EvalTimeout bounds each Execute; zero means no bound.
	EvalTimeout time.Duration
}

// Scope is the frontend's cumulative resolution scope: everything the
// successfully compiled snippets and the registered libraries declared.
// The session stores and hands it back but never looks inside.
type Scope any

// ParseStatus classifies a syntax-only parse.
type ParseStatus int

const (
	ParseComplete ParseStatus = iota
	// ParseIncomplete means every syntax error is at the end of the input.
	ParseIncomplete
	ParseError
)

// Annotation is a file annotation argument, e.g. the coordinate of a
// @file:DependsOn.
type Annotation struct {
	Value    string
	Location *diag.Location
}

// Parsed is the result of Environment.Parse.
type Parsed struct {
	Status ParseStatus
	// Errors holds the syntax errors, in source order.
	Errors       []diag.Diagnostic
	Dependencies []Annotation
	Repositories []Annotation
}

// Resolved is an analyzed snippet ready for code generation.
type Resolved interface {
	// Scope is the cumulative scope extended with the snippet.
	Scope() Scope
	// ResultName is the binding of the snippet value, e.g. res3, or "".
	ResultName() string
	ResultType() string
	// Declarations renders the snippet's top-level declarations.
	Declarations() []string
}

// Executable is the generated code of one snippet.
type Executable interface {
	Name() string
}

// Loader is a frontend class loader. Each evaluation defines its classes
// in a child of the loader it was given.
type Loader interface {
	Name() string
}

// ExecConfig is the evaluation configuration of one snippet.
type ExecConfig struct {
	// Base is the loader of the last evaluated snippet, nil for the first.
	Base Loader
	// Instances are the line instances of the evaluated snippets, oldest
	// first. A nil Instance belongs to a snippet that failed before
	// creating it.
	Instances []LineInstance
}

// LineInstance pairs an evaluated snippet with the instance holding its
// top-level declarations.
type LineInstance struct {
	ID       LineID
	Instance any
}

// Outcome is what an executed snippet produced.
type Outcome struct {
	Loader    Loader
	Instance  any
	HasResult bool
	Value     any
	// Text is Value rendered the way the language prints it.
	Text string
	// Err is the exception thrown by user code.
	Err error
}

// Environment is one session's view of the frontend. The session
// serializes writers and never calls Close concurrently with anything
// else; readers (Parse, Analyze, Locate) may run concurrently.
type Environment interface {
	// Parse classifies text without resolving anything.
	Parse(text string) Parsed
	// AddLibraries makes the declarations of library source files
	// importable, returning the extended scope.
	AddLibraries(ctx context.Context, files []string, scope Scope) (Scope, error)
	// Analyze resolves text as snippet number no against scope. A nil
	// Resolved comes with at least one error diagnostic.
	Analyze(ctx context.Context, text string, no int, scope Scope) (Resolved, []diag.Diagnostic)
	// Generate emits code for r, given every earlier compiled unit.
	Generate(r Resolved, prior []*CompiledUnit) (Executable, error)
	// Execute runs exe. User exceptions are reported in Outcome.Err; the
	// error return is for failures of the environment itself, including
	// cancellation of ctx.
	Execute(ctx context.Context, exe Executable, cfg ExecConfig) (Outcome, error)
	// Locate finds the completion site of marked, the text with
	// completion.Marker inserted at cursor.
	Locate(ctx context.Context, marked string, cursor int, scope Scope) (completion.Site, error)
	Close() error
}

// DependencyResolver turns a dependency coordinate or path into library
// source files.
type DependencyResolver interface {
	Resolve(ctx context.Context, coordinate string, repositories []string) ([]string, error)
}
