package repl

import (
	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/repl/history"
)

// LineID identifies a snippet within a session.
type LineID = history.LineID

// Snippet is one submission.
type Snippet struct {
	No   int
	Text string
	ID   LineID
}

// Replace returns the next generation of sn holding text, at the same
// position. Only a position nothing has been compiled at or after can
// take the replacement; Compile rejects the others with ErrSnippetOrder.
func (sn Snippet) Replace(text string) Snippet {
	return Snippet{No: sn.No, Text: text, ID: history.NewLineID(sn.No, sn.ID.Generation+1, text)}
}

// CompiledUnit is the executable artifact of one snippet. It is never
// modified after Compile returns it.
type CompiledUnit struct {
	ID      LineID
	Snippet Snippet
	// Declarations renders the snippet's top-level declarations.
	Declarations []string
	// ResultName and ResultType describe the value binding, if any.
	ResultName string
	ResultType string
	Executable Executable
}

// CheckStatus classifies a snippet without compiling it.
type CheckStatus int

const (
	CheckOk CheckStatus = iota
	CheckIncomplete
	CheckSyntaxError
)

func (s CheckStatus) String() string {
	switch s {
	case CheckIncomplete:
		return "incomplete"
	case CheckSyntaxError:
		return "syntax error"
	}
	return "ok"
}

// CheckResult is the answer of Check.
type CheckResult struct {
	Status CheckStatus
	// Message and Location describe the first syntax error.
	Message  string
	Location *diag.Location
}

// CompileStatus is the terminal state of a Compile call.
type CompileStatus int

const (
	Compiled CompileStatus = iota
	// Incomplete asks the caller to resubmit with more text.
	Incomplete
	Failed
)

func (s CompileStatus) String() string {
	switch s {
	case Incomplete:
		return "incomplete"
	case Failed:
		return "failed"
	}
	return "compiled"
}

// CompileResult is the answer of Compile.
type CompileResult struct {
	Status CompileStatus
	// Unit is set when Status is Compiled.
	Unit *CompiledUnit
	// Error is the primary diagnostic of a failed compile.
	Error *diag.Diagnostic
	// Diagnostics holds every diagnostic, warnings included.
	Diagnostics []diag.Diagnostic
}

// Message formats the primary error for display, or returns "".
func (r CompileResult) Message() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.String()
}

func failed(ds []diag.Diagnostic) CompileResult {
	r := CompileResult{Status: Failed, Diagnostics: ds}
	if p, ok := diag.Primary(ds); ok {
		r.Error = &p
	}
	return r
}

// EvaluatedSnippet is the outcome of evaluating one unit: exactly one of a
// value, unit or error result. It is immutable.
type EvaluatedSnippet struct {
	Unit   *CompiledUnit
	Config ExecConfig
	// Loader holds the classes the snippet defined. It is set even for
	// error results when the snippet got far enough to create it.
	Loader   Loader
	Instance any

	kind  resultKind
	value any
	text  string
	err   error
}

type resultKind int

const (
	unitResult resultKind = iota
	valueResult
	errorResult
)

func newValueResult(u *CompiledUnit, cfg ExecConfig, out Outcome) *EvaluatedSnippet {
	return &EvaluatedSnippet{Unit: u, Config: cfg, Loader: out.Loader, Instance: out.Instance, kind: valueResult, value: out.Value, text: out.Text}
}

func newUnitResult(u *CompiledUnit, cfg ExecConfig, out Outcome) *EvaluatedSnippet {
	return &EvaluatedSnippet{Unit: u, Config: cfg, Loader: out.Loader, Instance: out.Instance, kind: unitResult}
}

func newErrorResult(u *CompiledUnit, cfg ExecConfig, out Outcome, err error) *EvaluatedSnippet {
	return &EvaluatedSnippet{Unit: u, Config: cfg, Loader: out.Loader, Instance: out.Instance, kind: errorResult, err: err}
}

// ID is the id of the evaluated unit.
func (e *EvaluatedSnippet) ID() LineID { return e.Unit.ID }

// HasResult reports a value result.
func (e *EvaluatedSnippet) HasResult() bool { return e.kind == valueResult }

// IsUnit reports a unit result.
func (e *EvaluatedSnippet) IsUnit() bool { return e.kind == unitResult }

// IsError reports an error result.
func (e *EvaluatedSnippet) IsError() bool { return e.kind == errorResult }

// Value is the produced value of a value result.
func (e *EvaluatedSnippet) Value() any { return e.value }

// Text is the rendered value of a value result.
func (e *EvaluatedSnippet) Text() string { return e.text }

// Err is the error of an error result.
func (e *EvaluatedSnippet) Err() error { return e.err }

// SubmitResult combines the compile and the evaluation of a submission.
// Eval is nil unless the snippet compiled.
type SubmitResult struct {
	Compile CompileResult
	Eval    *EvaluatedSnippet
}
