// Package diag defines the diagnostic shape shared by the REPL core and the
// language frontend, plus a caret renderer for terminal output.
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
)

// rank orders severities so that FATAL outranks ERROR outranks WARNING.
func (s Severity) rank() int {
	switch s {
	case SeverityFatal:
		return 2
	case SeverityError:
		return 1
	default:
		return 0
	}
}

// IsError reports whether s is ERROR or FATAL.
func (s Severity) IsError() bool { return s.rank() > 0 }

// Position is a 1-based line/column pair.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Location is a source range. End is exclusive and may be nil.
type Location struct {
	Start Position  `json:"start"`
	End   *Position `json:"end,omitempty"`
}

// Diagnostic is a single compiler message.
type Diagnostic struct {
	Location *Location `json:"location"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

// New builds a diagnostic located at the byte range [start, end) of src.
func New(src string, start, end int, sev Severity, msg string) Diagnostic {
	loc := LocationOf(src, start, end)
	return Diagnostic{Location: &loc, Message: msg, Severity: sev}
}

// LocationOf converts a byte range of src to a Location.
func LocationOf(src string, start, end int) Location {
	s := PositionOf(src, start)
	if end < start {
		end = start
	}
	e := PositionOf(src, end)
	return Location{Start: s, End: &e}
}

// PositionOf converts a byte offset of src to a 1-based position. Columns
// count runes, not bytes.
func PositionOf(src string, offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(src) {
		offset = len(src)
	}
	line := 1 + strings.Count(src[:offset], "\n")
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	return Position{Line: line, Col: 1 + len([]rune(src[lineStart:offset]))}
}

// String formats the diagnostic as "line:col: SEVERITY: message".
func (d Diagnostic) String() string {
	if d.Location == nil {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Location.Start.Line, d.Location.Start.Col, d.Severity, d.Message)
}

// Error lets a diagnostic travel as an error value.
func (d Diagnostic) Error() string { return d.String() }

// Render returns the diagnostic with up to one line of context on either
// side and a caret under the start column.
func (d Diagnostic) Render(src string) string {
	if d.Location == nil {
		return d.String()
	}
	lines := strings.Split(src, "\n")
	line := d.Location.Start.Line
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	col := d.Location.Start.Col
	if col < 1 {
		col = 1
	}
	width := 1
	if d.Location.End != nil && d.Location.End.Line == d.Location.Start.Line && d.Location.End.Col > col {
		width = d.Location.End.Col - col
	}

	var b strings.Builder
	b.WriteString(d.String())
	b.WriteString("\n")
	gutter := len(fmt.Sprint(min(line+1, len(lines))))
	for i := max(1, line-1); i <= min(len(lines), line+1); i++ {
		fmt.Fprintf(&b, "%*d | %s\n", gutter, i, lines[i-1])
		if i == line {
			fmt.Fprintf(&b, "%s | %s%s\n", strings.Repeat(" ", gutter), strings.Repeat(" ", col-1), strings.Repeat("^", width))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Primary picks the diagnostic surfaced to non-IDE callers: the first one of
// the highest error severity that carries a location, falling back to the
// first error of the highest severity. ok is false when there are no errors.
func Primary(ds []Diagnostic) (Diagnostic, bool) {
	best := -1
	for i, d := range ds {
		if !d.Severity.IsError() {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := ds[best]
		switch {
		case d.Severity.rank() > b.Severity.rank():
			best = i
		case d.Severity.rank() == b.Severity.rank() && b.Location == nil && d.Location != nil:
			best = i
		}
	}
	if best < 0 {
		return Diagnostic{}, false
	}
	return ds[best], true
}

// HasErrors reports whether any diagnostic is ERROR or FATAL.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity.IsError() {
			return true
		}
	}
	return false
}
