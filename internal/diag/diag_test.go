package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionOf(t *testing.T) {
	src := "val a = 1\nval é = \"x\"\n"
	assert.Equal(t, Position{Line: 1, Col: 1}, PositionOf(src, 0))
	assert.Equal(t, Position{Line: 1, Col: 5}, PositionOf(src, 4))
	assert.Equal(t, Position{Line: 2, Col: 1}, PositionOf(src, 10))
	// columns count runes: "é" is two bytes
	assert.Equal(t, Position{Line: 2, Col: 7}, PositionOf(src, 10+len("val é ")))
	assert.Equal(t, Position{Line: 1, Col: 1}, PositionOf(src, -3))
	assert.Equal(t, Position{Line: 3, Col: 1}, PositionOf(src, len(src)+10))
}

func TestLocationOf(t *testing.T) {
	loc := LocationOf("abc def", 4, 7)
	assert.Equal(t, Position{Line: 1, Col: 5}, loc.Start)
	assert.Equal(t, &Position{Line: 1, Col: 8}, loc.End)

	loc = LocationOf("abc", 2, 1)
	assert.Equal(t, loc.Start, *loc.End)
}

func TestString(t *testing.T) {
	d := New("x + foo", 4, 7, SeverityError, "Unresolved reference: foo")
	assert.Equal(t, "1:5: ERROR: Unresolved reference: foo", d.String())
	assert.Equal(t, d.String(), d.Error())
	assert.Equal(t, "WARNING: careful", Diagnostic{Message: "careful", Severity: SeverityWarning}.String())
}

func TestRender(t *testing.T) {
	src := "val a = 1\nval b = a + foo\nval c = 2\nval d = 3"
	d := New(src, 22, 25, SeverityError, "Unresolved reference: foo")
	assert.Equal(t, "2:13: ERROR: Unresolved reference: foo\n"+
		"1 | val a = 1\n"+
		"2 | val b = a + foo\n"+
		"  |             ^^^\n"+
		"3 | val c = 2", d.Render(src))

	// a multi-line range gets a single caret
	d = New(src, 0, 12, SeverityWarning, "w")
	assert.Equal(t, "1:1: WARNING: w\n1 | val a = 1\n  | ^\n2 | val b = a + foo", d.Render(src))

	// the gutter widens with the largest line number shown
	long := "1\n2\n3\n4\n5\n6\n7\n8\n9\nx\n11"
	d = New(long, 18, 19, SeverityError, "e")
	assert.Equal(t, "10:1: ERROR: e\n 9 | 9\n10 | x\n   | ^\n11 | 11", d.Render(long))

	assert.Equal(t, "FATAL: boom", Diagnostic{Message: "boom", Severity: SeverityFatal}.Render(src))
}

func TestPrimary(t *testing.T) {
	_, ok := Primary([]Diagnostic{{Severity: SeverityWarning, Message: "w"}})
	assert.False(t, ok)

	loc := &Location{Start: Position{Line: 1, Col: 1}}
	ds := []Diagnostic{
		{Severity: SeverityWarning, Message: "w", Location: loc},
		{Severity: SeverityError, Message: "no location"},
		{Severity: SeverityError, Message: "located", Location: loc},
		{Severity: SeverityError, Message: "second located", Location: loc},
	}
	d, ok := Primary(ds)
	assert.True(t, ok)
	assert.Equal(t, "located", d.Message)

	d, _ = Primary(append(ds, Diagnostic{Severity: SeverityFatal, Message: "fatal"}))
	assert.Equal(t, "fatal", d.Message)
}

func TestHasErrors(t *testing.T) {
	assert.False(t, HasErrors(nil))
	assert.False(t, HasErrors([]Diagnostic{{Severity: SeverityWarning}}))
	assert.True(t, HasErrors([]Diagnostic{{Severity: SeverityWarning}, {Severity: SeverityFatal}}))
	assert.True(t, SeverityError.IsError())
	assert.False(t, SeverityWarning.IsError())
}
