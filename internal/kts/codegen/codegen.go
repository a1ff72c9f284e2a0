// Package codegen translates analyzed snippets and library files into
// JavaScript programs for the runtime package.
//
// A snippet becomes a function expression
//
//	(function ($earlier, $rt) { ... return {instance, result, hasResult}; })
//
// whose top-level declarations are fields of the line instance. Earlier
// lines are reached through $earlier[N], library packages through
// $rt.pkg("fq") and builtins through the slot table $rt.b.
package codegen

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/ileasile/kotlin/internal/kts/analysis"
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

// ErrUnknownLine is returned when a snippet refers to a line that is not
// among the earlier units it was generated against.
var ErrUnknownLine = errors.New("codegen: reference to a snippet that was not compiled")

// Unit is a generated program.
type Unit struct {
	// Name is Line_N for snippets and the package list for libraries.
	Name   string
	Line   int
	Source string
	// Program evaluates to the snippet function.
	Program *goja.Program
	// HasResult reports whether running the unit binds ResultName.
	HasResult  bool
	ResultName string
	ResultType *types.Type
	// Classes lists the qualified names of the classes the unit defines.
	Classes []string
	// Uses lists the earlier lines the unit reads, ascending.
	Uses []int
}

// ResultIsDouble reports whether the result is rendered as a Double.
func (u *Unit) ResultIsDouble() bool {
	return u.ResultType != nil && u.ResultType.Is(types.DoubleName)
}

// Generate translates an analyzed snippet. earlier holds the units of
// every line compiled before it; references to lines outside that list are
// rejected.
func Generate(info *analysis.Info, earlier []*Unit) (*Unit, error) {
	if info == nil || info.Line <= 0 {
		return nil, errors.New("codegen: snippet info without a line number")
	}
	g := newGen(info, &writer{})
	g.snippet()

	known := make(map[int]bool, len(earlier))
	for _, u := range earlier {
		known[u.Line] = true
	}
	u := &Unit{
		Name:    lineName(info.Line),
		Line:    info.Line,
		Source:  g.out.String(),
		Classes: g.classes,
	}
	for l := range g.uses {
		if !known[l] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLine, lineName(l))
		}
		u.Uses = append(u.Uses, l)
	}
	slices.Sort(u.Uses)
	if r := info.Result; r != nil {
		u.HasResult = true
		u.ResultName = r.Name()
		u.ResultType = r.Type
	}
	prg, err := goja.Compile(u.Name+".js", u.Source, true)
	if err != nil {
		return nil, fmt.Errorf("codegen: %s: %w", u.Name, err)
	}
	u.Program = prg
	return u, nil
}

// GenerateLibrary translates the files of one library. The program
// evaluates to a function of $rt that defines every declaration on its
// package object: classes first, then functions, then properties in file
// order.
func GenerateLibrary(name string, infos []*analysis.Info) (*Unit, error) {
	w := &writer{}
	gens := make([]*gen, len(infos))
	var classes []string
	w.line("(function ($rt) {")
	w.depth++
	w.line(`"use strict";`)
	w.line("const $b = $rt.b;")
	for i, info := range infos {
		gens[i] = newGen(info, w)
		gens[i].classDecls()
	}
	for _, g := range gens {
		g.topFunctions()
	}
	for _, g := range gens {
		for _, st := range g.info.File.Stmts {
			if d, ok := st.(*syntax.PropertyDecl); ok {
				g.topProperty(d)
			}
		}
		classes = append(classes, g.classes...)
	}
	w.depth--
	w.line("})")
	u := &Unit{Name: name, Source: w.String(), Classes: classes}
	prg, err := goja.Compile(name+".js", u.Source, true)
	if err != nil {
		return nil, fmt.Errorf("codegen: %s: %w", name, err)
	}
	u.Program = prg
	return u, nil
}

func lineName(n int) string { return "Line_" + strconv.Itoa(n) }

type writer struct {
	b     strings.Builder
	depth int
}

func (w *writer) line(s string) {
	for range w.depth {
		w.b.WriteString("  ")
	}
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *writer) String() string { return w.b.String() }

type gen struct {
	info   *analysis.Info
	lineNo int
	out    *writer
	locals map[types.Descriptor]string
	nlocal int
	ntemp  int
	uses   map[int]bool
	// result is the declared result type of the function being emitted.
	result *types.Type
	// loops holds, per enclosing loop, the label that continue must break
	// to, or "" for a plain continue.
	loops   []string
	hoisted map[*syntax.PropertyDecl]bool
	classes []string
}

func newGen(info *analysis.Info, w *writer) *gen {
	return &gen{
		info:   info,
		lineNo: info.Line,
		out:    w,
		locals: map[types.Descriptor]string{},
		uses:   map[int]bool{},

		hoisted: map[*syntax.PropertyDecl]bool{},
	}
}

func (g *gen) printf(format string, args ...any) {
	g.out.line(fmt.Sprintf(format, args...))
}

// capture emits into a fresh writer, one level deeper than the current one.
func (g *gen) capture(fn func()) string {
	saved := g.out
	g.out = &writer{depth: saved.depth + 1}
	fn()
	s := g.out.String()
	g.out = saved
	return s
}

func (g *gen) pad() string { return strings.Repeat("  ", g.out.depth) }

func (g *gen) temp(prefix string) string {
	g.ntemp++
	return prefix + strconv.Itoa(g.ntemp)
}

// local returns the JavaScript name of a local declaration. Names carry a
// counter so shadowing and initializers that read the shadowed name work.
func (g *gen) local(d types.Descriptor) string {
	if n, ok := g.locals[d]; ok {
		return n
	}
	g.nlocal++
	n := sanitize(d.Name()) + "$" + strconv.Itoa(g.nlocal)
	g.locals[d] = n
	return n
}

func sanitize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func isIdent(s string) bool {
	return s != "" && sanitize(s) == s && (s[0] < '0' || s[0] > '9')
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// prop renders a property access.
func prop(obj, key string) string {
	if isIdent(key) {
		return obj + "." + key
	}
	return obj + "[" + jsString(key) + "]"
}

func builtin(key string) string { return prop("$b", key) }

func pkgRef(fq string) string { return "$rt.pkg(" + jsString(fq) + ")" }

func (g *gen) lineRef(n int) string {
	if n == g.lineNo {
		return "$this"
	}
	g.uses[n] = true
	return "$earlier[" + strconv.Itoa(n) + "]"
}

// topRef locates a top-level declaration of a line or a library package.
func (g *gen) topRef(d types.Descriptor, key string) string {
	if p, ok := d.Container().(*types.PackageDescriptor); ok {
		return prop(pkgRef(p.FQName), key)
	}
	return prop(g.lineRef(d.Line()), key)
}

func (g *gen) classRef(cls *types.ClassDescriptor) string {
	if o := cls.Outer(); o != nil {
		return prop(g.classRef(o), cls.Name())
	}
	return g.topRef(cls, cls.Name())
}

func (g *gen) funRef(f *types.FunctionDescriptor) string {
	switch f.Origin {
	case types.OriginLocal:
		return g.local(f)
	case types.OriginBuiltin:
		return builtin(f.Key)
	}
	return g.topRef(f, f.Key)
}

func isMember(d types.Descriptor) bool {
	_, ok := d.Container().(*types.ClassDescriptor)
	return ok
}

// readVar renders a read of v through recv, the receiver expression for
// members.
func (g *gen) readVar(v *types.VariableDescriptor, recv string) string {
	switch v.Origin {
	case types.OriginLocal:
		return g.local(v)
	case types.OriginBuiltin:
		if isMember(v) {
			return builtin(v.Key) + "(" + recv + ")"
		}
		return builtin(v.Key)
	case types.OriginMember:
		return prop(recv, v.Key)
	}
	return g.topRef(v, v.Key)
}

// implicit renders the receiver a reference reaches without `this`.
func (g *gen) implicit(ref *analysis.Ref) string {
	switch ref.Receiver {
	case analysis.ClassReceiver:
		s := "this"
		for range ref.Hops {
			s += ".$outer"
		}
		return s
	case analysis.ExtensionReceiver:
		return "$recv"
	}
	return ""
}
