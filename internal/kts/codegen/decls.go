package codegen

import (
	"strconv"
	"strings"

	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

// snippet emits the function for one REPL line. Classes and functions are
// defined before the statements run, matching the order in which the
// analyzer enters them.
func (g *gen) snippet() {
	g.printf("(function ($earlier, $rt) {")
	g.out.depth++
	g.printf(`"use strict";`)
	g.printf("const $b = $rt.b;")
	g.printf("const $this = $rt.begin(%d);", g.lineNo)
	g.classDecls()
	g.topFunctions()

	stmts := g.info.File.Stmts
	for i, st := range stmts {
		switch st := st.(type) {
		case *syntax.ClassDecl, *syntax.FunDecl:
		case *syntax.PropertyDecl:
			g.topProperty(st)
		case *syntax.ExprStmt:
			if i == len(stmts)-1 && g.info.Result != nil && st.X == g.info.ResultExpr {
				g.printf("%s = %s;", prop("$this", g.info.Result.Key), g.expr(st.X))
				continue
			}
			g.stmt(st)
		default:
			g.stmt(st)
		}
	}
	if r := g.info.Result; r != nil {
		g.printf("return {instance: $this, result: %s, hasResult: true};", prop("$this", r.Key))
	} else {
		g.printf("return {instance: $this, result: undefined, hasResult: false};")
	}
	g.out.depth--
	g.printf("})")
}

// home is the object top-level declarations of the current file live on.
func (g *gen) home() string {
	if g.lineNo == 0 {
		return pkgRef(g.info.Package)
	}
	return "$this"
}

func (g *gen) classDecls() {
	for _, st := range g.info.File.Stmts {
		d, ok := st.(*syntax.ClassDecl)
		if !ok {
			continue
		}
		if cls, ok := g.info.Decls[d].(*types.ClassDescriptor); ok {
			g.class(d, cls, prop(g.home(), cls.Name()))
		}
	}
}

func (g *gen) topFunctions() {
	for _, st := range g.info.File.Stmts {
		d, ok := st.(*syntax.FunDecl)
		if !ok {
			continue
		}
		if f, ok := g.info.Decls[d].(*types.FunctionDescriptor); ok {
			g.printf("%s = %s;", prop(g.home(), f.Key), g.function(d, f, false))
		}
	}
}

func (g *gen) topProperty(d *syntax.PropertyDecl) {
	v, ok := g.info.Decls[d].(*types.VariableDescriptor)
	if !ok || d.Init == nil {
		return
	}
	g.printf("%s = %s;", prop(g.home(), v.Key), g.valueAs(d.Init, v.Type))
}

// function renders a function literal. Local functions are arrows so that
// `this` keeps referring to the enclosing instance.
func (g *gen) function(d *syntax.FunDecl, f *types.FunctionDescriptor, arrow bool) string {
	params := g.params(d, f)
	saved := g.result
	g.result = f.Result
	savedLoops := g.loops
	g.loops = nil
	body := g.capture(func() { g.funBody(d, f) })
	g.result = saved
	g.loops = savedLoops
	if arrow {
		return "(" + params + ") => {\n" + body + g.pad() + "}"
	}
	return "function (" + params + ") {\n" + body + g.pad() + "}"
}

func (g *gen) params(d *syntax.FunDecl, f *types.FunctionDescriptor) string {
	var ps []string
	if f.Receiver != nil {
		ps = append(ps, "$recv")
	}
	for i, p := range d.Params {
		v, ok := g.info.Decls[p]
		if !ok {
			ps = append(ps, "_$"+strconv.Itoa(i))
			continue
		}
		name := g.local(v)
		if p.Default != nil && i < len(f.Params) {
			name += " = " + g.valueAs(p.Default, f.Params[i].Type)
		}
		ps = append(ps, name)
	}
	return strings.Join(ps, ", ")
}

func (g *gen) funBody(d *syntax.FunDecl, f *types.FunctionDescriptor) {
	switch {
	case d.ExprBody != nil:
		if t := g.info.TypeOf(d.ExprBody); t.IsNothing() && !t.Nullable {
			g.exprStmt(d.ExprBody)
			return
		}
		g.printf("return %s;", g.valueAs(d.ExprBody, f.Result))
	case d.Body != nil:
		g.stmts(d.Body.Stmts)
	}
}

// class emits a class expression assigned to target, then its nested
// classes as properties of it.
func (g *gen) class(d *syntax.ClassDecl, cls *types.ClassDescriptor, target string) {
	g.classes = append(g.classes, cls.QualifiedName())
	g.printf("%s = class extends $b.KObject {", target)
	g.out.depth++
	g.constructor(d, cls)
	for _, m := range d.Members {
		fd, ok := m.(*syntax.FunDecl)
		if !ok {
			continue
		}
		f, ok := g.info.Decls[fd].(*types.FunctionDescriptor)
		if !ok {
			continue
		}
		fn := g.function(fd, f, false)
		g.printf("%s%s", methodName(f.Key), strings.TrimPrefix(fn, "function "))
	}
	if cls.Data {
		g.dataMembers(d, cls)
	}
	g.out.depth--
	g.printf("};")
	g.printf("$rt.define(%s, %s);", jsString(cls.QualifiedName()), target)
	for _, m := range d.Members {
		if nd, ok := m.(*syntax.ClassDecl); ok {
			if nested, ok := g.info.Decls[nd].(*types.ClassDescriptor); ok {
				g.class(nd, nested, prop(target, nested.Name()))
			}
		}
	}
}

func methodName(key string) string {
	if isIdent(key) {
		return key
	}
	return "[" + jsString(key) + "]"
}

// constructor runs property parameters, then member initializers and init
// blocks in declaration order.
func (g *gen) constructor(d *syntax.ClassDecl, cls *types.ClassDescriptor) {
	var ps []string
	if cls.Inner {
		ps = append(ps, "$outer")
	}
	names := make([]string, len(d.CtorParams))
	for i, p := range d.CtorParams {
		pv, ok := g.info.Decls[p.Name]
		if !ok {
			names[i] = "_$" + strconv.Itoa(i)
		} else {
			names[i] = g.local(pv)
		}
		s := names[i]
		if p.Default != nil && cls.Constructor != nil && i < len(cls.Constructor.Params) {
			s += " = " + g.valueAs(p.Default, cls.Constructor.Params[i].Type)
		}
		ps = append(ps, s)
	}
	g.printf("constructor(%s) {", strings.Join(ps, ", "))
	g.out.depth++
	g.printf("super();")
	if cls.Inner {
		g.printf("this.$outer = $outer;")
	}
	for i, p := range d.CtorParams {
		if v, ok := g.info.Decls[p].(*types.VariableDescriptor); ok && p.Property {
			g.printf("%s = %s;", prop("this", v.Key), names[i])
		}
	}
	for _, m := range d.Members {
		switch m := m.(type) {
		case *syntax.PropertyDecl:
			v, ok := g.info.Decls[m].(*types.VariableDescriptor)
			if !ok {
				continue
			}
			init := "null"
			if m.Init != nil {
				init = g.valueAs(m.Init, v.Type)
			}
			g.printf("%s = %s;", prop("this", v.Key), init)
		case *syntax.InitBlock:
			g.printf("{")
			g.out.depth++
			g.stmts(m.Body.Stmts)
			g.out.depth--
			g.printf("}")
		}
	}
	g.out.depth--
	g.printf("}")
}

// dataMembers emits the members a data class derives from its property
// parameters, unless the class declares them itself.
func (g *gen) dataMembers(d *syntax.ClassDecl, cls *types.ClassDescriptor) {
	declared := map[string]bool{}
	for _, m := range d.Members {
		if fd, ok := m.(*syntax.FunDecl); ok && len(fd.Params) <= 1 {
			declared[fd.Name.Text] = true
		}
	}
	var props []*types.VariableDescriptor
	for _, p := range d.CtorParams {
		if v, ok := g.info.Decls[p].(*types.VariableDescriptor); ok && p.Property {
			props = append(props, v)
		}
	}
	if len(props) == 0 {
		return
	}
	if !declared["toString"] {
		parts := make([]string, len(props))
		for i, v := range props {
			label := v.Name() + "="
			if i == 0 {
				label = cls.Name() + "(" + label
			} else {
				label = ", " + label
			}
			parts[i] = jsString(label) + " + " + g.str(prop("this", v.Key), v.Type)
		}
		g.printf("toString() { return %s + \")\"; }", strings.Join(parts, " + "))
	}
	if !declared["equals"] {
		conds := []string{"o instanceof this.constructor"}
		for _, v := range props {
			conds = append(conds, "$b.eq("+prop("this", v.Key)+", "+prop("o", v.Key)+")")
		}
		g.printf("equals(o) { return %s; }", strings.Join(conds, " && "))
	}
	if !declared["hashCode"] {
		fields := make([]string, len(props))
		for i, v := range props {
			fields[i] = prop("this", v.Key)
		}
		g.printf("hashCode() { return $b.hashOf([%s]); }", strings.Join(fields, ", "))
	}
	for _, m := range cls.DeclaredMembers() {
		f, ok := m.(*types.FunctionDescriptor)
		if !ok || !strings.HasPrefix(f.Name(), "component") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(f.Name(), "component"))
		if err != nil || n < 1 || n > len(props) {
			continue
		}
		g.printf("%s() { return %s; }", methodName(f.Key), prop("this", props[n-1].Key))
	}
	ps := make([]string, len(props))
	args := make([]string, len(props))
	for i, v := range props {
		args[i] = "c$" + strconv.Itoa(i+1)
		ps[i] = args[i] + " = " + prop("this", v.Key)
	}
	if cls.Inner {
		args = append([]string{"this.$outer"}, args...)
	}
	key := "copy"
	for _, m := range cls.MembersNamed("copy") {
		if f, ok := m.(*types.FunctionDescriptor); ok && f.Container() == cls {
			key = f.Key
			break
		}
	}
	g.printf("%s(%s) { return new this.constructor(%s); }", methodName(key), strings.Join(ps, ", "), strings.Join(args, ", "))
}
