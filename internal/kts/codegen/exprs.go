package codegen

import (
	"strconv"
	"strings"

	"github.com/ileasile/kotlin/internal/kts/analysis"
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

func (g *gen) expr(x syntax.Expr) string {
	switch x := x.(type) {
	case *syntax.IntLit:
		return strconv.FormatInt(x.Value, 10)
	case *syntax.DoubleLit:
		return strconv.FormatFloat(x.Value, 'g', -1, 64)
	case *syntax.BoolLit:
		return strconv.FormatBool(x.Value)
	case *syntax.NullLit:
		return "null"
	case *syntax.StringLit:
		return g.template(x)
	case *syntax.ThisExpr:
		if r := g.info.Refs[x]; r != nil && r.Receiver == analysis.ExtensionReceiver {
			return "$recv"
		}
		return "this"
	case *syntax.ParenExpr:
		return "(" + g.expr(x.X) + ")"
	case *syntax.Ident:
		r := g.info.Refs[x]
		if r == nil {
			return "undefined"
		}
		v, ok := r.Desc.(*types.VariableDescriptor)
		if !ok {
			return "undefined"
		}
		return g.readVar(v, g.implicit(r))
	case *syntax.MemberExpr:
		return g.member(x)
	case *syntax.UnaryExpr:
		return g.unary(x)
	case *syntax.PostfixExpr:
		if x.Op == syntax.NotNull {
			return "$b.nn(" + g.expr(x.X) + ")"
		}
		return g.incDec(x.X, x.Op, false)
	case *syntax.BinaryExpr:
		return g.binary(x)
	case *syntax.CallExpr, *syntax.IndexExpr:
		return g.call(x)
	case *syntax.IfExpr:
		if g.info.ValueIfs[x] {
			return g.ifValue(x, nil)
		}
		// A statement if in expression position yields Unit.
		return g.blockValue(&syntax.Block{Stmts: []syntax.Stmt{&syntax.ExprStmt{X: x}}}, nil)
	case *syntax.ThrowExpr:
		return "$b.raise(" + g.expr(x.X) + ")"
	}
	return "undefined"
}

// valueAs renders x flowing into a slot of type want. Doubles entering a
// slot that is not statically a Double are boxed so that they keep their
// Double rendering.
func (g *gen) valueAs(x syntax.Expr, want *types.Type) string {
	if p, ok := x.(*syntax.ParenExpr); ok {
		return "(" + g.valueAs(p.X, want) + ")"
	}
	if ifx, ok := x.(*syntax.IfExpr); ok && g.info.ValueIfs[ifx] {
		return g.ifValue(ifx, want)
	}
	js := g.expr(x)
	if boxes(g.info.TypeOf(x), want) {
		return "$b.dbl(" + js + ")"
	}
	return js
}

func boxes(got, want *types.Type) bool {
	if got.IsError() || want == nil || want.IsError() || !got.Is(types.DoubleName) {
		return false
	}
	return want.Param != nil || want.Is(types.AnyName)
}

func (g *gen) ifValue(x *syntax.IfExpr, want *types.Type) string {
	cond := g.expr(x.Cond)
	then, ok1 := g.simpleValue(x.Then, want)
	els, ok2 := g.simpleValue(x.Else, want)
	if !ok1 {
		then = g.blockValue(x.Then, want)
	}
	if !ok2 {
		els = g.blockValue(x.Else, want)
	}
	return "(" + cond + " ? " + then + " : " + els + ")"
}

// simpleValue renders a branch holding a single value expression.
func (g *gen) simpleValue(b *syntax.Block, want *types.Type) (string, bool) {
	if b == nil {
		return "undefined", true
	}
	if len(b.Stmts) != 1 {
		return "", false
	}
	es, ok := b.Stmts[0].(*syntax.ExprStmt)
	if !ok || g.stmtIf(es.X) {
		return "", false
	}
	if _, ok := es.X.(*syntax.ThrowExpr); ok {
		return g.expr(es.X), true
	}
	return g.valueAs(es.X, want), true
}

func (g *gen) stmtIf(x syntax.Expr) bool {
	ifx, ok := x.(*syntax.IfExpr)
	return ok && !g.info.ValueIfs[ifx]
}

// blockValue renders a block as an arrow called in place; its last
// expression statement is the value.
func (g *gen) blockValue(b *syntax.Block, want *types.Type) string {
	body := g.capture(func() {
		stmts := b.Stmts
		if n := len(stmts); n > 0 {
			if es, ok := stmts[n-1].(*syntax.ExprStmt); ok && !g.stmtIf(es.X) {
				g.stmts(stmts[:n-1])
				if _, ok := es.X.(*syntax.ThrowExpr); ok {
					g.exprStmt(es.X)
					return
				}
				g.printf("return %s;", g.valueAs(es.X, want))
				return
			}
		}
		g.stmts(stmts)
	})
	return "(() => {\n" + body + g.pad() + "})()"
}

func (g *gen) template(x *syntax.StringLit) string {
	if len(x.Parts) == 0 {
		return `""`
	}
	parts := make([]string, 0, len(x.Parts))
	for _, p := range x.Parts {
		if p.Expr == nil {
			parts = append(parts, jsString(p.Text))
			continue
		}
		parts = append(parts, g.str(g.expr(p.Expr), g.info.TypeOf(p.Expr)))
	}
	if len(parts) == 1 {
		if x.Parts[0].Expr == nil {
			return parts[0]
		}
		return "(\"\" + " + parts[0] + ")"
	}
	if x.Parts[0].Expr != nil {
		parts = append([]string{`""`}, parts...)
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

// str converts a value of static type t to its string form.
func (g *gen) str(js string, t *types.Type) string {
	switch {
	case t == nil || t.IsError():
		return "$b.str(" + js + ")"
	case t.Is(types.StringName) && !t.Nullable:
		return js
	case t.Is(types.DoubleName):
		return "$b.strD(" + js + ")"
	}
	return "$b.str(" + js + ")"
}

func (g *gen) member(x *syntax.MemberExpr) string {
	r := g.info.Refs[x]
	if r == nil {
		return "undefined"
	}
	v, ok := r.Desc.(*types.VariableDescriptor)
	if !ok {
		return "undefined"
	}
	if !isMember(v) {
		return g.readVar(v, "")
	}
	recv := g.expr(x.X)
	if x.Safe {
		return g.safe(recv, func(r string) string { return g.readVar(v, r) })
	}
	return g.readVar(v, recv)
}

// safe renders body applied to recv, or null when recv is null. body runs
// only for a non-null receiver, so its arguments are not evaluated either.
func (g *gen) safe(recv string, body func(string) string) string {
	r := g.temp("$r")
	return "((" + r + ") => " + r + " == null ? null : " + body(r) + ")(" + recv + ")"
}

func (g *gen) unary(x *syntax.UnaryExpr) string {
	switch x.Op {
	case syntax.Bang:
		return "!" + g.expr(x.X)
	case syntax.PlusPlus, syntax.MinusMinus:
		return g.incDec(x.X, x.Op, true)
	case syntax.Minus:
		if g.info.TypeOf(x.X).Is(types.IntName) {
			return "((-" + g.expr(x.X) + ") | 0)"
		}
		return "(-" + g.expr(x.X) + ")"
	case syntax.Plus:
		return "(+" + g.expr(x.X) + ")"
	}
	return g.expr(x.X)
}

var jsCompare = map[syntax.Kind]string{
	syntax.Less:      "<",
	syntax.LessEq:    "<=",
	syntax.Greater:   ">",
	syntax.GreaterEq: ">=",
}

func (g *gen) binary(x *syntax.BinaryExpr) string {
	call := g.info.Calls[x]
	switch x.Op {
	case syntax.AndAnd:
		return "(" + g.expr(x.X) + " && " + g.expr(x.Y) + ")"
	case syntax.OrOr:
		return "(" + g.expr(x.X) + " || " + g.expr(x.Y) + ")"
	case syntax.Eq:
		return "$b.eq(" + g.expr(x.X) + ", " + g.expr(x.Y) + ")"
	case syntax.NotEq:
		return "!$b.eq(" + g.expr(x.X) + ", " + g.expr(x.Y) + ")"
	case syntax.Identical:
		return "$b.same(" + g.expr(x.X) + ", " + g.expr(x.Y) + ")"
	case syntax.NotIdent:
		return "!$b.same(" + g.expr(x.X) + ", " + g.expr(x.Y) + ")"
	case syntax.Less, syntax.LessEq, syntax.Greater, syntax.GreaterEq:
		if call != nil {
			return "(" + g.call(x) + " " + jsCompare[x.Op] + " 0)"
		}
		return "(" + g.expr(x.X) + " " + jsCompare[x.Op] + " " + g.expr(x.Y) + ")"
	case syntax.Plus, syntax.Minus, syntax.Star, syntax.Slash, syntax.Percent:
		if call != nil {
			return g.call(x)
		}
		return g.arith(x.Op, g.expr(x.X), g.expr(x.Y), g.info.TypeOf(x.X), g.info.TypeOf(x.Y))
	case syntax.Range:
		if call != nil {
			return g.call(x)
		}
		return builtin("Int$rangeTo") + "(" + g.expr(x.X) + ", " + g.expr(x.Y) + ")"
	case syntax.Elvis:
		return "$b.elvis(" + g.expr(x.X) + ", () => " + g.elvisRight(x.Y) + ")"
	case syntax.IdentTok:
		if call == nil {
			return "undefined"
		}
		if x.Infix != nil && x.Infix.Text == "!in" {
			return "!" + g.call(x)
		}
		return g.call(x)
	}
	return "undefined"
}

func (g *gen) elvisRight(y syntax.Expr) string {
	if _, ok := y.(*syntax.ThrowExpr); ok {
		return "{ throw " + g.expr(y.(*syntax.ThrowExpr).X) + "; }"
	}
	return g.expr(y)
}

// arith renders a built-in arithmetic operator. Int operations wrap to 32
// bits; Int division and remainder throw on a zero divisor.
func (g *gen) arith(op syntax.Kind, l, r string, lt, rt *types.Type) string {
	if lt != nil && lt.Is(types.StringName) {
		return "(" + l + " + " + g.str(r, rt) + ")"
	}
	isInt := lt != nil && rt != nil && lt.Is(types.IntName) && rt.Is(types.IntName)
	switch op {
	case syntax.Plus:
		if isInt {
			return "((" + l + " + " + r + ") | 0)"
		}
		return "(" + l + " + " + r + ")"
	case syntax.Minus:
		if isInt {
			return "((" + l + " - " + r + ") | 0)"
		}
		return "(" + l + " - " + r + ")"
	case syntax.Star:
		if isInt {
			return "Math.imul(" + l + ", " + r + ")"
		}
		return "(" + l + " * " + r + ")"
	case syntax.Slash:
		if isInt {
			return "$b.idiv(" + l + ", " + r + ")"
		}
		return "(" + l + " / " + r + ")"
	case syntax.Percent:
		if isInt {
			return "$b.imod(" + l + ", " + r + ")"
		}
		return "(" + l + " % " + r + ")"
	}
	return "undefined"
}

// call renders the call recorded for node: a call expression, an index
// read or write, or an operator.
func (g *gen) call(node syntax.Node) string {
	call := g.info.Calls[node]
	if call == nil {
		return "undefined"
	}
	var recv string
	if call.Recv != nil {
		recv = g.expr(call.Recv)
	}
	args := g.args(call)
	if call.Safe {
		return g.safe(recv, func(r string) string { return g.invoke(call, r, args) })
	}
	return g.invoke(call, recv, args)
}

// args renders one argument per parameter. Omitted defaults are passed as
// undefined so the callee's default applies; a vararg parameter receives an
// array.
func (g *gen) args(call *analysis.Call) []string {
	f := call.Fn
	out := make([]string, len(f.Params))
	for i, p := range f.Params {
		switch {
		case p.Vararg:
			elems := make([]string, len(call.VarargArgs))
			for j, a := range call.VarargArgs {
				elems[j] = g.valueAs(a, p.Type)
			}
			out[i] = "[" + strings.Join(elems, ", ") + "]"
		case i < len(call.Args) && call.Args[i] != nil:
			out[i] = g.valueAs(call.Args[i], p.Type)
		default:
			out[i] = "undefined"
		}
	}
	return out
}

func trimUndefined(args []string) []string {
	n := len(args)
	for n > 0 && args[n-1] == "undefined" {
		n--
	}
	return args[:n]
}

// invoke renders a call of call.Fn with the given receiver and arguments.
// recv is empty when the call has no explicit receiver.
func (g *gen) invoke(call *analysis.Call, recv string, args []string) string {
	f := call.Fn
	if recv == "" {
		recv = g.implicit(&call.Ref)
	}
	list := strings.Join(trimUndefined(args), ", ")
	with := func(first string) string {
		if list == "" {
			return first
		}
		return first + ", " + list
	}
	if cls := call.Class; cls != nil {
		if f.Origin == types.OriginBuiltin {
			return builtin(f.Key) + "(" + list + ")"
		}
		if cls.Inner {
			return "new (" + g.classRef(cls) + ")(" + with(recv) + ")"
		}
		return "new (" + g.classRef(cls) + ")(" + list + ")"
	}
	switch {
	case f.Origin == types.OriginBuiltin && (f.Receiver != nil || isMember(f)):
		return builtin(f.Key) + "(" + with(recv) + ")"
	case f.Receiver != nil:
		return g.funRef(f) + "(" + with(recv) + ")"
	case isMember(f):
		return prop(recv, f.Key) + "(" + list + ")"
	}
	return g.funRef(f) + "(" + list + ")"
}
