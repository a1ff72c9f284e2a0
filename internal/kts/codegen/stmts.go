package codegen

import (
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

func (g *gen) stmts(list []syntax.Stmt) {
	for _, st := range list {
		g.stmt(st)
	}
}

func (g *gen) block(b *syntax.Block) {
	g.printf("{")
	g.out.depth++
	if b != nil {
		g.stmts(b.Stmts)
	}
	g.out.depth--
	g.printf("}")
}

func (g *gen) stmt(st syntax.Stmt) {
	switch st := st.(type) {
	case *syntax.PropertyDecl:
		v, ok := g.info.Decls[st].(*types.VariableDescriptor)
		if !ok {
			return
		}
		switch {
		case g.hoisted[st] && st.Init == nil:
		case g.hoisted[st]:
			g.printf("%s = %s;", g.local(v), g.valueAs(st.Init, v.Type))
		case st.Init == nil:
			g.printf("let %s;", g.local(v))
		default:
			g.printf("let %s = %s;", g.local(v), g.valueAs(st.Init, v.Type))
		}
	case *syntax.FunDecl:
		f, ok := g.info.Decls[st].(*types.FunctionDescriptor)
		if !ok {
			return
		}
		name := g.local(f)
		g.printf("const %s = %s;", name, g.function(st, f, true))
	case *syntax.Block:
		g.block(st)
	case *syntax.ExprStmt:
		g.exprStmt(st.X)
	case *syntax.AssignStmt:
		g.assign(st)
	case *syntax.WhileStmt:
		g.while(st)
	case *syntax.ForStmt:
		g.forStmt(st)
	case *syntax.ReturnStmt:
		if st.Value == nil {
			g.printf("return;")
			return
		}
		g.printf("return %s;", g.valueAs(st.Value, g.result))
	case *syntax.BranchStmt:
		switch {
		case !st.Continue:
			g.printf("break;")
		case len(g.loops) > 0 && g.loops[len(g.loops)-1] != "":
			g.printf("break %s;", g.loops[len(g.loops)-1])
		default:
			g.printf("continue;")
		}
	}
}

func (g *gen) exprStmt(x syntax.Expr) {
	switch x := x.(type) {
	case *syntax.IfExpr:
		if !g.info.ValueIfs[x] {
			g.ifStmt(x)
			return
		}
	case *syntax.ThrowExpr:
		g.printf("throw %s;", g.expr(x.X))
		return
	}
	g.printf("%s;", g.expr(x))
}

func (g *gen) ifStmt(x *syntax.IfExpr) {
	g.printf("if (%s) {", g.expr(x.Cond))
	g.out.depth++
	g.stmts(x.Then.Stmts)
	g.out.depth--
	if x.Else != nil {
		g.printf("} else {")
		g.out.depth++
		g.stmts(x.Else.Stmts)
		g.out.depth--
	}
	g.printf("}")
}

// while emits loops. A do-while body runs inside a labeled block that
// continue breaks out of; the body's own locals are declared ahead of the
// block so the condition can read them.
func (g *gen) while(st *syntax.WhileStmt) {
	if !st.DoWhile {
		g.loops = append(g.loops, "")
		g.printf("while (%s) {", g.expr(st.Cond))
		g.out.depth++
		g.stmts(st.Body.Stmts)
		g.out.depth--
		g.printf("}")
		g.loops = g.loops[:len(g.loops)-1]
		return
	}
	label := g.temp("$c")
	g.loops = append(g.loops, label)
	g.printf("for (;;) {")
	g.out.depth++
	for _, b := range st.Body.Stmts {
		if d, ok := b.(*syntax.PropertyDecl); ok {
			if v, ok := g.info.Decls[d].(*types.VariableDescriptor); ok {
				g.hoisted[d] = true
				g.printf("let %s;", g.local(v))
			}
		}
	}
	g.printf("%s: {", label)
	g.out.depth++
	g.stmts(st.Body.Stmts)
	g.out.depth--
	g.printf("}")
	g.loops = g.loops[:len(g.loops)-1]
	g.printf("if (!(%s)) break;", g.expr(st.Cond))
	g.out.depth--
	g.printf("}")
}

func (g *gen) forStmt(st *syntax.ForStmt) {
	name := "_"
	if st.Var != nil {
		if v, ok := g.info.Decls[st.Var]; ok {
			name = g.local(v)
		}
	}
	g.loops = append(g.loops, "")
	g.printf("for (const %s of $b.iter(%s)) {", name, g.expr(st.Iter))
	g.out.depth++
	g.stmts(st.Body.Stmts)
	g.out.depth--
	g.printf("}")
	g.loops = g.loops[:len(g.loops)-1]
}

var compoundOp = map[syntax.Kind]syntax.Kind{
	syntax.PlusAssign:    syntax.Plus,
	syntax.MinusAssign:   syntax.Minus,
	syntax.StarAssign:    syntax.Star,
	syntax.SlashAssign:   syntax.Slash,
	syntax.PercentAssign: syntax.Percent,
}

func (g *gen) assign(st *syntax.AssignStmt) {
	if t, ok := st.Target.(*syntax.IndexExpr); ok {
		g.indexAssign(st, t)
		return
	}
	lv, wrap, want := g.lvalue(st.Target)
	if lv == "" {
		return
	}
	var rhs string
	switch call := g.info.Calls[st]; {
	case st.Op == syntax.Assign:
		rhs = g.valueAs(st.Value, want)
	case call != nil:
		rhs = g.invoke(call, lv, g.args(call))
	default:
		rhs = g.arith(compoundOp[st.Op], lv, g.expr(st.Value), want, g.info.TypeOf(st.Value))
	}
	g.printf("%s;", wrap(lv+" = "+rhs))
}

// indexAssign emits `a[i] = v` and `a[i] op= v` through the get and set
// operators, evaluating the receiver and index once.
func (g *gen) indexAssign(st *syntax.AssignStmt, t *syntax.IndexExpr) {
	set := g.info.Calls[st]
	if set == nil {
		return
	}
	if st.Op == syntax.Assign {
		g.printf("%s;", g.call(st))
		return
	}
	get := g.info.Calls[t]
	if get == nil {
		return
	}
	o, i := g.temp("$o"), g.temp("$i")
	cur := g.invoke(get, o, []string{i})
	curT, valT := g.info.TypeOf(t), g.info.TypeOf(st.Value)
	val := g.arith(compoundOp[st.Op], cur, g.expr(st.Value), curT, valT)
	if len(set.Fn.Params) == 2 && boxes(joinNumeric(curT, valT), set.Fn.Params[1].Type) {
		val = "$b.dbl(" + val + ")"
	}
	g.printf("((%s, %s) => %s)(%s, %s);", o, i, g.invoke(set, o, []string{i, val}), g.expr(t.X), g.expr(t.Index))
}

func joinNumeric(a, b *types.Type) *types.Type {
	if a.Is(types.IntName) && b.Is(types.IntName) {
		return a
	}
	if a.Is(types.DoubleName) {
		return a
	}
	return b
}

// lvalue renders an assignment target. wrap binds the receiver of a member
// target to a temporary so that it is evaluated once.
func (g *gen) lvalue(x syntax.Expr) (ref string, wrap func(string) string, t *types.Type) {
	same := func(s string) string { return s }
	r := g.info.Refs[x]
	if r == nil {
		return "", same, nil
	}
	v, ok := r.Desc.(*types.VariableDescriptor)
	if !ok {
		return "", same, nil
	}
	t = v.Type
	if rt, ok := g.info.Types[x]; ok && rt != nil && !rt.IsError() {
		t = rt
	}
	switch x := x.(type) {
	case *syntax.Ident:
		return g.readVar(v, g.implicit(r)), same, t
	case *syntax.MemberExpr:
		if !isMember(v) || v.Origin == types.OriginBuiltin {
			return g.readVar(v, ""), same, t
		}
		o := g.temp("$o")
		recv := g.expr(x.X)
		return prop(o, v.Key), func(s string) string {
			return "((" + o + ") => " + s + ")(" + recv + ")"
		}, t
	}
	return "", same, nil
}

// incDec emits ++ and --. Int results wrap to 32 bits.
func (g *gen) incDec(target syntax.Expr, op syntax.Kind, prefix bool) string {
	lv, wrap, t := g.lvalue(target)
	if lv == "" {
		return "undefined"
	}
	sign, inv, js := "+", "-", "++"
	if op == syntax.MinusMinus {
		sign, inv, js = "-", "+", "--"
	}
	if t != nil && t.Is(types.IntName) {
		pre := "(" + lv + " = (" + lv + " " + sign + " 1) | 0)"
		if prefix {
			return wrap(pre)
		}
		return wrap("((" + pre + " " + inv + " 1) | 0)")
	}
	if prefix {
		return wrap("(" + js + lv + ")")
	}
	return wrap("(" + lv + js + ")")
}
