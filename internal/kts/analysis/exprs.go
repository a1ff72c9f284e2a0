package analysis

import (
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

func (c *checker) intType() *types.Type     { return types.ClassType(c.b.Int) }
func (c *checker) doubleType() *types.Type  { return types.ClassType(c.b.Double) }
func (c *checker) boolType() *types.Type    { return types.ClassType(c.b.Boolean) }
func (c *checker) stringType() *types.Type  { return types.ClassType(c.b.String) }
func (c *checker) anyType() *types.Type     { return types.ClassType(c.b.Any) }
func (c *checker) nothingType() *types.Type { return types.ClassType(c.b.Nothing) }

func (c *checker) numeric(t *types.Type) bool {
	return !t.IsError() && !t.Nullable && (t.Is(types.IntName) || t.Is(types.DoubleName))
}

func (c *checker) numericJoin(a, b *types.Type) *types.Type {
	if a.Is(types.IntName) && b.Is(types.IntName) {
		return c.intType()
	}
	return c.doubleType()
}

// classOf returns the class whose members a value of type t has.
func (c *checker) classOf(t *types.Type) *types.ClassDescriptor {
	if t.IsError() {
		return nil
	}
	if t.Class != nil {
		return t.Class
	}
	return c.b.Any
}

func selfType(cls *types.ClassDescriptor) *types.Type {
	args := make([]*types.Type, len(cls.TypeParams))
	for i, tp := range cls.TypeParams {
		args[i] = types.ParamType(tp)
	}
	return types.ClassType(cls, args...)
}

func (c *checker) visible(d types.Descriptor, s *Scope) bool {
	ok, err := types.IsVisible(d, s.Context())
	return ok || err != nil
}

// expectType reports a mismatch when got cannot be used as want.
func (c *checker) expectType(n syntax.Node, got, want *types.Type) bool {
	if want == nil || types.IsSubtype(got, want) {
		return true
	}
	if got.IsNothing() && got.Nullable {
		c.errorAt(n, "Null can not be a value of a non-null type "+want.String())
		return false
	}
	c.errorAt(n, "Type mismatch: inferred type is "+got.String()+" but "+want.String()+" was expected")
	return false
}

func (c *checker) expectExpr(x syntax.Expr, s *Scope, want *types.Type) *types.Type {
	t := c.expr(x, s, want)
	c.expectType(x, t, want)
	return t
}

// expr checks x and records its type. expected guides type inference only;
// callers check compatibility themselves.
func (c *checker) expr(x syntax.Expr, s *Scope, expected *types.Type) *types.Type {
	t := c.exprType(x, s, expected)
	if t == nil {
		t = types.ErrorType()
	}
	c.info.Types[x] = t
	return t
}

func (c *checker) exprType(x syntax.Expr, s *Scope, expected *types.Type) *types.Type {
	switch x := x.(type) {
	case *syntax.IntLit:
		return c.intType()
	case *syntax.DoubleLit:
		return c.doubleType()
	case *syntax.BoolLit:
		return c.boolType()
	case *syntax.NullLit:
		return c.nothingType().WithNullable(true)
	case *syntax.StringLit:
		for _, p := range x.Parts {
			if p.Expr != nil {
				c.expr(p.Expr, s, nil)
			}
		}
		return c.stringType()
	case *syntax.ThisExpr:
		return c.this(x, s)
	case *syntax.ParenExpr:
		return c.expr(x.X, s, expected)
	case *syntax.Ident:
		return c.ident(x, s)
	case *syntax.UnaryExpr:
		return c.unary(x, s)
	case *syntax.PostfixExpr:
		if x.Op != syntax.NotNull {
			return c.incDec(x, x.X, x.Op, s)
		}
		t := c.expr(x.X, s, nil)
		if !t.IsError() && !t.Nullable {
			c.warnAt(x, "Unnecessary non-null assertion (!!) on a non-null receiver of type "+t.String())
		}
		return t.WithNullable(false)
	case *syntax.BinaryExpr:
		return c.binary(x, s, expected)
	case *syntax.CallExpr:
		return c.call(x, s, expected)
	case *syntax.MemberExpr:
		return c.member(x, s)
	case *syntax.IndexExpr:
		recv := c.expr(x.X, s, nil)
		idx := c.expr(x.Index, s, nil)
		if recv.IsError() {
			return types.ErrorType()
		}
		return c.operatorCall("get", x, x.X, recv, []syntax.Expr{x.Index}, []*types.Type{idx}, s)
	case *syntax.IfExpr:
		return c.ifValue(x, s, expected)
	case *syntax.ThrowExpr:
		t := c.expr(x.X, s, nil)
		if !t.IsError() && !types.IsSubtype(t, types.ClassType(c.b.Throwable)) {
			c.errorAt(x.X, "Type mismatch: inferred type is "+t.String()+" but Throwable was expected")
		}
		return c.nothingType()
	}
	return types.ErrorType()
}

func (c *checker) this(x *syntax.ThisExpr, s *Scope) *types.Type {
	c.info.Scopes[x] = s
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == funcScope && cur.recv != nil {
			c.info.Refs[x] = &Ref{Receiver: ExtensionReceiver}
			return cur.recv
		}
		if cur.kind == classScope {
			c.info.Refs[x] = &Ref{Desc: cur.class, Receiver: ClassReceiver}
			return selfType(cur.class)
		}
	}
	c.errorAt(x, "'this' is not defined in this context")
	return types.ErrorType()
}

func isVariable(d types.Descriptor) bool {
	_, ok := d.(*types.VariableDescriptor)
	return ok
}

func isClass(d types.Descriptor) bool {
	_, ok := d.(*types.ClassDescriptor)
	return ok
}

func isPackage(d types.Descriptor) bool {
	_, ok := d.(*types.PackageDescriptor)
	return ok
}

func isFunction(d types.Descriptor) bool {
	_, ok := d.(*types.FunctionDescriptor)
	return ok
}

// ident resolves a simple name in value position. Variables win over
// classes, packages and functions of the same name.
func (c *checker) ident(x *syntax.Ident, s *Scope) *types.Type {
	name := x.Name.Text
	c.info.Scopes[x] = s
	levels := s.lookup(name)
	var hidden types.Descriptor
	pick := func(match func(types.Descriptor) bool) (candidate, bool) {
		for _, level := range levels {
			for _, cand := range level {
				if !match(cand.desc) {
					continue
				}
				if !c.visible(cand.desc, s) {
					if hidden == nil {
						hidden = cand.desc
					}
					continue
				}
				return cand, true
			}
		}
		return candidate{}, false
	}
	if cand, ok := pick(isVariable); ok {
		v := cand.desc.(*types.VariableDescriptor)
		ref := cand.ref
		ref.Desc = v
		c.info.Refs[x] = &ref
		t := c.typeOfVar(v, x)
		if ref.Receiver == ExtensionReceiver {
			t = c.memberType(c.extensionReceiver(s), v, x)
		}
		if n, ok := s.narrowed(v); ok {
			t = n
		}
		return t
	}
	if cand, ok := pick(isClass); ok {
		c.info.Refs[x] = &Ref{Desc: cand.desc}
		c.errorAt(x, "Classifier '"+name+"' does not have a companion object, and thus must be initialized here")
		return types.ErrorType()
	}
	if cand, ok := pick(isPackage); ok {
		c.info.Refs[x] = &Ref{Desc: cand.desc}
		c.errorAt(x, "Expression expected")
		return types.ErrorType()
	}
	if _, ok := pick(isFunction); ok {
		c.errorAt(x, "Function invocation '"+name+"()' expected")
		return types.ErrorType()
	}
	if hidden != nil {
		c.errorAt(x, "Cannot access '"+name+"': it is "+string(hidden.Visibility()))
		return types.ErrorType()
	}
	c.errorAt(x, "Unresolved reference: "+name)
	return types.ErrorType()
}

func (c *checker) extensionReceiver(s *Scope) *types.Type {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == funcScope && cur.recv != nil {
			return cur.recv
		}
	}
	return types.ErrorType()
}

// memberType is the type of member v seen through a receiver of type recv.
func (c *checker) memberType(recv *types.Type, v *types.VariableDescriptor, at syntax.Node) *types.Type {
	t := c.typeOfVar(v, at)
	cls, ok := v.Container().(*types.ClassDescriptor)
	if !ok || recv.IsError() {
		return t
	}
	if sup := types.AsSupertype(recv.WithNullable(false), cls); sup != nil {
		return types.Substitute(t, sup.Substitution())
	}
	return t
}

// qualifier is a package or class named by a dotted prefix.
type qualifier struct {
	pkg string
	cls *types.ClassDescriptor
}

// qualifierOf resolves x as a package or class reference when it is not a
// value.
func (c *checker) qualifierOf(x syntax.Expr, s *Scope) (qualifier, bool) {
	switch e := x.(type) {
	case *syntax.Ident:
		levels := s.lookup(e.Name.Text)
		for _, level := range levels {
			for _, cand := range level {
				if isVariable(cand.desc) {
					return qualifier{}, false
				}
			}
		}
		for _, kind := range []func(types.Descriptor) bool{isClass, isPackage} {
			for _, level := range levels {
				for _, cand := range level {
					if !kind(cand.desc) {
						continue
					}
					c.info.Scopes[e] = s
					ref := cand.ref
					ref.Desc = cand.desc
					c.info.Refs[e] = &ref
					if cls, ok := cand.desc.(*types.ClassDescriptor); ok {
						return qualifier{cls: cls}, true
					}
					return qualifier{pkg: cand.desc.(*types.PackageDescriptor).FQName}, true
				}
			}
		}
	case *syntax.MemberExpr:
		q, ok := c.qualifierOf(e.X, s)
		if !ok {
			return qualifier{}, false
		}
		name := e.Sel.Text
		if q.cls != nil {
			for _, m := range q.cls.MembersNamed(name) {
				if cls, ok := m.(*types.ClassDescriptor); ok {
					c.info.Scopes[e] = s
					c.info.Refs[e] = &Ref{Desc: cls}
					return qualifier{cls: cls}, true
				}
			}
			return qualifier{}, false
		}
		fq := name
		if q.pkg != "" {
			fq = q.pkg + "." + name
		}
		if c.repl.PackageExists(fq) {
			if p, ok := c.repl.Package(fq); ok {
				c.info.Scopes[e] = s
				c.info.Refs[e] = &Ref{Desc: p}
			}
			return qualifier{pkg: fq}, true
		}
		for _, d := range named(c.repl.PackageMembers(q.pkg), name) {
			if cls, ok := d.(*types.ClassDescriptor); ok {
				c.info.Scopes[e] = s
				c.info.Refs[e] = &Ref{Desc: cls}
				return qualifier{cls: cls}, true
			}
		}
	}
	return qualifier{}, false
}

func (c *checker) member(x *syntax.MemberExpr, s *Scope) *types.Type {
	c.info.Scopes[x] = s
	c.info.Scopes[x.Sel] = s
	name := x.Sel.Text
	if q, ok := c.qualifierOf(x.X, s); ok {
		return c.qualifiedValue(x, q, s)
	}
	t := c.expr(x.X, s, nil)
	if t.IsError() {
		return types.ErrorType()
	}
	if t.Nullable && !x.Safe {
		c.errorAt(x.Sel, "Only safe (?.) or non-null asserted (!!.) calls are allowed on a nullable receiver of type "+t.String())
	}
	recv := t.WithNullable(false)
	cls := c.classOf(recv)
	var fn bool
	for _, m := range cls.MembersNamed(name) {
		switch m := m.(type) {
		case *types.VariableDescriptor:
			if !c.visible(m, s) {
				c.errorAt(x.Sel, "Cannot access '"+name+"': it is "+string(m.Visibility())+" in '"+cls.Name()+"'")
				return types.ErrorType()
			}
			c.info.Refs[x] = &Ref{Desc: m}
			vt := c.memberType(recv, m, x.Sel)
			if x.Safe && t.Nullable {
				vt = vt.WithNullable(true)
			}
			return vt
		case *types.FunctionDescriptor:
			fn = true
		}
	}
	if fn {
		c.errorAt(x.Sel, "Function invocation '"+name+"()' expected")
		return types.ErrorType()
	}
	c.errorAt(x.Sel, "Unresolved reference: "+name)
	return types.ErrorType()
}

func (c *checker) qualifiedValue(x *syntax.MemberExpr, q qualifier, s *Scope) *types.Type {
	name := x.Sel.Text
	if q.cls != nil {
		for _, m := range q.cls.MembersNamed(name) {
			if _, ok := m.(*types.ClassDescriptor); ok {
				c.info.Refs[x] = &Ref{Desc: m}
				c.errorAt(x.Sel, "Classifier '"+name+"' does not have a companion object, and thus must be initialized here")
				return types.ErrorType()
			}
		}
		c.errorAt(x.Sel, "Unresolved reference: "+name)
		return types.ErrorType()
	}
	var fn bool
	for _, d := range named(c.repl.PackageMembers(q.pkg), name) {
		switch d := d.(type) {
		case *types.VariableDescriptor:
			if !c.visible(d, s) {
				continue
			}
			c.info.Refs[x] = &Ref{Desc: d}
			return c.typeOfVar(d, x.Sel)
		case *types.ClassDescriptor:
			c.info.Refs[x] = &Ref{Desc: d}
			c.errorAt(x.Sel, "Classifier '"+name+"' does not have a companion object, and thus must be initialized here")
			return types.ErrorType()
		case *types.FunctionDescriptor:
			fn = true
		}
	}
	switch {
	case fn:
		c.errorAt(x.Sel, "Function invocation '"+name+"()' expected")
	case c.repl.PackageExists(q.pkg + "." + name):
		c.errorAt(x, "Expression expected")
	default:
		c.errorAt(x.Sel, "Unresolved reference: "+name)
	}
	return types.ErrorType()
}

func (c *checker) unary(x *syntax.UnaryExpr, s *Scope) *types.Type {
	switch x.Op {
	case syntax.Bang:
		c.expectExpr(x.X, s, c.boolType())
		return c.boolType()
	case syntax.PlusPlus, syntax.MinusMinus:
		return c.incDec(x, x.X, x.Op, s)
	}
	t := c.expr(x.X, s, nil)
	if t.IsError() {
		return t
	}
	if !c.numeric(t) {
		c.errorAt(x, "Operator '"+opText(x.Op)+"' cannot be applied to '"+t.String()+"'")
		return types.ErrorType()
	}
	return t
}

// incDec checks ++ and -- applied to a variable.
func (c *checker) incDec(x syntax.Expr, target syntax.Expr, op syntax.Kind, s *Scope) *types.Type {
	switch target.(type) {
	case *syntax.Ident, *syntax.MemberExpr:
	default:
		c.expr(target, s, nil)
		c.errorAt(target, "Variable expected")
		return types.ErrorType()
	}
	v, t := c.assignable(target, s)
	if v == nil {
		return types.ErrorType()
	}
	if !v.Mutable {
		c.errorAt(target, "Val cannot be reassigned")
	}
	c.assigned[v] = true
	if !t.IsError() && !c.numeric(t) {
		c.errorAt(x, "Operator '"+opText(op)+"' cannot be applied to '"+t.String()+"'")
		return types.ErrorType()
	}
	return t
}

var operatorNames = map[syntax.Kind]string{
	syntax.Plus:    "plus",
	syntax.Minus:   "minus",
	syntax.Star:    "times",
	syntax.Slash:   "div",
	syntax.Percent: "rem",
}

func opText(k syntax.Kind) string {
	s := k.String()
	if len(s) >= 2 && s[0] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

func (c *checker) binary(x *syntax.BinaryExpr, s *Scope, expected *types.Type) *types.Type {
	switch x.Op {
	case syntax.AndAnd, syntax.OrOr:
		c.condition(x, s)
		return c.boolType()
	case syntax.Eq, syntax.NotEq, syntax.Identical, syntax.NotIdent:
		lt := c.expr(x.X, s, nil)
		rt := c.expr(x.Y, s, nil)
		if !c.comparable(lt, rt) {
			c.errorAt(x, "Operator '"+opText(x.Op)+"' cannot be applied to '"+lt.String()+"' and '"+rt.String()+"'")
		}
		return c.boolType()
	case syntax.Less, syntax.LessEq, syntax.Greater, syntax.GreaterEq:
		lt := c.expr(x.X, s, nil)
		rt := c.expr(x.Y, s, nil)
		switch {
		case lt.IsError() || rt.IsError():
		case c.numeric(lt) && c.numeric(rt):
		case lt.Is(types.StringName) && rt.Is(types.StringName) && !lt.Nullable && !rt.Nullable:
		default:
			t := c.operatorCallMsg("compareTo", x, x.X, lt, []syntax.Expr{x.Y}, []*types.Type{rt}, s,
				"Operator '"+opText(x.Op)+"' cannot be applied to '"+lt.String()+"' and '"+rt.String()+"'")
			c.expectType(x, t, c.intType())
		}
		return c.boolType()
	case syntax.Plus, syntax.Minus, syntax.Star, syntax.Slash, syntax.Percent:
		lt := c.expr(x.X, s, nil)
		rt := c.expr(x.Y, s, nil)
		return c.arith(x.Op, x, x.X, x.Y, lt, rt, s)
	case syntax.Range:
		lt := c.expr(x.X, s, nil)
		rt := c.expr(x.Y, s, nil)
		switch {
		case lt.IsError() || rt.IsError():
			return types.ErrorType()
		case lt.Is(types.IntName) && rt.Is(types.IntName) && !lt.Nullable && !rt.Nullable:
			return types.ClassType(c.b.IntRange)
		}
		return c.operatorCall("rangeTo", x, x.X, lt, []syntax.Expr{x.Y}, []*types.Type{rt}, s)
	case syntax.Elvis:
		lt := c.expr(x.X, s, nil)
		var want *types.Type
		if !lt.IsError() {
			want = expected
		}
		rt := c.expr(x.Y, s, want)
		if lt.IsError() {
			return rt
		}
		if !lt.Nullable {
			c.warnAt(x.Y, "Elvis operator (?:) always returns the left operand of non-nullable type "+lt.String())
		}
		if rt.IsNothing() && !rt.Nullable {
			return lt.WithNullable(false)
		}
		return types.Join(lt.WithNullable(false), rt, c.anyType())
	case syntax.IdentTok:
		if x.Infix.Text == "in" || x.Infix.Text == "!in" {
			lt := c.expr(x.X, s, nil)
			rt := c.expr(x.Y, s, nil)
			if rt.IsError() {
				return c.boolType()
			}
			t := c.operatorCall("contains", x, x.Y, rt, []syntax.Expr{x.X}, []*types.Type{lt}, s)
			c.expectType(x, t, c.boolType())
			return c.boolType()
		}
		return c.infixCall(x, s, expected)
	}
	return types.ErrorType()
}

// comparable reports whether values of types a and b may be compared with
// == or ===.
func (c *checker) comparable(a, b *types.Type) bool {
	if a.IsError() || b.IsError() || a.Param != nil || b.Param != nil {
		return true
	}
	if a.IsNothing() || b.IsNothing() || a.Is(types.AnyName) || b.Is(types.AnyName) {
		return true
	}
	return a.Class.IsSubclassOf(b.Class) || b.Class.IsSubclassOf(a.Class)
}

// arith types an arithmetic operator. Numbers and string concatenation
// are built in; anything else calls the operator function.
func (c *checker) arith(op syntax.Kind, node syntax.Node, x, y syntax.Expr, lt, rt *types.Type, s *Scope) *types.Type {
	switch {
	case lt.IsError() || rt.IsError():
		return types.ErrorType()
	case c.numeric(lt) && c.numeric(rt):
		return c.numericJoin(lt, rt)
	case op == syntax.Plus && lt.Is(types.StringName) && !lt.Nullable:
		return c.stringType()
	}
	return c.operatorCallMsg(operatorNames[op], node, x, lt, []syntax.Expr{y}, []*types.Type{rt}, s,
		"Operator '"+opText(op)+"' cannot be applied to '"+lt.String()+"' and '"+rt.String()+"'")
}

// ifValue checks an if whose value is used.
func (c *checker) ifValue(x *syntax.IfExpr, s *Scope, expected *types.Type) *types.Type {
	c.info.ValueIfs[x] = true
	whenTrue, whenFalse := c.condition(x.Cond, s)
	ts := s.child(blockScope)
	applyFacts(ts, whenTrue)
	if x.Else == nil {
		c.errorAt(&syntax.Span{Start: x.Start, Stop: min(x.Start+2, x.Stop)}, "'if' must have both main and 'else' branches if used as an expression")
		c.valueBlock(x.Then, ts, expected)
		return types.ClassType(c.b.Unit)
	}
	tt := c.valueBlock(x.Then, ts, expected)
	es := s.child(blockScope)
	applyFacts(es, whenFalse)
	et := c.valueBlock(x.Else, es, expected)
	return types.Join(tt, et, c.anyType())
}
