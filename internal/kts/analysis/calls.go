package analysis

import (
	"slices"

	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

// callCand is one function or constructor a call may resolve to.
type callCand struct {
	fn  *types.FunctionDescriptor
	ref Ref
	cls *types.ClassDescriptor
	// recv is the implicit receiver type for members and extensions
	// reached without an explicit receiver.
	recv *types.Type
}

// callSite describes a call being resolved: a written call, an operator
// or an infix call.
type callSite struct {
	node     syntax.Node
	name     string
	nameNode syntax.Node
	args     []*syntax.Arg
	argTypes []*types.Type
	typeArgs []*syntax.TypeRef
	recvExpr syntax.Expr
	recvType *types.Type
	safe     bool
	expected *types.Type
	infix    bool
	// missing replaces "Unresolved reference" when nothing is found.
	missing string
}

// match is the outcome of checking one candidate against a call site.
type match struct {
	cand    callCand
	err     string
	errNode syntax.Node
	unsafe  bool
	result  *types.Type
	args    []syntax.Expr
	varargs []syntax.Expr
	vararg  bool
}

type implicitReceiver struct {
	t    *types.Type
	kind ReceiverKind
	hops int
}

// implicitReceivers lists the receivers available without `this`,
// innermost first.
func implicitReceivers(s *Scope) []implicitReceiver {
	var out []implicitReceiver
	hops := 0
	instance := true
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == funcScope && cur.recv != nil && !cur.recv.IsError() {
			out = append(out, implicitReceiver{t: cur.recv, kind: ExtensionReceiver})
		}
		if cur.kind == classScope {
			if instance {
				out = append(out, implicitReceiver{t: selfType(cur.class), kind: ClassReceiver, hops: hops})
			}
			if !cur.class.Inner {
				instance = false
			}
			hops++
		}
	}
	return out
}

// matchReceiver reports whether extension f applies to a receiver of type
// t, with the type arguments inferred from it.
func (c *checker) matchReceiver(f *types.FunctionDescriptor, t *types.Type) (map[*types.TypeParameterDescriptor]*types.Type, bool) {
	if f.Receiver == nil || t.IsError() {
		return nil, false
	}
	subst := map[*types.TypeParameterDescriptor]*types.Type{}
	c.unify(f.Receiver, t, subst, f.TypeParams)
	return subst, types.IsSubtype(t, types.Substitute(f.Receiver, subst))
}

// unify binds the type variables tvars occurring in p so that a fits p.
func (c *checker) unify(p, a *types.Type, subst map[*types.TypeParameterDescriptor]*types.Type, tvars []*types.TypeParameterDescriptor) {
	if p.IsError() || a.IsError() {
		return
	}
	if p.Param != nil {
		if !slices.Contains(tvars, p.Param) {
			return
		}
		at := a
		if p.Nullable {
			at = a.WithNullable(false)
		}
		if cur, ok := subst[p.Param]; ok {
			subst[p.Param] = types.Join(cur, at, c.anyType())
		} else {
			subst[p.Param] = at
		}
		return
	}
	if a.Class == nil || a.IsNothing() {
		return
	}
	sup := types.AsSupertype(a.WithNullable(false), p.Class)
	if sup == nil {
		return
	}
	for i := range min(len(p.Args), len(sup.Args)) {
		c.unify(p.Args[i], sup.Args[i], subst, tvars)
	}
}

func (c *checker) args(call *syntax.CallExpr, s *Scope) []*types.Type {
	c.argDepth++
	defer func() { c.argDepth-- }()
	out := make([]*types.Type, len(call.Args))
	for i, a := range call.Args {
		out[i] = c.expr(a.Value, s, nil)
	}
	return out
}

func (c *checker) call(x *syntax.CallExpr, s *Scope, expected *types.Type) *types.Type {
	site := &callSite{node: x, args: x.Args, typeArgs: x.TypeArgs, expected: expected}
	switch fn := x.Fun.(type) {
	case *syntax.Ident:
		c.info.Scopes[fn] = s
		site.name, site.nameNode = fn.Name.Text, fn
		site.argTypes = c.args(x, s)
		return c.resolve(site, c.callLevels(fn.Name.Text, s), s)
	case *syntax.MemberExpr:
		c.info.Scopes[fn] = s
		c.info.Scopes[fn.Sel] = s
		site.name, site.nameNode = fn.Sel.Text, fn.Sel
		if q, ok := c.qualifierOf(fn.X, s); ok {
			site.argTypes = c.args(x, s)
			return c.resolve(site, c.qualifiedCallLevels(q, fn.Sel.Text), s)
		}
		rt := c.expr(fn.X, s, nil)
		site.argTypes = c.args(x, s)
		if rt.IsError() {
			return types.ErrorType()
		}
		site.recvExpr, site.recvType, site.safe = fn.X, rt, fn.Safe
		return c.resolve(site, c.memberCallLevels(rt, fn.Sel.Text, s), s)
	}
	t := c.expr(x.Fun, s, nil)
	c.args(x, s)
	if !t.IsError() {
		c.errorAt(x.Fun, "Expression '"+c.src[x.Fun.Pos():x.Fun.End()]+"' of type "+t.String()+" cannot be invoked as a function")
	}
	return types.ErrorType()
}

// operatorCall resolves the operator function name on a receiver.
func (c *checker) operatorCall(name string, node syntax.Node, recvExpr syntax.Expr, recv *types.Type, args []syntax.Expr, argTypes []*types.Type, s *Scope) *types.Type {
	return c.operatorCallMsg(name, node, recvExpr, recv, args, argTypes, s, "")
}

func (c *checker) operatorCallMsg(name string, node syntax.Node, recvExpr syntax.Expr, recv *types.Type, args []syntax.Expr, argTypes []*types.Type, s *Scope, missing string) *types.Type {
	if recv.IsError() {
		return types.ErrorType()
	}
	site := &callSite{
		node: node, name: name, nameNode: node, argTypes: argTypes,
		recvExpr: recvExpr, recvType: recv, missing: missing,
	}
	for _, a := range args {
		site.args = append(site.args, &syntax.Arg{Span: syntax.Span{Start: a.Pos(), Stop: a.End()}, Value: a})
	}
	return c.resolve(site, c.memberCallLevels(recv, name, s), s)
}

func (c *checker) infixCall(x *syntax.BinaryExpr, s *Scope, expected *types.Type) *types.Type {
	c.info.Scopes[x.Infix] = s
	lt := c.expr(x.X, s, nil)
	c.argDepth++
	rt := c.expr(x.Y, s, nil)
	c.argDepth--
	if lt.IsError() {
		return types.ErrorType()
	}
	site := &callSite{
		node: x, name: x.Infix.Text, nameNode: x.Infix,
		args:     []*syntax.Arg{{Span: syntax.Span{Start: x.Y.Pos(), Stop: x.Y.End()}, Value: x.Y}},
		argTypes: []*types.Type{rt},
		recvExpr: x.X, recvType: lt, expected: expected, infix: true,
	}
	return c.resolve(site, c.memberCallLevels(lt, x.Infix.Text, s), s)
}

// callLevels collects the candidates for an unqualified call by priority.
func (c *checker) callLevels(name string, s *Scope) [][]callCand {
	var levels [][]callCand
	recvs := implicitReceivers(s)
	for _, level := range s.lookup(name) {
		var out []callCand
		for _, cand := range level {
			switch d := cand.desc.(type) {
			case *types.FunctionDescriptor:
				ref := cand.ref
				ref.Desc = d
				switch {
				case d.Receiver != nil && ref.Receiver == NoReceiver:
					for _, r := range recvs {
						if _, ok := c.matchReceiver(d, r.t); ok {
							out = append(out, callCand{fn: d, ref: Ref{Desc: d, Receiver: r.kind, Hops: r.hops}, recv: r.t})
							break
						}
					}
				case ref.Receiver == ExtensionReceiver:
					out = append(out, callCand{fn: d, ref: ref, recv: c.extensionReceiver(s)})
				default:
					out = append(out, callCand{fn: d, ref: ref})
				}
			case *types.ClassDescriptor:
				if d.Constructor != nil {
					ref := cand.ref
					ref.Desc = d.Constructor
					out = append(out, callCand{fn: d.Constructor, ref: ref, cls: d})
				}
			}
		}
		if len(out) > 0 {
			levels = append(levels, out)
		}
	}
	return levels
}

func (c *checker) qualifiedCallLevels(q qualifier, name string) [][]callCand {
	var out []callCand
	if q.cls != nil {
		for _, m := range q.cls.MembersNamed(name) {
			if cls, ok := m.(*types.ClassDescriptor); ok && !cls.Inner && cls.Constructor != nil {
				out = append(out, callCand{fn: cls.Constructor, ref: Ref{Desc: cls.Constructor}, cls: cls})
			}
		}
		return [][]callCand{out}
	}
	for _, d := range named(c.repl.PackageMembers(q.pkg), name) {
		switch d := d.(type) {
		case *types.FunctionDescriptor:
			if d.Receiver == nil {
				out = append(out, callCand{fn: d, ref: Ref{Desc: d}})
			}
		case *types.ClassDescriptor:
			if d.Constructor != nil {
				out = append(out, callCand{fn: d.Constructor, ref: Ref{Desc: d.Constructor}, cls: d})
			}
		}
	}
	return [][]callCand{out}
}

// memberCallLevels collects member functions and inner class constructors
// of recv, followed by the visible extensions by scope priority.
func (c *checker) memberCallLevels(recv *types.Type, name string, s *Scope) [][]callCand {
	var levels [][]callCand
	var members []callCand
	if cls := c.classOf(recv.WithNullable(false)); cls != nil {
		for _, m := range cls.MembersNamed(name) {
			switch m := m.(type) {
			case *types.FunctionDescriptor:
				members = append(members, callCand{fn: m, ref: Ref{Desc: m}})
			case *types.ClassDescriptor:
				if m.Inner && m.Constructor != nil {
					members = append(members, callCand{fn: m.Constructor, ref: Ref{Desc: m.Constructor}, cls: m})
				}
			}
		}
	}
	if len(members) > 0 {
		levels = append(levels, members)
	}
	for _, level := range s.lookup(name) {
		var out []callCand
		for _, cand := range level {
			if f, ok := cand.desc.(*types.FunctionDescriptor); ok && f.Receiver != nil && cand.ref.Receiver == NoReceiver {
				out = append(out, callCand{fn: f, ref: Ref{Desc: f}})
			}
		}
		if len(out) > 0 {
			levels = append(levels, out)
		}
	}
	return levels
}

// resolve picks the candidate of the first level that accepts the call and
// records it.
func (c *checker) resolve(site *callSite, levels [][]callCand, s *Scope) *types.Type {
	var (
		seen      int
		firstFail *match
		hidden    types.Descriptor
	)
	for _, level := range levels {
		var ok []*match
		for _, cand := range level {
			if !c.visible(cand.fn, s) || (cand.cls != nil && !c.visible(cand.cls, s)) {
				if hidden == nil {
					hidden = cand.fn
				}
				continue
			}
			seen++
			m := c.tryMatch(site, cand, s)
			if m.err == "" {
				ok = append(ok, m)
			} else if firstFail == nil {
				firstFail = m
			}
		}
		if len(ok) > 0 {
			return c.accept(site, mostSpecific(ok))
		}
	}
	switch {
	case seen == 1:
		c.errorAt(firstFail.errNode, firstFail.err)
	case seen > 1:
		c.errorAt(site.nameNode, "None of the following candidates is applicable: "+site.name)
	case hidden != nil:
		c.errorAt(site.nameNode, "Cannot access '"+site.name+"': it is "+string(hidden.Visibility()))
	case site.missing != "":
		c.errorAt(site.node, site.missing)
	default:
		c.errorAt(site.nameNode, "Unresolved reference: "+site.name)
	}
	return types.ErrorType()
}

func (c *checker) accept(site *callSite, m *match) *types.Type {
	if m.unsafe {
		c.errorAt(site.nameNode, "Only safe (?.) or non-null asserted (!!.) calls are allowed on a nullable receiver of type "+site.recvType.String())
	}
	if site.infix && !m.cand.fn.Infix {
		c.errorAt(site.nameNode, "'infix' modifier is required on '"+site.name+"'")
	}
	call := &Call{
		Fn:         m.cand.fn,
		Ref:        m.cand.ref,
		Recv:       site.recvExpr,
		Safe:       site.safe,
		Args:       m.args,
		VarargArgs: m.varargs,
		Class:      m.cand.cls,
	}
	c.info.Calls[site.node] = call
	if id, ok := site.nameNode.(*syntax.Ident); ok {
		ref := m.cand.ref
		c.info.Refs[id] = &ref
	}
	if site.safe && site.recvType.Nullable {
		return m.result.WithNullable(true)
	}
	return m.result
}

// mostSpecific prefers candidates without varargs, then a candidate whose
// parameter types fit every other candidate's.
func mostSpecific(ms []*match) *match {
	if len(ms) == 1 {
		return ms[0]
	}
	var plain []*match
	for _, m := range ms {
		if !m.vararg {
			plain = append(plain, m)
		}
	}
	if len(plain) > 0 {
		ms = plain
	}
	for _, a := range ms {
		best := true
		for _, b := range ms {
			if a != b && !moreSpecific(a.cand.fn, b.cand.fn) {
				best = false
				break
			}
		}
		if best {
			return a
		}
	}
	return ms[0]
}

func moreSpecific(a, b *types.FunctionDescriptor) bool {
	if len(a.Params) != len(b.Params) {
		return len(a.Params) < len(b.Params)
	}
	for i := range a.Params {
		if !types.IsSubtype(a.Params[i].Type, b.Params[i].Type) {
			return false
		}
	}
	return true
}

// tryMatch checks one candidate against the call site without reporting.
func (c *checker) tryMatch(site *callSite, cand callCand, s *Scope) *match {
	f := cand.fn
	m := &match{cand: cand, errNode: site.nameNode}
	fail := func(n syntax.Node, msg string) *match {
		m.err, m.errNode = msg, n
		return m
	}
	tvars := f.TypeParams
	subst := map[*types.TypeParameterDescriptor]*types.Type{}
	var fixed map[*types.TypeParameterDescriptor]*types.Type

	recv := site.recvType
	if recv == nil {
		recv = cand.recv
	}
	if recv != nil && !recv.IsError() {
		nn := recv.WithNullable(false)
		switch {
		case f.Receiver != nil:
			target := recv
			if recv.Nullable && !f.Receiver.Nullable {
				if !site.safe {
					m.unsafe = true
				}
				target = nn
			}
			c.unify(f.Receiver, target, subst, tvars)
			if !types.IsSubtype(target, types.Substitute(f.Receiver, subst)) {
				return fail(site.nameNode, "Unresolved reference: "+site.name)
			}
		default:
			if recv.Nullable && !site.safe {
				m.unsafe = true
			}
			if owner, ok := f.Container().(*types.ClassDescriptor); ok && !f.Constructor {
				if sup := types.AsSupertype(nn, owner); sup != nil {
					fixed = sup.Substitution()
				}
			}
		}
	}

	if len(site.typeArgs) > 0 {
		if len(site.typeArgs) != len(tvars) {
			return fail(site.nameNode, typeArgsExpected(len(tvars), f))
		}
		for i, ta := range site.typeArgs {
			subst[tvars[i]] = c.resolveType(ta, s)
		}
		tvars = nil
	}

	params := make([]*types.Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = types.Substitute(p.Type, fixed)
	}
	result := types.Substitute(c.resultOf(f, site.nameNode), fixed)
	if site.expected != nil && len(tvars) > 0 {
		c.unify(result, site.expected, subst, tvars)
	}

	m.args = make([]syntax.Expr, len(f.Params))
	argTypes := make([]*types.Type, len(f.Params))
	var varargTypes []*types.Type
	used := make([]bool, len(f.Params))
	pos, named := 0, false
	for i, a := range site.args {
		at := site.argTypes[i]
		if a.Name != nil {
			named = true
			idx := slices.IndexFunc(f.Params, func(p *types.Param) bool { return p.Name == a.Name.Text })
			if idx < 0 {
				return fail(a.Name, "Cannot find a parameter with this name: "+a.Name.Text)
			}
			if used[idx] {
				return fail(a, "An argument is already passed for this parameter")
			}
			used[idx] = true
			if f.Params[idx].Vararg {
				m.varargs = append(m.varargs, a.Value)
				varargTypes = append(varargTypes, at)
				continue
			}
			m.args[idx], argTypes[idx] = a.Value, at
			continue
		}
		if named {
			return fail(a, "Mixing named and positioned arguments is not allowed")
		}
		for pos < len(f.Params) && used[pos] && !f.Params[pos].Vararg {
			pos++
		}
		if pos >= len(f.Params) {
			return fail(a, "Too many arguments for "+types.Signature(f))
		}
		if f.Params[pos].Vararg {
			used[pos] = true
			m.vararg = true
			m.varargs = append(m.varargs, a.Value)
			varargTypes = append(varargTypes, at)
			continue
		}
		used[pos] = true
		m.args[pos], argTypes[pos] = a.Value, at
		pos++
	}
	for i, p := range f.Params {
		if !used[i] && !p.HasDefault && !p.Vararg {
			return fail(callEnd(site.node), "No value passed for parameter '"+p.Name+"'")
		}
	}

	for i, p := range f.Params {
		if p.Vararg {
			for _, vt := range varargTypes {
				c.unify(params[i], vt, subst, tvars)
			}
			continue
		}
		if m.args[i] != nil {
			c.unify(params[i], argTypes[i], subst, tvars)
		}
	}
	for _, tv := range tvars {
		if _, ok := subst[tv]; ok {
			continue
		}
		if c.argDepth > 0 {
			subst[tv] = types.ErrorType()
			continue
		}
		return fail(site.nameNode, "Not enough information to infer type variable "+tv.Name())
	}
	for i, p := range f.Params {
		want := types.Substitute(params[i], subst)
		if p.Vararg {
			for j, vt := range varargTypes {
				if !types.IsSubtype(vt, want) {
					return fail(m.varargs[j], mismatch(vt, want))
				}
			}
			continue
		}
		if m.args[i] != nil && !types.IsSubtype(argTypes[i], want) {
			return fail(m.args[i], mismatch(argTypes[i], want))
		}
	}
	m.result = types.Substitute(result, subst)
	return m
}

func mismatch(got, want *types.Type) string {
	if got.IsNothing() && got.Nullable {
		return "Null can not be a value of a non-null type " + want.String()
	}
	return "Type mismatch: inferred type is " + got.String() + " but " + want.String() + " was expected"
}

func typeArgsExpected(n int, f *types.FunctionDescriptor) string {
	switch n {
	case 0:
		return "No type arguments expected for " + types.Signature(f)
	case 1:
		return "One type argument expected for " + types.Signature(f)
	}
	return "Wrong number of type arguments for " + types.Signature(f)
}

// callEnd is the last character of a call, where missing arguments are
// reported.
func callEnd(n syntax.Node) syntax.Node {
	return &syntax.Span{Start: max(n.End()-1, n.Pos()), Stop: n.End()}
}
