package analysis

import (
	"strconv"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

type lazyState int

const (
	lazyPending lazyState = iota
	lazyRunning
	lazyDone
)

// lazyDecl defers checking a declaration body until its type is needed or
// the file is finished.
type lazyDecl struct {
	run   func()
	state lazyState
}

type checker struct {
	info   *Info
	src    string
	line   int
	pkg    string
	origin types.Origin
	repl   *types.ReplScope
	b      *Builtins
	root   *Scope
	// table receives the declarations of library files.
	table *types.PackageTable

	imports []types.Import
	diags   []diag.Diagnostic

	lazy      map[types.Descriptor]*lazyDecl
	lazyOrder []types.Descriptor

	classDecls  map[*types.ClassDescriptor]*syntax.ClassDecl
	classScopes map[*types.ClassDescriptor]*Scope
	ctorScopes  map[*types.ClassDescriptor]*Scope
	funScopes   map[*types.FunctionDescriptor]*Scope

	// argDepth > 0 while checking call arguments, where an uninferred type
	// variable is tolerated.
	argDepth int

	assigned  map[*types.VariableDescriptor]bool
	localVars []*syntax.PropertyDecl
}

func newChecker(f *syntax.File, src string, line int, pkg string, origin types.Origin, repl *types.ReplScope, b *Builtins) *checker {
	c := &checker{
		info:        newInfo(f, src, line, pkg),
		src:         src,
		line:        line,
		pkg:         pkg,
		origin:      origin,
		repl:        repl,
		b:           b,
		lazy:        map[types.Descriptor]*lazyDecl{},
		classDecls:  map[*types.ClassDescriptor]*syntax.ClassDecl{},
		classScopes: map[*types.ClassDescriptor]*Scope{},
		ctorScopes:  map[*types.ClassDescriptor]*Scope{},
		funScopes:   map[*types.FunctionDescriptor]*Scope{},
		assigned:    map[*types.VariableDescriptor]bool{},
	}
	c.root = &Scope{kind: fileScope, c: c}
	return c
}

func (c *checker) report(n syntax.Node, sev diag.Severity, msg string) {
	start, end := n.Pos(), n.End()
	c.diags = append(c.diags, diag.New(c.src, start, end, sev, msg))
}

func (c *checker) errorAt(n syntax.Node, msg string) { c.report(n, diag.SeverityError, msg) }

func (c *checker) warnAt(n syntax.Node, msg string) { c.report(n, diag.SeverityWarning, msg) }

// rootLookup continues a lexical lookup past the file scope.
func (c *checker) rootLookup(name string) [][]candidate {
	var levels [][]candidate
	if c.line == 0 {
		var own []candidate
		for _, d := range named(c.repl.PackageMembers(c.pkg), name) {
			own = append(own, candidate{desc: d})
		}
		if len(own) > 0 {
			levels = append(levels, own)
		}
	}
	for _, level := range c.repl.Lookup(name, c.imports) {
		cands := make([]candidate, 0, len(level))
		for _, d := range level {
			cands = append(cands, candidate{desc: d})
		}
		levels = append(levels, cands)
	}
	return levels
}

func (c *checker) rootAll() []types.Descriptor {
	var out []types.Descriptor
	if c.line == 0 {
		out = append(out, c.repl.PackageMembers(c.pkg)...)
	}
	return append(out, c.repl.All(c.imports)...)
}

func (c *checker) deferCheck(d types.Descriptor, run func()) {
	c.lazy[d] = &lazyDecl{run: run}
	c.lazyOrder = append(c.lazyOrder, d)
}

// force runs the deferred check of d if it is pending. It reports false
// when d is already being checked further up the stack.
func (c *checker) force(d types.Descriptor) bool {
	l, ok := c.lazy[d]
	if !ok {
		return true
	}
	switch l.state {
	case lazyPending:
		l.state = lazyRunning
		l.run()
		l.state = lazyDone
	case lazyRunning:
		return false
	}
	return true
}

func (c *checker) forceAll() {
	for i := 0; i < len(c.lazyOrder); i++ {
		c.force(c.lazyOrder[i])
	}
}

// resultOf returns the result type of f, inferring it from the body when
// it is not written.
func (c *checker) resultOf(f *types.FunctionDescriptor, at syntax.Node) *types.Type {
	if f.Result == nil {
		c.force(f)
	}
	if f.Result == nil {
		c.errorAt(at, "Type checking has run into a recursive problem")
		return types.ErrorType()
	}
	return f.Result
}

func (c *checker) typeOfVar(v *types.VariableDescriptor, at syntax.Node) *types.Type {
	if v.Type == nil {
		c.force(v)
	}
	if v.Type == nil {
		c.errorAt(at, "Type checking has run into a recursive problem")
		return types.ErrorType()
	}
	return v.Type
}

var knownAnnotations = map[string]bool{"DependsOn": true, "Repository": true}

func (c *checker) annotations() {
	for _, a := range c.info.File.Annotations {
		if a.Name == nil {
			continue
		}
		if !knownAnnotations[a.Name.Text] {
			c.errorAt(a.Name, "Unresolved reference: "+a.Name.Text)
			continue
		}
		if len(a.Args) == 0 {
			c.errorAt(a, "No value passed for parameter 'value'")
		}
		for _, arg := range a.Args {
			lit, ok := arg.(*syntax.StringLit)
			if !ok || lit.Interpolated {
				c.errorAt(arg, "An annotation argument must be a compile-time constant")
				continue
			}
			c.info.Types[arg] = types.ClassType(c.b.String)
		}
	}
}

// snippet checks a REPL snippet after its declarations were entered.
func (c *checker) snippet() {
	stmts := c.info.File.Stmts
	for i, st := range stmts {
		if i == len(stmts)-1 {
			if es, ok := st.(*syntax.ExprStmt); ok {
				c.bindResult(es)
				continue
			}
		}
		c.topLevel(st)
	}
}

func (c *checker) bindResult(es *syntax.ExprStmt) {
	var t *types.Type
	if ifx, ok := es.X.(*syntax.IfExpr); ok && ifx.Else == nil {
		c.ifStmt(ifx, c.root)
		return
	}
	t = c.expr(es.X, c.root, nil)
	if t.IsError() || t.IsUnit() || (t.IsNothing() && !t.Nullable) {
		return
	}
	v := types.NewVariable("res"+strconv.Itoa(c.line), t, false, types.Public, types.OriginLine, c.line)
	v.Synthetic = true
	v.Key = v.Name()
	c.info.Result = v
	c.info.ResultExpr = es.X
	c.info.Scope.Declare(v)
}

func (c *checker) topLevel(st syntax.Stmt) {
	switch d := st.(type) {
	case *syntax.ClassDecl, *syntax.FunDecl:
		// Entered before the statements.
	case *syntax.PropertyDecl:
		origin := types.OriginLine
		v := c.propertySignature(d, c.root, origin)
		c.force(v)
		c.addTopLevel(d, v)
	default:
		c.stmt(st, c.root)
	}
}

// library checks that a library file holds only declarations.
func (c *checker) library() {
	for _, st := range c.info.File.Stmts {
		switch st.(type) {
		case *syntax.ClassDecl, *syntax.FunDecl, *syntax.PropertyDecl:
		default:
			c.errorAt(st, "Expecting a top level declaration")
		}
	}
}

// classBodies checks initializers, init blocks and default values of every
// class declared by the file.
func (c *checker) classBodies() {
	var visit func(d *syntax.ClassDecl)
	visit = func(d *syntax.ClassDecl) {
		cls, ok := c.info.Decls[d].(*types.ClassDescriptor)
		if !ok {
			return
		}
		hdr := c.classScopes[cls].parent
		for i, p := range d.CtorParams {
			if p.Default != nil {
				c.expectExpr(p.Default, hdr, cls.Constructor.Params[i].Type)
			}
		}
		ctor := c.ctorScope(cls)
		for _, m := range d.Members {
			switch m := m.(type) {
			case *syntax.InitBlock:
				c.block(m.Body, ctor.child(blockScope))
			case *syntax.ClassDecl:
				visit(m)
			case *syntax.PropertyDecl, *syntax.FunDecl:
				if desc, ok := c.info.Decls[m]; ok {
					c.force(desc)
				}
			default:
				c.errorAt(m, "Expecting member declaration")
			}
		}
	}
	for _, st := range c.info.File.Stmts {
		if d, ok := st.(*syntax.ClassDecl); ok {
			visit(d)
		}
	}
}

// finish runs the checks that need the whole file.
func (c *checker) finish() {
	c.forceAll()
	for _, d := range c.localVars {
		v, ok := c.info.Decls[d].(*types.VariableDescriptor)
		if ok && v.Mutable && !c.assigned[v] {
			c.warnAt(d.Name, "Variable '"+v.Name()+"' is never modified and can be declared immutable using 'val'")
		}
	}
	assignKeys(c.info.Scope.Decls())
}

// funBody checks a function body against its signature and infers the
// result type of expression-bodied functions.
func (c *checker) funBody(d *syntax.FunDecl, f *types.FunctionDescriptor, fs *Scope) {
	for i, p := range d.Params {
		prm := f.Params[i]
		if p.Default != nil {
			c.expectExpr(p.Default, fs, prm.Type)
		}
		t := prm.Type
		if prm.Vararg {
			t = c.listOf(t)
		}
		v := types.NewVariable(p.Name.Text, t, false, types.Public, types.OriginLocal, c.line)
		c.checkConflict(fs, p, v)
		fs.declare(v)
		c.info.Decls[p] = v
	}
	if d.ExprBody != nil {
		t := c.expr(d.ExprBody, fs, f.Result)
		if f.Result == nil {
			f.Result = t
		} else {
			c.expectType(d.ExprBody, t, f.Result)
		}
		return
	}
	if d.Body == nil {
		return
	}
	c.block(d.Body, fs.child(blockScope))
	if f.Result.IsError() || f.Result.IsUnit() {
		return
	}
	if !terminates(d.Body) {
		c.errorAt(closing(d.Body), "A 'return' expression required in a function with a block body ('{...}')")
	}
}

// closing returns a node covering the closing brace of b.
func closing(b *syntax.Block) syntax.Node {
	return &syntax.Span{Start: max(b.Stop-1, b.Start), Stop: b.Stop}
}

// terminates reports whether control never falls off the end of b.
func terminates(b *syntax.Block) bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	return jumps(b.Stmts[len(b.Stmts)-1])
}

func jumps(st syntax.Stmt) bool {
	switch st := st.(type) {
	case *syntax.ReturnStmt:
		return true
	case *syntax.ExprStmt:
		switch x := st.X.(type) {
		case *syntax.ThrowExpr:
			return true
		case *syntax.IfExpr:
			return x.Else != nil && terminates(x.Then) && terminates(x.Else)
		}
	case *syntax.Block:
		return terminates(st)
	case *syntax.WhileStmt:
		b, ok := st.Cond.(*syntax.BoolLit)
		return ok && b.Value && !breaks(st.Body)
	}
	return false
}

// breaks reports whether b contains a break for its own loop.
func breaks(b *syntax.Block) bool {
	found := false
	syntax.Inspect(b, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.BranchStmt:
			if !n.Continue {
				found = true
			}
		case *syntax.WhileStmt, *syntax.ForStmt, *syntax.FunDecl, *syntax.ClassDecl:
			return false
		}
		return !found
	})
	return found
}

// exits reports whether control leaves the enclosing block after st, used
// for smart casts after `if (x == null) return`.
func exits(b *syntax.Block) bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	switch st := b.Stmts[len(b.Stmts)-1].(type) {
	case *syntax.BranchStmt:
		return true
	default:
		return jumps(st)
	}
}

func (c *checker) block(b *syntax.Block, s *Scope) {
	if b == nil {
		return
	}
	c.info.Scopes[b] = s
	for _, st := range b.Stmts {
		c.stmt(st, s)
	}
}

// valueBlock checks a block whose last expression is its value.
func (c *checker) valueBlock(b *syntax.Block, s *Scope, expected *types.Type) *types.Type {
	if b == nil {
		return types.ClassType(c.b.Unit)
	}
	bs := s.child(blockScope)
	bs.valueBlock = true
	bs.loop = false
	c.info.Scopes[b] = bs
	saved := c.argDepth
	c.argDepth = 0
	defer func() { c.argDepth = saved }()
	if len(b.Stmts) == 0 {
		return types.ClassType(c.b.Unit)
	}
	for _, st := range b.Stmts[:len(b.Stmts)-1] {
		c.stmt(st, bs)
	}
	last := b.Stmts[len(b.Stmts)-1]
	es, ok := last.(*syntax.ExprStmt)
	if !ok {
		c.stmt(last, bs)
		switch last.(type) {
		case *syntax.ReturnStmt, *syntax.BranchStmt:
			return c.nothingType()
		}
		return types.ClassType(c.b.Unit)
	}
	if ifx, ok := es.X.(*syntax.IfExpr); ok && ifx.Else == nil {
		c.ifStmt(ifx, bs)
		return types.ClassType(c.b.Unit)
	}
	return c.expr(es.X, bs, expected)
}

func (c *checker) stmt(st syntax.Stmt, s *Scope) {
	switch st := st.(type) {
	case *syntax.PropertyDecl:
		c.localProperty(st, s)
	case *syntax.FunDecl:
		f := c.funSignature(st, s, types.OriginLocal)
		c.checkConflict(s, st, f)
		s.declare(f)
		c.force(f)
	case *syntax.ClassDecl:
		c.errorAt(st.Name, "Local classes are not supported")
	case *syntax.InitBlock:
		c.errorAt(st, "Expecting a top level declaration")
	case *syntax.Block:
		c.block(st, s.child(blockScope))
	case *syntax.ExprStmt:
		if ifx, ok := st.X.(*syntax.IfExpr); ok {
			c.ifStmt(ifx, s)
			return
		}
		c.expr(st.X, s, nil)
	case *syntax.AssignStmt:
		c.assign(st, s)
	case *syntax.WhileStmt:
		c.while(st, s)
	case *syntax.ForStmt:
		c.forStmt(st, s)
	case *syntax.ReturnStmt:
		c.returnStmt(st, s)
	case *syntax.BranchStmt:
		if !s.loop {
			c.errorAt(st, "'break' and 'continue' are only allowed inside a loop")
		}
	}
}

func (c *checker) localProperty(d *syntax.PropertyDecl, s *Scope) {
	if d.Mods.Visibility != "" {
		c.errorAt(d.Name, "Modifier '"+d.Mods.Visibility+"' is not applicable to 'local variable'")
	}
	v := c.propertySignature(d, s, types.OriginLocal)
	c.force(v)
	c.checkConflict(s, d, v)
	s.declare(v)
	if d.Mutable {
		c.localVars = append(c.localVars, d)
	}
}

func (c *checker) ifStmt(x *syntax.IfExpr, s *Scope) {
	c.info.Types[x] = types.ClassType(c.b.Unit)
	whenTrue, whenFalse := c.condition(x.Cond, s)
	ts := s.child(blockScope)
	applyFacts(ts, whenTrue)
	c.block(x.Then, ts)
	if x.Else != nil {
		es := s.child(blockScope)
		applyFacts(es, whenFalse)
		c.block(x.Else, es)
	}
	switch {
	case x.Else == nil && exits(x.Then):
		applyFacts(s, whenFalse)
	case x.Else != nil && exits(x.Then) && !exits(x.Else):
		applyFacts(s, whenFalse)
	case x.Else != nil && exits(x.Else) && !exits(x.Then):
		applyFacts(s, whenTrue)
	}
}

func (c *checker) while(st *syntax.WhileStmt, s *Scope) {
	body := s.child(blockScope)
	body.loop = true
	if st.DoWhile {
		c.block(st.Body, body)
		c.expectExpr(st.Cond, body, c.boolType())
		return
	}
	whenTrue, _ := c.condition(st.Cond, s)
	applyFacts(body, whenTrue)
	c.block(st.Body, body)
}

func (c *checker) forStmt(st *syntax.ForStmt, s *Scope) {
	t := c.expr(st.Iter, s, nil)
	elem := types.ErrorType()
	switch {
	case t.IsError():
	case !t.Nullable && t.Class != nil && t.Class.IsSubclassOf(c.b.IntProgression):
		elem = c.intType()
	case !t.Nullable && types.AsSupertype(t, c.b.List) != nil:
		elem = types.AsSupertype(t, c.b.List).Args[0]
	default:
		c.errorAt(st.Iter, "For-loop range must have an 'iterator()' method")
	}
	body := s.child(blockScope)
	body.loop = true
	if st.Var != nil {
		v := types.NewVariable(st.Var.Text, elem, false, types.Public, types.OriginLocal, c.line)
		body.declare(v)
		c.info.Decls[st.Var] = v
	}
	c.block(st.Body, body.child(blockScope))
}

func (c *checker) returnStmt(st *syntax.ReturnStmt, s *Scope) {
	var fn *types.FunctionDescriptor
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == funcScope {
			fn = cur.fn
			break
		}
		if cur.kind == classScope {
			break
		}
	}
	if fn == nil || s.valueBlock {
		c.errorAt(st, "'return' is not allowed here")
		if st.Value != nil {
			c.expr(st.Value, s, nil)
		}
		return
	}
	want := fn.Result
	if want == nil {
		c.errorAt(st, "Returns are not allowed for functions with expression body. Use block body in '{...}'")
		return
	}
	if st.Value == nil {
		if !want.IsError() && !want.IsUnit() {
			c.errorAt(st, "This function must return a value of type "+want.String())
		}
		return
	}
	c.expectExpr(st.Value, s, want)
}

// assign checks `target op value`.
func (c *checker) assign(st *syntax.AssignStmt, s *Scope) {
	switch target := st.Target.(type) {
	case *syntax.IndexExpr:
		c.indexAssign(st, target, s)
		return
	case *syntax.Ident, *syntax.MemberExpr:
	default:
		// The parser reported "Variable expected".
		c.expr(st.Target, s, nil)
		c.expr(st.Value, s, nil)
		return
	}
	v, t := c.assignable(st.Target, s)
	if v == nil {
		c.expr(st.Value, s, nil)
		return
	}
	if !v.Mutable {
		c.errorAt(st.Target, "Val cannot be reassigned")
	}
	c.assigned[v] = true
	if st.Op == syntax.Assign {
		c.expectExpr(st.Value, s, t)
		return
	}
	vt := c.expr(st.Value, s, nil)
	res := c.arith(compoundOp[st.Op], st, st.Target, st.Value, t, vt, s)
	c.expectType(st.Value, res, t)
}

var compoundOp = map[syntax.Kind]syntax.Kind{
	syntax.PlusAssign:    syntax.Plus,
	syntax.MinusAssign:   syntax.Minus,
	syntax.StarAssign:    syntax.Star,
	syntax.SlashAssign:   syntax.Slash,
	syntax.PercentAssign: syntax.Percent,
}

func (c *checker) indexAssign(st *syntax.AssignStmt, target *syntax.IndexExpr, s *Scope) {
	recv := c.expr(target.X, s, nil)
	idx := c.expr(target.Index, s, nil)
	if recv.IsError() {
		c.expr(st.Value, s, nil)
		return
	}
	var value *types.Type
	if st.Op == syntax.Assign {
		value = c.expr(st.Value, s, nil)
	} else {
		cur := c.operatorCall("get", target, target.X, recv, []syntax.Expr{target.Index}, []*types.Type{idx}, s)
		c.info.Types[target] = cur
		vt := c.expr(st.Value, s, nil)
		if !c.numeric(cur) || !c.numeric(vt) {
			c.errorAt(st, "Operator '"+opText(st.Op)+"' cannot be applied to '"+cur.String()+"' and '"+vt.String()+"'")
			return
		}
		value = c.numericJoin(cur, vt)
	}
	c.operatorCall("set", st, target.X, recv, []syntax.Expr{target.Index, st.Value}, []*types.Type{idx, value}, s)
}

// assignable resolves an assignment target to its variable.
func (c *checker) assignable(x syntax.Expr, s *Scope) (*types.VariableDescriptor, *types.Type) {
	switch x := x.(type) {
	case *syntax.Ident:
		c.info.Scopes[x] = s
		for _, level := range s.lookup(x.Name.Text) {
			for _, cand := range level {
				if v, ok := cand.desc.(*types.VariableDescriptor); ok {
					ref := cand.ref
					ref.Desc = v
					c.info.Refs[x] = &ref
					t := c.typeOfVar(v, x)
					c.info.Types[x] = t
					return v, t
				}
			}
		}
		c.expr(x, s, nil)
		return nil, nil
	case *syntax.MemberExpr:
		c.expr(x, s, nil)
		ref, ok := c.info.Refs[x]
		if !ok {
			return nil, nil
		}
		v, ok := ref.Desc.(*types.VariableDescriptor)
		if !ok {
			return nil, nil
		}
		return v, c.info.TypeOf(x)
	}
	return nil, nil
}

// fact is a smart cast: inside some region the variable has type t.
type fact struct {
	v *types.VariableDescriptor
	t *types.Type
}

func applyFacts(s *Scope, facts []fact) {
	for _, f := range facts {
		s.setNarrow(f.v, f.t)
	}
}

// condition checks a Boolean condition and returns the smart casts that
// hold when it is true and when it is false.
func (c *checker) condition(x syntax.Expr, s *Scope) (whenTrue, whenFalse []fact) {
	switch e := x.(type) {
	case *syntax.ParenExpr:
		whenTrue, whenFalse = c.condition(e.X, s)
		c.info.Types[e] = c.info.TypeOf(e.X)
		return whenTrue, whenFalse
	case *syntax.UnaryExpr:
		if e.Op == syntax.Bang {
			whenTrue, whenFalse = c.condition(e.X, s)
			c.info.Types[e] = c.boolType()
			return whenFalse, whenTrue
		}
	case *syntax.BinaryExpr:
		switch e.Op {
		case syntax.AndAnd:
			lt, _ := c.condition(e.X, s)
			rs := s.child(blockScope)
			applyFacts(rs, lt)
			rt, _ := c.condition(e.Y, rs)
			c.info.Types[e] = c.boolType()
			return append(lt, rt...), nil
		case syntax.OrOr:
			_, lf := c.condition(e.X, s)
			rs := s.child(blockScope)
			applyFacts(rs, lf)
			_, rf := c.condition(e.Y, rs)
			c.info.Types[e] = c.boolType()
			return nil, append(lf, rf...)
		case syntax.Eq, syntax.NotEq, syntax.Identical, syntax.NotIdent:
			c.expr(e, s, nil)
			f, ok := c.nullCheck(e, s)
			if !ok {
				return nil, nil
			}
			if e.Op == syntax.Eq || e.Op == syntax.Identical {
				return nil, []fact{f}
			}
			return []fact{f}, nil
		}
	}
	c.expectExpr(x, s, c.boolType())
	return nil, nil
}

// nullCheck recognizes `v == null` and `null == v` for a stable variable.
func (c *checker) nullCheck(e *syntax.BinaryExpr, s *Scope) (fact, bool) {
	subject := e.X
	if _, ok := e.X.(*syntax.NullLit); ok {
		subject = e.Y
	} else if _, ok := e.Y.(*syntax.NullLit); !ok {
		return fact{}, false
	}
	id, ok := unparen(subject).(*syntax.Ident)
	if !ok {
		return fact{}, false
	}
	ref, ok := c.info.Refs[id]
	if !ok {
		return fact{}, false
	}
	v, ok := ref.Desc.(*types.VariableDescriptor)
	if !ok || v.Mutable || v.Type.IsError() || !v.Type.Nullable {
		return fact{}, false
	}
	return fact{v: v, t: v.Type.WithNullable(false)}, true
}

func unparen(x syntax.Expr) syntax.Expr {
	for {
		p, ok := x.(*syntax.ParenExpr)
		if !ok {
			return x
		}
		x = p.X
	}
}
