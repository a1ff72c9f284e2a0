package analysis

import (
	"strconv"
	"strings"

	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

func visibility(m syntax.Modifiers) types.Visibility {
	if m.Visibility == "" {
		return types.Public
	}
	return types.Visibility(m.Visibility)
}

// importDirectives validates and records the file's imports.
func (c *checker) importDirectives() {
	for _, d := range c.info.File.Imports {
		if len(d.Path) == 0 {
			continue
		}
		names := make([]string, len(d.Path))
		for i, n := range d.Path {
			names[i] = n.Text
		}
		imp := types.Import{Path: strings.Join(names, "."), Star: d.Star}
		if d.Alias != nil {
			imp.Alias = d.Alias.Text
		}
		last := d.Path[len(d.Path)-1]
		// Report the first segment that does not resolve.
		for i := range d.Path {
			fq := strings.Join(names[:i+1], ".")
			if c.repl.PackageExists(fq) {
				continue
			}
			ok := false
			if !d.Star && i == len(d.Path)-1 {
				pkg, simple := imp.Target()
				ok = len(named(c.packageMembers(pkg), simple)) > 0
			}
			if !ok {
				c.errorAt(d.Path[i], "Unresolved reference: "+d.Path[i].Text)
			}
			break
		}
		if !d.Star && c.repl.PackageExists(imp.Path) {
			c.errorAt(last, "Packages cannot be imported")
		}
		c.imports = append(c.imports, imp)
	}
	c.info.Imports = c.imports
	c.info.Scope.Imports = c.imports
}

func (c *checker) packageMembers(fq string) []types.Descriptor {
	return c.repl.PackageMembers(fq)
}

func named(ds []types.Descriptor, name string) []types.Descriptor {
	var out []types.Descriptor
	for _, d := range ds {
		if d.Name() == name {
			out = append(out, d)
		}
	}
	return out
}

// addTopLevel makes d visible at file level: in the package table for
// library files, in the root scope and line scope for snippets.
func (c *checker) addTopLevel(node syntax.Node, d types.Descriptor) {
	c.info.Decls[node] = d
	if c.line == 0 {
		c.table.Add(c.pkg, d)
		c.info.Scope.Declare(d)
		return
	}
	c.checkConflict(c.root, node, d)
	c.root.declare(d)
	c.info.Scope.Declare(d)
}

func (c *checker) checkConflict(s *Scope, node syntax.Node, d types.Descriptor) {
	for _, other := range s.local(d.Name()) {
		if conflicts(other, d) {
			c.errorAt(nameNode(node), "Conflicting declarations: "+d.Name())
			return
		}
	}
}

func conflicts(a, b types.Descriptor) bool {
	fa, okA := a.(*types.FunctionDescriptor)
	fb, okB := b.(*types.FunctionDescriptor)
	if okA != okB {
		// A property and a function may share a name; a class constructor
		// and a function may not.
		_, classA := a.(*types.ClassDescriptor)
		_, classB := b.(*types.ClassDescriptor)
		return classA || classB
	}
	if !okA {
		return true
	}
	if len(fa.Params) != len(fb.Params) || (fa.Receiver == nil) != (fb.Receiver == nil) {
		return false
	}
	if fa.Receiver != nil && !types.Equal(fa.Receiver, fb.Receiver) {
		return false
	}
	for i := range fa.Params {
		if !types.Equal(fa.Params[i].Type, fb.Params[i].Type) {
			return false
		}
	}
	return true
}

func nameNode(n syntax.Node) syntax.Node {
	switch n := n.(type) {
	case *syntax.PropertyDecl:
		return n.Name
	case *syntax.FunDecl:
		return n.Name
	case *syntax.ClassDecl:
		return n.Name
	case *syntax.Param:
		return n.Name
	}
	return n
}

// declareShells creates descriptors for every class so that signatures may
// refer to classes declared later in the file.
func (c *checker) declareShells() {
	for _, st := range c.info.File.Stmts {
		if d, ok := st.(*syntax.ClassDecl); ok {
			cls := c.classShell(d, nil)
			c.addTopLevel(d, cls)
		}
	}
}

func (c *checker) classShell(d *syntax.ClassDecl, outer *types.ClassDescriptor) *types.ClassDescriptor {
	origin := c.origin
	if outer != nil {
		origin = types.OriginMember
		if c.origin == types.OriginBuiltin {
			origin = types.OriginBuiltin
		}
	}
	cls := types.NewClass(d.Name.Text, c.pkg, visibility(d.Mods), origin, c.line)
	cls.Data = d.Mods.Data
	cls.Inner = d.Mods.Inner
	cls.Open = d.Mods.Open
	if outer != nil {
		outer.AddMember(cls)
	}
	c.info.Decls[d] = cls
	c.classDecls[cls] = d
	// Type parameters are known before any header resolves a type, so
	// signatures may mention classes declared later in the same pass.
	for i, tp := range d.TypeParams {
		td := types.NewTypeParameter(tp.Name.Text, i)
		td.SetOwner(cls)
		cls.TypeParams = append(cls.TypeParams, td)
		c.info.Decls[tp] = td
	}
	for _, m := range d.Members {
		if nd, ok := m.(*syntax.ClassDecl); ok {
			c.classShell(nd, cls)
		}
	}
	return cls
}

// declareHeaders fills in type parameters, supertypes, constructors and
// member signatures of every class.
func (c *checker) declareHeaders() {
	for _, st := range c.info.File.Stmts {
		if d, ok := st.(*syntax.ClassDecl); ok {
			c.classHeader(d, c.root)
		}
	}
}

func (c *checker) classHeader(d *syntax.ClassDecl, outer *Scope) {
	cls := c.info.Decls[d].(*types.ClassDescriptor)
	if cls.Inner && cls.Outer() == nil {
		c.errorAt(d.Name, "Modifier 'inner' is not applicable to top level classes")
		cls.Inner = false
	}
	hdr := outer.child(blockScope)
	for _, td := range cls.TypeParams {
		hdr.declareTypeParam(td)
	}
	for _, st := range d.Supers {
		t := c.resolveType(st.Type, hdr)
		if c.origin != types.OriginBuiltin {
			c.errorAt(st, "Inheritance is not supported")
			continue
		}
		if !t.IsError() {
			cls.Supers = append(cls.Supers, t)
		}
	}
	if len(cls.Supers) == 0 && cls.QualifiedName() != types.AnyName && c.b.Any != nil {
		cls.Supers = []*types.Type{types.ClassType(c.b.Any)}
	}

	body := hdr.child(classScope)
	body.class = cls
	c.classScopes[cls] = body

	self := selfType(cls)

	if c.origin == types.OriginBuiltin && !d.HasCtor {
		// Builtin value classes such as Int cannot be constructed.
		c.classMembers(d, cls, body)
		return
	}
	ctor := types.NewFunction(cls.Name(), cls.Visibility(), types.OriginMember, c.line)
	ctor.Constructor = true
	ctor.TypeParams = cls.TypeParams
	ctor.Result = self
	ctor.SetContainer(cls)
	cls.Constructor = ctor
	if c.origin == types.OriginBuiltin {
		ctor.Origin = types.OriginBuiltin
		ctor.Key = "new$" + cls.Name()
	}
	for _, p := range d.CtorParams {
		prm := c.param(p, hdr)
		ctor.Params = append(ctor.Params, prm)
		if p.Property {
			v := types.NewVariable(p.Name.Text, prm.Type, p.Mutable, visibility(p.Mods), c.memberOrigin(), c.line)
			v.Key = c.memberKey(cls, p.Name.Text)
			c.checkConflict(body, p, v)
			body.declare(v)
			cls.AddMember(v)
			c.info.Decls[p] = v
		}
	}
	if cls.Data {
		c.dataClass(d, cls, self)
	}
	c.classMembers(d, cls, body)
}

func (c *checker) classMembers(d *syntax.ClassDecl, cls *types.ClassDescriptor, body *Scope) {
	for _, m := range d.Members {
		switch m := m.(type) {
		case *syntax.PropertyDecl:
			v := c.propertySignature(m, body, c.memberOrigin())
			c.checkConflict(body, m, v)
			body.declare(v)
			cls.AddMember(v)
		case *syntax.FunDecl:
			f := c.funSignature(m, body, c.memberOrigin())
			if f.Receiver != nil {
				c.errorAt(m.Receiver, "Member extensions are not supported")
			}
			c.checkConflict(body, m, f)
			body.declare(f)
			cls.AddMember(f)
		case *syntax.ClassDecl:
			c.classHeader(m, body)
		}
	}
	assignKeys(cls.DeclaredMembers())
}

// memberKey names a property or synthesized member at run time. Builtin
// members live in the runtime's slot table.
func (c *checker) memberKey(cls *types.ClassDescriptor, name string) string {
	if c.origin == types.OriginBuiltin {
		return cls.Name() + "$" + name
	}
	return name
}

func (c *checker) memberOrigin() types.Origin {
	if c.origin == types.OriginBuiltin {
		return types.OriginBuiltin
	}
	return types.OriginMember
}

// dataClass validates the constructor of a data class and synthesizes its
// componentN and copy members.
func (c *checker) dataClass(d *syntax.ClassDecl, cls *types.ClassDescriptor, self *types.Type) {
	if len(d.CtorParams) == 0 {
		c.errorAt(d.Name, "Data class must have at least one primary constructor parameter")
		return
	}
	copyFn := types.NewFunction("copy", types.Public, c.memberOrigin(), c.line)
	copyFn.Result = self
	n := 0
	for i, p := range d.CtorParams {
		if !p.Property {
			c.errorAt(p, "Data class primary constructor must have only property (val / var) parameters")
			continue
		}
		prm := cls.Constructor.Params[i]
		n++
		comp := types.NewFunction("component"+strconv.Itoa(n), types.Public, c.memberOrigin(), c.line)
		comp.Result = prm.Type
		comp.Key = c.memberKey(cls, comp.Name())
		cls.AddMember(comp)
		copyFn.Params = append(copyFn.Params, &types.Param{Name: prm.Name, Type: prm.Type, HasDefault: true})
	}
	copyFn.Key = c.memberKey(cls, "copy")
	cls.AddMember(copyFn)
}

func (c *checker) param(p *syntax.Param, s *Scope) *types.Param {
	prm := &types.Param{Name: p.Name.Text, HasDefault: p.Default != nil, Vararg: p.Vararg}
	if p.Type != nil {
		prm.Type = c.resolveType(p.Type, s)
	} else {
		c.errorAt(p.Name, "A type annotation is required on a value parameter")
		prm.Type = types.ErrorType()
	}
	return prm
}

// propertySignature declares a property. Its type comes from the
// annotation or, lazily, from the initializer.
func (c *checker) propertySignature(d *syntax.PropertyDecl, s *Scope, origin types.Origin) *types.VariableDescriptor {
	v := types.NewVariable(d.Name.Text, nil, d.Mutable, visibility(d.Mods), origin, c.line)
	v.Key = d.Name.Text
	if s.kind == classScope {
		v.Key = c.memberKey(s.class, d.Name.Text)
	}
	c.info.Decls[d] = v
	if d.Type != nil {
		v.Type = c.resolveType(d.Type, s)
	}
	switch {
	case d.Init != nil:
		c.deferCheck(v, func() { c.propertyInit(d, v, s) })
	case origin == types.OriginBuiltin:
	case v.Type == nil:
		c.errorAt(d.Name, "This variable must either have a type annotation or be initialized")
		v.Type = types.ErrorType()
	case origin != types.OriginLocal:
		c.errorAt(d.Name, "Property must be initialized")
	}
	if v.Type == nil && d.Init == nil {
		v.Type = types.ErrorType()
	}
	return v
}

// propertyInit checks a property initializer. For class members the
// initializer sees the constructor parameters.
func (c *checker) propertyInit(d *syntax.PropertyDecl, v *types.VariableDescriptor, s *Scope) {
	scope := s
	if s.kind == classScope {
		scope = c.ctorScope(s.class)
	}
	t := c.expr(d.Init, scope, v.Type)
	if v.Type == nil {
		v.Type = t
		return
	}
	c.expectType(d.Init, t, v.Type)
}

// ctorScope returns the scope holding constructor parameters of cls, in
// which property initializers and init blocks are checked.
func (c *checker) ctorScope(cls *types.ClassDescriptor) *Scope {
	if s, ok := c.ctorScopes[cls]; ok {
		return s
	}
	body := c.classScopes[cls]
	s := body.child(funcScope)
	if d, ok := c.classDecls[cls]; ok {
		for i, p := range d.CtorParams {
			prm := cls.Constructor.Params[i]
			pv := types.NewVariable(p.Name.Text, prm.Type, false, types.Public, types.OriginLocal, c.line)
			if prm.Vararg {
				pv.Type = c.listOf(prm.Type)
			}
			s.declare(pv)
			c.info.Decls[p.Name] = pv
		}
	}
	c.ctorScopes[cls] = s
	return s
}

func (c *checker) listOf(t *types.Type) *types.Type {
	if c.b == nil || c.b.List == nil {
		return types.ErrorType()
	}
	return types.ClassType(c.b.List, t)
}

// funSignature declares a function's signature.
func (c *checker) funSignature(d *syntax.FunDecl, s *Scope, origin types.Origin) *types.FunctionDescriptor {
	f := types.NewFunction(d.Name.Text, visibility(d.Mods), origin, c.line)
	f.Infix = d.Mods.Infix
	c.info.Decls[d] = f
	fs := s.child(funcScope)
	fs.fn = f
	for i, tp := range d.TypeParams {
		td := types.NewTypeParameter(tp.Name.Text, i)
		td.SetOwner(f)
		f.TypeParams = append(f.TypeParams, td)
		fs.declareTypeParam(td)
		c.info.Decls[tp] = td
	}
	if d.Receiver != nil {
		f.Receiver = c.resolveType(d.Receiver, fs)
		fs.recv = f.Receiver
	}
	for _, p := range d.Params {
		f.Params = append(f.Params, c.param(p, fs))
	}
	if f.Infix && len(f.Params) != 1 {
		c.errorAt(d.Name, "'infix' modifier is inapplicable on this function: must have a single value parameter")
	}
	if d.Result != nil {
		f.Result = c.resolveType(d.Result, fs)
	} else if d.ExprBody == nil {
		f.Result = types.ClassType(c.unitClass())
	}
	if origin == types.OriginBuiltin {
		f.Key = builtinKey(f, s)
	}
	c.funScopes[f] = fs
	if d.Body == nil && d.ExprBody == nil {
		if origin != types.OriginBuiltin {
			c.errorAt(d.Name, "Function '"+f.Name()+"' must have a body")
		}
		if f.Result == nil {
			f.Result = types.ErrorType()
		}
		return f
	}
	c.deferCheck(f, func() { c.funBody(d, f, fs) })
	return f
}

func (c *checker) unitClass() *types.ClassDescriptor { return c.b.Unit }

// builtinKey names the runtime slot implementing a builtin declaration.
func builtinKey(f *types.FunctionDescriptor, s *Scope) string {
	switch {
	case f.Receiver != nil && f.Receiver.Class != nil:
		return f.Receiver.Class.Name() + "$" + f.Name()
	case f.Receiver != nil && f.Receiver.Param != nil:
		return "Any$" + f.Name()
	case s.kind == classScope:
		return s.class.Name() + "$" + f.Name()
	}
	return f.Name()
}

// declareFunctions declares top-level function signatures, and for library
// files also top-level properties.
func (c *checker) declareFunctions() {
	for _, st := range c.info.File.Stmts {
		switch d := st.(type) {
		case *syntax.FunDecl:
			f := c.funSignature(d, c.root, c.origin)
			c.addTopLevel(d, f)
		case *syntax.PropertyDecl:
			if c.line == 0 {
				v := c.propertySignature(d, c.root, c.origin)
				if c.origin == types.OriginBuiltin {
					v.Key = v.Name()
				}
				c.addTopLevel(d, v)
			}
		}
	}
}

// assignKeys gives overloaded functions distinct runtime slots.
func assignKeys(ds []types.Descriptor) {
	count := map[string]int{}
	props := map[string]bool{}
	for _, d := range ds {
		switch d := d.(type) {
		case *types.FunctionDescriptor:
			if d.Origin != types.OriginBuiltin {
				count[d.Name()]++
			}
		case *types.VariableDescriptor:
			props[d.Name()] = true
		}
	}
	seen := map[string]int{}
	for _, d := range ds {
		f, ok := d.(*types.FunctionDescriptor)
		if !ok || f.Key != "" {
			continue
		}
		name := f.Name()
		if f.Receiver != nil {
			name = "ext$" + name
		}
		if count[f.Name()] > 1 || props[f.Name()] || f.Receiver != nil {
			seen[f.Name()]++
			name += "$" + strconv.Itoa(seen[f.Name()])
		}
		f.Key = name
	}
}

// resolveType resolves a written type.
func (c *checker) resolveType(ref *syntax.TypeRef, s *Scope) *types.Type {
	if ref == nil || len(ref.Path) == 0 {
		return types.ErrorType()
	}
	var t *types.Type
	if len(ref.Path) == 1 {
		name := ref.Path[0]
		c.info.Scopes[name] = s
		for _, level := range s.lookup(name.Text) {
			for _, cand := range level {
				switch d := cand.desc.(type) {
				case *types.TypeParameterDescriptor:
					t = types.ParamType(d)
				case *types.ClassDescriptor:
					t = types.ClassType(d)
				}
				if t != nil {
					break
				}
			}
			if t != nil {
				break
			}
		}
		if t == nil {
			c.errorAt(name, "Unresolved reference: "+name.Text)
			return types.ErrorType()
		}
	} else {
		cls := c.qualifiedClass(ref.Path)
		if cls == nil {
			return types.ErrorType()
		}
		t = types.ClassType(cls)
	}
	if t.Class != nil {
		want := len(t.Class.TypeParams)
		if len(ref.Args) != want {
			c.errorAt(ref, typeArgCount(want, t.Class))
			return types.ErrorType()
		}
		for _, a := range ref.Args {
			t.Args = append(t.Args, c.resolveType(a, s))
		}
	} else if len(ref.Args) > 0 {
		c.errorAt(ref, "Type arguments are not allowed for type parameters")
	}
	if ref.Nullable {
		t = t.WithNullable(true)
	}
	return t
}

func typeArgCount(n int, cls *types.ClassDescriptor) string {
	switch n {
	case 0:
		return "No type arguments expected for class " + cls.Name()
	case 1:
		return "One type argument expected for class " + cls.Name()
	}
	return strconv.Itoa(n) + " type arguments expected for class " + cls.Name()
}

// qualifiedClass resolves a dotted class name: the longest known package
// prefix followed by a class and nested classes.
func (c *checker) qualifiedClass(path []*syntax.Name) *types.ClassDescriptor {
	names := make([]string, len(path))
	for i, n := range path {
		names[i] = n.Text
	}
	for i := len(path) - 1; i >= 1; i-- {
		pkg := strings.Join(names[:i], ".")
		if !c.repl.PackageExists(pkg) {
			continue
		}
		var cls *types.ClassDescriptor
		for _, d := range named(c.packageMembers(pkg), names[i]) {
			if cd, ok := d.(*types.ClassDescriptor); ok {
				cls = cd
				break
			}
		}
		for j := i + 1; cls != nil && j < len(path); j++ {
			var next *types.ClassDescriptor
			for _, m := range cls.MembersNamed(names[j]) {
				if cd, ok := m.(*types.ClassDescriptor); ok {
					next = cd
					break
				}
			}
			if next == nil {
				c.errorAt(path[j], "Unresolved reference: "+names[j])
				return nil
			}
			cls = next
		}
		if cls == nil {
			c.errorAt(path[i], "Unresolved reference: "+names[i])
		}
		return cls
	}
	// No package prefix: an outer class followed by nested classes.
	var cls *types.ClassDescriptor
	for _, level := range c.root.lookup(names[0]) {
		for _, cand := range level {
			if cd, ok := cand.desc.(*types.ClassDescriptor); ok {
				cls = cd
				break
			}
		}
		if cls != nil {
			break
		}
	}
	if cls == nil {
		c.errorAt(path[0], "Unresolved reference: "+names[0])
		return nil
	}
	for j := 1; j < len(path); j++ {
		var next *types.ClassDescriptor
		for _, m := range cls.MembersNamed(names[j]) {
			if cd, ok := m.(*types.ClassDescriptor); ok {
				next = cd
			}
		}
		if next == nil {
			c.errorAt(path[j], "Unresolved reference: "+names[j])
			return nil
		}
		cls = next
	}
	return cls
}
