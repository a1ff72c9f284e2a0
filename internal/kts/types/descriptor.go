// Package types holds the declaration descriptors, types and scopes shared by
// the analyzer, the code generator and the completion engine.
package types

import (
	"strconv"
	"strings"
)

// Visibility is a declaration's access modifier.
type Visibility string

const (
	Public    Visibility = "public"
	Internal  Visibility = "internal"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

// Descriptor is a resolved declaration. The set of implementations is
// closed: FunctionDescriptor, VariableDescriptor, ClassDescriptor,
// PackageDescriptor and TypeParameterDescriptor.
type Descriptor interface {
	Name() string
	Visibility() Visibility
	// Container is the enclosing class or package, nil for declarations
	// made directly by a REPL line or local to a function.
	Container() Descriptor
	// Line is the snippet number that declared the descriptor, 0 outside
	// the REPL.
	Line() int
	Accept(v Visitor)
	sealed()
}

// Visitor dispatches on the concrete descriptor kind.
type Visitor interface {
	VisitFunction(d *FunctionDescriptor)
	VisitVariable(d *VariableDescriptor)
	VisitClass(d *ClassDescriptor)
	VisitPackage(d *PackageDescriptor)
	VisitTypeParameter(d *TypeParameterDescriptor)
}

type base struct {
	name      string
	vis       Visibility
	container Descriptor
	line      int
}

func (b *base) Name() string { return b.name }

func (b *base) Visibility() Visibility {
	if b.vis == "" {
		return Public
	}
	return b.vis
}

func (b *base) Container() Descriptor { return b.container }
func (b *base) Line() int             { return b.line }
func (b *base) sealed()               {}

// SetContainer records the enclosing class or package.
func (b *base) SetContainer(c Descriptor) { b.container = c }

// Origin identifies where a declaration lives so the code generator can
// reach it at run time.
type Origin int

const (
	// OriginLine is a top-level declaration of a REPL line.
	OriginLine Origin = iota
	// OriginLocal is a function-local variable, function or parameter.
	OriginLocal
	// OriginMember is a class member.
	OriginMember
	// OriginPackage is a top-level declaration of a library package.
	OriginPackage
	// OriginBuiltin is implemented by the runtime.
	OriginBuiltin
)

// Param is a function parameter.
type Param struct {
	Name       string
	Type       *Type
	HasDefault bool
	Vararg     bool
}

// FunctionDescriptor describes a function, method or constructor.
type FunctionDescriptor struct {
	base
	Origin      Origin
	TypeParams  []*TypeParameterDescriptor
	Receiver    *Type
	Params      []*Param
	Result      *Type
	Constructor bool
	Infix       bool
	// Key is a stable identifier used by generated code for functions that
	// need a unique slot (overloads, extensions, builtins).
	Key string
}

// NewFunction creates a function descriptor.
func NewFunction(name string, vis Visibility, origin Origin, line int) *FunctionDescriptor {
	return &FunctionDescriptor{base: base{name: name, vis: vis, line: line}, Origin: origin}
}

func (d *FunctionDescriptor) Accept(v Visitor) { v.VisitFunction(d) }

// IsExtension reports whether d has an extension receiver.
func (d *FunctionDescriptor) IsExtension() bool { return d.Receiver != nil }

// MinArgs is the number of parameters without defaults.
func (d *FunctionDescriptor) MinArgs() int {
	n := 0
	for _, p := range d.Params {
		if !p.HasDefault && !p.Vararg {
			n++
		}
	}
	return n
}

// VariableDescriptor describes a property, local variable or parameter.
type VariableDescriptor struct {
	base
	Origin   Origin
	Type     *Type
	Mutable  bool
	Receiver *Type
	// Synthetic marks compiler-introduced bindings such as resN.
	Synthetic bool
	// Key mirrors FunctionDescriptor.Key.
	Key string
}

// NewVariable creates a variable descriptor.
func NewVariable(name string, t *Type, mutable bool, vis Visibility, origin Origin, line int) *VariableDescriptor {
	return &VariableDescriptor{base: base{name: name, vis: vis, line: line}, Origin: origin, Type: t, Mutable: mutable}
}

func (d *VariableDescriptor) Accept(v Visitor) { v.VisitVariable(d) }

// ClassDescriptor describes a class.
type ClassDescriptor struct {
	base
	Origin      Origin
	Package     string
	TypeParams  []*TypeParameterDescriptor
	Supers      []*Type
	Data        bool
	Inner       bool
	Open        bool
	Constructor *FunctionDescriptor
	members     []Descriptor
}

// NewClass creates a class descriptor.
func NewClass(name, pkg string, vis Visibility, origin Origin, line int) *ClassDescriptor {
	return &ClassDescriptor{base: base{name: name, vis: vis, line: line}, Origin: origin, Package: pkg}
}

func (d *ClassDescriptor) Accept(v Visitor) { v.VisitClass(d) }

// AddMember appends a member and makes d its container.
func (d *ClassDescriptor) AddMember(m Descriptor) {
	if s, ok := m.(interface{ SetContainer(Descriptor) }); ok {
		s.SetContainer(d)
	}
	d.members = append(d.members, m)
}

// DeclaredMembers returns the members declared by d itself.
func (d *ClassDescriptor) DeclaredMembers() []Descriptor { return d.members }

// Members returns the declared and inherited members. Inherited members
// hidden by a declared member with the same name and arity are dropped.
func (d *ClassDescriptor) Members() []Descriptor {
	var out []Descriptor
	seen := map[string]bool{}
	var walk func(c *ClassDescriptor, depth int)
	walk = func(c *ClassDescriptor, depth int) {
		if c == nil || depth > 32 {
			return
		}
		for _, m := range c.members {
			k := memberKey(m)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, m)
		}
		for _, s := range c.Supers {
			walk(s.Class, depth+1)
		}
	}
	walk(d, 0)
	return out
}

// MembersNamed returns the members called name, own members first.
func (d *ClassDescriptor) MembersNamed(name string) []Descriptor {
	var out []Descriptor
	for _, m := range d.Members() {
		if m.Name() == name {
			out = append(out, m)
		}
	}
	return out
}

func memberKey(m Descriptor) string {
	if f, ok := m.(*FunctionDescriptor); ok {
		var b strings.Builder
		b.WriteString("f:")
		b.WriteString(f.Name())
		for _, p := range f.Params {
			b.WriteByte(',')
			b.WriteString(p.Type.String())
		}
		return b.String()
	}
	return "v:" + m.Name()
}

// QualifiedName is the name used to register the class at run time.
func (d *ClassDescriptor) QualifiedName() string {
	var prefix string
	switch c := d.container.(type) {
	case *ClassDescriptor:
		prefix = c.QualifiedName()
	case *PackageDescriptor:
		prefix = c.FQName
	default:
		if d.Package != "" {
			prefix = d.Package
		} else if d.line > 0 {
			prefix = lineName(d.line)
		}
	}
	if prefix == "" {
		return d.name
	}
	return prefix + "." + d.name
}

// Outer returns the enclosing class, if any.
func (d *ClassDescriptor) Outer() *ClassDescriptor {
	c, _ := d.container.(*ClassDescriptor)
	return c
}

// IsSubclassOf reports whether d is o or inherits from it.
func (d *ClassDescriptor) IsSubclassOf(o *ClassDescriptor) bool {
	if d == o {
		return true
	}
	for _, s := range d.Supers {
		if s.Class != nil && s.Class.IsSubclassOf(o) {
			return true
		}
	}
	return false
}

// PackageDescriptor describes a package.
type PackageDescriptor struct {
	base
	FQName string
}

// NewPackage creates a package descriptor for fq.
func NewPackage(fq string) *PackageDescriptor {
	name := fq
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		name = fq[i+1:]
	}
	return &PackageDescriptor{base: base{name: name}, FQName: fq}
}

func (d *PackageDescriptor) Accept(v Visitor) { v.VisitPackage(d) }

// TypeParameterDescriptor describes a declared type parameter.
type TypeParameterDescriptor struct {
	base
	Index int
}

// NewTypeParameter creates a type parameter owned by a class or function.
func NewTypeParameter(name string, index int) *TypeParameterDescriptor {
	return &TypeParameterDescriptor{base: base{name: name}, Index: index}
}

func (d *TypeParameterDescriptor) Accept(v Visitor) { v.VisitTypeParameter(d) }

// SetOwner records the declaring class or function.
func (d *TypeParameterDescriptor) SetOwner(owner Descriptor) { d.container = owner }

func lineName(n int) string { return "Line_" + strconv.Itoa(n) }
