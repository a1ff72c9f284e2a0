package types

import "strings"

// Well-known class names.
const (
	AnyName     = "kotlin.Any"
	NothingName = "kotlin.Nothing"
	UnitName    = "kotlin.Unit"
	IntName     = "kotlin.Int"
	DoubleName  = "kotlin.Double"
	BooleanName = "kotlin.Boolean"
	StringName  = "kotlin.String"
	ListName    = "kotlin.collections.List"
)

// Type is a class type, a type parameter type or the error type. The error
// type is compatible with everything so one unresolved name yields one
// diagnostic.
type Type struct {
	Class    *ClassDescriptor
	Param    *TypeParameterDescriptor
	Args     []*Type
	Nullable bool
	bad      bool
}

var errorType = &Type{bad: true}

// ErrorType returns the shared error type.
func ErrorType() *Type { return errorType }

// ClassType builds a non-null class type.
func ClassType(c *ClassDescriptor, args ...*Type) *Type {
	return &Type{Class: c, Args: args}
}

// ParamType builds a type referring to a type parameter.
func ParamType(p *TypeParameterDescriptor) *Type { return &Type{Param: p} }

// IsError reports whether t is the error type. A nil type counts as error.
func (t *Type) IsError() bool { return t == nil || t.bad }

// FQ returns the qualified class name, or "" for non-class types.
func (t *Type) FQ() string {
	if t == nil || t.Class == nil {
		return ""
	}
	return t.Class.QualifiedName()
}

// Is reports whether t is the class fq, ignoring nullability.
func (t *Type) Is(fq string) bool { return t.FQ() == fq }

// IsNothing reports whether t is Nothing or Nothing?.
func (t *Type) IsNothing() bool { return t.Is(NothingName) }

// IsUnit reports whether t is Unit.
func (t *Type) IsUnit() bool { return t.Is(UnitName) }

// WithNullable returns t with nullability set to n.
func (t *Type) WithNullable(n bool) *Type {
	if t.IsError() || t.Nullable == n {
		return t
	}
	c := *t
	c.Nullable = n
	return &c
}

func (t *Type) String() string {
	if t.IsError() {
		return "[Error type]"
	}
	var b strings.Builder
	if t.Param != nil {
		b.WriteString(t.Param.Name())
	} else {
		b.WriteString(t.Class.Name())
	}
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	if t.Nullable {
		b.WriteByte('?')
	}
	return b.String()
}

// Equal reports structural equality.
func Equal(a, b *Type) bool {
	if a.IsError() || b.IsError() {
		return a.IsError() == b.IsError()
	}
	if a.Nullable != b.Nullable || a.Class != b.Class || a.Param != b.Param || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !Equal(a.Args[i], b.Args[i]) {
			return false
		}
	}
	return true
}

// Substitution maps a class type's parameters to its arguments.
func (t *Type) Substitution() map[*TypeParameterDescriptor]*Type {
	if t.IsError() || t.Class == nil || len(t.Class.TypeParams) == 0 {
		return nil
	}
	m := make(map[*TypeParameterDescriptor]*Type, len(t.Class.TypeParams))
	for i, p := range t.Class.TypeParams {
		if i < len(t.Args) {
			m[p] = t.Args[i]
		} else {
			m[p] = errorType
		}
	}
	return m
}

// Substitute replaces type parameters in t according to m.
func Substitute(t *Type, m map[*TypeParameterDescriptor]*Type) *Type {
	if t.IsError() || len(m) == 0 {
		return t
	}
	if t.Param != nil {
		r, ok := m[t.Param]
		if !ok {
			return t
		}
		if t.Nullable {
			return r.WithNullable(true)
		}
		return r
	}
	if len(t.Args) == 0 {
		return t
	}
	c := *t
	c.Args = make([]*Type, len(t.Args))
	for i, a := range t.Args {
		c.Args[i] = Substitute(a, m)
	}
	return &c
}

// supertypeAs walks t's supertypes looking for class c, substituting type
// arguments on the way.
func supertypeAs(t *Type, c *ClassDescriptor, depth int) *Type {
	if t.Class == c {
		return t
	}
	if depth > 32 {
		return nil
	}
	m := t.Substitution()
	for _, s := range t.Class.Supers {
		if r := supertypeAs(Substitute(s, m), c, depth+1); r != nil {
			return r
		}
	}
	return nil
}

// IsSubtype reports whether a value of type sub can be used where sup is
// expected.
func IsSubtype(sub, sup *Type) bool {
	if sub.IsError() || sup.IsError() {
		return true
	}
	if sub.Nullable && !sup.Nullable {
		return false
	}
	if sub.IsNothing() {
		return true
	}
	if sup.Param != nil {
		return sub.Param == sup.Param
	}
	if sup.Is(AnyName) {
		return true
	}
	if sub.Param != nil {
		return false
	}
	st := supertypeAs(sub, sup.Class, 0)
	if st == nil {
		return false
	}
	if len(st.Args) != len(sup.Args) {
		return len(sup.Args) == 0
	}
	covariant := sup.Is(ListName)
	for i := range st.Args {
		if covariant {
			if !IsSubtype(st.Args[i], sup.Args[i]) {
				return false
			}
		} else if !st.Args[i].IsError() && !sup.Args[i].IsError() && !Equal(st.Args[i], sup.Args[i]) {
			return false
		}
	}
	return true
}

// Join returns the least common supertype of a and b that this type system
// can express: one of them when related, otherwise any.
func Join(a, b, any *Type) *Type {
	switch {
	case a.IsError():
		return b
	case b.IsError():
		return a
	case IsSubtype(a, b):
		return b
	case IsSubtype(b, a):
		return a
	case IsSubtype(a.WithNullable(true), b.WithNullable(true)):
		return b.WithNullable(true)
	case IsSubtype(b.WithNullable(true), a.WithNullable(true)):
		return a.WithNullable(true)
	}
	return any.WithNullable(a.Nullable || b.Nullable)
}

// AsSupertype views t as an instance of class c, substituting type
// arguments along the inheritance path. It returns nil when t does not
// inherit from c.
func AsSupertype(t *Type, c *ClassDescriptor) *Type {
	if t.IsError() || t.Class == nil {
		return nil
	}
	return supertypeAs(t, c, 0)
}
