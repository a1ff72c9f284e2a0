package analysis

import (
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

// ReceiverKind says how a reference without an explicit receiver reaches
// its target.
type ReceiverKind int

const (
	// NoReceiver: locals, line and package declarations.
	NoReceiver ReceiverKind = iota
	// ClassReceiver: a member reached through an implicit this.
	ClassReceiver
	// ExtensionReceiver: a member of an extension function's receiver.
	ExtensionReceiver
)

// Ref is a resolved name reference.
type Ref struct {
	Desc     types.Descriptor
	Receiver ReceiverKind
	// Hops is the number of enclosing inner-class boundaries crossed to
	// reach the implicit receiver.
	Hops int
}

// Call is a resolved call, including operator and infix calls.
type Call struct {
	Fn  *types.FunctionDescriptor
	Ref Ref
	// Recv is the explicit receiver expression, nil for implicit ones.
	Recv syntax.Expr
	// Safe marks ?. calls.
	Safe bool
	// Args holds, per parameter of Fn, the argument expression or nil when
	// the default is used. Vararg parameters take VarargArgs instead.
	Args       []syntax.Expr
	VarargArgs []syntax.Expr
	// Class is set for constructor calls.
	Class *types.ClassDescriptor
}

// Info is everything the analyzer learned about one file.
type Info struct {
	File    *syntax.File
	Src     string
	Line    int
	Package string
	// Scope holds the declarations the file contributes.
	Scope   *types.LineScope
	Imports []types.Import

	Types map[syntax.Expr]*types.Type
	Refs  map[syntax.Node]*Ref
	Calls map[syntax.Node]*Call
	Decls map[syntax.Node]types.Descriptor
	// Scopes records the lexical scope in effect at each name reference
	// and block, for completion.
	Scopes map[syntax.Node]*Scope
	// ValueIfs are if expressions whose value is used.
	ValueIfs map[*syntax.IfExpr]bool
	// Result is the resN binding, nil when the snippet yields no value.
	Result *types.VariableDescriptor
	// ResultExpr is the expression whose value is bound to Result.
	ResultExpr syntax.Expr
}

func newInfo(f *syntax.File, src string, line int, pkg string) *Info {
	return &Info{
		File: f, Src: src, Line: line, Package: pkg,
		Scope:    types.NewLineScope(line),
		Types:    map[syntax.Expr]*types.Type{},
		Refs:     map[syntax.Node]*Ref{},
		Calls:    map[syntax.Node]*Call{},
		Decls:    map[syntax.Node]types.Descriptor{},
		Scopes:   map[syntax.Node]*Scope{},
		ValueIfs: map[*syntax.IfExpr]bool{},
	}
}

// TypeOf returns the recorded type of x, or the error type.
func (in *Info) TypeOf(x syntax.Expr) *types.Type {
	if t, ok := in.Types[x]; ok && t != nil {
		return t
	}
	return types.ErrorType()
}

// ScopeAt returns the innermost recorded scope for the nodes of path,
// searching from the leaf outwards.
func (in *Info) ScopeAt(path []syntax.Node) *Scope {
	for i := len(path) - 1; i >= 0; i-- {
		if s, ok := in.Scopes[path[i]]; ok {
			return s
		}
	}
	return nil
}
