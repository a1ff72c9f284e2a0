package analysis

import (
	"slices"

	"github.com/ileasile/kotlin/internal/kts/types"
)

type scopeKind int

const (
	fileScope scopeKind = iota
	classScope
	funcScope
	blockScope
)

// Scope is a lexical scope inside one file. The root scope falls back to
// the cumulative REPL scope.
type Scope struct {
	parent *Scope
	kind   scopeKind
	class  *types.ClassDescriptor
	fn     *types.FunctionDescriptor
	// recv is the extension receiver type inside extension functions.
	recv       *types.Type
	names      map[string][]types.Descriptor
	order      []types.Descriptor
	typeParams map[string]*types.TypeParameterDescriptor
	narrow     map[types.Descriptor]*types.Type
	loop       bool
	// valueBlock is set inside blocks of an if used as a value, where
	// return, break and continue cannot leave the block.
	valueBlock bool
	c          *checker
}

func (s *Scope) child(kind scopeKind) *Scope {
	n := &Scope{parent: s, kind: kind, c: s.c, loop: s.loop, valueBlock: s.valueBlock}
	if kind == funcScope || kind == classScope {
		n.loop = false
		n.valueBlock = false
	}
	return n
}

func (s *Scope) declare(d types.Descriptor) {
	if s.names == nil {
		s.names = map[string][]types.Descriptor{}
	}
	s.names[d.Name()] = append(s.names[d.Name()], d)
	s.order = append(s.order, d)
}

func (s *Scope) declareTypeParam(tp *types.TypeParameterDescriptor) {
	if s.typeParams == nil {
		s.typeParams = map[string]*types.TypeParameterDescriptor{}
	}
	s.typeParams[tp.Name()] = tp
}

// local returns the declarations named name made directly in s.
func (s *Scope) local(name string) []types.Descriptor { return s.names[name] }

func (s *Scope) narrowed(d types.Descriptor) (*types.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.narrow[d]; ok {
			return t, true
		}
	}
	return nil, false
}

func (s *Scope) setNarrow(d types.Descriptor, t *types.Type) {
	if s.narrow == nil {
		s.narrow = map[types.Descriptor]*types.Type{}
	}
	s.narrow[d] = t
}

// candidate is one declaration found by lookup, with how to reach it.
type candidate struct {
	desc types.Descriptor
	ref  Ref
}

// lookup returns candidates for name grouped by priority.
func (s *Scope) lookup(name string) [][]candidate {
	var levels [][]candidate
	hops := 0
	instance := true
	for cur := s; cur != nil; cur = cur.parent {
		var level []candidate
		own := cur.names[name]
		for _, d := range own {
			cand := candidate{desc: d}
			if cur.kind == classScope {
				// Declarations of a class body are members reached through
				// its instance.
				if _, nested := d.(*types.ClassDescriptor); !instance && !nested {
					continue
				}
				cand.ref = Ref{Receiver: ClassReceiver, Hops: hops}
			}
			level = append(level, cand)
		}
		if tp, ok := cur.typeParams[name]; ok {
			level = append(level, candidate{desc: tp})
		}
		if cur.kind == funcScope && cur.recv != nil && !cur.recv.IsError() && cur.recv.Class != nil {
			for _, m := range cur.recv.Class.MembersNamed(name) {
				level = append(level, candidate{desc: m, ref: Ref{Receiver: ExtensionReceiver}})
			}
		}
		if cur.kind == classScope {
			for _, m := range cur.class.MembersNamed(name) {
				if slices.Contains(own, m) {
					continue
				}
				_, nested := m.(*types.ClassDescriptor)
				if !instance && !nested {
					continue
				}
				level = append(level, candidate{desc: m, ref: Ref{Receiver: ClassReceiver, Hops: hops}})
			}
			if !cur.class.Inner {
				instance = false
			}
			hops++
		}
		if len(level) > 0 {
			levels = append(levels, level)
		}
		if cur.parent == nil {
			levels = append(levels, s.c.rootLookup(name)...)
		}
	}
	return levels
}

// Context returns the visibility context of s.
func (s *Scope) Context() types.Context {
	ctx := types.Context{Line: s.c.line, Package: s.c.pkg}
	ctx.Class = s.Class()
	return ctx
}

// Class returns the innermost enclosing class.
func (s *Scope) Class() *types.ClassDescriptor {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == classScope {
			return cur.class
		}
	}
	return nil
}

// Visible lists every declaration visible from s, innermost first. Shadowed
// variables are omitted.
func (s *Scope) Visible() []types.Descriptor {
	var out []types.Descriptor
	seen := map[string]bool{}
	add := func(d types.Descriptor) {
		if _, fn := d.(*types.FunctionDescriptor); !fn {
			if seen[d.Name()] {
				return
			}
			seen[d.Name()] = true
		}
		out = append(out, d)
	}
	instance := true
	for cur := s; cur != nil; cur = cur.parent {
		for i := len(cur.order) - 1; i >= 0; i-- {
			add(cur.order[i])
		}
		for _, tp := range cur.typeParams {
			add(tp)
		}
		if cur.kind == funcScope && cur.recv != nil && cur.recv.Class != nil {
			for _, m := range cur.recv.Class.Members() {
				add(m)
			}
		}
		if cur.kind == classScope {
			for _, m := range cur.class.Members() {
				if _, nested := m.(*types.ClassDescriptor); nested || instance {
					add(m)
				}
			}
			if !cur.class.Inner {
				instance = false
			}
		}
	}
	for _, d := range s.c.rootAll() {
		add(d)
	}
	return out
}

// Members lists the members of t followed by the extension functions
// visible from s that accept t as receiver.
func (s *Scope) Members(t *types.Type) []types.Descriptor {
	if t.IsError() || t.Class == nil {
		return nil
	}
	nn := t.WithNullable(false)
	out := append([]types.Descriptor(nil), t.Class.Members()...)
	for _, d := range s.Visible() {
		if f, ok := d.(*types.FunctionDescriptor); ok && f.Receiver != nil {
			if _, ok := s.c.matchReceiver(f, nn); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

// Unqualified is Visible without the extension functions that no implicit
// receiver of s can call, that is what a bare name may refer to.
func (s *Scope) Unqualified() []types.Descriptor {
	recvs := implicitReceivers(s)
	var out []types.Descriptor
	for _, d := range s.Visible() {
		if f, ok := d.(*types.FunctionDescriptor); ok && f.Receiver != nil {
			if !slices.ContainsFunc(recvs, func(r implicitReceiver) bool {
				_, ok := s.c.matchReceiver(f, r.t)
				return ok
			}) {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// Subpackages and PackageMembers expose the package view used for
// qualified completion.
func (s *Scope) Subpackages(fq string) []string { return s.c.repl.Subpackages(fq) }

func (s *Scope) PackageMembers(fq string) []types.Descriptor { return s.c.repl.PackageMembers(fq) }
