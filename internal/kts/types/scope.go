package types

import (
	"slices"
	"sort"
	"strings"
)

// PackageProvider exposes package fragments: subpackage names and top-level
// members by fully-qualified package name. The root package is "".
type PackageProvider interface {
	Subpackages(fq string) []string
	Members(fq string) []Descriptor
}

// PackageTable is an in-memory PackageProvider.
type PackageTable struct {
	members map[string][]Descriptor
	subs    map[string]map[string]bool
	pkgs    map[string]*PackageDescriptor
}

// NewPackageTable returns an empty table.
func NewPackageTable() *PackageTable {
	return &PackageTable{
		members: map[string][]Descriptor{},
		subs:    map[string]map[string]bool{},
		pkgs:    map[string]*PackageDescriptor{},
	}
}

// AddPackage registers fq and all of its ancestors, returning its descriptor.
func (t *PackageTable) AddPackage(fq string) *PackageDescriptor {
	if p, ok := t.pkgs[fq]; ok {
		return p
	}
	p := NewPackage(fq)
	t.pkgs[fq] = p
	if fq == "" {
		return p
	}
	parent := ""
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		parent = fq[:i]
	}
	t.AddPackage(parent)
	if t.subs[parent] == nil {
		t.subs[parent] = map[string]bool{}
	}
	t.subs[parent][p.Name()] = true
	return p
}

// Add registers d as a top-level member of package fq.
func (t *PackageTable) Add(fq string, d Descriptor) {
	p := t.AddPackage(fq)
	if s, ok := d.(interface{ SetContainer(Descriptor) }); ok {
		s.SetContainer(p)
	}
	t.members[fq] = append(t.members[fq], d)
}

func (t *PackageTable) Subpackages(fq string) []string {
	out := make([]string, 0, len(t.subs[fq]))
	for name := range t.subs[fq] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *PackageTable) Members(fq string) []Descriptor { return t.members[fq] }

// Package returns the descriptor registered for fq.
func (t *PackageTable) Package(fq string) (*PackageDescriptor, bool) {
	p, ok := t.pkgs[fq]
	return p, ok
}

// Import is one import directive.
type Import struct {
	Path  string
	Star  bool
	Alias string
}

// Name is the simple name an explicit import introduces.
func (i Import) Name() string {
	if i.Alias != "" {
		return i.Alias
	}
	if j := strings.LastIndexByte(i.Path, '.'); j >= 0 {
		return i.Path[j+1:]
	}
	return i.Path
}

// Target returns the imported declaration's package and simple name.
func (i Import) Target() (pkg, name string) {
	if j := strings.LastIndexByte(i.Path, '.'); j >= 0 {
		return i.Path[:j], i.Path[j+1:]
	}
	return "", i.Path
}

// LineScope holds the declarations and imports contributed by one snippet.
type LineScope struct {
	No      int
	Imports []Import
	decls   []Descriptor
}

// NewLineScope returns an empty scope for snippet no.
func NewLineScope(no int) *LineScope { return &LineScope{No: no} }

// Declare appends d.
func (l *LineScope) Declare(d Descriptor) { l.decls = append(l.decls, d) }

// Decls returns the declarations in source order.
func (l *LineScope) Decls() []Descriptor { return l.decls }

// Lookup returns the declarations called name.
func (l *LineScope) Lookup(name string) []Descriptor {
	var out []Descriptor
	for _, d := range l.decls {
		if d.Name() == name {
			out = append(out, d)
		}
	}
	return out
}

// DefaultImports are star-imported into every snippet.
var DefaultImports = []string{"kotlin", "kotlin.collections", "kotlin.text", "kotlin.io", "java.lang"}

// ReplScope is the cumulative resolution scope: every successfully compiled
// line, every import made so far and the package providers. It is
// persistent: the With methods return extended copies and never modify the
// receiver, so readers may keep using an older scope.
type ReplScope struct {
	lines     []*LineScope
	imports   []Import
	providers []PackageProvider
	defaults  []string
}

// NewReplScope returns a scope with no lines.
func NewReplScope(providers ...PackageProvider) *ReplScope {
	return &ReplScope{providers: slices.Clip(providers), defaults: DefaultImports}
}

// WithLine returns a scope extended by l.
func (s *ReplScope) WithLine(l *LineScope) *ReplScope {
	c := *s
	c.lines = append(slices.Clip(s.lines), l)
	c.imports = append(slices.Clip(s.imports), l.Imports...)
	return &c
}

// WithProviders returns a scope with additional package providers.
func (s *ReplScope) WithProviders(p ...PackageProvider) *ReplScope {
	c := *s
	c.providers = append(slices.Clip(s.providers), p...)
	return &c
}

// Lines returns the compiled lines, oldest first.
func (s *ReplScope) Lines() []*LineScope { return s.lines }

// Imports returns the cumulative imports, oldest first.
func (s *ReplScope) Imports() []Import { return s.imports }

// Providers returns the registered package providers.
func (s *ReplScope) Providers() []PackageProvider { return s.providers }

// PackageExists reports whether fq names a known package.
func (s *ReplScope) PackageExists(fq string) bool {
	if fq == "" {
		return true
	}
	parent, name := Import{Path: fq}.Target()
	return slices.Contains(s.Subpackages(parent), name)
}

// Subpackages merges the subpackages of fq across providers.
func (s *ReplScope) Subpackages(fq string) []string {
	var out []string
	for _, p := range s.providers {
		for _, name := range p.Subpackages(fq) {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// PackageMembers merges the members of fq across providers.
func (s *ReplScope) PackageMembers(fq string) []Descriptor {
	var out []Descriptor
	for _, p := range s.providers {
		out = append(out, p.Members(fq)...)
	}
	return out
}

// Package returns a descriptor for fq if the package exists.
func (s *ReplScope) Package(fq string) (*PackageDescriptor, bool) {
	for _, p := range s.providers {
		if t, ok := p.(*PackageTable); ok {
			if d, ok := t.Package(fq); ok {
				return d, true
			}
		}
	}
	if s.PackageExists(fq) {
		return NewPackage(fq), true
	}
	return nil, false
}

// Lookup returns the candidates for name grouped by priority, highest
// first: earlier lines newest first, then explicit imports (pending ones
// before cumulative ones), then star imports, then default imports, then
// root packages.
func (s *ReplScope) Lookup(name string, pending []Import) [][]Descriptor {
	var levels [][]Descriptor
	add := func(ds []Descriptor) {
		if len(ds) > 0 {
			levels = append(levels, ds)
		}
	}
	for i := len(s.lines) - 1; i >= 0; i-- {
		add(s.lines[i].Lookup(name))
	}
	imports := s.allImports(pending)
	var explicit []Descriptor
	for _, imp := range imports {
		if imp.Star || imp.Name() != name {
			continue
		}
		pkg, simple := imp.Target()
		explicit = append(explicit, named(s.PackageMembers(pkg), simple)...)
	}
	add(explicit)
	var star []Descriptor
	for _, imp := range imports {
		if imp.Star {
			star = append(star, named(s.PackageMembers(imp.Path), name)...)
		}
	}
	add(star)
	var defaults []Descriptor
	for _, fq := range s.defaults {
		defaults = append(defaults, named(s.PackageMembers(fq), name)...)
	}
	add(defaults)
	if s.PackageExists(name) {
		if p, ok := s.Package(name); ok {
			add([]Descriptor{p})
		}
	}
	return levels
}

// All returns every declaration visible at top level, highest priority
// first. Variables and classes shadowed by a newer declaration of the same
// name are dropped; function overloads are kept.
func (s *ReplScope) All(pending []Import) []Descriptor {
	var out []Descriptor
	shadowed := map[string]bool{}
	add := func(d Descriptor) {
		if _, fn := d.(*FunctionDescriptor); !fn {
			if shadowed[d.Name()] {
				return
			}
			shadowed[d.Name()] = true
		}
		out = append(out, d)
	}
	for i := len(s.lines) - 1; i >= 0; i-- {
		for _, d := range s.lines[i].Decls() {
			add(d)
		}
	}
	imports := s.allImports(pending)
	for _, imp := range imports {
		if imp.Star {
			continue
		}
		pkg, simple := imp.Target()
		for _, d := range named(s.PackageMembers(pkg), simple) {
			add(d)
		}
	}
	for _, imp := range imports {
		if imp.Star {
			for _, d := range s.PackageMembers(imp.Path) {
				add(d)
			}
		}
	}
	for _, fq := range s.defaults {
		for _, d := range s.PackageMembers(fq) {
			add(d)
		}
	}
	for _, name := range s.Subpackages("") {
		if p, ok := s.Package(name); ok {
			add(p)
		}
	}
	return out
}

func (s *ReplScope) allImports(pending []Import) []Import {
	out := make([]Import, 0, len(pending)+len(s.imports))
	out = append(out, pending...)
	for i := len(s.imports) - 1; i >= 0; i-- {
		out = append(out, s.imports[i])
	}
	return out
}

func named(ds []Descriptor, name string) []Descriptor {
	var out []Descriptor
	for _, d := range ds {
		if d.Name() == name {
			out = append(out, d)
		}
	}
	return out
}
