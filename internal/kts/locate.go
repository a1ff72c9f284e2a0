package kts

import (
	"context"
	"errors"
	"strings"

	"github.com/ileasile/kotlin/internal/kts/analysis"
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
	"github.com/ileasile/kotlin/internal/repl"
	"github.com/ileasile/kotlin/internal/repl/completion"
)

var errNoElement = errors.New("kts: no element at cursor")

var keywords = func() []completion.Keyword {
	out := make([]completion.Keyword, 0, len(syntax.HardKeywords)+len(syntax.SoftKeywords))
	for _, k := range syntax.HardKeywords {
		out = append(out, completion.Keyword{Text: k})
	}
	for _, k := range syntax.SoftKeywords {
		out = append(out, completion.Keyword{Text: k, Soft: true})
	}
	return out
}()

// Locate analyzes marked as the next snippet and classifies the node the
// completion marker landed in.
func (e *environment) Locate(_ context.Context, marked string, cursor int, scope repl.Scope) (completion.Site, error) {
	sc, err := replScope(scope)
	if err != nil {
		return completion.Site{}, err
	}
	f, _ := syntax.Parse(marked)
	path := syntax.FindLeaf(f, cursor)
	if len(path) == 0 {
		return completion.Site{}, errNoElement
	}

	for _, n := range path {
		if lit, ok := n.(*syntax.StringLit); ok {
			return stringSite(lit), nil
		}
	}

	info, _ := analysis.Analyze(f, marked, analysis.Config{Line: nextLine(sc), Scope: sc, Builtins: e.builtins})
	site := completion.Site{Keywords: keywords}
	lex := info.ScopeAt(path)
	if lex != nil {
		site.From = lex.Context()
	} else {
		site.From = types.Context{Line: info.Line}
	}

	leaf := path[len(path)-1]
	name, ok := leaf.(*syntax.Name)
	if !ok || !strings.Contains(name.Text, completion.Marker) || len(path) < 2 {
		site.Kind = completion.LexicalScope
		site.Candidates = visible(lex, sc)
		return site, nil
	}
	site.Prefix, _, _ = strings.Cut(name.Text, completion.Marker)
	site.Quoted = name.Quoted

	switch parent := path[len(path)-2].(type) {
	case *syntax.Ident:
		site.Kind = completion.SimpleName
		site.Candidates = visible(lex, sc)
	case *syntax.MemberExpr:
		site.Kind = completion.Member
		site.Ordered = true
		site.Candidates = members(info, lex, sc, parent.X)
	case *syntax.ImportDirective:
		site.Kind = completion.Member
		site.Candidates = packageContents(sc, qualifier(parent.Path, name))
	case *syntax.TypeRef:
		site.Kind = completion.SimpleName
		if q := qualifier(parent.Path, name); q != "" {
			site.Kind = completion.Member
			site.Candidates = packageContents(sc, q)
			break
		}
		for _, d := range visible(lex, sc) {
			switch d.(type) {
			case *types.ClassDescriptor, *types.TypeParameterDescriptor, *types.PackageDescriptor:
				site.Candidates = append(site.Candidates, d)
			}
		}
	default:
		// declaration names, labels and annotation names
		site.Kind = completion.None
	}
	return site, nil
}

// nextLine numbers the completion snippet after the newest line of sc.
func nextLine(sc *types.ReplScope) int {
	lines := sc.Lines()
	if len(lines) == 0 {
		return 1
	}
	return lines[len(lines)-1].No + 1
}

// visible lists what a bare name at lex may refer to.
func visible(lex *analysis.Scope, sc *types.ReplScope) []types.Descriptor {
	if lex != nil {
		return lex.Unqualified()
	}
	// no implicit receivers outside of any scope
	var out []types.Descriptor
	for _, d := range sc.All(nil) {
		if f, ok := d.(*types.FunctionDescriptor); ok && f.Receiver != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// members lists what can follow x and a dot.
func members(info *analysis.Info, lex *analysis.Scope, sc *types.ReplScope, x syntax.Expr) []types.Descriptor {
	if ref, ok := info.Refs[x]; ok {
		switch d := ref.Desc.(type) {
		case *types.PackageDescriptor:
			return packageContents(sc, d.FQName)
		case *types.ClassDescriptor:
			var out []types.Descriptor
			for _, m := range d.Members() {
				if _, ok := m.(*types.ClassDescriptor); ok {
					out = append(out, m)
				}
			}
			return out
		}
	}
	if lex == nil {
		return nil
	}
	return lex.Members(info.TypeOf(x))
}

// packageContents lists the subpackages and members of fq.
func packageContents(sc *types.ReplScope, fq string) []types.Descriptor {
	var out []types.Descriptor
	for _, sub := range sc.Subpackages(fq) {
		child := sub
		if fq != "" {
			child = fq + "." + sub
		}
		if p, ok := sc.Package(child); ok {
			out = append(out, p)
		}
	}
	return append(out, sc.PackageMembers(fq)...)
}

// qualifier joins the names of path that precede name.
func qualifier(path []*syntax.Name, name *syntax.Name) string {
	var parts []string
	for _, n := range path {
		if n == name {
			break
		}
		parts = append(parts, n.Text)
	}
	return strings.Join(parts, ".")
}

// stringSite completes a string literal as a path. Template strings get
// an interpolated site, which yields nothing.
func stringSite(lit *syntax.StringLit) completion.Site {
	site := completion.Site{Kind: completion.StringPath, Interpolated: lit.Interpolated}
	if lit.Interpolated {
		return site
	}
	var b strings.Builder
	for _, p := range lit.Parts {
		before, _, found := strings.Cut(p.Text, completion.Marker)
		b.WriteString(before)
		if found {
			break
		}
	}
	site.Literal = b.String()
	return site
}
