package completion

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/ileasile/kotlin/internal/kts/types"
)

const ellipsis = "..."

// presenter renders one descriptor at a time into v.
type presenter struct {
	width int
	hard  map[string]bool
	// quoted renders every name in backticks to close the one typed.
	quoted bool
	v      Variant
}

func (p *presenter) VisitFunction(d *types.FunctionDescriptor) {
	name := p.escape(d.Name())
	full := name + d.ParamList()
	tail := ""
	if d.Result != nil {
		tail = d.Result.String()
		full += ": " + tail
	}
	if d.Receiver != nil {
		tail = "for " + d.Receiver.String() + " in " + containerName(d)
	}
	p.v = Variant{
		Text:        shorten(full),
		DisplayText: truncate(name+d.ParamList(), p.width),
		Tail:        tail,
		Icon:        IconMethod,
	}
}

func (p *presenter) VisitVariable(d *types.VariableDescriptor) {
	name := p.escape(d.Name())
	tail := d.Type.String()
	if d.Receiver != nil {
		tail = "for " + d.Receiver.String() + " in " + containerName(d)
	}
	p.v = Variant{
		Text:        shorten(name + ": " + d.Type.String()),
		DisplayText: truncate(name, p.width),
		Tail:        tail,
		Icon:        IconProperty,
	}
}

func (p *presenter) VisitClass(d *types.ClassDescriptor) {
	name := p.escape(d.Name())
	tail := ""
	if d.Package != "" {
		tail = "(" + d.Package + ")"
	}
	p.v = Variant{Text: name, DisplayText: truncate(name, p.width), Tail: tail, Icon: IconClass}
}

func (p *presenter) VisitPackage(d *types.PackageDescriptor) {
	name := p.escape(d.Name())
	p.v = Variant{Text: name, DisplayText: truncate(name, p.width), Icon: IconPackage}
}

func (p *presenter) VisitTypeParameter(d *types.TypeParameterDescriptor) {
	name := p.escape(d.Name())
	p.v = Variant{Text: name, DisplayText: truncate(name, p.width), Icon: IconTypeParameter}
}

// escape wraps names that are not plain identifiers in backticks.
func (p *presenter) escape(name string) string {
	if p.quoted || p.hard[name] || !isIdentifier(name) {
		return "`" + name + "`"
	}
	return name
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// containerName names the scope declaring an extension.
func containerName(d types.Descriptor) string {
	switch c := d.Container().(type) {
	case *types.PackageDescriptor:
		return c.FQName
	case *types.ClassDescriptor:
		return c.QualifiedName()
	}
	if d.Line() > 0 {
		return "Line_" + strconv.Itoa(d.Line())
	}
	return "kotlin"
}

// shorten cuts a rendered declaration down to its insertion text: the name,
// followed by "()" for calls without parameters or "(" otherwise.
func shorten(text string) string {
	i := strings.IndexAny(text, "(:")
	if i < 0 {
		return text
	}
	if text[i] == ':' {
		return strings.TrimRight(text[:i], " ")
	}
	if i+1 < len(text) && text[i+1] == ')' {
		return text[:i+2]
	}
	return text[:i+1]
}

// truncate limits s to width terminal cells, ending it with an ellipsis
// when cut.
func truncate(s string, width int) string {
	if width <= 0 || uniseg.StringWidth(s) <= width {
		return s
	}
	target := width - uniseg.StringWidth(ellipsis)
	if target <= 0 {
		return ellipsis
	}
	var b strings.Builder
	cur := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if cur+w > target {
			break
		}
		cur += w
		b.WriteString(cluster)
	}
	b.WriteString(ellipsis)
	return b.String()
}
