// Package completion turns the completion site a frontend located in a
// snippet into ranked, presentable variants.
//
// The caller inserts Marker at the cursor, asks the frontend where the
// marker landed, and hands the resulting Site to an Engine. Engines hold no
// session state, so a single Engine can serve concurrent requests.
package completion

import (
	"cmp"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/ileasile/kotlin/internal/kts/types"
)

// Marker is the identifier inserted at the cursor before parsing. It makes
// the partial token under the cursor a complete identifier the parser can
// place in the tree.
const Marker = "KtsCompletionMarkerZz"

// DefaultDisplayWidth is the display text budget, in terminal cells.
const DefaultDisplayWidth = 50

// Kind classifies the syntactic context of the cursor.
type Kind int

const (
	// None means nothing can be completed at the cursor.
	None Kind = iota
	// SimpleName is a bare identifier resolved against the lexical scope.
	SimpleName
	// Member is a qualified access `receiver.prefix`.
	Member
	// StringPath is a string literal completed as a filesystem path.
	StringPath
	// LexicalScope is the fallback: every declaration of the scope.
	LexicalScope
)

func (k Kind) String() string {
	switch k {
	case SimpleName:
		return "simple-name"
	case Member:
		return "member"
	case StringPath:
		return "string-path"
	case LexicalScope:
		return "lexical-scope"
	}
	return "none"
}

// Keyword is a reserved word offered as a candidate.
type Keyword struct {
	Text string
	// Soft keywords are valid identifiers and never need escaping.
	Soft bool
}

// Site is where the marker landed, as located by a frontend.
type Site struct {
	Kind Kind
	// Prefix is the typed part of the name left of the cursor, with any
	// backticks removed.
	Prefix string
	// Quoted is set when the typed name opened a backtick.
	Quoted bool
	// Candidates are the declarations that can appear at the site.
	Candidates []types.Descriptor
	// Ordered keeps Candidates in frontend order instead of sorting.
	Ordered bool
	// From is the visibility context of the site.
	From types.Context
	// Keywords of the language. They are offered in SimpleName and
	// LexicalScope sites and decide which names need backticks.
	Keywords []Keyword
	// Literal is the string literal text left of the cursor (StringPath).
	Literal string
	// Interpolated marks a template string; nothing is completed inside.
	Interpolated bool
}

// Variant is one completion candidate.
type Variant struct {
	// Text replaces the typed prefix.
	Text        string `json:"text"`
	DisplayText string `json:"displayText"`
	Tail        string `json:"tail"`
	Icon        string `json:"icon"`
}

// Icons.
const (
	IconProperty      = "property"
	IconMethod        = "method"
	IconClass         = "class"
	IconPackage       = "package"
	IconTypeParameter = "typeParameter"
	IconKeyword       = "keyword"
	IconFile          = "file"
	IconFolder        = "folder"
)

// Insert returns text with Marker inserted at cursor, a byte offset that
// is clamped into range.
func Insert(text string, cursor int) string {
	cursor = max(0, min(cursor, len(text)))
	return text[:cursor] + Marker + text[cursor:]
}

// Engine builds variants from sites.
type Engine struct {
	width   int
	baseDir string
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDisplayWidth sets the display text budget; non-positive values keep
// the default.
func WithDisplayWidth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.width = n
		}
	}
}

// WithBaseDir sets the directory relative paths are completed against.
func WithBaseDir(dir string) Option {
	return func(e *Engine) { e.baseDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		width:   DefaultDisplayWidth,
		baseDir: ".",
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Complete returns the variants for site. The sequence is computed on each
// iteration and may be ranged over any number of times; an empty sequence
// is the answer for sites without candidates.
func (e *Engine) Complete(site Site) iter.Seq[Variant] {
	return func(yield func(Variant) bool) {
		for _, v := range e.variants(site) {
			if !yield(v) {
				return
			}
		}
	}
}

func (e *Engine) variants(site Site) []Variant {
	switch site.Kind {
	case SimpleName, Member, LexicalScope:
	case StringPath:
		if site.Interpolated {
			return nil
		}
		return e.paths(site.Literal)
	default:
		return nil
	}

	hard := make(map[string]bool, len(site.Keywords))
	for _, k := range site.Keywords {
		if !k.Soft {
			hard[k.Text] = true
		}
	}
	p := presenter{width: e.width, hard: hard, quoted: site.Quoted}

	var out []Variant
	for _, d := range site.Candidates {
		if !strings.HasPrefix(d.Name(), site.Prefix) || !e.visible(d, site.From) {
			continue
		}
		d.Accept(&p)
		out = append(out, p.v)
	}
	if site.Kind != Member && !site.Quoted {
		for _, k := range site.Keywords {
			if strings.HasPrefix(k.Text, site.Prefix) {
				out = append(out, Variant{Text: k.Text, DisplayText: k.Text, Icon: IconKeyword})
			}
		}
	}
	if !site.Ordered {
		slices.SortStableFunc(out, func(a, b Variant) int {
			return cmp.Compare(a.DisplayText+a.Tail, b.DisplayText+b.Tail)
		})
	}
	return out
}

// visible applies the visibility filter. Undecidable visibility counts as
// visible.
func (e *Engine) visible(d types.Descriptor, from types.Context) bool {
	if tp, ok := d.(*types.TypeParameterDescriptor); ok && !types.TypeParameterReachable(tp, from) {
		return false
	}
	ok, err := types.IsVisible(d, from)
	if err != nil {
		e.logger.Debug("[Completion] visibility undecidable", "name", d.Name(), "error", err)
		return true
	}
	return ok
}
