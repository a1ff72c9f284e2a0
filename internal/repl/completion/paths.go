package completion

import (
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// paths completes a string literal as a filesystem path. Text replaces the
// whole literal typed so far; name prefixes are matched without regard to
// case. Unreadable directories yield no variants.
func (e *Engine) paths(literal string) []Variant {
	if literal == "~" {
		return []Variant{{Text: "~/", DisplayText: "~/", Icon: IconFolder}}
	}

	expanded := literal
	if strings.HasPrefix(literal, "~/") {
		if usr, err := user.Current(); err == nil {
			expanded = filepath.Join(usr.HomeDir, literal[2:])
		}
	}
	if expanded != "" && !filepath.IsAbs(expanded) {
		expanded = filepath.Join(e.baseDir, expanded)
	}

	dir, prefix, typedDir := e.baseDir, "", ""
	switch {
	case literal == "":
	case literal == "/":
		dir, typedDir = "/", "/"
	case strings.HasSuffix(literal, "/"):
		dir, typedDir = expanded, literal
	default:
		if fi, err := os.Stat(expanded); err == nil && fi.IsDir() {
			dir, typedDir = expanded, literal+"/"
			break
		}
		dir, prefix = filepath.Dir(expanded), filepath.Base(expanded)
		if i := strings.LastIndexByte(literal, '/'); i >= 0 {
			typedDir = literal[:i+1]
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Debug("[Completion] cannot list directory", "dir", dir, "error", err)
		return nil
	}
	folded := fold.String(prefix)
	var out []Variant
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(fold.String(name), folded) {
			continue
		}
		icon := IconFile
		if entry.IsDir() {
			name += "/"
			icon = IconFolder
		}
		out = append(out, Variant{
			Text:        typedDir + name,
			DisplayText: truncate(name, e.width),
			Icon:        icon,
		})
	}
	slices.SortFunc(out, func(a, b Variant) int { return strings.Compare(a.Text, b.Text) })
	return out
}
