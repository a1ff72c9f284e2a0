package runtime

import (
	"slices"
	"sync"

	"github.com/dop251/goja"
)

// Loader records the classes and line instances one evaluation defined.
// Loaders form a chain: lookups fall back to the parent, so the loader of
// the latest evaluation sees everything defined before it.
type Loader struct {
	parent *Loader
	name   string

	mu       sync.RWMutex
	classes  map[string]goja.Value
	line     int
	instance *goja.Object
	depth    int
}

// NewLoader returns an empty loader whose lookups fall back to parent,
// which may be nil.
func NewLoader(parent *Loader, name string) *Loader {
	l := &Loader{parent: parent, name: name, classes: make(map[string]goja.Value)}
	if parent != nil {
		l.depth = parent.depth + 1
	}
	return l
}

// Parent returns the loader this one delegates to.
func (l *Loader) Parent() *Loader { return l.parent }

// Name identifies the unit the loader was created for.
func (l *Loader) Name() string { return l.name }

// Depth is the number of ancestors.
func (l *Loader) Depth() int { return l.depth }

// Class looks up a class by qualified name.
func (l *Loader) Class(name string) (goja.Value, bool) {
	for c := l; c != nil; c = c.parent {
		c.mu.RLock()
		v, ok := c.classes[name]
		c.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Instance looks up the instance of snippet line n.
func (l *Loader) Instance(n int) (*goja.Object, bool) {
	for c := l; c != nil; c = c.parent {
		c.mu.RLock()
		line, inst := c.line, c.instance
		c.mu.RUnlock()
		if inst != nil && line == n {
			return inst, true
		}
	}
	return nil, false
}

// Classes returns the qualified names of the classes defined by this
// loader itself, sorted.
func (l *Loader) Classes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.classes))
	for name := range l.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (l *Loader) define(name string, cls goja.Value) {
	l.mu.Lock()
	l.classes[name] = cls
	l.mu.Unlock()
}

func (l *Loader) begin(n int, inst *goja.Object) {
	l.mu.Lock()
	l.line, l.instance = n, inst
	l.mu.Unlock()
}
