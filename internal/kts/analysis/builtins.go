package analysis

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/ileasile/kotlin/internal/kts/types"
)

//go:embed builtins/*.kt
var builtinSources embed.FS

// Builtins is the standard library visible to every snippet.
type Builtins struct {
	Table *types.PackageTable

	Any, Nothing, Unit, Int, Double, Boolean, String *types.ClassDescriptor
	List, MutableList, IntRange, IntProgression      *types.ClassDescriptor
	Throwable, Pair                                  *types.ClassDescriptor
}

// LoadBuiltins returns the shared standard library. The declarations are
// immutable once loaded.
var LoadBuiltins = sync.OnceValue(func() *Builtins {
	b, err := loadBuiltins()
	if err != nil {
		panic(fmt.Sprintf("kts: builtin declarations: %v", err))
	}
	return b
})

func loadBuiltins() (*Builtins, error) {
	names, err := fs.Glob(builtinSources, "builtins/*.kt")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	var srcs []Source
	for _, name := range names {
		data, err := builtinSources.ReadFile(name)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, Source{Name: name, Text: string(data)})
	}
	table := types.NewPackageTable()
	if _, err := AnalyzeLibrary(srcs, LibraryConfig{Table: table, Origin: types.OriginBuiltin}); err != nil {
		return nil, err
	}
	return builtinsFrom(table), nil
}

// builtinsFrom picks the well-known classes out of table.
func builtinsFrom(table *types.PackageTable) *Builtins {
	b := &Builtins{Table: table}
	class := func(fq string) *types.ClassDescriptor {
		pkg, name := types.Import{Path: fq}.Target()
		for _, d := range table.Members(pkg) {
			if c, ok := d.(*types.ClassDescriptor); ok && c.Name() == name {
				return c
			}
		}
		return nil
	}
	b.Any = class(types.AnyName)
	b.Nothing = class(types.NothingName)
	b.Unit = class(types.UnitName)
	b.Int = class(types.IntName)
	b.Double = class(types.DoubleName)
	b.Boolean = class(types.BooleanName)
	b.String = class(types.StringName)
	b.List = class(types.ListName)
	b.MutableList = class("kotlin.collections.MutableList")
	b.IntRange = class("kotlin.IntRange")
	b.IntProgression = class("kotlin.IntProgression")
	b.Throwable = class("kotlin.Throwable")
	b.Pair = class("kotlin.Pair")
	return b
}

// Keys lists the runtime slot of every builtin function and property, for
// checking that the runtime implements them all.
func (b *Builtins) Keys() []string {
	seen := map[string]bool{}
	var walk func(fq string)
	add := func(key string) {
		if key != "" {
			seen[key] = true
		}
	}
	var member func(d types.Descriptor)
	member = func(d types.Descriptor) {
		switch d := d.(type) {
		case *types.FunctionDescriptor:
			add(d.Key)
		case *types.VariableDescriptor:
			add(d.Key)
		case *types.ClassDescriptor:
			if d.Constructor != nil {
				add(d.Constructor.Key)
			}
			for _, m := range d.DeclaredMembers() {
				member(m)
			}
		}
	}
	walk = func(fq string) {
		for _, d := range b.Table.Members(fq) {
			member(d)
		}
		for _, sub := range b.Table.Subpackages(fq) {
			if fq == "" {
				walk(sub)
			} else {
				walk(fq + "." + sub)
			}
		}
	}
	walk("")
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsBuiltinPackage reports whether fq is part of the standard library.
func (b *Builtins) IsBuiltinPackage(fq string) bool {
	root, _, _ := strings.Cut(fq, ".")
	return root == "kotlin" || root == "java"
}
