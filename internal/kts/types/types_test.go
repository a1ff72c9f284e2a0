package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	table                         *PackageTable
	any, nothing, intC, str, list *ClassDescriptor
	mutableList                   *ClassDescriptor
}

func newFixture() *fixture {
	f := &fixture{table: NewPackageTable()}
	mk := func(pkg, name string) *ClassDescriptor {
		c := NewClass(name, pkg, Public, OriginBuiltin, 0)
		f.table.Add(pkg, c)
		return c
	}
	f.any = mk("kotlin", "Any")
	f.nothing = mk("kotlin", "Nothing")
	f.intC = mk("kotlin", "Int")
	f.str = mk("kotlin", "String")
	f.list = mk("kotlin.collections", "List")
	e := NewTypeParameter("E", 0)
	e.SetOwner(f.list)
	f.list.TypeParams = []*TypeParameterDescriptor{e}
	f.mutableList = mk("kotlin.collections", "MutableList")
	me := NewTypeParameter("E", 0)
	me.SetOwner(f.mutableList)
	f.mutableList.TypeParams = []*TypeParameterDescriptor{me}
	f.mutableList.Supers = []*Type{ClassType(f.list, ParamType(me))}
	f.table.AddPackage("java.lang")
	f.table.AddPackage("java.math")
	return f
}

func TestSubtyping(t *testing.T) {
	f := newFixture()
	intT := ClassType(f.intC)
	anyT := ClassType(f.any)
	strT := ClassType(f.str)
	assert.True(t, IsSubtype(intT, anyT))
	assert.False(t, IsSubtype(intT.WithNullable(true), anyT))
	assert.True(t, IsSubtype(intT, anyT.WithNullable(true)))
	assert.True(t, IsSubtype(ClassType(f.nothing).WithNullable(true), strT.WithNullable(true)))
	assert.False(t, IsSubtype(intT, strT))
	assert.True(t, IsSubtype(ErrorType(), strT))

	mlInt := ClassType(f.mutableList, intT)
	assert.True(t, IsSubtype(mlInt, ClassType(f.list, intT)))
	assert.True(t, IsSubtype(ClassType(f.list, intT), ClassType(f.list, anyT)))
	assert.False(t, IsSubtype(ClassType(f.list, strT), ClassType(f.list, intT)))
	assert.Equal(t, "MutableList<Int>", mlInt.String())
	assert.Equal(t, "Int?", intT.WithNullable(true).String())
}

func TestSubstitute(t *testing.T) {
	f := newFixture()
	e := f.list.TypeParams[0]
	listOfInt := ClassType(f.list, ClassType(f.intC))
	got := Substitute(ParamType(e).WithNullable(true), listOfInt.Substitution())
	assert.Equal(t, "Int?", got.String())
}

func TestReplScopeLookupNewestFirst(t *testing.T) {
	f := newFixture()
	s := NewReplScope(f.table)
	l1 := NewLineScope(1)
	x1 := NewVariable("x", ClassType(f.intC), false, Public, OriginLine, 1)
	l1.Declare(x1)
	l2 := NewLineScope(2)
	x2 := NewVariable("x", ClassType(f.str), false, Public, OriginLine, 2)
	l2.Declare(x2)

	s1 := s.WithLine(l1)
	s2 := s1.WithLine(l2)
	levels := s2.Lookup("x", nil)
	require.NotEmpty(t, levels)
	assert.Same(t, x2, levels[0][0])
	assert.Same(t, x1, s1.Lookup("x", nil)[0][0])
	assert.Len(t, s.Lines(), 0)

	all := s2.All(nil)
	var xs int
	for _, d := range all {
		if d.Name() == "x" {
			xs++
		}
	}
	assert.Equal(t, 1, xs)
}

func TestReplScopeImports(t *testing.T) {
	f := newFixture()
	s := NewReplScope(f.table)
	assert.Equal(t, []string{"lang", "math"}, s.Subpackages("java"))
	assert.True(t, s.PackageExists("java.lang"))
	assert.False(t, s.PackageExists("java.nope"))

	levels := s.Lookup("MutableList", nil)
	require.NotEmpty(t, levels)
	assert.Same(t, f.mutableList, levels[0][0])

	levels = s.Lookup("Alias", []Import{{Path: "kotlin.collections.List", Alias: "Alias"}})
	require.NotEmpty(t, levels)
	assert.Same(t, f.list, levels[0][0])
}

func TestVisibility(t *testing.T) {
	outer := NewClass("Outer", "", Public, OriginLine, 1)
	nested := NewClass("Nested", "", Public, OriginLine, 1)
	outer.AddMember(nested)
	secret := NewVariable("secret", nil, false, Private, OriginMember, 1)
	outer.AddMember(secret)

	ok, err := IsVisible(secret, Context{Line: 2})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = IsVisible(secret, Context{Line: 1, Class: nested})
	require.NoError(t, err)
	assert.True(t, ok)

	topPrivate := NewVariable("p", nil, false, Private, OriginLine, 3)
	ok, _ = IsVisible(topPrivate, Context{Line: 4})
	assert.False(t, ok)

	orphan := NewVariable("o", nil, false, Private, OriginLocal, 0)
	_, err = IsVisible(orphan, Context{Line: 4})
	assert.True(t, errors.Is(err, ErrUndecidable))

	tp := NewTypeParameter("T", 0)
	tp.SetOwner(outer)
	assert.True(t, TypeParameterReachable(tp, Context{Class: outer}))
	assert.False(t, TypeParameterReachable(tp, Context{Class: nested}))
	nested.Inner = true
	assert.True(t, TypeParameterReachable(tp, Context{Class: nested}))
}

func TestQualifiedName(t *testing.T) {
	c := NewClass("Foo", "", Public, OriginLine, 3)
	assert.Equal(t, "Line_3.Foo", c.QualifiedName())
	inner := NewClass("Bar", "", Public, OriginMember, 3)
	c.AddMember(inner)
	assert.Equal(t, "Line_3.Foo.Bar", inner.QualifiedName())
	f := newFixture()
	assert.Equal(t, "kotlin.collections.List", f.list.QualifiedName())
}
