package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/kts/analysis"
	"github.com/ileasile/kotlin/internal/kts/syntax"
	"github.com/ileasile/kotlin/internal/kts/types"
)

// generate analyzes and generates consecutive snippets; every snippet must
// be free of errors.
func generate(t *testing.T, srcs ...string) []*Unit {
	t.Helper()
	b := analysis.LoadBuiltins()
	scope := types.NewReplScope(b.Table)
	var units []*Unit
	for i, src := range srcs {
		f, errs := syntax.Parse(src)
		require.Empty(t, errs, "parse %q", src)
		info, ds := analysis.Analyze(f, src, analysis.Config{Line: i + 1, Scope: scope, Builtins: b})
		require.False(t, diag.HasErrors(ds), "analyze %q: %v", src, ds)
		u, err := Generate(info, units)
		require.NoError(t, err, "generate %q", src)
		require.NotNil(t, u.Program)
		units = append(units, u)
		scope = scope.WithLine(info.Scope)
	}
	return units
}

func TestIntArithmeticWraps(t *testing.T) {
	u := generate(t, "val a = 7\na * 6 / 2 - a % 4")[0]
	assert.Contains(t, u.Source, "Math.imul($this.a, 6)")
	assert.Contains(t, u.Source, "$b.idiv(")
	assert.Contains(t, u.Source, "$b.imod($this.a, 4)")
	assert.True(t, u.HasResult)
	assert.Equal(t, "res1", u.ResultName)
	assert.Equal(t, "Line_1", u.Name)
}

func TestDoubleResult(t *testing.T) {
	u := generate(t, "2.5 * 2")[0]
	assert.True(t, u.ResultIsDouble())
	assert.Contains(t, u.Source, "(2.5 * 2)")
}

func TestEarlierLinesAreReferenced(t *testing.T) {
	units := generate(t, "val x = 1", "fun f(y: Int) = x + y", "f(2)")
	assert.Equal(t, []int{1}, units[1].Uses)
	assert.Contains(t, units[1].Source, "$earlier[1].x")
	assert.Equal(t, []int{2}, units[2].Uses)
	assert.Contains(t, units[2].Source, "$earlier[2].f(2)")
}

func TestUnknownLineIsRejected(t *testing.T) {
	b := analysis.LoadBuiltins()
	scope := types.NewReplScope(b.Table)
	src := "val x = 1"
	f, _ := syntax.Parse(src)
	info, _ := analysis.Analyze(f, src, analysis.Config{Line: 1, Scope: scope, Builtins: b})
	scope = scope.WithLine(info.Scope)

	src = "x + 1"
	f, _ = syntax.Parse(src)
	info, ds := analysis.Analyze(f, src, analysis.Config{Line: 2, Scope: scope, Builtins: b})
	require.Empty(t, ds)
	_, err := Generate(info, nil)
	require.ErrorIs(t, err, ErrUnknownLine)
}

func TestBuiltinsUseSlots(t *testing.T) {
	u := generate(t, `val s = "abc"
s.length + listOf(1, 2).size + s.substring(1).length`)[0]
	assert.Contains(t, u.Source, "$b.String$length($this.s)")
	assert.Contains(t, u.Source, "$b.List$size($b.listOf([1, 2]))")
	assert.Contains(t, u.Source, "$b.String$substring($this.s, 1)")
}

func TestDoublesAreBoxedInGenericSlots(t *testing.T) {
	u := generate(t, "listOf(1.5, 2.0)")[0]
	assert.Contains(t, u.Source, "$b.listOf([$b.dbl(1.5), $b.dbl(2)])")
}

func TestClasses(t *testing.T) {
	units := generate(t,
		"data class P(val a: Int, val b: String = \"x\")",
		"class Outer(val n: Int) { inner class In { fun get() = n } }",
		"P(1).copy(b = \"y\")",
		"Outer(3).In().get()",
	)
	assert.Equal(t, []string{"Line_1.P"}, units[0].Classes)
	src := units[0].Source
	assert.Contains(t, src, "$this.P = class extends $b.KObject {")
	assert.Contains(t, src, "toString() { return \"P(a=\" + $b.str(this.a) + \", b=\" + this.b + \")\"; }")
	assert.Contains(t, src, "equals(o) { return o instanceof this.constructor && $b.eq(this.a, o.a) && $b.eq(this.b, o.b); }")
	assert.Contains(t, src, "component2() { return this.b; }")
	assert.Contains(t, src, `$rt.define("Line_1.P", $this.P);`)

	assert.Equal(t, []string{"Line_2.Outer", "Line_2.Outer.In"}, units[1].Classes)
	assert.Contains(t, units[1].Source, "this.$outer = $outer;")
	assert.Contains(t, units[1].Source, "return this.$outer.n;")

	assert.Contains(t, units[2].Source, "new ($earlier[1].P)(1).copy(undefined, \"y\")")
	assert.Contains(t, units[3].Source, "new ($earlier[2].Outer.In)(new ($earlier[2].Outer)(3)).get()")
}

func TestMemberReadUsesThis(t *testing.T) {
	u := generate(t, "class K(val n: Int) { fun twice() = n * 2 }")[0]
	assert.Contains(t, u.Source, "Math.imul(this.n, 2)")
	assert.NotContains(t, u.Source, "(.n")
}

func TestControlFlow(t *testing.T) {
	u := generate(t, `fun f(n: Int): Int {
    var i = 0
    var s = 0
    do {
        val k = i * 2
        i++
        if (k == 4) continue
        s += k
    } while (k < n)
    for (j in 0 until 3) s += j
    return s
}`)[0]
	assert.Contains(t, u.Source, "for (;;) {")
	assert.Contains(t, u.Source, "break $c")
	assert.Contains(t, u.Source, "for (const j$")
	assert.Contains(t, u.Source, "$b.iter($b.Int$until(0, 3))")
}

func TestValueIf(t *testing.T) {
	u := generate(t, "val a = 3\nval b = if (a > 2) \"big\" else { val t = a * 2\n \"small$t\" }")[0]
	assert.Contains(t, u.Source, "(($this.a > 2) ? \"big\" : (() => {")
	assert.Contains(t, u.Source, "return (\"small\" + $b.str(t$")
}

func TestSafeCallsAndElvis(t *testing.T) {
	u := generate(t, "val s: String? = null\ns?.length ?: -1")[0]
	assert.Contains(t, u.Source, "$b.elvis(")
	assert.Contains(t, u.Source, "== null ? null : $b.String$length(")
}

func TestExtensionsTakeReceiverFirst(t *testing.T) {
	units := generate(t, "fun String.twice() = this + this", `"ab".twice()`)
	assert.Contains(t, units[0].Source, "$this.ext$twice$1 = function ($recv) {")
	assert.Contains(t, units[1].Source, `$earlier[1].ext$twice$1("ab")`)
}

func TestLibrary(t *testing.T) {
	b := analysis.LoadBuiltins()
	table := types.NewPackageTable()
	infos, err := analysis.AnalyzeLibrary([]analysis.Source{
		{Name: "a.kt", Text: "package org.lib\n\nval base = twice(2)\nfun twice(x: Int) = x * 2\nclass Box(val v: Int)\n"},
	}, analysis.LibraryConfig{Table: table, Scope: types.NewReplScope(b.Table), Builtins: b, Origin: types.OriginPackage})
	require.NoError(t, err)
	u, err := GenerateLibrary("org.lib", infos)
	require.NoError(t, err)
	assert.Equal(t, []string{"org.lib.Box"}, u.Classes)
	assert.Contains(t, u.Source, `$rt.pkg("org.lib").twice = function (x$`)
	assert.Contains(t, u.Source, `$rt.pkg("org.lib").base = $rt.pkg("org.lib").twice(2);`)
}
