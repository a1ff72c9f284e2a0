package kts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ileasile/kotlin/internal/deps"
	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/repl"
	"github.com/ileasile/kotlin/internal/repl/completion"
)

func newSession(t *testing.T, cfg repl.Config, opts ...repl.Option) *repl.Session {
	t.Helper()
	s := repl.NewSession(cfg, New(), opts...)
	t.Cleanup(func() { _ = s.Dispose() })
	return s
}

func submit(t *testing.T, s *repl.Session, text string) repl.SubmitResult {
	t.Helper()
	res, err := s.Submit(context.Background(), text)
	require.NoError(t, err)
	require.Equal(t, repl.Compiled, res.Compile.Status, "compile %q: %s", text, res.Compile.Message())
	require.NotNil(t, res.Eval)
	return res
}

func TestRoundTrip(t *testing.T) {
	s := newSession(t, repl.Config{})
	first := submit(t, s, "val x = 5")
	assert.True(t, first.Eval.IsUnit())

	second := submit(t, s, "x + 2")
	require.True(t, second.Eval.HasResult())
	assert.EqualValues(t, 7, second.Eval.Value())
	assert.Equal(t, "res2", second.Compile.Unit.ResultName)
	assert.Equal(t, "Int", second.Compile.Unit.ResultType)

	third := submit(t, s, "res2 * 2")
	assert.EqualValues(t, 14, third.Eval.Value())
}

func TestLongChain(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "val x0 = 0")
	for n := 1; n <= 256; n++ {
		submit(t, s, fmt.Sprintf("val x%d = x%d + 1", n, n-1))
	}
	res := submit(t, s, "x256")
	assert.EqualValues(t, 256, res.Eval.Value())

	hist := s.CompiledHistory()
	require.Len(t, hist, 258)
	for i := 1; i < len(hist); i++ {
		require.Greater(t, hist[i].ID.No, hist[i-1].ID.No)
	}
}

func TestClassesAcrossSnippets(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "data class A(val n: Int)")
	submit(t, s, "class B(val a: A) { fun twice() = A(a.n * 2) }")
	res := submit(t, s, "B(A(21)).twice()")
	assert.Equal(t, "A(n=42)", res.Eval.Text())
}

func TestMethodReadsOwnProperty(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "class K(val n: Int) {\n    var calls = 0\n    fun twice(): Int {\n        calls++\n        return n * 2\n    }\n}")
	submit(t, s, "val k = K(21)")
	res := submit(t, s, "k.twice()")
	assert.EqualValues(t, 42, res.Eval.Value())
	k := submit(t, s, "k.twice() + k.calls")
	assert.EqualValues(t, 44, k.Eval.Value())
}

func TestEvaluationErrorKeepsClass(t *testing.T) {
	s := newSession(t, repl.Config{})
	res := submit(t, s, "class K { fun v() = 3 }\nthrow IllegalStateException(\"no\")")
	require.True(t, res.Eval.IsError())
	assert.EqualError(t, res.Eval.Err(), "java.lang.IllegalStateException: no")
	assert.NotNil(t, res.Eval.Loader)

	res = submit(t, s, "K().v()")
	assert.EqualValues(t, 3, res.Eval.Value())
	assert.Len(t, s.EvaluatedHistory(), 2)
}

func TestMalformedDataClassFails(t *testing.T) {
	s := newSession(t, repl.Config{})
	res, err := s.Compile(context.Background(), s.NewSnippet("data class Q(val x: Int, val: String)"))
	require.NoError(t, err)
	assert.Equal(t, repl.Failed, res.Status)
	assert.Nil(t, res.Unit)
	require.NotNil(t, res.Error)
	assert.Empty(t, s.CompiledHistory())
}

func TestIncomplete(t *testing.T) {
	s := newSession(t, repl.Config{})
	ctx := context.Background()
	for _, text := range []string{"fun f() {", "val x =", "listOf(1,", `"abc`} {
		chk, err := s.Check(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, repl.CheckIncomplete, chk.Status, text)

		res, err := s.Compile(ctx, s.NewSnippet(text))
		require.NoError(t, err)
		assert.Equal(t, repl.Incomplete, res.Status, text)
	}

	chk, err := s.Check(ctx, "val = 3")
	require.NoError(t, err)
	assert.Equal(t, repl.CheckSyntaxError, chk.Status)
	assert.NotEmpty(t, chk.Message)
}

func TestListErrors(t *testing.T) {
	s := newSession(t, repl.Config{})
	ctx := context.Background()

	ds, err := s.ListErrors(ctx, "foob")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, diag.SeverityError, ds[0].Severity)
	assert.Equal(t, "Unresolved reference: foob", ds[0].Message)
	require.NotNil(t, ds[0].Location)
	assert.Equal(t, diag.Position{Line: 1, Col: 1}, ds[0].Location.Start)
	require.NotNil(t, ds[0].Location.End)
	assert.Equal(t, diag.Position{Line: 1, Col: 5}, *ds[0].Location.End)

	ds, err = s.ListErrors(ctx, "val a = 1\nfun g(x: Int) = x + a\nclass C(val c: String)")
	require.NoError(t, err)
	assert.Empty(t, ds)

	ds, err = s.ListErrors(ctx, "fun h() {\n    var m = 1\n    println(m)\n}")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, diag.SeverityWarning, ds[0].Severity)
}

func TestTypeOf(t *testing.T) {
	s := newSession(t, repl.Config{})
	ctx := context.Background()
	submit(t, s, "val name = \"kts\"")

	typ, ds, err := s.TypeOf(ctx, "name.length + 1")
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.Equal(t, "Int", typ)

	typ, ds, err = s.TypeOf(ctx, "val z = 3")
	require.NoError(t, err)
	assert.Empty(t, ds)
	assert.Empty(t, typ)

	typ, ds, err = s.TypeOf(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, typ)
	assert.True(t, diag.HasErrors(ds))

	// nothing was recorded
	assert.Len(t, s.CompiledHistory(), 1)
}

func TestReadOnlyPathsDoNotAffectCompile(t *testing.T) {
	s := newSession(t, repl.Config{})
	ctx := context.Background()
	for range 3 {
		_, err := s.Check(ctx, "val q = 1")
		require.NoError(t, err)
		_, err = s.ListErrors(ctx, "val q = 1")
		require.NoError(t, err)
		_, err = s.Complete(ctx, "val q = 1\nq", 11)
		require.NoError(t, err)
	}
	assert.Empty(t, s.CompiledHistory())
	submit(t, s, "val q = 1")
	res := submit(t, s, "q")
	assert.Equal(t, "res2", res.Compile.Unit.ResultName)
}

func variantsByName(vs []completion.Variant) map[string]completion.Variant {
	out := make(map[string]completion.Variant, len(vs))
	for _, v := range vs {
		out[v.DisplayText] = v
	}
	return out
}

func TestCompleteMemberChain(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "class AClass(val memx: Int, val memy: String)")
	submit(t, s, "class BClass(val memz: String, val mema: AClass)")
	submit(t, s, `val v = BClass("KKK", AClass(5, "25"))`)

	text := "v.mema."
	vs, err := s.Complete(context.Background(), text, len(text))
	require.NoError(t, err)
	byName := variantsByName(vs)
	require.Contains(t, byName, "memx")
	assert.Equal(t, "Int", byName["memx"].Tail)
	assert.Equal(t, completion.IconProperty, byName["memx"].Icon)
	require.Contains(t, byName, "memy")
	assert.Equal(t, "String", byName["memy"].Tail)
	assert.NotContains(t, byName, "memz")
}

func TestCompleteSimpleName(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "val counter = 1")
	submit(t, s, "fun countAll(n: Int) = n")
	submit(t, s, "fun countNone() = 0")

	text := "cou"
	vs, err := s.Complete(context.Background(), text, len(text))
	require.NoError(t, err)
	byName := variantsByName(vs)
	require.Contains(t, byName, "counter")
	require.Contains(t, byName, "countAll(n: Int)")
	require.Contains(t, byName, "countNone()")
	assert.Equal(t, "countAll(", byName["countAll(n: Int)"].Text)
	assert.Equal(t, "countNone()", byName["countNone()"].Text)

	vs, err = s.Complete(context.Background(), "wh", 2)
	require.NoError(t, err)
	byName = variantsByName(vs)
	require.Contains(t, byName, "when")
	require.Contains(t, byName, "while")
	assert.Equal(t, completion.IconKeyword, byName["when"].Icon)
}

func TestCompleteBareNameNeedsReceiver(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "fun String.shout() = this + \"!\"")
	submit(t, s, "fun shoutAll() = 1")

	vs, err := s.Complete(context.Background(), "sho", 3)
	require.NoError(t, err)
	byName := variantsByName(vs)
	assert.Contains(t, byName, "shoutAll()")
	assert.NotContains(t, byName, "shout()")

	// inside a String extension the receiver is implicit
	text := "fun String.loud() = sho"
	vs, err = s.Complete(context.Background(), text, len(text))
	require.NoError(t, err)
	byName = variantsByName(vs)
	assert.Contains(t, byName, "shoutAll()")
	assert.Contains(t, byName, "shout()")
}

func TestCompleteOpenBacktick(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "val `my val` = 1")
	submit(t, s, "val mystery = 2")
	submit(t, s, "val other = 3")

	vs, err := s.Complete(context.Background(), "`my", 3)
	require.NoError(t, err)
	var got []string
	for _, v := range vs {
		got = append(got, v.Text)
	}
	assert.Equal(t, []string{"`my val`", "`mystery`"}, got)
}

func TestCompleteImport(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "val lang = 3")
	submit(t, s, "val mathish = 4")

	text := "import java."
	vs, err := s.Complete(context.Background(), text, len(text))
	require.NoError(t, err)
	byName := variantsByName(vs)
	require.Contains(t, byName, "lang")
	require.Contains(t, byName, "math")
	assert.Equal(t, completion.IconPackage, byName["lang"].Icon)
	assert.NotContains(t, byName, "mathish")
}

func TestCompleteInvalidInput(t *testing.T) {
	s := newSession(t, repl.Config{})
	submit(t, s, "val name = 1")
	for _, text := range []string{"", ")))", "fun (", `"${na`, "class X : {", "val 1"} {
		vs, err := s.Complete(context.Background(), text, len(text))
		require.NoError(t, err, text)
		_ = vs
	}
	vs, err := s.Complete(context.Background(), `"x ${na}"`, 6)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestCompletePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Alpha.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "beta"), 0o755))
	s := newSession(t, repl.Config{})

	text := `val f = "` + dir + `/al`
	vs, err := s.Complete(context.Background(), text, len(text))
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, dir+"/Alpha.txt", vs[0].Text)
	assert.Equal(t, completion.IconFile, vs[0].Icon)
}

func writeLibrary(t *testing.T, root string, rel string, src string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
}

func TestClasspathLibraries(t *testing.T) {
	lib := t.TempDir()
	writeLibrary(t, lib, "geo.kt", "package org.geo\n\ndata class Point(val x: Int, val y: Int)\nfun origin() = Point(0, 0)\n")
	s := newSession(t, repl.Config{Classpath: []string{lib}})
	res := submit(t, s, "import org.geo.*\norigin().copy(y = 2)")
	assert.Equal(t, "Point(x=0, y=2)", res.Eval.Text())

	text := "import org."
	vs, err := s.Complete(context.Background(), text, len(text))
	require.NoError(t, err)
	assert.Contains(t, variantsByName(vs), "geo")
}

func TestLibraryLoadTimeout(t *testing.T) {
	lib := t.TempDir()
	writeLibrary(t, lib, "slow.kt", "package org.slow\n\nfun spin(): Int {\n    var i = 0\n    while (i >= 0) {\n        i = 1\n    }\n    return i\n}\nval slow = spin()\n")
	s := repl.NewSession(repl.Config{Classpath: []string{lib}}, New(WithLoadTimeout(100*time.Millisecond)))
	t.Cleanup(func() { _ = s.Dispose() })

	res, err := s.Compile(context.Background(), s.NewSnippet("1"))
	require.NoError(t, err)
	require.Equal(t, repl.Failed, res.Status)
	assert.Contains(t, res.Message(), "library initialization timed out")
}

func TestDependsOnAnnotation(t *testing.T) {
	repo := t.TempDir()
	writeLibrary(t, repo, "org/acme/util/1.0/util.kt", "package org.acme\n\nfun shout(s: String) = s.uppercase() + \"!\"\n")
	s := newSession(t, repl.Config{Repositories: []string{repo}}, repl.WithResolver(deps.NewResolver("", nil)))

	res := submit(t, s, "@file:DependsOn(\"org.acme:util:1.0\")\nimport org.acme.shout\nshout(\"hi\")")
	assert.Equal(t, "HI!", res.Eval.Text())

	cr, err := s.Compile(context.Background(), s.NewSnippet("@file:DependsOn(\"org.acme:missing:1.0\")\n@file:DependsOn(\"org.acme:gone:2.0\")\n1"))
	require.NoError(t, err)
	require.Equal(t, repl.Failed, cr.Status)
	require.Len(t, cr.Diagnostics, 2)
	assert.Contains(t, cr.Diagnostics[0].Message, "org.acme:missing:1.0")
	assert.Contains(t, cr.Diagnostics[1].Message, "org.acme:gone:2.0")
}

func TestOutput(t *testing.T) {
	var out bytes.Buffer
	s := newSession(t, repl.Config{}, repl.WithStdout(&out))
	submit(t, s, `for (i in 1..3) println("line $i")`)
	assert.Equal(t, "line 1\nline 2\nline 3\n", out.String())
}

func TestDisposedSession(t *testing.T) {
	s := repl.NewSession(repl.Config{}, New())
	submit(t, s, "1")
	require.NoError(t, s.Dispose())
	_, err := s.Submit(context.Background(), "2")
	require.ErrorIs(t, err, repl.ErrSessionDisposed)
	_, err = s.Complete(context.Background(), "x", 1)
	require.ErrorIs(t, err, repl.ErrSessionDisposed)
}
