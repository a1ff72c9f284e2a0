package shell

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ileasile/kotlin/internal/kts"
	"github.com/ileasile/kotlin/internal/logging"
	"github.com/ileasile/kotlin/internal/repl"
	"github.com/ileasile/kotlin/internal/repl/completion"
)

type harness struct {
	sh     *Shell
	out    *bytes.Buffer
	errOut *bytes.Buffer
	ring   *logging.Ring
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	ring := logging.NewRing(100, slog.LevelDebug)
	logger := slog.New(ring)
	s := repl.NewSession(repl.Config{}, kts.New(), repl.WithLogger(logger))
	t.Cleanup(func() { _ = s.Dispose() })
	h := &harness{out: new(bytes.Buffer), errOut: new(bytes.Buffer), ring: ring}
	h.sh = New(s, append([]Option{
		WithOutput(h.out),
		WithErrorOutput(h.errOut),
		WithLogger(logger),
		WithLogRing(ring),
	}, opts...)...)
	return h
}

func (h *harness) run(t *testing.T, input string) {
	t.Helper()
	require.NoError(t, h.sh.RunLines(context.Background(), strings.NewReader(input)))
}

func TestRunLinesPrintsResults(t *testing.T) {
	h := newHarness(t)
	h.run(t, "val x = 5\nx + 2\n\"a\" + x\n")
	assert.Equal(t, "res2: Int = 7\nres3: String = a5\n", h.out.String())
	assert.Empty(t, h.errOut.String())
	assert.Zero(t, h.sh.Failures())
}

func TestMultiLineSnippets(t *testing.T) {
	h := newHarness(t)
	h.run(t, "fun twice(n: Int): Int {\n    return n * 2\n}\ntwice(\n    21\n)\n")
	assert.Equal(t, "res2: Int = 42\n", h.out.String())
	assert.Len(t, h.sh.Session().CompiledHistory(), 2)
}

func TestPromptString(t *testing.T) {
	h := newHarness(t, WithPrompts("kts> ", "...> "))
	ctx := context.Background()
	assert.Equal(t, "kts> ", h.sh.PromptString())
	more, err := h.sh.Feed(ctx, "listOf(1,")
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, "...> ", h.sh.PromptString())
	assert.Equal(t, "listOf(1,", h.sh.Pending())
	_, err = h.sh.Feed(ctx, "2).size")
	require.NoError(t, err)
	assert.Equal(t, "kts> ", h.sh.PromptString())
	assert.Equal(t, "res1: Int = 2\n", h.out.String())
}

func TestFailuresAreReported(t *testing.T) {
	h := newHarness(t)
	h.run(t, "val a = 1\nfoob\nthrow IllegalStateException(\"bad\")\na\n")
	assert.Equal(t, 2, h.sh.Failures())
	assert.Contains(t, h.errOut.String(), "1:1: ERROR: Unresolved reference: foob\n1 | foob\n  | ^^^^")
	assert.Contains(t, h.errOut.String(), "error: java.lang.IllegalStateException: bad")
	// snippet numbers keep counting past failures
	assert.Equal(t, "res4: Int = 1\n", h.out.String())
}

func TestIncompleteAtEOF(t *testing.T) {
	h := newHarness(t)
	h.run(t, "val a = listOf(1,\n")
	assert.Equal(t, 1, h.sh.Failures())
	assert.NotEmpty(t, h.errOut.String())
	assert.Empty(t, h.sh.Pending())
}

func TestEcho(t *testing.T) {
	h := newHarness(t, WithEcho(true), WithPrompts("> ", ". "))
	h.run(t, "fun f() =\n    1\nf()\n")
	assert.Equal(t, "> fun f() =\n.     1\n> f()\nres2: Int = 1\n", h.out.String())
}

func TestQuitStopsReading(t *testing.T) {
	h := newHarness(t)
	h.run(t, "1\n:quit\n2\n")
	assert.True(t, h.sh.Done())
	assert.Equal(t, "res1: Int = 1\n", h.out.String())
	assert.Equal(t, []string{"1", ":quit"}, h.sh.Inputs())
}

func TestMetaHelpAndUnknown(t *testing.T) {
	h := newHarness(t)
	h.run(t, ":help\n:frobnicate\n:errors\n")
	for _, c := range metaCommands {
		assert.Contains(t, h.out.String(), c.Description)
	}
	assert.Contains(t, h.errOut.String(), "Command not found: :frobnicate")
	assert.Contains(t, h.errOut.String(), "Usage: :errors CODE")
}

func TestMetaHistory(t *testing.T) {
	h := newHarness(t)
	h.run(t, ":history\nval a = 1\nfun g() =\n    a\n:history\n")
	assert.Equal(t, "No snippets compiled yet.\n[1] val a = 1\n[2] fun g() =\n        a\n", h.out.String())
}

func TestMetaErrorsAndType(t *testing.T) {
	h := newHarness(t)
	h.run(t, "val s = \"kts\"\n:errors s + foob\n:errors s.length\n:type s.length > 2\n:type val q = 1\n:type nope\n")
	out := h.out.String()
	assert.Contains(t, out, "ERROR: Unresolved reference: foob")
	assert.Contains(t, out, "No errors.\n")
	assert.Contains(t, out, "Boolean\nUnit\n")
	assert.Contains(t, h.errOut.String(), "Unresolved reference: nope")
	// none of the meta-commands compiled anything
	assert.Len(t, h.sh.Session().CompiledHistory(), 1)
}

func TestMetaComplete(t *testing.T) {
	h := newHarness(t)
	h.run(t, "fun countAll(n: Int) = n\n:complete countA\n:complete 1 + zzzq\n")
	assert.Contains(t, h.out.String(), "countAll(")
	assert.Contains(t, h.out.String(), "No completions.")
}

func TestMetaSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.txtar")
	first := newHarness(t)
	first.run(t, "val x = 20\nfun plus1(n: Int) = n + 1\n:save "+path+"\n")
	assert.Contains(t, first.out.String(), "Saved 2 snippet(s)")

	second := newHarness(t)
	second.run(t, ":load "+path+"\nplus1(x)\n:load "+filepath.Join(t.TempDir(), "missing")+"\n")
	assert.Contains(t, second.out.String(), "Loaded 2 snippet(s) from "+path+"\n")
	assert.Contains(t, second.out.String(), "res3: Int = 21\n")
	assert.Contains(t, second.errOut.String(), "failed to read archive")
}

func TestMetaLogs(t *testing.T) {
	h := newHarness(t)
	h.run(t, "1\n:logs meta-command\n")
	assert.Contains(t, h.out.String(), "[Shell] meta-command")

	bare := New(h.sh.Session(), WithErrorOutput(h.errOut))
	_, err := bare.Execute(context.Background(), ":logs")
	require.NoError(t, err)
	assert.Contains(t, h.errOut.String(), "Logs are not captured")
}

func TestSuggest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.run(t, "val counter = 1\n")

	got, replaced := h.sh.suggest(ctx, ":hi", ":hi")
	require.Len(t, got, 1)
	assert.Equal(t, ":history", got[0].Text)
	assert.Equal(t, 3, replaced)

	got, replaced = h.sh.suggest(ctx, "coun", "coun")
	require.NotEmpty(t, got)
	var texts []string
	for _, g := range got {
		texts = append(texts, g.Text)
	}
	assert.Contains(t, texts, "counter")
	assert.Equal(t, 4, replaced)

	got, replaced = h.sh.suggest(ctx, ":type 1 + coun", ":type 1 + coun")
	require.NotEmpty(t, got)
	assert.Equal(t, 4, replaced)

	got, _ = h.sh.suggest(ctx, ":save coun", ":save coun")
	assert.Empty(t, got)
}

func TestTypedPrefix(t *testing.T) {
	assert.Equal(t, 3, typedPrefix("x.cou", completion.Variant{Text: "count("}))
	assert.Equal(t, 0, typedPrefix("x.", completion.Variant{Text: "count("}))
	assert.Equal(t, 6, typedPrefix(`File("Src/ma`, completion.Variant{Text: "src/main.kt", Icon: completion.IconFile}))
	assert.Equal(t, 0, typedPrefix("Cou", completion.Variant{Text: "count"}))
}

func TestHistoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history")
	assert.Empty(t, loadHistory(path))
	require.NoError(t, saveHistory(path, []string{"a", "fun f() =\n    1", "b", "c"}, 3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
	assert.Equal(t, []string{"fun f() =\n    1", "b", "c"}, loadHistory(path))
	require.NoError(t, saveHistory("", []string{"x"}, 0))
}

func TestSplit(t *testing.T) {
	h := newHarness(t)
	src := "val a = 1\n\nfun f(n: Int) =\n    n + a\n:history\nf(\n  2\n)\nlistOf(1,\n"
	chunks, err := Split(context.Background(), h.sh.Session(), src)
	require.NoError(t, err)
	assert.Equal(t, []Chunk{
		{Text: "val a = 1", Line: 1},
		{Text: "fun f(n: Int) =\n    n + a", Line: 3},
		{Text: ":history", Line: 5},
		{Text: "f(\n  2\n)", Line: 6},
		{Text: "listOf(1,", Line: 9},
	}, chunks)
	// splitting only checks
	assert.Empty(t, h.sh.Session().CompiledHistory())
}
