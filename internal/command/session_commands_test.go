package command

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ileasile/kotlin/internal/config"
)

func testEnv(t *testing.T, stdin string) *Environment {
	t.Helper()
	env := NewEnvironment(config.NewConfig())
	env.Stdin = strings.NewReader(stdin)
	env.Dir = t.TempDir()
	return env
}

// execute parses args with the command's flags, then runs it.
func execute(t *testing.T, cmd Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.SetupFlags(fs)
	require.NoError(t, fs.Parse(args))
	var out, errOut bytes.Buffer
	err = cmd.Execute(context.Background(), fs.Args(), &out, &errOut)
	return out.String(), errOut.String(), err
}

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.kts")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestReplCommandLines(t *testing.T) {
	env := testEnv(t, "val x = 40\nfun add(n: Int) =\n    n + x\nadd(2)\nprintln(\"hi\")\n:quit\n1\n")
	stdout, stderr, err := execute(t, NewReplCommand(env, "test"), "-lines")
	require.NoError(t, err)
	assert.Equal(t, "res3: Int = 42\nhi\n", stdout)
	assert.Empty(t, stderr)
}

func TestReplCommandFailuresDoNotFail(t *testing.T) {
	env := testEnv(t, "nope\n1\n")
	stdout, stderr, err := execute(t, NewReplCommand(env, "test"))
	require.NoError(t, err)
	assert.Equal(t, "res2: Int = 1\n", stdout)
	assert.Contains(t, stderr, "Unresolved reference: nope")
}

func TestReplCommandClasspath(t *testing.T) {
	lib := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(lib, "util.kt"), []byte("package org.util\n\nfun triple(n: Int) = n * 3\n"), 0644))
	env := testEnv(t, "import org.util.triple\ntriple(5)\n")
	stdout, stderr, err := execute(t, NewReplCommand(env, "test"), "-cp", lib)
	require.NoError(t, err, stderr)
	assert.Equal(t, "res2: Int = 15\n", stdout)
}

func TestReplCommandRejectsArguments(t *testing.T) {
	_, _, err := execute(t, NewReplCommand(testEnv(t, ""), "test"), "extra")
	assert.Error(t, err)
}

func TestReplCommandInvalidConfig(t *testing.T) {
	env := testEnv(t, "")
	env.Config.SetGlobalOption("history.size", "many")
	_, _, err := execute(t, NewReplCommand(env, "test"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunCommand(t *testing.T) {
	path := writeScript(t, "val xs = listOf(3, 1, 2)\n\nfun twice(n: Int): Int {\n    return n * 2\n}\ntwice(\n    xs.size\n)\nprintln(\"done\")\n")
	stdout, stderr, err := execute(t, NewRunCommand(testEnv(t, "")), path)
	require.NoError(t, err, stderr)
	assert.Equal(t, "res3: Int = 6\ndone\n", stdout)
}

func TestRunCommandEcho(t *testing.T) {
	path := writeScript(t, "1 + 1\n")
	stdout, _, err := execute(t, NewRunCommand(testEnv(t, "")), "-echo", path)
	require.NoError(t, err)
	assert.Equal(t, ">>> 1 + 1\nres1: Int = 2\n", stdout)
}

func TestRunCommandFailFast(t *testing.T) {
	path := writeScript(t, "val a = 1\n\nthrow IllegalStateException(\"boom\")\nprintln(a)\n")

	stdout, stderr, err := execute(t, NewRunCommand(testEnv(t, "")), path)
	require.Error(t, err)
	assert.Equal(t, path+":3: snippet failed", err.Error())
	assert.Contains(t, stderr, "boom")
	assert.Empty(t, stdout)

	stdout, _, err = execute(t, NewRunCommand(testEnv(t, "")), "-keep-going", path)
	require.Error(t, err)
	assert.Equal(t, path+": 1 snippet(s) failed", err.Error())
	assert.Equal(t, "1\n", stdout)
}

func TestRunCommandConfigSection(t *testing.T) {
	path := writeScript(t, "nope\n2\n")
	env := testEnv(t, "")
	env.Config.SetCommandOption("run", "fail-fast", "false")
	stdout, _, err := execute(t, NewRunCommand(env), path)
	require.Error(t, err)
	assert.Equal(t, "res2: Int = 2\n", stdout)
}

func TestRunCommandStdin(t *testing.T) {
	stdout, _, err := execute(t, NewRunCommand(testEnv(t, "\"a\".repeat(3)\n")), "-")
	require.NoError(t, err)
	assert.Equal(t, "res1: String = aaa\n", stdout)
}

func TestRunCommandUsage(t *testing.T) {
	_, stderr, err := execute(t, NewRunCommand(testEnv(t, "")))
	assert.Error(t, err)
	assert.Contains(t, stderr, "Usage: run [options] FILE")

	_, _, err = execute(t, NewRunCommand(testEnv(t, "")), filepath.Join(t.TempDir(), "missing.kts"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read script")
}

func TestCheckCommand(t *testing.T) {
	path := writeScript(t, "val a = 1\n\nfun f() {\n    var m = a\n    println(m)\n}\nval b: String = a\n")

	stdout, _, err := execute(t, NewCheckCommand(testEnv(t, "")), path)
	require.Error(t, err)
	assert.Equal(t, path+": 1 error(s)", err.Error())
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], path+":4:9: WARNING: "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], path+":7:17: ERROR: Type mismatch"), lines[1])

	stdout, _, err = execute(t, NewCheckCommand(testEnv(t, "")), "-warnings=false", path)
	require.Error(t, err)
	assert.NotContains(t, stdout, "WARNING")
}

func TestCheckCommandOK(t *testing.T) {
	path := writeScript(t, "val a = 1\n:history\nthrow IllegalStateException(\"never run\")\n")
	stdout, _, err := execute(t, NewCheckCommand(testEnv(t, "")), path)
	require.NoError(t, err)
	assert.Equal(t, path+": ok\n", stdout)
}

func TestCheckCommandIncomplete(t *testing.T) {
	path := writeScript(t, "val a = 1\nfun f() {\n")
	stdout, _, err := execute(t, NewCheckCommand(testEnv(t, "")), path)
	require.Error(t, err)
	assert.Equal(t, path+":2: ERROR: incomplete snippet\n", stdout)
}

func TestSettingsFlagsOverride(t *testing.T) {
	env := testEnv(t, "")
	env.Config.SetGlobalOption("classpath", "from-config")
	env.Config.SetGlobalOption("eval.timeout", "5s")
	env.Config.SetCommandOption("run", "load.timeout", "3s")

	var f sessionFlags
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	f.setup(fs)
	require.NoError(t, fs.Parse([]string{"-cp", "a", "-cp", "b", "-dep", "g:a:1", "-timeout", "2s", "-log-level", "debug"}))

	s, err := env.settings("run", &f)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-config", "a", "b"}, s.Classpath)
	assert.Equal(t, []string{"g:a:1"}, s.Dependencies)
	assert.Equal(t, "2s", s.EvalTimeout.String())
	assert.Equal(t, "3s", s.LoadTimeout.String())
	assert.Equal(t, "DEBUG", s.LogLevel.String())

	var bad sessionFlags
	bad.logLevel = "loud"
	_, err = env.settings("run", &bad)
	assert.Error(t, err)
}
