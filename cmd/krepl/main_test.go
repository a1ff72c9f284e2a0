package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config at an empty temp dir and runs in another one.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KREPL_CONFIG", filepath.Join(dir, "config"))
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestDefaultCommandIsRepl(t *testing.T) {
	isolate(t)
	stdout, stderr, err := runCLI(t, "val a = 6\na * 7\n")
	require.NoError(t, err, stderr)
	assert.Equal(t, "res2: Int = 42\n", stdout)

	stdout, _, err = runCLI(t, "1\n", "-no-banner")
	require.NoError(t, err)
	assert.Equal(t, "res1: Int = 1\n", stdout)
}

func TestHelp(t *testing.T) {
	isolate(t)
	stdout, _, err := runCLI(t, "", "--help")
	require.NoError(t, err)
	for _, name := range []string{"check", "config", "help", "init", "repl", "run", "version"} {
		assert.Contains(t, stdout, "  "+name+" ")
	}

	_, stderr, err := runCLI(t, "", "run", "-h")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Usage: krepl run [options] FILE")
}

func TestVersion(t *testing.T) {
	isolate(t)
	stdout, _, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "krepl version "+version+"\n", stdout)
}

func TestUnknownCommand(t *testing.T) {
	isolate(t)
	_, stderr, err := runCLI(t, "", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, stderr, "Use 'krepl help'")
}

func TestRunAndCheck(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "hello.kts")
	require.NoError(t, os.WriteFile(path, []byte("val who = \"world\"\nprintln(\"hello, $who\")\n"), 0644))

	stdout, stderr, err := runCLI(t, "", "run", path)
	require.NoError(t, err, stderr)
	assert.Equal(t, "hello, world\n", stdout)

	stdout, _, err = runCLI(t, "", "check", path)
	require.NoError(t, err)
	assert.Equal(t, path+": ok\n", stdout)
}

func TestConfigFileAndDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), []byte("prompt kts>\n[run]\necho true\n"), 0644))
	path := filepath.Join(dir, "one.kts")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0644))

	stdout, _, err := runCLI(t, "", "run", path)
	require.NoError(t, err)
	assert.Equal(t, "kts>1\nres1: Int = 1\n", stdout)

	// .env values reach the schema's environment overrides
	t.Setenv("KREPL_EVAL_TIMEOUT", "")
	require.NoError(t, os.Unsetenv("KREPL_EVAL_TIMEOUT"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KREPL_EVAL_TIMEOUT=7s\n"), 0644))
	stdout, _, err = runCLI(t, "", "config", "eval.timeout")
	require.NoError(t, err)
	assert.Equal(t, "eval.timeout: 7s\n", stdout)
}
