package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSchemaLookup(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "prompt", Type: TypeString},
		{Key: "echo", Type: TypeBool, Section: "run"},
	})

	if opt := s.Lookup("", "prompt"); opt == nil || opt.Key != "prompt" {
		t.Fatalf("expected global prompt, got %+v", opt)
	}
	if opt := s.Lookup("run", "echo"); opt == nil || opt.Type != TypeBool {
		t.Fatalf("expected [run] echo, got %+v", opt)
	}
	if opt := s.Lookup("", "echo"); opt != nil {
		t.Fatalf("section option must not be global, got %+v", opt)
	}
	if !s.IsKnown("run", "prompt") {
		t.Error("global options must be known inside sections")
	}
	if s.IsKnown("repl", "echo") {
		t.Error("[run] echo must not be known in [repl]")
	}
}

func TestSchemaSectionsAndDuplicates(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "banner", Section: "repl", Default: "true"})
	s.Register(ConfigOption{Key: "banner", Section: "repl", Default: "false"})
	s.Register(ConfigOption{Key: "echo", Section: "run"})
	s.Register(ConfigOption{Key: "verbose"})

	if got := s.Sections(); len(got) != 2 || got[0] != "repl" || got[1] != "run" {
		t.Fatalf("unexpected sections %v", got)
	}
	if opt := s.Lookup("repl", "banner"); opt.Default != "false" {
		t.Fatalf("last registration should win, got %q", opt.Default)
	}
	if got := s.GlobalOptions(); len(got) != 1 || got[0].Key != "verbose" {
		t.Fatalf("unexpected global options %+v", got)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()

	c := NewConfig()
	c.SetGlobalOption("classpath", "/a:/b")
	c.SetGlobalOption("eval.timeout", "2s")
	c.SetGlobalOption("history.size", "50")
	c.SetCommandOption("run", "echo", "yes")
	c.SetCommandOption("run", "verbose", "on")
	if issues := ValidateConfig(c, s); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}

	c.SetGlobalOption("history.size", "lots")
	c.SetGlobalOption("eval.timeout", "soon")
	c.SetGlobalOption("colour", "auto")
	c.SetCommandOption("repl", "echo", "true")
	issues := ValidateConfig(c, s)
	if len(issues) != 4 {
		t.Fatalf("expected 4 issues, got %d: %v", len(issues), issues)
	}
	joined := strings.Join(issues, "\n")
	for _, want := range []string{"history.size", "eval.timeout", "colour", "echo"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected an issue naming %q in %v", want, issues)
		}
	}
}

func TestValidateType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		typ   OptionType
		value string
		ok    bool
	}{
		{TypeBool, "off", true},
		{TypeBool, "maybe", false},
		{TypeInt, "-3", true},
		{TypeInt, "3.5", false},
		{TypeDuration, "150ms", true},
		{TypeDuration, "150", false},
		{TypeString, "", true},
		{TypePathList, "a" + string(os.PathListSeparator) + "b", true},
	}
	for _, tt := range tests {
		err := validateType(tt.typ, tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("validateType(%s, %q) = %v, want ok=%v", tt.typ, tt.value, err, tt.ok)
		}
	}
	if err := validateType("foobar", "x"); err == nil || !strings.Contains(err.Error(), "unknown option type") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestTypedGetters(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()
	c.SetGlobalOption("history.size", "42")
	c.SetCommandOption("run", "eval.timeout", "3s")
	c.SetGlobalOption("log.buffer-size", "x")

	if n, err := s.Int(c, "", "history.size"); err != nil || n != 42 {
		t.Errorf("Int = %d, %v", n, err)
	}
	if n, err := s.Int(c, "", "completion.display-width"); err != nil || n != 50 {
		t.Errorf("Int(default) = %d, %v", n, err)
	}
	if _, err := s.Int(c, "", "log.buffer-size"); err == nil || !strings.Contains(err.Error(), "log.buffer-size") {
		t.Errorf("expected int error, got %v", err)
	}
	if d, err := s.Duration(c, "run", "eval.timeout"); err != nil || d != 3*time.Second {
		t.Errorf("Duration = %v, %v", d, err)
	}
	if d, err := s.Duration(c, "repl", "eval.timeout"); err != nil || d != 0 {
		t.Errorf("Duration(unset) = %v, %v", d, err)
	}
	t.Setenv("KREPL_LOAD_TIMEOUT", "soon")
	if _, err := s.Duration(c, "", "load.timeout"); err == nil {
		t.Error("expected duration error from the environment")
	}
	t.Setenv("KREPL_LOAD_TIMEOUT", "2s")
	if d, err := s.Duration(c, "run", "load.timeout"); err != nil || d != 2*time.Second {
		t.Errorf("Duration(env) = %v, %v", d, err)
	}
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()
	help := DefaultSchema().FormatHelp()
	for _, want := range []string{
		"Global Options:",
		"classpath",
		"env: KREPL_CLASSPATH",
		"type: duration",
		"[run] Options:",
		"fail-fast",
		"[repl] Options:",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("expected %q in help:\n%s", want, help)
		}
	}
	if NewSchema().FormatHelp() != "" {
		t.Error("expected empty help for empty schema")
	}
}

func TestResolve(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()

	if v := s.Resolve(c, "prompt"); v != ">>> " {
		t.Fatalf("expected default prompt, got %q", v)
	}
	c.SetGlobalOption("log.level", "debug")
	if v := s.Resolve(c, "log.level"); v != "debug" {
		t.Fatalf("expected config value, got %q", v)
	}
	t.Setenv("KREPL_LOG_LEVEL", "error")
	if v := s.Resolve(c, "log.level"); v != "error" {
		t.Fatalf("expected env override, got %q", v)
	}
	if v := s.Resolve(c, "nonexistent"); v != "" {
		t.Fatalf("expected empty for unknown key, got %q", v)
	}
}

func TestResolveIn(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()

	if v := s.ResolveIn(c, "run", "fail-fast"); v != "true" {
		t.Fatalf("expected section default, got %q", v)
	}
	if v := s.ResolveIn(c, "repl", "fail-fast"); v != "" {
		t.Fatalf("[run] default must not leak into [repl], got %q", v)
	}

	c.SetGlobalOption("eval.timeout", "1s")
	c.SetCommandOption("run", "eval.timeout", "9s")
	if v := s.ResolveIn(c, "run", "eval.timeout"); v != "9s" {
		t.Fatalf("expected section value, got %q", v)
	}
	if v := s.ResolveIn(c, "repl", "eval.timeout"); v != "1s" {
		t.Fatalf("expected global fallback, got %q", v)
	}
	t.Setenv("KREPL_EVAL_TIMEOUT", "4s")
	if v := s.ResolveIn(c, "run", "eval.timeout"); v != "4s" {
		t.Fatalf("expected env override, got %q", v)
	}
}

func TestSettings(t *testing.T) {
	sep := string(os.PathListSeparator)
	t.Setenv("KREPL_CLASSPATH", "/lib/a"+sep+sep+"/lib/b")
	cfg, err := LoadFromReader(strings.NewReader(`dependencies org.acme:util:1.0, ./local.kt ,
eval.timeout 250ms
history.size 20
log.level warn
verbose on

[repl]
prompt kts>`))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	got, err := DefaultSchema().Settings(cfg, "repl")
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if len(got.Classpath) != 2 || got.Classpath[0] != "/lib/a" || got.Classpath[1] != "/lib/b" {
		t.Errorf("Classpath = %q", got.Classpath)
	}
	if len(got.Dependencies) != 2 || got.Dependencies[1] != "./local.kt" {
		t.Errorf("Dependencies = %q", got.Dependencies)
	}
	if got.EvalTimeout != 250*time.Millisecond {
		t.Errorf("EvalTimeout = %v", got.EvalTimeout)
	}
	if got.HistorySize != 20 || got.DisplayWidth != 50 || got.LogBufferSize != 1000 {
		t.Errorf("unexpected ints %+v", got)
	}
	if got.LogLevel != slog.LevelWarn || !got.Verbose {
		t.Errorf("unexpected logging settings %+v", got)
	}
	if got.Prompt != "kts>" || got.ContinuationPrompt != "... " {
		t.Errorf("unexpected prompts %q %q", got.Prompt, got.ContinuationPrompt)
	}
}

func TestSettingsInvalid(t *testing.T) {
	t.Parallel()
	c := NewConfig()
	c.SetGlobalOption("history.size", "many")
	c.SetGlobalOption("eval.timeout", "later")
	c.SetGlobalOption("verbose", "perhaps")
	c.SetGlobalOption("log.level", "loud")

	_, err := DefaultSchema().Settings(c, "")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"history.size", "eval.timeout", "verbose", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestSchemaBool(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()
	c := NewConfig()
	if !s.Bool(c, "repl", "banner") {
		t.Error("banner defaults to true")
	}
	c.SetCommandOption("repl", "banner", "no")
	if s.Bool(c, "repl", "banner") {
		t.Error("banner should be off")
	}
	c.SetCommandOption("run", "echo", "garbage")
	if s.Bool(c, "run", "echo") {
		t.Error("invalid bool must read as false")
	}
}

func TestSplitLists(t *testing.T) {
	t.Parallel()
	sep := string(os.PathListSeparator)
	if got := SplitPathList(filepath.Join("a", "b") + sep + " " + sep + "c"); len(got) != 2 {
		t.Errorf("SplitPathList = %q", got)
	}
	if got := SplitPathList(""); got != nil {
		t.Errorf("SplitPathList(\"\") = %q", got)
	}
	if got := SplitList(" x , ,y"); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("SplitList = %q", got)
	}
}
