package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetKeyInFile_NewKeyEmptyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	if err := SetKeyInFile(path, "log.level", "debug"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	if got := strings.TrimSpace(string(data)); got != "log.level debug" {
		t.Fatalf("expected 'log.level debug', got %q", got)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}
	if v, ok := cfg.GetGlobalOption("log.level"); !ok || v != "debug" {
		t.Fatalf("expected log.level=debug after round-trip, got %q exists=%v", v, ok)
	}
}

func TestSetKeyInFile_NewKeyExistingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	if err := os.WriteFile(path, []byte("verbose true\n"), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	if err := SetKeyInFile(path, "log.level", "debug"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "verbose true") {
		t.Fatalf("expected existing key to be preserved, got %q", content)
	}
	if !strings.Contains(content, "log.level debug") {
		t.Fatalf("expected new key to be added, got %q", content)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}
	if v, ok := cfg.GetGlobalOption("verbose"); !ok || v != "true" {
		t.Fatalf("expected verbose=true, got %q exists=%v", v, ok)
	}
	if v, ok := cfg.GetGlobalOption("log.level"); !ok || v != "debug" {
		t.Fatalf("expected log.level=debug, got %q exists=%v", v, ok)
	}
}

func TestSetKeyInFile_UpdateExistingKey(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	if err := os.WriteFile(path, []byte("verbose true\nlog.level debug\n"), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	if err := SetKeyInFile(path, "log.level", "error"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	content := string(data)
	if strings.Count(content, "log.level") != 1 {
		t.Fatalf("expected exactly one 'log.level' line, got %q", content)
	}
	if !strings.Contains(content, "log.level error") {
		t.Fatalf("expected updated value, got %q", content)
	}
	if !strings.Contains(content, "verbose true") {
		t.Fatalf("expected other keys preserved, got %q", content)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}
	if v, ok := cfg.GetGlobalOption("log.level"); !ok || v != "error" {
		t.Fatalf("expected log.level=error, got %q exists=%v", v, ok)
	}
}

func TestSetKeyInFile_PreservesComments(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	initial := "# This is a configuration file\n# Global options\nverbose true\n\n# Color settings\nlog.level debug\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	if err := SetKeyInFile(path, "log.level", "warn"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "# This is a configuration file") {
		t.Fatalf("expected first comment preserved, got %q", content)
	}
	if !strings.Contains(content, "# Global options") {
		t.Fatalf("expected second comment preserved, got %q", content)
	}
	if !strings.Contains(content, "# Color settings") {
		t.Fatalf("expected third comment preserved, got %q", content)
	}
	if !strings.Contains(content, "log.level warn") {
		t.Fatalf("expected updated value, got %q", content)
	}
}

func TestSetKeyInFile_InsertsBeforeFirstSection(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	initial := "verbose true\n\n[help]\npager less\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	if err := SetKeyInFile(path, "log.level", "debug"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	content := string(data)
	levelIdx := strings.Index(content, "log.level debug")
	sectionIdx := strings.Index(content, "[help]")
	if levelIdx < 0 || sectionIdx < 0 {
		t.Fatalf("expected both 'log.level debug' and '[help]' in content, got %q", content)
	}
	if levelIdx > sectionIdx {
		t.Fatalf("expected 'log.level debug' to appear before '[help]', got %q", content)
	}

	if !strings.Contains(content, "pager less") {
		t.Fatalf("expected section options preserved, got %q", content)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}
	if v, ok := cfg.GetGlobalOption("log.level"); !ok || v != "debug" {
		t.Fatalf("expected log.level=debug, got %q exists=%v", v, ok)
	}
	if v, ok := cfg.GetCommandOption("help", "pager"); !ok || v != "less" {
		t.Fatalf("expected help.pager=less, got %q exists=%v", v, ok)
	}
}

func TestSetKeyInFile_DoesNotMatchKeyInSection(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	initial := "verbose true\n\n[version]\nformat short\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	if err := SetKeyInFile(path, "format", "json"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	content := string(data)
	if strings.Count(content, "format") != 2 {
		t.Fatalf("expected exactly two 'format' lines (global + section), got %q", content)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}
	if v, ok := cfg.GetGlobalOption("format"); !ok || v != "json" {
		t.Fatalf("expected global format=json, got %q exists=%v", v, ok)
	}
	if v, ok := cfg.GetCommandOption("version", "format"); !ok || v != "short" {
		t.Fatalf("expected version.format=short, got %q exists=%v", v, ok)
	}
}

func TestSetKeyInFile_CreatesParentDirectory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "deep", "config")

	if err := SetKeyInFile(path, "log.level", "debug"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	if got := strings.TrimSpace(string(data)); got != "log.level debug" {
		t.Fatalf("expected 'log.level debug', got %q", got)
	}
}

func TestSetKeyInFile_AtomicWrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	if err := os.WriteFile(path, []byte("verbose true\n"), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	if err := SetKeyInFile(path, "log.level", "debug"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file should exist after write: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("config file should not be empty after write")
	}

	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read directory: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".config.tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSetKeyInFile_ValueWithSpaces(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	if err := SetKeyInFile(path, "prompt", "kotlin >"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}
	if v, ok := cfg.GetGlobalOption("prompt"); !ok || v != "kotlin >" {
		t.Fatalf("expected prompt='kotlin >', got %q exists=%v", v, ok)
	}
}

func TestSetKeyInFile_EmptyValue(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	if err := SetKeyInFile(path, "history.file", ""); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	if got := strings.TrimSpace(string(data)); got != "history.file" {
		t.Fatalf("expected 'history.file', got %q", got)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}
	if v, ok := cfg.GetGlobalOption("history.file"); !ok || v != "" {
		t.Fatalf("expected history.file='', got %q exists=%v", v, ok)
	}
}

func TestSetKeyInFile_MultipleSequentialWrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	keys := []struct {
		key, value string
	}{
		{"verbose", "true"},
		{"log.level", "debug"},
		{"history.size", "200"},
	}

	for _, kv := range keys {
		if err := SetKeyInFile(path, kv.key, kv.value); err != nil {
			t.Fatalf("SetKeyInFile(%q, %q) returned error: %v", kv.key, kv.value, err)
		}
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}

	for _, kv := range keys {
		if v, ok := cfg.GetGlobalOption(kv.key); !ok || v != kv.value {
			t.Fatalf("expected %s=%s, got %q exists=%v", kv.key, kv.value, v, ok)
		}
	}
}

func TestSetKeyInFile_ComplexConfigRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")

	initial := "# krepl configuration file\n" +
		"# Format: optionName remainingLineIsTheValue\n" +
		"\n" +
		"# Global options\n" +
		"verbose false\n" +
		"log.level debug\n" +
		"\n" +
		"# Optional history settings\n" +
		"# history.size 500\n" +
		"\n" +
		"[help]\n" +
		"pager less\n" +
		"\n" +
		"[version]\n" +
		"format full\n" +
		"\n" +
		"[run]\n" +
		"echo true\n" +
		"fail-fast false\n"

	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	if err := SetKeyInFile(path, "log.level", "warn"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	if err := SetKeyInFile(path, "eval.timeout", "5s"); err != nil {
		t.Fatalf("SetKeyInFile returned error: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath returned error: %v", err)
	}

	if v, ok := cfg.GetGlobalOption("verbose"); !ok || v != "false" {
		t.Fatalf("expected verbose=false, got %q exists=%v", v, ok)
	}
	if v, ok := cfg.GetGlobalOption("log.level"); !ok || v != "warn" {
		t.Fatalf("expected log.level=warn, got %q exists=%v", v, ok)
	}
	if v, ok := cfg.GetGlobalOption("eval.timeout"); !ok || v != "5s" {
		t.Fatalf("expected eval.timeout=5s, got %q exists=%v", v, ok)
	}
	if v, ok := cfg.GetCommandOption("help", "pager"); !ok || v != "less" {
		t.Fatalf("expected help.pager=less, got %q exists=%v", v, ok)
	}
	if v, ok := cfg.GetCommandOption("version", "format"); !ok || v != "full" {
		t.Fatalf("expected version.format=full, got %q exists=%v", v, ok)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# krepl configuration file") {
		t.Fatalf("expected header comment preserved, got %q", content)
	}
	if !strings.Contains(content, "# history.size 500") {
		t.Fatalf("expected commented-out option preserved, got %q", content)
	}
}
