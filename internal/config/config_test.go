package config

import (
	"os"
	"strings"
	"testing"
)

func TestConfigParsing(t *testing.T) {
	configContent := `# Global options
verbose true
log.level debug

[run]
echo true
fail-fast false

[repl]
banner false`

	config, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Test global options
	if value, ok := config.GetGlobalOption("verbose"); !ok || value != "true" {
		t.Errorf("Expected verbose=true, got %s (exists: %v)", value, ok)
	}

	if value, ok := config.GetGlobalOption("log.level"); !ok || value != "debug" {
		t.Errorf("Expected log.level=debug, got %s (exists: %v)", value, ok)
	}

	// Test command-specific options
	if value, ok := config.GetCommandOption("run", "echo"); !ok || value != "true" {
		t.Errorf("Expected run.echo=true, got %s (exists: %v)", value, ok)
	}

	if value, ok := config.GetCommandOption("run", "fail-fast"); !ok || value != "false" {
		t.Errorf("Expected run.fail-fast=false, got %s (exists: %v)", value, ok)
	}

	// Test fallback to global options
	if value, ok := config.GetCommandOption("run", "verbose"); !ok || value != "true" {
		t.Errorf("Expected run.verbose=true (fallback), got %s (exists: %v)", value, ok)
	}

	// Test non-existent option
	if value, ok := config.GetCommandOption("nonexistent", "option"); ok {
		t.Errorf("Expected nonexistent option to not exist, but got %s", value)
	}
}

func TestEmptyConfig(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to load empty config: %v", err)
	}

	if len(config.Global) != 0 {
		t.Errorf("Expected empty global config, got %v", config.Global)
	}

	if len(config.Commands) != 0 {
		t.Errorf("Expected empty commands config, got %v", config.Commands)
	}
}

func TestConfigWithComments(t *testing.T) {
	configContent := `# This is a comment
verbose true
# Another comment
log.level debug
# Command section
[run]
# Command option comment
echo true`

	config, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("Failed to load config with comments: %v", err)
	}

	if value, ok := config.GetGlobalOption("verbose"); !ok || value != "true" {
		t.Errorf("Expected verbose=true, got %s (exists: %v)", value, ok)
	}

	if value, ok := config.GetCommandOption("run", "echo"); !ok || value != "true" {
		t.Errorf("Expected run.echo=true, got %s (exists: %v)", value, ok)
	}
}

func TestSetGlobalAndCommandOptions(t *testing.T) {
	cfg := NewConfig()

	cfg.SetGlobalOption("prompt", "kts>")
	if got, ok := cfg.GetGlobalOption("prompt"); !ok || got != "kts>" {
		t.Fatalf("expected global option prompt=kts>, got %q exists=%v", got, ok)
	}

	cfg.SetCommandOption("run", "eval.timeout", "30s")
	if got, ok := cfg.GetCommandOption("run", "eval.timeout"); !ok || got != "30s" {
		t.Fatalf("expected command option run.eval.timeout=30s, got %q exists=%v", got, ok)
	}

	// ensure command-specific values take precedence over globals
	cfg.SetGlobalOption("eval.timeout", "10s")
	if got, ok := cfg.GetCommandOption("run", "eval.timeout"); !ok || got != "30s" {
		t.Fatalf("expected command option run.eval.timeout to shadow global, got %q exists=%v", got, ok)
	}
}

func TestLoadFromPathMissing(t *testing.T) {
	path := t.TempDir() + "/missing-config"

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("expected no error loading missing config, got %v", err)
	}

	if len(cfg.Global) != 0 || len(cfg.Commands) != 0 {
		t.Fatalf("expected empty config for missing file, got %+v", cfg)
	}
}

func TestLoadFromPathExisting(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config"
	contents := "verbose true\n[run]\necho true"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("expected load success, got %v", err)
	}

	if got, ok := cfg.GetGlobalOption("verbose"); !ok || got != "true" {
		t.Fatalf("expected verbose global option, got %q exists=%v", got, ok)
	}

	if got, ok := cfg.GetCommandOption("run", "echo"); !ok || got != "true" {
		t.Fatalf("expected run echo option, got %q exists=%v", got, ok)
	}
}

func TestLoadUsesConfigPathEnv(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config"
	if err := os.WriteFile(path, []byte("log.level warn"), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("KREPL_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected load success, got %v", err)
	}

	if got, ok := cfg.GetGlobalOption("log.level"); !ok || got != "warn" {
		t.Fatalf("expected log.level option from env-config, got %q exists=%v", got, ok)
	}
}

func TestLoadNoFileReturnsEmptyConfig(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config"
	t.Setenv("KREPL_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected load success, got %v", err)
	}

	if len(cfg.Global) != 0 || len(cfg.Commands) != 0 {
		t.Fatalf("expected empty config when file missing, got %+v", cfg)
	}
}

func TestUnknownOptionsWarn(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("colour auto\nhistory.size many\n[run]\necho maybe"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", cfg.Warnings)
	}
	if !cfg.HasWarnings() {
		t.Fatal("expected HasWarnings")
	}
}

func TestLoadFromPathRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := dir + "/real"
	if err := os.WriteFile(target, []byte("verbose true"), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	link := dir + "/config"
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := LoadFromPath(link); err == nil {
		t.Fatal("expected symlink to be rejected")
	}
}
