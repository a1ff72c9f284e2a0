package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ileasile/kotlin/internal/config"
)

func TestNewHelpCommand(t *testing.T) {
	registry := NewRegistry()
	cmd := NewHelpCommand(registry)

	if cmd == nil {
		t.Fatal("NewHelpCommand returned nil")
	}
	if cmd.Name() != "help" {
		t.Errorf("Expected name 'help', got %s", cmd.Name())
	}
	expectedUsage := "help [command]"
	if cmd.Usage() != expectedUsage {
		t.Errorf("Expected usage %q, got %q", expectedUsage, cmd.Usage())
	}
}

func TestHelpCommandExecute(t *testing.T) {
	registry := NewRegistry()
	env := NewEnvironment(config.NewConfig())
	registry.Register(NewVersionCommand("1.0.0"))
	registry.Register(NewReplCommand(env, "1.0.0"))
	registry.Register(NewRunCommand(env))
	registry.SetDefault("repl")

	cmd := NewHelpCommand(registry)
	registry.Register(cmd)

	t.Run("general help", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(context.Background(), nil, &stdout, &stderr); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		output := stdout.String()
		for _, part := range []string{
			"Usage: krepl [command]",
			"Without a command, krepl runs 'repl'.",
			"Available commands:",
			"  run ",
			"Run a Kotlin script file in a fresh session",
		} {
			if !strings.Contains(output, part) {
				t.Errorf("Expected output to contain %q, but it didn't. Output: %s", part, output)
			}
		}
	})

	t.Run("command help shows flags", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(context.Background(), []string{"run"}, &stdout, &stderr); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		output := stdout.String()
		for _, part := range []string{"Command: run", "Usage: run [options] FILE", "Flags:", "-keep-going", "-cp"} {
			if !strings.Contains(output, part) {
				t.Errorf("Expected output to contain %q. Output: %s", part, output)
			}
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(context.Background(), []string{"nope"}, &stdout, &stderr); err == nil {
			t.Fatal("Expected error for unknown command")
		}
		if !strings.Contains(stderr.String(), "Unknown command: nope") {
			t.Errorf("Unexpected stderr: %s", stderr.String())
		}
	})
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	var stdout, stderr bytes.Buffer
	if err := cmd.Execute(context.Background(), nil, &stdout, &stderr); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := stdout.String(); got != "krepl version 1.2.3\n" {
		t.Errorf("Unexpected output: %q", got)
	}
	if err := cmd.Execute(context.Background(), []string{"extra"}, &stdout, &stderr); err == nil {
		t.Error("Expected error for extra arguments")
	}
}

func TestConfigCommand(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetGlobalOption("prompt", "kts> ")
	cfg.SetCommandOption("run", "echo", "true")
	path := filepath.Join(t.TempDir(), "config")
	cmd := NewConfigCommand(cfg, path)
	ctx := context.Background()

	t.Run("get effective value", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(ctx, []string{"history.size"}, &stdout, &stderr); err != nil {
			t.Fatal(err)
		}
		if got := stdout.String(); got != "history.size: 1000\n" {
			t.Errorf("Unexpected output: %q", got)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(ctx, []string{"nope"}, &stdout, &stderr); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stdout.String(), "Configuration key 'nope' not found") {
			t.Errorf("Unexpected output: %q", stdout.String())
		}
	})

	t.Run("set persists", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(ctx, []string{"log.level", "debug"}, &stdout, &stderr); err != nil {
			t.Fatal(err)
		}
		if v, _ := cfg.GetGlobalOption("log.level"); v != "debug" {
			t.Errorf("Expected in-memory update, got %q", v)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "log.level debug") {
			t.Errorf("Expected persisted key, got %q", data)
		}
	})

	t.Run("all", func(t *testing.T) {
		all := NewConfigCommand(cfg, path)
		all.showAll = true
		var stdout, stderr bytes.Buffer
		if err := all.Execute(ctx, nil, &stdout, &stderr); err != nil {
			t.Fatal(err)
		}
		for _, part := range []string{"  prompt: kts> ", "  [run]", "    echo: true"} {
			if !strings.Contains(stdout.String(), part) {
				t.Errorf("Expected %q in %s", part, stdout.String())
			}
		}
	})

	t.Run("validate", func(t *testing.T) {
		bad := config.NewConfig()
		bad.SetGlobalOption("history.size", "lots")
		var stdout, stderr bytes.Buffer
		if err := NewConfigCommand(bad, path).Execute(ctx, []string{"validate"}, &stdout, &stderr); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stdout.String(), "Configuration has 1 issue(s):") {
			t.Errorf("Unexpected output: %s", stdout.String())
		}
	})

	t.Run("schema", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(ctx, []string{"schema"}, &stdout, &stderr); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stdout.String(), "eval.timeout") {
			t.Errorf("Expected schema help, got %s", stdout.String())
		}
	})

	t.Run("too many arguments", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := cmd.Execute(ctx, []string{"a", "b", "c"}, &stdout, &stderr); err == nil {
			t.Error("Expected error")
		}
	})
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krepl", "config")
	t.Setenv(config.ConfigEnvVar, path)
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	if err := NewInitCommand().Execute(ctx, nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "Initialized krepl configuration at: "+path) {
		t.Errorf("Unexpected output: %s", stdout.String())
	}
	if stderr.Len() != 0 {
		t.Errorf("The default config should load cleanly, got: %s", stderr.String())
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if issues := config.ValidateConfig(cfg, config.DefaultSchema()); len(issues) != 0 {
		t.Errorf("Default config has issues: %v", issues)
	}

	stdout.Reset()
	if err := NewInitCommand().Execute(ctx, nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "Configuration already exists") {
		t.Errorf("Expected existing config to be kept, got %s", stdout.String())
	}
}
