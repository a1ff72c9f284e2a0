package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ileasile/kotlin/internal/command"
	"github.com/ileasile/kotlin/internal/config"
)

// version is set at link time.
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// .env in the working directory may carry KREPL_* overrides
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(stderr, "Warning: failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		// If config doesn't exist, create a new empty one
		cfg = config.NewConfig()
	}

	env := command.NewEnvironment(cfg)
	env.Stdin = stdin

	registry := command.NewRegistry()
	helpCmd := command.NewHelpCommand(registry)
	registry.Register(helpCmd)
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, ""))
	registry.Register(command.NewInitCommand())
	registry.Register(command.NewReplCommand(env, version))
	registry.Register(command.NewRunCommand(env))
	registry.Register(command.NewCheckCommand(env))
	registry.SetDefault("repl")

	var cmd command.Command
	switch {
	case len(args) > 0 && (args[0] == "-h" || args[0] == "--help"):
		return helpCmd.Execute(ctx, nil, stdout, stderr)
	case len(args) == 0 || strings.HasPrefix(args[0], "-"):
		// No command: flags belong to the default command.
		cmd, err = registry.Default()
		if err != nil {
			return err
		}
	default:
		cmd, err = registry.Get(args[0])
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
			_, _ = fmt.Fprintln(stderr, "Use 'krepl help' to see available commands.")
			return err
		}
		args = args[1:]
	}

	flags := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: krepl %s\n", cmd.Usage())
		_, _ = fmt.Fprintf(stderr, "\n%s\n\n", cmd.Description())
		_, _ = fmt.Fprintln(stderr, "Options:")
		flags.PrintDefaults()
	}
	cmd.SetupFlags(flags)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return cmd.Execute(ctx, flags.Args(), stdout, stderr)
}
