package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/repl"
	"github.com/ileasile/kotlin/internal/shell"
)

// ReplCommand runs the interactive read-eval-print loop.
type ReplCommand struct {
	*BaseCommand
	env      *Environment
	version  string
	flags    sessionFlags
	noBanner bool
	lines    bool
}

// NewReplCommand creates the repl command.
func NewReplCommand(env *Environment, version string) *ReplCommand {
	return &ReplCommand{
		BaseCommand: NewBaseCommand(
			"repl",
			"Start an interactive Kotlin script session",
			"repl [options]",
		),
		env:     env,
		version: version,
	}
}

// SetupFlags configures the flags for the repl command.
func (c *ReplCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags.setup(fs)
	fs.BoolVar(&c.noBanner, "no-banner", false, "Do not print the welcome banner")
	fs.BoolVar(&c.lines, "lines", false, "Read plain lines even when attached to a terminal")
}

// Execute runs the loop until :quit or end of input. Snippet failures are
// reported but never fail the command.
func (c *ReplCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	s, err := c.env.settings("repl", &c.flags)
	if err != nil {
		return err
	}
	rt := c.env.open(s, stdout, stderr)
	defer rt.close()

	sh := shell.New(rt.session,
		shell.WithOutput(stdout),
		shell.WithErrorOutput(stderr),
		shell.WithLogger(rt.logger),
		shell.WithLogRing(rt.ring),
		shell.WithPrompts(s.Prompt, s.ContinuationPrompt),
		shell.WithHistoryFile(s.HistoryFile, s.HistorySize),
	)

	if c.interactive(stdout) {
		if !c.noBanner && c.env.Schema.Bool(c.env.Config, "repl", "banner") {
			_, _ = fmt.Fprintf(stdout, "krepl %s - Kotlin script REPL\n", c.version)
			_, _ = fmt.Fprintln(stdout, "Type ':help' for available commands, ':quit' to exit")
		}
		return sh.RunPrompt(ctx)
	}
	return sh.RunLines(ctx, c.env.Stdin)
}

func (c *ReplCommand) interactive(stdout io.Writer) bool {
	if c.lines {
		return false
	}
	in, ok := c.env.Stdin.(*os.File)
	if !ok {
		return false
	}
	out, ok := stdout.(*os.File)
	return ok && shell.IsInteractive(in, out)
}

// RunCommand executes script files snippet by snippet.
type RunCommand struct {
	*BaseCommand
	env   *Environment
	flags sessionFlags
	echo  bool
	keep  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(env *Environment) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a Kotlin script file in a fresh session",
			"run [options] FILE",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags.setup(fs)
	fs.BoolVar(&c.echo, "echo", false, "Echo each snippet before its result (default from [run] echo)")
	fs.BoolVar(&c.keep, "keep-going", false, "Keep running after a failing snippet (default from [run] fail-fast)")
}

// Execute runs the file. It fails when any snippet failed.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(stderr, "Usage: %s\n", c.Usage())
		return fmt.Errorf("expected exactly one file")
	}
	path := args[0]
	src, err := readSource(path, c.env.Stdin)
	if err != nil {
		return err
	}
	s, err := c.env.settings("run", &c.flags)
	if err != nil {
		return err
	}
	echo := c.echo || c.env.Schema.Bool(c.env.Config, "run", "echo")
	failFast := !c.keep && c.env.Schema.Bool(c.env.Config, "run", "fail-fast")

	rt := c.env.open(s, stdout, stderr)
	defer rt.close()

	chunks, err := shell.Split(ctx, rt.session, src)
	if err != nil {
		return err
	}
	sh := shell.New(rt.session,
		shell.WithOutput(stdout),
		shell.WithErrorOutput(stderr),
		shell.WithLogger(rt.logger),
		shell.WithLogRing(rt.ring),
		shell.WithPrompts(s.Prompt, s.ContinuationPrompt),
		shell.WithEcho(echo),
	)
	for _, ch := range chunks {
		more, err := sh.Execute(ctx, ch.Text)
		if err != nil {
			return err
		}
		if sh.Failures() > 0 && failFast {
			return fmt.Errorf("%s:%d: snippet failed", path, ch.Line)
		}
		if !more {
			break
		}
	}
	if n := sh.Failures(); n > 0 {
		return fmt.Errorf("%s: %d snippet(s) failed", path, n)
	}
	return nil
}

// CheckCommand compiles script files without running them.
type CheckCommand struct {
	*BaseCommand
	env      *Environment
	flags    sessionFlags
	warnings bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand(env *Environment) *CheckCommand {
	return &CheckCommand{
		BaseCommand: NewBaseCommand(
			"check",
			"Report the diagnostics of a Kotlin script file without running it",
			"check [options] FILE",
		),
		env: env,
	}
}

// SetupFlags configures the flags for the check command.
func (c *CheckCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags.setup(fs)
	fs.BoolVar(&c.warnings, "warnings", true, "Also report warnings")
}

// Execute compiles every snippet of the file in order. Diagnostics are
// printed as FILE:LINE:COL: SEVERITY: MESSAGE; it fails on any error.
func (c *CheckCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(stderr, "Usage: %s\n", c.Usage())
		return fmt.Errorf("expected exactly one file")
	}
	path := args[0]
	src, err := readSource(path, c.env.Stdin)
	if err != nil {
		return err
	}
	s, err := c.env.settings("check", &c.flags)
	if err != nil {
		return err
	}
	rt := c.env.open(s, stdout, stderr)
	defer rt.close()

	chunks, err := shell.Split(ctx, rt.session, src)
	if err != nil {
		return err
	}
	errs := 0
	for _, ch := range chunks {
		if ch.Text[0] == ':' {
			continue
		}
		res, err := rt.session.Compile(ctx, rt.session.NewSnippet(ch.Text))
		if err != nil {
			return err
		}
		if res.Status == repl.Incomplete {
			errs++
			_, _ = fmt.Fprintf(stdout, "%s:%d: %s: incomplete snippet\n", path, ch.Line, diag.SeverityError)
			continue
		}
		for _, d := range res.Diagnostics {
			if !d.Severity.IsError() && !c.warnings {
				continue
			}
			if d.Severity.IsError() {
				errs++
			}
			_, _ = fmt.Fprintln(stdout, relocate(path, ch.Line, d))
		}
	}
	if errs > 0 {
		return fmt.Errorf("%s: %d error(s)", path, errs)
	}
	_, _ = fmt.Fprintf(stdout, "%s: ok\n", path)
	return nil
}

// relocate formats d, found in a chunk starting on line first, against the
// whole file.
func relocate(path string, first int, d diag.Diagnostic) string {
	if d.Location == nil {
		return fmt.Sprintf("%s:%d: %s: %s", path, first, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", path, first+d.Location.Start.Line-1, d.Location.Start.Col, d.Severity, d.Message)
}

// readSource reads a script file, or stdin for "-".
func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}
