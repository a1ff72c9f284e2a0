package shell

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ileasile/kotlin/internal/archive"
	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/repl"
)

// metaCommand is a ":" command of the shell.
type metaCommand struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     func(s *Shell, ctx context.Context, arg string) error
}

var metaCommands []metaCommand

func init() {
	metaCommands = []metaCommand{
		{Name: "help", Description: "Show this help message", Handler: (*Shell).metaHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Description: "Leave the REPL", Handler: (*Shell).metaQuit},
		{Name: "history", Description: "List the compiled snippets", Handler: (*Shell).metaHistory},
		{Name: "errors", Usage: ":errors CODE", Description: "Show the diagnostics of CODE without running it", Handler: (*Shell).metaErrors},
		{Name: "type", Usage: ":type EXPR", Description: "Show the type of EXPR without running it", Handler: (*Shell).metaType},
		{Name: "complete", Usage: ":complete CODE", Description: "List completions at the end of CODE", Handler: (*Shell).metaComplete},
		{Name: "save", Usage: ":save FILE", Description: "Write the session to a txtar archive", Handler: (*Shell).metaSave},
		{Name: "load", Usage: ":load FILE", Description: "Replay the snippets of a txtar archive", Handler: (*Shell).metaLoad},
		{Name: "logs", Usage: ":logs [N | TEXT]", Description: "Show the last N log entries, or those matching TEXT", Handler: (*Shell).metaLogs},
	}
}

func lookupMeta(name string) (metaCommand, bool) {
	for _, c := range metaCommands {
		if c.Name == name || slices.Contains(c.Aliases, name) {
			return c, true
		}
	}
	return metaCommand{}, false
}

// metaNames returns every command spelling, for completion.
func metaNames() []string {
	var out []string
	for _, c := range metaCommands {
		out = append(out, ":"+c.Name)
	}
	return out
}

// runMeta dispatches input, which starts with ':'.
func (s *Shell) runMeta(ctx context.Context, input string) error {
	name, arg, _ := strings.Cut(input[1:], " ")
	arg = strings.TrimSpace(arg)
	cmd, ok := lookupMeta(name)
	if !ok {
		fmt.Fprintf(s.errOut, "Command not found: :%s\n", name)
		fmt.Fprintln(s.errOut, "Type ':help' for available commands")
		return nil
	}
	if cmd.Usage != "" && arg == "" && !strings.Contains(cmd.Usage, "[") {
		fmt.Fprintf(s.errOut, "Usage: %s\n", cmd.Usage)
		return nil
	}
	s.logger.Debug("[Shell] meta-command", "command", cmd.Name)
	return cmd.Handler(s, ctx, arg)
}

func (s *Shell) metaHelp(context.Context, string) error {
	fmt.Fprintln(s.out, "Available commands:")
	for _, c := range metaCommands {
		usage := c.Usage
		if usage == "" {
			usage = ":" + c.Name
		}
		fmt.Fprintf(s.out, "  %-22s - %s\n", usage, c.Description)
	}
	fmt.Fprintln(s.out, "")
	fmt.Fprintln(s.out, "Anything else is compiled and run as Kotlin script.")
	return nil
}

func (s *Shell) metaQuit(context.Context, string) error {
	s.quit = true
	return nil
}

func (s *Shell) metaHistory(context.Context, string) error {
	hist := s.session.CompiledHistory()
	if len(hist) == 0 {
		fmt.Fprintln(s.out, "No snippets compiled yet.")
		return nil
	}
	for _, e := range hist {
		lines := strings.Split(e.Item.Snippet.Text, "\n")
		fmt.Fprintf(s.out, "[%d] %s\n", e.ID.No, lines[0])
		pad := strings.Repeat(" ", len(strconv.Itoa(e.ID.No))+3)
		for _, l := range lines[1:] {
			fmt.Fprintf(s.out, "%s%s\n", pad, l)
		}
	}
	return nil
}

func (s *Shell) metaErrors(ctx context.Context, code string) error {
	ds, err := s.session.ListErrors(ctx, code)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		fmt.Fprintln(s.out, "No errors.")
		return nil
	}
	for _, d := range ds {
		fmt.Fprintln(s.out, d.Render(code))
	}
	return nil
}

func (s *Shell) metaType(ctx context.Context, expr string) error {
	typ, ds, err := s.session.TypeOf(ctx, expr)
	if err != nil {
		return err
	}
	if diag.HasErrors(ds) {
		s.printDiagnostics(expr, ds)
		return nil
	}
	if typ == "" {
		fmt.Fprintln(s.out, "Unit")
		return nil
	}
	fmt.Fprintln(s.out, typ)
	return nil
}

func (s *Shell) metaComplete(ctx context.Context, code string) error {
	vs, err := s.session.Complete(ctx, code, len(code))
	if err != nil {
		return err
	}
	if len(vs) == 0 {
		fmt.Fprintln(s.out, "No completions.")
		return nil
	}
	for _, v := range vs {
		line := fmt.Sprintf("%-10s %s", v.Icon, v.DisplayText)
		if v.Tail != "" {
			line += " " + v.Tail
		}
		fmt.Fprintln(s.out, strings.TrimRight(line, " "))
	}
	return nil
}

func (s *Shell) metaSave(_ context.Context, path string) error {
	snap := archive.FromSession(s.session)
	if err := archive.Save(path, snap); err != nil {
		fmt.Fprintf(s.errOut, "error: %v\n", err)
		return nil
	}
	s.logger.Info("[Shell] session saved", "path", path, "snippets", len(snap.Entries))
	fmt.Fprintf(s.out, "Saved %d snippet(s) to %s\n", len(snap.Entries), path)
	return nil
}

func (s *Shell) metaLoad(ctx context.Context, path string) error {
	snap, err := archive.Load(path)
	if err != nil {
		fmt.Fprintf(s.errOut, "error: %v\n", err)
		return nil
	}
	s.logger.Info("[Shell] replaying session", "path", path, "from", snap.Header.SessionID, "snippets", len(snap.Entries))
	failedBefore := s.failed
	err = archive.Replay(ctx, s.session, snap, func(e archive.Entry, res repl.SubmitResult) {
		s.printResult(e.Text, res)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Loaded %d snippet(s) from %s", len(snap.Entries), path)
	if n := s.failed - failedBefore; n > 0 {
		fmt.Fprintf(s.out, ", %d failed", n)
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *Shell) metaLogs(_ context.Context, arg string) error {
	if s.ring == nil {
		fmt.Fprintln(s.errOut, "Logs are not captured in this session.")
		return nil
	}
	entries := s.ring.Recent(20)
	if arg != "" {
		if n, err := strconv.Atoi(arg); err == nil {
			entries = s.ring.Recent(n)
		} else {
			entries = s.ring.Search(arg)
		}
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No log entries.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(s.out, e.String())
	}
	return nil
}
