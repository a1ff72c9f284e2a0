// Package shell is the read-eval-print front end of krepl: it feeds user
// input to a repl.Session, dispatches ":" meta-commands and prints results.
//
// Input arrives either one line at a time (Feed, RunLines), accumulating
// until the snippet is complete, or as whole buffers from the go-prompt
// editor (RunPrompt), which keeps incomplete snippets open itself.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ileasile/kotlin/internal/diag"
	"github.com/ileasile/kotlin/internal/logging"
	"github.com/ileasile/kotlin/internal/repl"
)

// Shell drives one session. It is not safe for concurrent use.
type Shell struct {
	session *repl.Session
	out     io.Writer
	errOut  io.Writer
	logger  *slog.Logger
	ring    *logging.Ring

	prompt       string
	continuation string
	historyFile  string
	historySize  int
	echo         bool

	pending []string
	inputs  []string
	failed  int
	quit    bool
}

// Option configures a Shell.
type Option func(*Shell)

// WithOutput sets where results go.
func WithOutput(w io.Writer) Option { return func(s *Shell) { s.out = w } }

// WithErrorOutput sets where diagnostics and errors go.
func WithErrorOutput(w io.Writer) Option { return func(s *Shell) { s.errOut = w } }

// WithLogger sets the shell logger.
func WithLogger(l *slog.Logger) Option { return func(s *Shell) { s.logger = l } }

// WithLogRing exposes recent log records to the :logs command.
func WithLogRing(r *logging.Ring) Option { return func(s *Shell) { s.ring = r } }

// WithPrompts sets the primary and continuation prompts.
func WithPrompts(primary, continuation string) Option {
	return func(s *Shell) { s.prompt, s.continuation = primary, continuation }
}

// WithHistoryFile persists interactive input history to path, keeping at
// most size entries.
func WithHistoryFile(path string, size int) Option {
	return func(s *Shell) { s.historyFile, s.historySize = path, size }
}

// WithEcho prints every snippet before its result.
func WithEcho(echo bool) Option { return func(s *Shell) { s.echo = echo } }

// New creates a shell around session.
func New(session *repl.Session, opts ...Option) *Shell {
	s := &Shell{
		session:      session,
		out:          io.Discard,
		errOut:       io.Discard,
		logger:       slog.New(slog.DiscardHandler),
		prompt:       ">>> ",
		continuation: "... ",
		historySize:  1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the session the shell drives.
func (s *Shell) Session() *repl.Session { return s.session }

// Done reports whether :quit was executed.
func (s *Shell) Done() bool { return s.quit }

// Failures is the number of snippets that failed to compile or threw.
func (s *Shell) Failures() int { return s.failed }

// Pending returns the buffered lines of an incomplete snippet.
func (s *Shell) Pending() string { return strings.Join(s.pending, "\n") }

// Inputs returns every input the shell executed, oldest first.
func (s *Shell) Inputs() []string { return append([]string(nil), s.inputs...) }

// PromptString is the prompt for the next line.
func (s *Shell) PromptString() string {
	if len(s.pending) > 0 {
		return s.continuation
	}
	return s.prompt
}

// Feed consumes one line of input. Lines accumulate until they form a
// complete snippet or a syntax error; meta-commands are only recognized
// at the start of a snippet. It returns false once the shell is done.
func (s *Shell) Feed(ctx context.Context, line string) (bool, error) {
	if len(s.pending) == 0 {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return !s.quit, nil
		}
		if isMeta(trimmed) {
			return s.Execute(ctx, trimmed)
		}
	}
	s.pending = append(s.pending, line)
	text := s.Pending()
	res, err := s.session.Check(ctx, text)
	if err != nil {
		return false, err
	}
	if res.Status == repl.CheckIncomplete {
		return true, nil
	}
	s.pending = s.pending[:0]
	return s.Execute(ctx, text)
}

// Flush submits a buffered incomplete snippet, reporting it as such.
func (s *Shell) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	text := s.Pending()
	s.pending = s.pending[:0]
	_, err := s.Execute(ctx, text)
	return err
}

// Execute runs one complete input: a meta-command or a snippet. It
// returns false once the shell is done. The error return is for session
// misuse and cancellation only.
func (s *Shell) Execute(ctx context.Context, input string) (bool, error) {
	if strings.TrimSpace(input) == "" {
		return !s.quit, nil
	}
	s.inputs = append(s.inputs, input)
	if trimmed := strings.TrimSpace(input); isMeta(trimmed) {
		err := s.runMeta(ctx, trimmed)
		return !s.quit, err
	}
	return !s.quit, s.submit(ctx, input)
}

// RunLines reads r line by line until EOF or :quit. A snippet still
// incomplete at EOF is submitted and reported.
func (s *Shell) RunLines(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		more, err := s.Feed(ctx, sc.Text())
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return s.Flush(ctx)
}

func (s *Shell) submit(ctx context.Context, text string) error {
	if s.echo {
		for i, line := range strings.Split(text, "\n") {
			prefix := s.prompt
			if i > 0 {
				prefix = s.continuation
			}
			fmt.Fprintf(s.out, "%s%s\n", prefix, line)
		}
	}
	res, err := s.session.Submit(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.failed++
			fmt.Fprintf(s.errOut, "error: evaluation interrupted: %v\n", err)
			return nil
		}
		return err
	}
	s.printResult(text, res)
	return nil
}

func (s *Shell) printResult(text string, res repl.SubmitResult) {
	switch res.Compile.Status {
	case repl.Incomplete:
		s.failed++
		fmt.Fprintln(s.errOut, "error: incomplete snippet")
		return
	case repl.Failed:
		s.failed++
		s.printDiagnostics(text, res.Compile.Diagnostics)
		if len(res.Compile.Diagnostics) == 0 {
			fmt.Fprintln(s.errOut, "error: compilation failed")
		}
		return
	}
	s.printDiagnostics(text, res.Compile.Diagnostics)

	ev := res.Eval
	switch {
	case ev == nil:
	case ev.IsError():
		s.failed++
		fmt.Fprintf(s.errOut, "error: %v\n", ev.Err())
	case ev.HasResult():
		u := res.Compile.Unit
		fmt.Fprintf(s.out, "%s: %s = %s\n", u.ResultName, u.ResultType, ev.Text())
	}
}

func (s *Shell) printDiagnostics(src string, ds []diag.Diagnostic) {
	for _, d := range ds {
		fmt.Fprintln(s.errOut, d.Render(src))
	}
}

func isMeta(input string) bool {
	return len(input) > 1 && input[0] == ':' && input[1] != ':' && input[1] != ' '
}
