package shell

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/joeycumines/go-prompt"
	istrings "github.com/joeycumines/go-prompt/strings"
	"golang.org/x/term"

	"github.com/ileasile/kotlin/internal/repl"
	"github.com/ileasile/kotlin/internal/repl/completion"
)

// IsInteractive reports whether both ends of the terminal are attached,
// which is when RunPrompt should be preferred over RunLines.
func IsInteractive(in, out *os.File) bool {
	return term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd()))
}

// RunPrompt runs the go-prompt editor until :quit or end of input.
// Enter inserts a newline while the snippet is incomplete. History is
// loaded from and saved to the configured history file.
func (s *Shell) RunPrompt(ctx context.Context) error {
	history := loadHistory(s.historyFile)
	start := len(s.inputs)

	var runErr error
	executor := func(input string) {
		if _, err := s.Execute(ctx, input); err != nil {
			runErr = err
			s.quit = true
		}
	}

	options := []prompt.Option{
		prompt.WithPrefix(s.prompt),
		prompt.WithCompleter(s.completer(ctx)),
		prompt.WithExecuteOnEnterCallback(s.executeOnEnter(ctx)),
		prompt.WithExitChecker(func(string, bool) bool { return s.quit }),
	}
	if len(history) > 0 {
		options = append(options, prompt.WithHistory(history))
	}

	p := prompt.New(executor, options...)
	p.Run()

	if err := saveHistory(s.historyFile, append(history, s.inputs[start:]...), s.historySize); err != nil {
		s.logger.Warn("[Shell] failed to save history", "file", s.historyFile, "error", err)
	}
	return runErr
}

// executeOnEnter keeps the buffer open while it holds an incomplete
// snippet, indenting the new line by the number of open braces.
func (s *Shell) executeOnEnter(ctx context.Context) func(*prompt.Prompt, int) (int, bool) {
	return func(p *prompt.Prompt, indentSize int) (int, bool) {
		text := p.Buffer().Text()
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || isMeta(trimmed) {
			return 0, true
		}
		res, err := s.session.Check(ctx, text)
		if err != nil || res.Status != repl.CheckIncomplete {
			return 0, true
		}
		return max(0, strings.Count(text, "{")-strings.Count(text, "}")), false
	}
}

// completer bridges session completion into go-prompt.
func (s *Shell) completer(ctx context.Context) prompt.Completer {
	return func(d prompt.Document) ([]prompt.Suggest, istrings.RuneNumber, istrings.RuneNumber) {
		before := d.TextBeforeCursor()
		suggestions, replaced := s.suggest(ctx, d.Text, before)
		end := utf8.RuneCountInString(before)
		return suggestions, istrings.RuneNumber(end - replaced), istrings.RuneNumber(end)
	}
}

// suggest computes suggestions for text with the cursor after before,
// and how many runes left of the cursor they replace.
func (s *Shell) suggest(ctx context.Context, text, before string) ([]prompt.Suggest, int) {
	trimmed := strings.TrimLeft(before, " \t")
	if strings.HasPrefix(trimmed, ":") {
		name, rest, hasArg := strings.Cut(trimmed, " ")
		if !hasArg {
			var out []prompt.Suggest
			for _, n := range metaNames() {
				if strings.HasPrefix(n, name) {
					cmd, _ := lookupMeta(n[1:])
					out = append(out, prompt.Suggest{Text: n, Description: cmd.Description})
				}
			}
			return out, utf8.RuneCountInString(name)
		}
		switch name {
		case ":errors", ":type", ":complete":
			offset := len(before) - len(rest)
			return s.suggest(ctx, text[offset:], rest)
		}
		return nil, 0
	}

	vs, err := s.session.Complete(ctx, text, len(before))
	if err != nil || len(vs) == 0 {
		return nil, 0
	}
	replaced := 0
	out := make([]prompt.Suggest, 0, len(vs))
	for _, v := range vs {
		replaced = max(replaced, typedPrefix(before, v))
		desc := v.Tail
		if desc == "" {
			desc = v.Icon
		}
		out = append(out, prompt.Suggest{Text: v.Text, Description: strings.TrimSpace(desc)})
	}
	return out, replaced
}

// typedPrefix is the length, in runes, of the longest suffix of before
// that v.Text starts with. Path variants match without regard to case.
func typedPrefix(before string, v completion.Variant) int {
	fold := v.Icon == completion.IconFile || v.Icon == completion.IconFolder
	runes := []rune(before)
	limit := min(len(runes), utf8.RuneCountInString(v.Text))
	for n := limit; n > 0; n-- {
		suffix := string(runes[len(runes)-n:])
		if strings.HasPrefix(v.Text, suffix) || (fold && len(suffix) <= len(v.Text) && strings.EqualFold(v.Text[:len(suffix)], suffix)) {
			return n
		}
	}
	return 0
}
