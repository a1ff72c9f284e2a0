package repl

import (
	"io"
	"log/slog"
	"time"

	"github.com/ileasile/kotlin/internal/repl/completion"
)

// Config is the compilation configuration of a session. Its libraries are
// registered once, before the first snippet is analyzed.
type Config struct {
	// Classpath lists library directories or .kt files.
	Classpath []string
	// Dependencies lists coordinates resolved through the resolver.
	Dependencies []string
	// Repositories are searched for Dependencies and for the
	// @file:DependsOn coordinates of snippets.
	Repositories []string
}

// Option configures a Session.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(o *options) { f(o) }

type options struct {
	logger      *slog.Logger
	resolver    DependencyResolver
	stdout      io.Writer
	stdin       io.Reader
	evalTimeout time.Duration
	completion  []completion.Option
}

// WithLogger sets the session logger. Sessions are silent by default.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithResolver sets the dependency resolver. Without one, every declared
// dependency fails to resolve.
func WithResolver(r DependencyResolver) Option {
	return optionFunc(func(o *options) { o.resolver = r })
}

// WithStdout sets where snippet output goes.
func WithStdout(w io.Writer) Option {
	return optionFunc(func(o *options) { o.stdout = w })
}

// WithStdin sets where snippets read input from.
func WithStdin(r io.Reader) Option {
	return optionFunc(func(o *options) { o.stdin = r })
}

// WithEvalTimeout bounds each evaluation.
func WithEvalTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) { o.evalTimeout = d })
}

// WithCompletion configures the completion engine.
func WithCompletion(opts ...completion.Option) Option {
	return optionFunc(func(o *options) { o.completion = append(o.completion, opts...) })
}
