package command

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ileasile/kotlin/internal/config"
	"github.com/ileasile/kotlin/internal/deps"
	"github.com/ileasile/kotlin/internal/kts"
	"github.com/ileasile/kotlin/internal/logging"
	"github.com/ileasile/kotlin/internal/repl"
	"github.com/ileasile/kotlin/internal/repl/completion"
)

// Environment is what the session commands share: the loaded config, the
// process input and the working directory relative paths resolve against.
type Environment struct {
	Config *config.Config
	Schema *config.ConfigSchema
	Stdin  io.Reader
	// Dir anchors relative dependency and completion paths. Empty means
	// the process working directory.
	Dir string
}

// NewEnvironment wraps cfg with the default schema and process stdin.
func NewEnvironment(cfg *config.Config) *Environment {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Environment{Config: cfg, Schema: config.DefaultSchema(), Stdin: os.Stdin}
}

func (e *Environment) dir() string {
	if e.Dir != "" {
		return e.Dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// sessionFlags are the flags of every command that opens a session. Flag
// values take precedence over the environment and the config file.
type sessionFlags struct {
	classpath    stringList
	dependencies stringList
	repositories stringList
	timeout      time.Duration
	verbose      bool
	logLevel     string
}

func (f *sessionFlags) setup(fs *flag.FlagSet) {
	fs.Var(&f.classpath, "cp", "Library directory or .kt file to register (repeatable)")
	fs.Var(&f.dependencies, "dep", "Dependency coordinate group:artifact:version or path (repeatable)")
	fs.Var(&f.repositories, "repo", "Repository directory searched for dependencies (repeatable)")
	fs.DurationVar(&f.timeout, "timeout", 0, "Bound on the evaluation of one snippet (0 uses the config)")
	fs.BoolVar(&f.verbose, "verbose", false, "Mirror log records to stderr")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// settings resolves the section's settings and applies the flags.
func (e *Environment) settings(section string, f *sessionFlags) (config.Settings, error) {
	s, err := e.Schema.Settings(e.Config, section)
	if err != nil {
		return s, fmt.Errorf("invalid configuration: %w", err)
	}
	s.Classpath = append(s.Classpath, f.classpath...)
	s.Dependencies = append(s.Dependencies, f.dependencies...)
	s.Repositories = append(s.Repositories, f.repositories...)
	if f.timeout > 0 {
		s.EvalTimeout = f.timeout
	}
	if f.verbose {
		s.Verbose = true
	}
	if f.logLevel != "" {
		level, err := logging.ParseLevel(f.logLevel)
		if err != nil {
			return s, err
		}
		s.LogLevel = level
	}
	return s, nil
}

// runtime is one opened session with its logging.
type runtime struct {
	session *repl.Session
	ring    *logging.Ring
	logger  *slog.Logger
}

// open creates the logger and the session described by s. Snippet output
// goes to stdout; verbose logging is mirrored to stderr.
func (e *Environment) open(s config.Settings, stdout, stderr io.Writer) *runtime {
	ring := logging.NewRing(s.LogBufferSize, s.LogLevel)
	var mirror io.Writer
	if s.Verbose {
		mirror = stderr
	}
	logger := logging.New(ring, mirror, s.LogLevel)

	for _, w := range e.Config.Warnings {
		logger.Warn("[Config] " + w)
	}

	dir := e.dir()
	session := repl.NewSession(
		repl.Config{
			Classpath:    s.Classpath,
			Dependencies: s.Dependencies,
			Repositories: s.Repositories,
		},
		kts.New(kts.WithLoadTimeout(s.LoadTimeout)),
		repl.WithLogger(logger),
		repl.WithResolver(deps.NewResolver(dir, logger)),
		repl.WithStdout(stdout),
		repl.WithStdin(e.Stdin),
		repl.WithEvalTimeout(s.EvalTimeout),
		repl.WithCompletion(
			completion.WithDisplayWidth(s.DisplayWidth),
			completion.WithBaseDir(dir),
		),
	)
	logger.Debug("[Command] session opened", "session", session.ID(), "classpath", len(s.Classpath), "dependencies", len(s.Dependencies))
	return &runtime{session: session, ring: ring, logger: logger}
}

func (r *runtime) close() {
	if err := r.session.Dispose(); err != nil {
		r.logger.Warn("[Command] failed to dispose session", "error", err)
	}
}
