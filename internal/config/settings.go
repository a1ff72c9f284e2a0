package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Settings are the resolved, typed options of one krepl command.
type Settings struct {
	Classpath          []string
	Dependencies       []string
	Repositories       []string
	EvalTimeout        time.Duration
	LoadTimeout        time.Duration
	Prompt             string
	ContinuationPrompt string
	HistoryFile        string
	HistorySize        int
	DisplayWidth       int
	Verbose            bool
	LogLevel           slog.Level
	LogBufferSize      int
}

// Settings resolves every option for section ("" for none) from the
// environment, the config and the schema defaults, in that order. Values
// that fail to parse are reported together.
func (s *ConfigSchema) Settings(c *Config, section string) (Settings, error) {
	var errs []error
	get := func(key string) string { return s.ResolveIn(c, section, key) }
	integer := func(key string) int {
		n, err := s.Int(c, section, key)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	duration := func(key string) time.Duration {
		d, err := s.Duration(c, section, key)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	out := Settings{
		Classpath:          SplitPathList(get("classpath")),
		Dependencies:       SplitList(get("dependencies")),
		Repositories:       SplitPathList(get("repositories")),
		EvalTimeout:        duration("eval.timeout"),
		LoadTimeout:        duration("load.timeout"),
		Prompt:             get("prompt"),
		ContinuationPrompt: get("continuation-prompt"),
		HistoryFile:        get("history.file"),
		HistorySize:        integer("history.size"),
		DisplayWidth:       integer("completion.display-width"),
		LogBufferSize:      integer("log.buffer-size"),
	}
	if v := get("verbose"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("verbose: %w", err))
		}
		out.Verbose = b
	}
	if v := get("log.level"); v != "" {
		if err := out.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("log.level: invalid level %q", v))
		}
	}
	return out, errors.Join(errs...)
}

// Bool resolves a boolean option of section, false when unset or invalid.
func (s *ConfigSchema) Bool(c *Config, section, key string) bool {
	b, err := parseBool(s.ResolveIn(c, section, key))
	return err == nil && b
}

// Int resolves an integer option of section. Unset options read as 0.
func (s *ConfigSchema) Int(c *Config, section, key string) (int, error) {
	v := s.ResolveIn(c, section, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: expected int, got %q", key, v)
	}
	return n, nil
}

// Duration resolves a duration option of section. Unset options read as 0.
func (s *ConfigSchema) Duration(c *Config, section, key string) (time.Duration, error) {
	v := s.ResolveIn(c, section, key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: expected duration, got %q", key, v)
	}
	return d, nil
}

// SplitPathList splits an OS path list, dropping empty elements.
func SplitPathList(v string) []string {
	var out []string
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitList splits a comma-separated list, dropping empty elements.
func SplitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
