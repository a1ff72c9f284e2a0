// Package deps resolves library dependencies to Kotlin source files.
//
// A dependency is either a coordinate "group:artifact:version", looked up
// as <repository>/<group path>/<artifact>/<version> in each repository in
// turn, or a path to a .kt file or a directory of them. Relative paths are
// tried against the base directory first and then against each
// repository.
package deps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SourceExt is the extension of library source files.
const SourceExt = ".kt"

var (
	// ErrNotFound is returned when no repository holds a dependency.
	ErrNotFound = errors.New("dependency not found")
	// ErrInvalidCoordinate is returned for malformed coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrNoSources is returned when a dependency contains no source files.
	ErrNoSources = errors.New("no " + SourceExt + " sources")
)

// Coordinate is a parsed "group:artifact:version".
type Coordinate struct {
	Group, Artifact, Version string
}

func (c Coordinate) String() string { return c.Group + ":" + c.Artifact + ":" + c.Version }

// Path is the coordinate's directory relative to a repository root.
func (c Coordinate) Path() string {
	return filepath.Join(append(strings.Split(c.Group, "."), c.Artifact, c.Version)...)
}

// ParseCoordinate parses s. The second result is false when s is not
// shaped like a coordinate at all, so it should be treated as a path.
func ParseCoordinate(s string) (Coordinate, bool, error) {
	if strings.ContainsAny(s, `/\`) || strings.Count(s, ":") != 2 {
		return Coordinate{}, false, nil
	}
	parts := strings.Split(s, ":")
	for _, p := range parts {
		if p == "" || strings.TrimSpace(p) != p || p == "." || p == ".." {
			return Coordinate{}, true, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
		}
	}
	return Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2]}, true, nil
}

// Resolver resolves dependencies against the local filesystem.
type Resolver struct {
	// BaseDir anchors relative paths; empty means the working directory.
	BaseDir string
	Logger  *slog.Logger
}

// NewResolver creates a Resolver anchored at baseDir.
func NewResolver(baseDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{BaseDir: baseDir, Logger: logger}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// Resolve returns the sorted source files of dependency.
func (r *Resolver) Resolve(ctx context.Context, dependency string, repositories []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, isCoord, err := ParseCoordinate(dependency)
	if err != nil {
		return nil, err
	}
	var candidates []string
	if isCoord {
		for _, repo := range repositories {
			candidates = append(candidates, filepath.Join(r.anchor(repo), c.Path()))
		}
	} else {
		if filepath.IsAbs(dependency) {
			candidates = append(candidates, dependency)
		} else {
			candidates = append(candidates, r.anchor(dependency))
			for _, repo := range repositories {
				candidates = append(candidates, filepath.Join(r.anchor(repo), dependency))
			}
		}
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		files, err := sources(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dependency, err)
		}
		r.logger().Debug("[Deps] resolved", "dependency", dependency, "path", p, "files", len(files))
		return files, nil
	}
	if isCoord && len(repositories) == 0 {
		return nil, fmt.Errorf("%w: %s (no repositories configured)", ErrNotFound, dependency)
	}
	return nil, fmt.Errorf("%w: %s (tried %s)", ErrNotFound, dependency, strings.Join(candidates, ", "))
}

// ResolveAll resolves every dependency and joins all failures.
func (r *Resolver) ResolveAll(ctx context.Context, dependencies, repositories []string) ([]string, error) {
	var files []string
	var errs []error
	for _, d := range dependencies {
		got, err := r.Resolve(ctx, d, repositories)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, got...)
	}
	return files, errors.Join(errs...)
}

func (r *Resolver) anchor(p string) string {
	if filepath.IsAbs(p) || r.BaseDir == "" {
		return p
	}
	return filepath.Join(r.BaseDir, p)
}

// sources lists the .kt files at p, a file or a directory.
func sources(p string) ([]string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, SourceExt) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoSources
	}
	slices.Sort(out)
	return out, nil
}
