// Package discovery finds installed plugin bundles.
//
// Discovery is best effort: unreadable directories, unloadable files and bundles without
// any plugin are skipped and only reported at debug level.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// Scheme describes where bundles of one format are installed.
type Scheme struct {
	// Extension of bundle files (or bundle directories on macOS), with the dot.
	Extension string
	// EnvVar holds extra search roots separated by filepath.ListSeparator.
	EnvVar string
	Paths  []string
}

// Opener loads one bundle.
type Opener func(path string, logger *zap.Logger) (plugin.Bundle, error)

// DefaultConcurrency bounds the number of bundles opened at once by Find.
const DefaultConcurrency = 4

// CLAP returns the standard CLAP install locations of the running platform.
func CLAP() Scheme {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".clap"))
		if runtime.GOOS == "darwin" {
			paths = append(paths, filepath.Join(home, "Library", "Audio", "Plug-Ins", "CLAP"))
		}
	}
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("CommonProgramFiles"); dir != "" {
			paths = append(paths, filepath.Join(dir, "CLAP"))
		}
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			paths = append(paths, filepath.Join(dir, "Programs", "Common", "CLAP"))
		}
	case "darwin":
		paths = append(paths, "/Library/Audio/Plug-Ins/CLAP")
	}
	if runtime.GOOS != "windows" {
		paths = append(paths, "/usr/lib/clap")
	}
	return Scheme{Extension: ".clap", EnvVar: "CLAP_PATH", Paths: paths}
}

// Roots returns the standard paths followed by the entries of the environment variable.
func (s Scheme) Roots() []string {
	roots := append([]string(nil), s.Paths...)
	if s.EnvVar == "" {
		return roots
	}
	for _, p := range filepath.SplitList(os.Getenv(s.EnvVar)) {
		if p != "" {
			roots = append(roots, p)
		}
	}
	return roots
}

func (s Scheme) matches(name string) bool {
	return strings.EqualFold(filepath.Ext(name), s.Extension)
}

// Candidates walks roots and returns every path carrying the scheme's extension, in walk
// order. Symlinked directories are followed; a directory reached twice is walked once.
// A directory carrying the extension is a bundle and is not descended into.
func Candidates(ctx context.Context, roots []string, s Scheme, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := walker{scheme: s, logger: logger, seen: map[string]bool{}}
	for _, root := range roots {
		if err := w.walk(ctx, root); err != nil {
			return w.found, err
		}
	}
	return w.found, nil
}

type walker struct {
	scheme Scheme
	logger *zap.Logger
	seen   map[string]bool
	found  []string
}

func (w *walker) walk(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		w.logger.Debug("skipping search path", zap.String("path", dir), zap.Error(err))
		return nil
	}
	if w.seen[real] {
		return nil
	}
	w.seen[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("skipping unreadable directory", zap.String("path", dir), zap.Error(err))
		return nil
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		// Stat follows symlinks.
		fi, err := os.Stat(path)
		if err != nil {
			w.logger.Debug("skipping entry", zap.String("path", path), zap.Error(err))
			continue
		}
		switch {
		case w.scheme.matches(e.Name()) && (fi.Mode().IsRegular() || fi.IsDir()):
			w.found = append(w.found, path)
		case fi.IsDir():
			if err := w.walk(ctx, path); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find opens every candidate under roots and returns the bundles exposing at least one
// plugin, in walk order. Bundles without plugins are closed. The caller owns the
// returned bundles.
func Find(ctx context.Context, roots []string, s Scheme, open Opener, logger *zap.Logger) ([]plugin.Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("discovery")

	paths, err := Candidates(ctx, roots, s, logger)
	if err != nil {
		return nil, err
	}

	opened := make([]plugin.Bundle, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := open(path, logger)
			if err != nil {
				logger.Debug("skipping bundle", zap.String("path", path), zap.Error(err))
				return nil
			}
			if len(b.Descriptors()) == 0 {
				logger.Debug("bundle exposes no plugin", zap.String("path", path))
				if err := b.Close(); err != nil {
					logger.Debug("close failed", zap.String("path", path), zap.Error(err))
				}
				return nil
			}
			opened[i] = b
			return nil
		})
	}
	err = g.Wait()

	var bundles []plugin.Bundle
	for _, b := range opened {
		if b == nil {
			continue
		}
		if err != nil {
			_ = b.Close()
			continue
		}
		bundles = append(bundles, b)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("discovery done", zap.Int("candidates", len(paths)), zap.Int("bundles", len(bundles)))
	return bundles, nil
}
