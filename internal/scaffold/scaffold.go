// Package scaffold embeds the default orderflake configuration and
// writes it to a target project directory.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/unbound-force/orderflake/internal/config"
)

//go:embed assets/*
var assets embed.FS

// targets maps embedded asset names to their path in the project.
// Embedded files cannot start with a dot, so the config is renamed.
var targets = map[string]string{
	"orderflake.yaml": config.FileName,
}

// projectMarkers are files whose presence means TargetDir is a project
// root orderflake can scan.
var projectMarkers = []string{config.PyProjectFile, "setup.py", "setup.cfg", "manage.py", "go.mod"}

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the root directory to scaffold into.
	// Defaults to the current working directory.
	TargetDir string

	// Force overwrites existing files when true.
	// When false, existing files are skipped.
	Force bool

	// Version is the orderflake version string to embed in the
	// version marker comment. Defaults to "dev".
	Version string

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the scaffold operation did.
type Result struct {
	// Created lists files that were written for the first time.
	Created []string

	// Skipped lists files that already existed and were not
	// overwritten (Force was false).
	Skipped []string

	// Overwritten lists files that existed and were replaced
	// (Force was true).
	Overwritten []string
}

func versionMarker(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("# scaffolded by orderflake %s\n", version)
}

// Run writes the embedded files into the target directory, each
// prefixed with a version marker comment:
//
//	# scaffolded by orderflake vX.Y.Z
//
// If a file already exists and opts.Force is false, the file is
// skipped. If opts.Force is true, the file is overwritten.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	if !isProjectRoot(opts.TargetDir) {
		fmt.Fprintln(opts.Stdout, "Warning: no pyproject.toml, setup.py, manage.py or go.mod found.")
		fmt.Fprintln(opts.Stdout, "orderflake reads .orderflake.yaml from the directory passed to scan.")
		fmt.Fprintln(opts.Stdout)
	}

	result := &Result{}
	marker := versionMarker(opts.Version)

	err := fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel := targetPath(strings.TrimPrefix(path, "assets/"))
		outPath := filepath.Join(opts.TargetDir, rel)

		_, statErr := os.Stat(outPath)
		exists := statErr == nil
		if exists && !opts.Force {
			result.Skipped = append(result.Skipped, rel)
			return nil
		}

		content, err := assets.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading embedded asset %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(outPath), err)
		}
		out := append([]byte(marker), content...)
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", rel, err)
		}

		if exists {
			result.Overwritten = append(result.Overwritten, rel)
		} else {
			result.Created = append(result.Created, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	printSummary(opts.Stdout, result)
	return result, nil
}

func targetPath(asset string) string {
	if t, ok := targets[asset]; ok {
		return t
	}
	return asset
}

func isProjectRoot(dir string) bool {
	for _, name := range projectMarkers {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// printSummary writes a human-readable summary of the scaffold
// operation to w.
func printSummary(w io.Writer, r *Result) {
	fmt.Fprintln(w, "orderflake initialized:")

	for _, f := range r.Created {
		fmt.Fprintf(w, "  created: %s\n", f)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(w, "  skipped: %s (already exists)\n", f)
	}
	for _, f := range r.Overwritten {
		fmt.Fprintf(w, "  overwritten: %s\n", f)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run `orderflake scan .` to look for order-dependent tests.")

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "%d file(s) skipped (use --force to overwrite).\n", len(r.Skipped))
	}
}

// AssetContent returns the raw content of an embedded asset by its
// name (e.g., "orderflake.yaml").
func AssetContent(name string) ([]byte, error) {
	return assets.ReadFile("assets/" + name)
}
