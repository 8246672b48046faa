// Package scan walks a source tree, lowers every test file with the
// front-end for its language and runs the flaky-test detector over
// each test.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/unbound-force/orderflake/internal/config"
	"github.com/unbound-force/orderflake/internal/detector"
	"github.com/unbound-force/orderflake/internal/loader"
	"github.com/unbound-force/orderflake/internal/oracle"
	"github.com/unbound-force/orderflake/internal/syntax"
	"github.com/unbound-force/orderflake/internal/taxonomy"
)

// Options configures a Scan invocation.
type Options struct {
	// Config provides file selection, matcher vocabulary and oracle
	// overrides. If nil, config.DefaultConfig() is used.
	Config *config.Config

	// Logger receives per-file progress at debug level and skipped
	// files at warn level. If nil, nothing is logged.
	Logger *charmlog.Logger

	// Version is embedded in the report metadata. Defaults to "dev".
	Version string

	// load replaces loader.Loader.Load in tests.
	load func(ctx context.Context, path, rel string) (*syntax.File, error)
}

// candidate is a file selected by the walk.
type candidate struct {
	path string
	rel  string
	lang syntax.Language
	test bool
}

// outcome is the per-file result slot written by exactly one worker.
type outcome struct {
	file *syntax.File
	skip *taxonomy.SkippedFile
}

// Scan analyzes every test file under root, which may also be a single
// file. Files that cannot be read or lowered are reported in
// Report.Skipped; they never fail the scan. The returned error is
// non-nil only when root cannot be walked or ctx is done.
func Scan(ctx context.Context, root string, opts Options) (*taxonomy.Report, error) {
	start := time.Now()
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = charmlog.New(io.Discard)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	cfg := opts.Config

	candidates, err := walk(ctx, root, cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("walk complete", "root", root, "files", len(candidates))

	load := opts.load
	if load == nil {
		l := loader.New(loader.Options{
			TestPrefix:  cfg.Scan.TestPrefix,
			MaxFileSize: cfg.Scan.MaxFileSize,
		})
		load = l.Load
	}

	outcomes := make([]outcome, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers())
	for i, c := range candidates {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = process(gCtx, load, c, opts.Logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan canceled: %w", err)
	}

	rpt := assemble(candidates, outcomes, cfg)
	rpt.Metadata = taxonomy.Metadata{
		Version:   opts.Version,
		GoVersion: runtime.Version(),
		RunID:     uuid.NewString(),
		Root:      root,
		Timestamp: start,
		Duration:  time.Since(start),
	}
	opts.Logger.Debug("scan complete",
		"tests", rpt.Summary.TestsScanned,
		"flaky", rpt.Summary.Flaky,
		"skipped", rpt.Summary.Skipped)
	return rpt, nil
}

// walk collects the files to load: test files of enabled languages, and
// when discovery is on, every other source file for model declarations.
func walk(ctx context.Context, root string, cfg *config.Config) ([]candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	base := root
	if !info.IsDir() {
		base = filepath.Dir(root)
	}

	var out []candidate
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		// Skip hidden directories (like .git) early to avoid deep walks.
		if d.IsDir() {
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := loader.LanguageOf(path)
		if !ok || !cfg.LanguageEnabled(string(lang)) {
			return nil
		}
		if !Filter(rel, cfg) {
			return nil
		}
		test := IsTestFile(rel, lang, cfg.Scan.TestPrefix)
		if !test && !cfg.Ordering.Discover {
			return nil
		}
		out = append(out, candidate{path: path, rel: rel, lang: lang, test: test})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// process loads one file. A panic in a front-end becomes a skip for
// that file only.
func process(ctx context.Context, load func(context.Context, string, string) (*syntax.File, error),
	c candidate, logger *charmlog.Logger) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("skipping file", "path", c.rel, "panic", r)
			out = outcome{skip: &taxonomy.SkippedFile{
				Path:   c.rel,
				Reason: taxonomy.SkipPanic,
				Detail: fmt.Sprint(r),
			}}
		}
	}()

	f, err := load(ctx, c.path, c.rel)
	if err != nil {
		logger.Warn("skipping file", "path", c.rel, "err", err)
		return outcome{skip: &taxonomy.SkippedFile{Path: c.rel, Reason: skipReason(err), Detail: err.Error()}}
	}
	for _, e := range f.Errors {
		logger.Warn("partial parse", "path", c.rel, "err", e)
	}
	logger.Debug("loaded", "path", c.rel, "tests", len(f.Units), "models", len(f.Models))
	return outcome{file: f}
}

func skipReason(err error) taxonomy.SkipReason {
	switch {
	case errors.Is(err, loader.ErrFileTooLarge):
		return taxonomy.SkipTooLarge
	case errors.Is(err, loader.ErrInvalidContent):
		return taxonomy.SkipInvalid
	case errors.Is(err, loader.ErrUnsupportedLanguage):
		return taxonomy.SkipUnsupported
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return taxonomy.SkipUnreadable
	}
	return taxonomy.SkipParseError
}

// assemble builds the oracle from every loaded file, then analyzes the
// tests of test files in candidate order.
func assemble(candidates []candidate, outcomes []outcome, cfg *config.Config) *taxonomy.Report {
	rpt := &taxonomy.Report{Findings: []taxonomy.Finding{}, Skipped: []taxonomy.SkippedFile{}}

	var models []syntax.Model
	for _, o := range outcomes {
		if o.skip != nil {
			rpt.Skipped = append(rpt.Skipped, *o.skip)
			continue
		}
		if cfg.Ordering.Discover {
			models = append(models, o.file.Models...)
		}
	}
	facts := oracle.Build(models, cfg.Ordering.Ordered, cfg.Ordering.Unordered)
	opts := detector.Options{Patterns: cfg.Patterns(), Oracle: facts}

	for i, o := range outcomes {
		if o.file == nil || !candidates[i].test {
			continue
		}
		rpt.Summary.FilesScanned++
		for _, res := range detector.AnalyzeAll(o.file.Units, opts) {
			rpt.Summary.TestsScanned++
			if res.Verdict.Flaky {
				rpt.Findings = append(rpt.Findings, newFinding(res, candidates[i]))
			}
		}
	}

	sort.SliceStable(rpt.Findings, func(i, j int) bool {
		a, b := rpt.Findings[i], rpt.Findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.QualifiedName() < b.QualifiedName()
	})
	sort.SliceStable(rpt.Skipped, func(i, j int) bool {
		return rpt.Skipped[i].Path < rpt.Skipped[j].Path
	})

	rpt.Summary.Flaky = len(rpt.Findings)
	rpt.Summary.Skipped = len(rpt.Skipped)
	rpt.Summary.OrderedSources = facts.Sources()
	if rpt.Summary.OrderedSources == nil {
		rpt.Summary.OrderedSources = []string{}
	}
	return rpt
}

func newFinding(res detector.Result, c candidate) taxonomy.Finding {
	u := res.Unit
	f := taxonomy.Finding{
		ID:       taxonomy.GenerateID(c.rel, u.Class, u.Name),
		Test:     u.Name,
		Class:    u.Class,
		File:     c.rel,
		Line:     u.Pos.Line,
		Language: taxonomy.Language(c.lang),
	}
	for _, name := range res.Verdict.Variables {
		ev := taxonomy.Evidence{Variable: name, Indices: res.Verdict.DistinctIndices(name)}
		for _, tv := range res.Verdict.Tracked {
			if tv.Name == name {
				ev.Source = tv.Source
				ev.DeclaredLine = tv.DeclaredAt.Line
				break
			}
		}
		f.Evidence = append(f.Evidence, ev)
	}
	return f
}
