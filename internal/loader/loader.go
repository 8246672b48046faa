// Package loader reads source files and lowers them with the front-end
// for their language.
package loader

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/unbound-force/orderflake/internal/gosource"
	"github.com/unbound-force/orderflake/internal/pysource"
	"github.com/unbound-force/orderflake/internal/syntax"
)

// Sentinel errors for files that cannot be lowered.
var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrInvalidContent      = errors.New("file is not valid UTF-8")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// DefaultMaxFileSize is used when Options.MaxFileSize is zero.
const DefaultMaxFileSize = 2 << 20

// Options configures a Loader.
type Options struct {
	// TestPrefix marks Python test functions and methods.
	TestPrefix string

	// MaxFileSize is the largest file read, in bytes.
	MaxFileSize int64
}

// Loader lowers files. It is safe for concurrent use.
type Loader struct {
	py      *pysource.Parser
	maxSize int64
}

// New returns a Loader for opts.
func New(opts Options) *Loader {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Loader{
		py:      pysource.NewParser(pysource.WithTestPrefix(opts.TestPrefix)),
		maxSize: maxSize,
	}
}

// LanguageOf returns the language of path by extension.
func LanguageOf(path string) (syntax.Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return syntax.Python, true
	case ".go":
		return syntax.Go, true
	}
	return "", false
}

// Load reads the file at path and lowers it. rel is the path recorded
// in positions and units; it is usually relative to the scan root.
func (l *Loader) Load(ctx context.Context, path, rel string) (*syntax.File, error) {
	lang, ok := LanguageOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", rel, ErrUnsupportedLanguage)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.Size() > l.maxSize {
		return nil, fmt.Errorf("%s (%d bytes, limit %d): %w", rel, info.Size(), l.maxSize, ErrFileTooLarge)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return l.Parse(ctx, lang, content, rel)
}

// Parse lowers content already in memory.
func (l *Loader) Parse(ctx context.Context, lang syntax.Language, content []byte, rel string) (*syntax.File, error) {
	if int64(len(content)) > l.maxSize {
		return nil, fmt.Errorf("%s: %w", rel, ErrFileTooLarge)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s: %w", rel, ErrInvalidContent)
	}

	switch lang {
	case syntax.Python:
		return l.py.Parse(ctx, content, rel)
	case syntax.Go:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return gosource.ParseFile(token.NewFileSet(), rel, content)
	}
	return nil, fmt.Errorf("%s: %w", rel, ErrUnsupportedLanguage)
}
