package scan

import (
	"path/filepath"
	"strings"

	"github.com/unbound-force/orderflake/internal/config"
	"github.com/unbound-force/orderflake/internal/syntax"
)

// Filter returns true if the given relative path should be included
// in the scan, based on the exclude/include patterns in cfg.
//
// Logic:
//  1. If include patterns are set, the file must match at least one
//     include pattern to be processed.
//  2. If the file matches any exclude pattern, it is excluded.
//  3. Otherwise, the file is included.
func Filter(rel string, cfg *config.Config) bool {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	rel = filepath.ToSlash(rel)

	if len(cfg.Scan.Include) > 0 {
		matched := false
		for _, pattern := range cfg.Scan.Include {
			if matchGlob(pattern, rel) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range cfg.Scan.Exclude {
		if matchGlob(pattern, rel) {
			return false
		}
	}
	return true
}

// IsTestFile reports whether rel holds tests: a Python file whose base
// name starts with prefix, or a Go _test.go file.
func IsTestFile(rel string, lang syntax.Language, prefix string) bool {
	base := filepath.Base(rel)
	switch lang {
	case syntax.Python:
		return strings.HasPrefix(base, prefix) && strings.HasSuffix(base, ".py")
	case syntax.Go:
		return strings.HasSuffix(base, "_test.go")
	}
	return false
}

// matchGlob matches a path against a glob pattern. It supports simple
// glob syntax (filepath.Match) and "dir/**" patterns. A "dir/**"
// pattern whose dir is a single segment matches that directory at any
// depth, so "__pycache__/**" skips every cache directory.
func matchGlob(pattern, rel string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
		if !strings.Contains(prefix, "/") {
			return strings.Contains("/"+rel, "/"+prefix+"/")
		}
		return false
	}

	matched, err := filepath.Match(pattern, rel)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a separator also match the base name, so
	// "conftest.py" matches at any depth.
	if !strings.Contains(pattern, "/") {
		matched, err = filepath.Match(pattern, filepath.Base(rel))
		return err == nil && matched
	}
	return false
}
