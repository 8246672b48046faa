// Package config loads orderflake settings from .orderflake.yaml or the
// [tool.orderflake] table of pyproject.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/unbound-force/orderflake/internal/matcher"
)

// FileName is the configuration file looked up at the scan root.
const FileName = ".orderflake.yaml"

// PyProjectFile carries configuration under [tool.orderflake].
const PyProjectFile = "pyproject.toml"

// DefaultMaxFileSize is the largest source file read by a scan.
const DefaultMaxFileSize = 2 << 20

// ErrInvalidConfig wraps every parse and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Language names accepted in scan.languages.
const (
	LanguagePython = "python"
	LanguageGo     = "go"
)

// Config is the complete orderflake configuration.
type Config struct {
	Scan     ScanConfig     `yaml:"scan" toml:"scan"`
	Matching MatchingConfig `yaml:"matching" toml:"matching"`
	Ordering OrderingConfig `yaml:"ordering" toml:"ordering"`
}

// ScanConfig selects the files a scan reads.
type ScanConfig struct {
	// TestPrefix marks Python test files (test_*.py) and test
	// functions and methods.
	TestPrefix string `yaml:"test_prefix" toml:"test_prefix" validate:"required,excludes=/"`

	// Languages enables front-ends.
	Languages []string `yaml:"languages" toml:"languages" validate:"min=1,dive,oneof=python go"`

	// Include, when set, restricts the scan to matching paths.
	Include []string `yaml:"include" toml:"include" validate:"dive,required"`

	// Exclude skips matching paths. Supports "dir/**" prefixes.
	Exclude []string `yaml:"exclude" toml:"exclude" validate:"dive,required"`

	// Workers bounds parallel file processing. Zero means one per CPU.
	Workers int `yaml:"workers" toml:"workers" validate:"gte=0,lte=256"`

	// MaxFileSize is the largest file read, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" toml:"max_file_size" validate:"gt=0"`
}

// MatchingConfig overrides the matcher vocabulary. An empty list keeps
// the default for that list.
type MatchingConfig struct {
	FetchMethods       []string `yaml:"fetch_methods" toml:"fetch_methods" validate:"dive,required"`
	Managers           []string `yaml:"managers" toml:"managers" validate:"dive,required"`
	PassthroughMethods []string `yaml:"passthrough_methods" toml:"passthrough_methods" validate:"dive,required"`
	OrderingMethods    []string `yaml:"ordering_methods" toml:"ordering_methods" validate:"dive,required"`
	EqualityAssertions []string `yaml:"equality_assertions" toml:"equality_assertions" validate:"dive,required"`
	AssertionHandles   []string `yaml:"assertion_handles" toml:"assertion_handles" validate:"dive,required"`
}

// OrderingConfig controls the ordering oracle.
type OrderingConfig struct {
	// Discover reads model declarations from source.
	Discover bool `yaml:"discover" toml:"discover"`

	// Ordered and Unordered override discovery. Unordered wins.
	Ordered   []string `yaml:"ordered" toml:"ordered" validate:"dive,required"`
	Unordered []string `yaml:"unordered" toml:"unordered" validate:"dive,required"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			TestPrefix:  "test",
			Languages:   []string{LanguagePython, LanguageGo},
			Exclude:     []string{".git/**", "vendor/**", "node_modules/**", "__pycache__/**", ".venv/**", "venv/**"},
			MaxFileSize: DefaultMaxFileSize,
		},
		Ordering: OrderingConfig{Discover: true},
	}
}

// Patterns returns the matcher vocabulary with the configured lists
// replacing the defaults.
func (c *Config) Patterns() matcher.Patterns {
	p := matcher.DefaultPatterns()
	m := c.Matching
	override(&p.FetchMethods, m.FetchMethods)
	override(&p.Managers, m.Managers)
	override(&p.PassthroughMethods, m.PassthroughMethods)
	override(&p.OrderingMethods, m.OrderingMethods)
	override(&p.EqualityAssertions, m.EqualityAssertions)
	override(&p.AssertionHandles, m.AssertionHandles)
	return p
}

func override(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

// Workers returns the effective worker count.
func (c *Config) Workers() int {
	if c.Scan.Workers > 0 {
		return c.Scan.Workers
	}
	return runtime.NumCPU()
}

// LanguageEnabled reports whether lang is listed in scan.languages.
func (c *Config) LanguageEnabled(lang string) bool {
	for _, l := range c.Scan.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Load reads the file at path. A pyproject.toml is read from its
// [tool.orderflake] table; any other file is read as YAML. Keys absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if filepath.Base(path) == PyProjectFile || filepath.Ext(path) == ".toml" {
		return parsePyProject(data, path)
	}
	return parseYAML(data, path)
}

func parseYAML(data []byte, path string) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

type pyProject struct {
	Tool struct {
		Orderflake *Config `toml:"orderflake"`
	} `toml:"tool"`
}

func parsePyProject(data []byte, path string) (*Config, error) {
	var doc pyProject
	doc.Tool.Orderflake = DefaultConfig()
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	cfg := doc.Tool.Orderflake
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// hasToolTable reports whether a pyproject.toml declares
// [tool.orderflake].
func hasToolTable(data []byte) bool {
	var doc pyProject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false
	}
	return doc.Tool.Orderflake != nil
}

// Find returns the configuration file for root: .orderflake.yaml if it
// exists, else pyproject.toml if it has a [tool.orderflake] table.
// It returns "" when neither applies.
func Find(root string) string {
	candidate := filepath.Join(root, FileName)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	candidate = filepath.Join(root, PyProjectFile)
	if data, err := os.ReadFile(candidate); err == nil && hasToolTable(data) {
		return candidate
	}
	return ""
}

// Resolve loads explicit when set, else the file Find locates under
// root, else the defaults. It returns the path used ("" for defaults).
func Resolve(explicit, root string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = Find(root)
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
