package gosource

import (
	"fmt"
	"go/ast"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/unbound-force/orderflake/internal/detector"
	"github.com/unbound-force/orderflake/internal/matcher"
	"github.com/unbound-force/orderflake/internal/oracle"
	"github.com/unbound-force/orderflake/internal/syntax"
)

const doc = `report tests that assert on several positions of an unordered query

A test is reported when it binds the result of Model.Objects.All() to a
variable and then asserts on two or more distinct positions of it, as in
rows.At(0).Value and rows.At(1).Value. Without an explicit ordering the
result order is unspecified and the test passes or fails depending on
storage order.

Models registered with queryset.OrderBy(...) are exempt. Ordering is
propagated across packages as a package fact.`

// Config configures an Analyzer.
type Config struct {
	Patterns matcher.Patterns

	// Ordered and Unordered override model ordering discovered from
	// Register declarations.
	Ordered   []string
	Unordered []string
}

// DefaultConfig returns the default matcher vocabulary and no
// overrides.
func DefaultConfig() Config {
	return Config{Patterns: matcher.DefaultPatterns()}
}

// Analyzer reports order-dependent tests with the default config.
var Analyzer = NewAnalyzer(DefaultConfig())

// Result is the value an Analyzer pass returns to dependent analyzers.
type Result struct {
	Findings []detector.Result
}

// ModelsFact is exported for every package that registers models. It
// maps each model name to whether it declares an ordering.
type ModelsFact struct {
	Ordered map[string]bool
}

// AFact implements analysis.Fact.
func (*ModelsFact) AFact() {}

func (f *ModelsFact) String() string {
	names := make([]string, 0, len(f.Ordered))
	for name, ordered := range f.Ordered {
		if ordered {
			name += "(ordered)"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return "models(" + strings.Join(names, ", ") + ")"
}

// NewAnalyzer returns an Analyzer for cfg. The -ordered and -unordered
// flags append to the config's overrides.
func NewAnalyzer(cfg Config) *analysis.Analyzer {
	r := &runner{cfg: cfg}
	a := &analysis.Analyzer{
		Name:       "orderflake",
		Doc:        doc,
		Requires:   []*analysis.Analyzer{inspect.Analyzer},
		Run:        r.run,
		FactTypes:  []analysis.Fact{new(ModelsFact)},
		ResultType: reflect.TypeOf((*Result)(nil)),
	}
	a.Flags.Var((*listFlag)(&r.cfg.Ordered), "ordered", "comma-separated models to treat as ordered")
	a.Flags.Var((*listFlag)(&r.cfg.Unordered), "unordered", "comma-separated models to treat as unordered")
	return a
}

type runner struct {
	cfg Config
}

func (r *runner) run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	var models []syntax.Model
	for _, f := range pass.Files {
		path := pass.Fset.File(f.Pos()).Name()
		l := &lowerer{fset: pass.Fset, path: path}
		for _, decl := range f.Decls {
			if gen, ok := decl.(*ast.GenDecl); ok {
				models = append(models, l.models(gen)...)
			}
		}
	}
	if len(models) > 0 {
		pass.ExportPackageFact(&ModelsFact{Ordered: oracle.Build(models, nil, nil)})
	}

	all := append([]syntax.Model(nil), models...)
	for _, pf := range pass.AllPackageFacts() {
		mf, ok := pf.Fact.(*ModelsFact)
		if !ok || pf.Package == pass.Pkg {
			continue
		}
		for name, ordered := range mf.Ordered {
			m := syntax.Model{Name: name}
			if ordered {
				m.Ordering = []string{name}
			}
			all = append(all, m)
		}
	}
	facts := oracle.Build(all, r.cfg.Ordered, r.cfg.Unordered)

	opts := detector.Options{Patterns: r.cfg.Patterns, Oracle: facts}
	res := &Result{}

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fd := n.(*ast.FuncDecl)
		path := pass.Fset.File(fd.Pos()).Name()
		if !strings.HasSuffix(path, "_test.go") || !IsTestFunc(fd) {
			return
		}
		l := &lowerer{fset: pass.Fset, path: path}
		unit := l.unit(fd)
		v := detector.Analyze(unit, opts)
		res.Findings = append(res.Findings, detector.Result{Unit: unit, Verdict: v})
		if !v.Flaky {
			return
		}
		pass.Reportf(fd.Name.Pos(), "possible flaky test %s: %s", unit.QualifiedName(), describe(v))
	})
	return res, nil
}

func describe(v detector.Verdict) string {
	parts := make([]string, 0, len(v.Variables))
	for _, name := range v.Variables {
		parts = append(parts, fmt.Sprintf("%s asserted at positions %v", name, v.DistinctIndices(name)))
	}
	return strings.Join(parts, "; ") + " of an unordered query"
}

// listFlag is a comma-separated flag.Value that appends.
type listFlag []string

func (f *listFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *listFlag) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}
