// Package detector decides whether a single test asserts on more than
// one position of an unordered query result.
//
// The analysis is a single forward pass over the test body. A name is
// tracked once it is assigned the result of an unordered fetch; every
// equality assertion operand of the form name[<int>].attr then records
// the literal index against that name. A test is flaky when some
// tracked name collected two or more distinct indices.
//
// The detector is a heuristic. It does not follow values through
// re-binding: after a = rows[0], an assertion on a.value is invisible.
package detector

import (
	"sort"

	"github.com/unbound-force/orderflake/internal/matcher"
	"github.com/unbound-force/orderflake/internal/oracle"
	"github.com/unbound-force/orderflake/internal/syntax"
)

// Options configures an analysis.
type Options struct {
	// Patterns is the matcher vocabulary. The zero value matches
	// nothing; callers normally pass matcher.DefaultPatterns().
	Patterns matcher.Patterns

	// Oracle suppresses sources with a declared ordering. May be nil.
	Oracle oracle.Oracle
}

// DefaultOptions returns options with the default patterns and no
// oracle.
func DefaultOptions() Options {
	return Options{Patterns: matcher.DefaultPatterns()}
}

// TrackedVariable is a name bound to an unordered fetch result.
type TrackedVariable struct {
	Name       string     `json:"name"`
	Source     string     `json:"source"`
	DeclaredAt syntax.Pos `json:"declared_at"`
}

// IndexUsage maps a tracked name to every literal index asserted on it,
// duplicates included, in source order.
type IndexUsage map[string][]int

// Verdict is the outcome of analyzing one test.
type Verdict struct {
	// Flaky is true when some tracked variable was asserted on at two
	// or more distinct indices.
	Flaky bool

	// Variables lists the tracked names responsible for the verdict,
	// sorted.
	Variables []string

	// Usage holds the indices observed per tracked name.
	Usage IndexUsage

	// Tracked lists every variable bound to an unordered fetch, in the
	// order they were first bound.
	Tracked []TrackedVariable

	// Suppressed lists fetch-bound names that were not tracked because
	// the oracle reported their source as ordered.
	Suppressed []TrackedVariable
}

// DistinctIndices returns the sorted distinct indices recorded for name.
func (v Verdict) DistinctIndices(name string) []int {
	return distinct(v.Usage[name])
}

// Analyze runs the detector over one test unit.
func Analyze(unit syntax.TestUnit, opts Options) Verdict {
	a := &analysis{
		opts:    opts,
		tracked: make(map[string]TrackedVariable),
		usage:   make(IndexUsage),
	}
	syntax.Walk(unit.Body, a.visit)
	return a.verdict()
}

// Result pairs a test unit with its verdict.
type Result struct {
	Unit    syntax.TestUnit
	Verdict Verdict
}

// AnalyzeAll analyzes each unit independently and returns the results
// in input order.
func AnalyzeAll(units []syntax.TestUnit, opts Options) []Result {
	results := make([]Result, 0, len(units))
	for _, u := range units {
		results = append(results, Result{Unit: u, Verdict: Analyze(u, opts)})
	}
	return results
}

// analysis holds the per-unit state of one pass. Nothing in it
// outlives Analyze.
type analysis struct {
	opts       Options
	tracked    map[string]TrackedVariable
	order      []TrackedVariable
	suppressed []TrackedVariable
	usage      IndexUsage
}

func (a *analysis) visit(s syntax.Stmt) {
	switch stmt := s.(type) {
	case *syntax.Assign:
		a.track(stmt)
	case *syntax.ExprStmt, *syntax.Assert:
		a.record(s)
	}
}

// track adds the targets of a fetch assignment to the tracked set.
func (a *analysis) track(assign *syntax.Assign) {
	names := a.opts.Patterns.ExtractAssignedNames(assign)
	if len(names) == 0 {
		return
	}
	source, _ := a.opts.Patterns.FetchSource(assign.Value)
	ordered := oracle.Lookup(a.opts.Oracle, source)

	for _, n := range names {
		if _, ok := a.tracked[n]; ok {
			continue
		}
		tv := TrackedVariable{Name: n, Source: source, DeclaredAt: assign.At}
		if ordered {
			a.suppressed = append(a.suppressed, tv)
			continue
		}
		a.tracked[n] = tv
		a.order = append(a.order, tv)
	}
}

// record appends the subscript indices of an equality assertion's
// operands to the usage map of tracked names.
func (a *analysis) record(s syntax.Stmt) {
	for _, arg := range a.opts.Patterns.AssertionOperands(s) {
		name, index, ok := matcher.SubscriptVariableAndIndex(arg)
		if !ok {
			continue
		}
		if _, tracked := a.tracked[name]; !tracked {
			continue
		}
		a.usage[name] = append(a.usage[name], index)
	}
}

func (a *analysis) verdict() Verdict {
	v := Verdict{
		Usage:      a.usage,
		Tracked:    a.order,
		Suppressed: a.suppressed,
	}
	for name, indices := range a.usage {
		if len(distinct(indices)) >= 2 {
			v.Variables = append(v.Variables, name)
		}
	}
	sort.Strings(v.Variables)
	v.Flaky = len(v.Variables) > 0
	return v
}

func distinct(indices []int) []int {
	if len(indices) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(indices))
	var out []int
	for _, i := range indices {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
