// Package matcher recognizes the syntactic shapes the flaky-test
// detector cares about: unordered fetch chains, equality assertions and
// integer subscripts. Every matcher is pure and total; a shape it does
// not recognize yields "no match", never an error.
package matcher

import (
	"strconv"
	"strings"

	"github.com/unbound-force/orderflake/internal/syntax"
)

// Patterns holds the names the matchers look for. The zero value
// matches nothing; use DefaultPatterns for the stock vocabulary.
type Patterns struct {
	// FetchMethods are the calls that end an unordered fetch chain
	// (Django's all(), Go's All()).
	FetchMethods []string

	// Managers are the attribute names between the source and the
	// fetch call (Source.objects.all()).
	Managers []string

	// PassthroughMethods may appear between the manager and the fetch
	// call without changing the result's ordering. Empty by default:
	// only direct Source.manager.fetch() chains are tracked.
	PassthroughMethods []string

	// OrderingMethods impose an order. A chain containing one is never
	// an unordered fetch.
	OrderingMethods []string

	// EqualityAssertions are the function or method names that check
	// two values for equality.
	EqualityAssertions []string

	// AssertionHandles are the receivers an equality assertion method
	// may be called on (self.assertEqual, assert.Equal, s.Equal).
	AssertionHandles []string
}

// DefaultPatterns returns the stock vocabulary covering Django/unittest
// tests and Go tests using testify or the queryset package.
func DefaultPatterns() Patterns {
	return Patterns{
		FetchMethods:    []string{"all"},
		Managers:        []string{"objects"},
		OrderingMethods: []string{"order_by", "orderby"},
		EqualityAssertions: []string{
			"assertEqual", "assertEquals", "assert_equal",
			"Equal", "EqualValues", "Exactly",
		},
		AssertionHandles: []string{"self", "assert", "require", "s", "suite"},
	}
}

// IsUnorderedFetchExpression reports whether expr is a fetch chain
// whose result order is not guaranteed.
func (p Patterns) IsUnorderedFetchExpression(expr syntax.Expr) bool {
	_, ok := p.FetchSource(expr)
	return ok
}

// FetchSource returns the source identifier of an unordered fetch
// chain: the last identifier before the manager attribute, so that
// app.models.Widget.objects.all() yields "Widget".
func (p Patterns) FetchSource(expr syntax.Expr) (string, bool) {
	call, ok := expr.(*syntax.Call)
	if !ok {
		return "", false
	}
	attr, ok := call.Func.(*syntax.Attribute)
	if !ok || !containsFold(p.FetchMethods, attr.Name) {
		return "", false
	}

	// Step back through any passthrough calls to the manager access.
	recv := attr.Value
	for {
		c, ok := recv.(*syntax.Call)
		if !ok {
			break
		}
		a, ok := c.Func.(*syntax.Attribute)
		if !ok {
			return "", false
		}
		if containsFold(p.OrderingMethods, a.Name) || !containsFold(p.PassthroughMethods, a.Name) {
			return "", false
		}
		recv = a.Value
	}

	mgr, ok := recv.(*syntax.Attribute)
	if !ok || !containsFold(p.Managers, mgr.Name) {
		return "", false
	}
	source := syntax.DottedName(mgr.Value)
	if source == "" {
		return "", false
	}
	return syntax.LastSegment(source), true
}

// ExtractAssignedNames returns the canonical names bound by an
// assignment whose value is an unordered fetch. Tuple targets are
// flattened, attribute targets keep their dotted form ("self.models"),
// and blank or subscript targets are dropped. It returns nil when the
// assignment is not a fetch.
func (p Patterns) ExtractAssignedNames(assign *syntax.Assign) []string {
	if assign == nil || !p.IsUnorderedFetchExpression(assign.Value) {
		return nil
	}
	var names []string
	for _, t := range assign.Targets {
		names = appendTargetNames(names, t)
	}
	return names
}

func appendTargetNames(names []string, target syntax.Expr) []string {
	if tup, ok := target.(*syntax.Tuple); ok {
		for _, e := range tup.Elts {
			names = appendTargetNames(names, e)
		}
		return names
	}
	name := syntax.DottedName(target)
	if name == "" || name == "_" {
		return names
	}
	return append(names, name)
}

// IsEqualityAssertionCall reports whether stmt is an equality
// assertion with at least two operands.
func (p Patterns) IsEqualityAssertionCall(stmt syntax.Stmt) bool {
	return len(p.AssertionOperands(stmt)) >= 2
}

// AssertionOperands returns the arguments of an equality assertion, or
// nil when stmt is not one. Recognized forms:
//
//	assertEqual(a, b)                 free function
//	self.assertEqual(a, b)            method on a test-case handle
//	assert.Equal(t, a, b)             testify package function
//	s.Require().Equal(a, b)           testify suite accessor
//	assert a == b                     bare assertion on a comparison
func (p Patterns) AssertionOperands(stmt syntax.Stmt) []syntax.Expr {
	switch s := stmt.(type) {
	case *syntax.ExprStmt:
		call, ok := s.X.(*syntax.Call)
		if !ok || !p.isEqualityCallee(call.Func) || len(call.Args) < 2 {
			return nil
		}
		return call.Args
	case *syntax.Assert:
		cmp, ok := s.Test.(*syntax.Compare)
		if !ok || (cmp.Op != "==" && cmp.Op != "!=") {
			return nil
		}
		return []syntax.Expr{cmp.Left, cmp.Right}
	}
	return nil
}

func (p Patterns) isEqualityCallee(fn syntax.Expr) bool {
	switch f := fn.(type) {
	case *syntax.Name:
		return contains(p.EqualityAssertions, f.ID)
	case *syntax.Attribute:
		if !contains(p.EqualityAssertions, f.Name) {
			return false
		}
		return p.isAssertionHandle(f.Value)
	}
	return false
}

// isAssertionHandle accepts a handle identifier (self, assert) or an
// accessor call on one (s.Require(), s.Assert()).
func (p Patterns) isAssertionHandle(e syntax.Expr) bool {
	switch h := e.(type) {
	case *syntax.Name:
		return contains(p.AssertionHandles, h.ID)
	case *syntax.Call:
		a, ok := h.Func.(*syntax.Attribute)
		if !ok || len(h.Args) != 0 {
			return false
		}
		if a.Name != "Require" && a.Name != "Assert" {
			return false
		}
		return p.isAssertionHandle(a.Value)
	}
	return false
}

// HasIntegerSubscript reports whether expr has the shape
// name[<int literal>].attr..., where name may be dotted.
func HasIntegerSubscript(expr syntax.Expr) bool {
	_, _, ok := SubscriptVariableAndIndex(expr)
	return ok
}

// SubscriptVariableAndIndex extracts the subscripted variable and the
// literal index from an expression matched by HasIntegerSubscript.
func SubscriptVariableAndIndex(expr syntax.Expr) (string, int, bool) {
	attr, ok := expr.(*syntax.Attribute)
	if !ok {
		return "", 0, false
	}
	// Unwind any further attribute accesses down to the subscript.
	base := attr.Value
	for {
		a, ok := base.(*syntax.Attribute)
		if !ok {
			break
		}
		base = a.Value
	}
	sub, ok := base.(*syntax.Subscript)
	if !ok {
		return "", 0, false
	}
	lit, ok := sub.Index.(*syntax.Literal)
	if !ok || lit.Kind != syntax.LitInt {
		return "", 0, false
	}
	index, err := parseInt(lit.Value)
	if err != nil {
		return "", 0, false
	}
	name := syntax.DottedName(sub.Value)
	if name == "" {
		return "", 0, false
	}
	return name, index, true
}

// parseInt accepts Python and Go integer literal spellings, including
// underscores and 0x/0o/0b prefixes.
func parseInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
