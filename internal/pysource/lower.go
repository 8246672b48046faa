package pysource

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/unbound-force/orderflake/internal/syntax"
)

// lowerer converts tree-sitter nodes into syntax variants. Every
// method tolerates nil nodes and unknown node types.
type lowerer struct {
	src  []byte
	path string
}

// clauseTypes are the child nodes of compound statements that carry
// their own bodies.
var clauseTypes = map[string]bool{
	"elif_clause":         true,
	"else_clause":         true,
	"except_clause":       true,
	"except_group_clause": true,
	"finally_clause":      true,
	"case_clause":         true,
}

func (l *lowerer) pos(n *sitter.Node) syntax.Pos {
	p := n.StartPoint()
	return syntax.Pos{File: l.path, Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}

func (l *lowerer) fieldText(n *sitter.Node, field string) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(l.src)
}

// block lowers the statements of a block node.
func (l *lowerer) block(n *sitter.Node) []syntax.Stmt {
	var out []syntax.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, l.stmt(n.NamedChild(i))...)
	}
	return out
}

// stmt lowers one statement. Most produce a single syntax statement;
// parallel assignments produce one per pair.
func (l *lowerer) stmt(n *sitter.Node) []syntax.Stmt {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "comment":
		return nil
	case "expression_statement":
		return l.exprStmt(n)
	case "assert_statement":
		if n.NamedChildCount() == 0 {
			return []syntax.Stmt{&syntax.BadStmt{At: l.pos(n), Kind: n.Type()}}
		}
		return []syntax.Stmt{&syntax.Assert{At: l.pos(n), Test: l.expr(n.NamedChild(0))}}
	}
	if body, ok := l.compound(n); ok {
		return []syntax.Stmt{&syntax.Block{At: l.pos(n), Kind: n.Type(), Body: body}}
	}
	return []syntax.Stmt{&syntax.BadStmt{At: l.pos(n), Kind: n.Type()}}
}

// compound gathers the bodies of a compound statement. It reports
// false for simple statements, which have neither a block nor a
// clause child.
func (l *lowerer) compound(n *sitter.Node) ([]syntax.Stmt, bool) {
	var (
		body  []syntax.Stmt
		found bool
	)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch {
		case c.Type() == "block":
			found = true
			body = append(body, l.block(c)...)
		case clauseTypes[c.Type()]:
			found = true
			body = append(body, l.stmt(c)...)
		}
	}
	return body, found
}

func (l *lowerer) exprStmt(n *sitter.Node) []syntax.Stmt {
	switch n.NamedChildCount() {
	case 0:
		return []syntax.Stmt{&syntax.BadStmt{At: l.pos(n), Kind: n.Type()}}
	case 1:
	default:
		// A bare tuple such as `a, b` at statement level.
		return []syntax.Stmt{&syntax.ExprStmt{At: l.pos(n), X: l.tuple(n)}}
	}
	c := n.NamedChild(0)
	switch c.Type() {
	case "assignment":
		if pairs := l.parallel(c); pairs != nil {
			return pairs
		}
		return []syntax.Stmt{l.assignment(c)}
	case "augmented_assignment":
		return []syntax.Stmt{&syntax.BadStmt{At: l.pos(c), Kind: c.Type()}}
	}
	return []syntax.Stmt{&syntax.ExprStmt{At: l.pos(n), X: l.expr(c)}}
}

var sequenceTypes = map[string]bool{
	"pattern_list":    true,
	"tuple_pattern":   true,
	"list_pattern":    true,
	"expression_list": true,
	"tuple":           true,
}

// parallel splits a = x, b = y written as `a, b = x, y` into one Assign
// per pair. It returns nil unless both sides are sequences of the same
// length and the assignment is not chained.
func (l *lowerer) parallel(n *sitter.Node) []syntax.Stmt {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if left == nil || right == nil || !sequenceTypes[left.Type()] || !sequenceTypes[right.Type()] {
		return nil
	}
	targets, values := l.elements(left), l.elements(right)
	if len(targets) < 2 || len(targets) != len(values) {
		return nil
	}
	out := make([]syntax.Stmt, 0, len(targets))
	for i := range targets {
		out = append(out, &syntax.Assign{
			At:      l.pos(n),
			Targets: []syntax.Expr{l.expr(targets[i])},
			Value:   l.expr(values[i]),
		})
	}
	return out
}

// elements returns the named children of a sequence node without
// comments. A starred element makes the pairing unknowable, so it
// yields nil.
func (l *lowerer) elements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "list_splat", "list_splat_pattern":
			return nil
		}
		out = append(out, c)
	}
	return out
}

// assignment flattens chained assignments (a = b = value) into a single
// Assign with one target per link.
func (l *lowerer) assignment(n *sitter.Node) syntax.Stmt {
	a := &syntax.Assign{At: l.pos(n)}
	cur := n
	for {
		a.Targets = append(a.Targets, l.expr(cur.ChildByFieldName("left")))
		right := cur.ChildByFieldName("right")
		if right == nil {
			// Annotation without a value: `x: int`.
			a.Value = &syntax.BadExpr{At: l.pos(cur), Kind: "missing"}
			return a
		}
		if right.Type() != "assignment" {
			a.Value = l.expr(right)
			return a
		}
		cur = right
	}
}

func (l *lowerer) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return &syntax.BadExpr{Kind: "missing"}
	}
	at := l.pos(n)
	switch n.Type() {
	case "identifier":
		return &syntax.Name{At: at, ID: n.Content(l.src)}

	case "attribute":
		return &syntax.Attribute{
			At:    at,
			Value: l.expr(n.ChildByFieldName("object")),
			Name:  l.fieldText(n, "attribute"),
		}

	case "call":
		return &syntax.Call{
			At:   at,
			Func: l.expr(n.ChildByFieldName("function")),
			Args: l.args(n.ChildByFieldName("arguments")),
		}

	case "subscript":
		return &syntax.Subscript{
			At:    at,
			Value: l.expr(n.ChildByFieldName("value")),
			Index: l.expr(n.ChildByFieldName("subscript")),
		}

	case "integer":
		return &syntax.Literal{At: at, Kind: syntax.LitInt, Value: n.Content(l.src)}
	case "float":
		return &syntax.Literal{At: at, Kind: syntax.LitFloat, Value: n.Content(l.src)}
	case "string", "concatenated_string":
		return &syntax.Literal{At: at, Kind: syntax.LitString, Value: n.Content(l.src)}
	case "true", "false", "none":
		return &syntax.Literal{At: at, Kind: syntax.LitOther, Value: n.Content(l.src)}

	case "unary_operator":
		return l.unary(n)

	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return l.expr(n.NamedChild(0))
		}

	case "tuple", "pattern_list", "tuple_pattern", "expression_list", "list_pattern":
		return l.tuple(n)

	case "comparison_operator":
		return l.comparison(n)
	}
	return &syntax.BadExpr{At: at, Kind: n.Type()}
}

// unary folds a negated integer literal into a Literal so that
// rows[-1] is recognized as an integer subscript.
func (l *lowerer) unary(n *sitter.Node) syntax.Expr {
	op := l.fieldText(n, "operator")
	arg := n.ChildByFieldName("argument")
	if arg != nil && arg.Type() == "integer" && (op == "-" || op == "+") {
		v := arg.Content(l.src)
		if op == "-" {
			v = "-" + v
		}
		return &syntax.Literal{At: l.pos(n), Kind: syntax.LitInt, Value: v}
	}
	return &syntax.BadExpr{At: l.pos(n), Kind: n.Type()}
}

// comparison lowers two-operand comparisons. Chains such as a < b < c
// and multi-token operators (is not, not in) become BadExpr.
func (l *lowerer) comparison(n *sitter.Node) syntax.Expr {
	if n.NamedChildCount() != 2 || n.ChildCount() != 3 {
		return &syntax.BadExpr{At: l.pos(n), Kind: n.Type()}
	}
	return &syntax.Compare{
		At:    l.pos(n),
		Op:    n.Child(1).Type(),
		Left:  l.expr(n.NamedChild(0)),
		Right: l.expr(n.NamedChild(1)),
	}
}

func (l *lowerer) tuple(n *sitter.Node) syntax.Expr {
	t := &syntax.Tuple{At: l.pos(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		t.Elts = append(t.Elts, l.expr(c))
	}
	return t
}

// args lowers a call's argument list. Keyword arguments contribute
// their value so that assertEqual(first=rows[0].x, second=1) is seen.
func (l *lowerer) args(n *sitter.Node) []syntax.Expr {
	if n == nil {
		return nil
	}
	if n.Type() != "argument_list" {
		// Bare generator argument: f(x for x in y).
		return []syntax.Expr{l.expr(n)}
	}
	var out []syntax.Expr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "keyword_argument":
			out = append(out, l.expr(c.ChildByFieldName("value")))
		default:
			out = append(out, l.expr(c))
		}
	}
	return out
}
