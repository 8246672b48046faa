// Package gosource lowers Go test files into orderflake's syntax tree
// and provides a go/analysis Analyzer that runs the flaky-test detector
// under go vet.
package gosource

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/unbound-force/orderflake/internal/syntax"
)

// ParseFile parses Go source and lowers it. Test units are extracted
// only when path ends in "_test.go"; model declarations are extracted
// from every file.
func ParseFile(fset *token.FileSet, path string, src []byte) (*syntax.File, error) {
	f, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return Lower(fset, f, path), nil
}

// Lower converts a parsed Go file.
func Lower(fset *token.FileSet, f *ast.File, path string) *syntax.File {
	l := &lowerer{fset: fset, path: path}
	out := &syntax.File{Path: path, Language: syntax.Go}

	isTest := strings.HasSuffix(path, "_test.go")
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if isTest && IsTestFunc(d) {
				out.Units = append(out.Units, l.unit(d))
			}
		case *ast.GenDecl:
			out.Models = append(out.Models, l.models(d)...)
		}
	}
	return out
}

// IsTestFunc reports whether fn is a test: a TestXxx function taking a
// parameter (func TestXxx(t *testing.T)) or a TestXxx method on a
// suite receiver.
func IsTestFunc(fn *ast.FuncDecl) bool {
	if fn.Body == nil || !strings.HasPrefix(fn.Name.Name, "Test") || fn.Name.Name == "TestMain" {
		return false
	}
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		return true
	}
	return fn.Type.Params != nil && len(fn.Type.Params.List) > 0
}

type lowerer struct {
	fset *token.FileSet
	path string
}

func (l *lowerer) pos(p token.Pos) syntax.Pos {
	if !p.IsValid() {
		return syntax.Pos{File: l.path}
	}
	position := l.fset.Position(p)
	return syntax.Pos{File: l.path, Line: position.Line, Col: position.Column}
}

func (l *lowerer) unit(fn *ast.FuncDecl) syntax.TestUnit {
	u := syntax.TestUnit{
		Name: fn.Name.Name,
		File: l.path,
		Pos:  l.pos(fn.Pos()),
		Body: l.stmts(fn.Body.List),
	}
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		u.Class = receiverName(fn.Recv.List[0].Type)
	}
	return u
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}

func (l *lowerer) stmts(list []ast.Stmt) []syntax.Stmt {
	var out []syntax.Stmt
	for _, s := range list {
		out = append(out, l.stmt(s)...)
	}
	return out
}

// stmt lowers one Go statement. It may return several statements: a
// multi-value assignment splits into one Assign per pair, and a call
// with closure arguments (t.Run) is followed by the closure bodies.
func (l *lowerer) stmt(s ast.Stmt) []syntax.Stmt {
	at := l.pos(s.Pos())
	switch n := s.(type) {
	case *ast.AssignStmt:
		if n.Tok != token.DEFINE && n.Tok != token.ASSIGN {
			return []syntax.Stmt{&syntax.BadStmt{At: at, Kind: "op_assign"}}
		}
		return l.assign(at, n.Lhs, n.Rhs)

	case *ast.DeclStmt:
		gen, ok := n.Decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			return []syntax.Stmt{&syntax.BadStmt{At: at, Kind: "decl"}}
		}
		var out []syntax.Stmt
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || len(vs.Values) == 0 {
				continue
			}
			lhs := make([]ast.Expr, len(vs.Names))
			for i, name := range vs.Names {
				lhs[i] = name
			}
			out = append(out, l.assign(l.pos(vs.Pos()), lhs, vs.Values)...)
		}
		return out

	case *ast.ExprStmt:
		out := []syntax.Stmt{&syntax.ExprStmt{At: at, X: l.expr(n.X)}}
		if call, ok := n.X.(*ast.CallExpr); ok {
			for _, arg := range call.Args {
				if lit, ok := arg.(*ast.FuncLit); ok {
					out = append(out, &syntax.Block{
						At:   l.pos(lit.Pos()),
						Kind: "func_lit",
						Body: l.stmts(lit.Body.List),
					})
				}
			}
		}
		return out

	case *ast.IfStmt:
		return []syntax.Stmt{l.ifStmt(n)}

	case *ast.BlockStmt:
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "block", Body: l.stmts(n.List)}}

	case *ast.ForStmt:
		var body []syntax.Stmt
		if n.Init != nil {
			body = append(body, l.stmt(n.Init)...)
		}
		body = append(body, l.stmts(n.Body.List)...)
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "for", Body: body}}

	case *ast.RangeStmt:
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "range", Body: l.stmts(n.Body.List)}}

	case *ast.SwitchStmt:
		var body []syntax.Stmt
		if n.Init != nil {
			body = append(body, l.stmt(n.Init)...)
		}
		body = append(body, l.stmts(n.Body.List)...)
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "switch", Body: body}}

	case *ast.TypeSwitchStmt:
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "type_switch", Body: l.stmts(n.Body.List)}}

	case *ast.SelectStmt:
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "select", Body: l.stmts(n.Body.List)}}

	case *ast.CaseClause:
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "case", Body: l.stmts(n.Body)}}

	case *ast.CommClause:
		return []syntax.Stmt{&syntax.Block{At: at, Kind: "comm", Body: l.stmts(n.Body)}}

	case *ast.LabeledStmt:
		return l.stmt(n.Stmt)
	}
	return []syntax.Stmt{&syntax.BadStmt{At: at, Kind: fmt.Sprintf("%T", s)}}
}

func (l *lowerer) assign(at syntax.Pos, lhs, rhs []ast.Expr) []syntax.Stmt {
	if len(rhs) == 1 {
		a := &syntax.Assign{At: at, Value: l.expr(rhs[0])}
		if len(lhs) == 1 {
			a.Targets = []syntax.Expr{l.expr(lhs[0])}
		} else {
			t := &syntax.Tuple{At: at}
			for _, e := range lhs {
				t.Elts = append(t.Elts, l.expr(e))
			}
			a.Targets = []syntax.Expr{t}
		}
		return []syntax.Stmt{a}
	}
	if len(lhs) != len(rhs) {
		return []syntax.Stmt{&syntax.BadStmt{At: at, Kind: "assign"}}
	}
	out := make([]syntax.Stmt, 0, len(lhs))
	for i := range lhs {
		out = append(out, &syntax.Assign{
			At:      at,
			Targets: []syntax.Expr{l.expr(lhs[i])},
			Value:   l.expr(rhs[i]),
		})
	}
	return out
}

// ifStmt lowers an if statement. When the body fails the test
// (if got != want { t.Errorf }), every equality comparison joined into
// the condition by && or || becomes an Assert placed after the init
// statement.
func (l *lowerer) ifStmt(n *ast.IfStmt) syntax.Stmt {
	b := &syntax.Block{At: l.pos(n.Pos()), Kind: "if"}
	if n.Init != nil {
		b.Body = append(b.Body, l.stmt(n.Init)...)
	}
	if bodyFailsTest(n.Body) {
		for _, cmp := range equalities(n.Cond, nil) {
			b.Body = append(b.Body, &syntax.Assert{At: l.pos(cmp.Pos()), Test: l.expr(cmp)})
		}
	}
	b.Body = append(b.Body, l.stmts(n.Body.List)...)
	if n.Else != nil {
		b.Body = append(b.Body, l.stmt(n.Else)...)
	}
	return b
}

// equalities appends the == and != comparisons of a condition built
// from && and ||, left to right. Other operands are ignored.
func equalities(e ast.Expr, out []*ast.BinaryExpr) []*ast.BinaryExpr {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return equalities(n.X, out)
	case *ast.BinaryExpr:
		switch n.Op {
		case token.EQL, token.NEQ:
			return append(out, n)
		case token.LAND, token.LOR:
			return equalities(n.Y, equalities(n.X, out))
		}
	}
	return out
}

// bodyFailsTest reports whether a block calls t.Error, t.Errorf,
// t.Fatal, t.Fatalf, t.Fail or t.FailNow.
func bodyFailsTest(body *ast.BlockStmt) bool {
	found := false
	ast.Inspect(body, func(n ast.Node) bool {
		if found {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		switch sel.Sel.Name {
		case "Errorf", "Fatalf", "Error", "Fatal", "FailNow", "Fail":
			found = true
		}
		return !found
	})
	return found
}

func (l *lowerer) expr(e ast.Expr) syntax.Expr {
	if e == nil {
		return &syntax.BadExpr{Kind: "missing"}
	}
	at := l.pos(e.Pos())
	switch n := e.(type) {
	case *ast.Ident:
		return &syntax.Name{At: at, ID: n.Name}
	case *ast.SelectorExpr:
		return &syntax.Attribute{At: at, Value: l.expr(n.X), Name: n.Sel.Name}
	case *ast.CallExpr:
		if idx, ok := atIndex(n); ok {
			sel := n.Fun.(*ast.SelectorExpr)
			return &syntax.Subscript{At: at, Value: l.expr(sel.X), Index: l.expr(idx)}
		}
		c := &syntax.Call{At: at, Func: l.expr(n.Fun)}
		for _, a := range n.Args {
			c.Args = append(c.Args, l.expr(a))
		}
		return c
	case *ast.IndexExpr:
		return &syntax.Subscript{At: at, Value: l.expr(n.X), Index: l.expr(n.Index)}
	case *ast.BasicLit:
		return &syntax.Literal{At: at, Kind: litKind(n.Kind), Value: n.Value}
	case *ast.UnaryExpr:
		if lit, ok := n.X.(*ast.BasicLit); ok && lit.Kind == token.INT && n.Op == token.SUB {
			return &syntax.Literal{At: at, Kind: syntax.LitInt, Value: "-" + lit.Value}
		}
	case *ast.ParenExpr:
		return l.expr(n.X)
	case *ast.BinaryExpr:
		switch n.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
			return &syntax.Compare{At: at, Op: n.Op.String(), Left: l.expr(n.X), Right: l.expr(n.Y)}
		}
	}
	return &syntax.BadExpr{At: at, Kind: fmt.Sprintf("%T", e)}
}

// AtMethod is the positional accessor of a query result. A call
// rows.At(<int literal>) is lowered as the subscript rows[<int>].
const AtMethod = "At"

func atIndex(call *ast.CallExpr) (ast.Expr, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != AtMethod || len(call.Args) != 1 {
		return nil, false
	}
	arg := call.Args[0]
	if u, ok := arg.(*ast.UnaryExpr); ok && u.Op == token.SUB {
		arg = u.X
	}
	if lit, ok := arg.(*ast.BasicLit); ok && lit.Kind == token.INT {
		return call.Args[0], true
	}
	return nil, false
}

func litKind(k token.Token) syntax.LitKind {
	switch k {
	case token.INT:
		return syntax.LitInt
	case token.FLOAT:
		return syntax.LitFloat
	case token.STRING:
		return syntax.LitString
	}
	return syntax.LitOther
}
