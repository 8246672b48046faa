package gosource

import (
	"go/ast"
	"go/types"

	"github.com/unbound-force/orderflake/internal/syntax"
)

// RegisterFunc and OrderByFunc are the queryset constructors recognized
// as model declarations:
//
//	var Widget = queryset.Register[WidgetRow]("Widget", queryset.OrderBy(byID))
const (
	RegisterFunc = "Register"
	OrderByFunc  = "OrderBy"
)

// models extracts model declarations from a var block.
func (l *lowerer) models(gen *ast.GenDecl) []syntax.Model {
	var out []syntax.Model
	for _, spec := range gen.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for i, value := range vs.Values {
			if i >= len(vs.Names) {
				break
			}
			call, ok := value.(*ast.CallExpr)
			if !ok || calleeName(call.Fun) != RegisterFunc {
				continue
			}
			out = append(out, syntax.Model{
				Name:     vs.Names[i].Name,
				Ordering: orderingArgs(call),
				File:     l.path,
				Pos:      l.pos(vs.Names[i].Pos()),
			})
		}
	}
	return out
}

func orderingArgs(call *ast.CallExpr) []string {
	var out []string
	for _, arg := range call.Args {
		c, ok := arg.(*ast.CallExpr)
		if ok && calleeName(c.Fun) == OrderByFunc {
			out = append(out, types.ExprString(c))
		}
	}
	return out
}

// calleeName returns the bare name of a called function, looking
// through package qualifiers and generic instantiation.
func calleeName(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	case *ast.IndexExpr:
		return calleeName(f.X)
	case *ast.IndexListExpr:
		return calleeName(f.X)
	}
	return ""
}
