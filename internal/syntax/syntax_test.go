package syntax

import (
	"reflect"
	"testing"
)

func TestWalk_SourceOrderIncludingNested(t *testing.T) {
	body := []Stmt{
		&ExprStmt{At: Pos{Line: 1}},
		&Block{At: Pos{Line: 2}, Kind: "if", Body: []Stmt{
			&ExprStmt{At: Pos{Line: 3}},
			&Block{At: Pos{Line: 4}, Kind: "for", Body: []Stmt{
				&Assign{At: Pos{Line: 5}},
			}},
		}},
		nil,
		&BadStmt{At: Pos{Line: 6}, Kind: "raise_statement"},
	}

	var lines []int
	Walk(body, func(s Stmt) {
		lines = append(lines, s.Position().Line)
	})

	want := []int{1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Walk visited lines %v, want %v", lines, want)
	}
}

func TestDottedName(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"identifier", &Name{ID: "models"}, "models"},
		{"attribute", &Attribute{Value: &Name{ID: "self"}, Name: "models"}, "self.models"},
		{
			"nested attribute",
			&Attribute{Value: &Attribute{Value: &Name{ID: "a"}, Name: "b"}, Name: "c"},
			"a.b.c",
		},
		{"call base", &Attribute{Value: &Call{Func: &Name{ID: "f"}}, Name: "x"}, ""},
		{"literal", &Literal{Kind: LitInt, Value: "1"}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DottedName(tt.expr); got != tt.want {
				t.Errorf("DottedName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastSegment(t *testing.T) {
	if got := LastSegment("app.models.Widget"); got != "Widget" {
		t.Errorf("LastSegment = %q, want %q", got, "Widget")
	}
	if got := LastSegment("Widget"); got != "Widget" {
		t.Errorf("LastSegment = %q, want %q", got, "Widget")
	}
}

func TestTestUnit_QualifiedName(t *testing.T) {
	u := TestUnit{Name: "test_flaky", Class: "ModelTests"}
	if got := u.QualifiedName(); got != "ModelTests.test_flaky" {
		t.Errorf("QualifiedName() = %q", got)
	}
	u.Class = ""
	if got := u.QualifiedName(); got != "test_flaky" {
		t.Errorf("QualifiedName() = %q", got)
	}
}

func TestPos_String(t *testing.T) {
	if got := (Pos{File: "a.py", Line: 3, Col: 5}).String(); got != "a.py:3:5" {
		t.Errorf("String() = %q", got)
	}
	if got := (Pos{Line: 3, Col: 5}).String(); got != "3:5" {
		t.Errorf("String() = %q", got)
	}
}
