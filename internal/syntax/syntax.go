// Package syntax defines the language-neutral tree that orderflake's
// front-ends lower test sources into. The variant set is closed: every
// statement and expression is one of the types declared here, and
// shapes a front-end does not understand become BadStmt or BadExpr
// rather than disappearing.
package syntax

import "fmt"

// Pos is a source position. Line and Col are 1-based; a zero Pos means
// the position is unknown.
type Pos struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// String formats the position as "file:line:col".
func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Node is implemented by every statement and expression variant.
type Node interface {
	Position() Pos
	node()
}

// Stmt is a statement variant: *Assign, *ExprStmt, *Assert, *Block or
// *BadStmt.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression variant: *Call, *Attribute, *Subscript, *Name,
// *Literal, *Tuple, *Compare or *BadExpr.
type Expr interface {
	Node
	expr()
}

// Assign binds Value to every target. Chained assignments
// (a = b = value) produce a single Assign with two targets; tuple
// targets appear as a *Tuple.
type Assign struct {
	At      Pos
	Targets []Expr
	Value   Expr
}

// ExprStmt is an expression evaluated for its effect, typically a call.
type ExprStmt struct {
	At Pos
	X  Expr
}

// Assert is a bare assertion on a boolean test: Python's assert
// statement, or a Go if-statement that fails the test when its
// condition holds.
type Assert struct {
	At   Pos
	Test Expr
}

// Block groups the statements of a compound statement (if, for, with,
// try, switch, closure bodies). Kind names the construct it came from.
type Block struct {
	At   Pos
	Kind string
	Body []Stmt
}

// BadStmt is a statement shape the front-end did not lower.
type BadStmt struct {
	At   Pos
	Kind string
}

// Call is a function or method call.
type Call struct {
	At   Pos
	Func Expr
	Args []Expr
}

// Attribute is a member access: Value.Name.
type Attribute struct {
	At    Pos
	Value Expr
	Name  string
}

// Subscript is an index access: Value[Index].
type Subscript struct {
	At    Pos
	Value Expr
	Index Expr
}

// Name is a bare identifier.
type Name struct {
	At Pos
	ID string
}

// LitKind classifies a Literal.
type LitKind int

// Literal kinds.
const (
	LitOther LitKind = iota
	LitInt
	LitString
	LitFloat
)

// Literal is a constant. Value holds the source text, with a leading
// "-" for negated numeric literals.
type Literal struct {
	At    Pos
	Kind  LitKind
	Value string
}

// Tuple is a comma-separated expression list, used for multi-target
// assignment.
type Tuple struct {
	At   Pos
	Elts []Expr
}

// Compare is a binary comparison such as a == b or a != b.
type Compare struct {
	At    Pos
	Op    string
	Left  Expr
	Right Expr
}

// BadExpr is an expression shape the front-end did not lower.
type BadExpr struct {
	At   Pos
	Kind string
}

func (n *Assign) Position() Pos    { return n.At }
func (n *ExprStmt) Position() Pos  { return n.At }
func (n *Assert) Position() Pos    { return n.At }
func (n *Block) Position() Pos     { return n.At }
func (n *BadStmt) Position() Pos   { return n.At }
func (n *Call) Position() Pos      { return n.At }
func (n *Attribute) Position() Pos { return n.At }
func (n *Subscript) Position() Pos { return n.At }
func (n *Name) Position() Pos      { return n.At }
func (n *Literal) Position() Pos   { return n.At }
func (n *Tuple) Position() Pos     { return n.At }
func (n *Compare) Position() Pos   { return n.At }
func (n *BadExpr) Position() Pos   { return n.At }

func (*Assign) node()    {}
func (*ExprStmt) node()  {}
func (*Assert) node()    {}
func (*Block) node()     {}
func (*BadStmt) node()   {}
func (*Call) node()      {}
func (*Attribute) node() {}
func (*Subscript) node() {}
func (*Name) node()      {}
func (*Literal) node()   {}
func (*Tuple) node()     {}
func (*Compare) node()   {}
func (*BadExpr) node()   {}

func (*Assign) stmt()   {}
func (*ExprStmt) stmt() {}
func (*Assert) stmt()   {}
func (*Block) stmt()    {}
func (*BadStmt) stmt()  {}

func (*Call) expr()      {}
func (*Attribute) expr() {}
func (*Subscript) expr() {}
func (*Name) expr()      {}
func (*Literal) expr()   {}
func (*Tuple) expr()     {}
func (*Compare) expr()   {}
func (*BadExpr) expr()   {}

// Language identifies the front-end that produced a File.
type Language string

// Supported languages.
const (
	Python Language = "python"
	Go     Language = "go"
)

// TestUnit is one test function or method.
type TestUnit struct {
	// Name is the test function or method name.
	Name string

	// Class is the enclosing class (Python) or receiver type (Go
	// suite methods). Empty for free functions.
	Class string

	// File is the path of the source file, as given to the front-end.
	File string

	// Pos is the position of the declaration.
	Pos Pos

	// Body is the top-level statement sequence of the test.
	Body []Stmt
}

// QualifiedName returns "Class.Name", or Name when Class is empty.
func (u TestUnit) QualifiedName() string {
	if u.Class == "" {
		return u.Name
	}
	return u.Class + "." + u.Name
}

// Model is a data-source declaration discovered in source, used to
// populate the ordering oracle.
type Model struct {
	// Name is the identifier the source is referred to by in fetch
	// chains (the Python class name or the Go variable name).
	Name string

	// Ordering lists the declared ordering keys. Empty means the
	// model declares no deterministic order.
	Ordering []string

	File string
	Pos  Pos
}

// Ordered reports whether the model declares an ordering.
func (m Model) Ordered() bool {
	return len(m.Ordering) > 0
}

// File is the lowered form of one source file.
type File struct {
	Path     string
	Language Language
	Units    []TestUnit
	Models   []Model

	// Errors collects non-fatal problems, such as regions tree-sitter
	// could not parse. The file is still analyzed.
	Errors []string
}
