// Package pysource lowers Python test modules into orderflake's syntax
// tree using tree-sitter. It extracts test functions and methods as
// TestUnits and Django-style model classes (with their Meta.ordering)
// as Models.
package pysource

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/unbound-force/orderflake/internal/syntax"
)

// DefaultTestPrefix is the name prefix of test functions and methods.
const DefaultTestPrefix = "test"

// Option configures a Parser.
type Option func(*Parser)

// WithTestPrefix sets the prefix that marks a function or method as a
// test. Empty prefixes are ignored.
func WithTestPrefix(prefix string) Option {
	return func(p *Parser) {
		if prefix != "" {
			p.testPrefix = prefix
		}
	}
}

// Parser lowers Python source. It holds no tree-sitter state between
// calls and is safe for concurrent use.
type Parser struct {
	testPrefix string
}

// NewParser returns a Parser with the given options applied.
func NewParser(opts ...Option) *Parser {
	p := &Parser{testPrefix: DefaultTestPrefix}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses content and lowers every test function, test method and
// model class it finds. Syntax errors do not fail the parse; they are
// noted in File.Errors and the well-formed parts are still lowered.
func (p *Parser) Parse(ctx context.Context, content []byte, path string) (*syntax.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	// A fresh tree-sitter parser per call keeps Parser goroutine-safe.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	file := &syntax.File{Path: path, Language: syntax.Python}
	root := tree.RootNode()
	if root == nil {
		file.Errors = append(file.Errors, "tree-sitter returned nil root node")
		return file, nil
	}
	if root.HasError() {
		file.Errors = append(file.Errors, "source contains syntax errors")
	}

	l := &lowerer{src: content, path: path}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		p.topLevel(l, root.NamedChild(i), file)
	}
	return file, nil
}

func (p *Parser) topLevel(l *lowerer, n *sitter.Node, file *syntax.File) {
	switch n.Type() {
	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil {
			p.topLevel(l, def, file)
		}
	case "function_definition":
		if u, ok := p.unit(l, n, ""); ok {
			file.Units = append(file.Units, u)
		}
	case "class_definition":
		p.class(l, n, file)
	}
}

// class collects test methods and, for model classes, the declared
// ordering.
func (p *Parser) class(l *lowerer, n *sitter.Node, file *syntax.File) {
	className := l.fieldText(n, "name")
	body := n.ChildByFieldName("body")
	if className == "" || body == nil {
		return
	}

	var (
		ordering []string
		hasMeta  bool
	)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "decorated_definition" {
			child = child.ChildByFieldName("definition")
			if child == nil {
				continue
			}
		}
		switch child.Type() {
		case "function_definition":
			if u, ok := p.unit(l, child, className); ok {
				file.Units = append(file.Units, u)
			}
		case "class_definition":
			if l.fieldText(child, "name") == "Meta" {
				hasMeta = true
				ordering = l.metaOrdering(child)
			}
		}
	}

	if hasMeta || l.extendsModel(n) {
		file.Models = append(file.Models, syntax.Model{
			Name:     className,
			Ordering: ordering,
			File:     l.path,
			Pos:      l.pos(n),
		})
	}
}

func (p *Parser) unit(l *lowerer, fn *sitter.Node, className string) (syntax.TestUnit, bool) {
	name := l.fieldText(fn, "name")
	if !strings.HasPrefix(name, p.testPrefix) {
		return syntax.TestUnit{}, false
	}
	u := syntax.TestUnit{
		Name:  name,
		Class: className,
		File:  l.path,
		Pos:   l.pos(fn),
	}
	if body := fn.ChildByFieldName("body"); body != nil {
		u.Body = l.block(body)
	}
	return u, true
}

// extendsModel reports whether a class lists a base whose name ends in
// "Model" (models.Model, TimeStampedModel).
func (l *lowerer) extendsModel(class *sitter.Node) bool {
	bases := class.ChildByFieldName("superclasses")
	if bases == nil {
		return false
	}
	for i := 0; i < int(bases.NamedChildCount()); i++ {
		b := bases.NamedChild(i)
		if b.Type() != "identifier" && b.Type() != "attribute" {
			continue
		}
		if strings.HasSuffix(b.Content(l.src), "Model") {
			return true
		}
	}
	return false
}

// metaOrdering reads `ordering = [...]` from a Meta class body.
func (l *lowerer) metaOrdering(meta *sitter.Node) []string {
	body := meta.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment" || l.fieldText(assign, "left") != "ordering" {
			continue
		}
		right := assign.ChildByFieldName("right")
		if right == nil {
			return nil
		}
		return l.stringList(right)
	}
	return nil
}

func (l *lowerer) stringList(n *sitter.Node) []string {
	switch n.Type() {
	case "comment":
		return nil
	case "string":
		if s := unquote(n.Content(l.src)); s != "" {
			return []string{s}
		}
		return nil
	case "list", "tuple", "parenthesized_expression":
		var out []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, l.stringList(n.NamedChild(i))...)
		}
		return out
	}
	// Expressions such as F("created").desc() still declare an order.
	if text := strings.TrimSpace(n.Content(l.src)); text != "" {
		return []string{text}
	}
	return nil
}

// unquote strips Python string prefixes and quotes.
func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
