package syntax

import "strings"

// Walk calls fn for every statement in stmts in source order,
// descending into Block bodies before moving on to the next sibling.
// Nil statements are skipped.
func Walk(stmts []Stmt, fn func(Stmt)) {
	for _, s := range stmts {
		if s == nil {
			continue
		}
		fn(s)
		if b, ok := s.(*Block); ok {
			Walk(b.Body, fn)
		}
	}
}

// DottedName returns the canonical name of an identifier or a chain of
// attribute accesses on an identifier ("x", "self.x", "a.b.c"). It
// returns "" for any other shape.
func DottedName(e Expr) string {
	switch n := e.(type) {
	case *Name:
		return n.ID
	case *Attribute:
		base := DottedName(n.Value)
		if base == "" || n.Name == "" {
			return ""
		}
		return base + "." + n.Name
	}
	return ""
}

// LastSegment returns the final component of a dotted name.
func LastSegment(dotted string) string {
	if i := strings.LastIndexByte(dotted, '.'); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}
