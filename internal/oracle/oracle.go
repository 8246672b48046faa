// Package oracle answers whether a data source declares a
// deterministic result order. The detector consults it to suppress
// findings on sources that are ordered by definition.
package oracle

import (
	"sort"

	"github.com/unbound-force/orderflake/internal/syntax"
)

// Oracle reports whether source has an explicit ordering. An
// implementation that cannot resolve source must return false so that
// unknown sources are still reported.
type Oracle interface {
	HasOrdering(source string) bool
}

// Facts is an Oracle backed by a fixed mapping. A nil Facts is valid
// and knows nothing.
type Facts map[string]bool

// HasOrdering implements Oracle.
func (f Facts) HasOrdering(source string) bool {
	return f[source]
}

// Sources returns the sorted source names known to have an ordering.
func (f Facts) Sources() []string {
	var out []string
	for s, ordered := range f {
		if ordered {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Build assembles Facts from discovered model declarations and
// explicit overrides. Overrides win over discovery, and unordered
// overrides win over ordered ones.
func Build(models []syntax.Model, ordered, unordered []string) Facts {
	f := make(Facts, len(models)+len(ordered))
	for _, m := range models {
		if m.Name == "" {
			continue
		}
		// A model declared twice (e.g. in two apps) counts as ordered
		// only if every declaration is.
		prev, seen := f[m.Name]
		if seen {
			f[m.Name] = prev && m.Ordered()
			continue
		}
		f[m.Name] = m.Ordered()
	}
	for _, s := range ordered {
		f[s] = true
	}
	for _, s := range unordered {
		f[s] = false
	}
	return f
}

// Lookup queries o, treating a nil oracle as "no ordering known".
func Lookup(o Oracle, source string) bool {
	if o == nil {
		return false
	}
	return o.HasOrdering(source)
}
