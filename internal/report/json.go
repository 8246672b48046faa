// Package report provides output formatters for orderflake scan
// reports in JSON and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/unbound-force/orderflake/internal/taxonomy"
)

// WriteJSON writes the report as indented JSON. Nil slices are written
// as empty arrays so consumers never see null.
func WriteJSON(w io.Writer, rpt *taxonomy.Report) error {
	out := taxonomy.Report{}
	if rpt != nil {
		out = *rpt
	}
	findings := make([]taxonomy.Finding, len(out.Findings))
	copy(findings, out.Findings)
	for i := range findings {
		if findings[i].Evidence == nil {
			findings[i].Evidence = []taxonomy.Evidence{}
		}
	}
	out.Findings = findings
	if out.Skipped == nil {
		out.Skipped = []taxonomy.SkippedFile{}
	}
	if out.Summary.OrderedSources == nil {
		out.Summary.OrderedSources = []string{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
