package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/orderflake/internal/taxonomy"
)

// FindingPrefix starts every finding line of the text report.
const FindingPrefix = "Found flaky test: "

// TextOptions controls optional sections of the text report.
type TextOptions struct {
	// Verbose adds an evidence table under each finding, the skipped
	// files and a summary line.
	Verbose bool
}

// FindingLine formats the one-line form of a finding.
func FindingLine(f taxonomy.Finding) string {
	return fmt.Sprintf("%s%s (%s)", FindingPrefix, f.Test, f.File)
}

// WriteText writes one line per finding. A report without findings
// produces no output unless opts.Verbose is set. Finding lines are never
// styled so they stay stable for grep and CI logs.
func WriteText(w io.Writer, rpt *taxonomy.Report, opts TextOptions) error {
	if rpt == nil {
		return nil
	}
	s := DefaultStyles()

	for _, f := range rpt.Findings {
		if _, err := fmt.Fprintln(w, FindingLine(f)); err != nil {
			return err
		}
		if opts.Verbose && len(f.Evidence) > 0 {
			fmt.Fprintln(w, indent(EvidenceTable(f, s), "    "))
		}
	}
	if !opts.Verbose {
		return nil
	}

	for _, sk := range rpt.Skipped {
		fmt.Fprintln(w, s.Muted.Render(fmt.Sprintf("skipped %s: %s", sk.Path, sk.Reason)))
	}

	sum := rpt.Summary
	fmt.Fprintf(w, "\n%s %s %s\n",
		s.Header.Render(fmt.Sprintf("%d test(s) in %d file(s) scanned,", sum.TestsScanned, sum.FilesScanned)),
		s.CountStyle(sum.Flaky).Render(fmt.Sprintf("%d flaky,", sum.Flaky)),
		s.Header.Render(fmt.Sprintf("%d skipped", sum.Skipped)))
	if len(sum.OrderedSources) > 0 {
		fmt.Fprintln(w, s.Muted.Render("ordered sources: "+strings.Join(sum.OrderedSources, ", ")))
	}
	return nil
}

// EvidenceTable renders the variables behind a finding as a table.
func EvidenceTable(f taxonomy.Finding, s Styles) string {
	rows := make([][]string, 0, len(f.Evidence))
	for _, ev := range f.Evidence {
		rows = append(rows, []string{
			ev.Variable,
			ev.Source,
			strconv.Itoa(ev.DeclaredLine),
			formatIndices(ev.Indices),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 3 {
				return s.Positions
			}
			return s.TableCell
		}).
		Headers("VARIABLE", "SOURCE", "LINE", "POSITIONS").
		Rows(rows...)
	return t.String()
}

func formatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, n := range indices {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func indent(block, prefix string) string {
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
