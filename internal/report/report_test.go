package report

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/unbound-force/orderflake/internal/taxonomy"
)

func sampleReport() *taxonomy.Report {
	return &taxonomy.Report{
		Findings: []taxonomy.Finding{
			{
				ID:       taxonomy.GenerateID("tests/test_flaky.py", "WidgetTests", "test_flaky"),
				Test:     "test_flaky",
				Class:    "WidgetTests",
				File:     "tests/test_flaky.py",
				Line:     7,
				Language: taxonomy.Python,
				Evidence: []taxonomy.Evidence{
					{Variable: "widgets", Source: "Widget", DeclaredLine: 10, Indices: []int{0, 1, 2, 3}},
				},
			},
			{
				ID:       taxonomy.GenerateID("widgets/widgets_test.go", "", "TestWidgets"),
				Test:     "TestWidgets",
				File:     "widgets/widgets_test.go",
				Line:     5,
				Language: taxonomy.Go,
				Evidence: []taxonomy.Evidence{
					{Variable: "rows", Source: "Widget", DeclaredLine: 6, Indices: []int{-1, 0}},
				},
			},
		},
		Skipped: []taxonomy.SkippedFile{
			{Path: "tests/test_binary.py", Reason: taxonomy.SkipInvalid, Detail: "not valid UTF-8"},
		},
		Summary: taxonomy.Summary{
			FilesScanned:   2,
			TestsScanned:   9,
			Flaky:          2,
			Skipped:        1,
			OrderedSources: []string{"Article"},
		},
		Metadata: taxonomy.Metadata{
			Version:   "0.1.0",
			GoVersion: "go1.24.2",
			RunID:     "2f1d9c62-8f0a-4b8e-9f7e-3b2c7c1b8a10",
			Root:      "/src/project",
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Duration:  42 * time.Millisecond,
		},
	}
}

func compileSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
	if err != nil {
		t.Fatalf("failed to parse schema JSON: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", sch); err != nil {
		t.Fatalf("failed to add schema resource: %v", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		t.Fatalf("failed to compile schema: %v", err)
	}
	return compiled
}

func TestWriteText_OneLinePerFinding(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport(), TextOptions{}); err != nil {
		t.Fatal(err)
	}
	want := "Found flaky test: test_flaky (tests/test_flaky.py)\n" +
		"Found flaky test: TestWidgets (widgets/widgets_test.go)\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteText_EmptyReportPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, &taxonomy.Report{}, TextOptions{}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	if err := WriteText(&buf, nil, TextOptions{Verbose: true}); err != nil || buf.Len() != 0 {
		t.Errorf("nil report: err=%v output=%q", err, buf.String())
	}
}

func TestWriteText_Verbose(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport(), TextOptions{Verbose: true}); err != nil {
		t.Fatal(err)
	}
	out := stripANSI(buf.String())
	for _, want := range []string{
		"Found flaky test: test_flaky (tests/test_flaky.py)",
		"VARIABLE", "POSITIONS",
		"widgets", "0, 1, 2, 3",
		"-1, 0",
		"skipped tests/test_binary.py: invalid_content",
		"9 test(s) in 2 file(s) scanned, 2 flaky, 1 skipped",
		"ordered sources: Article",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("verbose output missing %q:\n%s", want, out)
		}
	}
}

// stripANSI removes ANSI escape sequences from text for width measurement.
var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestWriteText_VerboseFitsIn80Columns(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport(), TextOptions{Verbose: true}); err != nil {
		t.Fatal(err)
	}

	const maxWidth = 80
	for i, line := range strings.Split(buf.String(), "\n") {
		plain := stripANSI(line)
		if width := utf8.RuneCountInString(plain); width > maxWidth {
			t.Errorf("line %d exceeds %d columns (%d runes): %q", i+1, maxWidth, width, plain)
		}
	}
}

func TestWriteJSON_ValidAgainstSchema(t *testing.T) {
	compiled := compileSchema(t)

	tests := []struct {
		name string
		rpt  *taxonomy.Report
	}{
		{"sample", sampleReport()},
		{"empty", &taxonomy.Report{}},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteJSON(&buf, tt.rpt); err != nil {
				t.Fatalf("WriteJSON failed: %v", err)
			}
			inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("failed to parse JSON output: %v", err)
			}
			if err := compiled.Validate(inst); err != nil {
				t.Errorf("JSON output does not conform to schema:\n%v", err)
			}
		})
	}
}

func TestWriteJSON_Fields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}

	var got struct {
		Findings []map[string]any `json:"findings"`
		Metadata map[string]any   `json:"metadata"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Findings) != 2 {
		t.Fatalf("findings = %d", len(got.Findings))
	}
	if _, ok := got.Findings[1]["class"]; ok {
		t.Error("class should be omitted for module-level tests")
	}
	if got.Metadata["duration_ms"] != float64(42) {
		t.Errorf("duration_ms = %v", got.Metadata["duration_ms"])
	}
}

func TestWriteJSON_DoesNotMutateReport(t *testing.T) {
	rpt := &taxonomy.Report{Findings: []taxonomy.Finding{{Test: "test_x"}}}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, rpt); err != nil {
		t.Fatal(err)
	}
	if rpt.Findings[0].Evidence != nil || rpt.Skipped != nil {
		t.Errorf("report was mutated: %+v", rpt)
	}
}
