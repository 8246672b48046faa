package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unbound-force/orderflake/internal/report"
	"github.com/unbound-force/orderflake/internal/taxonomy"
)

// ---------------------------------------------------------------------------
// runScan tests
// ---------------------------------------------------------------------------

func TestRunScan_InvalidFormat(t *testing.T) {
	err := runScan(scanParams{
		path:   "testdata/cli",
		format: "yaml",
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), `invalid format "yaml"`) {
		t.Errorf("unexpected error message: %s", err)
	}
}

// TestRunScan_TwoFlakyTests runs the scan over a directory holding
// test_flaky.py with two detectable flaky methods and helpers.py.
func TestRunScan_TwoFlakyTests(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := runScan(scanParams{
		path:   "testdata/cli",
		format: "text",
		stdout: &stdout,
		stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Found flaky test: test_flaky (test_flaky.py)\n" +
		"Found flaky test: test_also_flaky (test_flaky.py)\n"
	if got := stdout.String(); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
	if strings.Contains(stdout.String(), "helpers.py") {
		t.Error("helpers.py must not be reported")
	}
}

func TestRunScan_NoFindingsNoOutput(t *testing.T) {
	dir := t.TempDir()
	src := "def test_ok():\n    rows = Model.objects.order_by('id')\n    assert rows[0].v == 1\n    assert rows[1].v == 2\n"
	if err := os.WriteFile(filepath.Join(dir, "test_ok.py"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runScan(scanParams{path: dir, format: "text", fail: false, stdout: &stdout, stderr: &stderr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no output, got %q", stdout.String())
	}
}

func TestRunScan_JSONFormat(t *testing.T) {
	var stdout bytes.Buffer
	err := runScan(scanParams{
		path:   "testdata/cli",
		format: "json",
		stdout: &stdout,
		stderr: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rpt taxonomy.Report
	if err := json.Unmarshal(stdout.Bytes(), &rpt); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
	}
	if len(rpt.Findings) != 2 {
		t.Errorf("findings = %d, want 2", len(rpt.Findings))
	}
	if rpt.Summary.TestsScanned != 3 {
		t.Errorf("tests scanned = %d, want 3", rpt.Summary.TestsScanned)
	}
}

func TestRunScan_Fail(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := runScan(scanParams{
		path:   "testdata/cli",
		format: "text",
		fail:   true,
		stdout: &stdout,
		stderr: &stderr,
	})
	if !errors.Is(err, errFlakyFound) {
		t.Fatalf("error = %v, want errFlakyFound", err)
	}
	if !strings.Contains(stderr.String(), "Flaky tests: 2 (FAIL)") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if strings.Count(stdout.String(), report.FindingPrefix) != 2 {
		t.Errorf("findings should still be printed, got:\n%s", stdout.String())
	}
}

func TestRunScan_ConfigOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "orderflake.yaml")
	if err := os.WriteFile(cfgPath, []byte("ordering:\n  ordered: [Model]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	err := runScan(scanParams{
		path:       "testdata/cli",
		format:     "text",
		configPath: cfgPath,
		stdout:     &stdout,
		stderr:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("Model is configured as ordered, got:\n%s", stdout.String())
	}
}

func TestRunScan_Errors(t *testing.T) {
	badCfg := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(badCfg, []byte("scan:\n  workers: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		p    scanParams
		want string
	}{
		{"missing path", scanParams{path: "testdata/absent", format: "text"}, "scan path"},
		{"invalid config", scanParams{path: "testdata/cli", format: "text", configPath: badCfg}, "scan.workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.p.stdout, tt.p.stderr = &bytes.Buffer{}, &bytes.Buffer{}
			err := runScan(tt.p)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCheckFail(t *testing.T) {
	tests := []struct {
		fail    bool
		flaky   int
		wantErr bool
	}{
		{false, 3, false},
		{true, 0, false},
		{true, 1, true},
	}
	for _, tt := range tests {
		err := checkFail(tt.fail, tt.flaky)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkFail(%v, %d) = %v", tt.fail, tt.flaky, err)
		}
	}
}

func TestPrintCISummary(t *testing.T) {
	var buf bytes.Buffer
	printCISummary(&buf, 0)
	if buf.String() != "Flaky tests: 0 (PASS)\n" {
		t.Errorf("summary = %q", buf.String())
	}
}

// ---------------------------------------------------------------------------
// init and schema tests
// ---------------------------------------------------------------------------

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer
	if err := runInit(initParams{dir: dir, stdout: &stdout}); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".orderflake.yaml")); err != nil {
		t.Errorf("config not written: %v", err)
	}
	if !strings.Contains(stdout.String(), "created: .orderflake.yaml") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestSchemaCmd_OutputsValidJSON(t *testing.T) {
	cmd := newSchemaCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("schema command failed: %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(buf.Bytes(), &schema); err != nil {
		t.Fatalf("schema output is not valid JSON: %v", err)
	}
	if schema["title"] != "Orderflake Scan Report" {
		t.Errorf("title = %v", schema["title"])
	}
}

func TestScanCmd_RequiresPath(t *testing.T) {
	cmd := newScanCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error without a path argument")
	}
}
