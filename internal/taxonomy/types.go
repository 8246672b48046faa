// Package taxonomy defines the data structures of an orderflake scan
// report and stable ID generation for findings.
package taxonomy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Language names the front-end that produced a finding.
type Language string

// Language constants.
const (
	Python Language = "python"
	Go     Language = "go"
)

// SkipReason classifies why a file was not analyzed.
type SkipReason string

// Skip reason constants.
const (
	SkipTooLarge    SkipReason = "too_large"
	SkipInvalid     SkipReason = "invalid_content"
	SkipUnsupported SkipReason = "unsupported_language"
	SkipUnreadable  SkipReason = "unreadable"
	SkipParseError  SkipReason = "parse_error"
	SkipPanic       SkipReason = "internal_error"
)

// Evidence is one tracked variable that drove a verdict.
type Evidence struct {
	// Variable is the canonical name ("rows", "self.rows").
	Variable string `json:"variable"`

	// Source is the model the variable was fetched from.
	Source string `json:"source"`

	// DeclaredLine is the line of the fetch assignment.
	DeclaredLine int `json:"declared_line"`

	// Indices are the distinct positions asserted on, sorted.
	Indices []int `json:"indices"`
}

// Finding is one test flagged as order-dependent.
type Finding struct {
	// ID is a stable identifier for diffing across runs.
	ID string `json:"id"`

	// Test is the test function or method name.
	Test string `json:"test"`

	// Class is the enclosing class or receiver type, if any.
	Class string `json:"class,omitempty"`

	// File is the path relative to the scan root, with forward
	// slashes.
	File string `json:"file"`

	// Line is the line of the test declaration.
	Line int `json:"line"`

	// Language is the front-end that lowered the file.
	Language Language `json:"language"`

	// Evidence lists the variables asserted on at two or more
	// distinct positions.
	Evidence []Evidence `json:"evidence"`
}

// QualifiedName returns Class.Test, or Test when there is no class.
func (f Finding) QualifiedName() string {
	if f.Class != "" {
		return f.Class + "." + f.Test
	}
	return f.Test
}

// SkippedFile is a file the scan could not analyze.
type SkippedFile struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail"`
}

// Summary aggregates counts over a scan.
type Summary struct {
	FilesScanned int `json:"files_scanned"`
	TestsScanned int `json:"tests_scanned"`
	Flaky        int `json:"flaky"`
	Skipped      int `json:"skipped"`

	// OrderedSources are the models treated as ordered, sorted.
	OrderedSources []string `json:"ordered_sources"`
}

// Metadata holds scan run metadata.
type Metadata struct {
	Version   string        `json:"version"`
	GoVersion string        `json:"go_version"`
	RunID     string        `json:"run_id"`
	Root      string        `json:"root"`
	Timestamp time.Time     `json:"-"`
	Duration  time.Duration `json:"-"`
}

// MarshalJSON customizes JSON encoding to use duration_ms and
// ISO 8601 timestamp.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type Alias Metadata
	ts := ""
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(&struct {
		Alias
		DurationMS int64  `json:"duration_ms"`
		Timestamp  string `json:"timestamp,omitempty"`
	}{
		Alias:      Alias(m),
		DurationMS: m.Duration.Milliseconds(),
		Timestamp:  ts,
	})
}

// Report is the complete output of a scan. Findings are sorted by file,
// then line, then name.
type Report struct {
	Findings []Finding     `json:"findings"`
	Skipped  []SkippedFile `json:"skipped"`
	Summary  Summary       `json:"summary"`
	Metadata Metadata      `json:"metadata"`
}

// GenerateID produces a stable, deterministic ID for a finding. The ID
// is a sha256 hash truncated to 8 hex characters, prefixed with "of-".
// It does not depend on the line, so moving a test keeps its ID.
func GenerateID(file, class, test string) string {
	input := fmt.Sprintf("%s:%s:%s", file, class, test)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("of-%x", hash[:4])
}
