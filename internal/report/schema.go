package report

// Schema is the JSON Schema (Draft 2020-12) for the orderflake scan
// JSON output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/orderflake/scan-report.schema.json",
  "title": "Orderflake Scan Report",
  "description": "Output schema for orderflake scan --format=json",
  "type": "object",
  "required": ["findings", "skipped", "summary", "metadata"],
  "properties": {
    "findings": {
      "type": "array",
      "items": { "$ref": "#/$defs/Finding" }
    },
    "skipped": {
      "type": "array",
      "items": { "$ref": "#/$defs/SkippedFile" }
    },
    "summary": { "$ref": "#/$defs/Summary" },
    "metadata": { "$ref": "#/$defs/Metadata" }
  },
  "$defs": {
    "Finding": {
      "type": "object",
      "required": ["id", "test", "file", "line", "language", "evidence"],
      "properties": {
        "id": {
          "type": "string",
          "pattern": "^of-[0-9a-f]{8}$",
          "description": "Stable identifier (of-XXXXXXXX)"
        },
        "test": {
          "type": "string",
          "description": "Test function or method name"
        },
        "class": {
          "type": "string",
          "description": "Enclosing class or receiver type"
        },
        "file": {
          "type": "string",
          "description": "Path relative to the scan root"
        },
        "line": { "type": "integer", "minimum": 1 },
        "language": {
          "type": "string",
          "enum": ["python", "go"]
        },
        "evidence": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/Evidence" }
        }
      }
    },
    "Evidence": {
      "type": "object",
      "required": ["variable", "source", "declared_line", "indices"],
      "properties": {
        "variable": { "type": "string" },
        "source": {
          "type": "string",
          "description": "Model the variable was fetched from"
        },
        "declared_line": { "type": "integer" },
        "indices": {
          "type": "array",
          "minItems": 2,
          "items": { "type": "integer" },
          "description": "Distinct positions asserted on"
        }
      }
    },
    "SkippedFile": {
      "type": "object",
      "required": ["path", "reason", "detail"],
      "properties": {
        "path": { "type": "string" },
        "reason": {
          "type": "string",
          "enum": [
            "too_large", "invalid_content", "unsupported_language",
            "unreadable", "parse_error", "internal_error"
          ]
        },
        "detail": { "type": "string" }
      }
    },
    "Summary": {
      "type": "object",
      "required": ["files_scanned", "tests_scanned", "flaky", "skipped", "ordered_sources"],
      "properties": {
        "files_scanned": { "type": "integer", "minimum": 0 },
        "tests_scanned": { "type": "integer", "minimum": 0 },
        "flaky": { "type": "integer", "minimum": 0 },
        "skipped": { "type": "integer", "minimum": 0 },
        "ordered_sources": {
          "type": "array",
          "items": { "type": "string" }
        }
      }
    },
    "Metadata": {
      "type": "object",
      "required": ["version", "go_version", "run_id", "root", "duration_ms"],
      "properties": {
        "version": { "type": "string" },
        "go_version": { "type": "string" },
        "run_id": { "type": "string" },
        "root": { "type": "string" },
        "duration_ms": {
          "type": "integer",
          "description": "Scan duration in milliseconds"
        },
        "timestamp": {
          "type": "string",
          "description": "Scan start time (RFC 3339, UTC)"
        }
      }
    }
  }
}`
