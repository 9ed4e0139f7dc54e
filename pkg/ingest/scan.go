package ingest

import (
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// Finding kinds reported by the content scanner.
const (
	FindingFormula = "formula" // spreadsheet formula injection (=SUM(, +cmd|, @SUM()
	FindingScript  = "script"  // javascript: / <script payloads
	FindingXSS     = "xss"     // flagged by libinjection XSS detection
	FindingSQLi    = "sqli"    // flagged by libinjection SQLi detection
)

// maxScanLines bounds how much of the file the scanner reads. Injection
// payloads aimed at spreadsheet imports sit at the top of the file; a
// bounded scan keeps screening O(1) in file size.
const maxScanLines = 100

// maxReportedFindings caps the findings list in a scan result. The total
// count still reflects everything found.
const maxReportedFindings = 10

// Cell patterns that reject a file outright: spreadsheet formulas that
// execute on import, command pipes, and script payloads.
var dangerousCellPatterns = []struct {
	pattern *regexp.Regexp
	kind    string
}{
	{regexp.MustCompile(`^=\w+\(`), FindingFormula},
	{regexp.MustCompile(`^\+cmd\|`), FindingFormula},
	{regexp.MustCompile(`^@\w+\(`), FindingFormula},
	{regexp.MustCompile(`(?i)^javascript:`), FindingScript},
	{regexp.MustCompile(`(?i)^<script`), FindingScript},
}

// Finding is one flagged cell. Line is 1-based with the header as line 1,
// Cell is 1-based, Value is truncated to 50 characters.
type Finding struct {
	Line        int    `json:"line"`
	Cell        int    `json:"cell"`
	Value       string `json:"value"`
	Kind        string `json:"kind"`
	Fingerprint string `json:"fingerprint,omitempty"` // libinjection SQLi fingerprint
}

// ScanResult is the outcome of scanning a file's cells.
type ScanResult struct {
	Safe     bool      `json:"safe"`
	Findings []Finding `json:"issues"`
	Message  string    `json:"message"`
}

// ScanContent scans the first lines of a CSV for dangerous cell content.
// The header line is skipped; cells are naively comma-split. Pattern
// matching runs on the quote-stripped cell so CSV quoting cannot hide a
// payload; libinjection sees the cell with its quotes intact, since for
// SQL injection the quote is part of the payload.
func (s *Screener) ScanContent(content []byte) ScanResult {
	lines := strings.Split(string(content), "\n")
	if len(lines) > maxScanLines {
		lines = lines[:maxScanLines]
	}

	var findings []Finding
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		lineNum := i + 1
		for cellNum, cell := range strings.Split(line, ",") {
			raw := strings.TrimSpace(cell)
			unquoted := strings.Trim(strings.Trim(raw, `"`), `'`)
			if unquoted == "" {
				continue
			}

			if finding, ok := checkCell(unquoted, raw); ok {
				finding.Line = lineNum
				finding.Cell = cellNum + 1
				findings = append(findings, finding)
			}
		}
	}

	result := ScanResult{
		Safe:     len(findings) == 0,
		Findings: findings,
		Message:  "File is safe",
	}
	if len(findings) > 0 {
		result.Message = fmt.Sprintf("Found %d suspicious patterns", len(findings))
		if len(findings) > maxReportedFindings {
			result.Findings = findings[:maxReportedFindings]
		}
	}
	return result
}

// checkCell tests a single cell value against the pattern list and
// libinjection. Returns a partially filled Finding (value, kind,
// fingerprint) and whether the cell was flagged.
func checkCell(unquoted, raw string) (Finding, bool) {
	for _, p := range dangerousCellPatterns {
		if p.pattern.MatchString(unquoted) {
			return Finding{Value: truncateValue(unquoted), Kind: p.kind}, true
		}
	}

	if libinjection.IsXSS(raw) {
		return Finding{Value: truncateValue(unquoted), Kind: FindingXSS}, true
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(raw); isSQLi {
		return Finding{
			Value:       truncateValue(unquoted),
			Kind:        FindingSQLi,
			Fingerprint: string(fingerprint),
		}, true
	}

	return Finding{}, false
}

func truncateValue(value string) string {
	if len(value) > 50 {
		return value[:50]
	}
	return value
}
