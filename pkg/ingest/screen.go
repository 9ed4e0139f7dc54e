// Package ingest screens uploaded CSV files before they are stored:
// extension and size limits, structural sanity checks, and cell-level
// content scanning for formula and script injection.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/veracity-data/veracity-engine/pkg/config"
)

// unsafeFilenameChars matches everything outside letters, digits,
// underscore, whitespace, dot, and dash.
var unsafeFilenameChars = regexp.MustCompile(`[^\w\s.-]`)

// StructureResult reports whether a file parses as a plausible CSV.
type StructureResult struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	Columns int    `json:"columns,omitempty"`
	Rows    int    `json:"rows,omitempty"`
}

// Report is the full screening outcome for one file, returned verbatim by
// the standalone security-check endpoint.
type Report struct {
	Filename     string          `json:"filename"`
	SizeMB       float64         `json:"size_mb"`
	SizeOK       bool            `json:"size_ok"`
	ExtensionOK  bool            `json:"extension_ok"`
	Structure    StructureResult `json:"structure"`
	SecurityScan ScanResult      `json:"security_scan"`
	FileHash     string          `json:"file_hash"`
}

// RejectionDetail is the structured explanation returned when an upload
// fails screening. FoundIssues is populated only for content findings.
type RejectionDetail struct {
	Error       string   `json:"error"`
	Reason      string   `json:"reason"`
	Explanation string   `json:"explanation"`
	FoundIssues []string `json:"found_issues,omitempty"`
	HowToFix    string   `json:"how_to_fix"`
}

// ScreeningError carries the rejection detail for an upload that failed
// screening. Handlers unwrap it to build the 400 response body.
type ScreeningError struct {
	Step   string // extension, size, structure, content
	Detail RejectionDetail
	// Findings backs the content step's Detail.FoundIssues with the raw
	// scanner output so rejections can be audit-logged with positions.
	Findings []Finding
}

func (e *ScreeningError) Error() string {
	return fmt.Sprintf("%s: %s", e.Detail.Error, e.Detail.Reason)
}

// Screener runs upload screening with configured limits.
type Screener struct {
	maxSizeBytes int64
	maxRows      int
	maxColumns   int
}

// NewScreener creates a Screener from the upload configuration.
func NewScreener(cfg *config.UploadConfig) *Screener {
	return &Screener{
		maxSizeBytes: cfg.MaxSizeBytes,
		maxRows:      cfg.MaxRows,
		maxColumns:   cfg.MaxColumns,
	}
}

// ValidateExtension reports whether the filename has a .csv extension,
// case-insensitively.
func ValidateExtension(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".csv"
}

// ValidateSize reports whether the content size is within the limit.
func (s *Screener) ValidateSize(size int64) bool {
	return size <= s.maxSizeBytes
}

// ValidateStructure checks that the content looks like a usable CSV:
// a header plus at least one data row, within the column and row limits.
// Counting uses raw lines and commas, not full CSV parsing; the parser
// gets its say later, this is a cheap gate.
func (s *Screener) ValidateStructure(content []byte) StructureResult {
	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) < 2 {
		return StructureResult{Valid: false, Reason: "CSV must have at least a header and one data row"}
	}

	columns := len(strings.Split(lines[0], ","))
	if columns < 1 {
		return StructureResult{Valid: false, Reason: "CSV must have at least one column"}
	}
	if columns > s.maxColumns {
		return StructureResult{Valid: false, Reason: fmt.Sprintf("Too many columns (max %d)", s.maxColumns)}
	}

	rows := len(lines) - 1
	if rows > s.maxRows {
		return StructureResult{Valid: false, Reason: fmt.Sprintf("Too many rows (max %s)", groupDigits(s.maxRows))}
	}

	return StructureResult{Valid: true, Columns: columns, Rows: rows}
}

// Screen runs every check and returns the combined report. Nothing is
// rejected here; callers inspect the report.
func (s *Screener) Screen(filename string, content []byte) *Report {
	return &Report{
		Filename:     SanitizeFilename(filename),
		SizeMB:       math.Round(float64(len(content))/1024/1024*1000) / 1000,
		SizeOK:       s.ValidateSize(int64(len(content))),
		ExtensionOK:  ValidateExtension(filename),
		Structure:    s.ValidateStructure(content),
		SecurityScan: s.ScanContent(content),
		FileHash:     ComputeFileHash(content),
	}
}

// CheckUpload runs the screening pipeline in order and returns a
// *ScreeningError describing the first failing step, or nil when the
// file is accepted.
func (s *Screener) CheckUpload(filename string, content []byte) error {
	if !ValidateExtension(filename) {
		return &ScreeningError{
			Step: "extension",
			Detail: RejectionDetail{
				Error:       "Invalid file type",
				Reason:      fmt.Sprintf("File '%s' is not a CSV file", filename),
				Explanation: "Only .csv files are supported",
				HowToFix:    "Save your file as CSV format and try again",
			},
		}
	}

	if !s.ValidateSize(int64(len(content))) {
		maxMB := s.maxSizeBytes / (1024 * 1024)
		return &ScreeningError{
			Step: "size",
			Detail: RejectionDetail{
				Error:       "File too large",
				Reason:      fmt.Sprintf("File size exceeds %dMB limit", maxMB),
				Explanation: fmt.Sprintf("Maximum allowed file size is %dMB", maxMB),
				HowToFix:    "Split your file into smaller parts and upload separately",
			},
		}
	}

	if structure := s.ValidateStructure(content); !structure.Valid {
		return &ScreeningError{
			Step: "structure",
			Detail: RejectionDetail{
				Error:       "Invalid CSV structure",
				Reason:      structure.Reason,
				Explanation: "The file does not appear to be a valid CSV",
				HowToFix: "Make sure your file: " +
					"1) Has a header row, " +
					"2) Has at least one data row, " +
					"3) Uses comma as separator, " +
					"4) Is saved in UTF-8 encoding",
			},
		}
	}

	if scan := s.ScanContent(content); !scan.Safe {
		details := make([]string, 0, len(scan.Findings))
		for _, f := range scan.Findings {
			details = append(details, fmt.Sprintf(
				"Row %d, column %d: '%s' looks like a dangerous formula or script",
				f.Line, f.Cell, f.Value))
		}
		return &ScreeningError{
			Step: "content",
			Detail: RejectionDetail{
				Error:  "Security check failed",
				Reason: "Your CSV file contains potentially dangerous content",
				Explanation: "CSV files can contain formula injections (e.g. =SUM(), +cmd) " +
					"or scripts (<script>, javascript:) that could be harmful. " +
					"Please remove these values and try again.",
				FoundIssues: details,
				HowToFix: "Remove or replace values starting with =FORMULA(), " +
					"+cmd|, @FORMULA(), <script>, or javascript:",
			},
			Findings: scan.Findings,
		}
	}

	return nil
}

// SanitizeFilename strips path components and unsafe characters from an
// uploaded filename. The stem is capped at 100 characters, the extension
// is preserved.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	filename = strings.ReplaceAll(filename, "..", "")

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	if len(stem) > 100 {
		stem = stem[:100]
	}
	return stem + ext
}

// ComputeFileHash returns the sha256 hex digest of the content, used for
// dedup checks and audit records.
func ComputeFileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// groupDigits formats n with comma thousand separators for user-facing
// limit messages.
func groupDigits(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
