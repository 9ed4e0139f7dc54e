package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// naTokens are lexemes read as missing values, mirroring the conventions of
// common CSV tooling. Matching is exact after whitespace trimming.
var naTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"NULL": {},
	"null": {},
	"None": {},
}

// ParseCell converts a raw CSV field into a typed cell. Empty strings and NA
// tokens become missing; finite numeric lexemes become numeric; everything
// else stays textual. Non-finite parses (inf, overflow) are kept as text so
// downstream statistics never see them.
func ParseCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if _, ok := naTokens[trimmed]; ok {
		return MissingCell()
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return Cell{Raw: trimmed, Num: v, Numeric: true}
	}
	return StringCell(trimmed)
}

// ReadCSV parses comma-separated data with a mandatory header row into a
// Table. Field counts must be uniform across records; duplicate header names
// are rejected.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: strings.TrimSpace(name)}
	}

	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		for i, field := range record {
			columns[i].Cells = append(columns[i].Cells, ParseCell(field))
		}
		row++
	}

	return NewTable(columns)
}
