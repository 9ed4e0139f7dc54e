// Package tabular provides the in-memory representation of delimited tabular
// data that the profiling, drift, and validation engines operate on. A Table is
// immutable once built; every cell carries its original lexeme alongside the
// parsed numeric value so that statistics and row-level evidence can be derived
// from the same structure.
package tabular

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnKind is the inferred type of a column, determined once when the table
// is built and never re-inferred by consumers.
type ColumnKind string

const (
	// KindNumeric means every non-missing cell in the column parses as a number.
	KindNumeric ColumnKind = "numeric"
	// KindCategorical means at least one non-missing cell is non-numeric text.
	KindCategorical ColumnKind = "categorical"
	// KindUnknown means the column has no non-missing cells to infer from.
	KindUnknown ColumnKind = "unknown"
)

// missingKey is the comparison token for missing cells. Missing cells compare
// equal to each other for duplicate and uniqueness purposes.
const missingKey = "\x00"

// Cell is a single typed value. Missing cells have Missing set and zero values
// elsewhere. Numeric cells keep both the parsed value and the raw lexeme.
type Cell struct {
	Raw     string
	Num     float64
	Numeric bool
	Missing bool
}

// MissingCell returns a cell representing an absent value.
func MissingCell() Cell {
	return Cell{Missing: true}
}

// NumberCell returns a numeric cell. The raw lexeme is the canonical
// formatting of the value.
func NumberCell(v float64) Cell {
	return Cell{Raw: strconv.FormatFloat(v, 'g', -1, 64), Num: v, Numeric: true}
}

// StringCell returns a textual cell.
func StringCell(s string) Cell {
	return Cell{Raw: s}
}

// String returns the display form of the cell: the raw lexeme, or the empty
// string for missing cells.
func (c Cell) String() string {
	if c.Missing {
		return ""
	}
	return c.Raw
}

// Key returns a canonical comparison token. Numeric cells with equal values
// produce equal keys regardless of lexeme ("1.0" and "1" collide); missing
// cells share a sentinel key distinct from any real value.
func (c Cell) Key() string {
	switch {
	case c.Missing:
		return missingKey
	case c.Numeric:
		return "n:" + strconv.FormatFloat(c.Num, 'g', -1, 64)
	default:
		return "s:" + c.Raw
	}
}

// Column is an ordered sequence of cells under a name. Kind is fixed at table
// construction.
type Column struct {
	Name  string
	Kind  ColumnKind
	Cells []Cell
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Missing {
			n++
		}
	}
	return n
}

// DuplicateCells counts cells repeating an earlier cell's value in this
// column; missing cells compare equal to each other.
func (c *Column) DuplicateCells() int {
	seen := make(map[string]bool, len(c.Cells))
	dups := 0
	for _, cell := range c.Cells {
		key := cell.Key()
		if seen[key] {
			dups++
		} else {
			seen[key] = true
		}
	}
	return dups
}

// Values returns the non-missing numeric values in row order. Only meaningful
// for numeric columns; non-numeric cells are skipped.
func (c *Column) Values() []float64 {
	vals := make([]float64, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !cell.Missing && cell.Numeric {
			vals = append(vals, cell.Num)
		}
	}
	return vals
}

// inferKind classifies a column from its cells.
func inferKind(cells []Cell) ColumnKind {
	sawValue := false
	for _, cell := range cells {
		if cell.Missing {
			continue
		}
		sawValue = true
		if !cell.Numeric {
			return KindCategorical
		}
	}
	if !sawValue {
		return KindUnknown
	}
	return KindNumeric
}

// Table is an immutable, column-ordered tabular dataset with a uniform row
// count across columns.
type Table struct {
	columns []Column
	byName  map[string]int
	rows    int
}

// NewTable builds a table from columns, inferring each column's kind. It
// rejects duplicate column names and ragged column lengths.
func NewTable(columns []Column) (*Table, error) {
	t := &Table{
		columns: columns,
		byName:  make(map[string]int, len(columns)),
	}
	for i := range columns {
		col := &t.columns[i]
		if _, dup := t.byName[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		t.byName[col.Name] = i
		if i == 0 {
			t.rows = len(col.Cells)
		} else if len(col.Cells) != t.rows {
			return nil, fmt.Errorf("column %q has %d cells, expected %d", col.Name, len(col.Cells), t.rows)
		}
		col.Kind = inferKind(col.Cells)
	}
	return t, nil
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return t.rows
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i := range t.columns {
		names[i] = t.columns[i].Name
	}
	return names
}

// Columns returns the columns in declaration order. Callers must not mutate
// the returned slice.
func (t *Table) Columns() []Column {
	return t.columns
}

// Column returns the named column, or false if it does not exist.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.columns[i], true
}

// RowKey returns a canonical token for the full row, used for exact-duplicate
// detection. Rows with pairwise-equal cell keys collide.
func (t *Table) RowKey(row int) string {
	var b strings.Builder
	for i := range t.columns {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(t.columns[i].Cells[row].Key())
	}
	return b.String()
}

// DuplicateRows returns the number of rows that are exact duplicates of an
// earlier row. Every repeat beyond the first occurrence counts.
func (t *Table) DuplicateRows() int {
	if t.rows == 0 {
		return 0
	}
	seen := make(map[string]struct{}, t.rows)
	dups := 0
	for i := 0; i < t.rows; i++ {
		key := t.RowKey(i)
		if _, ok := seen[key]; ok {
			dups++
		} else {
			seen[key] = struct{}{}
		}
	}
	return dups
}
