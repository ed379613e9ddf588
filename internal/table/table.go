// Package table provides the rectangular result type passed between connectors,
// processors, spreadsheet export and charts.
package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Table is a rectangular result with named columns.
// Every row has exactly len(Columns) cells; a nil cell is a missing value.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// FromColumn builds a single-column table from string values.
func FromColumn(name string, values []string) *Table {
	t := New(name)
	for _, v := range values {
		t.Rows = append(t.Rows, []any{v})
	}
	return t
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether the table has a column named col.
func (t *Table) Has(col string) bool {
	return t.Index(col) >= 0
}

// AppendRow adds a row. The row length must match the column count.
func (t *Table) AppendRow(row ...any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Value returns the cell at row i in column col, or nil when the column is absent.
func (t *Table) Value(i int, col string) any {
	idx := t.Index(col)
	if idx < 0 || i < 0 || i >= t.Len() {
		return nil
	}
	return t.Rows[i][idx]
}

// Strings returns column col rendered as strings. Missing cells become "".
func (t *Table) Strings(col string) []string {
	idx := t.Index(col)
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, Format(row[idx]))
	}
	return out
}

// Clone returns a deep copy of the column list and row slices.
func (t *Table) Clone() *Table {
	if t == nil {
		return New()
	}
	out := New(t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// Rename returns a copy with columns renamed according to mapping.
// Names absent from the table are ignored.
func (t *Table) Rename(mapping map[string]string) *Table {
	out := t.Clone()
	for i, c := range out.Columns {
		if to, ok := mapping[c]; ok {
			out.Columns[i] = to
		}
	}
	return out
}

// Select projects the table onto cols in the given order, skipping
// columns that do not exist.
func (t *Table) Select(cols ...string) *Table {
	var idx []int
	var names []string
	for _, c := range cols {
		if i := t.Index(c); i >= 0 {
			idx = append(idx, i)
			names = append(names, c)
		}
	}
	out := New(names...)
	if t == nil {
		return out
	}
	out.Rows = make([][]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		r := make([]any, len(idx))
		for j, i := range idx {
			r[j] = row[i]
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// MoveToFront returns a copy with col as the first column.
// The table is returned unchanged (copied) when col is absent.
func (t *Table) MoveToFront(col string) *Table {
	if !t.Has(col) {
		return t.Clone()
	}
	order := []string{col}
	for _, c := range t.Columns {
		if c != col {
			order = append(order, c)
		}
	}
	return t.Select(order...)
}

// DedupBy removes rows whose values in cols repeat an earlier row.
// The first occurrence wins. Columns that do not exist are ignored; if none
// of cols exist the table is returned as is.
func (t *Table) DedupBy(cols ...string) *Table {
	var idx []int
	for _, c := range cols {
		if i := t.Index(c); i >= 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return t.Clone()
	}

	out := New(t.Columns...)
	seen := make(map[string]struct{}, t.Len())
	for _, row := range t.Rows {
		parts := make([]string, len(idx))
		for j, i := range idx {
			parts[j] = Key(row[i])
		}
		k := strings.Join(parts, "\x00")
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, append([]any(nil), row...))
	}
	return out
}

// Concat stacks tables vertically. The result has the union of all columns in
// first-seen order; cells for columns a table lacks are nil.
func Concat(tables ...*Table) *Table {
	var cols []string
	pos := make(map[string]int)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(cols)
				cols = append(cols, c)
			}
		}
	}

	out := New(cols...)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, row := range t.Rows {
			r := make([]any, len(cols))
			for i, c := range t.Columns {
				r[pos[c]] = row[i]
			}
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Key normalizes a cell into a comparable string used for joins and dedup.
// Strings are trimmed; nil maps to a fixed marker so missing values group together.
func Key(v any) string {
	if v == nil {
		return "\x01nil"
	}
	return strings.TrimSpace(Format(v))
}

// Format renders a cell value for display and export.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case *time.Time:
		if x == nil {
			return ""
		}
		return Format(*x)
	case decimal.Decimal:
		return x.String()
	case float64:
		return decimal.NewFromFloat(x).String()
	case float32:
		return decimal.NewFromFloat32(x).String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
