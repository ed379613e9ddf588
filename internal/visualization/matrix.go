package visualization

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"black-heatmap/internal/table"
)

// Matrix is a dense identifier x bucket grid of amounts.
type Matrix struct {
	Rows   []string
	Cols   []string
	Values [][]decimal.Decimal
}

// Empty reports whether the matrix has no cells.
func (m Matrix) Empty() bool {
	return len(m.Rows) == 0 || len(m.Cols) == 0
}

// RowTotal sums row i.
func (m Matrix) RowTotal(i int) decimal.Decimal {
	total := decimal.Zero
	for _, v := range m.Values[i] {
		total = total.Add(v)
	}
	return total
}

// Max returns the largest cell, or zero for an empty matrix.
func (m Matrix) Max() decimal.Decimal {
	top := decimal.Zero
	for _, row := range m.Values {
		for _, v := range row {
			if v.GreaterThan(top) {
				top = v
			}
		}
	}
	return top
}

// Pivot spreads valCol over rowCol x colCol. Rows keep first-seen order,
// columns are sorted ascending, missing cells are zero and duplicate cells
// are summed. Non-numeric values count as zero.
func Pivot(t *table.Table, rowCol, colCol, valCol string) Matrix {
	ri, ci, vi := t.Index(rowCol), t.Index(colCol), t.Index(valCol)
	if ri < 0 || ci < 0 || vi < 0 || t.Empty() {
		return Matrix{}
	}

	rowPos := map[string]int{}
	colSet := map[string]struct{}{}
	var rows []string
	for _, r := range t.Rows {
		k := Label(r[ri])
		if _, ok := rowPos[k]; !ok {
			rowPos[k] = len(rows)
			rows = append(rows, k)
		}
		colSet[Label(r[ci])] = struct{}{}
	}

	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	colPos := make(map[string]int, len(cols))
	for i, c := range cols {
		colPos[c] = i
	}

	values := make([][]decimal.Decimal, len(rows))
	for i := range values {
		values[i] = make([]decimal.Decimal, len(cols))
	}
	for _, r := range t.Rows {
		v, _ := toDecimal(r[vi])
		i, j := rowPos[Label(r[ri])], colPos[Label(r[ci])]
		values[i][j] = values[i][j].Add(v)
	}

	return Matrix{Rows: rows, Cols: cols, Values: values}
}

// TopN keeps the n rows with the highest totals. Ties are broken by original
// order and retained rows stay in their original relative order.
func TopN(m Matrix, n int) Matrix {
	if n <= 0 || len(m.Rows) <= n {
		return m
	}

	totals := make([]decimal.Decimal, len(m.Rows))
	order := make([]int, len(m.Rows))
	for i := range m.Rows {
		totals[i] = m.RowTotal(i)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return totals[order[a]].GreaterThan(totals[order[b]])
	})
	keep := order[:n]
	sort.Ints(keep)

	out := Matrix{Cols: m.Cols}
	for _, i := range keep {
		out.Rows = append(out.Rows, m.Rows[i])
		out.Values = append(out.Values, m.Values[i])
	}
	return out
}

// Label renders a bucket key. Timestamps use minute precision so that
// lexical order matches chronological order.
func Label(v any) string {
	if ts, ok := v.(time.Time); ok {
		if ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 {
			return ts.Format("2006-01-02")
		}
		return ts.Format("2006-01-02 15:04")
	}
	return table.Format(v)
}

// bucket accumulates sums for one group key.
type bucket struct {
	Label string
	Sums  []decimal.Decimal
	IDs   map[string]struct{}
}

// groupBy sums valCols per distinct keyCol in first-seen order and tracks
// distinct values of idCol when present.
func groupBy(t *table.Table, keyCol, idCol string, valCols ...string) []*bucket {
	ki := t.Index(keyCol)
	if ki < 0 {
		return nil
	}
	ii := t.Index(idCol)
	vis := make([]int, len(valCols))
	for i, c := range valCols {
		vis[i] = t.Index(c)
	}

	pos := map[string]*bucket{}
	var out []*bucket
	for _, r := range t.Rows {
		k := Label(r[ki])
		b, ok := pos[k]
		if !ok {
			b = &bucket{Label: k, Sums: make([]decimal.Decimal, len(valCols)), IDs: map[string]struct{}{}}
			pos[k] = b
			out = append(out, b)
		}
		for i, vi := range vis {
			if vi < 0 {
				continue
			}
			v, _ := toDecimal(r[vi])
			b.Sums[i] = b.Sums[i].Add(v)
		}
		if ii >= 0 && r[ii] != nil {
			b.IDs[table.Format(r[ii])] = struct{}{}
		}
	}
	return out
}

func sortByLabel(bs []*bucket) {
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].Label < bs[j].Label })
}

// sortBySum orders buckets by Sums[i] descending, stable on ties.
func sortBySum(bs []*bucket, i int) {
	sort.SliceStable(bs, func(a, b int) bool { return bs[a].Sums[i].GreaterThan(bs[b].Sums[i]) })
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case int64:
		return decimal.NewFromInt(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}
