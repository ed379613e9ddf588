package table

// OuterJoin performs a full outer join of left and right on key.
//
// Rows are emitted in left order (each left row followed by its matches in
// right order), then unmatched right rows in right order. Non-key columns
// present on both sides get suffixes[0] / suffixes[1] appended. The key cell
// is taken from whichever side has it. If key is missing on either side the
// tables are concatenated instead.
func OuterJoin(left, right *Table, key string, suffixes [2]string) *Table {
	if left == nil {
		left = New()
	}
	if right == nil {
		right = New()
	}
	li, ri := left.Index(key), right.Index(key)
	if li < 0 || ri < 0 {
		return Concat(left, right)
	}

	shared := make(map[string]bool)
	for _, c := range left.Columns {
		if c != key && right.Has(c) {
			shared[c] = true
		}
	}

	cols := []string{}
	for _, c := range left.Columns {
		if shared[c] {
			c += suffixes[0]
		}
		cols = append(cols, c)
	}
	var rightCols []int
	for i, c := range right.Columns {
		if i == ri {
			continue
		}
		rightCols = append(rightCols, i)
		if shared[c] {
			c += suffixes[1]
		}
		cols = append(cols, c)
	}

	byKey := make(map[string][]int)
	for i, row := range right.Rows {
		k := Key(row[ri])
		byKey[k] = append(byKey[k], i)
	}

	out := New(cols...)
	matched := make([]bool, len(right.Rows))
	build := func(l, r []any) []any {
		row := make([]any, 0, len(cols))
		if l != nil {
			row = append(row, l...)
		} else {
			row = append(row, make([]any, len(left.Columns))...)
			row[li] = r[ri]
		}
		for _, i := range rightCols {
			if r != nil {
				row = append(row, r[i])
			} else {
				row = append(row, nil)
			}
		}
		return row
	}

	for _, l := range left.Rows {
		hits := byKey[Key(l[li])]
		if len(hits) == 0 {
			out.Rows = append(out.Rows, build(l, nil))
			continue
		}
		for _, i := range hits {
			matched[i] = true
			out.Rows = append(out.Rows, build(l, right.Rows[i]))
		}
	}
	for i, r := range right.Rows {
		if !matched[i] {
			out.Rows = append(out.Rows, build(nil, r))
		}
	}
	return out
}
