// Package spreadsheet reads identifier lists from workbooks and writes result
// tables back out as formatted .xlsx files.
package spreadsheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/width"

	"black-heatmap/internal/table"
)

// ErrNoSheet is returned when a workbook contains no worksheets.
var ErrNoSheet = errors.New("workbook has no sheets")

const (
	// DefaultColumn holds the identifiers in the input workbook.
	DefaultColumn = "A"
	// DefaultHeaderRow is skipped when reading identifiers.
	DefaultHeaderRow = 1
	// DefaultSheet is the sheet name used when SaveTable receives none.
	DefaultSheet = "Sheet1"

	maxColumnWidth = 50
	maxSheetName   = 31
	dateTimeFormat = "yyyy-mm-dd hh:mm:ss"
	timestampStamp = "20060102_150405"
)

// ReadIdentifierList reads column values of the first sheet starting below
// headerRow and stops at the first empty cell. Values are trimmed and blank
// values are dropped.
func ReadIdentifierList(path, column string, headerRow int) ([]string, error) {
	if column == "" {
		column = DefaultColumn
	}
	if headerRow < 0 {
		headerRow = DefaultHeaderRow
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	col, err := excelize.ColumnNameToNumber(column)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", column, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var ids []string
	for r := headerRow; r < len(rows); r++ {
		row := rows[r]
		if col > len(row) || row[col-1] == "" {
			break
		}
		if v := strings.TrimSpace(row[col-1]); v != "" {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// SaveTable writes t to a new workbook at path with a header row. Parent
// directories are created. Column widths follow the widest value, capped at 50.
func SaveTable(t *table.Table, path, sheet string) error {
	if t == nil {
		t = table.New()
	}
	sheet = sheetName(sheet)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(dateTimeFormat)})
	if err != nil {
		return fmt.Errorf("create date style: %w", err)
	}

	widths := make([]int, len(t.Columns))
	for c, name := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header %s: %w", name, err)
		}
		widths[c] = DisplayWidth(name)
	}

	for r, row := range t.Rows {
		for c, v := range row {
			if c >= len(widths) || v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
			if _, ok := v.(time.Time); ok {
				if err := f.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
					return fmt.Errorf("style cell %s: %w", cell, err)
				}
			}
			if w := DisplayWidth(table.Format(v)); w > widths[c] {
				widths[c] = w
			}
		}
	}

	for c, w := range widths {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, float64(min(w+2, maxColumnWidth))); err != nil {
			return fmt.Errorf("set column width %s: %w", name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// TimestampedName returns {dir}/{name}_{YYYYMMDD_HHMMSS}.{ext}.
func TimestampedName(dir, name, ext string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", name, now.Format(timestampStamp), strings.TrimPrefix(ext, ".")))
}

// DisplayWidth counts East Asian wide and fullwidth runes as two columns.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func cellValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64()
	case time.Time, string, bool, int, int64, float64:
		return x
	default:
		return table.Format(v)
	}
}

func sheetName(name string) string {
	if name == "" {
		return DefaultSheet
	}
	if utf8.RuneCountInString(name) > maxSheetName {
		return string([]rune(name)[:maxSheetName])
	}
	return name
}

func strPtr(s string) *string { return &s }
