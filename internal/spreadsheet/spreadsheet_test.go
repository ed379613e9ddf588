package spreadsheet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"black-heatmap/internal/table"
)

// writeWorkbook creates a single-sheet workbook with the given column A values.
func writeWorkbook(t *testing.T, values ...any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	path := filepath.Join(t.TempDir(), "black.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadIdentifierList(t *testing.T) {
	path := writeWorkbook(t, "MID", " A123A ", "A456A", "   ", "A789A", nil, "A999A")

	ids, err := ReadIdentifierList(path, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A123A", "A456A", "A789A"}, ids)
}

func TestReadIdentifierList_OtherColumnAndHeader(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "title"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "header"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", "A1A"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "ignored"))
	path := filepath.Join(t.TempDir(), "ids.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ids, err := ReadIdentifierList(path, "B", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1A"}, ids)
}

func TestReadIdentifierList_HeaderOnly(t *testing.T) {
	path := writeWorkbook(t, "MID")

	ids, err := ReadIdentifierList(path, "", 1)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReadIdentifierList_MissingFile(t *testing.T) {
	_, err := ReadIdentifierList(filepath.Join(t.TempDir(), "nope.xlsx"), "A", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveTable_RoundTrip(t *testing.T) {
	src := table.New("mid", "이름", "total_amount_krw", "join_datetime", "note")
	require.NoError(t, src.AppendRow("A1A", "홍길동", decimal.RequireFromString("1500.5"),
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), nil))
	require.NoError(t, src.AppendRow("A2A", "Kim", int64(7), nil, "x"))

	path := filepath.Join(t.TempDir(), "nested", "out.xlsx")
	require.NoError(t, SaveTable(src, path, "blacklist"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"blacklist"}, f.GetSheetList())
	rows, err := f.GetRows("blacklist")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"mid", "이름", "total_amount_krw", "join_datetime", "note"}, rows[0])
	assert.Equal(t, "A1A", rows[1][0])
	assert.Equal(t, "홍길동", rows[1][1])
	assert.Equal(t, "1500.5", rows[1][2])
	assert.Contains(t, rows[1][3], "2024")
	assert.Equal(t, "7", rows[2][2])
	assert.Equal(t, "x", rows[2][4])

	// "join_datetime" (13) vs "2024-01-02 03:04:05" (19) -> 21
	w, err := f.GetColWidth("blacklist", "D")
	require.NoError(t, err)
	assert.Equal(t, 21.0, w)

	// "홍길동" is six display columns, header "이름" four -> 8
	w, err = f.GetColWidth("blacklist", "B")
	require.NoError(t, err)
	assert.Equal(t, 8.0, w)
}

func TestSaveTable_WidthCapped(t *testing.T) {
	src := table.New("memo")
	require.NoError(t, src.AppendRow(strings.Repeat("x", 120)))

	path := filepath.Join(t.TempDir(), "wide.xlsx")
	require.NoError(t, SaveTable(src, path, ""))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	w, err := f.GetColWidth(DefaultSheet, "A")
	require.NoError(t, err)
	assert.Equal(t, 50.0, w)
}

func TestTimestampedName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, filepath.Join("output", "blacklist_20240309_140507.xlsx"),
		TimestampedName("output", "blacklist", "xlsx", now))
	assert.Equal(t, filepath.Join("charts", "heatmap_20240309_140507.html"),
		TimestampedName("charts", "heatmap", ".html", now))
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 3, DisplayWidth("abc"))
	assert.Equal(t, 4, DisplayWidth("이름"))
	assert.Equal(t, 0, DisplayWidth(""))
}
