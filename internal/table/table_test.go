package table

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOuterJoin_KeysFromBothSides(t *testing.T) {
	identity := New("mid", "name")
	require.NoError(t, identity.AppendRow("1", "kim"))
	require.NoError(t, identity.AppendRow("2", "lee"))

	base := New("mid", "join_datetime")
	require.NoError(t, base.AppendRow("2", "2024-01-01"))
	require.NoError(t, base.AppendRow("3", "2024-02-01"))

	got := OuterJoin(identity, base, "mid", [2]string{"_oracle", "_redshift"})

	require.Equal(t, []string{"mid", "name", "join_datetime"}, got.Columns)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []string{"1", "2", "3"}, got.Strings("mid"))

	assert.Equal(t, "kim", got.Value(0, "name"))
	assert.Nil(t, got.Value(0, "join_datetime"))

	assert.Equal(t, "lee", got.Value(1, "name"))
	assert.Equal(t, "2024-01-01", got.Value(1, "join_datetime"))

	assert.Nil(t, got.Value(2, "name"))
	assert.Equal(t, "2024-02-01", got.Value(2, "join_datetime"))
}

func TestOuterJoin_SharedColumnsGetSuffixes(t *testing.T) {
	left := New("mid", "email")
	require.NoError(t, left.AppendRow("A1A", "a@x"))
	right := New("mid", "email")
	require.NoError(t, right.AppendRow("A1A", "b@x"))

	got := OuterJoin(left, right, "mid", [2]string{"_oracle", "_redshift"})
	assert.Equal(t, []string{"mid", "email_oracle", "email_redshift"}, got.Columns)
	assert.Equal(t, []any{"A1A", "a@x", "b@x"}, got.Rows[0])
}

func TestOuterJoin_MissingKeyFallsBackToConcat(t *testing.T) {
	left := New("a")
	require.NoError(t, left.AppendRow(1))
	right := New("b")
	require.NoError(t, right.AppendRow(2))

	got := OuterJoin(left, right, "mid", [2]string{"_l", "_r"})
	assert.Equal(t, []string{"a", "b"}, got.Columns)
	assert.Equal(t, 2, got.Len())
}

func TestDedupBy_FirstWins(t *testing.T) {
	tbl := New("CID", "MID")
	require.NoError(t, tbl.AppendRow("c1", "A1A"))
	require.NoError(t, tbl.AppendRow("c2", "A2A"))
	require.NoError(t, tbl.AppendRow("c1", "A3A"))

	got := tbl.DedupBy("CID")
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []string{"A1A", "A2A"}, got.Strings("MID"))

	// unknown columns leave the table intact
	assert.Equal(t, 3, tbl.DedupBy("nope").Len())
}

func TestSelect_SkipsAbsentColumns(t *testing.T) {
	tbl := New("b", "a", "c")
	require.NoError(t, tbl.AppendRow(2, 1, 3))

	got := tbl.Select("a", "missing", "b")
	assert.Equal(t, []string{"a", "b"}, got.Columns)
	assert.Equal(t, []any{1, 2}, got.Rows[0])
}

func TestMoveToFront(t *testing.T) {
	tbl := New("x", "mid", "y")
	require.NoError(t, tbl.AppendRow(1, "m", 2))

	got := tbl.MoveToFront("mid")
	assert.Equal(t, []string{"mid", "x", "y"}, got.Columns)
	assert.Equal(t, []any{"m", 1, 2}, got.Rows[0])
	assert.Equal(t, []string{"x", "mid", "y"}, tbl.Columns, "source table untouched")
}

func TestConcat_UnionOfColumns(t *testing.T) {
	a := New("CID", "MID")
	require.NoError(t, a.AppendRow("c1", "A1A"))
	b := New("CID", "이름")
	require.NoError(t, b.AppendRow("c2", "홍길동"))

	got := Concat(a, nil, b)
	assert.Equal(t, []string{"CID", "MID", "이름"}, got.Columns)
	assert.Equal(t, []any{"c1", "A1A", nil}, got.Rows[0])
	assert.Equal(t, []any{"c2", nil, "홍길동"}, got.Rows[1])
}

func TestRename(t *testing.T) {
	tbl := New("user_id", "x")
	got := tbl.Rename(map[string]string{"user_id": "mid", "absent": "zzz"})
	assert.Equal(t, []string{"mid", "x"}, got.Columns)
	assert.Equal(t, []string{"user_id", "x"}, tbl.Columns)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "2024-03-01", Format(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-01 04:00:00", Format(time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC)))
	assert.Equal(t, "12.5", Format(decimal.RequireFromString("12.50")))
	assert.Equal(t, "0.1", Format(0.1))
	assert.Equal(t, "42", Format(int64(42)))
}

func TestNilTable(t *testing.T) {
	var tbl *Table
	assert.True(t, tbl.Empty())
	assert.Equal(t, -1, tbl.Index("x"))
	assert.Equal(t, 0, tbl.Clone().Len())
}
