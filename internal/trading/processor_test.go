package trading

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"black-heatmap/internal/querystore"
	"black-heatmap/internal/storage/memory"
	"black-heatmap/internal/table"
)

func joinDates(query string) (*table.Table, error) {
	t := table.New("user_id", "join_datetime")
	for _, id := range memory.InList(query) {
		if id == "A3A" {
			continue
		}
		ts := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
		_ = t.AppendRow(id, ts)
		_ = t.AppendRow(id, ts) // duplicated source row
	}
	return t, nil
}

func accessInfo(query string) (*table.Table, error) {
	t := table.New("user_id", "access_count")
	for _, id := range memory.InList(query) {
		if id == "A1A" {
			continue
		}
		_ = t.AppendRow(id, int64(len(id)))
	}
	return t, nil
}

func aggregate(slot string) memory.Handler {
	return func(query string) (*table.Table, error) {
		t := table.New("user_id", slot, "total_amount_krw")
		for _, id := range memory.InList(query) {
			_ = t.AppendRow(id, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(1000))
		}
		return t, nil
	}
}

func newConn() *memory.Connector {
	return memory.NewConnector("redshift").
		On("name: user_join_date", joinDates).
		On("name: user_access_info", accessInfo).
		On("name: orderbook_1h_summary", aggregate("time_slot")).
		On("name: orderbook_4h_summary", aggregate("time_slot")).
		On("name: orderbook_daily_detail", aggregate("trade_date"))
}

func newTestProcessor(conn *memory.Connector, kind string) *Processor {
	return NewProcessor(querystore.New(querystore.Embedded(), zerolog.Nop()), conn, kind, zerolog.Nop(), nil)
}

func TestFetchJoinDate_Dedup(t *testing.T) {
	p := newTestProcessor(newConn(), "")

	got := p.FetchJoinDate(context.Background(), []string{"A1A", "A2A"})
	assert.Equal(t, []string{"A1A", "A2A"}, got.Strings("user_id"))
}

func TestFetchAccessInfo_Checkpoint(t *testing.T) {
	conn := newConn()
	p := newTestProcessor(conn, querystore.KindRedshift)

	got := p.FetchAccessInfo(context.Background(), []string{"A1A", "A22A"}, "2024-01-01")
	assert.Equal(t, []string{"A22A"}, got.Strings("user_id"))

	q := conn.Queries()[0]
	assert.Contains(t, q, "'2024-01-01'")
	assert.Contains(t, q, "IN ('A1A','A22A')")
	assert.NotContains(t, q, ":checkpoint_datetime")
}

func TestFetchBaseInfo_Merge(t *testing.T) {
	p := newTestProcessor(newConn(), "")

	got := p.FetchBaseInfo(context.Background(), []string{"A1A", "A2A", "A3A"}, "2024-01-01")
	assert.Equal(t, []string{"user_id", "join_datetime", "access_count"}, got.Columns)
	assert.Equal(t, []string{"A1A", "A2A", "A3A"}, got.Strings("user_id"))
	assert.Nil(t, got.Value(0, "access_count"))
	assert.Nil(t, got.Value(2, "join_datetime"))
}

func TestFetchBaseInfo_Fallbacks(t *testing.T) {
	ctx := context.Background()
	ids := []string{"A1A", "A2A"}

	onlyJoin := memory.NewConnector("redshift").On("name: user_join_date", joinDates)
	got := newTestProcessor(onlyJoin, "").FetchBaseInfo(ctx, ids, "")
	assert.Equal(t, []string{"user_id", "join_datetime"}, got.Columns)

	onlyAccess := memory.NewConnector("redshift").On("name: user_access_info", accessInfo)
	got = newTestProcessor(onlyAccess, "").FetchBaseInfo(ctx, ids, "")
	assert.Equal(t, []string{"user_id", "access_count"}, got.Columns)
	assert.Equal(t, []string{"A2A"}, got.Strings("user_id"))

	down := memory.NewConnector("redshift").FailConnect(errors.New("timeout"))
	got = newTestProcessor(down, "").FetchBaseInfo(ctx, ids, "")
	assert.Equal(t, []string{"user_id"}, got.Columns)
	assert.Equal(t, ids, got.Strings("user_id"))
}

func TestFetchAggregate(t *testing.T) {
	conn := newConn()
	p := newTestProcessor(conn, "")
	ctx := context.Background()

	got := p.FetchAggregate(ctx, []string{"A1A"}, "2024-01-01 00:00:00", "2024-01-02 00:00:00", FourHourly)
	assert.Equal(t, 1, got.Len())
	q := conn.Queries()[0]
	assert.Contains(t, q, "BETWEEN '2024-01-01 00:00:00' AND '2024-01-02 00:00:00'")

	assert.True(t, p.FetchAggregate(ctx, []string{"A1A"}, "a", "b", Granularity("15m")).Empty())
}

func TestFetchAggregate_QueryFailure(t *testing.T) {
	conn := memory.NewConnector("redshift").On("orderbook", func(string) (*table.Table, error) {
		return nil, errors.New("relation does not exist")
	})
	p := newTestProcessor(conn, "")

	got := p.FetchAggregate(context.Background(), []string{"A1A"}, "a", "b", Hourly)
	assert.True(t, got.Empty())
	assert.False(t, conn.Connected())
}

func TestProcessIDs(t *testing.T) {
	p := newTestProcessor(newConn(), "")

	res := p.ProcessIDs(context.Background(), []string{"A1A", "A2A"}, "2024-01-01", "2024-01-01", "2024-01-31")
	assert.Equal(t, "mid", res.BaseInfo.Columns[0])
	assert.Equal(t, []string{"A1A", "A2A"}, res.H1.Strings("mid"))
	assert.Equal(t, "mid", res.H4.Columns[0])
	assert.True(t, res.Daily.Has("trade_date"))

	tables := res.Tables()
	assert.Len(t, tables, 4)
	assert.Equal(t, 2, tables[KeyDaily].Len())
}

func TestProcessIDs_NoTimeRange(t *testing.T) {
	conn := newConn()
	p := newTestProcessor(conn, "")

	res := p.ProcessIDs(context.Background(), []string{"A1A"}, "2024-01-01", "2024-01-01", "")
	assert.False(t, res.BaseInfo.Empty())
	assert.True(t, res.H1.Empty())
	assert.True(t, res.Daily.Empty())
	assert.Len(t, conn.Queries(), 2)
}

func TestProcessIDs_Empty(t *testing.T) {
	conn := newConn()
	res := newTestProcessor(conn, "").ProcessIDs(context.Background(), nil, "", "", "")
	assert.True(t, res.Empty())
	assert.Empty(t, conn.Queries())
	for _, tb := range res.Tables() {
		assert.NotNil(t, tb)
	}
}

func TestProcess_ClickHouseTemplates(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "MID"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "A1A"))
	path := filepath.Join(t.TempDir(), "ids.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	conn := newConn()
	p := newTestProcessor(conn, querystore.KindClickHouse)

	res, err := p.Process(context.Background(), path, "2024-01-01", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1A"}, res.BaseInfo.Strings("mid"))

	assert.Contains(t, conn.Queries()[0], "uniqExact")
}
