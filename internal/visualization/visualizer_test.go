package visualization

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"black-heatmap/internal/config"
	"black-heatmap/internal/observability"
	"black-heatmap/internal/table"
)

var fixedNow = func() time.Time { return time.Date(2024, 2, 3, 10, 20, 30, 0, time.UTC) }

func newTestVisualizer(t *testing.T, o Options) *Visualizer {
	t.Helper()
	if o.Dir == "" {
		o.Dir = filepath.Join(t.TempDir(), "charts")
	}
	o.Now = fixedNow
	o.Logger = zerolog.Nop()
	return New(o)
}

func fourHour(t *testing.T) *table.Table {
	t.Helper()
	tb := table.New("mid", "time_slot", "buy_amount_krw", "sell_amount_krw", "total_amount_krw", "trade_count")
	for i, mid := range []string{"A1A", "A2A", "A3A"} {
		for h := 0; h < 24; h += 4 {
			slot := time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
			buy := decimal.NewFromInt(int64((i + 1) * 1000))
			sell := decimal.NewFromInt(int64(h * 10))
			require.NoError(t, tb.AppendRow(mid, slot, buy, sell, buy.Add(sell), int64(2)))
		}
	}
	return tb
}

func daily(t *testing.T) *table.Table {
	t.Helper()
	tb := table.New("mid", "trade_date", "market_nm", "ticker_nm", "buy_amount_krw", "sell_amount_krw", "total_amount_krw", "total_trades")
	rows := [][]any{
		{"A1A", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "KRW", "BTC", int64(100), int64(50), int64(150), int64(3)},
		{"A2A", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "KRW", "ETH", int64(10), int64(0), int64(10), int64(1)},
		{"A1A", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "BTC", "XRP", int64(5), int64(5), int64(10), int64(2)},
	}
	for _, r := range rows {
		require.NoError(t, tb.AppendRow(r...))
	}
	return tb
}

func TestHeatmap(t *testing.T) {
	metrics := observability.NewMetrics("test")
	v := newTestVisualizer(t, Options{Metrics: metrics})

	path := v.Heatmap(fourHour(t), "4h heatmap", "4h")
	require.NotEmpty(t, path)
	assert.Equal(t, filepath.Join(v.Dir(), "heatmap_4h_20240203_102030.html"), path)

	html, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(html), "A2A")
	assert.Contains(t, string(html), "2024-01-01 04:00")
	assert.Contains(t, string(html), "echarts.min.js")
}

func TestHeatmap_RowCap(t *testing.T) {
	v := newTestVisualizer(t, Options{MaxRows: 2})

	path := v.Heatmap(fourHour(t), "capped", "4h")
	require.NotEmpty(t, path)
	html, err := os.ReadFile(path)
	require.NoError(t, err)
	// A1A has the lowest buy amounts and is dropped.
	assert.NotContains(t, string(html), "A1A")
	assert.Contains(t, string(html), "A3A")
}

func TestCharts_EmptyInput(t *testing.T) {
	v := newTestVisualizer(t, Options{})
	empty := table.New()

	assert.Empty(t, v.Heatmap(empty, "x", "1h"))
	assert.Empty(t, v.Heatmap(nil, "x", "1h"))
	assert.Empty(t, v.Timeline(empty, "x"))
	assert.Empty(t, v.Ranking(empty, 5, "x"))
	assert.Empty(t, v.MarketShare(empty, "x"))
	assert.Empty(t, v.Dashboard(nil, "x"))

	_, err := os.Stat(v.Dir())
	assert.True(t, os.IsNotExist(err), "nothing written")
}

func TestCharts_MissingColumns(t *testing.T) {
	v := newTestVisualizer(t, Options{})
	tb := table.New("user_id", "amount")
	require.NoError(t, tb.AppendRow("A1A", int64(1)))

	assert.Empty(t, v.Heatmap(tb, "x", "4h"))
	assert.Empty(t, v.Timeline(tb, "x"))
	assert.Empty(t, v.Ranking(tb, 5, "x"))
	assert.Empty(t, v.MarketShare(tb, "x"))
	assert.Empty(t, v.Dashboard(tb, "x"))
}

func TestTimelineRankingDashboard(t *testing.T) {
	v := newTestVisualizer(t, Options{})

	timeline := v.Timeline(fourHour(t), "timeline")
	assert.Equal(t, filepath.Join(v.Dir(), "timeline_20240203_102030.html"), timeline)

	ranking := v.Ranking(fourHour(t), 2, "ranking")
	assert.Equal(t, filepath.Join(v.Dir(), "ranking_top2_20240203_102030.html"), ranking)
	html, err := os.ReadFile(ranking)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "A1A")

	share := v.MarketShare(daily(t), "share")
	assert.Equal(t, filepath.Join(v.Dir(), "market_share_20240203_102030.html"), share)

	dash := v.Dashboard(daily(t), "dashboard")
	assert.Equal(t, filepath.Join(v.Dir(), "daily_pattern_20240203_102030.html"), dash)
	html, err = os.ReadFile(dash)
	require.NoError(t, err)
	assert.Contains(t, string(html), "XRP")
}

func TestCreateAll(t *testing.T) {
	v := newTestVisualizer(t, Options{})

	got := v.CreateAll(fourHour(t), fourHour(t), daily(t))
	assert.Len(t, got, 6)
	for kind, path := range got {
		assert.NotEmpty(t, path, kind)
		assert.FileExists(t, path)
	}

	got = v.CreateAll(nil, table.New(), daily(t))
	assert.ElementsMatch(t, []string{"market_share", "daily_pattern"}, keys(got))
}

func TestInlineAssets(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "echarts.min.js"), []byte("/* local echarts runtime */"), 0o644))
	v := newTestVisualizer(t, Options{Assets: config.AssetsInline, AssetsDir: assets})

	path := v.Ranking(fourHour(t), 3, "inline")
	require.NotEmpty(t, path)
	html, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(html), "/* local echarts runtime */")
	assert.NotContains(t, string(html), DefaultAssetsHost+"echarts.min.js")
}

func TestInlineAssets_Rewrite(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "echarts.min.js"), []byte("var echarts;"), 0o644))
	v := newTestVisualizer(t, Options{Assets: config.AssetsInline, AssetsDir: assets})

	in := `<head><script src="` + DefaultAssetsHost + `echarts.min.js"></script>` +
		`<script src="` + DefaultAssetsHost + `themes/missing.js"></script>` +
		`<script src="https://example.com/other.js"></script></head>`
	out := string(v.inlineAssets([]byte(in)))

	assert.Contains(t, out, "<script>\nvar echarts;\n</script>")
	assert.Contains(t, out, DefaultAssetsHost+"themes/missing.js")
	assert.Contains(t, out, "https://example.com/other.js")
}

func TestDirectoryAssets(t *testing.T) {
	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "echarts.min.js"), []byte("var echarts;"), 0o644))
	v := newTestVisualizer(t, Options{Assets: config.AssetsDirectory, AssetsDir: assets})

	v.copyAssets([]byte(`<script src="assets/echarts.min.js"></script>`))
	assert.FileExists(t, filepath.Join(v.Dir(), "assets", "echarts.min.js"))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.AppConfig{ChartDir: "out", ChartAssets: config.AssetsDirectory, HeatmapMaxRows: 7, RankingTopN: 3}
	v := New(OptionsFromConfig(cfg, zerolog.Nop(), nil))

	assert.Equal(t, "out", v.Dir())
	assert.Equal(t, "assets/", v.opts.AssetsHost)
	assert.Equal(t, 7, v.opts.MaxRows)
	assert.Equal(t, 3, v.opts.TopN)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
