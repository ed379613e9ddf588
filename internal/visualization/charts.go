package visualization

import (
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"black-heatmap/internal/table"
)

// Diverging palette, low to high.
var heatColors = []string{
	"#313695", "#4575b4", "#74add1", "#abd9e9", "#e0f3f8",
	"#fee090", "#fdae61", "#f46d43", "#d73027", "#a50026",
}

const (
	colorBuy   = "#d73027"
	colorSell  = "#4575b4"
	colorTotal = "#1a9850"
)

// Heatmap renders total_amount_krw per MID and time bucket. Rows beyond
// MaxRows are reduced to the highest totals.
func (v *Visualizer) Heatmap(t *table.Table, title, granularity string) string {
	kind := "heatmap_" + granularity
	if t.Empty() {
		v.logger.Warn().Str("chart", kind).Msg("no data for chart")
		return ""
	}

	m := Pivot(t, "mid", slotColumn(t), "total_amount_krw")
	if m.Empty() {
		return v.fail(kind, fmt.Errorf("%w: need mid, time_slot and total_amount_krw", errNoData))
	}
	if len(m.Rows) > v.opts.MaxRows {
		v.logger.Info().Int("rows", len(m.Rows)).Int("kept", v.opts.MaxRows).Msg("heatmap limited to top MIDs")
		m = TopN(m, v.opts.MaxRows)
	}

	data := make([]opts.HeatMapData, 0, len(m.Rows)*len(m.Cols))
	for i := range m.Rows {
		for j := range m.Cols {
			data = append(data, opts.HeatMapData{Value: [3]any{j, i, m.Values[i][j].InexactFloat64()}})
		}
	}

	height := max(400, len(m.Rows)*20+200)
	width := max(800, len(m.Cols)*40+200)

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(title, px(width), px(height))),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "time",
			Type:      "category",
			Data:      m.Cols,
			AxisLabel: &opts.AxisLabel{Rotate: 45},
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "MID",
			Type:      "category",
			Data:      m.Rows,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(max(m.Max().InexactFloat64(), 1)),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.AddSeries("total_amount_krw", data)

	return v.write(kind, hm)
}

// Timeline renders buy, sell and total amounts per time bucket and the number
// of active MIDs per bucket below it.
func (v *Visualizer) Timeline(t *table.Table, title string) string {
	const kind = "timeline"
	if t.Empty() {
		v.logger.Warn().Str("chart", kind).Msg("no data for chart")
		return ""
	}

	buckets := groupBy(t, slotColumn(t), "mid", "buy_amount_krw", "sell_amount_krw", "total_amount_krw")
	if len(buckets) == 0 {
		return v.fail(kind, fmt.Errorf("%w: need time_slot", errNoData))
	}
	sortByLabel(buckets)

	slots := labels(buckets)
	amounts := charts.NewLine()
	amounts.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(title, "1200px", "420px")),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "거래금액 추이"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "KRW"}),
	)
	amounts.SetXAxis(slots).
		AddSeries("매수", lineData(buckets, 0), charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBuy})).
		AddSeries("매도", lineData(buckets, 1), charts.WithItemStyleOpts(opts.ItemStyle{Color: colorSell})).
		AddSeries("전체", lineData(buckets, 2),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorTotal}),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	users := charts.NewBar()
	users.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(title, "1200px", "320px")),
		charts.WithTitleOpts(opts.Title{Subtitle: "활성 사용자 수"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "users"}),
	)
	users.SetXAxis(slots).AddSeries("활성 사용자", activeUsers(buckets))

	return v.write(kind, v.page(title, amounts, users))
}

// Ranking renders the topN MIDs by total amount as stacked buy/sell bars.
func (v *Visualizer) Ranking(t *table.Table, topN int, title string) string {
	if topN <= 0 {
		topN = v.opts.TopN
	}
	kind := fmt.Sprintf("ranking_top%d", topN)
	if t.Empty() {
		v.logger.Warn().Str("chart", kind).Msg("no data for chart")
		return ""
	}

	buckets := groupBy(t, "mid", "", "buy_amount_krw", "sell_amount_krw", "total_amount_krw")
	if len(buckets) == 0 {
		return v.fail(kind, fmt.Errorf("%w: need mid", errNoData))
	}
	sortBySum(buckets, 2)
	if len(buckets) > topN {
		buckets = buckets[:topN]
	}

	full := fmt.Sprintf("%s (Top %d)", title, topN)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(full, "1200px", "600px")),
		charts.WithTitleOpts(opts.Title{Title: full, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "MID", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "KRW"}),
	)
	bar.SetXAxis(labels(buckets)).
		AddSeries("매수", barData(buckets, 0),
			charts.WithBarChartOpts(opts.BarChart{Stack: "amount"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBuy})).
		AddSeries("매도", barData(buckets, 1),
			charts.WithBarChartOpts(opts.BarChart{Stack: "amount"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorSell}))

	return v.write(kind, bar)
}

// MarketShare renders the total amount per market as a pie.
func (v *Visualizer) MarketShare(daily *table.Table, title string) string {
	const kind = "market_share"
	if daily.Empty() {
		v.logger.Warn().Str("chart", kind).Msg("no data for chart")
		return ""
	}
	pie, err := v.marketPie(daily, title, "900px", "600px")
	if err != nil {
		return v.fail(kind, err)
	}
	return v.write(kind, pie)
}

// Dashboard renders four daily panels: total amount per day, market share,
// top ten tickers, and active MIDs with trade counts on a secondary axis.
func (v *Visualizer) Dashboard(daily *table.Table, title string) string {
	const kind = "daily_pattern"
	if daily.Empty() {
		v.logger.Warn().Str("chart", kind).Msg("no data for chart")
		return ""
	}

	days := groupBy(daily, "trade_date", "mid", "total_amount_krw", "total_trades")
	if len(days) == 0 {
		return v.fail(kind, fmt.Errorf("%w: need trade_date", errNoData))
	}
	sortByLabel(days)
	dates := labels(days)

	trend := charts.NewLine()
	trend.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(title, "640px", "420px")),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "일별 거래금액 추이"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "date", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "KRW"}),
	)
	trend.SetXAxis(dates).AddSeries("일별 거래금액", lineData(days, 0),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorTotal}))

	share, err := v.marketPie(daily, "마켓별 거래 비중", "640px", "420px")
	if err != nil {
		return v.fail(kind, err)
	}

	tickers := groupBy(daily, "ticker_nm", "", "total_amount_krw")
	sortBySum(tickers, 0)
	if len(tickers) > 10 {
		tickers = tickers[:10]
	}
	top := charts.NewBar()
	top.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(title, "640px", "420px")),
		charts.WithTitleOpts(opts.Title{Subtitle: "인기 종목 Top 10"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "ticker", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "KRW"}),
	)
	top.SetXAxis(labels(tickers)).AddSeries("거래금액", barData(tickers, 0))

	activity := charts.NewBar()
	activity.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(title, "640px", "420px")),
		charts.WithTitleOpts(opts.Title{Subtitle: "일별 활성 사용자 및 거래 건수"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "date", AxisLabel: &opts.AxisLabel{Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "users"}),
	)
	activity.ExtendYAxis(opts.YAxis{Name: "trades"})
	activity.SetXAxis(dates).AddSeries("활성 사용자", activeUsers(days))

	trades := charts.NewLine()
	trades.SetXAxis(dates).AddSeries("거래 건수", lineData(days, 1),
		charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBuy}))
	activity.Overlap(trades)

	return v.write(kind, v.page(title, trend, share, top, activity))
}

func (v *Visualizer) marketPie(daily *table.Table, title, width, height string) (*charts.Pie, error) {
	markets := groupBy(daily, "market_nm", "", "total_amount_krw")
	if len(markets) == 0 {
		return nil, fmt.Errorf("%w: need market_nm", errNoData)
	}

	items := make([]opts.PieData, 0, len(markets))
	for _, b := range markets {
		items = append(items, opts.PieData{Name: b.Label, Value: b.Sums[0].InexactFloat64()})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(v.init(title, width, height)),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%", Orient: "vertical"}),
	)
	pie.AddSeries("market", items,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
		charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "70%"}}))
	return pie, nil
}

func (v *Visualizer) page(title string, cs ...components.Charter) *components.Page {
	page := components.NewPage()
	page.PageTitle = title
	page.AssetsHost = v.opts.AssetsHost
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(cs...)
	return page
}

// fail logs err for chart kind and returns "".
func (v *Visualizer) fail(kind string, err error) string {
	v.opts.Metrics.RecordChart(kind, false)
	v.logger.Error().Err(err).Str("chart", kind).Msg("chart render failed")
	return ""
}

// slotColumn picks the time bucket column of an aggregate.
func slotColumn(t *table.Table) string {
	if !t.Has("time_slot") && t.Has("trade_date") {
		return "trade_date"
	}
	return "time_slot"
}

func labels(bs []*bucket) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Label
	}
	return out
}

func lineData(bs []*bucket, i int) []opts.LineData {
	out := make([]opts.LineData, len(bs))
	for j, b := range bs {
		out[j] = opts.LineData{Value: b.Sums[i].InexactFloat64()}
	}
	return out
}

func barData(bs []*bucket, i int) []opts.BarData {
	out := make([]opts.BarData, len(bs))
	for j, b := range bs {
		out[j] = opts.BarData{Value: b.Sums[i].InexactFloat64()}
	}
	return out
}

func activeUsers(bs []*bucket) []opts.BarData {
	out := make([]opts.BarData, len(bs))
	for j, b := range bs {
		out[j] = opts.BarData{Value: len(b.IDs)}
	}
	return out
}

func px(n int) string { return fmt.Sprintf("%dpx", n) }
