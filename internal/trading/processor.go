// Package trading gathers account activity and order-book aggregates for
// MIDs from the analytical warehouse.
package trading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"black-heatmap/internal/observability"
	"black-heatmap/internal/querystore"
	"black-heatmap/internal/spreadsheet"
	"black-heatmap/internal/storage"
	"black-heatmap/internal/table"
)

// Granularity selects an order-book aggregation template.
type Granularity string

const (
	Hourly     Granularity = "1h"
	FourHourly Granularity = "4h"
	Daily      Granularity = "daily"
)

// Result table keys.
const (
	KeyBaseInfo = "base_info"
	KeyHourly   = "df_1h_buysell_amountkrw"
	KeyFourHour = "df_4h_buysell_amountkrw"
	KeyDaily    = "df_day_buysell_info"
)

var aggregateQueries = map[Granularity]string{
	Hourly:     "orderbook_1h_summary",
	FourHourly: "orderbook_4h_summary",
	Daily:      "orderbook_daily_detail",
}

// Result holds per-MID base information and the three trade aggregates.
// All tables use "mid" as the identifier column.
type Result struct {
	BaseInfo *table.Table
	H1       *table.Table
	H4       *table.Table
	Daily    *table.Table
}

// Empty reports whether every table is empty.
func (r Result) Empty() bool {
	return r.BaseInfo.Empty() && r.H1.Empty() && r.H4.Empty() && r.Daily.Empty()
}

// Tables returns the result keyed by the export names.
func (r Result) Tables() map[string]*table.Table {
	return map[string]*table.Table{
		KeyBaseInfo: orEmpty(r.BaseInfo),
		KeyHourly:   orEmpty(r.H1),
		KeyFourHour: orEmpty(r.H4),
		KeyDaily:    orEmpty(r.Daily),
	}
}

// Processor runs the warehouse templates of one query kind.
type Processor struct {
	store   *querystore.Store
	conn    storage.Connector
	kind    string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewProcessor creates a processor. kind is the template directory
// (querystore.KindRedshift or querystore.KindClickHouse); empty means Redshift.
func NewProcessor(store *querystore.Store, conn storage.Connector, kind string, logger zerolog.Logger, metrics *observability.Metrics) *Processor {
	if kind == "" {
		kind = querystore.KindRedshift
	}
	return &Processor{
		store:   store,
		conn:    conn,
		kind:    kind,
		logger:  logger.With().Str("component", "trading").Str("kind", kind).Logger(),
		metrics: metrics,
	}
}

// FetchAccessInfo returns access statistics since checkpoint. Failures are
// logged and yield an empty table.
func (p *Processor) FetchAccessInfo(ctx context.Context, ids []string, checkpoint string) *table.Table {
	t, err := p.fetch(ctx, "user_access_info", ids, map[string]string{
		":checkpoint_datetime": quoteOpt(checkpoint),
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("access info lookup failed")
		return table.New()
	}
	p.logger.Info().Int("rows", t.Len()).Msg("access info fetched")
	return t
}

// FetchJoinDate returns join timestamps deduplicated on (user_id, join_datetime).
// Failures are logged and yield an empty table.
func (p *Processor) FetchJoinDate(ctx context.Context, ids []string) *table.Table {
	t, err := p.fetch(ctx, "user_join_date", ids, nil)
	if err != nil {
		p.logger.Error().Err(err).Msg("join date lookup failed")
		return table.New()
	}
	if !t.Empty() && t.Has("user_id") && t.Has("join_datetime") {
		t = t.DedupBy("user_id", "join_datetime")
	}
	p.logger.Info().Int("rows", t.Len()).Msg("join dates fetched")
	return t
}

// FetchBaseInfo merges join dates with access info on user_id. When both are
// empty the result is a bare user_id column of ids.
func (p *Processor) FetchBaseInfo(ctx context.Context, ids []string, checkpoint string) *table.Table {
	access := p.FetchAccessInfo(ctx, ids, checkpoint)
	join := p.FetchJoinDate(ctx, ids)

	switch {
	case !access.Empty() && !join.Empty():
		return table.OuterJoin(join, access, "user_id", [2]string{"_x", "_y"})
	case !join.Empty():
		return join
	case !access.Empty():
		return access
	default:
		return table.FromColumn("user_id", ids)
	}
}

// FetchAggregate returns the order-book aggregate for g between start and end.
// Failures are logged and yield an empty table.
func (p *Processor) FetchAggregate(ctx context.Context, ids []string, start, end string, g Granularity) *table.Table {
	name, ok := aggregateQueries[g]
	if !ok {
		p.logger.Error().Str("granularity", string(g)).Msg("unknown granularity")
		return table.New()
	}
	t, err := p.fetch(ctx, name, ids, map[string]string{
		":start_time": quoteOpt(start),
		":end_time":   quoteOpt(end),
	})
	if err != nil {
		p.logger.Error().Err(err).Str("granularity", string(g)).Msg("aggregate lookup failed")
		return table.New()
	}
	p.logger.Info().Str("granularity", string(g)).Int("rows", t.Len()).Msg("aggregate fetched")
	return t
}

// Process reads MIDs from the workbook at path and runs ProcessIDs.
func (p *Processor) Process(ctx context.Context, path, checkpoint, start, end string) (Result, error) {
	ids, err := spreadsheet.ReadIdentifierList(path, spreadsheet.DefaultColumn, spreadsheet.DefaultHeaderRow)
	if err != nil {
		return Result{}, err
	}
	p.logger.Info().Int("count", len(ids)).Str("path", path).Msg("MID list loaded")
	return p.ProcessIDs(ctx, ids, checkpoint, start, end), nil
}

// ProcessIDs builds the base info table and, when both start and end are
// given, the three aggregates. user_id is renamed to mid everywhere.
func (p *Processor) ProcessIDs(ctx context.Context, ids []string, checkpoint, start, end string) Result {
	if len(ids) == 0 {
		p.logger.Warn().Msg("no MIDs in input")
		return Result{}
	}

	res := Result{BaseInfo: p.FetchBaseInfo(ctx, ids, checkpoint)}
	if start != "" && end != "" {
		res.H1 = p.FetchAggregate(ctx, ids, start, end, Hourly)
		res.H4 = p.FetchAggregate(ctx, ids, start, end, FourHourly)
		res.Daily = p.FetchAggregate(ctx, ids, start, end, Daily)
	}

	rename := map[string]string{"user_id": "mid"}
	res.BaseInfo = res.BaseInfo.Rename(rename)
	res.H1 = res.H1.Rename(rename)
	res.H4 = res.H4.Rename(rename)
	res.Daily = res.Daily.Rename(rename)

	for key, t := range res.Tables() {
		p.metrics.RecordRows(key, t.Len())
	}
	p.logger.Info().
		Int("base_info", res.BaseInfo.Len()).
		Int("hourly", res.H1.Len()).
		Int("four_hourly", res.H4.Len()).
		Int("daily", res.Daily.Len()).
		Msg("warehouse processing complete")
	return res
}

// fetch runs template name in its own session with :user_ids and params substituted.
func (p *Processor) fetch(ctx context.Context, name string, ids []string, params map[string]string) (*table.Table, error) {
	tmpl, err := p.store.Load(p.kind, name)
	if err != nil {
		return nil, err
	}

	query := querystore.Substitute(tmpl, ":user_ids", querystore.QuoteList(ids))
	query = querystore.SubstituteAll(query, params)

	var out *table.Table
	err = storage.WithSession(ctx, p.conn, func(ctx context.Context, c storage.Connector) error {
		t, err := c.ExecuteQuery(ctx, query)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func quoteOpt(s string) string {
	if s == "" {
		return ""
	}
	return querystore.Quote(s)
}

func orEmpty(t *table.Table) *table.Table {
	if t == nil {
		return table.New()
	}
	return t
}
