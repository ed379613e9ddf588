// Package integration merges Oracle identity records with warehouse
// activity into one table per MID.
package integration

import (
	"context"

	"github.com/rs/zerolog"

	"black-heatmap/internal/blacklist"
	"black-heatmap/internal/spreadsheet"
	"black-heatmap/internal/table"
	"black-heatmap/internal/trading"
)

// KeyBlackMidInfo is the export name of the merged table.
const KeyBlackMidInfo = "df_black_mid_info"

// Request describes one integrated run.
type Request struct {
	Path           string
	Checkpoint     string
	Start          string
	End            string
	ValidateFormat bool
}

// Result is the merged table plus the warehouse aggregates.
type Result struct {
	BlackMidInfo *table.Table
	H1           *table.Table
	H4           *table.Table
	Daily        *table.Table
}

// Tables returns the result keyed by the export names.
func (r Result) Tables() map[string]*table.Table {
	return map[string]*table.Table{
		KeyBlackMidInfo:     nonNil(r.BlackMidInfo),
		trading.KeyHourly:   nonNil(r.H1),
		trading.KeyFourHour: nonNil(r.H4),
		trading.KeyDaily:    nonNil(r.Daily),
	}
}

// Processor runs the blacklist and trading processors and merges their output.
type Processor struct {
	blacklist *blacklist.Processor
	trading   *trading.Processor
	logger    zerolog.Logger
}

// NewProcessor creates an integration processor.
func NewProcessor(bl *blacklist.Processor, tr *trading.Processor, logger zerolog.Logger) *Processor {
	return &Processor{
		blacklist: bl,
		trading:   tr,
		logger:    logger.With().Str("component", "integration").Logger(),
	}
}

// Process runs both sources. A failing source is logged and treated as empty.
func (p *Processor) Process(ctx context.Context, req Request) Result {
	p.logger.Info().Str("path", req.Path).Msg("integrated processing started")

	p.logger.Info().Msg("[1/2] fetching identity records from Oracle")
	identity, err := p.blacklist.Process(ctx, req.Path, req.ValidateFormat)
	if err != nil {
		p.logger.Error().Err(err).Msg("identity lookup failed")
		identity = table.New()
	}
	if identity.Empty() {
		p.logger.Warn().Msg("no identity records")
	} else {
		p.logger.Info().Int("rows", identity.Len()).Msg("identity records fetched")
		identity = identity.Rename(map[string]string{"MID": "mid"})
	}

	p.logger.Info().Msg("[2/2] fetching activity from warehouse")
	activity, err := p.trading.Process(ctx, req.Path, req.Checkpoint, req.Start, req.End)
	if err != nil {
		p.logger.Error().Err(err).Msg("warehouse lookup failed")
		activity = trading.Result{}
	}
	base := activity.BaseInfo
	if base.Empty() {
		p.logger.Warn().Msg("no warehouse base info")
	} else {
		p.logger.Info().Int("rows", base.Len()).Msg("warehouse base info fetched")
	}

	var merged *table.Table
	switch {
	case !identity.Empty() && !base.Empty():
		merged = table.OuterJoin(identity, base, "mid", [2]string{"_oracle", "_redshift"})
		p.logger.Info().
			Int("oracle", identity.Len()).
			Int("redshift", base.Len()).
			Int("merged", merged.Len()).
			Msg("sources merged")
	case !identity.Empty():
		merged = identity
		p.logger.Info().Int("rows", merged.Len()).Msg("using Oracle records only")
	case !base.Empty():
		merged = base
		p.logger.Info().Int("rows", merged.Len()).Msg("using warehouse records only")
	default:
		ids, err := spreadsheet.ReadIdentifierList(req.Path, spreadsheet.DefaultColumn, spreadsheet.DefaultHeaderRow)
		if err != nil {
			p.logger.Error().Err(err).Msg("re-reading MID list failed")
		}
		merged = table.FromColumn("mid", ids)
		p.logger.Warn().Msg("no data from either source, returning MID list only")
	}

	merged = merged.MoveToFront("mid")
	if !merged.Empty() && merged.Has("mid") {
		before := merged.Len()
		merged = merged.DedupBy("mid")
		if merged.Len() != before {
			p.logger.Info().Int("before", before).Int("after", merged.Len()).Msg("duplicate MIDs removed")
		}
	}

	res := Result{
		BlackMidInfo: merged,
		H1:           nonNil(activity.H1),
		H4:           nonNil(activity.H4),
		Daily:        nonNil(activity.Daily),
	}
	p.logger.Info().
		Int("black_mid_info", res.BlackMidInfo.Len()).
		Int("hourly", res.H1.Len()).
		Int("four_hourly", res.H4.Len()).
		Int("daily", res.Daily.Len()).
		Msg("integrated processing complete")
	return res
}

func nonNil(t *table.Table) *table.Table {
	if t == nil {
		return table.New()
	}
	return t
}
