// Package blacklist resolves blacklisted MIDs to customer identity records
// held in Oracle.
package blacklist

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"black-heatmap/internal/observability"
	"black-heatmap/internal/querystore"
	"black-heatmap/internal/spreadsheet"
	"black-heatmap/internal/storage"
	"black-heatmap/internal/table"
)

const (
	// DefaultMarker must open and close every valid MID.
	DefaultMarker = "A"
	// DefaultBatchSize bounds the IN list of a single query.
	DefaultBatchSize = 1000

	queryName   = "black_mid_customer_info"
	placeholder = ":mid_list"
)

// Columns is the canonical column order of the identity table.
var Columns = []string{
	"CID", "이름", "성별", "생년월일", "고액자산가", "거주지정보",
	"직장명", "직장정보", "핸드폰번호", "이메일주소", "KYC완료일시", "MID",
}

// Processor fetches identity records for MID lists.
type Processor struct {
	store   *querystore.Store
	conn    storage.Connector
	logger  zerolog.Logger
	metrics *observability.Metrics

	Marker    string
	BatchSize int
}

// NewProcessor creates a processor querying conn with templates from store.
// metrics may be nil.
func NewProcessor(store *querystore.Store, conn storage.Connector, logger zerolog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		store:     store,
		conn:      conn,
		logger:    logger.With().Str("component", "blacklist").Logger(),
		metrics:   metrics,
		Marker:    DefaultMarker,
		BatchSize: DefaultBatchSize,
	}
}

// ValidateFormat keeps ids that start and end with the marker, in input order.
func (p *Processor) ValidateFormat(ids []string) []string {
	marker := p.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	valid := make([]string, 0, len(ids))
	var rejected []string
	for _, id := range ids {
		if strings.HasPrefix(id, marker) && strings.HasSuffix(id, marker) {
			valid = append(valid, id)
		} else {
			rejected = append(rejected, id)
		}
	}

	p.metrics.RecordIdentifiers(len(ids), len(rejected))
	if len(rejected) > 0 {
		p.logger.Warn().
			Int("rejected", len(rejected)).
			Strs("sample", head(rejected, 5)).
			Msg("invalid MID format")
	}
	return valid
}

// FetchIdentity queries identity records in batches over one session.
// A failed batch is logged and skipped. The result is deduplicated by CID and
// projected onto Columns.
func (p *Processor) FetchIdentity(ctx context.Context, ids []string, batchSize int) (*table.Table, error) {
	if len(ids) == 0 {
		return table.New(), nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	tmpl, err := p.store.Load(querystore.KindOracle, queryName)
	if err != nil {
		return nil, err
	}

	var parts []*table.Table
	err = storage.WithSession(ctx, p.conn, func(ctx context.Context, c storage.Connector) error {
		total := (len(ids) + batchSize - 1) / batchSize
		for i := 0; i < len(ids); i += batchSize {
			batch := ids[i:min(i+batchSize, len(ids))]
			n := i/batchSize + 1

			query := querystore.Substitute(tmpl, placeholder, querystore.QuoteList(batch))
			t, err := c.ExecuteQuery(ctx, query)
			p.metrics.RecordBatch(err)
			if err != nil {
				p.logger.Error().Err(err).Int("batch", n).Int("batches", total).Msg("batch failed, skipping")
				continue
			}
			p.logger.Info().Int("batch", n).Int("batches", total).Int("rows", t.Len()).Msg("batch fetched")
			parts = append(parts, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}

	result := table.Concat(parts...)
	if result.Has("CID") {
		result = result.DedupBy("CID")
	}
	result = result.Select(Columns...)
	p.metrics.RecordRows("identity", result.Len())
	return result, nil
}

// Process reads MIDs from the workbook at path, optionally validates them and
// returns their identity records. Empty inputs yield an empty table.
func (p *Processor) Process(ctx context.Context, path string, validate bool) (*table.Table, error) {
	ids, err := spreadsheet.ReadIdentifierList(path, spreadsheet.DefaultColumn, spreadsheet.DefaultHeaderRow)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Int("count", len(ids)).Str("path", path).Msg("MID list loaded")
	if len(ids) == 0 {
		p.logger.Warn().Msg("no MIDs in input")
		return table.New(), nil
	}

	if validate {
		ids = p.ValidateFormat(ids)
		if len(ids) == 0 {
			p.logger.Warn().Msg("no valid MIDs after format check")
			return table.New(), nil
		}
	}

	result, err := p.FetchIdentity(ctx, ids, p.BatchSize)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		p.logger.Warn().Msg("no identity records found")
		return table.New(), nil
	}

	p.logNotFound(ids, result)
	p.logger.Info().Int("rows", result.Len()).Msg("identity lookup complete")
	return result, nil
}

func (p *Processor) logNotFound(ids []string, result *table.Table) {
	if !result.Has("MID") {
		return
	}
	found := make(map[string]struct{}, result.Len())
	for _, mid := range result.Strings("MID") {
		found[mid] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}
	p.logger.Info().Int("not_found", len(missing)).Msg("MIDs without identity record")
	p.logger.Debug().Strs("sample", head(missing, 10)).Msg("MIDs without identity record")
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
