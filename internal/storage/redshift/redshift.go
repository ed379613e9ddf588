// Package redshift connects to the Redshift analytical warehouse over the
// PostgreSQL wire protocol.
package redshift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"black-heatmap/internal/config"
	"black-heatmap/internal/storage"
	"black-heatmap/internal/table"
)

// Connector is a single pgx session against Redshift.
type Connector struct {
	dsn    string
	schema string
	opts   storage.Options
	logger zerolog.Logger

	conn *pgx.Conn
}

// Compile-time interface check.
var _ storage.Connector = (*Connector)(nil)

// New creates a Redshift connector.
func New(cfg config.RedshiftConfig, opts storage.Options) *Connector {
	return NewWithDSN(cfg.URL(), cfg.Schema, opts)
}

// NewWithDSN creates a connector for an explicit DSN. schema, when set, is
// applied with SET search_path after connecting.
func NewWithDSN(dsn, schema string, opts storage.Options) *Connector {
	return &Connector{
		dsn:    dsn,
		schema: schema,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "connector").Str("database", "redshift").Logger(),
	}
}

// Name returns the backend name.
func (c *Connector) Name() string { return "redshift" }

// Connect opens the session and applies the search path.
func (c *Connector) Connect(ctx context.Context) error {
	err := c.connect(ctx)
	c.opts.Metrics.RecordConnect(c.Name(), err)
	if err != nil {
		c.logger.Error().Err(err).Msg("connect failed")
		return fmt.Errorf("%w: redshift: %w", storage.ErrConnection, err)
	}
	c.logger.Info().Str("schema", c.schema).Msg("connected")
	return nil
}

func (c *Connector) connect(ctx context.Context) error {
	if c.conn != nil {
		return errors.New("session already open")
	}

	pgCfg, err := pgx.ParseConfig(c.dsn)
	if err != nil {
		return fmt.Errorf("parse redshift dsn: %w", err)
	}
	// Redshift does not support every extended-protocol feature pgx relies on.
	pgCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := pgx.ConnectConfig(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect to redshift: %w", err)
	}

	if c.schema != "" {
		// Schema is operator configuration, possibly a comma-separated path.
		if _, err := conn.Exec(ctx, "SET search_path TO "+c.schema); err != nil {
			conn.Close(ctx)
			return fmt.Errorf("set search_path: %w", err)
		}
	}

	c.conn = conn
	return nil
}

// Disconnect closes the session. Errors are logged only.
func (c *Connector) Disconnect(ctx context.Context) {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(ctx); err != nil {
		c.logger.Error().Err(err).Msg("close failed")
	}
	c.conn = nil
	c.logger.Info().Msg("disconnected")
}

// ExecuteQuery runs query and reads every row.
func (c *Connector) ExecuteQuery(ctx context.Context, query string, params ...any) (*table.Table, error) {
	if c.conn == nil {
		return nil, storage.ErrNotConnected
	}

	start := time.Now()
	t, err := c.execute(ctx, query, params...)
	c.opts.Metrics.RecordDBQuery(c.Name(), time.Since(start), err)
	if err != nil {
		c.logger.Error().Err(err).Str("sqlstate", sqlState(err)).Msg("query failed")
		return nil, fmt.Errorf("%w: redshift: %w", storage.ErrQuery, err)
	}
	c.logger.Info().Int("rows", t.Len()).Dur("elapsed", time.Since(start)).Msg("query executed")
	return t, nil
}

func (c *Connector) execute(ctx context.Context, query string, params ...any) (*table.Table, error) {
	ctx, cancel := c.opts.QueryContext(ctx)
	defer cancel()

	rows, err := c.conn.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	t := table.New(cols...)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// normalize converts pgx-specific values into table cell values.
func normalize(v any) any {
	if n, ok := v.(pgtype.Numeric); ok {
		if !n.Valid {
			return nil
		}
		if n.NaN || n.InfinityModifier != pgtype.Finite {
			f, err := n.Float64Value()
			if err != nil {
				return nil
			}
			return f.Float64
		}
		return decimal.NewFromBigInt(n.Int, n.Exp)
	}
	return storage.NormalizeValue(v)
}

// sqlState extracts the server error code, if any.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
