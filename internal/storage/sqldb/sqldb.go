// Package sqldb implements storage.Connector on top of database/sql.
// The Oracle connector and the sqlite-backed tests share it.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"black-heatmap/internal/storage"
	"black-heatmap/internal/table"
)

// Connector runs queries over a single dedicated *sql.Conn per session.
type Connector struct {
	name   string
	driver string
	dsn    string
	init   []string
	opts   storage.Options
	logger zerolog.Logger

	db   *sql.DB
	conn *sql.Conn
}

// Compile-time interface check.
var _ storage.Connector = (*Connector)(nil)

// New creates a connector for a registered database/sql driver.
// init statements run once after each successful connect.
func New(name, driver, dsn string, opts storage.Options, init ...string) *Connector {
	return &Connector{
		name:   name,
		driver: driver,
		dsn:    dsn,
		init:   init,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "connector").Str("database", name).Logger(),
	}
}

// Name returns the backend name.
func (c *Connector) Name() string { return c.name }

// Connect opens the pool and pins one connection for the session.
func (c *Connector) Connect(ctx context.Context) error {
	err := c.connect(ctx)
	c.opts.Metrics.RecordConnect(c.name, err)
	if err != nil {
		c.logger.Error().Err(err).Msg("connect failed")
		return fmt.Errorf("%w: %s: %w", storage.ErrConnection, c.name, err)
	}
	c.logger.Info().Msg("connected")
	return nil
}

func (c *Connector) connect(ctx context.Context) error {
	if c.conn != nil {
		return fmt.Errorf("session already open")
	}

	db, err := sql.Open(c.driver, c.dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.driver, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("acquire connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("ping: %w", err)
	}

	for _, stmt := range c.init {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			db.Close()
			return fmt.Errorf("session init %q: %w", stmt, err)
		}
	}

	c.db, c.conn = db, conn
	return nil
}

// Disconnect releases the connection and the pool. Errors are logged only.
func (c *Connector) Disconnect(_ context.Context) {
	if c.conn == nil && c.db == nil {
		return
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("close connection failed")
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error().Err(err).Msg("close database failed")
		}
	}
	c.conn, c.db = nil, nil
	c.logger.Info().Msg("disconnected")
}

// ExecuteQuery runs query and reads every row.
func (c *Connector) ExecuteQuery(ctx context.Context, query string, params ...any) (*table.Table, error) {
	if c.conn == nil {
		return nil, storage.ErrNotConnected
	}

	start := time.Now()
	t, err := c.execute(ctx, query, params...)
	c.opts.Metrics.RecordDBQuery(c.name, time.Since(start), err)
	if err != nil {
		c.logger.Error().Err(err).Msg("query failed")
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrQuery, c.name, err)
	}
	c.logger.Info().Int("rows", t.Len()).Dur("elapsed", time.Since(start)).Msg("query executed")
	return t, nil
}

func (c *Connector) execute(ctx context.Context, query string, params ...any) (*table.Table, error) {
	ctx, cancel := c.opts.QueryContext(ctx)
	defer cancel()

	rows, err := c.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	t := table.New(cols...)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			vals[i] = storage.NormalizeValue(v)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return t, nil
}
