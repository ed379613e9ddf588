// Package storage defines the connector capability shared by every database
// backend and the scoped-session helper callers use to run queries.
package storage

import (
	"context"

	"black-heatmap/internal/table"
)

// Connector is a database session factory. A connector owns at most one live
// session at a time and must not be shared across interleaved operations.
type Connector interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Connect opens a session. Failures wrap ErrConnection.
	Connect(ctx context.Context) error

	// Disconnect releases the session. Failures are logged, never returned.
	// Calling it without a live session is a no-op.
	Disconnect(ctx context.Context)

	// ExecuteQuery runs query with optional positional params and returns the
	// rows with column names taken from the result metadata. Failures wrap
	// ErrQuery, or ErrNotConnected outside a session.
	ExecuteQuery(ctx context.Context, query string, params ...any) (*table.Table, error)
}

// WithSession connects c, runs fn, and always disconnects, including when
// fn returns an error or panics.
func WithSession(ctx context.Context, c Connector, fn func(ctx context.Context, c Connector) error) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect(ctx)
	return fn(ctx, c)
}

// Query is a convenience for a session with a single statement.
func Query(ctx context.Context, c Connector, query string, params ...any) (*table.Table, error) {
	var out *table.Table
	err := WithSession(ctx, c, func(ctx context.Context, c Connector) error {
		var err error
		out, err = c.ExecuteQuery(ctx, query, params...)
		return err
	})
	return out, err
}
