// Package oracle connects to the on-premises Oracle database holding
// customer identity data.
package oracle

import (
	_ "github.com/sijms/go-ora/v2" // registers the "oracle" database/sql driver

	"black-heatmap/internal/config"
	"black-heatmap/internal/storage"
	"black-heatmap/internal/storage/sqldb"
)

// DriverName is the database/sql driver registered by go-ora.
const DriverName = "oracle"

// Connector is an Oracle session over database/sql.
type Connector struct {
	*sqldb.Connector
	cfg config.OracleConfig
}

// Compile-time interface check.
var _ storage.Connector = (*Connector)(nil)

// New creates an Oracle connector. The JDBC driver path in cfg is not needed
// by the pure Go driver and is only reported.
func New(cfg config.OracleConfig, opts storage.Options) *Connector {
	opts.Logger.Debug().
		Str("jdbc_url", cfg.JDBCURL()).
		Str("driver_path", cfg.DriverPath).
		Msg("oracle connector configured")
	return &Connector{
		Connector: sqldb.New("oracle", DriverName, cfg.URL(), opts),
		cfg:       cfg,
	}
}

// Config returns the configuration the connector was built with.
func (c *Connector) Config() config.OracleConfig {
	return c.cfg
}
