package migrations

import "embed"

// PostgresFS embeds the sample warehouse for the postgres wire protocol.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the sample warehouse for ClickHouse.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
