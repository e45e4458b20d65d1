package migrations

import "embed"

// PostgresFS holds the trade-log and audit-record schemas.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the tick-archive schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
