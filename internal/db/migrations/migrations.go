package migrations

import "embed"

// FS holds the static schema: stop markers and heartbeats. Queue tables are created at
// registration time.
//
//go:embed *.sql
var FS embed.FS
