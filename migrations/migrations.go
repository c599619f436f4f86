package migrations

import "embed"

// FS holds the SQL migrations for the order ledger so the binary can
// migrate regardless of the working directory.
//
//go:embed *.sql
var FS embed.FS
