// Package migrations embeds the PostgreSQL schema of the ledger.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
