// Package migrations embeds the chat SQLite schema.
package migrations

import "embed"

// FS holds the ordered chat migrations.
//
//go:embed *.sql
var FS embed.FS
