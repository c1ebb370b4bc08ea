// Package migrations embeds the notification backlog schema.
package migrations

import "embed"

// FS holds the ordered notification migrations.
//
//go:embed *.sql
var FS embed.FS
