// Package migrations embeds the goose SQL migrations for the nosht schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
