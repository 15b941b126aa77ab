// Package migrations embeds the prefs database schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
