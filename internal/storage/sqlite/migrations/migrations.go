// Package migrations embeds the profile store schema files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
