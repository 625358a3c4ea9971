// Package migrations embeds the portal's SQL schema so the server binary can
// migrate a database without shipping the .sql files separately.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
