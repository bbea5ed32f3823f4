// Package migrations embeds the SQL schema so binaries and tests migrate without a migrations directory.
package migrations

import "embed"

// FS holds the NNN_name.sql files in version order
//
//go:embed *.sql
var FS embed.FS
