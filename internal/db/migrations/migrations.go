// Package migrations embeds the goose migration scripts, one directory per dialect.
package migrations

import "embed"

// FS holds the sqlite and postgres migration directories.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
