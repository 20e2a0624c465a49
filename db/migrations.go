// Package db embeds the schema migrations so the migrate binary ships as a
// single artifact.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
