// Package migrations ships the database schema with the binary.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
