// Package db holds the SQL schema migrations.
package db

import "embed"

// Migrations is the migration set applied at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
