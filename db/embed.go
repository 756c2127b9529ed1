// Package db holds the SQL schema migrations applied at startup.
package db

import "embed"

// Migrations contains the versioned migration files under migrations/
//
//go:embed migrations/*.sql
var Migrations embed.FS
