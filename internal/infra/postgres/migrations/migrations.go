package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema history; each file registers itself from init.
var Migrations = migrate.NewMigrations()
