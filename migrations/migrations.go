// Package migrations embeds the SQL migration files for the rule catalog.
// One directory per supported driver; the db package selects the right set
// based on the connection's driver name.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
