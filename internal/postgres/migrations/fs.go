// Package migrations embeds the schema migration files applied by the
// migrate command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Files lists the migrations in application order.
var Files = []string{
	"001_create_tasks.sql",
	"002_create_candidates.sql",
}
