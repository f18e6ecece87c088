package postgres

import "embed"

// MigrationsFS embeds the versioned SQL migrations applied by
// cmd/meshctl's "migrate" subcommand through the migration package.
// Go's embed directive cannot walk up to a parent directory, so this
// declaration lives here in store/postgres rather than in the
// migration package itself, even though migration is what consumes it.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
