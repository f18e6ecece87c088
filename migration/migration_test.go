package migration_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/migration"
)

// TestMigratorUpAndVersion exercises the migrator against a real
// PostgreSQL instance. It is skipped unless MIGRATION_TEST_DATABASE_URL
// is set, since golang-migrate's pgx driver has no in-memory mode the
// way gorm's sqlite dialector does.
func TestMigratorUpAndVersion(t *testing.T) {
	dsn := os.Getenv("MIGRATION_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MIGRATION_TEST_DATABASE_URL not set, skipping postgres migration test")
	}

	m, err := migration.New(migration.Config{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	require.NoError(t, m.Up(ctx))

	version, dirty, ok, err := m.Version(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	require.NoError(t, m.Down(ctx))
	_, _, ok, err = m.Version(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewRejectsEmptyDatabaseURL(t *testing.T) {
	_, err := migration.New(migration.Config{})
	require.Error(t, err)
}
