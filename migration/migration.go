// Package migration applies the versioned SQL schema under
// store/postgres/migrations using golang-migrate, grounded on the
// teacher's internal/migration package but scoped to PostgreSQL only:
// this engine's go.mod carries jackc/pgx (via gorm's postgres driver)
// and not lib/pq, so the database driver is golang-migrate's pgx/v5
// adapter rather than the teacher's database/postgres one. The MySQL
// and SQLite backends in store/ keep relying on GORM AutoMigrate, as
// spec §4.14 names only the PostgreSQL migrations path.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	pgx5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/agentmesh/engine/store/postgres"
)

// Status describes one migration file's position relative to the
// database's current version.
type Status struct {
	Version uint
	Applied bool
}

// Migrator applies and inspects the schema_migrations state of a
// PostgreSQL database using the SQL files embedded in store/postgres.
type Migrator struct {
	db      *sql.DB
	migrate *migrate.Migrate
}

// Config configures a Migrator. TableName defaults to
// "schema_migrations", matching golang-migrate's own default.
type Config struct {
	DatabaseURL string
	TableName   string
}

// New opens dsn and builds a Migrator backed by the embedded migration
// files in store/postgres.MigrationsFS.
func New(cfg Config) (*Migrator, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("migration: database URL is required")
	}
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "schema_migrations"
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("migration: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: ping database: %w", err)
	}

	dbDriver, err := pgx5.WithInstance(db, &pgx5.Config{MigrationsTable: tableName})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: build database driver: %w", err)
	}

	sourceDriver, err := iofs.New(fs.FS(postgres.MigrationsFS), "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: build source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx", dbDriver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: build migrate instance: %w", err)
	}

	return &Migrator{db: db, migrate: m}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: up: %w", err)
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: down: %w", err)
	}
	return nil
}

// Version reports the database's current migration version. ok is
// false when no migration has ever been applied.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, ok bool, err error) {
	v, d, verr := m.migrate.Version()
	if verr != nil {
		if errors.Is(verr, migrate.ErrNilVersion) {
			return 0, false, false, nil
		}
		return 0, false, false, fmt.Errorf("migration: version: %w", verr)
	}
	return v, d, true, nil
}

// Close releases the underlying source and database connections.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration: close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration: close database: %w", dbErr)
	}
	return nil
}
