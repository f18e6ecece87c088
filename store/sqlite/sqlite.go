// Package sqlite opens a store.Store backed by a local SQLite file, for
// development and single-node deployments. It reuses the shared gorm
// business logic in store/sqlstore.
package sqlite

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/store/sqlstore"
)

// Open connects to the sqlite database at path (e.g. "./agentmesh.db"
// or ":memory:") and runs migrations.
func Open(path string) (store.Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return sqlstore.Open(db)
}
