// Package postgres opens a store.Store backed by PostgreSQL or MySQL,
// selected by dsn scheme, reusing the shared gorm business logic in
// store/sqlstore.
package postgres

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/store/sqlstore"
)

// Open connects using dsn and runs migrations. A dsn beginning with
// "mysql://" opens a MySQL connection; anything else is treated as a
// PostgreSQL DSN.
func Open(dsn string) (store.Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "mysql://") {
		dialector = mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return sqlstore.Open(db)
}
