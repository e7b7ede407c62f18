package database

import (
	"fmt"
	"strings"

	"github.com/resumeforge/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLite(config models.DatabaseConfig) (*DB, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for SQLite")
	}

	gormDB, err := gorm.Open(sqlite.Open(sqliteDSN(config.FilePath)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db := &DB{
		DB:         gormDB,
		config:     config,
		driverName: "sqlite3",
	}

	db.setConnectionPool()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	return db, nil
}

// sqliteDSN appends the connection options the ledger needs: immediate
// transactions take the write lock at BEGIN so concurrent mutations queue
// instead of deadlocking on lock upgrade, and the busy timeout makes queued
// writers wait rather than fail.
func sqliteDSN(filePath string) string {
	if strings.Contains(filePath, "_txlock=") {
		return filePath
	}
	sep := "?"
	if strings.Contains(filePath, "?") {
		sep = "&"
	}
	return filePath + sep + "_txlock=immediate&_busy_timeout=10000"
}
