package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	sqliteMemoryPrefix = "memory:"
	sqliteBusyTimeout  = "5000"
)

// openSQLite opens a file or in-memory database behind a single pooled
// connection. SQLite serialises writers anyway; one connection also keeps
// concurrent offers and fan-out inserts from failing with lock errors and lets
// the unique offer key decide races instead.
func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		var err error
		if dsn, err = sqliteDSN(cfg.Path); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	// the DSN flag is ignored by some builds
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return db, nil
}

// sqliteDSN maps database.path to a DSN. ":memory:" and "" share one process-wide
// database; "memory:<name>" gives an isolated named one, as used by tests.
func sqliteDSN(path string) (string, error) {
	params := url.Values{}
	params.Set("_foreign_keys", "1")
	params.Set("_busy_timeout", sqliteBusyTimeout)

	path = strings.TrimSpace(path)
	switch {
	case path == "", strings.EqualFold(path, ":memory:"):
		params.Set("cache", "shared")
		return "file::memory:?" + params.Encode(), nil
	case strings.HasPrefix(path, sqliteMemoryPrefix):
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return fmt.Sprintf("file:%s?%s", strings.TrimPrefix(path, sqliteMemoryPrefix), params.Encode()), nil
	default:
		if err := ensureDir(path); err != nil {
			return "", err
		}
		params.Set("_journal_mode", "WAL")
		return fmt.Sprintf("file:%s?%s", filepath.ToSlash(path), params.Encode()), nil
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlite: create data directory: %w", err)
	}
	return nil
}
