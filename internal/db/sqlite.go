package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/schema"
)

// SQLite has no server: each database is a file under the configured dir.
var sqliteDialect = Dialect{
	Name:        config.DriverSQLite,
	Placeholder: schema.Question,
}

func sqlitePath(dir, database string) string {
	return filepath.Join(dir, database+".db")
}

func openSQLite(ctx context.Context, dir, database string) (*sql.DB, error) {
	path := sqlitePath(dir, database)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s not found: %w", database, err)
	}
	return openSQLiteFile(ctx, path)
}

func openSQLiteFile(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return ping(ctx, db)
}

// fileAdmin provisions SQLite databases as files
type fileAdmin struct {
	dir string
}

func (a *fileAdmin) DropDatabase(_ context.Context, name string) error {
	path := sqlitePath(a.dir, name)
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func (a *fileAdmin) CreateDatabase(ctx context.Context, name string) error {
	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", a.dir, err)
	}
	db, err := openSQLiteFile(ctx, sqlitePath(a.dir, name))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// encoding only applies before the first write; user_version forces the
	// header onto disk.
	for _, pragma := range []string{"PRAGMA encoding = 'UTF-8'", "PRAGMA user_version = 1"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to initialise %s: %w", name, err)
		}
	}
	return nil
}

func (a *fileAdmin) Close() error {
	return nil
}
