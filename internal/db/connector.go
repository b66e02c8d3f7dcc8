// Package db opens connections to the configured server and performs the
// server-level operations (drop/create database) the pipeline needs.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

// Dialect captures the SQL differences between supported servers
type Dialect struct {
	Name        string
	Placeholder schema.Placeholder

	dropDatabase   func(name string) string
	createDatabase func(name string) string
}

// DialectFor returns the dialect of driver
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverPostgres:
		return postgresDialect, nil
	case config.DriverMySQL:
		return mysqlDialect, nil
	case config.DriverSQLite:
		return sqliteDialect, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Admin performs server-level provisioning
type Admin interface {
	DropDatabase(ctx context.Context, name string) error
	CreateDatabase(ctx context.Context, name string) error
	Close() error
}

// SQLAdmin provisions databases by issuing DDL over a server connection
type SQLAdmin struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLAdmin wraps an admin connection
func NewSQLAdmin(db *sql.DB, dialect Dialect) *SQLAdmin {
	return &SQLAdmin{db: db, dialect: dialect}
}

// DropDatabase drops name if it exists
func (a *SQLAdmin) DropDatabase(ctx context.Context, name string) error {
	if _, err := a.db.ExecContext(ctx, a.dialect.dropDatabase(name)); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates name with UTF-8 encoding
func (a *SQLAdmin) CreateDatabase(ctx context.Context, name string) error {
	if _, err := a.db.ExecContext(ctx, a.dialect.createDatabase(name)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// Close closes the admin connection
func (a *SQLAdmin) Close() error {
	return a.db.Close()
}

// Connector opens connections to one server
type Connector struct {
	server  config.Server
	dialect Dialect
}

// NewConnector creates a connector for server
func NewConnector(server config.Server) (*Connector, error) {
	dialect, err := DialectFor(server.Driver)
	if err != nil {
		return nil, err
	}
	return &Connector{server: server, dialect: dialect}, nil
}

// Placeholder returns the bind syntax of the server
func (c *Connector) Placeholder() schema.Placeholder {
	return c.dialect.Placeholder
}

// Admin connects to the server itself rather than a target database
func (c *Connector) Admin(ctx context.Context) (Admin, error) {
	var (
		db  *sql.DB
		err error
	)
	switch c.dialect.Name {
	case config.DriverSQLite:
		return &fileAdmin{dir: c.server.Dir}, nil
	case config.DriverPostgres:
		db, err = openPostgres(ctx, c.server, c.server.AdminDatabase)
	case config.DriverMySQL:
		db, err = openMySQL(ctx, c.server, "")
	}
	if err != nil {
		return nil, etlerr.Connection(c.server.Host, "connect to server", err)
	}
	return NewSQLAdmin(db, c.dialect), nil
}

// Open connects to database. The pool is capped at one connection: each
// stage works sequentially on a single session.
func (c *Connector) Open(ctx context.Context, database string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch c.dialect.Name {
	case config.DriverSQLite:
		db, err = openSQLite(ctx, c.server.Dir, database)
	case config.DriverPostgres:
		db, err = openPostgres(ctx, c.server, database)
	case config.DriverMySQL:
		db, err = openMySQL(ctx, c.server, database)
	}
	if err != nil {
		return nil, etlerr.Connection(database, "connect", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// ping verifies db is reachable, closing it otherwise
func ping(ctx context.Context, db *sql.DB) (*sql.DB, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
