package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/schema"
)

var postgresDialect = Dialect{
	Name:        config.DriverPostgres,
	Placeholder: schema.Dollar,
	dropDatabase: func(name string) string {
		return "DROP DATABASE IF EXISTS " + name
	},
	createDatabase: func(name string) string {
		return "CREATE DATABASE " + name + " WITH ENCODING 'UTF8' TEMPLATE template0"
	},
}

// postgresURL builds a connection URL for database on server
func postgresURL(server config.Server, database string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(server.Host, strconv.Itoa(server.Port)),
		Path:   "/" + database,
	}
	if server.User != "" {
		if server.Password != "" {
			u.User = url.UserPassword(server.User, server.Password)
		} else {
			u.User = url.User(server.User)
		}
	}
	if server.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {server.SSLMode}}.Encode()
	}
	return u.String()
}

// openPostgres opens database through pgx's database/sql adapter
func openPostgres(ctx context.Context, server config.Server, database string) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(postgresURL(server, database))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	return ping(ctx, stdlib.OpenDB(*connConfig))
}
