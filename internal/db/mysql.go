package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/schema"
)

// MySQL commits DDL implicitly, so a failed table creation cannot be rolled
// back there; earlier tables of the same schema remain.
var mysqlDialect = Dialect{
	Name:        config.DriverMySQL,
	Placeholder: schema.Question,
	dropDatabase: func(name string) string {
		return "DROP DATABASE IF EXISTS " + name
	},
	createDatabase: func(name string) string {
		return "CREATE DATABASE " + name + " CHARACTER SET utf8mb4"
	},
}

// mysqlDSN builds a driver DSN; an empty database connects to the server only
func mysqlDSN(server config.Server, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = server.User
	cfg.Passwd = server.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(server.Host, strconv.Itoa(server.Port))
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func openMySQL(ctx context.Context, server config.Server, database string) (*sql.DB, error) {
	db, err := sql.Open("mysql", mysqlDSN(server, database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return ping(ctx, db)
}
