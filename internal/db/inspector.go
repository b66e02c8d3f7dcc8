package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/dwload/internal/schema"
)

// Inspector describes the live tables of one database
type Inspector struct {
	db       *sql.DB
	database string
}

// NewInspector creates a new inspector
func NewInspector(db *sql.DB, database string) *Inspector {
	return &Inspector{db: db, database: database}
}

// Inspect returns columns and row counts for tables, in the order given.
// Table names are interpolated and must come from the registry.
func (i *Inspector) Inspect(ctx context.Context, tables []string) (*schema.Snapshot, error) {
	snap := &schema.Snapshot{Database: i.database}
	for _, name := range tables {
		table, err := i.inspectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect table %s: %w", name, err)
		}
		snap.Tables = append(snap.Tables, *table)
	}
	return snap, nil
}

func (i *Inspector) inspectTable(ctx context.Context, name string) (*schema.TableInfo, error) {
	table := &schema.TableInfo{Name: name}

	columns, err := i.inspectColumns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	table.Columns = columns

	if err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+name).Scan(&table.Rows); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return table, nil
}

// inspectColumns selects no rows from the table and reads the
// driver's column metadata
func (i *Inspector) inspectColumns(ctx context.Context, name string) ([]schema.Column, error) {
	rows, err := i.db.QueryContext(ctx, "SELECT * FROM "+name+" WHERE 1 = 0")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	columns := make([]schema.Column, 0, len(types))
	for _, ct := range types {
		col := schema.Column{Name: ct.Name(), Type: normalizeType(ct.DatabaseTypeName())}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
			col.NullableKnown = true
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// normalizeType maps driver type names to the names used in the DDL
func normalizeType(name string) string {
	switch name {
	case "INT4", "INT", "INTEGER":
		return "int"
	case "VARCHAR", "TEXT":
		return "varchar"
	case "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "REAL":
		return "double precision"
	case "BOOL", "BOOLEAN", "TINYINT":
		return "boolean"
	case "DATE":
		return "date"
	case "TIMESTAMP", "DATETIME":
		return "timestamp"
	case "":
		return "unknown"
	default:
		return name
	}
}
