package etl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

// bulkInsert inserts every row into table inside one transaction. Nothing is
// kept if any row fails.
func bulkInsert(ctx context.Context, conn *sql.DB, style schema.Placeholder, table string, columns []string, rows [][]any) (int, error) {
	stmt := schema.BuildInsert(table, columns, style)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, etlerr.Load(table, "begin", err)
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, rollback(tx, etlerr.Load(table, fmt.Sprintf("row %d", i+1),
				fmt.Errorf("%d values for %d columns", len(row), len(columns))))
		}
		if _, err := tx.ExecContext(ctx, stmt, row...); err != nil {
			return 0, rollback(tx, etlerr.Load(table, fmt.Sprintf("insert row %d", i+1), err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, etlerr.Load(table, "commit", err)
	}
	return len(rows), nil
}

// extract runs query and materializes the whole result set
func extract(ctx context.Context, conn *sql.DB, query string) ([]string, [][]any, error) {
	rs, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rs.Close() }()

	types, err := rs.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}
	columns := make([]string, len(types))
	for i, ct := range types {
		columns[i] = ct.Name()
	}

	var rows [][]any
	for rs.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, nil, err
		}
		for i, v := range values {
			values[i] = temporalText(v, types[i].DatabaseTypeName())
		}
		rows = append(rows, values)
	}
	return columns, rows, rs.Err()
}

// temporalText turns a time.Time that a driver decoded from a DATE or
// TIMESTAMP column back into the column's text form, so the copy stores the
// same value rather than the driver's formatting of it.
func temporalText(v any, dbType string) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	switch strings.ToUpper(dbType) {
	case "DATE":
		return t.Format(time.DateOnly)
	case "TIMESTAMP", "DATETIME":
		return t.Format("2006-01-02 15:04:05.999999999")
	default:
		return v
	}
}

func rollback(tx *sql.Tx, cause error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}
	return cause
}
