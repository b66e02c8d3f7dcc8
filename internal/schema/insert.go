package schema

import (
	"strconv"
	"strings"
)

// Placeholder selects the bind parameter syntax of a driver
type Placeholder int

const (
	// Question uses ? (MySQL, SQLite)
	Question Placeholder = iota
	// Dollar uses $1, $2, ... (PostgreSQL)
	Dollar
)

// BuildInsert returns an INSERT statement for table with one placeholder per
// column, in the order given.
//
// Table and column names are written as-is. They must come from the registry
// or another trusted source; nothing here quotes or escapes identifiers.
func BuildInsert(table string, columns []string, style Placeholder) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(style.Bind(i + 1))
	}
	b.WriteString(")")
	return b.String()
}

// Bind returns the placeholder for the n-th (1-based) parameter
func (p Placeholder) Bind(n int) string {
	if p == Dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
