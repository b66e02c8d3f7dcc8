package schema

// Definition is the ordered set of tables making up one database
type Definition struct {
	Name   string
	Tables []Table
}

// Table is a table in a Definition
type Table struct {
	Name      string
	Columns   []string // insert order
	DependsOn []string // parent tables referenced by foreign keys
	Create    string
}

// Extraction pulls one warehouse-shaped result set out of the operational database
type Extraction struct {
	Table string
	Query string
}

// Snapshot describes the tables found in a live database
type Snapshot struct {
	Database string
	Tables   []TableInfo
}

// TableInfo describes a live table
type TableInfo struct {
	Name    string
	Columns []Column
	Rows    int64
}

// Column represents a table column
type Column struct {
	Name     string
	Type     string
	Nullable bool
	// NullableKnown is false when the driver does not report nullability
	NullableKnown bool
}

// Table returns the named table of d, or false if d has none
func (d Definition) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// TableNames lists d's tables in creation order
func (d Definition) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}
