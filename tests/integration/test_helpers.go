//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tordrt/dwload"
	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/db"
	"github.com/tordrt/dwload/internal/schema"
)

// expectedRows is the row count per table after loading the fixtures
var expectedRows = map[string]int64{
	schema.Users:        5,
	schema.Cards:        2,
	schema.Companies:    2,
	schema.Products:     3,
	schema.Transactions: 3,
	schema.ProductList:  7,
}

// writeFixtures lays out a small export in the same shape as the production
// files: users split across two JSON files, cards and products as CSV.
func writeFixtures(t *testing.T) config.Sources {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("Failed to write fixture %s: %v", name, err)
		}
		return path
	}

	return config.Sources{
		Users: []string{
			write("users_usa.json", `[
				{"id": 1, "name": "Ann", "surname": "Lee", "phone": "555-0100", "email": "ann@example.com",
				 "birth_date": "1990-01-15", "country": "United States", "city": "Austin", "postal_code": "73301", "address": "1 Main St"},
				{"id": 2, "name": "Bob", "surname": "Ray", "phone": 5550101, "email": "bob@example.com",
				 "birth_date": "", "country": "United States", "city": "Boston", "postal_code": 2108, "address": "2 Elm St"}
			]`),
			write("users_uk.json", `[
				{"id": 3, "name": "Cat", "surname": "Ng", "email": "cat@example.com", "country": "United Kingdom"},
				{"id": 4, "name": "Dan", "surname": "Ox", "email": "dan@example.com", "country": "United Kingdom"},
				{"id": 5, "name": "Eve", "surname": "Poe", "email": "eve@example.com", "country": "United Kingdom"}
			]`),
		},
		Cards: []string{write("credit_cards.csv",
			"id,user_id,iban,pan,pin,cvv,track1,track2,expiring_date\n"+
				"CcU-1,1,XX00 1111,4111 1111,1234,123,%B1^A,%B1=,10/30/26\n"+
				"CcU-2,4,XX00 2222,4222 2222,4321,321,%B2^D,%B2=,11/30/27\n")},
		Companies: []string{write("companies.json", `[
			{"company_id": "b-1", "company_name": "Acme", "phone": "01 23", "email": "hi@acme.test", "country": "Germany", "website": "acme.test"},
			{"company_id": "b-2", "company_name": "Globex", "country": "Norway"}
		]`)},
		Products: []string{write("products.csv",
			"id,product_name,price,colour,weight,warehouse_id\n"+
				"3,Bolt,€0.25,#999999,0.1,WH-1\n"+
				"7,Widget,$1.50,#ff0000,2,WH-1\n"+
				"12,Gear,$9.99,#0000ff,1.5,WH-2\n")},
		Transactions: []string{
			write("transactions_1.json", `[
				{"id": "T-1", "card_id": "CcU-1", "business_id": "b-1", "lat_long": "30.2,-97.7", "pin": "0000",
				 "timestamp": "2021-08-28 23:42:24", "amount": "$12.00", "declined": 0, "product_ids": "7, 12, 12, 3"},
				{"id": "T-2", "card_id": "CcU-2", "business_id": "b-2", "lat_long": "51.5,-0.1", "pin": "1111",
				 "timestamp": "2021-08-29 08:00:00", "amount": "€3.50", "declined": "1", "product_ids": 7}
			]`),
			write("transactions_2.json", `[
				{"id": "T-3", "card_id": "CcU-2", "business_id": "b-1", "lat_long": "51.5,-0.1", "pin": "1111",
				 "timestamp": "2021-08-30 09:30:00", "amount": "£20.00", "declined": false, "product_ids": "3, 12"}
			]`),
		},
	}
}

// runPipeline provisions and loads both databases, failing on any error
func runPipeline(t *testing.T, cfg *dwload.Config) *dwload.Report {
	t.Helper()
	report, err := dwload.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Failed() {
		t.Fatalf("Run reported failures: %v", report.Err())
	}
	return report
}

// inspect returns the snapshot of database, failing on error
func inspect(t *testing.T, cfg *dwload.Config, database string) *dwload.Snapshot {
	t.Helper()
	snap, err := dwload.Inspect(context.Background(), cfg, database)
	if err != nil {
		t.Fatalf("Inspect %s failed: %v", database, err)
	}
	return snap
}

// verifyRowCounts checks every table of snap against want
func verifyRowCounts(t *testing.T, snap *dwload.Snapshot, want map[string]int64) {
	t.Helper()
	if len(snap.Tables) != len(want) {
		t.Errorf("Expected %d tables in %s, got %d", len(want), snap.Database, len(snap.Tables))
	}
	for _, table := range snap.Tables {
		if table.Rows != want[table.Name] {
			t.Errorf("%s.%s: expected %d rows, got %d", snap.Database, table.Name, want[table.Name], table.Rows)
		}
	}
}

// verifyColumns checks that table has exactly the expected columns, in order
func verifyColumns(t *testing.T, snap *dwload.Snapshot, tableName string, expected []string) {
	t.Helper()
	for _, table := range snap.Tables {
		if table.Name != tableName {
			continue
		}
		if len(table.Columns) != len(expected) {
			t.Errorf("%s.%s: expected columns %v, got %d columns", snap.Database, tableName, expected, len(table.Columns))
			return
		}
		for i, col := range table.Columns {
			if col.Name != expected[i] {
				t.Errorf("%s.%s: expected column %d to be %s, got %s", snap.Database, tableName, i, expected[i], col.Name)
			}
		}
		return
	}
	t.Errorf("Table %s not found in %s", tableName, snap.Database)
}

// verifySameShape checks that two snapshots have identical tables and columns
func verifySameShape(t *testing.T, a, b *dwload.Snapshot) {
	t.Helper()
	if len(a.Tables) != len(b.Tables) {
		t.Fatalf("%s: expected %d tables, got %d", a.Database, len(a.Tables), len(b.Tables))
	}
	for i := range a.Tables {
		ta, tb := a.Tables[i], b.Tables[i]
		if ta.Name != tb.Name || len(ta.Columns) != len(tb.Columns) {
			t.Errorf("%s: table %s differs from %s", a.Database, ta.Name, tb.Name)
			continue
		}
		for j := range ta.Columns {
			if ta.Columns[j] != tb.Columns[j] {
				t.Errorf("%s.%s: column %+v differs from %+v", a.Database, ta.Name, ta.Columns[j], tb.Columns[j])
			}
		}
	}
}

// queryInt runs a single-value query against database
func queryInt(t *testing.T, cfg *dwload.Config, database, query string, args ...any) int64 {
	t.Helper()
	ctx := context.Background()

	conn, err := db.NewConnector(cfg.Server)
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}
	sqlDB, err := conn.Open(ctx, database)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", database, err)
	}
	defer sqlDB.Close()

	var n int64
	if err := sqlDB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("Query %q failed: %v", query, err)
	}
	return n
}

// queryText runs a single-value query against database and returns it as text
func queryText(t *testing.T, cfg *dwload.Config, database, query string, args ...any) string {
	t.Helper()
	ctx := context.Background()

	conn, err := db.NewConnector(cfg.Server)
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}
	sqlDB, err := conn.Open(ctx, database)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", database, err)
	}
	defer sqlDB.Close()

	var s string
	if err := sqlDB.QueryRowContext(ctx, query, args...).Scan(&s); err != nil {
		t.Fatalf("Query %q failed: %v", query, err)
	}
	return s
}

// verifyPipeline runs the full pipeline against cfg and checks the result
func verifyPipeline(t *testing.T, cfg *dwload.Config) {
	t.Helper()
	cfg.Sources = writeFixtures(t)

	report := runPipeline(t, cfg)
	if len(report.Outcomes) != 2+6+6 {
		t.Errorf("Expected 14 outcomes, got %d", len(report.Outcomes))
	}

	operational := inspect(t, cfg, cfg.Databases.Operational)
	verifyRowCounts(t, operational, expectedRows)
	verifyColumns(t, operational, schema.Cards,
		[]string{"id", "user_id", "iban", "pan", "pin", "cvv", "track1", "track2", "expiring_date"})

	warehouse := inspect(t, cfg, cfg.Databases.Warehouse)
	verifyRowCounts(t, warehouse, expectedRows)
	verifyColumns(t, warehouse, schema.Cards,
		[]string{"id", "iban", "pan", "pin", "cvv", "track1", "track2", "expiring_date"})
	verifyColumns(t, warehouse, schema.Transactions,
		[]string{"id", "user_id", "card_id", "business_id", "lat_long", "pin", "timestamp", "amount", "declined"})

	// user_id moves from cards onto transactions
	style := placeholder(t, cfg)
	if got := queryInt(t, cfg, cfg.Databases.Warehouse,
		"SELECT user_id FROM transactions WHERE id = "+style.Bind(1), "T-3"); got != 4 {
		t.Errorf("Expected T-3 to belong to user 4, got %d", got)
	}

	// duplicate references survive
	if got := queryInt(t, cfg, cfg.Databases.Warehouse,
		"SELECT COUNT(*) FROM product_list WHERE txn_id = "+style.Bind(1)+" AND product_id = "+style.Bind(2),
		"T-1", 12); got != 2 {
		t.Errorf("Expected product 12 twice on T-1, got %d", got)
	}

	// provisioning again wipes the data and reproduces the same tables
	if _, err := dwload.Provision(context.Background(), cfg, nil); err != nil {
		t.Fatalf("Second provision failed: %v", err)
	}
	for _, before := range []*dwload.Snapshot{operational, warehouse} {
		after := inspect(t, cfg, before.Database)
		verifySameShape(t, before, after)
		for _, table := range after.Tables {
			if table.Rows != 0 {
				t.Errorf("%s.%s: expected empty table after provisioning, got %d rows", after.Database, table.Name, table.Rows)
			}
		}
	}
}

func placeholder(t *testing.T, cfg *dwload.Config) schema.Placeholder {
	t.Helper()
	conn, err := db.NewConnector(cfg.Server)
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}
	return conn.Placeholder()
}
