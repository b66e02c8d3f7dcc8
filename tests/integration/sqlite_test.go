//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tordrt/dwload"
	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

func sqliteConfig(t *testing.T) *dwload.Config {
	t.Helper()
	cfg := dwload.DefaultConfig()
	cfg.Server.Driver = config.DriverSQLite
	cfg.Server.Dir = filepath.Join(t.TempDir(), "db")
	return &cfg
}

func TestSQLitePipeline(t *testing.T) {
	verifyPipeline(t, sqliteConfig(t))
}

func TestSQLiteWarehouseKeepsStoredText(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Sources = writeFixtures(t)
	runPipeline(t, cfg)

	// concatenation bypasses the driver's DATE/TIMESTAMP decoding and
	// returns the text SQLite actually stored
	queries := []struct {
		query string
		arg   any
		want  string
	}{
		{"SELECT birth_date || '' FROM users WHERE id = ?", 1, "1990-01-15"},
		{"SELECT timestamp || '' FROM transactions WHERE id = ?", "T-1", "2021-08-28 23:42:24"},
	}

	for _, q := range queries {
		op := queryText(t, cfg, cfg.Databases.Operational, q.query, q.arg)
		dw := queryText(t, cfg, cfg.Databases.Warehouse, q.query, q.arg)
		if op != q.want {
			t.Errorf("%s: operational stored %q, want %q", q.query, op, q.want)
		}
		if dw != op {
			t.Errorf("%s: warehouse stored %q, operational %q", q.query, dw, op)
		}
	}
}

func TestSQLiteProvisionCreatesFiles(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Sources = writeFixtures(t)

	if _, err := dwload.Provision(context.Background(), cfg, nil); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	for _, name := range []string{cfg.Databases.Operational, cfg.Databases.Warehouse} {
		if _, err := os.Stat(filepath.Join(cfg.Server.Dir, name+".db")); err != nil {
			t.Errorf("Expected database file for %s: %v", name, err)
		}
	}
}

func TestSQLitePartialFailure(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Sources = writeFixtures(t)

	// a card pointing at a missing user violates the foreign key
	bad := filepath.Join(t.TempDir(), "credit_cards.csv")
	content := "id,user_id,iban,pan,pin,cvv,track1,track2,expiring_date\n" +
		"CcU-1,1,XX,4111,1234,123,t1,t2,10/30/26\n" +
		"CcU-2,99,XX,4222,4321,321,t1,t2,11/30/27\n"
	if err := os.WriteFile(bad, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	cfg.Sources.Cards = []string{bad}

	tests := []struct {
		policy      dwload.FailurePolicy
		wantSkipped []string
		wantRows    map[string]int64
	}{
		{
			policy: dwload.ContinueOnFailure,
			wantRows: map[string]int64{
				schema.Users: 5, schema.Cards: 0, schema.Companies: 2,
				schema.Products: 3, schema.Transactions: 0, schema.ProductList: 0,
			},
		},
		{
			policy:      dwload.SkipDependents,
			wantSkipped: []string{schema.Transactions, schema.ProductList},
			wantRows: map[string]int64{
				schema.Users: 5, schema.Cards: 0, schema.Companies: 2,
				schema.Products: 3, schema.Transactions: 0, schema.ProductList: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			cfg.FailurePolicy = tt.policy
			ctx := context.Background()

			if _, err := dwload.Provision(ctx, cfg, nil); err != nil {
				t.Fatalf("Provision failed: %v", err)
			}
			report, err := dwload.LoadOperational(ctx, cfg, nil)
			if err != nil {
				t.Fatalf("LoadOperational returned error: %v", err)
			}
			if !report.Failed() || !errors.Is(report.Err(), etlerr.ErrLoad) {
				t.Fatalf("Expected load failures, got %v", report.Err())
			}

			var skipped []string
			for _, o := range report.Outcomes {
				if o.Skipped {
					skipped = append(skipped, o.Table)
				}
			}
			if len(skipped) != len(tt.wantSkipped) {
				t.Errorf("Expected skipped %v, got %v", tt.wantSkipped, skipped)
			}

			verifyRowCounts(t, inspect(t, cfg, cfg.Databases.Operational), tt.wantRows)
		})
	}
}

func TestSQLiteAbort(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Sources = writeFixtures(t)
	cfg.Sources.Products = []string{filepath.Join(t.TempDir(), "missing.csv")}
	cfg.FailurePolicy = dwload.AbortOnFailure

	report, err := dwload.Run(context.Background(), cfg, nil)
	if !errors.Is(err, etlerr.ErrLoad) {
		t.Fatalf("Expected load error, got %v", err)
	}
	last := report.Outcomes[len(report.Outcomes)-1]
	if last.Table != schema.Products {
		t.Errorf("Expected run to stop at products, stopped at %q", last.Table)
	}
}
