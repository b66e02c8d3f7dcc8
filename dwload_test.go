package dwload

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/etl"
	"github.com/tordrt/dwload/internal/etlerr"
)

func sqliteConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Server.Driver = config.DriverSQLite
	cfg.Server.Dir = t.TempDir()
	return &cfg
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     func() *Config
		wantErr string
	}{
		{
			name:    "nil config",
			cfg:     func() *Config { return nil },
			wantErr: "config is required",
		},
		{
			name: "unknown policy",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.FailurePolicy = "retry"
				return &cfg
			},
			wantErr: "invalid failure policy",
		},
		{
			name: "unknown driver",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Server.Driver = "oracle"
				return &cfg
			},
			wantErr: "unsupported driver",
		},
	}

	stages := map[string]func(context.Context, *Config, *Options) (*Report, error){
		"Provision":       Provision,
		"LoadOperational": LoadOperational,
		"LoadWarehouse":   LoadWarehouse,
		"Run":             Run,
	}

	for _, tt := range tests {
		for name, stage := range stages {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				report, err := stage(ctx, tt.cfg(), nil)
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want substring %q", err, tt.wantErr)
				}
				if report != nil {
					t.Errorf("expected no report, got %+v", report)
				}
			})
		}
	}
}

func TestLoadOperationalMissingDatabase(t *testing.T) {
	var seen []Outcome
	report, err := LoadOperational(context.Background(), sqliteConfig(t), &Options{
		RunID:    "run-1",
		Reporter: reporterFunc(func(o Outcome) { seen = append(seen, o) }),
	})

	if !errors.Is(err, etlerr.ErrConnection) {
		t.Fatalf("error = %v, want connection error", err)
	}
	if report == nil || report.RunID != "run-1" {
		t.Fatalf("report = %+v, want run id run-1", report)
	}
	if len(report.Outcomes) != 0 || len(seen) != 0 {
		t.Errorf("expected no outcomes, got %d reported and %d seen", len(report.Outcomes), len(seen))
	}
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	if _, err := Inspect(ctx, cfg, "ledger"); err == nil || !strings.Contains(err.Error(), "unknown database") {
		t.Errorf("Inspect(ledger) error = %v, want unknown database", err)
	}
	if _, err := Inspect(ctx, cfg, "datawarehouse"); !errors.Is(err, etlerr.ErrConnection) {
		t.Errorf("Inspect(datawarehouse) error = %v, want connection error", err)
	}
	if _, err := Inspect(ctx, nil, "operational"); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestReport(t *testing.T) {
	ok := &Report{Outcomes: []Outcome{{Stage: etl.StageOperational, Table: "users", Rows: 3}}}
	if ok.Failed() || ok.Err() != nil {
		t.Errorf("expected clean report, got Failed=%v Err=%v", ok.Failed(), ok.Err())
	}

	failed := &Report{Outcomes: []Outcome{
		{Stage: etl.StageOperational, Table: "users", Rows: 3},
		{Stage: etl.StageOperational, Table: "cards", Err: etlerr.Load("cards", "insert row 1", errors.New("boom"))},
	}}
	if !failed.Failed() {
		t.Error("expected Failed() to be true")
	}
	if !errors.Is(failed.Err(), etlerr.ErrLoad) {
		t.Errorf("Err() = %v, want load error", failed.Err())
	}
}

func TestFormatReport(t *testing.T) {
	report := &Report{Outcomes: []Outcome{{Stage: etl.StageWarehouse, Database: "datawarehouse", Table: "users", Rows: 3}}}

	var text, md bytes.Buffer
	if err := FormatReport(&text, "text", report); err != nil {
		t.Fatalf("FormatReport(text) error = %v", err)
	}
	if !strings.Contains(text.String(), "1 units, 3 rows, 0 failed") {
		t.Errorf("unexpected text output:\n%s", text.String())
	}

	if err := FormatReport(&md, "markdown", report); err != nil {
		t.Fatalf("FormatReport(markdown) error = %v", err)
	}
	if !strings.HasPrefix(md.String(), "# Run Report") {
		t.Errorf("unexpected markdown output:\n%s", md.String())
	}

	if err := FormatReport(&bytes.Buffer{}, "yaml", report); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

type reporterFunc func(Outcome)

func (f reporterFunc) Report(o Outcome) { f(o) }
