// Package dwload provisions an operational database and a data warehouse and
// moves financial data through them.
//
// A run has three stages, each usable on its own:
//
//   - Provision drops and recreates both databases and their tables
//   - LoadOperational reads the JSON and CSV exports (users, cards, companies,
//     products, transactions) into the operational schema, deriving one
//     product_list row per product reference of each transaction
//   - LoadWarehouse copies the operational data into the warehouse shape,
//     moving user_id from cards onto transactions
//
// PostgreSQL, MySQL and SQLite are supported. With SQLite the server is a
// directory and each database a file inside it.
//
// # Quick Start
//
//	cfg := dwload.DefaultConfig()
//	cfg.Server.Host = "localhost"
//	report, err := dwload.Run(ctx, &cfg, &dwload.Options{Logger: logger})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if report.Failed() {
//		log.Println(report.Err())
//	}
//
// # Failures
//
// Every table load runs in its own transaction. A failed table is rolled back
// and reported; the configured FailurePolicy decides whether the stage goes on
// (continue), skips tables whose parents failed (skip-dependents), or stops
// (abort). Only fatal errors such as an unreachable server, a failed database
// drop/create, or an abort are returned as errors; everything else is in the
// Report.
package dwload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/db"
	"github.com/tordrt/dwload/internal/etl"
	"github.com/tordrt/dwload/internal/formatter"
	"github.com/tordrt/dwload/internal/schema"
)

type (
	// Config holds server, database, source file and failure policy settings
	Config = config.Config
	// FailurePolicy decides what a stage does after a failed table
	FailurePolicy = config.FailurePolicy
	// Outcome is the result of one schema creation or table load
	Outcome = etl.Outcome
	// Reporter receives outcomes as they happen
	Reporter = etl.Reporter
	// Snapshot describes the live tables of a database
	Snapshot = schema.Snapshot
)

// Failure policies
const (
	ContinueOnFailure = config.ContinueOnFailure
	SkipDependents    = config.SkipDependents
	AbortOnFailure    = config.AbortOnFailure
)

// DefaultConfig returns the configuration of the reference deployment: a
// PostgreSQL server named "postgres", databases "operational" and
// "datawarehouse", and source files under ./data.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads configuration from file, a .env file and DWLOAD_*
// environment variables. An empty file means ./dwload.yaml if present.
func LoadConfig(logger *slog.Logger, file string) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return config.Load(logger, file)
}

// Options configures a run.
//
// All fields are optional:
//   - Logger: defaults to slog.Default()
//   - Reporter: receives every outcome in addition to the returned Report
//   - RunID: tags log lines; a random UUID is generated when empty
type Options struct {
	Logger   *slog.Logger
	Reporter Reporter
	RunID    string
}

// Report collects the outcomes of a run
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Failed reports whether any schema or table failed or was skipped
func (r *Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Failed() {
			return true
		}
	}
	return false
}

// Err joins the errors of every failed outcome, or returns nil
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Failed() {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Provision drops and recreates the operational and warehouse databases and
// creates their tables. All existing data in both databases is lost.
func Provision(ctx context.Context, cfg *Config, opts *Options) (*Report, error) {
	s, err := newSession(cfg, opts)
	if err != nil {
		return nil, err
	}
	return s.finish(s.provision(ctx))
}

// LoadOperational loads the source files into the operational database
func LoadOperational(ctx context.Context, cfg *Config, opts *Options) (*Report, error) {
	s, err := newSession(cfg, opts)
	if err != nil {
		return nil, err
	}
	return s.finish(s.loadOperational(ctx))
}

// LoadWarehouse copies the operational database into the warehouse
func LoadWarehouse(ctx context.Context, cfg *Config, opts *Options) (*Report, error) {
	s, err := newSession(cfg, opts)
	if err != nil {
		return nil, err
	}
	return s.finish(s.loadWarehouse(ctx))
}

// Run provisions both databases, loads the operational database and then the
// warehouse. It stops at the first fatal error.
func Run(ctx context.Context, cfg *Config, opts *Options) (*Report, error) {
	s, err := newSession(cfg, opts)
	if err != nil {
		return nil, err
	}

	stages := []func(context.Context) error{s.provision, s.loadOperational, s.loadWarehouse}
	for _, stage := range stages {
		if err := stage(ctx); err != nil {
			return s.finish(err)
		}
	}
	return s.finish(nil)
}

// Inspect describes the tables of database, which must be one of the two
// configured databases.
func Inspect(ctx context.Context, cfg *Config, database string) (*Snapshot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var def schema.Definition
	switch database {
	case cfg.Databases.Operational:
		def = schema.Operational()
	case cfg.Databases.Warehouse:
		def = schema.Warehouse()
	default:
		return nil, fmt.Errorf("unknown database %q (expected %s or %s)",
			database, cfg.Databases.Operational, cfg.Databases.Warehouse)
	}

	conn, err := db.NewConnector(cfg.Server)
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.Open(ctx, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sqlDB.Close() }()

	return db.NewInspector(sqlDB, database).Inspect(ctx, def.TableNames())
}

// FormatReport writes r to w as "text" or "markdown"
func FormatReport(w io.Writer, format string, r *Report) error {
	f, err := formatter.New(format, w, false)
	if err != nil {
		return err
	}
	return f.FormatReport(r.Outcomes)
}

// FormatSnapshot writes s to w as "text" or "markdown"
func FormatSnapshot(w io.Writer, format string, s *Snapshot) error {
	f, err := formatter.New(format, w, false)
	if err != nil {
		return err
	}
	return f.FormatSnapshot(s)
}

// session carries what every stage of one run shares
type session struct {
	cfg       *Config
	conn      *db.Connector
	logger    *slog.Logger
	reporter  etl.Reporter
	collector *etl.Collector
	runID     string
}

func newSession(cfg *Config, opts *Options) (*session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts == nil {
		opts = &Options{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, err := db.NewConnector(cfg.Server)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", runID)

	collector := &etl.Collector{}
	reporters := etl.Reporters{collector, etl.NewLogReporter(logger)}
	if opts.Reporter != nil {
		reporters = append(reporters, opts.Reporter)
	}

	return &session{
		cfg:       cfg,
		conn:      conn,
		logger:    logger,
		reporter:  reporters,
		collector: collector,
		runID:     runID,
	}, nil
}

func (s *session) provision(ctx context.Context) error {
	return etl.NewProvisioner(s.conn, s.cfg, s.reporter, s.logger).Provision(ctx)
}

func (s *session) loadOperational(ctx context.Context) error {
	return etl.NewOperationalLoader(s.conn, s.cfg, s.reporter, s.logger).Load(ctx)
}

func (s *session) loadWarehouse(ctx context.Context) error {
	return etl.NewWarehouseLoader(s.conn, s.cfg, s.reporter, s.logger).Load(ctx)
}

func (s *session) finish(err error) (*Report, error) {
	report := &Report{RunID: s.runID, Outcomes: s.collector.Outcomes()}
	if err != nil {
		s.logger.Error("run stopped", "error", err)
		return report, err
	}
	if report.Failed() {
		s.logger.Warn("run finished with failures", "failed", len(s.collector.Failures()), "error", s.collector.Err())
	} else {
		s.logger.Info("run finished", "units", len(report.Outcomes))
	}
	return report, nil
}
