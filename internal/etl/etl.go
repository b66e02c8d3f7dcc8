// Package etl provisions the operational and warehouse databases and moves
// data through them: source files into the operational schema, then the
// operational schema into the warehouse.
//
// Every stage is a full, sequential pass over a single connection per
// database. Each table load is its own transaction; what happens after a
// failed table is decided by the configured config.FailurePolicy.
package etl

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/db"
	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

// Connector opens connections to the configured server
type Connector interface {
	Admin(ctx context.Context) (db.Admin, error)
	Open(ctx context.Context, database string) (*sql.DB, error)
	Placeholder() schema.Placeholder
}

// rowSource produces the columns and rows for one table
type rowSource func(ctx context.Context) (columns []string, rows [][]any, err error)

// run tracks one stage: which tables failed and whether to keep going
type run struct {
	stage    Stage
	database string
	def      schema.Definition
	policy   config.FailurePolicy
	reporter Reporter
	logger   *slog.Logger
	failed   map[string]bool
}

func newRun(stage Stage, database string, def schema.Definition, policy config.FailurePolicy, reporter Reporter, logger *slog.Logger) *run {
	return &run{
		stage:    stage,
		database: database,
		def:      def,
		policy:   policy,
		reporter: reporter,
		logger:   logger.With("stage", stage, "database", database),
		failed:   make(map[string]bool),
	}
}

// failedParent returns a parent of table that failed earlier in this run
func (r *run) failedParent(table string) (string, bool) {
	t, ok := r.def.Table(table)
	if !ok {
		return "", false
	}
	for _, parent := range t.DependsOn {
		if r.failed[parent] {
			return parent, true
		}
	}
	return "", false
}

// record reports o and returns a non-nil error when the stage must stop
func (r *run) record(o Outcome) error {
	o.Stage = r.stage
	o.Database = r.database
	r.reporter.Report(o)
	if !o.Failed() {
		return nil
	}
	if o.Table != "" {
		r.failed[o.Table] = true
	}
	if r.policy == config.AbortOnFailure {
		return fmt.Errorf("%s stage aborted: %w", r.stage, o.Err)
	}
	return nil
}

// load reads rows for table and bulk-inserts them into conn
func (r *run) load(ctx context.Context, conn *sql.DB, style schema.Placeholder, table string, source rowSource) error {
	if r.policy == config.SkipDependents {
		if parent, ok := r.failedParent(table); ok {
			r.logger.Warn("skipping table", "table", table, "failed_parent", parent)
			return r.record(Outcome{
				Table:   table,
				Skipped: true,
				Err:     etlerr.Load(table, "skipped", fmt.Errorf("parent table %s failed", parent)),
			})
		}
	}

	r.logger.Info("loading table", "table", table)
	start := time.Now()

	columns, rows, err := source(ctx)
	if err != nil {
		return r.record(Outcome{Table: table, Err: etlerr.WithEntity(err, table), Duration: time.Since(start)})
	}

	n, err := bulkInsert(ctx, conn, style, table, columns, rows)
	return r.record(Outcome{Table: table, Rows: n, Err: err, Duration: time.Since(start)})
}
