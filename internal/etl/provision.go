package etl

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

// Provisioner drops and recreates both databases and their tables.
// Provisioning is destructive: any existing data is lost.
type Provisioner struct {
	conn      Connector
	databases config.Databases
	policy    config.FailurePolicy
	reporter  Reporter
	logger    *slog.Logger
}

// NewProvisioner creates a new provisioner
func NewProvisioner(conn Connector, cfg *config.Config, reporter Reporter, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		conn:      conn,
		databases: cfg.Databases,
		policy:    cfg.FailurePolicy,
		reporter:  reporter,
		logger:    logger,
	}
}

type target struct {
	name string
	def  schema.Definition
}

// Provision recreates the warehouse and operational databases, then creates
// each one's tables in a single transaction. A failed schema is rolled back
// and reported without affecting the other. Only connection failures and
// database drop/create failures are returned.
func (p *Provisioner) Provision(ctx context.Context) error {
	targets := []target{
		{name: p.databases.Operational, def: schema.Operational()},
		{name: p.databases.Warehouse, def: schema.Warehouse()},
	}

	if err := p.recreateDatabases(ctx, targets); err != nil {
		return err
	}

	for _, t := range targets {
		r := newRun(StageProvision, t.name, t.def, p.policy, p.reporter, p.logger)
		start := time.Now()

		conn, err := p.conn.Open(ctx, t.name)
		if err != nil {
			_ = r.record(Outcome{Err: err, Duration: time.Since(start)})
			return err
		}

		r.logger.Info("creating tables", "schema", t.def.Name)
		err = createTables(ctx, conn, t.def)
		_ = conn.Close()

		outcome := Outcome{Duration: time.Since(start)}
		if err != nil {
			outcome.Err = err
		} else {
			outcome.Rows = len(t.def.Tables)
		}
		if err := r.record(outcome); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) recreateDatabases(ctx context.Context, targets []target) error {
	admin, err := p.conn.Admin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := admin.Close(); err != nil {
			p.logger.Warn("failed to close admin connection", "error", err)
		}
	}()

	for _, t := range targets {
		p.logger.Info("dropping database", "database", t.name)
		if err := admin.DropDatabase(ctx, t.name); err != nil {
			return p.fail(t.name, "drop database", err)
		}
	}
	for _, t := range targets {
		p.logger.Info("creating database", "database", t.name)
		if err := admin.CreateDatabase(ctx, t.name); err != nil {
			return p.fail(t.name, "create database", err)
		}
	}
	return nil
}

func (p *Provisioner) fail(database, op string, err error) error {
	perr := etlerr.Provisioning(database, op, err)
	p.reporter.Report(Outcome{Stage: StageProvision, Database: database, Err: perr})
	return perr
}

// createTables runs every CREATE TABLE of def in order and commits once all
// succeed. On failure the pending creations are rolled back.
func createTables(ctx context.Context, conn *sql.DB, def schema.Definition) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return etlerr.Provisioning(def.Name, "begin", err)
	}
	for _, table := range def.Tables {
		if _, err := tx.ExecContext(ctx, table.Create); err != nil {
			return rollback(tx, etlerr.Provisioning(def.Name+"."+table.Name, "create table", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return etlerr.Provisioning(def.Name, "commit", err)
	}
	return nil
}
