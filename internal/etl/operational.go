package etl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/records"
	"github.com/tordrt/dwload/internal/schema"
)

// OperationalLoader fills the operational database from the raw source files
type OperationalLoader struct {
	conn     Connector
	database string
	sources  config.Sources
	policy   config.FailurePolicy
	reporter Reporter
	logger   *slog.Logger
}

// NewOperationalLoader creates a new operational loader
func NewOperationalLoader(conn Connector, cfg *config.Config, reporter Reporter, logger *slog.Logger) *OperationalLoader {
	return &OperationalLoader{
		conn:     conn,
		database: cfg.Databases.Operational,
		sources:  cfg.Sources,
		policy:   cfg.FailurePolicy,
		reporter: reporter,
		logger:   logger,
	}
}

// Load reads each entity's source files and bulk-inserts them, parents first.
// Product lines are derived from the transactions' product_ids field after the
// transactions themselves are loaded. A failed table is rolled back and
// reported; whether loading continues depends on the failure policy.
func (l *OperationalLoader) Load(ctx context.Context) error {
	conn, err := l.conn.Open(ctx, l.database)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	def := schema.Operational()
	r := newRun(StageOperational, l.database, def, l.policy, l.reporter, l.logger)

	var (
		txns   []records.Transaction
		txnErr error
	)

	steps := []struct {
		table string
		read  func() ([][]any, error)
	}{
		{schema.Users, func() ([][]any, error) {
			users, err := records.ReadUsers(l.sources.Users)
			return records.Values(users), err
		}},
		{schema.Cards, func() ([][]any, error) {
			cards, err := records.ReadCards(l.sources.Cards)
			return records.Values(cards), err
		}},
		{schema.Companies, func() ([][]any, error) {
			companies, err := records.ReadCompanies(l.sources.Companies)
			return records.Values(companies), err
		}},
		{schema.Products, func() ([][]any, error) {
			products, err := records.ReadProducts(l.sources.Products)
			return records.Values(products), err
		}},
		{schema.Transactions, func() ([][]any, error) {
			txns, txnErr = records.ReadTransactions(l.sources.Transactions)
			return records.Values(txns), txnErr
		}},
		{schema.ProductList, func() ([][]any, error) {
			if txnErr != nil {
				return nil, etlerr.Load(schema.ProductList, "derive", fmt.Errorf("transactions unavailable: %w", txnErr))
			}
			lines, err := records.CollectLines(records.ProductLines(txns))
			return records.Values(lines), err
		}},
	}

	for _, step := range steps {
		table, _ := def.Table(step.table)
		read := step.read
		source := func(context.Context) ([]string, [][]any, error) {
			rows, err := read()
			return table.Columns, rows, err
		}
		if err := r.load(ctx, conn, l.conn.Placeholder(), step.table, source); err != nil {
			return err
		}
	}
	return nil
}
