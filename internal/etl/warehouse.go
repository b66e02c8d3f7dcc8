package etl

import (
	"context"
	"log/slog"

	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/etlerr"
	"github.com/tordrt/dwload/internal/schema"
)

// WarehouseLoader copies the operational database into the warehouse
type WarehouseLoader struct {
	conn        Connector
	operational string
	warehouse   string
	policy      config.FailurePolicy
	reporter    Reporter
	logger      *slog.Logger
}

// NewWarehouseLoader creates a new warehouse loader
func NewWarehouseLoader(conn Connector, cfg *config.Config, reporter Reporter, logger *slog.Logger) *WarehouseLoader {
	return &WarehouseLoader{
		conn:        conn,
		operational: cfg.Databases.Operational,
		warehouse:   cfg.Databases.Warehouse,
		policy:      cfg.FailurePolicy,
		reporter:    reporter,
		logger:      logger,
	}
}

// Load runs each extraction query against the operational database and
// inserts the result unchanged into the matching warehouse table. Columns are
// taken from the result set, so the queries alone define the warehouse shape.
func (l *WarehouseLoader) Load(ctx context.Context) error {
	src, err := l.conn.Open(ctx, l.operational)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := l.conn.Open(ctx, l.warehouse)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	r := newRun(StageWarehouse, l.warehouse, schema.Warehouse(), l.policy, l.reporter, l.logger)

	for _, ex := range schema.Extractions() {
		query := ex.Query
		table := ex.Table
		source := func(ctx context.Context) ([]string, [][]any, error) {
			columns, rows, err := extract(ctx, src, query)
			if err != nil {
				return nil, nil, etlerr.Load(table, "extract", err)
			}
			return columns, rows, nil
		}
		if err := r.load(ctx, dst, l.conn.Placeholder(), table, source); err != nil {
			return err
		}
	}
	return nil
}
