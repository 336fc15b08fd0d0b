package inline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

// Reader serves a dataset embedded directly in the run definition. API
// clients and tests use it to reconcile small payloads without any
// external source.
type Reader struct {
	cfg    *Config
	name   string
	limits reader.Limits
	logger *zap.Logger
}

// New builds an inline reader from a reader spec.
func New(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (*Reader, error) {
	cfg, err := FromMap(spec.Options)
	if err != nil {
		return nil, fmt.Errorf("inline reader: %w", err)
	}
	return &Reader{
		cfg:    cfg,
		name:   reader.DatasetName(spec, "inline"),
		limits: limits,
		logger: logger.Named("inline-reader"),
	}, nil
}

func (r *Reader) Read(ctx context.Context) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.limits.EnforceCap(len(r.cfg.Rows)); err != nil {
		return nil, fmt.Errorf("inline reader: %w", err)
	}

	names := make([]string, len(r.cfg.Columns))
	types := make([]string, len(r.cfg.Columns))
	for i, col := range r.cfg.Columns {
		names[i] = col.Name
		types[i] = col.Type
	}

	rows := make([][]models.Value, len(r.cfg.Rows))
	for i, raw := range r.cfg.Rows {
		cells := make([]models.Value, len(raw))
		for j, cell := range raw {
			cells[j] = reader.CellValue(cell)
		}
		rows[i] = cells
	}

	columns, err := reader.TransposeRows(names, types, rows)
	if err != nil {
		return nil, fmt.Errorf("inline reader: %w", err)
	}
	ds, err := models.NewDataset(r.name, columns)
	if err != nil {
		return nil, fmt.Errorf("inline reader: %w", err)
	}

	r.logger.Debug("Read inline dataset",
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

func (r *Reader) Close() error { return nil }

var _ reader.Reader = (*Reader)(nil)
