package parquetfile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

// Reader ingests a local parquet file through column reads. Only flat
// schemas are supported; nested and repeated groups have no tabular
// equivalent here.
type Reader struct {
	cfg    *Config
	name   string
	limits reader.Limits
	logger *zap.Logger
}

// New builds a parquet reader from a reader spec.
func New(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (*Reader, error) {
	cfg, err := FromMap(spec.Options)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	fallback := strings.TrimSuffix(filepath.Base(cfg.Path), filepath.Ext(cfg.Path))
	return &Reader{
		cfg:    cfg,
		name:   reader.DatasetName(spec, fallback),
		limits: limits,
		logger: logger.Named("parquet-reader"),
	}, nil
}

func (r *Reader) Read(ctx context.Context) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fr, err := local.NewLocalFileReader(r.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	defer fr.Close()

	ds, err := decode(fr, r.name, r.cfg.Limit, r.limits)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %s: %w", r.cfg.Path, err)
	}

	r.logger.Debug("Read parquet file",
		zap.String("path", r.cfg.Path),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

func (r *Reader) Close() error { return nil }

var _ reader.Reader = (*Reader)(nil)
