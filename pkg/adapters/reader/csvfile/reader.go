package csvfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

// Reader ingests a local CSV, DAT, or TXT file. Cells stay strings with
// inferred declared types; the comparison layer coerces them into the
// mapped column's domain.
type Reader struct {
	cfg    *Config
	name   string
	limits reader.Limits
	logger *zap.Logger
}

// New builds a csv reader from a reader spec.
func New(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (*Reader, error) {
	cfg, err := FromMap(spec.Options)
	if err != nil {
		return nil, fmt.Errorf("csv reader: %w", err)
	}
	fallback := strings.TrimSuffix(filepath.Base(cfg.Path), filepath.Ext(cfg.Path))
	return &Reader{
		cfg:    cfg,
		name:   reader.DatasetName(spec, fallback),
		limits: limits,
		logger: logger.Named("csv-reader"),
	}, nil
}

func (r *Reader) Read(ctx context.Context) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(r.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("csv reader: %w", err)
	}
	if maxBytes := int64(r.cfg.MaxFileMB) << 20; info.Size() > maxBytes {
		return nil, fmt.Errorf("csv reader: file %s is %d MB, exceeds the %d MB limit",
			r.cfg.Path, info.Size()>>20, r.cfg.MaxFileMB)
	}

	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("csv reader: %w", err)
	}
	defer f.Close()

	delimiter := r.cfg.Delimiter
	if delimiter == 0 {
		delimiter = DefaultDelimiter(r.cfg.Path)
	}

	table, err := Decode(f, DecodeOptions{
		Delimiter: delimiter,
		Header:    r.cfg.Header,
		StopAfter: r.limits.FetchLimit(r.cfg.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("csv reader: %s: %w", r.cfg.Path, err)
	}
	if err := r.limits.EnforceCap(len(table.Records)); err != nil {
		return nil, fmt.Errorf("csv reader: %s: %w", r.cfg.Path, err)
	}

	ds, err := BuildDataset(r.name, table)
	if err != nil {
		return nil, fmt.Errorf("csv reader: %s: %w", r.cfg.Path, err)
	}

	r.logger.Debug("Read delimited file",
		zap.String("path", r.cfg.Path),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

func (r *Reader) Close() error { return nil }

var _ reader.Reader = (*Reader)(nil)
