package zipfile

import (
	"archive/zip"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/adapters/reader/csvfile"
	"github.com/reconlab/recon-engine/pkg/models"
)

// Reader ingests a zip archive of delimited files, the shape large extracts
// arrive in when an upstream system splits them into parts. Parts are
// concatenated in name order; every part must carry the same header.
type Reader struct {
	cfg    *Config
	name   string
	limits reader.Limits
	logger *zap.Logger
}

// New builds a zip reader from a reader spec.
func New(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (*Reader, error) {
	cfg, err := FromMap(spec.Options)
	if err != nil {
		return nil, fmt.Errorf("zip reader: %w", err)
	}
	fallback := strings.TrimSuffix(filepath.Base(cfg.Path), filepath.Ext(cfg.Path))
	return &Reader{
		cfg:    cfg,
		name:   reader.DatasetName(spec, fallback),
		limits: limits,
		logger: logger.Named("zip-reader"),
	}, nil
}

func (r *Reader) Read(ctx context.Context) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	archive, err := zip.OpenReader(r.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("zip reader: %w", err)
	}
	defer archive.Close()

	parts := delimitedParts(archive.File)
	if len(parts) == 0 {
		return nil, fmt.Errorf("zip reader: %s contains no delimited files", r.cfg.Path)
	}
	if err := r.checkDeclaredSize(parts); err != nil {
		return nil, err
	}

	stopAt := r.limits.FetchLimit(r.cfg.Limit)
	merged := &csvfile.Table{}
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stopAt > 0 && len(merged.Records) >= stopAt {
			break
		}
		remaining := 0
		if stopAt > 0 {
			remaining = stopAt - len(merged.Records)
		}

		table, err := r.decodePart(part, remaining)
		if err != nil {
			return nil, err
		}
		if merged.Names == nil {
			merged.Names = table.Names
		} else if !equalHeaders(merged.Names, table.Names) {
			return nil, fmt.Errorf("zip reader: part %q header %v does not match %v",
				part.Name, table.Names, merged.Names)
		}
		merged.Records = append(merged.Records, table.Records...)

		r.logger.Debug("Decoded archive part",
			zap.String("part", part.Name),
			zap.Int("rows", len(table.Records)))
	}

	if err := r.limits.EnforceCap(len(merged.Records)); err != nil {
		return nil, fmt.Errorf("zip reader: %s: %w", r.cfg.Path, err)
	}

	ds, err := csvfile.BuildDataset(r.name, merged)
	if err != nil {
		return nil, fmt.Errorf("zip reader: %s: %w", r.cfg.Path, err)
	}

	r.logger.Debug("Read zip archive",
		zap.String("path", r.cfg.Path),
		zap.Int("parts", len(parts)),
		zap.Int("rows", ds.RowCount()))
	return ds, nil
}

func (r *Reader) Close() error { return nil }

func (r *Reader) decodePart(part *zip.File, stopAfter int) (*csvfile.Table, error) {
	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("zip reader: open part %q: %w", part.Name, err)
	}
	defer rc.Close()

	delimiter := r.cfg.Delimiter
	if delimiter == 0 {
		delimiter = csvfile.DefaultDelimiter(part.Name)
	}
	table, err := csvfile.Decode(rc, csvfile.DecodeOptions{
		Delimiter: delimiter,
		Header:    true,
		StopAfter: stopAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("zip reader: part %q: %w", part.Name, err)
	}
	return table, nil
}

// checkDeclaredSize guards against archives whose parts inflate far beyond
// the configured bound.
func (r *Reader) checkDeclaredSize(parts []*zip.File) error {
	var total uint64
	for _, part := range parts {
		total += part.UncompressedSize64
	}
	if maxBytes := uint64(r.cfg.MaxArchiveMB) << 20; total > maxBytes {
		return fmt.Errorf("zip reader: %s inflates to %d MB, exceeds the %d MB limit",
			r.cfg.Path, total>>20, r.cfg.MaxArchiveMB)
	}
	return nil
}

// delimitedParts selects the archive entries worth decoding, in name order
// so multi-part extracts concatenate deterministically.
func delimitedParts(files []*zip.File) []*zip.File {
	var parts []*zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		switch strings.ToLower(filepath.Ext(base)) {
		case ".csv", ".dat", ".txt":
			parts = append(parts, f)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })
	return parts
}

func equalHeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ reader.Reader = (*Reader)(nil)
