package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/config"
	"github.com/reconlab/recon-engine/pkg/logging"
	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/retry"
	"github.com/reconlab/recon-engine/pkg/sqlguard"
)

// Reader ingests a PostgreSQL table or query result. Declared types come
// from the result's type OIDs so the alias registry can classify them.
type Reader struct {
	cfg    *Config
	name   string
	limits reader.Limits
	logger *zap.Logger
	pool   *pgxpool.Pool
}

// New builds a postgres reader from a reader spec. The connection is opened
// lazily on the first Read.
func New(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (*Reader, error) {
	cfg, err := FromMap(spec.Options)
	if err != nil {
		return nil, fmt.Errorf("postgres reader: %w", err)
	}
	fallback := cfg.Table
	if fallback == "" {
		fallback = cfg.Database
	}
	return &Reader{
		cfg:    cfg,
		name:   reader.DatasetName(spec, fallback),
		limits: limits,
		logger: logger.Named("postgres-reader"),
	}, nil
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// User-provided fields are URL-escaped so special characters in passwords
// do not break URL parsing. When running in Docker, localhost resolves to
// host.docker.internal.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	host := config.ResolveHostForDocker(cfg.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}

// connect opens the pool, retrying transient failures with backoff.
// Permanent failures (bad credentials, unknown database) fail immediately.
func (r *Reader) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if r.pool != nil {
		return r.pool, nil
	}

	connStr := buildConnectionString(r.cfg)
	pool, err := retry.Value(ctx, retry.DefaultPolicy(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("ping failed: %w", err)
		}
		return p, nil
	})
	if err != nil {
		// Driver errors can echo the connection string, credentials included.
		r.logger.Warn("Connection failed",
			zap.String("host", r.cfg.Host),
			zap.String("database", r.cfg.Database),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	r.pool = pool
	return pool, nil
}

// buildQuery resolves the SQL to run and its positional arguments. Named
// {{param}} placeholders are substituted and every parameter passes the
// injection check before anything reaches the server.
func (r *Reader) buildQuery() (string, []any, error) {
	if r.cfg.Table != "" {
		ident := pgx.Identifier(strings.Split(r.cfg.Table, "."))
		sqlText := "SELECT * FROM " + ident.Sanitize()
		return r.wrapLimit(sqlText), nil, nil
	}

	normalized, err := sqlguard.ValidateAndNormalize(r.cfg.Query)
	if err != nil {
		return "", nil, err
	}
	sqlText, args, err := sqlguard.Substitute(normalized, r.cfg.Params)
	if err != nil {
		return "", nil, err
	}
	return r.wrapLimit(sqlText), args, nil
}

func (r *Reader) wrapLimit(sqlText string) string {
	if limit := r.limits.FetchLimit(r.cfg.Limit); limit > 0 {
		return fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlText, limit)
	}
	return sqlText
}

func (r *Reader) Read(ctx context.Context) (*models.Dataset, error) {
	sqlText, args, err := r.buildQuery()
	if err != nil {
		return nil, fmt.Errorf("postgres reader: %w", err)
	}

	pool, err := r.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres reader: %w", err)
	}

	queryCtx := ctx
	if r.limits.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, r.limits.QueryTimeout)
		defer cancel()
	}

	r.logger.Debug("Executing query", zap.String("query", logging.SanitizeQuery(sqlText)))
	rows, err := pool.Query(queryCtx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres reader: execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]models.Column, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = models.Column{
			Name:         string(fd.Name),
			DeclaredType: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	rowCount := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres reader: read row values: %w", err)
		}
		for i := range columns {
			columns[i].Values = append(columns[i].Values, cellFromPG(values[i]))
		}
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres reader: iterate rows: %w", err)
	}
	if err := r.limits.EnforceCap(rowCount); err != nil {
		return nil, fmt.Errorf("postgres reader: %w", err)
	}

	ds, err := models.NewDataset(r.name, columns)
	if err != nil {
		return nil, fmt.Errorf("postgres reader: %w", err)
	}

	r.logger.Debug("Read postgres dataset",
		zap.String("database", r.cfg.Database),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

// Close releases the pool if one was opened.
func (r *Reader) Close() error {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	return nil
}

// cellFromPG converts a pgx row value. Most types pass through the shared
// conversion; numerics and UUIDs arrive as pgx-specific types first.
func cellFromPG(v any) models.Value {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return models.Null()
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return models.Null()
		}
		return models.Number(f.Float64)
	case [16]byte:
		return models.String(uuid.UUID(x).String())
	case pgtype.Time:
		if !x.Valid {
			return models.Null()
		}
		d := time.Duration(x.Microseconds) * time.Microsecond
		return models.String(fmt.Sprintf("%02d:%02d:%02d",
			int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60))
	default:
		return reader.CellValue(v)
	}
}

var _ reader.Reader = (*Reader)(nil)
