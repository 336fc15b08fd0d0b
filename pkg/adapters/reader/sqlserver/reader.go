package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/config"
	"github.com/reconlab/recon-engine/pkg/logging"
	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/retry"
	"github.com/reconlab/recon-engine/pkg/sqlguard"
)

// Reader ingests a SQL Server table or query result via database/sql.
// Declared types come from the driver's database type names.
type Reader struct {
	cfg    *Config
	name   string
	limits reader.Limits
	logger *zap.Logger
	db     *sql.DB
}

// New builds a sqlserver reader from a reader spec. The connection is
// opened lazily on the first Read.
func New(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (*Reader, error) {
	cfg, err := FromMap(spec.Options)
	if err != nil {
		return nil, fmt.Errorf("sqlserver reader: %w", err)
	}
	fallback := cfg.Table
	if fallback == "" {
		fallback = cfg.Database
	}
	return &Reader{
		cfg:    cfg,
		name:   reader.DatasetName(spec, fallback),
		limits: limits,
		logger: logger.Named("sqlserver-reader"),
	}, nil
}

// buildConnectionString builds a sqlserver URL with escaped credentials.
func buildConnectionString(cfg *Config) string {
	query := url.Values{}
	query.Add("database", cfg.Database)

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}

	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}

	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		config.ResolveHostForDocker(cfg.Host),
		cfg.Port,
		query.Encode(),
	)
}

func (r *Reader) connect(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	connStr := buildConnectionString(r.cfg)
	db, err := retry.Value(ctx, retry.DefaultPolicy(), func() (*sql.DB, error) {
		d, err := sql.Open("sqlserver", connStr)
		if err != nil {
			return nil, fmt.Errorf("open sqlserver connection: %w", err)
		}
		if err := d.PingContext(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("ping failed: %w", err)
		}
		return d, nil
	})
	if err != nil {
		// Driver errors can echo the connection string, credentials included.
		r.logger.Warn("Connection failed",
			zap.String("host", r.cfg.Host),
			zap.String("database", r.cfg.Database),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	r.db = db
	return db, nil
}

// buildQuery resolves the SQL to run and its named arguments. {{param}}
// placeholders substitute to $n first, then convert to SQL Server's @pn
// form; every parameter passes the injection check.
func (r *Reader) buildQuery() (string, []any, error) {
	if r.cfg.Table != "" {
		sqlText := "SELECT * FROM " + quoteIdentifier(r.cfg.Table)
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
	sqlText = sqlguard.MSSQLPlaceholders(sqlText)

	namedArgs := make([]any, len(args))
	for i, arg := range args {
		namedArgs[i] = sql.Named(fmt.Sprintf("p%d", i+1), arg)
	}
	return r.wrapLimit(sqlText), namedArgs, nil
}

func (r *Reader) wrapLimit(sqlText string) string {
	if limit := r.limits.FetchLimit(r.cfg.Limit); limit > 0 {
		return fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", limit, sqlText)
	}
	return sqlText
}

// quoteIdentifier bracket-quotes a possibly schema-qualified identifier.
func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = "[" + strings.ReplaceAll(part, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}

func (r *Reader) Read(ctx context.Context) (*models.Dataset, error) {
	sqlText, args, err := r.buildQuery()
	if err != nil {
		return nil, fmt.Errorf("sqlserver reader: %w", err)
	}

	db, err := r.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlserver reader: %w", err)
	}

	queryCtx := ctx
	if r.limits.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, r.limits.QueryTimeout)
		defer cancel()
	}

	r.logger.Debug("Executing query", zap.String("query", logging.SanitizeQuery(sqlText)))
	rows, err := db.QueryContext(queryCtx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlserver reader: execute query: %w", err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("sqlserver reader: read column types: %w", err)
	}
	columns := make([]models.Column, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = models.Column{
			Name:         ct.Name(),
			DeclaredType: ct.DatabaseTypeName(),
		}
	}

	rowCount := 0
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlserver reader: scan row: %w", err)
		}
		for i := range columns {
			columns[i].Values = append(columns[i].Values, reader.CellValue(raw[i]))
		}
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlserver reader: iterate rows: %w", err)
	}
	if err := r.limits.EnforceCap(rowCount); err != nil {
		return nil, fmt.Errorf("sqlserver reader: %w", err)
	}

	ds, err := models.NewDataset(r.name, columns)
	if err != nil {
		return nil, fmt.Errorf("sqlserver reader: %w", err)
	}

	r.logger.Debug("Read sqlserver dataset",
		zap.String("database", r.cfg.Database),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

// Close releases the connection if one was opened.
func (r *Reader) Close() error {
	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
}

var _ reader.Reader = (*Reader)(nil)
