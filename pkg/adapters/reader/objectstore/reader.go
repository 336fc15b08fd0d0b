package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/adapters/reader/csvfile"
	"github.com/reconlab/recon-engine/pkg/adapters/reader/parquetfile"
	"github.com/reconlab/recon-engine/pkg/adapters/reader/zipfile"
	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/retry"
)

// Reader ingests an object from S3-compatible storage. The object downloads
// to a temporary file and the matching file reader decodes it, so csv, zip,
// and parquet objects behave exactly like their local counterparts.
type Reader struct {
	cfg     *Config
	options map[string]any
	name    string
	limits  reader.Limits
	logger  *zap.Logger
}

// New builds an object storage reader from a reader spec.
func New(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (*Reader, error) {
	cfg, err := FromMap(spec.Options)
	if err != nil {
		return nil, fmt.Errorf("object reader: %w", err)
	}
	base := filepath.Base(cfg.Key)
	fallback := strings.TrimSuffix(base, filepath.Ext(base))
	return &Reader{
		cfg:     cfg,
		options: spec.Options,
		name:    reader.DatasetName(spec, fallback),
		limits:  limits,
		logger:  logger.Named("object-reader"),
	}, nil
}

// newClient builds a minio client from the endpoint URL. The scheme decides
// TLS; a bare host:port endpoint means plain HTTP (local minio).
func newClient(cfg *Config) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	secure := false
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
}

func (r *Reader) Read(ctx context.Context) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := newClient(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("object reader: %w", err)
	}

	tmpPath, err := r.download(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("object reader: %w", err)
	}
	defer os.Remove(tmpPath)

	inner, err := r.innerReader(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("object reader: %w", err)
	}
	defer inner.Close()

	ds, err := inner.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("object reader: %s/%s: %w", r.cfg.Bucket, r.cfg.Key, err)
	}

	r.logger.Debug("Read object",
		zap.String("bucket", r.cfg.Bucket),
		zap.String("key", r.cfg.Key),
		zap.Int("rows", ds.RowCount()))
	return ds, nil
}

func (r *Reader) Close() error { return nil }

// download fetches the object into a temp file, retrying transient
// failures. The extension carries over so the inner reader can pick its
// delimiter defaults.
func (r *Reader) download(ctx context.Context, client *minio.Client) (string, error) {
	tmp, err := os.CreateTemp("", "recon-object-*"+filepath.Ext(r.cfg.Key))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()

	err = retry.OnTransient(ctx, retry.DefaultPolicy(), func() error {
		obj, err := client.GetObject(ctx, r.cfg.Bucket, r.cfg.Key, minio.GetObjectOptions{})
		if err != nil {
			return fmt.Errorf("get object %s/%s: %w", r.cfg.Bucket, r.cfg.Key, err)
		}
		defer obj.Close()

		info, err := obj.Stat()
		if err != nil {
			return fmt.Errorf("stat object %s/%s: %w", r.cfg.Bucket, r.cfg.Key, err)
		}
		if maxBytes := int64(r.cfg.MaxObjectMB) << 20; info.Size > maxBytes {
			return fmt.Errorf("object %s/%s is %d MB, exceeds the %d MB limit",
				r.cfg.Bucket, r.cfg.Key, info.Size>>20, r.cfg.MaxObjectMB)
		}

		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := tmp.Truncate(0); err != nil {
			return err
		}
		if _, err := io.Copy(tmp, obj); err != nil {
			return fmt.Errorf("download object %s/%s: %w", r.cfg.Bucket, r.cfg.Key, err)
		}
		return nil
	})
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// innerReader builds the file reader matching the object's extension,
// forwarding decode options (delimiter, header, limit) from the spec.
func (r *Reader) innerReader(path string) (reader.Reader, error) {
	forward := make(map[string]any, len(r.options))
	for k, v := range r.options {
		switch k {
		case "endpoint", "access_key", "secret_key", "bucket", "key", "region", "max_object_mb":
		default:
			forward[k] = v
		}
	}
	forward["path"] = path

	spec := models.ReaderSpec{Name: r.name, Options: forward}
	switch strings.ToLower(filepath.Ext(r.cfg.Key)) {
	case ".csv", ".dat", ".txt":
		spec.Type = "csv"
		return csvfile.New(spec, r.limits, r.logger)
	case ".zip":
		spec.Type = "zip"
		return zipfile.New(spec, r.limits, r.logger)
	case ".parquet":
		spec.Type = "parquet"
		return parquetfile.New(spec, r.limits, r.logger)
	default:
		return nil, fmt.Errorf("unsupported object extension %q", filepath.Ext(r.cfg.Key))
	}
}

var _ reader.Reader = (*Reader)(nil)
