package objectstore

import (
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

func init() {
	reader.Register(reader.Registration{
		Info: reader.Info{
			Type:        "object",
			DisplayName: "Object storage",
			Description: "CSV, zip, or parquet object in S3-compatible storage",
		},
		Factory: func(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (reader.Reader, error) {
			return New(spec, limits, logger)
		},
	})
}
