package parquetfile

import (
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

func init() {
	reader.Register(reader.Registration{
		Info: reader.Info{
			Type:        "parquet",
			DisplayName: "Parquet file",
			Description: "Local parquet file with a flat schema",
		},
		Factory: func(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (reader.Reader, error) {
			return New(spec, limits, logger)
		},
	})
}
