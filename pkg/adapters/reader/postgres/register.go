package postgres

import (
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

func init() {
	reader.Register(reader.Registration{
		Info: reader.Info{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Table or SQL query against a PostgreSQL database",
		},
		Factory: func(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (reader.Reader, error) {
			return New(spec, limits, logger)
		},
	})
}
