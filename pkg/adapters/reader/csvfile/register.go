package csvfile

import (
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

func init() {
	reader.Register(reader.Registration{
		Info: reader.Info{
			Type:        "csv",
			DisplayName: "CSV file",
			Description: "Local CSV, DAT, or TXT file with configurable delimiter and header",
		},
		Factory: func(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (reader.Reader, error) {
			return New(spec, limits, logger)
		},
	})
}
