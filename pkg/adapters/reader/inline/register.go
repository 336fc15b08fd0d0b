package inline

import (
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

func init() {
	reader.Register(reader.Registration{
		Info: reader.Info{
			Type:        "inline",
			DisplayName: "Inline",
			Description: "Dataset embedded in the run definition as columns and rows",
		},
		Factory: func(spec models.ReaderSpec, limits reader.Limits, logger *zap.Logger) (reader.Reader, error) {
			return New(spec, limits, logger)
		},
	})
}
