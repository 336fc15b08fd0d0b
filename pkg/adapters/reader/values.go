package reader

import (
	"fmt"
	"time"

	"github.com/reconlab/recon-engine/pkg/models"
)

// CellValue converts a dynamically typed cell from a database driver, file
// decoder, or JSON payload into the engine's tagged value. The mapping is
// total: anything unrecognized renders through fmt rather than failing, so
// a single odd cell cannot abort an ingest.
func CellValue(v any) models.Value {
	switch x := v.(type) {
	case nil:
		return models.Null()
	case bool:
		return models.Boolean(x)
	case int:
		return models.Number(float64(x))
	case int8:
		return models.Number(float64(x))
	case int16:
		return models.Number(float64(x))
	case int32:
		return models.Number(float64(x))
	case int64:
		return models.Number(float64(x))
	case uint:
		return models.Number(float64(x))
	case uint8:
		return models.Number(float64(x))
	case uint16:
		return models.Number(float64(x))
	case uint32:
		return models.Number(float64(x))
	case uint64:
		return models.Number(float64(x))
	case float32:
		return models.Number(float64(x))
	case float64:
		return models.Number(x)
	case string:
		return models.String(x)
	case []byte:
		return models.String(string(x))
	case time.Time:
		return models.Timestamp(x)
	case fmt.Stringer:
		return models.String(x.String())
	default:
		return models.String(fmt.Sprintf("%v", x))
	}
}

// TransposeRows builds column-major storage from row-major records. names
// and types are parallel; every row must carry one cell per column.
func TransposeRows(names, types []string, rows [][]models.Value) ([]models.Column, error) {
	if len(types) != len(names) {
		return nil, fmt.Errorf("have %d column types for %d columns", len(types), len(names))
	}
	columns := make([]models.Column, len(names))
	for i := range names {
		columns[i] = models.Column{
			Name:         names[i],
			DeclaredType: types[i],
			Values:       make([]models.Value, len(rows)),
		}
	}
	for r, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r+1, len(row), len(names))
		}
		for c := range names {
			columns[c].Values[r] = row[c]
		}
	}
	return columns, nil
}
