package inline

import (
	"fmt"

	"github.com/reconlab/recon-engine/pkg/models"
)

// Config holds the inline dataset: a column schema plus row-major cells,
// exactly as they appear in the run definition.
type Config struct {
	Columns []models.ColumnSchema
	Rows    [][]any
}

// FromMap builds the config from a reader spec options map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	rawColumns, ok := config["columns"]
	if !ok {
		return nil, fmt.Errorf("columns is required for the inline reader")
	}
	columnList, ok := rawColumns.([]any)
	if !ok {
		return nil, fmt.Errorf("columns must be a list of {name, type} entries")
	}
	if len(columnList) == 0 {
		return nil, fmt.Errorf("columns must not be empty")
	}
	for i, item := range columnList {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("columns[%d] must be a {name, type} entry", i)
		}
		name, _ := entry["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("columns[%d]: name is required", i)
		}
		typ, _ := entry["type"].(string)
		if typ == "" {
			typ = "string"
		}
		cfg.Columns = append(cfg.Columns, models.ColumnSchema{Name: name, Type: typ})
	}

	if rawRows, ok := config["rows"]; ok {
		rowList, ok := rawRows.([]any)
		if !ok {
			return nil, fmt.Errorf("rows must be a list of rows")
		}
		for i, item := range rowList {
			row, ok := item.([]any)
			if !ok {
				return nil, fmt.Errorf("rows[%d] must be a list of cells", i)
			}
			cfg.Rows = append(cfg.Rows, row)
		}
	}

	return cfg, nil
}
