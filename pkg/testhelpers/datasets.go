package testhelpers

import (
	"github.com/reconlab/recon-engine/pkg/models"
)

// Column builds a typed column for test datasets.
func Column(name, declaredType string, values ...models.Value) models.Column {
	return models.Column{Name: name, DeclaredType: declaredType, Values: values}
}

// MustDataset builds a dataset and panics on ragged columns. Tests use it
// to keep fixture literals compact.
func MustDataset(name string, columns ...models.Column) *models.Dataset {
	ds, err := models.NewDataset(name, columns)
	if err != nil {
		panic(err)
	}
	return ds
}

// Numbers wraps float64 literals as column values.
func Numbers(values ...float64) []models.Value {
	out := make([]models.Value, len(values))
	for i, v := range values {
		out[i] = models.Number(v)
	}
	return out
}

// Strings wraps string literals as column values.
func Strings(values ...string) []models.Value {
	out := make([]models.Value, len(values))
	for i, v := range values {
		out[i] = models.String(v)
	}
	return out
}
