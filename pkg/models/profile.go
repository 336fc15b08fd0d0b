package models

// NumericProfile holds summary statistics over the non-null numeric cells
// of a column.
type NumericProfile struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
}

// StringProfile holds length statistics over the non-null string cells of
// a column.
type StringProfile struct {
	MinLength int `json:"min_length"`
	MaxLength int `json:"max_length"`
}

// ColumnProfile describes one column of a profiled dataset. Numeric and
// String are populated only for columns of the matching type group and
// only when at least one non-null cell exists.
type ColumnProfile struct {
	Name         string          `json:"name"`
	DeclaredType string          `json:"type"`
	Count        int             `json:"count"`         // total rows
	Nulls        int             `json:"nulls"`         // null cells
	NullFraction float64         `json:"null_fraction"` // nulls / count, 0 for empty columns
	Distinct     int             `json:"distinct"`      // distinct non-null values
	Numeric      *NumericProfile `json:"numeric,omitempty"`
	String       *StringProfile  `json:"string,omitempty"`
}

// DatasetProfile is the per-column profile of a whole dataset.
type DatasetProfile struct {
	Dataset string          `json:"dataset"`
	Rows    int             `json:"rows"`
	Columns []ColumnProfile `json:"columns"`
}
