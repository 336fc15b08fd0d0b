package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind identifies which variant of a Value is populated.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
	KindTime
	KindBool
)

// String returns the kind name for logging and diagnostics.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a single cell: a tagged union over the comparison domains
// (number, string, time, bool) plus an explicit null variant. Only the
// field matching Kind is meaningful.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Time time.Time
	Bool bool
}

// Null returns the null value.
func Null() Value {
	return Value{Kind: KindNull}
}

// Number returns a numeric value.
func Number(v float64) Value {
	return Value{Kind: KindNumber, Num: v}
}

// String returns a string value.
func String(v string) Value {
	return Value{Kind: KindString, Str: v}
}

// Timestamp returns a datetime value normalized to UTC.
func Timestamp(v time.Time) Value {
	return Value{Kind: KindTime, Time: v.UTC()}
}

// Boolean returns a boolean value.
func Boolean(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Canonical returns a stable textual form of the value. Equal values always
// produce equal strings, so the form is usable as a map key for join tuples
// and distinct sets. Numbers use the shortest round-trip formatting, times
// use RFC 3339 with nanoseconds in UTC.
func (v Value) Canonical() string {
	switch v.Kind {
	case KindNull:
		return "\x00"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return "\x00"
	}
}

// MarshalJSON encodes the value as the natural JSON scalar for its kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(v.Num)
	case KindString:
		return json.Marshal(v.Str)
	case KindTime:
		return json.Marshal(v.Time.UTC().Format(time.RFC3339Nano))
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar into a value. JSON strings stay
// strings; declared column types drive any later datetime/boolean coercion.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Number(t)
	case string:
		*v = String(t)
	case bool:
		*v = Boolean(t)
	default:
		return fmt.Errorf("unsupported cell value %T", raw)
	}
	return nil
}

// Column is a named, typed sequence of cells. DeclaredType is the type name
// reported by the producing reader ("bigint", "varchar", "timestamp", ...);
// it is matched against the type alias registry, never interpreted here.
type Column struct {
	Name         string  `json:"name"`
	DeclaredType string  `json:"type"`
	Values       []Value `json:"values"`
}

// ColumnSchema is the name/type pair of a column without its values.
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Dataset is an ordered sequence of columns with equal row counts, plus a
// display name. Datasets are built by readers and treated as immutable
// snapshots for the duration of a comparison run.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// NewDataset builds a dataset after verifying all columns share one row
// count. A dataset with zero columns is valid and has zero rows.
func NewDataset(name string, columns []Column) (*Dataset, error) {
	if len(columns) > 0 {
		rows := len(columns[0].Values)
		for _, c := range columns[1:] {
			if len(c.Values) != rows {
				return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), rows)
			}
		}
	}
	return &Dataset{Name: name, Columns: columns}, nil
}

// RowCount returns the number of rows in the dataset.
func (d *Dataset) RowCount() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Column returns the first column with the given name.
func (d *Dataset) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns column names in dataset order. Duplicate names are
// preserved as distinct positional entries.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema returns the name/type pairs of all columns in dataset order.
func (d *Dataset) Schema() []ColumnSchema {
	schema := make([]ColumnSchema, len(d.Columns))
	for i, c := range d.Columns {
		schema[i] = ColumnSchema{Name: c.Name, Type: c.DeclaredType}
	}
	return schema
}
