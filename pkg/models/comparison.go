package models

import "strings"

// CheckStatus is the verdict of a single reconciliation check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusFail CheckStatus = "FAIL"
)

// StatusFrom converts a boolean verdict into a check status.
func StatusFrom(ok bool) CheckStatus {
	if ok {
		return StatusPass
	}
	return StatusFail
}

// RowKey is the canonical encoding of a join key tuple. Keys are built by
// joining the canonical cell texts of the join columns, so equal tuples
// always yield equal keys.
type RowKey string

// keySeparator joins tuple parts. Canonical number, time, and boolean
// texts never contain the unit separator; string join keys are assumed not
// to carry control characters.
const keySeparator = "\x1f"

// KeyFrom builds the row key for a tuple of join cell values.
func KeyFrom(values []Value) RowKey {
	if len(values) == 1 {
		return RowKey(values[0].Canonical())
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Canonical()
	}
	return RowKey(strings.Join(parts, keySeparator))
}

// RowOrigin marks which dataset an unmatched row came from.
type RowOrigin string

const (
	OriginSourceOnly RowOrigin = "source_only"
	OriginTargetOnly RowOrigin = "target_only"
)

// CellDiff is one sampled mismatch: the row key plus both cell values.
type CellDiff struct {
	Key    RowKey `json:"key"`
	Source Value  `json:"source"`
	Target Value  `json:"target"`
}

// ColumnStats summarizes the cell-level comparison of one mapped column
// over the matched rows. Two nulls compare equal; a null against a value is
// a mismatch. Samples holds at most the configured sample size.
type ColumnStats struct {
	Column                 string      `json:"column"`
	Compared               int         `json:"compared"`
	Mismatches             int         `json:"mismatches"`
	MismatchRate           float64     `json:"mismatch_rate"`
	SourceCoercionFailures int         `json:"source_coercion_failures,omitempty"`
	TargetCoercionFailures int         `json:"target_coercion_failures,omitempty"`
	Samples                []CellDiff  `json:"samples,omitempty"`
	Status                 CheckStatus `json:"status"`
}

// AggregateCheck compares the sums of one numeric column across all rows
// of each dataset, unmatched rows included.
type AggregateCheck struct {
	Column     string      `json:"column"`
	SourceSum  float64     `json:"source_sum"`
	TargetSum  float64     `json:"target_sum"`
	Difference float64     `json:"difference"`
	Status     CheckStatus `json:"status"`
}

// DistinctCheck compares the distinct values of one non-numeric column
// across all rows of each dataset. Cardinality and value-set agreement are
// separate verdicts: equal counts over different values is a real case.
type DistinctCheck struct {
	Column         string      `json:"column"`
	SourceDistinct int         `json:"source_distinct"`
	TargetDistinct int         `json:"target_distinct"`
	CountStatus    CheckStatus `json:"count_status"`
	ValuesStatus   CheckStatus `json:"values_status"`
	OnlyInSource   []string    `json:"only_in_source,omitempty"`
	OnlyInTarget   []string    `json:"only_in_target,omitempty"`
}

// RowCountCheck compares total row counts. Any difference fails.
type RowCountCheck struct {
	SourceRows int         `json:"source_rows"`
	TargetRows int         `json:"target_rows"`
	Status     CheckStatus `json:"status"`
}

// DifferenceRow is one row present in only one dataset after the join.
// Cells are keyed by source-side column names, the shared vocabulary after
// mapping renames.
type DifferenceRow struct {
	Key    RowKey           `json:"key"`
	Origin RowOrigin        `json:"origin"`
	Cells  map[string]Value `json:"cells"`
}

// ComparisonResult is the complete outcome of one comparison run.
// ProjectedColumns lists the compared columns by source name in mapping
// order; exporters use it to render cells in a stable order.
type ComparisonResult struct {
	SourceRows       int              `json:"source_rows"`
	TargetRows       int              `json:"target_rows"`
	MatchedRows      int              `json:"matched_rows"`
	SourceOnlyRows   int              `json:"source_only_rows"`
	TargetOnlyRows   int              `json:"target_only_rows"`
	ProjectedColumns []string         `json:"projected_columns"`
	Columns          []ColumnStats    `json:"columns"`
	Aggregates       []AggregateCheck `json:"aggregates"`
	Distincts        []DistinctCheck  `json:"distincts"`
	RowCount         RowCountCheck    `json:"row_count"`
	Differences      []DifferenceRow  `json:"differences,omitempty"`
}

// ChecksPassed counts the passing verdicts across all check families.
func (r *ComparisonResult) ChecksPassed() int {
	passed, _ := r.tallyChecks()
	return passed
}

// ChecksFailed counts the failing verdicts across all check families.
func (r *ComparisonResult) ChecksFailed() int {
	_, failed := r.tallyChecks()
	return failed
}

func (r *ComparisonResult) tallyChecks() (passed, failed int) {
	count := func(s CheckStatus) {
		if s == StatusPass {
			passed++
		} else {
			failed++
		}
	}
	for _, c := range r.Columns {
		count(c.Status)
	}
	for _, a := range r.Aggregates {
		count(a.Status)
	}
	for _, d := range r.Distincts {
		count(d.CountStatus)
		count(d.ValuesStatus)
	}
	count(r.RowCount.Status)
	return passed, failed
}
