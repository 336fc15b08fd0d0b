package models

// FailureCode identifies why a mapping or join configuration cannot be
// compared. Codes are stable API values.
type FailureCode string

const (
	FailureNoValidMappings      FailureCode = "no_valid_mappings"
	FailureMissingTargetColumns FailureCode = "missing_target_columns"
	FailureIncompatibleTypes    FailureCode = "incompatible_types"
	FailureDuplicateTargetClaim FailureCode = "duplicate_target_claim"
	FailureNoJoinColumns        FailureCode = "no_join_columns"
	FailureJoinColumnUnmapped   FailureCode = "join_column_unmapped"
	FailureNullInJoinColumn     FailureCode = "null_in_join_column"
	FailureDuplicateJoinKey     FailureCode = "duplicate_join_key"
	FailureUnknownSourceColumn  FailureCode = "unknown_source_column"
)

// Dataset side markers used in validation failures.
const (
	SideSource = "source"
	SideTarget = "target"
)

// ValidationFailure is one reason validation rejected the run
// configuration. Columns carries the offending column names when the code
// is column-specific; Side is set when the failure is attributable to one
// dataset.
type ValidationFailure struct {
	Code    FailureCode `json:"code"`
	Columns []string    `json:"columns,omitempty"`
	Side    string      `json:"side,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// ValidationResult is the verdict of mapping and join validation. Invalid
// configurations are reported here, never as errors: an error return is
// reserved for the machinery itself failing.
type ValidationResult struct {
	OK       bool                `json:"ok"`
	Failures []ValidationFailure `json:"failures,omitempty"`
}

// Add records a failure and marks the result invalid.
func (r *ValidationResult) Add(f ValidationFailure) {
	r.OK = false
	r.Failures = append(r.Failures, f)
}

// HasCode reports whether any recorded failure carries the given code.
func (r *ValidationResult) HasCode(code FailureCode) bool {
	for _, f := range r.Failures {
		if f.Code == code {
			return true
		}
	}
	return false
}
