package models

import (
	"time"

	"github.com/google/uuid"
)

// DatasetInfo identifies one side of a reconciliation in report metadata.
type DatasetInfo struct {
	Name    string `json:"name"`
	Reader  string `json:"reader,omitempty"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// ReportSummary is the headline view of a finished run.
type ReportSummary struct {
	OverallStatus         CheckStatus `json:"overall_status"`
	MatchedRows           int         `json:"matched_rows"`
	SourceOnlyRows        int         `json:"source_only_rows"`
	TargetOnlyRows        int         `json:"target_only_rows"`
	ColumnsCompared       int         `json:"columns_compared"`
	ColumnsWithMismatches int         `json:"columns_with_mismatches"`
	ChecksPassed          int         `json:"checks_passed"`
	ChecksFailed          int         `json:"checks_failed"`
}

// ReportProfiles bundles the optional dataset profiles of both sides.
type ReportProfiles struct {
	Source DatasetProfile `json:"source"`
	Target DatasetProfile `json:"target"`
}

// Report is the full rendering of one reconciliation run: metadata, the
// accepted mapping, every check verdict, and the unmatched rows. It is the
// payload served by the report endpoint and the input to all exporters.
type Report struct {
	RunID       uuid.UUID        `json:"run_id"`
	Name        string           `json:"name,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
	Source      DatasetInfo      `json:"source"`
	Target      DatasetInfo      `json:"target"`
	Options     RunOptions       `json:"options"`
	JoinColumns []string         `json:"join_columns"`
	Mapping     Mapping          `json:"mapping"`
	Summary     ReportSummary    `json:"summary"`
	Result      ComparisonResult `json:"result"`
	Profiles    *ReportProfiles  `json:"profiles,omitempty"`
}
