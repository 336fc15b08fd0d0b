package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/reconlab/recon-engine/pkg/models"
)

// ReportParams carries everything BuildReport needs to describe one
// finished run. Profiles is optional; the other fields are required.
type ReportParams struct {
	RunID        uuid.UUID
	Name         string
	Source       *models.Dataset
	SourceReader string
	Target       *models.Dataset
	TargetReader string
	Mapping      models.Mapping
	JoinColumns  []string
	Options      models.RunOptions
	Result       *models.ComparisonResult
	Profiles     *models.ReportProfiles
}

// BuildReport assembles the serializable report for one finished run. It
// is a pure transformation over the comparison result; no I/O happens
// here, exporters render the returned report into files.
func BuildReport(params ReportParams) *models.Report {
	result := params.Result

	columnsWithMismatches := 0
	for _, stats := range result.Columns {
		if stats.Mismatches > 0 {
			columnsWithMismatches++
		}
	}

	return &models.Report{
		RunID:       params.RunID,
		Name:        params.Name,
		GeneratedAt: time.Now().UTC(),
		Source: models.DatasetInfo{
			Name:    params.Source.Name,
			Reader:  params.SourceReader,
			Rows:    params.Source.RowCount(),
			Columns: len(params.Source.Columns),
		},
		Target: models.DatasetInfo{
			Name:    params.Target.Name,
			Reader:  params.TargetReader,
			Rows:    params.Target.RowCount(),
			Columns: len(params.Target.Columns),
		},
		Options:     params.Options,
		JoinColumns: params.JoinColumns,
		Mapping:     params.Mapping,
		Summary: models.ReportSummary{
			OverallStatus:         models.StatusFrom(result.ChecksFailed() == 0),
			MatchedRows:           result.MatchedRows,
			SourceOnlyRows:        result.SourceOnlyRows,
			TargetOnlyRows:        result.TargetOnlyRows,
			ColumnsCompared:       len(result.ProjectedColumns),
			ColumnsWithMismatches: columnsWithMismatches,
			ChecksPassed:          result.ChecksPassed(),
			ChecksFailed:          result.ChecksFailed(),
		},
		Result:   *result,
		Profiles: params.Profiles,
	}
}
