package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/apperrors"
	"github.com/reconlab/recon-engine/pkg/models"
)

func sampleReport(withProfiles bool) *models.Report {
	report := &models.Report{
		RunID:       uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Name:        "daily recon",
		GeneratedAt: time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC),
		Source:      models.DatasetInfo{Name: "orders", Reader: "postgres", Rows: 3, Columns: 3},
		Target:      models.DatasetInfo{Name: "orders_dw", Reader: "csv", Rows: 4, Columns: 3},
		Options:     models.DefaultRunOptions(),
		JoinColumns: []string{"id"},
		Mapping: models.Mapping{Entries: []models.MappingEntry{
			{Source: "id", Target: "order_id", Exact: true},
			{Source: "amount", Target: "amt", Score: 0.9},
			{Source: "status", Target: "status", Exact: true},
		}},
		Summary: models.ReportSummary{
			OverallStatus:         models.StatusFail,
			MatchedRows:           2,
			SourceOnlyRows:        1,
			TargetOnlyRows:        2,
			ColumnsCompared:       3,
			ColumnsWithMismatches: 1,
			ChecksPassed:          2,
			ChecksFailed:          4,
		},
		Result: models.ComparisonResult{
			SourceRows:       3,
			TargetRows:       4,
			MatchedRows:      2,
			SourceOnlyRows:   1,
			TargetOnlyRows:   2,
			ProjectedColumns: []string{"id", "amount", "status"},
			Columns: []models.ColumnStats{
				{Column: "id", Compared: 2, Status: models.StatusPass},
				{Column: "amount", Compared: 2, Mismatches: 1, MismatchRate: 0.5, Status: models.StatusFail},
			},
			Aggregates: []models.AggregateCheck{
				{Column: "amount", SourceSum: 100.5, TargetSum: 99.5, Difference: 1, Status: models.StatusFail},
			},
			Distincts: []models.DistinctCheck{
				{
					Column: "status", SourceDistinct: 2, TargetDistinct: 2,
					CountStatus: models.StatusPass, ValuesStatus: models.StatusFail,
					OnlyInSource: []string{"void"},
				},
			},
			RowCount: models.RowCountCheck{SourceRows: 3, TargetRows: 4, Status: models.StatusFail},
			Differences: []models.DifferenceRow{
				{
					Key:    models.RowKey("4"),
					Origin: models.OriginSourceOnly,
					Cells: map[string]models.Value{
						"id":     models.Number(4),
						"amount": models.Number(250),
						"status": models.String("void"),
					},
				},
				{
					Key:    models.RowKey("5"),
					Origin: models.OriginTargetOnly,
					Cells: map[string]models.Value{
						"id":     models.Number(5),
						"amount": models.Null(),
						"status": models.String("open"),
					},
				},
			},
		},
	}

	if withProfiles {
		report.Profiles = &models.ReportProfiles{
			Source: models.DatasetProfile{
				Dataset: "orders",
				Rows:    3,
				Columns: []models.ColumnProfile{
					{
						Name: "amount", DeclaredType: "decimal", Count: 3, Distinct: 3,
						Numeric: &models.NumericProfile{Min: 1, Max: 250, Mean: 90, StdDev: 10, P25: 10, P50: 20, P75: 100},
					},
					{
						Name: "status", DeclaredType: "varchar", Count: 3, Distinct: 2,
						String: &models.StringProfile{MinLength: 4, MaxLength: 6},
					},
				},
			},
			Target: models.DatasetProfile{
				Dataset: "orders_dw",
				Rows:    4,
				Columns: []models.ColumnProfile{
					{Name: "amt", DeclaredType: "double", Count: 4, Nulls: 1, NullFraction: 0.25, Distinct: 3},
				},
			},
		}
	}
	return report
}

func TestExport_JSONArtifact(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir, zap.NewNop())
	report := sampleReport(false)

	path, err := e.Export(report, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, report.RunID.String(), filepath.Base(filepath.Dir(path)))
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "recon_report_"), "artifact name %q", base)
	assert.True(t, strings.HasSuffix(base, ".json"), "artifact name %q", base)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, 4, decoded.Summary.ChecksFailed)
	assert.Len(t, decoded.Result.Differences, 2)
}

func TestExport_UnknownFormat(t *testing.T) {
	e := NewExporter(t.TempDir(), zap.NewNop())

	_, err := e.Export(sampleReport(false), "pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownFormat)
	assert.Contains(t, err.Error(), "pdf")
}

func TestExport_WorkbookSheets(t *testing.T) {
	e := NewExporter(t.TempDir(), zap.NewNop())
	report := sampleReport(false)

	path, err := e.Export(report, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		sheetSummary, sheetColumns, sheetAggregates, sheetDistincts, sheetDiffs,
	}, f.GetSheetList())

	cell := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Metric", cell(sheetSummary, "A1"))
	assert.Equal(t, "Run Name", cell(sheetSummary, "A3"))
	assert.Equal(t, "daily recon", cell(sheetSummary, "B3"))
	assert.Equal(t, "Overall Status", cell(sheetSummary, "A8"))
	assert.Equal(t, "FAIL", cell(sheetSummary, "B8"))
	assert.Equal(t, "2 checks passed, 4 checks failed", cell(sheetSummary, "B9"))

	assert.Equal(t, "id", cell(sheetColumns, "A2"))
	assert.Equal(t, "order_id", cell(sheetColumns, "B2"))
	assert.Equal(t, "PASS", cell(sheetColumns, "H2"))
	assert.Equal(t, "FAIL", cell(sheetColumns, "H3"))

	assert.Equal(t, "amount", cell(sheetAggregates, "A2"))
	assert.Equal(t, "amt", cell(sheetAggregates, "B2"))
	assert.Equal(t, "FAIL", cell(sheetAggregates, "F2"))

	assert.Equal(t, "PASS", cell(sheetDistincts, "E2"))
	assert.Equal(t, "FAIL", cell(sheetDistincts, "F2"))
	assert.Equal(t, "void", cell(sheetDistincts, "G2"))

	assert.Equal(t, "Key", cell(sheetDiffs, "A1"))
	assert.Equal(t, "id", cell(sheetDiffs, "C1"))
	assert.Equal(t, "source_only", cell(sheetDiffs, "B2"))
	assert.Equal(t, "void", cell(sheetDiffs, "E2"))
}

func TestExport_WorkbookProfilesSheet(t *testing.T) {
	e := NewExporter(t.TempDir(), zap.NewNop())

	path, err := e.Export(sampleReport(true), FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.Contains(t, f.GetSheetList(), sheetProfiles)

	v, err := f.GetCellValue(sheetProfiles, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Source: orders (3 rows)", v)

	v, err = f.GetCellValue(sheetProfiles, "A3")
	require.NoError(t, err)
	assert.Equal(t, "amount", v)
}

func TestExport_WorkbookNoDifferences(t *testing.T) {
	e := NewExporter(t.TempDir(), zap.NewNop())
	report := sampleReport(false)
	report.Result.Differences = nil

	path, err := e.Export(report, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheetDiffs, "A1")
	require.NoError(t, err)
	assert.Equal(t, "No row differences (2 rows matched)", v)
}

func TestExport_ZipBundle(t *testing.T) {
	e := NewExporter(t.TempDir(), zap.NewNop())
	report := sampleReport(false)

	path, err := e.Export(report, FormatZip)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".zip"))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 3)

	byExt := map[string]*zip.File{}
	for _, f := range zr.File {
		byExt[filepath.Ext(f.Name)] = f
	}
	require.Contains(t, byExt, ".xlsx")
	require.Contains(t, byExt, ".json")
	require.Contains(t, byExt, ".csv")

	rc, err := byExt[".json"].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	var decoded models.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)

	rc, err = byExt[".csv"].Open()
	require.NoError(t, err)
	records, err := csv.NewReader(rc).ReadAll()
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.Len(t, records, 3)
	assert.Equal(t, []string{"key", "origin", "id", "amount", "status"}, records[0])
	assert.Equal(t, []string{"4", "source_only", "4", "250", "void"}, records[1])
	assert.Equal(t, []string{"5", "target_only", "5", "", "open"}, records[2])
}

func TestExportInto_OverridesBaseDir(t *testing.T) {
	base := t.TempDir()
	override := t.TempDir()
	e := NewExporter(base, zap.NewNop())

	path, err := e.ExportInto(override, sampleReport(false), FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, override), "path %q not under %q", path, override)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCountNoun(t *testing.T) {
	assert.Equal(t, "1 check", countNoun(1, "check"))
	assert.Equal(t, "3 checks", countNoun(3, "check"))
	assert.Equal(t, "0 rows", countNoun(0, "row"))
	assert.Equal(t, "2 row differences", countNoun(2, "row difference"))
	assert.Equal(t, "1 failing check", countNoun(1, "failing check"))
	assert.Equal(t, "2 failing checks", countNoun(2, "failing check"))
}

func TestKeyText(t *testing.T) {
	assert.Equal(t, "a|b", keyText(models.RowKey("a\x1fb")))
	assert.Equal(t, "42", keyText(models.RowKey("42")))
	assert.Equal(t, "", keyText(models.RowKey("\x00")))
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "42", cellText(models.Number(42)))
	assert.Equal(t, "1.5", cellText(models.Number(1.5)))
	assert.Equal(t, "true", cellText(models.Boolean(true)))
	assert.Equal(t, "open", cellText(models.String("open")))
	assert.Equal(t, "", cellText(models.Null()))
	assert.Equal(t, "2024-05-02T10:30:00Z",
		cellText(models.Timestamp(time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC))))
}
