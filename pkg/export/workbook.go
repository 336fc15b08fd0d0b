package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/reconlab/recon-engine/pkg/models"
)

const (
	sheetSummary    = "Summary"
	sheetColumns    = "Column Stats"
	sheetAggregates = "Aggregate Checks"
	sheetDistincts  = "Distinct Checks"
	sheetDiffs      = "Row Differences"
	sheetProfiles   = "Profiles"

	passFill = "90EE90"
	failFill = "FFB6C6"
)

type workbookStyles struct {
	header int
	pass   int
	fail   int
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return workbookStyles{}, err
	}
	pass, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{passFill}, Pattern: 1},
	})
	if err != nil {
		return workbookStyles{}, err
	}
	fail, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{failFill}, Pattern: 1},
	})
	if err != nil {
		return workbookStyles{}, err
	}
	return workbookStyles{header: header, pass: pass, fail: fail}, nil
}

func (s workbookStyles) forStatus(status models.CheckStatus) int {
	if status == models.StatusPass {
		return s.pass
	}
	return s.fail
}

// sheetWriter appends rows to one sheet, keeping the first error so sheet
// builders can write straight-line code.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func newSheetWriter(f *excelize.File, sheet string) *sheetWriter {
	return &sheetWriter{f: f, sheet: sheet, row: 1}
}

// writeRow appends one row and returns its 1-based index.
func (w *sheetWriter) writeRow(values ...any) int {
	row := w.row
	if w.err == nil {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err == nil {
			err = w.f.SetSheetRow(w.sheet, cell, &values)
		}
		w.err = err
	}
	w.row++
	return row
}

func (w *sheetWriter) styleCell(row, col, styleID int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = w.f.SetCellStyle(w.sheet, cell, cell, styleID)
	}
	w.err = err
}

func (w *sheetWriter) styleRow(row, firstCol, lastCol, styleID int) {
	for col := firstCol; col <= lastCol; col++ {
		w.styleCell(row, col, styleID)
	}
}

func (w *sheetWriter) skipRow() {
	w.row++
}

// buildWorkbook renders the report as a multi-sheet workbook. The Profiles
// sheet appears only when the run profiled its datasets.
func buildWorkbook(report *models.Report) (*excelize.File, error) {
	f := excelize.NewFile()

	styles, err := newWorkbookStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("workbook styles: %w", err)
	}
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("workbook sheets: %w", err)
	}

	steps := []func(*excelize.File, workbookStyles, *models.Report) error{
		writeSummarySheet,
		writeColumnStatsSheet,
		writeAggregatesSheet,
		writeDistinctsSheet,
		writeDifferencesSheet,
	}
	if report.Profiles != nil {
		steps = append(steps, writeProfilesSheet)
	}
	for _, step := range steps {
		if err := step(f, styles, report); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSummarySheet(f *excelize.File, styles workbookStyles, report *models.Report) error {
	w := newSheetWriter(f, sheetSummary)

	header := w.writeRow("Metric", "Value")
	w.styleRow(header, 1, 2, styles.header)

	w.writeRow("Run ID", report.RunID.String())
	if report.Name != "" {
		w.writeRow("Run Name", report.Name)
	}
	w.writeRow("Generated At", report.GeneratedAt.UTC().Format(time.RFC3339))
	w.writeRow("Source Dataset", datasetLabel(report.Source))
	w.writeRow("Target Dataset", datasetLabel(report.Target))
	w.writeRow("Join Columns", strings.Join(report.JoinColumns, ", "))

	summary := report.Summary
	statusRow := w.writeRow("Overall Status", string(summary.OverallStatus))
	w.styleCell(statusRow, 2, styles.forStatus(summary.OverallStatus))
	w.writeRow("Checks", fmt.Sprintf("%s passed, %s failed",
		countNoun(summary.ChecksPassed, "check"), countNoun(summary.ChecksFailed, "check")))
	w.writeRow("Matched Rows", summary.MatchedRows)
	w.writeRow("Source-Only Rows", summary.SourceOnlyRows)
	w.writeRow("Target-Only Rows", summary.TargetOnlyRows)
	w.writeRow("Columns Compared", summary.ColumnsCompared)
	w.writeRow("Columns With Mismatches", summary.ColumnsWithMismatches)

	if w.err != nil {
		return fmt.Errorf("summary sheet: %w", w.err)
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(sheetSummary, "B", "B", 48)
}

func datasetLabel(info models.DatasetInfo) string {
	label := info.Name
	if info.Reader != "" {
		label = fmt.Sprintf("%s (%s)", info.Name, info.Reader)
	}
	return fmt.Sprintf("%s, %s, %s",
		label, countNoun(info.Rows, "row"), countNoun(info.Columns, "column"))
}

func writeColumnStatsSheet(f *excelize.File, styles workbookStyles, report *models.Report) error {
	if _, err := f.NewSheet(sheetColumns); err != nil {
		return err
	}
	w := newSheetWriter(f, sheetColumns)

	header := w.writeRow("Source Column", "Target Column", "Compared", "Mismatches",
		"Mismatch Rate", "Source Coercion Failures", "Target Coercion Failures", "Status")
	w.styleRow(header, 1, 8, styles.header)

	for _, c := range report.Result.Columns {
		target, _ := report.Mapping.TargetFor(c.Column)
		row := w.writeRow(c.Column, target, c.Compared, c.Mismatches, c.MismatchRate,
			c.SourceCoercionFailures, c.TargetCoercionFailures, string(c.Status))
		w.styleCell(row, 8, styles.forStatus(c.Status))
	}

	if w.err != nil {
		return fmt.Errorf("column stats sheet: %w", w.err)
	}
	return f.SetColWidth(sheetColumns, "A", "H", 20)
}

func writeAggregatesSheet(f *excelize.File, styles workbookStyles, report *models.Report) error {
	if _, err := f.NewSheet(sheetAggregates); err != nil {
		return err
	}
	w := newSheetWriter(f, sheetAggregates)

	header := w.writeRow("Source Column", "Target Column", "Source Sum", "Target Sum",
		"Difference", "Status")
	w.styleRow(header, 1, 6, styles.header)

	for _, a := range report.Result.Aggregates {
		target, _ := report.Mapping.TargetFor(a.Column)
		row := w.writeRow(a.Column, target, a.SourceSum, a.TargetSum, a.Difference, string(a.Status))
		w.styleCell(row, 6, styles.forStatus(a.Status))
	}

	if w.err != nil {
		return fmt.Errorf("aggregate checks sheet: %w", w.err)
	}
	return f.SetColWidth(sheetAggregates, "A", "F", 18)
}

func writeDistinctsSheet(f *excelize.File, styles workbookStyles, report *models.Report) error {
	if _, err := f.NewSheet(sheetDistincts); err != nil {
		return err
	}
	w := newSheetWriter(f, sheetDistincts)

	header := w.writeRow("Source Column", "Target Column", "Source Distinct", "Target Distinct",
		"Count Status", "Values Status", "Only In Source", "Only In Target")
	w.styleRow(header, 1, 8, styles.header)

	for _, d := range report.Result.Distincts {
		target, _ := report.Mapping.TargetFor(d.Column)
		row := w.writeRow(d.Column, target, d.SourceDistinct, d.TargetDistinct,
			string(d.CountStatus), string(d.ValuesStatus),
			strings.Join(d.OnlyInSource, ", "), strings.Join(d.OnlyInTarget, ", "))
		w.styleCell(row, 5, styles.forStatus(d.CountStatus))
		w.styleCell(row, 6, styles.forStatus(d.ValuesStatus))
	}

	if w.err != nil {
		return fmt.Errorf("distinct checks sheet: %w", w.err)
	}
	return f.SetColWidth(sheetDistincts, "A", "H", 18)
}

func writeDifferencesSheet(f *excelize.File, styles workbookStyles, report *models.Report) error {
	if _, err := f.NewSheet(sheetDiffs); err != nil {
		return err
	}
	w := newSheetWriter(f, sheetDiffs)
	result := report.Result

	if len(result.Differences) == 0 {
		w.writeRow(fmt.Sprintf("No row differences (%s matched)",
			countNoun(result.MatchedRows, "row")))
		if w.err != nil {
			return fmt.Errorf("row differences sheet: %w", w.err)
		}
		return f.SetColWidth(sheetDiffs, "A", "A", 44)
	}

	headerValues := make([]any, 0, len(result.ProjectedColumns)+2)
	headerValues = append(headerValues, "Key", "Origin")
	for _, col := range result.ProjectedColumns {
		headerValues = append(headerValues, col)
	}
	header := w.writeRow(headerValues...)
	w.styleRow(header, 1, len(headerValues), styles.header)

	for _, d := range result.Differences {
		values := make([]any, 0, len(headerValues))
		values = append(values, keyText(d.Key), string(d.Origin))
		for _, col := range result.ProjectedColumns {
			values = append(values, displayValue(d.Cells[col]))
		}
		w.writeRow(values...)
	}

	if w.err != nil {
		return fmt.Errorf("row differences sheet: %w", w.err)
	}
	return f.SetColWidth(sheetDiffs, "A", "B", 20)
}

func writeProfilesSheet(f *excelize.File, styles workbookStyles, report *models.Report) error {
	if _, err := f.NewSheet(sheetProfiles); err != nil {
		return err
	}
	w := newSheetWriter(f, sheetProfiles)

	writeProfileSection(w, styles, "Source", report.Profiles.Source)
	w.skipRow()
	writeProfileSection(w, styles, "Target", report.Profiles.Target)

	if w.err != nil {
		return fmt.Errorf("profiles sheet: %w", w.err)
	}
	return f.SetColWidth(sheetProfiles, "A", "O", 14)
}

func writeProfileSection(w *sheetWriter, styles workbookStyles, side string, p models.DatasetProfile) {
	title := w.writeRow(fmt.Sprintf("%s: %s (%s)", side, p.Dataset, countNoun(p.Rows, "row")))
	w.styleCell(title, 1, styles.header)

	header := w.writeRow("Column", "Type", "Count", "Nulls", "Null Fraction", "Distinct",
		"Min", "Max", "Mean", "Std Dev", "P25", "P50", "P75", "Min Length", "Max Length")
	w.styleRow(header, 1, 15, styles.header)

	for _, c := range p.Columns {
		values := []any{c.Name, c.DeclaredType, c.Count, c.Nulls, c.NullFraction, c.Distinct,
			"", "", "", "", "", "", "", "", ""}
		if c.Numeric != nil {
			values[6] = c.Numeric.Min
			values[7] = c.Numeric.Max
			values[8] = c.Numeric.Mean
			values[9] = c.Numeric.StdDev
			values[10] = c.Numeric.P25
			values[11] = c.Numeric.P50
			values[12] = c.Numeric.P75
		}
		if c.String != nil {
			values[13] = c.String.MinLength
			values[14] = c.String.MaxLength
		}
		w.writeRow(values...)
	}
}
