// Package export renders finished-run reports into artifact files: a JSON
// document, a styled Excel workbook, or a zip bundle carrying both plus a
// CSV dump of the row differences.
package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/apperrors"
	"github.com/reconlab/recon-engine/pkg/models"
)

// Format names accepted by run definitions and the export endpoint.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
	FormatZip  = "zip"
)

// Formats lists the supported export formats.
func Formats() []string {
	return []string{FormatJSON, FormatXLSX, FormatZip}
}

// Exporter renders reports into files on disk. Artifacts land under
// <dir>/<run-id>/recon_report_<timestamp>.<ext>.
type Exporter interface {
	// Export renders the report under the exporter's base directory and
	// returns the written path.
	Export(report *models.Report, format string) (string, error)

	// ExportInto renders the report under dir instead of the base
	// directory. Run definitions use it to redirect artifacts.
	ExportInto(dir string, report *models.Report, format string) (string, error)
}

type exporter struct {
	baseDir string
	logger  *zap.Logger
}

// NewExporter creates an exporter writing under baseDir.
func NewExporter(baseDir string, logger *zap.Logger) Exporter {
	return &exporter{
		baseDir: baseDir,
		logger:  logger.Named("exporter"),
	}
}

func (e *exporter) Export(report *models.Report, format string) (string, error) {
	return e.ExportInto(e.baseDir, report, format)
}

func (e *exporter) ExportInto(dir string, report *models.Report, format string) (string, error) {
	if report == nil {
		return "", fmt.Errorf("export: report is nil")
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	runDir := filepath.Join(dir, report.RunID.String())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(runDir, fmt.Sprintf("recon_report_%s.%s", timestamp, format))

	var err error
	switch format {
	case FormatJSON:
		err = writeJSON(path, report)
	case FormatXLSX:
		err = writeWorkbook(path, report)
	case FormatZip:
		err = writeBundle(path, report, timestamp)
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownFormat, format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("report exported",
		zap.String("run_id", report.RunID.String()),
		zap.String("format", format),
		zap.String("path", path),
		zap.String("verdict", fmt.Sprintf("%s, %s",
			report.Summary.OverallStatus, countNoun(report.Summary.ChecksFailed, "failing check"))))
	return path, nil
}

func writeJSON(path string, report *models.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeWorkbook(path string, report *models.Report) error {
	f, err := buildWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeBundle(path string, report *models.Report, timestamp string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	wb, err := buildWorkbook(report)
	if err != nil {
		return err
	}
	wbBytes, err := wb.WriteToBuffer()
	wb.Close()
	if err != nil {
		return fmt.Errorf("render workbook: %w", err)
	}
	w, err := zw.Create(fmt.Sprintf("recon_report_%s.xlsx", timestamp))
	if err != nil {
		return fmt.Errorf("bundle workbook: %w", err)
	}
	if _, err := w.Write(wbBytes.Bytes()); err != nil {
		return fmt.Errorf("bundle workbook: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	w, err = zw.Create(fmt.Sprintf("recon_report_%s.json", timestamp))
	if err != nil {
		return fmt.Errorf("bundle report: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("bundle report: %w", err)
	}

	w, err = zw.Create(fmt.Sprintf("row_differences_%s.csv", timestamp))
	if err != nil {
		return fmt.Errorf("bundle differences: %w", err)
	}
	if err := writeDifferencesCSV(w, report); err != nil {
		return fmt.Errorf("bundle differences: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish bundle: %w", err)
	}
	return out.Close()
}

func writeDifferencesCSV(w io.Writer, report *models.Report) error {
	cw := csv.NewWriter(w)

	header := append([]string{"key", "origin"}, report.Result.ProjectedColumns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, d := range report.Result.Differences {
		row := make([]string, 0, len(header))
		row = append(row, keyText(d.Key), string(d.Origin))
		for _, col := range report.Result.ProjectedColumns {
			row = append(row, cellText(d.Cells[col]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// countNoun renders a count with its pluralized noun: "1 check", "3 checks".
func countNoun(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %s", n, inflection.Plural(noun))
}

// keyText renders a row key for humans: tuple parts joined with a pipe,
// null markers dropped.
func keyText(key models.RowKey) string {
	s := strings.ReplaceAll(string(key), "\x1f", "|")
	return strings.ReplaceAll(s, "\x00", "")
}

// cellText renders a cell value as plain text for CSV output.
func cellText(v models.Value) string {
	switch v.Kind {
	case models.KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case models.KindTime:
		return v.Time.UTC().Format(time.RFC3339Nano)
	case models.KindBool:
		return strconv.FormatBool(v.Bool)
	case models.KindString:
		return v.Str
	default:
		return ""
	}
}

// displayValue renders a cell value for a workbook cell. Numbers and
// booleans keep their native types; times become RFC 3339 text.
func displayValue(v models.Value) any {
	switch v.Kind {
	case models.KindNumber:
		return v.Num
	case models.KindTime:
		return v.Time.UTC().Format(time.RFC3339)
	case models.KindBool:
		return v.Bool
	case models.KindString:
		return v.Str
	default:
		return ""
	}
}
