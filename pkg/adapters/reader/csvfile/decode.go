package csvfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/typemap"
)

// inferenceSample is how many non-empty values per column feed type
// inference. Beyond that the verdict is already stable for real extracts.
const inferenceSample = 100

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeOptions control delimited-text decoding. The zero value means
// comma-delimited with a header row and no row bound.
type DecodeOptions struct {
	Delimiter rune
	Header    bool
	// StopAfter stops decoding after this many data rows. Zero reads all.
	StopAfter int
}

// Table is a decoded delimited file: header names plus raw string records.
// Cells stay strings here; typing happens in BuildDataset.
type Table struct {
	Names   []string
	Records [][]string
}

// DefaultDelimiter returns the conventional delimiter for a file name:
// pipe for .dat extracts, comma for everything else.
func DefaultDelimiter(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".dat") {
		return '|'
	}
	return ','
}

// Decode parses delimited text into a table. A UTF-8 byte order mark is
// stripped, the first record supplies column names when Header is set, and
// ragged records fail with the parser's position information.
func Decode(r io.Reader, opts DecodeOptions) (*Table, error) {
	buffered := bufio.NewReader(r)
	if lead, err := buffered.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		if _, err := buffered.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("strip byte order mark: %w", err)
		}
	}

	parser := csv.NewReader(buffered)
	if opts.Delimiter != 0 {
		parser.Comma = opts.Delimiter
	}

	table := &Table{}
	for {
		record, err := parser.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse delimited data: %w", err)
		}
		if table.Names == nil {
			if opts.Header {
				names := make([]string, len(record))
				for i, h := range record {
					names[i] = strings.TrimSpace(h)
				}
				table.Names = names
				continue
			}
			table.Names = syntheticNames(len(record))
		}
		table.Records = append(table.Records, append([]string(nil), record...))
		if opts.StopAfter > 0 && len(table.Records) >= opts.StopAfter {
			break
		}
	}
	if table.Names == nil {
		return nil, fmt.Errorf("delimited data is empty")
	}
	return table, nil
}

// BuildDataset types the table's columns by inference over a value sample
// and converts cells: empty fields become nulls, everything else stays a
// string for the coercion layer to interpret against the inferred type.
func BuildDataset(name string, table *Table) (*models.Dataset, error) {
	columns := make([]models.Column, len(table.Names))
	for c, columnName := range table.Names {
		values := make([]models.Value, len(table.Records))
		for r, record := range table.Records {
			values[r] = cellFromString(record[c])
		}
		columns[c] = models.Column{
			Name:         columnName,
			DeclaredType: inferType(table.Records, c),
			Values:       values,
		}
	}
	return models.NewDataset(name, columns)
}

func cellFromString(s string) models.Value {
	if s == "" {
		return models.Null()
	}
	return models.String(s)
}

func syntheticNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("column_%d", i+1)
	}
	return names
}

// inferType picks a declared type for one column from a sample of its
// non-empty values. Candidates narrow as values disqualify them; boolean
// only matches literal true/false so numeric flag columns stay numeric.
// Timestamp detection asks the coercion layer, so an inferred timestamp is
// always one the comparison can actually parse.
func inferType(records [][]string, col int) string {
	seen := 0
	isInt, isFloat, isBool, isTime := true, true, true, true

	for _, record := range records {
		s := strings.TrimSpace(record[col])
		if s == "" {
			continue
		}
		seen++
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool && !isBoolLiteral(s) {
			isBool = false
		}
		if isTime {
			if _, ok := typemap.Coerce(models.String(s), typemap.GroupDateTime); !ok {
				isTime = false
			}
		}
		if seen >= inferenceSample {
			break
		}
		if !isInt && !isFloat && !isBool && !isTime {
			return "string"
		}
	}

	if seen == 0 {
		return "string"
	}
	switch {
	case isBool:
		return "boolean"
	case isInt:
		return "bigint"
	case isFloat:
		return "double"
	case isTime:
		return "timestamp"
	default:
		return "string"
	}
}

func isBoolLiteral(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	default:
		return false
	}
}
