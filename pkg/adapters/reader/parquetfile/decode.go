package parquetfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	preader "github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"

	"github.com/reconlab/recon-engine/pkg/adapters/reader"
	"github.com/reconlab/recon-engine/pkg/models"
)

const readParallelism = 4

// unixEpochJulianDay is 1970-01-01 as a julian day number, the reference
// point for the legacy INT96 timestamp layout.
const unixEpochJulianDay = 2440588

type leafColumn struct {
	name     string
	elem     *parquet.SchemaElement
	optional bool
}

// decode reads every leaf column of a flat parquet file into a dataset.
// Values are converted eagerly (timestamps, dates, decimals) because the
// physical representation carries exact semantics the string-based coercion
// layer would have to re-guess.
func decode(fr source.ParquetFile, name string, userLimit int, limits reader.Limits) (*models.Dataset, error) {
	pr, err := preader.NewParquetColumnReader(fr, readParallelism)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer pr.ReadStop()

	leaves, err := leafColumns(pr.SchemaHandler.SchemaElements)
	if err != nil {
		return nil, err
	}

	toRead := pr.GetNumRows()
	if stopAt := limits.FetchLimit(userLimit); stopAt > 0 && int64(stopAt) < toRead {
		toRead = int64(stopAt)
	}
	if err := limits.EnforceCap(int(toRead)); err != nil {
		return nil, err
	}

	columns := make([]models.Column, len(leaves))
	for i, leaf := range leaves {
		raw, _, dls, err := pr.ReadColumnByIndex(int64(i), toRead)
		if err != nil {
			return nil, fmt.Errorf("read parquet column %q: %w", leaf.name, err)
		}
		values := make([]models.Value, len(raw))
		for j, cell := range raw {
			if cell == nil || (leaf.optional && j < len(dls) && dls[j] == 0) {
				values[j] = models.Null()
				continue
			}
			values[j] = convertCell(cell, leaf.elem)
		}
		columns[i] = models.Column{
			Name:         leaf.name,
			DeclaredType: declaredType(leaf.elem),
			Values:       values,
		}
	}
	return models.NewDataset(name, columns)
}

// leafColumns flattens the schema, rejecting anything but a single root
// group over scalar leaves. Column index order matches schema order.
func leafColumns(elements []*parquet.SchemaElement) ([]leafColumn, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("parquet schema is empty")
	}
	leaves := make([]leafColumn, 0, len(elements)-1)
	for _, elem := range elements[1:] {
		if elem.GetNumChildren() > 0 {
			return nil, fmt.Errorf("nested parquet schemas are not supported (group %q)", elem.GetName())
		}
		if elem.GetRepetitionType() == parquet.FieldRepetitionType_REPEATED {
			return nil, fmt.Errorf("repeated parquet column %q is not supported", elem.GetName())
		}
		leaves = append(leaves, leafColumn{
			name:     elem.GetName(),
			elem:     elem,
			optional: elem.GetRepetitionType() == parquet.FieldRepetitionType_OPTIONAL,
		})
	}
	return leaves, nil
}

// declaredType maps a leaf's physical and converted types onto the type
// names the alias registry understands.
func declaredType(elem *parquet.SchemaElement) string {
	if elem.IsSetConvertedType() {
		switch elem.GetConvertedType() {
		case parquet.ConvertedType_UTF8:
			return "string"
		case parquet.ConvertedType_DATE:
			return "date"
		case parquet.ConvertedType_TIMESTAMP_MILLIS, parquet.ConvertedType_TIMESTAMP_MICROS:
			return "timestamp"
		case parquet.ConvertedType_DECIMAL:
			return "decimal"
		}
	}
	switch elem.GetType() {
	case parquet.Type_BOOLEAN:
		return "boolean"
	case parquet.Type_INT32:
		return "integer"
	case parquet.Type_INT64:
		return "bigint"
	case parquet.Type_INT96:
		return "timestamp"
	case parquet.Type_FLOAT:
		return "float"
	case parquet.Type_DOUBLE:
		return "double"
	case parquet.Type_BYTE_ARRAY, parquet.Type_FIXED_LEN_BYTE_ARRAY:
		return "string"
	default:
		return "unknown"
	}
}

func convertCell(cell any, elem *parquet.SchemaElement) models.Value {
	switch v := cell.(type) {
	case bool:
		return models.Boolean(v)
	case int32:
		switch {
		case converted(elem, parquet.ConvertedType_DATE):
			return models.Timestamp(time.Unix(int64(v)*86400, 0))
		case converted(elem, parquet.ConvertedType_DECIMAL):
			return models.Number(float64(v) / math.Pow10(int(elem.GetScale())))
		}
		return models.Number(float64(v))
	case int64:
		switch {
		case converted(elem, parquet.ConvertedType_TIMESTAMP_MILLIS):
			return models.Timestamp(time.UnixMilli(v))
		case converted(elem, parquet.ConvertedType_TIMESTAMP_MICROS):
			return models.Timestamp(time.UnixMicro(v))
		case converted(elem, parquet.ConvertedType_DECIMAL):
			return models.Number(float64(v) / math.Pow10(int(elem.GetScale())))
		}
		return models.Number(float64(v))
	case float32:
		return models.Number(float64(v))
	case float64:
		return models.Number(v)
	case string:
		switch {
		case elem.GetType() == parquet.Type_INT96:
			return int96Value([]byte(v))
		case converted(elem, parquet.ConvertedType_DECIMAL):
			return decimalValue([]byte(v), elem.GetScale())
		}
		return models.String(v)
	default:
		return reader.CellValue(cell)
	}
}

func converted(elem *parquet.SchemaElement, ct parquet.ConvertedType) bool {
	return elem.IsSetConvertedType() && elem.GetConvertedType() == ct
}

// int96Value decodes the legacy INT96 timestamp layout: 8 bytes of
// little-endian nanoseconds within the day, then a 4 byte julian day.
func int96Value(raw []byte) models.Value {
	if len(raw) != 12 {
		return models.Null()
	}
	nanos := int64(binary.LittleEndian.Uint64(raw[:8]))
	julian := int64(binary.LittleEndian.Uint32(raw[8:]))
	days := julian - unixEpochJulianDay
	return models.Timestamp(time.Unix(days*86400, nanos))
}

// decimalValue decodes a big-endian two's complement unscaled integer into
// a scaled number.
func decimalValue(raw []byte, scale int32) models.Value {
	if len(raw) == 0 {
		return models.Null()
	}
	unscaled := new(big.Int).SetBytes(raw)
	if raw[0]&0x80 != 0 {
		unscaled.Sub(unscaled, new(big.Int).Lsh(big.NewInt(1), uint(len(raw)*8)))
	}
	f := new(big.Float).SetInt(unscaled)
	if scale > 0 {
		divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
		f.Quo(f, new(big.Float).SetInt(divisor))
	}
	v, _ := f.Float64()
	return models.Number(v)
}
