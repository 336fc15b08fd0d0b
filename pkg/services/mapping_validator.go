package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/typemap"
)

// MappingValidator decides whether a mapping and join configuration can be
// compared. Rejections are structured verdicts, never errors: an error
// return anywhere in the run pipeline means the machinery itself broke.
type MappingValidator interface {
	// Validate checks the mapping against both schemas, then the join
	// configuration against both datasets. Join checks only run once the
	// mapping checks pass; each check family reports its first offender
	// (or, for name lookups, all offending names at once).
	Validate(source, target *models.Dataset, mapping models.Mapping, joinColumns []string) models.ValidationResult
}

type mappingValidator struct {
	registry *typemap.Registry
	logger   *zap.Logger
}

// NewMappingValidator creates a MappingValidator classifying declared types
// through the given registry.
func NewMappingValidator(registry *typemap.Registry, logger *zap.Logger) MappingValidator {
	return &mappingValidator{
		registry: registry,
		logger:   logger.Named("mapping-validator"),
	}
}

func (v *mappingValidator) Validate(source, target *models.Dataset, mapping models.Mapping, joinColumns []string) models.ValidationResult {
	result := models.ValidationResult{OK: true}

	v.validateMapping(source, target, mapping, &result)
	if result.OK {
		v.validateJoinColumns(source, target, mapping, joinColumns, &result)
	}

	if !result.OK {
		v.logger.Info("validation rejected configuration",
			zap.Any("failures", result.Failures))
	}
	return result
}

func (v *mappingValidator) validateMapping(source, target *models.Dataset, mapping models.Mapping, result *models.ValidationResult) {
	active := mapping.Active()
	if len(active) == 0 {
		result.Add(models.ValidationFailure{
			Code:   models.FailureNoValidMappings,
			Detail: "mapping has no active source-to-target pairs",
		})
		return
	}

	// Every mapped source column must exist in the source dataset.
	var unknown []string
	for _, e := range active {
		if _, ok := source.Column(e.Source); !ok {
			unknown = append(unknown, e.Source)
		}
	}
	if len(unknown) > 0 {
		result.Add(models.ValidationFailure{
			Code:    models.FailureUnknownSourceColumn,
			Columns: unknown,
			Side:    models.SideSource,
		})
		return
	}

	// No two source columns may claim the same target.
	seen := make(map[string]string, len(active))
	var duplicated []string
	for _, e := range active {
		if prev, ok := seen[e.Target]; ok {
			duplicated = append(duplicated, e.Target)
			v.logger.Debug("target claimed twice",
				zap.String("target", e.Target),
				zap.String("first_source", prev),
				zap.String("second_source", e.Source))
			continue
		}
		seen[e.Target] = e.Source
	}
	if len(duplicated) > 0 {
		result.Add(models.ValidationFailure{
			Code:    models.FailureDuplicateTargetClaim,
			Columns: duplicated,
			Side:    models.SideTarget,
		})
		return
	}

	// Every mapped target column must exist in the target dataset.
	var missing []string
	for _, e := range active {
		if _, ok := target.Column(e.Target); !ok {
			missing = append(missing, e.Target)
		}
	}
	if len(missing) > 0 {
		result.Add(models.ValidationFailure{
			Code:    models.FailureMissingTargetColumns,
			Columns: missing,
			Side:    models.SideTarget,
		})
		return
	}

	// Declared types of each pair must be comparable. Existence was
	// established above, so the lookups cannot miss.
	for _, e := range active {
		srcCol, _ := source.Column(e.Source)
		tgtCol, _ := target.Column(e.Target)
		srcType := srcCol.DeclaredType
		tgtType := tgtCol.DeclaredType
		if !v.registry.Compatible(srcType, tgtType) {
			result.Add(models.ValidationFailure{
				Code:    models.FailureIncompatibleTypes,
				Columns: []string{e.Source, e.Target},
				Detail:  fmt.Sprintf("source type %q is not comparable with target type %q", srcType, tgtType),
			})
			return
		}
	}
}

func (v *mappingValidator) validateJoinColumns(source, target *models.Dataset, mapping models.Mapping, joinColumns []string, result *models.ValidationResult) {
	if len(joinColumns) == 0 {
		result.Add(models.ValidationFailure{
			Code:   models.FailureNoJoinColumns,
			Detail: "at least one join column is required",
		})
		return
	}

	// Each join column must be an actively mapped source column.
	for _, col := range joinColumns {
		if _, ok := mapping.TargetFor(col); !ok {
			result.Add(models.ValidationFailure{
				Code:    models.FailureJoinColumnUnmapped,
				Columns: []string{col},
			})
			return
		}
	}

	// Join cells must not be null, source side first.
	for _, col := range joinColumns {
		srcCol, _ := source.Column(col)
		if n := countNulls(srcCol); n > 0 {
			result.Add(models.ValidationFailure{
				Code:    models.FailureNullInJoinColumn,
				Columns: []string{col},
				Side:    models.SideSource,
				Detail:  fmt.Sprintf("%d null value(s)", n),
			})
			return
		}
	}
	for _, col := range joinColumns {
		tgt, _ := mapping.TargetFor(col)
		tgtCol, _ := target.Column(tgt)
		if n := countNulls(tgtCol); n > 0 {
			result.Add(models.ValidationFailure{
				Code:    models.FailureNullInJoinColumn,
				Columns: []string{tgt},
				Side:    models.SideTarget,
				Detail:  fmt.Sprintf("%d null value(s)", n),
			})
			return
		}
	}

	// Join key tuples must be unique on each side.
	if f, ok := findDuplicateKeys(source, joinColumns, models.SideSource); ok {
		result.Add(f)
		return
	}
	targetCols := make([]string, len(joinColumns))
	for i, col := range joinColumns {
		targetCols[i], _ = mapping.TargetFor(col)
	}
	if f, ok := findDuplicateKeys(target, targetCols, models.SideTarget); ok {
		result.Add(f)
		return
	}
}

func countNulls(col *models.Column) int {
	if col == nil {
		return 0
	}
	n := 0
	for _, v := range col.Values {
		if v.IsNull() {
			n++
		}
	}
	return n
}

// findDuplicateKeys scans the dataset's join key tuples and reports the
// duplicated ones in first-occurrence order.
func findDuplicateKeys(ds *models.Dataset, columns []string, side string) (models.ValidationFailure, bool) {
	cols := make([]*models.Column, len(columns))
	for i, name := range columns {
		cols[i], _ = ds.Column(name)
	}

	counts := make(map[models.RowKey]int, ds.RowCount())
	var order []models.RowKey
	tuple := make([]models.Value, len(cols))
	for row := 0; row < ds.RowCount(); row++ {
		for i, col := range cols {
			tuple[i] = col.Values[row]
		}
		key := models.KeyFrom(tuple)
		counts[key]++
		if counts[key] == 2 {
			order = append(order, key)
		}
	}

	if len(order) == 0 {
		return models.ValidationFailure{}, false
	}

	samples := make([]string, 0, 3)
	for _, key := range order {
		if len(samples) == 3 {
			break
		}
		samples = append(samples, fmt.Sprintf("%q x%d", string(key), counts[key]))
	}
	return models.ValidationFailure{
		Code:    models.FailureDuplicateJoinKey,
		Columns: columns,
		Side:    side,
		Detail:  fmt.Sprintf("%d duplicated join key(s): %s", len(order), strings.Join(samples, ", ")),
	}, true
}
