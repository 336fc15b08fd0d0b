package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/services/workerpool"
	"github.com/reconlab/recon-engine/pkg/typemap"
)

// ComparisonEngine runs the cell-level reconciliation of two datasets under
// a validated mapping. Compare expects the mapping and join columns to have
// passed MappingValidator first; feeding it unvalidated input is a
// programming error and panics rather than producing a partial result.
//
// The engine holds both datasets in memory and parallelizes per-column work
// (coercion, aggregate and distinct checks, mismatch statistics) across a
// bounded worker pool sized by RunOptions.Workers. A cancelled context
// aborts the run without a result.
type ComparisonEngine interface {
	Compare(ctx context.Context, source, target *models.Dataset, mapping models.Mapping, joinColumns []string, opts models.RunOptions) (*models.ComparisonResult, error)
}

type comparisonEngine struct {
	registry *typemap.Registry
	logger   *zap.Logger
}

// NewComparisonEngine creates a comparison engine using the given type
// alias registry to pick the comparison domain of each column pair.
func NewComparisonEngine(registry *typemap.Registry, logger *zap.Logger) ComparisonEngine {
	return &comparisonEngine{
		registry: registry,
		logger:   logger.Named("comparison-engine"),
	}
}

// columnTask is the per-column working set: the mapped pair projected out
// of both datasets, coerced into a shared comparison domain. Aggregate and
// distinct verdicts are filled by the same worker that coerces the column,
// since neither depends on row alignment.
type columnTask struct {
	name   string // source-side name, the shared vocabulary after renaming
	target string
	domain typemap.Group
	isJoin bool

	rawSrc   []models.Value
	rawTgt   []models.Value
	src      []models.Value
	tgt      []models.Value
	srcFails int
	tgtFails int

	aggregate *models.AggregateCheck
	distinct  *models.DistinctCheck
}

// rowAlignment is the outcome of the outer join on the join-key tuple.
// matchedSrc[i] and matchedTgt[i] index the same logical row on each side.
type rowAlignment struct {
	matchedSrc  []int
	matchedTgt  []int
	matchedKeys []models.RowKey
	sourceOnly  []int
	targetOnly  []int
}

func (e *comparisonEngine) Compare(ctx context.Context, source, target *models.Dataset, mapping models.Mapping, joinColumns []string, opts models.RunOptions) (*models.ComparisonResult, error) {
	opts = opts.Normalized()
	start := time.Now()

	tasks := e.projectColumns(source, target, mapping, joinColumns)

	e.logger.Info("Starting comparison",
		zap.String("source", source.Name),
		zap.String("target", target.Name),
		zap.Int("source_rows", source.RowCount()),
		zap.Int("target_rows", target.RowCount()),
		zap.Int("columns", len(tasks)),
		zap.Int("workers", opts.Workers))

	pool := workerpool.New(workerpool.Config{MaxConcurrent: opts.Workers}, e.logger)

	// Coerce every column pair into its comparison domain and compute the
	// checks that run over all rows (aggregate sums, distinct sets). These
	// have no cross-column dependency.
	coerceItems := make([]workerpool.WorkItem[*columnTask], len(tasks))
	for i := range tasks {
		task := tasks[i]
		coerceItems[i] = workerpool.WorkItem[*columnTask]{
			ID: task.name,
			Execute: func(ctx context.Context) (*columnTask, error) {
				coerceColumn(task, opts)
				return task, nil
			},
		}
	}
	if err := collectInto(ctx, pool, coerceItems, nil); err != nil {
		return nil, err
	}

	for _, task := range tasks {
		if task.srcFails > 0 || task.tgtFails > 0 {
			e.logger.Debug("Cell coercion failures degraded to null",
				zap.String("column", task.name),
				zap.String("domain", task.domain.String()),
				zap.Int("source_cells", task.srcFails),
				zap.Int("target_cells", task.tgtFails))
		}
	}

	alignment := e.alignRows(tasks, joinColumns, source.RowCount(), target.RowCount())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Per-column mismatch statistics over the matched rows. Join columns
	// are skipped: matched rows agree on them by construction.
	var statItems []workerpool.WorkItem[models.ColumnStats]
	statsByColumn := make(map[string]models.ColumnStats)
	for i := range tasks {
		task := tasks[i]
		if task.isJoin {
			continue
		}
		statItems = append(statItems, workerpool.WorkItem[models.ColumnStats]{
			ID: task.name,
			Execute: func(ctx context.Context) (models.ColumnStats, error) {
				return columnMismatchStats(task, alignment, opts), nil
			},
		})
	}
	if err := collectInto(ctx, pool, statItems, func(id string, stats models.ColumnStats) {
		statsByColumn[id] = stats
	}); err != nil {
		return nil, err
	}

	result := e.assembleResult(source, target, tasks, joinColumns, alignment, statsByColumn)

	e.logger.Info("Comparison complete",
		zap.Int("matched_rows", result.MatchedRows),
		zap.Int("source_only_rows", result.SourceOnlyRows),
		zap.Int("target_only_rows", result.TargetOnlyRows),
		zap.Int("checks_passed", result.ChecksPassed()),
		zap.Int("checks_failed", result.ChecksFailed()),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// collectInto runs a batch of work items and hands each result to collect.
// It returns the context error if the run was cancelled, so a partial batch
// never leaks into the result.
func collectInto[T any](ctx context.Context, pool *workerpool.Pool, items []workerpool.WorkItem[T], collect func(id string, result T)) error {
	results := workerpool.Process(ctx, pool, items, nil)
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
		if collect != nil {
			collect(r.ID, r.Result)
		}
	}
	return nil
}

// projectColumns restricts both datasets to the active mapping and pairs
// each source column with its target under the source-side name. Missing
// columns and unmapped join columns mean the inputs bypassed validation.
func (e *comparisonEngine) projectColumns(source, target *models.Dataset, mapping models.Mapping, joinColumns []string) []*columnTask {
	active := mapping.Active()
	if len(active) == 0 {
		panic("comparison engine: mapping has no active entries")
	}

	joinSet := make(map[string]bool, len(joinColumns))
	for _, name := range joinColumns {
		joinSet[name] = true
	}

	tasks := make([]*columnTask, 0, len(active))
	mapped := make(map[string]bool, len(active))
	for _, entry := range active {
		srcCol, ok := source.Column(entry.Source)
		if !ok {
			panic(fmt.Sprintf("comparison engine: mapped source column %q missing from dataset %q", entry.Source, source.Name))
		}
		tgtCol, ok := target.Column(entry.Target)
		if !ok {
			panic(fmt.Sprintf("comparison engine: mapped target column %q missing from dataset %q", entry.Target, target.Name))
		}
		tasks = append(tasks, &columnTask{
			name:   entry.Source,
			target: entry.Target,
			domain: e.registry.Domain(srcCol.DeclaredType, tgtCol.DeclaredType),
			isJoin: joinSet[entry.Source],
			rawSrc: srcCol.Values,
			rawTgt: tgtCol.Values,
		})
		mapped[entry.Source] = true
	}

	for _, name := range joinColumns {
		if !mapped[name] {
			panic(fmt.Sprintf("comparison engine: join column %q is not mapped", name))
		}
	}
	return tasks
}

// coerceColumn fills the task with both sides coerced into the comparison
// domain. A cell that cannot be coerced becomes null and is counted; the
// run never aborts over a single bad cell.
func coerceColumn(task *columnTask, opts models.RunOptions) {
	task.src, task.srcFails = coerceValues(task.rawSrc, task.domain)
	task.tgt, task.tgtFails = coerceValues(task.rawTgt, task.domain)
	task.rawSrc, task.rawTgt = nil, nil

	if task.domain == typemap.GroupNumeric {
		task.aggregate = aggregateCheck(task, opts)
	} else {
		task.distinct = distinctCheck(task, opts)
	}
}

func coerceValues(raw []models.Value, domain typemap.Group) ([]models.Value, int) {
	coerced := make([]models.Value, len(raw))
	failures := 0
	for i, v := range raw {
		c, ok := typemap.Coerce(v, domain)
		if !ok {
			failures++
		}
		coerced[i] = c
	}
	return coerced, failures
}

// aggregateCheck sums a numeric column on each side over all rows, matched
// or not. Nulls are skipped, not treated as zero.
func aggregateCheck(task *columnTask, opts models.RunOptions) *models.AggregateCheck {
	var srcSum, tgtSum float64
	for _, v := range task.src {
		if !v.IsNull() {
			srcSum += v.Num
		}
	}
	for _, v := range task.tgt {
		if !v.IsNull() {
			tgtSum += v.Num
		}
	}
	return &models.AggregateCheck{
		Column:     task.name,
		SourceSum:  srcSum,
		TargetSum:  tgtSum,
		Difference: tgtSum - srcSum,
		Status:     models.StatusFrom(closeEnough(srcSum, tgtSum, opts.RelativeTolerance, opts.AbsoluteTolerance)),
	}
}

// distinctCheck compares the non-null distinct values of a non-numeric
// column. Cardinality and value-set agreement are separate verdicts; the
// reported set differences are capped at the sample size.
func distinctCheck(task *columnTask, opts models.RunOptions) *models.DistinctCheck {
	srcSet := distinctValues(task.src)
	tgtSet := distinctValues(task.tgt)

	onlySrc := setDifference(srcSet, tgtSet, opts.SampleSize)
	onlyTgt := setDifference(tgtSet, srcSet, opts.SampleSize)

	return &models.DistinctCheck{
		Column:         task.name,
		SourceDistinct: len(srcSet),
		TargetDistinct: len(tgtSet),
		CountStatus:    models.StatusFrom(len(srcSet) == len(tgtSet)),
		ValuesStatus:   models.StatusFrom(len(onlySrc) == 0 && len(onlyTgt) == 0),
		OnlyInSource:   onlySrc,
		OnlyInTarget:   onlyTgt,
	}
}

func distinctValues(values []models.Value) map[string]struct{} {
	set := make(map[string]struct{})
	for _, v := range values {
		if !v.IsNull() {
			set[v.Canonical()] = struct{}{}
		}
	}
	return set
}

// setDifference returns up to limit members of a that are absent from b,
// sorted for stable output.
func setDifference(a, b map[string]struct{}, limit int) []string {
	var only []string
	for v := range a {
		if _, ok := b[v]; !ok {
			only = append(only, v)
		}
	}
	sort.Strings(only)
	if len(only) > limit {
		only = only[:limit]
	}
	return only
}

// alignRows performs the outer join on the coerced join-key tuples. The
// validator guarantees raw join keys are unique per side, but coercion can
// collapse distinct raw values into one key ("01" and "1" both become 1);
// when that happens the first occurrence wins and the collision is logged.
func (e *comparisonEngine) alignRows(tasks []*columnTask, joinColumns []string, sourceRows, targetRows int) *rowAlignment {
	byName := make(map[string]*columnTask, len(tasks))
	for _, task := range tasks {
		byName[task.name] = task
	}
	joinTasks := make([]*columnTask, len(joinColumns))
	for i, name := range joinColumns {
		joinTasks[i] = byName[name]
	}

	keyAt := func(side func(*columnTask) []models.Value, row int) models.RowKey {
		tuple := make([]models.Value, len(joinTasks))
		for i, task := range joinTasks {
			tuple[i] = side(task)[row]
		}
		return models.KeyFrom(tuple)
	}
	srcValues := func(t *columnTask) []models.Value { return t.src }
	tgtValues := func(t *columnTask) []models.Value { return t.tgt }

	tgtIndex := make(map[models.RowKey]int, targetRows)
	for row := 0; row < targetRows; row++ {
		key := keyAt(tgtValues, row)
		if _, exists := tgtIndex[key]; exists {
			e.logger.Warn("Join key collision after coercion, keeping first occurrence",
				zap.String("key", string(key)),
				zap.String("side", "target"))
			continue
		}
		tgtIndex[key] = row
	}

	alignment := &rowAlignment{}
	claimed := make(map[int]bool, targetRows)
	for row := 0; row < sourceRows; row++ {
		key := keyAt(srcValues, row)
		tgtRow, ok := tgtIndex[key]
		if !ok || claimed[tgtRow] {
			if ok {
				e.logger.Warn("Join key collision after coercion, keeping first occurrence",
					zap.String("key", string(key)),
					zap.String("side", "source"))
			}
			alignment.sourceOnly = append(alignment.sourceOnly, row)
			continue
		}
		claimed[tgtRow] = true
		alignment.matchedSrc = append(alignment.matchedSrc, row)
		alignment.matchedTgt = append(alignment.matchedTgt, tgtRow)
		alignment.matchedKeys = append(alignment.matchedKeys, key)
	}
	for row := 0; row < targetRows; row++ {
		if !claimed[row] {
			alignment.targetOnly = append(alignment.targetOnly, row)
		}
	}
	return alignment
}

// columnMismatchStats compares one column across all matched rows under
// the coerced domain's equality rule. Two nulls are equal; a null against
// a value is a mismatch. At most opts.SampleSize mismatches are retained.
func columnMismatchStats(task *columnTask, alignment *rowAlignment, opts models.RunOptions) models.ColumnStats {
	stats := models.ColumnStats{
		Column:                 task.name,
		Compared:               len(alignment.matchedSrc),
		SourceCoercionFailures: task.srcFails,
		TargetCoercionFailures: task.tgtFails,
	}
	for i, srcRow := range alignment.matchedSrc {
		tgtRow := alignment.matchedTgt[i]
		src, tgt := task.src[srcRow], task.tgt[tgtRow]
		if valuesEqual(src, tgt, task.domain, opts.RelativeTolerance, opts.AbsoluteTolerance) {
			continue
		}
		stats.Mismatches++
		if len(stats.Samples) < opts.SampleSize {
			stats.Samples = append(stats.Samples, models.CellDiff{
				Key:    alignment.matchedKeys[i],
				Source: src,
				Target: tgt,
			})
		}
	}
	if stats.Compared > 0 {
		stats.MismatchRate = float64(stats.Mismatches) / float64(stats.Compared)
	}
	stats.Status = models.StatusFrom(stats.Mismatches == 0)
	return stats
}

// valuesEqual applies the comparison domain's equality rule to two coerced
// cells. Numeric cells compare within tolerance; every other domain is
// exact after coercion.
func valuesEqual(a, b models.Value, domain typemap.Group, rtol, atol float64) bool {
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a.IsNull() != b.IsNull() {
		return false
	}
	switch domain {
	case typemap.GroupNumeric:
		return closeEnough(a.Num, b.Num, rtol, atol)
	case typemap.GroupDateTime:
		return a.Time.Equal(b.Time)
	case typemap.GroupBoolean:
		return a.Bool == b.Bool
	default:
		return a.Str == b.Str
	}
}

// closeEnough reports whether two floats agree within the relative
// tolerance measured against the larger magnitude. A comparison against
// exactly zero falls back to the absolute tolerance, since a relative
// bound around zero admits nothing.
func closeEnough(a, b, rtol, atol float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	if a == 0 || b == 0 {
		return diff <= atol
	}
	return diff <= rtol*math.Max(math.Abs(a), math.Abs(b))
}

func (e *comparisonEngine) assembleResult(source, target *models.Dataset, tasks []*columnTask, joinColumns []string, alignment *rowAlignment, statsByColumn map[string]models.ColumnStats) *models.ComparisonResult {
	result := &models.ComparisonResult{
		SourceRows:     source.RowCount(),
		TargetRows:     target.RowCount(),
		MatchedRows:    len(alignment.matchedSrc),
		SourceOnlyRows: len(alignment.sourceOnly),
		TargetOnlyRows: len(alignment.targetOnly),
		RowCount: models.RowCountCheck{
			SourceRows: source.RowCount(),
			TargetRows: target.RowCount(),
			Status:     models.StatusFrom(source.RowCount() == target.RowCount()),
		},
	}

	for _, task := range tasks {
		result.ProjectedColumns = append(result.ProjectedColumns, task.name)
		if stats, ok := statsByColumn[task.name]; ok {
			result.Columns = append(result.Columns, stats)
		}
		if task.aggregate != nil {
			result.Aggregates = append(result.Aggregates, *task.aggregate)
		}
		if task.distinct != nil {
			result.Distincts = append(result.Distincts, *task.distinct)
		}
	}

	for _, row := range alignment.sourceOnly {
		result.Differences = append(result.Differences, differenceRow(tasks, joinColumns, row, models.OriginSourceOnly))
	}
	for _, row := range alignment.targetOnly {
		result.Differences = append(result.Differences, differenceRow(tasks, joinColumns, row, models.OriginTargetOnly))
	}
	return result
}

// differenceRow captures one unmatched row with its coerced cells keyed by
// source-side column names. The key is rebuilt in join-column order, the
// same order alignRows used.
func differenceRow(tasks []*columnTask, joinColumns []string, row int, origin models.RowOrigin) models.DifferenceRow {
	cells := make(map[string]models.Value, len(tasks))
	for _, task := range tasks {
		if origin == models.OriginSourceOnly {
			cells[task.name] = task.src[row]
		} else {
			cells[task.name] = task.tgt[row]
		}
	}
	keyTuple := make([]models.Value, len(joinColumns))
	for i, name := range joinColumns {
		keyTuple[i] = cells[name]
	}
	return models.DifferenceRow{
		Key:    models.KeyFrom(keyTuple),
		Origin: origin,
		Cells:  cells,
	}
}
