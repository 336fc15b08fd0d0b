package services

import (
	"context"
	"math"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/services/workerpool"
	"github.com/reconlab/recon-engine/pkg/typemap"
)

// ProfileService computes per-column summary statistics for a dataset:
// row and null counts, distinct cardinality, and type-specific detail
// (numeric spread, string lengths). Profiles from both sides of a run are
// reported next to each other so schema drift shows up even when the
// comparison itself passes.
type ProfileService interface {
	Profile(ctx context.Context, ds *models.Dataset, opts models.RunOptions) (*models.DatasetProfile, error)
}

type profileService struct {
	registry *typemap.Registry
	logger   *zap.Logger
}

// NewProfileService creates a profiler that classifies columns through the
// given type alias registry.
func NewProfileService(registry *typemap.Registry, logger *zap.Logger) ProfileService {
	return &profileService{
		registry: registry,
		logger:   logger.Named("profile-service"),
	}
}

func (s *profileService) Profile(ctx context.Context, ds *models.Dataset, opts models.RunOptions) (*models.DatasetProfile, error) {
	opts = opts.Normalized()
	pool := workerpool.New(workerpool.Config{MaxConcurrent: opts.Workers}, s.logger)

	profiles := make([]models.ColumnProfile, len(ds.Columns))
	items := make([]workerpool.WorkItem[struct{}], len(ds.Columns))
	for i := range ds.Columns {
		i := i
		column := &ds.Columns[i]
		items[i] = workerpool.WorkItem[struct{}]{
			ID: column.Name,
			Execute: func(ctx context.Context) (struct{}, error) {
				profiles[i] = s.profileColumn(column)
				return struct{}{}, nil
			},
		}
	}
	if err := collectInto(ctx, pool, items, nil); err != nil {
		return nil, err
	}

	s.logger.Debug("Profiled dataset",
		zap.String("dataset", ds.Name),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)))

	return &models.DatasetProfile{
		Dataset: ds.Name,
		Rows:    ds.RowCount(),
		Columns: profiles,
	}, nil
}

func (s *profileService) profileColumn(column *models.Column) models.ColumnProfile {
	profile := models.ColumnProfile{
		Name:         column.Name,
		DeclaredType: column.DeclaredType,
		Count:        len(column.Values),
	}

	distinct := make(map[string]struct{})
	var numbers []float64
	minLen, maxLen := -1, 0
	for _, v := range column.Values {
		if v.IsNull() {
			profile.Nulls++
			continue
		}
		distinct[v.Canonical()] = struct{}{}
		switch v.Kind {
		case models.KindNumber:
			numbers = append(numbers, v.Num)
		case models.KindString:
			length := utf8.RuneCountInString(v.Str)
			if minLen < 0 || length < minLen {
				minLen = length
			}
			if length > maxLen {
				maxLen = length
			}
		}
	}
	profile.Distinct = len(distinct)
	if profile.Count > 0 {
		profile.NullFraction = float64(profile.Nulls) / float64(profile.Count)
	}

	groups := s.registry.Classify(column.DeclaredType)
	switch {
	case groups.Has(typemap.GroupNumeric) && len(numbers) > 0:
		profile.Numeric = numericProfile(numbers)
	case groups.Has(typemap.GroupString) && minLen >= 0:
		profile.String = &models.StringProfile{MinLength: minLen, MaxLength: maxLen}
	}
	return profile
}

// numericProfile computes spread statistics over the numeric cells of one
// column. StdDev is the sample deviation, zero for a single value.
func numericProfile(values []float64) *models.NumericProfile {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var stddev float64
	if n > 1 {
		var squares float64
		for _, v := range sorted {
			d := v - mean
			squares += d * d
		}
		stddev = math.Sqrt(squares / float64(n-1))
	}

	return &models.NumericProfile{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   mean,
		StdDev: stddev,
		P25:    percentile(sorted, 0.25),
		P50:    percentile(sorted, 0.50),
		P75:    percentile(sorted, 0.75),
	}
}

// percentile interpolates linearly between the two nearest ranks of an
// ascending sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
