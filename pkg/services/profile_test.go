package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/typemap"
)

func newProfiler() ProfileService {
	return NewProfileService(typemap.DefaultRegistry(), zap.NewNop())
}

func TestProfileService_CountsAndNullFraction(t *testing.T) {
	ds := dataset("orders",
		col("status", "varchar",
			models.String("open"), models.String("open"), models.String("closed"), models.Null()),
	)

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "orders", profile.Dataset)
	assert.Equal(t, 4, profile.Rows)
	require.Len(t, profile.Columns, 1)

	c := profile.Columns[0]
	assert.Equal(t, "status", c.Name)
	assert.Equal(t, "varchar", c.DeclaredType)
	assert.Equal(t, 4, c.Count)
	assert.Equal(t, 1, c.Nulls)
	assert.InDelta(t, 0.25, c.NullFraction, 1e-9)
	assert.Equal(t, 2, c.Distinct)
}

func TestProfileService_NumericStatistics(t *testing.T) {
	ds := dataset("d",
		col("amount", "decimal",
			models.Number(1), models.Number(2), models.Number(3), models.Number(4), models.Number(5)),
	)

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	require.NotNil(t, profile.Columns[0].Numeric)
	n := profile.Columns[0].Numeric
	assert.InDelta(t, 1.0, n.Min, 1e-9)
	assert.InDelta(t, 5.0, n.Max, 1e-9)
	assert.InDelta(t, 3.0, n.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(2.5), n.StdDev, 1e-9)
	assert.InDelta(t, 2.0, n.P25, 1e-9)
	assert.InDelta(t, 3.0, n.P50, 1e-9)
	assert.InDelta(t, 4.0, n.P75, 1e-9)
}

func TestProfileService_NumericSkipsNullsAndBadCells(t *testing.T) {
	ds := dataset("d",
		col("amount", "decimal",
			models.Number(10), models.Null(), models.String("oops"), models.Number(20)),
	)

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	c := profile.Columns[0]
	assert.Equal(t, 1, c.Nulls)
	assert.Equal(t, 3, c.Distinct, "the stray string still counts as a distinct value")
	require.NotNil(t, c.Numeric)
	assert.InDelta(t, 15.0, c.Numeric.Mean, 1e-9, "statistics cover numeric cells only")
}

func TestProfileService_SingleValueColumn(t *testing.T) {
	ds := dataset("d", col("amount", "decimal", models.Number(7)))

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	n := profile.Columns[0].Numeric
	require.NotNil(t, n)
	assert.Zero(t, n.StdDev)
	assert.InDelta(t, 7.0, n.P25, 1e-9)
	assert.InDelta(t, 7.0, n.P50, 1e-9)
	assert.InDelta(t, 7.0, n.P75, 1e-9)
}

func TestProfileService_AllNullNumericColumnHasNoDetail(t *testing.T) {
	ds := dataset("d", col("amount", "decimal", models.Null(), models.Null()))

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	c := profile.Columns[0]
	assert.Equal(t, 2, c.Nulls)
	assert.InDelta(t, 1.0, c.NullFraction, 1e-9)
	assert.Nil(t, c.Numeric)
	assert.Nil(t, c.String)
}

func TestProfileService_StringLengthsCountRunes(t *testing.T) {
	ds := dataset("d",
		col("name", "text",
			models.String("a"), models.String("héllo"), models.Null()),
	)

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	c := profile.Columns[0]
	require.NotNil(t, c.String)
	assert.Equal(t, 1, c.String.MinLength)
	assert.Equal(t, 5, c.String.MaxLength)
	assert.Nil(t, c.Numeric)
}

func TestProfileService_UnknownTypeGetsCountsOnly(t *testing.T) {
	ds := dataset("d", col("payload", "jsonb", models.String(`{"a":1}`), models.String(`{"b":2}`)))

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	c := profile.Columns[0]
	assert.Equal(t, 2, c.Distinct)
	assert.Nil(t, c.Numeric)
	assert.Nil(t, c.String)
}

func TestProfileService_ColumnOrderPreserved(t *testing.T) {
	ds := dataset("d",
		col("b", "integer", models.Number(1)),
		col("a", "integer", models.Number(2)),
		col("c", "integer", models.Number(3)),
	)

	profile, err := newProfiler().Profile(context.Background(), ds, models.RunOptions{})
	require.NoError(t, err)

	var names []string
	for _, c := range profile.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
}

func TestProfileService_EmptyDataset(t *testing.T) {
	profile, err := newProfiler().Profile(context.Background(), dataset("empty"), models.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, profile.Rows)
	assert.Empty(t, profile.Columns)
}

func TestProfileService_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	profile, err := newProfiler().Profile(ctx, dataset("d", col("x", "integer", models.Number(1))), models.RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, profile)
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.InDelta(t, 1.75, percentile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 2.5, percentile(sorted, 0.50), 1e-9)
	assert.InDelta(t, 3.25, percentile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 1.0, percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 4.0, percentile(sorted, 1), 1e-9)
}
