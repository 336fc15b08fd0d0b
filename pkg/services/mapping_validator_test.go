package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
	"github.com/reconlab/recon-engine/pkg/typemap"
)

func col(name, declaredType string, values ...models.Value) models.Column {
	return models.Column{Name: name, DeclaredType: declaredType, Values: values}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func dataset(name string, columns ...models.Column) *models.Dataset {
	return &models.Dataset{Name: name, Columns: columns}
}

func pairs(srcToTgt ...string) models.Mapping {
	var m models.Mapping
	for i := 0; i+1 < len(srcToTgt); i += 2 {
		m.Entries = append(m.Entries, models.MappingEntry{Source: srcToTgt[i], Target: srcToTgt[i+1]})
	}
	return m
}

func newValidator(t *testing.T) MappingValidator {
	t.Helper()
	return NewMappingValidator(typemap.DefaultRegistry(), zap.NewNop())
}

func validFixture() (*models.Dataset, *models.Dataset, models.Mapping, []string) {
	source := dataset("src",
		col("id", "integer", models.Number(1), models.Number(2)),
		col("amount", "decimal", models.Number(10), models.Number(20)),
	)
	target := dataset("tgt",
		col("ID", "int", models.Number(1), models.Number(2)),
		col("Amt", "numeric", models.Number(10), models.Number(21)),
	)
	return source, target, pairs("id", "ID", "amount", "Amt"), []string{"id"}
}

func TestMappingValidator_ValidConfiguration(t *testing.T) {
	v := newValidator(t)
	source, target, mapping, join := validFixture()

	result := v.Validate(source, target, mapping, join)
	assert.True(t, result.OK)
	assert.Empty(t, result.Failures)
}

func TestMappingValidator_NoValidMappings(t *testing.T) {
	v := newValidator(t)
	source, target, _, join := validFixture()

	empty := models.Mapping{}
	result := v.Validate(source, target, empty, join)
	require.False(t, result.OK)
	assert.True(t, result.HasCode(models.FailureNoValidMappings))

	// All entries excluded or unmapped counts as empty too.
	inert := models.Mapping{Entries: []models.MappingEntry{
		{Source: "id", Target: "ID", Excluded: true},
		{Source: "amount"},
	}}
	result = v.Validate(source, target, inert, join)
	require.False(t, result.OK)
	assert.True(t, result.HasCode(models.FailureNoValidMappings))
}

func TestMappingValidator_UnknownSourceColumns(t *testing.T) {
	v := newValidator(t)
	source, target, _, join := validFixture()

	mapping := pairs("id", "ID", "ghost", "Amt", "phantom", "ID")
	result := v.Validate(source, target, mapping, join)
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)

	f := result.Failures[0]
	assert.Equal(t, models.FailureUnknownSourceColumn, f.Code)
	assert.Equal(t, []string{"ghost", "phantom"}, f.Columns)
	assert.Equal(t, models.SideSource, f.Side)
}

func TestMappingValidator_DuplicateTargetClaim(t *testing.T) {
	v := newValidator(t)
	source, target, _, join := validFixture()

	mapping := pairs("id", "ID", "amount", "ID")
	result := v.Validate(source, target, mapping, join)
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)

	f := result.Failures[0]
	assert.Equal(t, models.FailureDuplicateTargetClaim, f.Code)
	assert.Equal(t, []string{"ID"}, f.Columns)
}

func TestMappingValidator_MissingTargetColumnsListsAll(t *testing.T) {
	v := newValidator(t)
	source, target, _, join := validFixture()

	mapping := pairs("id", "ID", "amount", "Total")
	mapping.Entries = append(mapping.Entries, models.MappingEntry{Source: "id", Target: "Balance"})
	result := v.Validate(source, target, mapping, join)
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)

	f := result.Failures[0]
	assert.Equal(t, models.FailureMissingTargetColumns, f.Code)
	assert.Equal(t, []string{"Total", "Balance"}, f.Columns)
	assert.Equal(t, models.SideTarget, f.Side)
}

func TestMappingValidator_IncompatibleTypes(t *testing.T) {
	v := newValidator(t)
	source := dataset("src",
		col("id", "integer", models.Number(1)),
		col("created", "integer", models.Number(2)),
	)
	target := dataset("tgt",
		col("ID", "int", models.Number(1)),
		col("Created", "date", models.Timestamp(mustTime(t, "2024-01-01T00:00:00Z"))),
	)

	result := v.Validate(source, target, pairs("id", "ID", "created", "Created"), []string{"id"})
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)

	f := result.Failures[0]
	assert.Equal(t, models.FailureIncompatibleTypes, f.Code)
	assert.Equal(t, []string{"created", "Created"}, f.Columns)
	assert.Contains(t, f.Detail, "integer")
	assert.Contains(t, f.Detail, "date")
}

func TestMappingValidator_StringSideIsAlwaysComparable(t *testing.T) {
	v := newValidator(t)
	source := dataset("src", col("code", "varchar", models.String("7")))
	target := dataset("tgt", col("Code", "int", models.Number(7)))

	result := v.Validate(source, target, pairs("code", "Code"), []string{"code"})
	assert.True(t, result.OK)
}

func TestMappingValidator_UnknownTypesCompareByName(t *testing.T) {
	v := newValidator(t)

	// Same unrecognized declared type on both sides is comparable.
	source := dataset("src", col("ref", "uuid", models.String("a")))
	target := dataset("tgt", col("Ref", "uuid", models.String("a")))
	assert.True(t, v.Validate(source, target, pairs("ref", "Ref"), []string{"ref"}).OK)

	// Two different unrecognized types are not.
	target = dataset("tgt", col("Ref", "guid", models.String("a")))
	result := v.Validate(source, target, pairs("ref", "Ref"), []string{"ref"})
	require.False(t, result.OK)
	assert.True(t, result.HasCode(models.FailureIncompatibleTypes))
}

func TestMappingValidator_NoJoinColumns(t *testing.T) {
	v := newValidator(t)
	source, target, mapping, _ := validFixture()

	result := v.Validate(source, target, mapping, nil)
	require.False(t, result.OK)
	assert.True(t, result.HasCode(models.FailureNoJoinColumns))
}

func TestMappingValidator_JoinColumnUnmapped(t *testing.T) {
	v := newValidator(t)
	source, target, mapping, _ := validFixture()

	result := v.Validate(source, target, mapping, []string{"nope"})
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)
	f := result.Failures[0]
	assert.Equal(t, models.FailureJoinColumnUnmapped, f.Code)
	assert.Equal(t, []string{"nope"}, f.Columns)

	// An excluded mapping entry does not satisfy the join requirement.
	mapping.Entries[0].Excluded = true
	result = v.Validate(source, target, mapping, []string{"id"})
	require.False(t, result.OK)
	assert.True(t, result.HasCode(models.FailureJoinColumnUnmapped))
}

func TestMappingValidator_NullInJoinColumn(t *testing.T) {
	v := newValidator(t)

	source := dataset("src", col("id", "integer", models.Number(1), models.Null()))
	target := dataset("tgt", col("ID", "int", models.Number(1), models.Number(2)))
	result := v.Validate(source, target, pairs("id", "ID"), []string{"id"})
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)
	f := result.Failures[0]
	assert.Equal(t, models.FailureNullInJoinColumn, f.Code)
	assert.Equal(t, models.SideSource, f.Side)
	assert.Equal(t, []string{"id"}, f.Columns)
	assert.Contains(t, f.Detail, "1 null")

	// Target-side nulls are reported under the target column name.
	source = dataset("src", col("id", "integer", models.Number(1), models.Number(2)))
	target = dataset("tgt", col("ID", "int", models.Null(), models.Number(2)))
	result = v.Validate(source, target, pairs("id", "ID"), []string{"id"})
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)
	f = result.Failures[0]
	assert.Equal(t, models.FailureNullInJoinColumn, f.Code)
	assert.Equal(t, models.SideTarget, f.Side)
	assert.Equal(t, []string{"ID"}, f.Columns)
}

func TestMappingValidator_DuplicateJoinKeys(t *testing.T) {
	v := newValidator(t)

	source := dataset("src", col("id", "integer", models.Number(1), models.Number(1), models.Number(2)))
	target := dataset("tgt", col("ID", "int", models.Number(1), models.Number(2), models.Number(3)))
	result := v.Validate(source, target, pairs("id", "ID"), []string{"id"})
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)
	f := result.Failures[0]
	assert.Equal(t, models.FailureDuplicateJoinKey, f.Code)
	assert.Equal(t, models.SideSource, f.Side)
	assert.Contains(t, f.Detail, "1 duplicated join key")

	source = dataset("src", col("id", "integer", models.Number(1), models.Number(2)))
	target = dataset("tgt", col("ID", "int", models.Number(3), models.Number(3)))
	result = v.Validate(source, target, pairs("id", "ID"), []string{"id"})
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.SideTarget, result.Failures[0].Side)
}

func TestMappingValidator_MultiColumnJoinKeyTuples(t *testing.T) {
	v := newValidator(t)

	// Rows share a region but differ on id: tuples are unique.
	source := dataset("src",
		col("id", "integer", models.Number(1), models.Number(2)),
		col("region", "varchar", models.String("emea"), models.String("emea")),
	)
	target := dataset("tgt",
		col("ID", "int", models.Number(1), models.Number(2)),
		col("Region", "text", models.String("emea"), models.String("emea")),
	)
	mapping := pairs("id", "ID", "region", "Region")

	result := v.Validate(source, target, mapping, []string{"id", "region"})
	assert.True(t, result.OK)

	// Collapse the ids and the tuples duplicate.
	source.Columns[0].Values[1] = models.Number(1)
	result = v.Validate(source, target, mapping, []string{"id", "region"})
	require.False(t, result.OK)
	assert.True(t, result.HasCode(models.FailureDuplicateJoinKey))
}

func TestMappingValidator_JoinChecksSkippedWhenMappingInvalid(t *testing.T) {
	v := newValidator(t)
	source, target, _, _ := validFixture()

	// Broken mapping and no join columns: only the mapping failure surfaces.
	mapping := pairs("id", "Gone")
	result := v.Validate(source, target, mapping, nil)
	require.False(t, result.OK)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, models.FailureMissingTargetColumns, result.Failures[0].Code)
}
