package typemap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconlab/recon-engine/pkg/models"
)

func TestCoerce_NullPassesThrough(t *testing.T) {
	for _, domain := range []Group{GroupNumeric, GroupString, GroupDateTime, GroupBoolean} {
		v, ok := Coerce(models.Null(), domain)
		assert.True(t, ok, "null is not a coercion failure")
		assert.True(t, v.IsNull())
	}
}

func TestCoerce_Numeric(t *testing.T) {
	v, ok := Coerce(models.String(" 42.5 "), GroupNumeric)
	require.True(t, ok)
	assert.Equal(t, 42.5, v.Num)

	v, ok = Coerce(models.Boolean(true), GroupNumeric)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Num)

	v, ok = Coerce(models.String("not a number"), GroupNumeric)
	assert.False(t, ok)
	assert.True(t, v.IsNull())

	_, ok = Coerce(models.Timestamp(time.Now()), GroupNumeric)
	assert.False(t, ok)
}

func TestCoerce_DateTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:30:00Z", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-03-01T05:30:00-05:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-03-01T10:30:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-03-01 10:30:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-03-01 10:30:00.250", time.Date(2024, 3, 1, 10, 30, 0, 250000000, time.UTC)},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024/03/01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"03/01/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			v, ok := Coerce(models.String(tc.in), GroupDateTime)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(v.Time), "got %v, want %v", v.Time, tc.want)
		})
	}
}

func TestCoerce_DateTimeInvalidBecomesNull(t *testing.T) {
	v, ok := Coerce(models.String("yesterday-ish"), GroupDateTime)
	assert.False(t, ok)
	assert.True(t, v.IsNull())

	v, ok = Coerce(models.Number(1710000000), GroupDateTime)
	assert.False(t, ok)
	assert.True(t, v.IsNull())
}

func TestCoerce_DateTimeNormalizesZone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	v, ok := Coerce(models.Timestamp(time.Date(2024, 3, 1, 5, 30, 0, 0, est)), GroupDateTime)
	require.True(t, ok)
	assert.Equal(t, time.UTC, v.Time.Location())
	assert.Equal(t, 10, v.Time.Hour())
}

func TestCoerce_Boolean(t *testing.T) {
	truthy := []models.Value{
		models.Boolean(true), models.Number(1),
		models.String("true"), models.String("Yes"), models.String("T"), models.String("1"),
	}
	for _, in := range truthy {
		v, ok := Coerce(in, GroupBoolean)
		require.True(t, ok, "%v", in)
		assert.True(t, v.Bool)
	}

	falsy := []models.Value{
		models.Boolean(false), models.Number(0),
		models.String("false"), models.String("No"), models.String("F"), models.String("0"),
	}
	for _, in := range falsy {
		v, ok := Coerce(in, GroupBoolean)
		require.True(t, ok, "%v", in)
		assert.False(t, v.Bool)
	}

	_, ok := Coerce(models.Number(2.5), GroupBoolean)
	assert.False(t, ok)
	_, ok = Coerce(models.String("maybe"), GroupBoolean)
	assert.False(t, ok)
}

func TestCoerce_StringDomainTakesAnything(t *testing.T) {
	v, ok := Coerce(models.Number(1.0), GroupString)
	require.True(t, ok)
	assert.Equal(t, "1", v.Str)

	v, ok = Coerce(models.Boolean(true), GroupString)
	require.True(t, ok)
	assert.Equal(t, "true", v.Str)

	v, ok = Coerce(models.Timestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), GroupString)
	require.True(t, ok)
	assert.Equal(t, "2024-01-01T00:00:00Z", v.Str)
}
