package typemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownGroups(t *testing.T) {
	r := DefaultRegistry()
	cases := []struct {
		typeName string
		group    Group
	}{
		{"bigint", GroupNumeric},
		{"int4", GroupNumeric},
		{"decimal(10,2)", GroupNumeric},
		{"double precision", GroupNumeric},
		{"smallmoney", GroupNumeric},
		{"float64", GroupNumeric},
		{"varchar(255)", GroupString},
		{"nvarchar", GroupString},
		{"character varying", GroupString},
		{"TEXT", GroupString},
		{"object", GroupString},
		{"timestamptz", GroupDateTime},
		{"datetime2", GroupDateTime},
		{"smalldatetime", GroupDateTime},
		{"date", GroupDateTime},
		{"bit", GroupBoolean},
		{"boolean", GroupBoolean},
	}
	for _, tc := range cases {
		t.Run(tc.typeName, func(t *testing.T) {
			assert.True(t, r.Classify(tc.typeName).Has(tc.group),
				"%s should be in group %s", tc.typeName, tc.group)
		})
	}
}

func TestClassify_UnknownTypes(t *testing.T) {
	r := DefaultRegistry()
	assert.True(t, r.Classify("uuid").Empty())
	assert.True(t, r.Classify("bytea").Empty())
	assert.True(t, r.Classify("").Empty())
}

func TestGroupString(t *testing.T) {
	assert.Equal(t, "numeric", GroupNumeric.String())
	assert.Equal(t, "string", GroupString.String())
	assert.Equal(t, "datetime", GroupDateTime.String())
	assert.Equal(t, "boolean", GroupBoolean.String())
	assert.Equal(t, "unknown", GroupUnknown.String())

	var zero Group
	assert.Equal(t, GroupUnknown, zero)
}

func TestCompatible_Reflexive(t *testing.T) {
	r := DefaultRegistry()
	types := []string{
		"bigint", "varchar", "timestamp", "bit", "uuid", "bytea",
		"decimal(10,2)", "DATETIME2", "jsonb", "",
	}
	for _, typ := range types {
		assert.True(t, r.Compatible(typ, typ), "type %q must be self-compatible", typ)
	}
}

func TestCompatible_SameGroup(t *testing.T) {
	r := DefaultRegistry()
	assert.True(t, r.Compatible("bigint", "double precision"))
	assert.True(t, r.Compatible("timestamp", "datetime2"))
	assert.True(t, r.Compatible("bit", "boolean"))
}

func TestCompatible_StringAbsorbsAnything(t *testing.T) {
	r := DefaultRegistry()
	assert.True(t, r.Compatible("varchar", "bigint"))
	assert.True(t, r.Compatible("timestamp", "text"))
	assert.True(t, r.Compatible("nvarchar", "uuid"))
}

func TestCompatible_UnknownOnlyMatchesItself(t *testing.T) {
	r := DefaultRegistry()
	assert.True(t, r.Compatible("uuid", "uuid"))
	assert.True(t, r.Compatible("uuid", " UUID "), "raw fallback is case-insensitive")
	assert.False(t, r.Compatible("uuid", "bigint"))
	assert.False(t, r.Compatible("uuid", "bytea"))
	assert.False(t, r.Compatible("bigint", "timestamp"))
}

func TestDomain(t *testing.T) {
	r := DefaultRegistry()
	cases := []struct {
		a, b string
		want Group
	}{
		{"bigint", "numeric", GroupNumeric},
		{"timestamp", "datetime2", GroupDateTime},
		{"bit", "boolean", GroupBoolean},
		{"varchar", "text", GroupString},
		{"varchar", "bigint", GroupString},
		{"uuid", "uuid", GroupString},
		{"timestamp", "varchar", GroupString},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Domain(tc.a, tc.b), "domain(%s, %s)", tc.a, tc.b)
	}
}

func TestNewRegistry_CopiesTable(t *testing.T) {
	table := map[Group][]string{GroupNumeric: {"cents"}}
	r := NewRegistry(table)
	table[GroupNumeric][0] = "changed"
	assert.True(t, r.Classify("cents").Has(GroupNumeric))
}
