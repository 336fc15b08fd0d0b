// Package typemap classifies declared column types into compatibility
// groups and coerces raw cell values into the unified comparison domain.
// Classification drives both mapping validation and the comparison engine's
// choice of equality rule per column pair.
package typemap

import (
	"sort"
	"strings"
)

// Group is one compatibility group of column types.
type Group uint8

const (
	GroupUnknown Group = iota
	GroupNumeric
	GroupString
	GroupDateTime
	GroupBoolean
)

// String returns the group name.
func (g Group) String() string {
	switch g {
	case GroupNumeric:
		return "numeric"
	case GroupString:
		return "string"
	case GroupDateTime:
		return "datetime"
	case GroupBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// GroupSet is a set of compatibility groups. A declared type can land in
// more than one group when several aliases match its name; an empty set
// means the type is unknown.
type GroupSet uint8

// Has reports whether the set contains the group.
func (s GroupSet) Has(g Group) bool {
	return s&(1<<g) != 0
}

func (s GroupSet) add(g Group) GroupSet {
	return s | (1 << g)
}

// Empty reports whether no group matched.
func (s GroupSet) Empty() bool {
	return s == 0
}

type aliasEntry struct {
	alias string
	group Group
}

// Registry maps type-name aliases to compatibility groups. A declared type
// belongs to a group when any of the group's aliases is a substring of the
// normalized (lowercased, trimmed) type name, so "bigint" and "int4" both
// land in the numeric group through the "int" alias. Registries are
// immutable after construction; build variants with NewRegistry instead of
// mutating a shared table.
type Registry struct {
	entries []aliasEntry
}

// NewRegistry builds a registry from an alias table. Aliases are
// normalized and copied; the input map is not retained.
func NewRegistry(table map[Group][]string) *Registry {
	r := &Registry{}
	for group, aliases := range table {
		for _, a := range aliases {
			a = normalizeTypeName(a)
			if a == "" {
				continue
			}
			r.entries = append(r.entries, aliasEntry{alias: a, group: group})
		}
	}
	sort.Slice(r.entries, func(i, j int) bool {
		if r.entries[i].alias != r.entries[j].alias {
			return r.entries[i].alias < r.entries[j].alias
		}
		return r.entries[i].group < r.entries[j].group
	})
	return r
}

// DefaultRegistry returns the standard alias table covering the type names
// emitted by the bundled readers: database driver types, parquet logical
// types, and the names produced by flat-file type inference.
func DefaultRegistry() *Registry {
	return NewRegistry(map[Group][]string{
		GroupNumeric: {
			"int", "integer", "float", "double", "real",
			"numeric", "decimal", "number", "money", "serial",
		},
		GroupString: {
			"char", "text", "string", "str", "object",
		},
		GroupDateTime: {
			"date", "datetime", "timestamp",
		},
		GroupBoolean: {
			"bool", "boolean", "bit",
		},
	})
}

// Classify returns every group whose aliases match the declared type name.
func (r *Registry) Classify(declaredType string) GroupSet {
	name := normalizeTypeName(declaredType)
	var set GroupSet
	for _, e := range r.entries {
		if strings.Contains(name, e.alias) {
			set = set.add(e.group)
		}
	}
	return set
}

// Compatible reports whether two declared types may be compared. Types are
// compatible when their groups intersect, when either side is string-like
// (strings absorb anything through textual coercion), or when the raw
// names are equal after normalization. Unknown types therefore only match
// themselves or a string column.
func (r *Registry) Compatible(a, b string) bool {
	ga, gb := r.Classify(a), r.Classify(b)
	if ga&gb != 0 {
		return true
	}
	if ga.Has(GroupString) || gb.Has(GroupString) {
		return true
	}
	return normalizeTypeName(a) == normalizeTypeName(b)
}

// Domain picks the comparison domain for a column pair: the strictest
// group shared by both sides, falling back to string when the sides only
// meet through textual coercion.
func (r *Registry) Domain(a, b string) Group {
	shared := r.Classify(a) & r.Classify(b)
	switch {
	case shared.Has(GroupNumeric):
		return GroupNumeric
	case shared.Has(GroupDateTime):
		return GroupDateTime
	case shared.Has(GroupBoolean):
		return GroupBoolean
	default:
		return GroupString
	}
}

func normalizeTypeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
