package models

// MappingEntry links one source column to its matched target column. An
// empty Target means the matcher found no acceptable candidate. Excluded
// entries are kept for reporting but ignored by validation and comparison.
type MappingEntry struct {
	Source   string  `json:"source" yaml:"source"`
	Target   string  `json:"target,omitempty" yaml:"target,omitempty"`
	Score    float64 `json:"score,omitempty" yaml:"-"`
	Exact    bool    `json:"exact,omitempty" yaml:"-"`
	Excluded bool    `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// Mapping is an ordered set of column mapping entries, one per source
// column, in source schema order.
type Mapping struct {
	Entries []MappingEntry `json:"entries" yaml:"entries"`
}

// TargetFor returns the mapped target column for a source column. The
// second result is false when the source column is absent, excluded, or
// unmapped.
func (m Mapping) TargetFor(source string) (string, bool) {
	for _, e := range m.Entries {
		if e.Source == source {
			if e.Excluded || e.Target == "" {
				return "", false
			}
			return e.Target, true
		}
	}
	return "", false
}

// Active returns the entries that participate in validation and
// comparison: not excluded and mapped to a target column.
func (m Mapping) Active() []MappingEntry {
	active := make([]MappingEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.Excluded || e.Target == "" {
			continue
		}
		active = append(active, e)
	}
	return active
}

// Merge applies user adjustments on top of a proposed mapping and returns
// the result. Overrides replace the target and excluded flag of the entry
// with the same source column; automatic match metadata is cleared on
// overridden entries. Overrides for unknown source columns are appended so
// validation can reject them with context.
func (m Mapping) Merge(overrides []MappingEntry) Mapping {
	merged := Mapping{Entries: make([]MappingEntry, len(m.Entries))}
	copy(merged.Entries, m.Entries)
	for _, o := range overrides {
		found := false
		for i := range merged.Entries {
			if merged.Entries[i].Source != o.Source {
				continue
			}
			merged.Entries[i].Target = o.Target
			merged.Entries[i].Excluded = o.Excluded
			merged.Entries[i].Score = 0
			merged.Entries[i].Exact = false
			found = true
			break
		}
		if !found {
			merged.Entries = append(merged.Entries, MappingEntry{
				Source:   o.Source,
				Target:   o.Target,
				Excluded: o.Excluded,
			})
		}
	}
	return merged
}
