package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReaderSpec selects and configures a dataset reader. Type names a
// registered reader ("inline", "csv", "postgres", ...), Options carries the
// reader-specific configuration parsed by that reader's factory.
type ReaderSpec struct {
	Type    string         `json:"type" yaml:"type"`
	Name    string         `json:"name,omitempty" yaml:"name,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// RunOptions are the tunables of one comparison run. Zero values mean
// "use the default"; Normalized resolves them.
type RunOptions struct {
	MatchThreshold    float64 `json:"match_threshold,omitempty" yaml:"match_threshold,omitempty"`
	RelativeTolerance float64 `json:"relative_tolerance,omitempty" yaml:"relative_tolerance,omitempty"`
	AbsoluteTolerance float64 `json:"absolute_tolerance,omitempty" yaml:"absolute_tolerance,omitempty"`
	SampleSize        int     `json:"sample_size,omitempty" yaml:"sample_size,omitempty"`
	Workers           int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	Profile           bool    `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// DefaultRunOptions returns the standard tunables: fuzzy match threshold
// 0.8, numeric tolerances aligned with the comparison engine, ten sampled
// mismatches per column, four parallel column workers.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MatchThreshold:    0.8,
		RelativeTolerance: 1e-5,
		AbsoluteTolerance: 1e-9,
		SampleSize:        10,
		Workers:           4,
	}
}

// Normalized returns a copy with zero fields replaced by defaults.
func (o RunOptions) Normalized() RunOptions {
	def := DefaultRunOptions()
	if o.MatchThreshold <= 0 {
		o.MatchThreshold = def.MatchThreshold
	}
	if o.RelativeTolerance <= 0 {
		o.RelativeTolerance = def.RelativeTolerance
	}
	if o.AbsoluteTolerance <= 0 {
		o.AbsoluteTolerance = def.AbsoluteTolerance
	}
	if o.SampleSize <= 0 {
		o.SampleSize = def.SampleSize
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	return o
}

// ExportSpec configures report export for a run. Formats lists the
// renderings to produce ("json", "xlsx", "zip"); Dir overrides the engine's
// export directory when set.
type ExportSpec struct {
	Formats []string `json:"formats,omitempty" yaml:"formats,omitempty"`
	Dir     string   `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// RunDefinition is the declarative form of one reconciliation run: both
// readers, the join key, optional mapping overrides on top of the automatic
// proposal, tunables, and export settings. It is the body of the run
// creation endpoint and the document format of batch run files.
type RunDefinition struct {
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Source      ReaderSpec     `json:"source" yaml:"source"`
	Target      ReaderSpec     `json:"target" yaml:"target"`
	JoinColumns []string       `json:"join_columns" yaml:"join_columns"`
	Mapping     []MappingEntry `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Options     RunOptions     `json:"options,omitempty" yaml:"options,omitempty"`
	Export      ExportSpec     `json:"export,omitempty" yaml:"export,omitempty"`
}

// Validate checks the structural requirements of a run definition. Join
// and mapping semantics are validated later against the actual schemas;
// this only rejects definitions no reader registry could serve.
func (d *RunDefinition) Validate() error {
	if d.Source.Type == "" {
		return fmt.Errorf("source reader type is required")
	}
	if d.Target.Type == "" {
		return fmt.Errorf("target reader type is required")
	}
	for _, e := range d.Mapping {
		if e.Source == "" {
			return fmt.Errorf("mapping entries require a source column")
		}
	}
	return nil
}

// LoadRunDefinition reads and validates a YAML run definition file.
func LoadRunDefinition(path string) (*RunDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run definition: %w", err)
	}
	var def RunDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse run definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run definition: %w", err)
	}
	return &def, nil
}
