package services

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.uber.org/zap"

	"github.com/reconlab/recon-engine/pkg/models"
)

// ColumnMatcher proposes source-to-target column mappings by name.
type ColumnMatcher interface {
	// Propose builds a mapping for every source column, in source order.
	// Matching runs in two passes: case-insensitive exact matches first,
	// then fuzzy matches scored by edit-distance ratio. A target column is
	// claimed by at most one source column. Source columns with no match
	// above the threshold are returned unmapped.
	Propose(sourceColumns, targetColumns []string, threshold float64) models.Mapping
}

type columnMatcher struct {
	logger *zap.Logger
}

// NewColumnMatcher creates a new ColumnMatcher.
func NewColumnMatcher(logger *zap.Logger) ColumnMatcher {
	return &columnMatcher{logger: logger.Named("column-matcher")}
}

func (m *columnMatcher) Propose(sourceColumns, targetColumns []string, threshold float64) models.Mapping {
	entries := make([]models.MappingEntry, len(sourceColumns))
	claimed := make(map[string]bool, len(targetColumns))

	// Pass 1: case-insensitive exact matches. First unclaimed target wins.
	for i, src := range sourceColumns {
		entries[i] = models.MappingEntry{Source: src}
		for _, tgt := range targetColumns {
			if claimed[tgt] || !strings.EqualFold(src, tgt) {
				continue
			}
			entries[i].Target = tgt
			entries[i].Score = 1.0
			entries[i].Exact = true
			claimed[tgt] = true
			break
		}
	}

	// Pass 2: fuzzy matches for the remainder. A candidate must score
	// strictly above the threshold; on ties the earlier target wins.
	for i := range entries {
		if entries[i].Target != "" {
			continue
		}
		src := entries[i].Source

		best := threshold
		bestTarget := ""
		for _, tgt := range targetColumns {
			if claimed[tgt] {
				continue
			}
			if score := nameSimilarity(src, tgt); score > best {
				best = score
				bestTarget = tgt
			}
		}
		if bestTarget == "" {
			m.logger.Debug("no match for source column",
				zap.String("source", src),
				zap.Float64("threshold", threshold))
			continue
		}

		entries[i].Target = bestTarget
		entries[i].Score = best
		claimed[bestTarget] = true
		m.logger.Debug("fuzzy match",
			zap.String("source", src),
			zap.String("target", bestTarget),
			zap.Float64("score", best))
	}

	mapping := models.Mapping{Entries: entries}

	exact, fuzzy, unmapped := 0, 0, 0
	for _, e := range entries {
		switch {
		case e.Exact:
			exact++
		case e.Target != "":
			fuzzy++
		default:
			unmapped++
		}
	}
	m.logger.Info("proposed column mapping",
		zap.Int("source_columns", len(sourceColumns)),
		zap.Int("target_columns", len(targetColumns)),
		zap.Int("exact", exact),
		zap.Int("fuzzy", fuzzy),
		zap.Int("unmapped", unmapped))

	return mapping
}

// nameSimilarity scores two column names in [0, 1]. Names are compared
// case-insensitively; 1.0 means equal.
func nameSimilarity(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1.0
	}
	if la == "" || lb == "" {
		return 0.0
	}
	return levenshtein.RatioForStrings([]rune(la), []rune(lb), levenshtein.DefaultOptions)
}
