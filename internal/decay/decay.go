// Package decay implements the ACT-R-style memory-strength scoring and the
// relevance/strength blend used to rank search results (SPEC_FULL.md §4.11).
// Every function here is pure spec-defined math with no teacher precedent:
// the blending shape (over-fetch then re-rank) is grounded on
// internal/reasoningbank/service.go's scoreAndFilterResults/applyScoreBoosting,
// but the ACT-R curve itself is implemented directly from spec.md §4.11.
package decay

import (
	"math"
	"time"
)

// hoursPerDay converts a duration to the fractional-day unit the strength
// formula is defined in.
const hoursPerDay = 24.0

// accessBoostScale is the 0.1 coefficient in spec §4.11's
// `access_boost = log2(1 + retrieval_count) * 0.1`.
const accessBoostScale = 0.1

// Strength computes the ACT-R memory-strength scalar for a memory, given
// the freshest of its updated_at/last_accessed timestamps and its retrieval
// count. The result is clamped to [0, 1]; it is monotonically non-increasing
// in age and non-decreasing in retrieval count (P8).
func Strength(now time.Time, updatedAt time.Time, lastAccessed *time.Time, retrievalCount int, halfLifeDays float64) float64 {
	reference := updatedAt
	if lastAccessed != nil && lastAccessed.After(reference) {
		reference = *lastAccessed
	}

	ageDays := now.Sub(reference).Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	if halfLifeDays <= 0 {
		halfLifeDays = 1 // defensive: Project.Validate rejects this, but never divide by zero here
	}

	recencyFactor := math.Pow(0.5, ageDays/halfLifeDays)
	accessBoost := math.Log2(1+float64(retrievalCount)) * accessBoostScale

	strength := recencyFactor + accessBoost
	return clamp01(strength)
}

// Combined blends a candidate's raw cosine relevance with its memory
// strength, weighted by the project's strength_weight (spec §4.11). At
// weight 0 the result is pure relevance; at weight 1 it is pure strength
// (P9).
func Combined(relevance, strength, strengthWeight float64) float64 {
	return clamp01((1-strengthWeight)*relevance + strengthWeight*strength)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
