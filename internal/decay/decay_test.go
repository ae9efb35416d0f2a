package decay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrength_S4Scenario(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	older := now.AddDate(0, 0, -10)
	s := Strength(now, older, nil, 0, 10)
	assert.InDelta(t, 0.5, s, 0.01)

	newer := now
	s = Strength(now, newer, nil, 0, 10)
	assert.InDelta(t, 1.0, s, 0.01)
}

func TestStrength_MonotonicInAge(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	var prev float64 = 2
	for days := 0; days <= 60; days += 5 {
		updated := now.AddDate(0, 0, -days)
		s := Strength(now, updated, nil, 0, 30)
		require.LessOrEqual(t, s, prev)
		prev = s
	}
}

func TestStrength_MonotonicInRetrievalCount(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	updated := now.AddDate(0, 0, -5)
	var prev float64 = -1
	for _, count := range []int{0, 1, 5, 20, 100} {
		s := Strength(now, updated, nil, count, 30)
		require.GreaterOrEqual(t, s, prev)
		prev = s
	}
}

func TestStrength_ClampedToUnitInterval(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	s := Strength(now, now, nil, 1_000_000, 30)
	assert.LessOrEqual(t, s, 1.0)

	veryOld := now.AddDate(-5, 0, 0)
	s = Strength(now, veryOld, nil, 0, 1)
	assert.GreaterOrEqual(t, s, 0.0)
}

func TestStrength_LastAccessedWinsOverUpdatedAt(t *testing.T) {
	now := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	updated := now.AddDate(0, 0, -30)
	accessed := now.AddDate(0, 0, -1)

	withAccess := Strength(now, updated, &accessed, 0, 10)
	withoutAccess := Strength(now, updated, nil, 0, 10)
	assert.Greater(t, withAccess, withoutAccess)
}

func TestCombined_S4Scenario(t *testing.T) {
	got := Combined(0.8, 0.5, 0.5)
	assert.InDelta(t, 0.65, got, 0.001)
}

func TestCombined_BoundsAtExtremeWeights(t *testing.T) {
	assert.Equal(t, 0.42, Combined(0.42, 0.9, 0))
	assert.Equal(t, 0.9, Combined(0.42, 0.9, 1))
}

func TestCombined_AlwaysWithinUnitInterval(t *testing.T) {
	for _, rel := range []float64{0, 0.3, 0.8, 1} {
		for _, str := range []float64{0, 0.3, 0.8, 1} {
			for _, w := range []float64{0, 0.25, 0.5, 0.75, 1} {
				got := Combined(rel, str, w)
				require.GreaterOrEqual(t, got, 0.0)
				require.LessOrEqual(t, got, 1.0)
			}
		}
	}
}

func TestGroup_DedupesChunkAndMemoryHits(t *testing.T) {
	candidates := []Candidate{
		{MemoryID: "m1", Relevance: 0.7, UpdatedAt: 100},
		{MemoryID: "m1", Relevance: 0.9, UpdatedAt: 100, IsChunk: true, ChunkInfo: ChunkMatch{StartLine: 1, EndLine: 5, NodeType: "function"}},
		{MemoryID: "m2", Relevance: 0.5, UpdatedAt: 90},
	}

	grouped := Group(candidates)
	require.Len(t, grouped, 2)
	require.Contains(t, grouped, "m1")
	assert.Equal(t, 0.9, grouped["m1"].Relevance) // best-scoring point per group
	require.Len(t, grouped["m1"].MatchedChunks, 1)
	assert.Equal(t, 1, grouped["m1"].MatchedChunks[0].StartLine)
}

func TestRerank_TieBreaksOnUpdatedAtThenID(t *testing.T) {
	grouped := map[string]*Ranked{
		"b": {MemoryID: "b", UpdatedAt: 100},
		"a": {MemoryID: "a", UpdatedAt: 100},
		"c": {MemoryID: "c", UpdatedAt: 200},
	}

	out := Rerank(grouped, 10, func(r *Ranked) (float64, float64) {
		return 0.5, 0.5 // identical combined score for every candidate
	})

	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].MemoryID) // most recent updated_at first
	assert.Equal(t, "a", out[1].MemoryID) // tie on updated_at -> lexicographic id
	assert.Equal(t, "b", out[2].MemoryID)
}

func TestRerank_TruncatesToK(t *testing.T) {
	grouped := map[string]*Ranked{
		"a": {MemoryID: "a"},
		"b": {MemoryID: "b"},
		"c": {MemoryID: "c"},
	}
	out := Rerank(grouped, 2, func(r *Ranked) (float64, float64) { return 0, 0 })
	assert.Len(t, out, 2)
}
