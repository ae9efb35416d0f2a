package decay

import "sort"

// Candidate is one vector-store hit after it has been joined back to its
// owning memory's relational row, ready for decay blending and dedup.
type Candidate struct {
	MemoryID  string
	Relevance float64 // raw cosine similarity
	UpdatedAt int64    // unix seconds, used only for tie-breaking
	IsChunk   bool
	// ChunkInfo is populated when IsChunk is true, per spec §4.11's
	// "matched_chunks surfaces (start_line, end_line, node_type, node_name?)".
	ChunkInfo ChunkMatch
}

// ChunkMatch is the chunk-level detail surfaced under a deduplicated
// memory-level result, per spec §4.11 / P10.
type ChunkMatch struct {
	StartLine int
	EndLine   int
	NodeType  string
	NodeName  string
}

// Ranked is one deduplicated, decay-blended search result.
type Ranked struct {
	MemoryID      string
	Relevance     float64
	Strength      float64
	Combined      float64
	UpdatedAt     int64
	MatchedChunks []ChunkMatch
}

// Group collapses a slice of over-fetched candidates (memory-level and
// chunk-level points both present) into one entry per memory_id, keeping
// the best-scoring point's relevance and collecting every chunk hit as a
// MatchedChunks entry, per spec §4.11 / P10 ("each memory_id appears at most
// once ... chunk hits surface as matched_chunks of the parent memory").
func Group(candidates []Candidate) map[string]*Ranked {
	byMemory := make(map[string]*Ranked, len(candidates))
	for _, c := range candidates {
		r, ok := byMemory[c.MemoryID]
		if !ok {
			r = &Ranked{MemoryID: c.MemoryID, Relevance: c.Relevance, UpdatedAt: c.UpdatedAt}
			byMemory[c.MemoryID] = r
		} else if c.Relevance > r.Relevance {
			r.Relevance = c.Relevance
		}
		if c.IsChunk {
			r.MatchedChunks = append(r.MatchedChunks, c.ChunkInfo)
		}
	}
	return byMemory
}

// Rerank computes Strength/Combined for each grouped result using the
// supplied lookup, sorts descending by Combined with the spec's tie-break
// (more recent updated_at, then lexicographic id), and truncates to k.
func Rerank(grouped map[string]*Ranked, k int, combined func(r *Ranked) (strength, combinedScore float64)) []Ranked {
	out := make([]Ranked, 0, len(grouped))
	for _, r := range grouped {
		strength, score := combined(r)
		r.Strength = strength
		r.Combined = score
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Combined != out[j].Combined {
			return out[i].Combined > out[j].Combined
		}
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].MemoryID < out[j].MemoryID
	})

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
