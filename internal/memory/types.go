// Package memory implements the memory service (SPEC_FULL.md §4.7): the
// boundary component every other part of Fold calls to create, mutate,
// retrieve, and search memories, and where non-fatal collaborator failures
// are swallowed and reported as warnings rather than propagated.
package memory

import (
	"time"

	"github.com/Generation-One/fold/internal/decay"
	"github.com/Generation-One/fold/internal/foldcore"
)

// CreateInput is the caller-supplied payload for Create. The service
// computes ID and ContentHash itself; callers never set them.
type CreateInput struct {
	RepositoryID string
	Source       foldcore.Source
	Type         string
	Title        string
	Author       string
	Language     string
	FilePath     string
	LineStart    int
	LineEnd      int
	Keywords     []string
	Tags         []string
	Context      string

	// Payload is the full content: the fold-file body for agent sources,
	// the relational content field for file/git sources. Always required.
	Payload string

	// AutoMetadata requests analyse_content to fill Keywords/Tags/Context
	// when the caller left them unset, per spec §4.7.
	AutoMetadata bool

	// LinkSync requests the linker run synchronously (ProposeSync) instead
	// of the fire-and-forget default, per spec §4.8.
	LinkSync bool
}

// UpdatePatch mutates a memory in place. Nil fields are left unchanged; a
// non-nil Payload triggers content-hash recomputation, rechunking, and
// vector re-upsert per spec §4.7.
type UpdatePatch struct {
	Title    *string
	Type     *string
	Keywords *[]string
	Tags     *[]string
	Context  *string
	Payload  *string
}

// Result wraps a memory with any non-fatal degradation warnings collected
// during the operation, per spec §7's "warnings[] in the returned
// structure" propagation policy.
type Result struct {
	Memory   foldcore.Memory
	Warnings []string
}

// SearchParams are the caller-supplied parameters for Search.
type SearchParams struct {
	Query  string
	Limit  int
	Filter map[string]interface{}
}

// RankedMemory is one search result: the underlying memory joined with its
// decay-blended score and any matched chunk spans.
type RankedMemory struct {
	Memory        foldcore.Memory
	Relevance     float64
	Strength      float64
	Combined      float64
	MatchedChunks []decay.ChunkMatch
}

// SearchResult wraps the ranked page with degradation warnings, per §7:
// "search ... never fail on vector-store outage ... return an empty or
// degraded payload with a warning".
type SearchResult struct {
	Results  []RankedMemory
	Warnings []string
}

// ContextEdge is one outgoing or incoming memory_links row surfaced by
// Context.
type ContextEdge struct {
	SourceID string
	TargetID string
	Type     foldcore.LinkType
}

// ContextNeighbor is one memory reached during the breadth-first walk.
type ContextNeighbor struct {
	Memory foldcore.Memory
	Depth  int
}

// ContextResult is the center memory plus its bounded neighborhood, per
// spec §4.7's `context(project, id, depth)`.
type ContextResult struct {
	Center    foldcore.Memory
	Neighbors []ContextNeighbor
	Edges     []ContextEdge
}

// maxContextDepth caps the breadth-first walk regardless of the caller's
// requested depth, per spec §4.7 ("cap at 3").
const maxContextDepth = 3

func clampDepth(depth int) int {
	if depth <= 0 {
		return 1
	}
	if depth > maxContextDepth {
		return maxContextDepth
	}
	return depth
}

func unixSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
