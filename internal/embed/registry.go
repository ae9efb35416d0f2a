package embed

import (
	"fmt"
	"sort"

	"github.com/Generation-One/fold/internal/foldcore"
)

// Entry binds a Provider to its priority in the index and search paths
// (spec.md §4.5). A provider used only for indexing or only for search
// leaves the unused priority at zero, which sorts last and is never
// selected while another provider has a positive priority for that path.
type Entry struct {
	Name           string
	Provider       Provider
	IndexPriority  int
	SearchPriority int
}

// Registry holds every configured embedding provider and picks which one
// serves bulk indexing versus query-time search.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a Registry from entries, highest priority first within
// each path.
func NewRegistry(entries []Entry) *Registry {
	return &Registry{entries: append([]Entry(nil), entries...)}
}

// Validate checks every entry reports the same Dimension(); a fixed
// dimension across providers is required because vector collections are
// sized once at creation (SPEC_FULL.md §4.6). A mismatch is startup-fatal.
func (r *Registry) Validate() error {
	if len(r.entries) == 0 {
		return foldcore.New(foldcore.InvalidInput, "embed: no providers configured")
	}
	dim := r.entries[0].Provider.Dimension()
	for _, e := range r.entries[1:] {
		if d := e.Provider.Dimension(); d != dim {
			return foldcore.Newf(foldcore.InvalidInput, "embed: dimension mismatch: %s reports %d, %s reports %d", r.entries[0].Name, dim, e.Name, d)
		}
	}
	return nil
}

// Dimension returns the shared embedding dimension. Callers must call
// Validate first.
func (r *Registry) Dimension() int {
	if len(r.entries) == 0 {
		return 0
	}
	return r.entries[0].Provider.Dimension()
}

// IndexEmbedder returns the provider with the highest IndexPriority, used
// for bulk indexing during ingest.
func (r *Registry) IndexEmbedder() (Provider, error) {
	return r.pick(func(e Entry) int { return e.IndexPriority })
}

// SearchEmbedder returns the provider with the highest SearchPriority, used
// to embed an incoming query at search time.
func (r *Registry) SearchEmbedder() (Provider, error) {
	return r.pick(func(e Entry) int { return e.SearchPriority })
}

func (r *Registry) pick(priority func(Entry) int) (Provider, error) {
	if len(r.entries) == 0 {
		return nil, foldcore.New(foldcore.InvalidInput, "embed: no providers configured")
	}
	ranked := append([]Entry(nil), r.entries...)
	sort.SliceStable(ranked, func(i, j int) bool { return priority(ranked[i]) > priority(ranked[j]) })
	if priority(ranked[0]) <= 0 {
		return nil, foldcore.New(foldcore.InvalidInput, "embed: no provider has a positive priority for this path")
	}
	return ranked[0].Provider, nil
}

// Close releases every registered provider, collecting the first error.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range r.entries {
		if err := e.Provider.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", e.Name, err)
		}
	}
	return firstErr
}
