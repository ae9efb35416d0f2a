// Package linker implements the A-MEM agentic linker (SPEC_FULL.md §4.8):
// after a memory is created or its payload changes, propose typed links to
// its nearest neighbors via an LLM call, and mutate neighbor context in
// place. Grounded on internal/reasoningbank/service.go's nearest-neighbor
// search plus internal/llm's prompt/retry machinery; the fire-and-forget
// goroutine shape is modeled on internal/folding/manager.go's
// startTimeoutWatcher/transitionTo guarded-mutation style.
package linker

import (
	"context"
	"time"

	"github.com/Generation-One/fold/internal/blobstore"
	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/llm"
	"github.com/Generation-One/fold/internal/relstore"
	"github.com/Generation-One/fold/internal/vectorstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// neighborK is the fixed neighbor fan-out, per spec §4.8 step 1.
const neighborK = 5

// asyncTimeout bounds a fire-and-forget Propose call so a stuck LLM or
// vector-store request cannot leak a goroutine past the indexing run that
// spawned it.
const asyncTimeout = 90 * time.Second

// Linker proposes and persists links between memories. It satisfies
// internal/memory.Linker.
type Linker struct {
	rel  relstore.Store
	vec  vectorstore.Store
	blob *blobstore.Store
	llm  *llm.Client
	// embedQuery re-embeds a memory's text to search its neighbors; it is
	// the search-path embedder, supplied separately from the index-path
	// embedder the memory service already used when the memory was created.
	embedQuery func(ctx context.Context, text string) ([]float32, error)

	log *zap.Logger
}

// Option configures a Linker.
type Option func(*Linker)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Linker) { l.log = log }
}

// New builds a Linker from its collaborators.
func New(rel relstore.Store, vec vectorstore.Store, blob *blobstore.Store, llmClient *llm.Client, embedQuery func(ctx context.Context, text string) ([]float32, error), opts ...Option) *Linker {
	l := &Linker{rel: rel, vec: vec, blob: blob, llm: llmClient, embedQuery: embedQuery, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

// Propose runs ProposeSync in the background. Errors are logged, never
// returned, per spec §9's "must never cause a user-facing failure".
func (l *Linker) Propose(ctx context.Context, memoryID string) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()
		if err := l.ProposeSync(bgCtx, memoryID); err != nil {
			l.log.Warn("linker: propose failed", zap.String("memory_id", memoryID), zap.Error(err))
		}
	}()
	_ = ctx // the caller's context is not propagated: linking must outlive the request that triggered it
}

// ProposeSync implements the six-step algorithm of spec §4.8.
func (l *Linker) ProposeSync(ctx context.Context, memoryID string) error {
	mem, err := l.rel.GetMemory(ctx, memoryID)
	if err != nil {
		return err
	}

	neighbors, err := l.nearestNeighbors(ctx, mem)
	if err != nil {
		return err
	}
	if len(neighbors) == 0 {
		return nil
	}

	evolution, err := l.llm.SuggestEvolution(ctx, memorySummary(mem), neighbors)
	if err != nil {
		return err
	}
	if !evolution.ShouldEvolve {
		return nil
	}

	byID := make(map[string]llm.Neighbor, len(neighbors))
	for _, n := range neighbors {
		byID[n.ID] = n
	}

	var linked []string
	for _, targetID := range evolution.SuggestedConnections {
		if _, ok := byID[targetID]; !ok {
			continue // only actual neighbors may be linked, per step 4
		}
		link := foldcore.Link{
			ID:             uuid.NewString(),
			ProjectID:      mem.ProjectID,
			SourceMemoryID: mem.ID,
			TargetMemoryID: targetID,
			LinkType:       foldcore.LinkRelated,
			CreatedBy:      foldcore.CreatedByAI,
			CreatedAt:      time.Now().UTC(),
		}
		if err := link.Validate(); err != nil {
			l.log.Warn("linker: skipping invalid link", zap.String("target", targetID), zap.Error(err))
			continue
		}
		if err := l.rel.CreateLink(ctx, link); err != nil && !foldcore.Is(err, foldcore.Conflict) {
			l.log.Warn("linker: create link failed", zap.String("target", targetID), zap.Error(err))
			continue
		}
		linked = append(linked, targetID)
	}

	for neighborID, update := range evolution.NeighborContextUpdates {
		if update == "" {
			continue
		}
		if _, ok := byID[neighborID]; !ok {
			continue
		}
		if err := l.updateNeighborContext(ctx, neighborID, update); err != nil {
			l.log.Warn("linker: neighbor context update failed", zap.String("neighbor", neighborID), zap.Error(err))
		}
	}

	if mem.Source == foldcore.SourceAgent && len(linked) > 0 {
		if err := l.rewriteRelated(ctx, mem.ID); err != nil {
			l.log.Warn("linker: rewrite source fold file failed", zap.String("memory_id", mem.ID), zap.Error(err))
		}
	}
	for _, neighborID := range linked {
		if err := l.rewriteRelated(ctx, neighborID); err != nil {
			l.log.Warn("linker: rewrite neighbor fold file failed", zap.String("neighbor", neighborID), zap.Error(err))
		}
	}

	return nil
}

// nearestNeighbors fetches the k=5 nearest neighbors of mem from the
// project's vector collection, excluding mem itself, per spec §4.8 step 1.
func (l *Linker) nearestNeighbors(ctx context.Context, mem foldcore.Memory) ([]llm.Neighbor, error) {
	vec, err := l.embedQuery(ctx, memorySummary(mem))
	if err != nil {
		return nil, foldcore.Wrap(foldcore.Embed, err)
	}

	project, err := l.rel.GetProject(ctx, mem.ProjectID)
	if err != nil {
		return nil, err
	}
	collection := foldcore.CollectionName(project.Slug)
	hits, err := l.vec.Search(ctx, collection, vec, neighborK+1, map[string]interface{}{
		"project_id": mem.ProjectID, "kind": "memory",
	})
	if err != nil {
		return nil, foldcore.Wrap(foldcore.Vector, err)
	}

	var ids []string
	for _, h := range hits {
		if h.ID == mem.ID {
			continue
		}
		ids = append(ids, h.ID)
		if len(ids) >= neighborK {
			break
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	neighborMems, err := l.rel.ListMemories(ctx, relstore.MemoryFilter{ProjectID: mem.ProjectID, IDs: ids})
	if err != nil {
		return nil, err
	}

	neighbors := make([]llm.Neighbor, 0, len(neighborMems))
	for _, n := range neighborMems {
		neighbors = append(neighbors, llm.Neighbor{ID: n.ID, Title: n.Title, Summary: memorySummary(n), Tags: n.Tags})
	}
	return neighbors, nil
}

func (l *Linker) updateNeighborContext(ctx context.Context, neighborID, context string) error {
	neighbor, err := l.rel.GetMemory(ctx, neighborID)
	if err != nil {
		return err
	}
	neighbor.Context = context
	neighbor.UpdatedAt = time.Now().UTC()
	if err := l.rel.UpdateMemory(ctx, neighbor); err != nil {
		return err
	}
	if neighbor.Source != foldcore.SourceAgent {
		return nil
	}
	return l.rewriteFrontmatterContext(neighbor)
}

// rewriteRelated re-reads a memory's current `related` links in both
// directions (outgoing targets, then incoming sources as back-links) and
// rewrites its fold file's `## Related` block, per spec §4.8 step 6. Only
// agent-sourced memories have a fold file to rewrite.
func (l *Linker) rewriteRelated(ctx context.Context, memoryID string) error {
	mem, err := l.rel.GetMemory(ctx, memoryID)
	if err != nil {
		return err
	}
	if mem.Source != foldcore.SourceAgent {
		return nil
	}
	from, err := l.rel.ListLinksFrom(ctx, memoryID)
	if err != nil {
		return err
	}
	to, err := l.rel.ListLinksTo(ctx, memoryID)
	if err != nil {
		return err
	}
	var related []string
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			related = append(related, id)
		}
	}
	for _, link := range from {
		if link.LinkType == foldcore.LinkRelated {
			add(link.TargetMemoryID)
		}
	}
	for _, link := range to {
		if link.LinkType == foldcore.LinkRelated {
			add(link.SourceMemoryID)
		}
	}
	return l.blob.RewriteLinks(memoryID, related)
}

// rewriteFrontmatterContext persists a neighbor's updated context field to
// its fold file by rewriting the whole document: RewriteLinks only touches
// the Related block, so a context change requires a full read-modify-write.
func (l *Linker) rewriteFrontmatterContext(mem foldcore.Memory) error {
	doc, err := l.blob.Read(mem.ID)
	if err != nil {
		return err
	}
	doc.Frontmatter.UpdatedAt = blobstore.NowRFC3339()
	return l.blob.Write(mem.ID, doc.Frontmatter, doc.Body, doc.Frontmatter.RelatedTo)
}

func memorySummary(mem foldcore.Memory) string {
	if mem.Context != "" {
		return mem.Context
	}
	return mem.Content
}

// CreateStructural inserts one of the indexer's auto-generated structural
// edges (`commit--modifies-->file`, `pr--contains-->commit`,
// `pr--affects-->file`) without any LLM involvement, per spec §4.8's
// "Auto-generated structural links" note. Duplicate inserts are absorbed
// via the (source, target, type) unique constraint.
func CreateStructural(ctx context.Context, rel relstore.Store, projectID, sourceID, targetID string, linkType foldcore.LinkType) error {
	link := foldcore.Link{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		SourceMemoryID: sourceID,
		TargetMemoryID: targetID,
		LinkType:       linkType,
		CreatedBy:      foldcore.CreatedBySystem,
		CreatedAt:      time.Now().UTC(),
	}
	if err := link.Validate(); err != nil {
		return err
	}
	if err := rel.CreateLink(ctx, link); err != nil && !foldcore.Is(err, foldcore.Conflict) {
		return err
	}
	return nil
}
