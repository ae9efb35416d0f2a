package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/relstore"
	"github.com/Generation-One/fold/internal/vectorstore"
)

// fakeStore is an in-memory relstore.Store good enough to exercise Service
// without a database, grounded on the teacher's habit of testing service
// layers against hand-rolled fakes rather than mocking every method.
type fakeStore struct {
	memories map[string]foldcore.Memory
	chunks   map[string][]foldcore.Chunk
	links    []foldcore.Link
}

func newFakeStore() *fakeStore {
	return &fakeStore{memories: map[string]foldcore.Memory{}, chunks: map[string][]foldcore.Chunk{}}
}

func (f *fakeStore) CreateProject(context.Context, foldcore.Project) error { return nil }
func (f *fakeStore) GetProject(context.Context, string) (foldcore.Project, error) {
	return foldcore.Project{}, nil
}
func (f *fakeStore) GetProjectBySlug(context.Context, string) (foldcore.Project, error) {
	return foldcore.Project{}, nil
}
func (f *fakeStore) DeleteProject(context.Context, string) error { return nil }

func (f *fakeStore) CreateRepository(context.Context, foldcore.Repository) error { return nil }
func (f *fakeStore) GetRepository(context.Context, string) (foldcore.Repository, error) {
	return foldcore.Repository{}, nil
}
func (f *fakeStore) FindRepository(context.Context, string, string, string, string, string) (foldcore.Repository, error) {
	return foldcore.Repository{}, nil
}
func (f *fakeStore) UpdateRepositoryLastIndexed(context.Context, string, string) error { return nil }

func (f *fakeStore) CreateMemory(_ context.Context, m foldcore.Memory) error {
	f.memories[m.ID] = m
	return nil
}

func (f *fakeStore) UpdateMemory(_ context.Context, m foldcore.Memory) error {
	if _, ok := f.memories[m.ID]; !ok {
		return foldcore.New(foldcore.NotFound, "memory not found")
	}
	f.memories[m.ID] = m
	return nil
}

func (f *fakeStore) GetMemory(_ context.Context, id string) (foldcore.Memory, error) {
	m, ok := f.memories[id]
	if !ok {
		return foldcore.Memory{}, foldcore.New(foldcore.NotFound, "memory not found")
	}
	return m, nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (string, bool, error) {
	m, ok := f.memories[id]
	if !ok {
		return "", false, nil
	}
	return m.ContentHash, true, nil
}

func (f *fakeStore) DeleteMemory(_ context.Context, id string) error {
	delete(f.memories, id)
	return nil
}

func (f *fakeStore) ListMemories(_ context.Context, filter relstore.MemoryFilter) ([]foldcore.Memory, error) {
	wanted := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	var out []foldcore.Memory
	for _, m := range f.memories {
		if len(wanted) > 0 && !wanted[m.ID] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) RecordAccess(_ context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		m := f.memories[id]
		m.RetrievalCount++
		m.LastAccessed = &at
		f.memories[id] = m
	}
	return nil
}

func (f *fakeStore) ReplaceChunks(_ context.Context, memoryID string, chunks []foldcore.Chunk) error {
	f.chunks[memoryID] = chunks
	return nil
}
func (f *fakeStore) DeleteChunksByMemory(_ context.Context, memoryID string) error {
	delete(f.chunks, memoryID)
	return nil
}
func (f *fakeStore) ListChunksByMemory(_ context.Context, memoryID string) ([]foldcore.Chunk, error) {
	return f.chunks[memoryID], nil
}

func (f *fakeStore) CreateLink(_ context.Context, l foldcore.Link) error {
	for _, existing := range f.links {
		if existing.SourceMemoryID == l.SourceMemoryID && existing.TargetMemoryID == l.TargetMemoryID && existing.LinkType == l.LinkType {
			return nil
		}
	}
	f.links = append(f.links, l)
	return nil
}
func (f *fakeStore) DeleteLinksForMemory(_ context.Context, memoryID string) error {
	kept := f.links[:0]
	for _, l := range f.links {
		if l.SourceMemoryID != memoryID && l.TargetMemoryID != memoryID {
			kept = append(kept, l)
		}
	}
	f.links = kept
	return nil
}
func (f *fakeStore) ListLinksFrom(_ context.Context, memoryID string) ([]foldcore.Link, error) {
	var out []foldcore.Link
	for _, l := range f.links {
		if l.SourceMemoryID == memoryID {
			out = append(out, l)
		}
	}
	return out, nil
}
func (f *fakeStore) ListLinksTo(_ context.Context, memoryID string) ([]foldcore.Link, error) {
	var out []foldcore.Link
	for _, l := range f.links {
		if l.TargetMemoryID == memoryID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) EnqueueJob(context.Context, foldcore.Job) error { return nil }
func (f *fakeStore) GetJob(context.Context, string) (foldcore.Job, error) {
	return foldcore.Job{}, nil
}
func (f *fakeStore) Claim(context.Context, string) (foldcore.Job, error) {
	return foldcore.Job{}, foldcore.New(foldcore.NotFound, "no claimable job")
}
func (f *fakeStore) Heartbeat(context.Context, string, string, time.Time) error { return nil }
func (f *fakeStore) CompleteJob(context.Context, string) error                 { return nil }
func (f *fakeStore) RetryJob(context.Context, string, string, time.Time) error { return nil }
func (f *fakeStore) FailJob(context.Context, string, string) error             { return nil }
func (f *fakeStore) CancelJob(context.Context, string) error                   { return nil }
func (f *fakeStore) SweepStale(context.Context, time.Time) (int, error)        { return 0, nil }
func (f *fakeStore) Close() error                                              { return nil }

// fakeVectorStore is an in-memory vectorstore.Store: cosine similarity is
// not computed, Search just returns every stored point with a fixed score
// ordered by insertion, which is enough to exercise dedup/rerank.
type fakeVectorStore struct {
	points map[string][]vectorstore.Point
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: map[string][]vectorstore.Point{}}
}

func (v *fakeVectorStore) EnsureCollection(context.Context, string, int) error { return nil }
func (v *fakeVectorStore) DeleteCollection(_ context.Context, name string) error {
	delete(v.points, name)
	return nil
}
func (v *fakeVectorStore) Upsert(_ context.Context, collection string, points []vectorstore.Point) error {
	existing := v.points[collection]
	for _, p := range points {
		replaced := false
		for i, e := range existing {
			if e.ID == p.ID {
				existing[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, p)
		}
	}
	v.points[collection] = existing
	return nil
}
func (v *fakeVectorStore) Delete(_ context.Context, collection string, ids []string) error {
	toDelete := make(map[string]bool, len(ids))
	for _, id := range ids {
		toDelete[id] = true
	}
	kept := v.points[collection][:0]
	for _, p := range v.points[collection] {
		if !toDelete[p.ID] {
			kept = append(kept, p)
		}
	}
	v.points[collection] = kept
	return nil
}
func (v *fakeVectorStore) Search(_ context.Context, collection string, _ []float32, limit int, _ map[string]interface{}) ([]vectorstore.SearchHit, error) {
	var out []vectorstore.SearchHit
	for i, p := range v.points[collection] {
		out = append(out, vectorstore.SearchHit{ID: p.ID, Score: 1.0 - float32(i)*0.01, Metadata: p.Metadata})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (v *fakeVectorStore) Count(_ context.Context, collection string) (int, error) {
	return len(v.points[collection]), nil
}
func (v *fakeVectorStore) Health(context.Context) error { return nil }
func (v *fakeVectorStore) Close() error                 { return nil }

// fakeEmbedder returns a fixed-dimension zero vector per text; the memory
// service never inspects vector values, only counts and dimension.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f fakeEmbedder) Dimension() int { return f.dim }
func (f fakeEmbedder) Close() error   { return nil }

// fakeLinker records Propose calls without doing anything.
type fakeLinker struct {
	proposed []string
}

func (f *fakeLinker) Propose(_ context.Context, memoryID string) {
	f.proposed = append(f.proposed, memoryID)
}
func (f *fakeLinker) ProposeSync(_ context.Context, memoryID string) error {
	f.proposed = append(f.proposed, memoryID)
	return nil
}
