package indexer

import (
	"context"
	"sort"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/relstore"
)

// fakeStore is a minimal in-memory relstore.Store, same shape as
// internal/memory's own test fake: enough surface to drive Create/Update
// and the indexer's FindByID skip check without a database.
type fakeStore struct {
	memories map[string]foldcore.Memory
	jobs     []foldcore.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{memories: map[string]foldcore.Memory{}}
}

func (f *fakeStore) CreateProject(context.Context, foldcore.Project) error { return nil }
func (f *fakeStore) GetProject(context.Context, string) (foldcore.Project, error) {
	return foldcore.Project{}, nil
}
func (f *fakeStore) GetProjectBySlug(context.Context, string) (foldcore.Project, error) {
	return foldcore.Project{}, nil
}
func (f *fakeStore) DeleteProject(context.Context, string) error                { return nil }
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
	var out []foldcore.Memory
	for _, m := range f.memories {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
func (f *fakeStore) RecordAccess(context.Context, []string, time.Time) error { return nil }

func (f *fakeStore) ReplaceChunks(context.Context, string, []foldcore.Chunk) error { return nil }
func (f *fakeStore) DeleteChunksByMemory(context.Context, string) error           { return nil }
func (f *fakeStore) ListChunksByMemory(context.Context, string) ([]foldcore.Chunk, error) {
	return nil, nil
}

func (f *fakeStore) CreateLink(context.Context, foldcore.Link) error         { return nil }
func (f *fakeStore) DeleteLinksForMemory(context.Context, string) error      { return nil }
func (f *fakeStore) ListLinksFrom(context.Context, string) ([]foldcore.Link, error) {
	return nil, nil
}
func (f *fakeStore) ListLinksTo(context.Context, string) ([]foldcore.Link, error) {
	return nil, nil
}

func (f *fakeStore) EnqueueJob(_ context.Context, j foldcore.Job) error {
	f.jobs = append(f.jobs, j)
	return nil
}
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
