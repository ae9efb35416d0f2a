package jobqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/relstore"
)

// fakeStore is a minimal in-memory relstore.Store exercising just the Jobs
// surface the pool drives, same shape as internal/memory's and
// internal/indexer's own test fakes.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]foldcore.Job

	claims     int
	heartbeats int
	completed  []string
	retried    []string
	failed     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[string]foldcore.Job{}}
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

func (f *fakeStore) CreateMemory(context.Context, foldcore.Memory) error { return nil }
func (f *fakeStore) UpdateMemory(context.Context, foldcore.Memory) error { return nil }
func (f *fakeStore) GetMemory(context.Context, string) (foldcore.Memory, error) {
	return foldcore.Memory{}, nil
}
func (f *fakeStore) FindByID(context.Context, string) (string, bool, error) { return "", false, nil }
func (f *fakeStore) DeleteMemory(context.Context, string) error            { return nil }
func (f *fakeStore) ListMemories(context.Context, relstore.MemoryFilter) ([]foldcore.Memory, error) {
	return nil, nil
}
func (f *fakeStore) RecordAccess(context.Context, []string, time.Time) error { return nil }

func (f *fakeStore) ReplaceChunks(context.Context, string, []foldcore.Chunk) error { return nil }
func (f *fakeStore) DeleteChunksByMemory(context.Context, string) error           { return nil }
func (f *fakeStore) ListChunksByMemory(context.Context, string) ([]foldcore.Chunk, error) {
	return nil, nil
}

func (f *fakeStore) CreateLink(context.Context, foldcore.Link) error    { return nil }
func (f *fakeStore) DeleteLinksForMemory(context.Context, string) error { return nil }
func (f *fakeStore) ListLinksFrom(context.Context, string) ([]foldcore.Link, error) {
	return nil, nil
}
func (f *fakeStore) ListLinksTo(context.Context, string) ([]foldcore.Link, error) {
	return nil, nil
}

func (f *fakeStore) EnqueueJob(_ context.Context, j foldcore.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j.Status == "" {
		j.Status = foldcore.JobPending
	}
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, id string) (foldcore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return foldcore.Job{}, foldcore.New(foldcore.NotFound, "job not found")
	}
	return j, nil
}

// Claim picks the lowest-id pending/retry job still due. Unlike the
// Postgres implementation it does not order by priority, and it needs no
// real FOR UPDATE SKIP LOCKED transaction for single-process tests.
func (f *fakeStore) Claim(_ context.Context, workerID string) (foldcore.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now().UTC()
	for _, id := range ids {
		j := f.jobs[id]
		if j.Status != foldcore.JobPending && j.Status != foldcore.JobRetry {
			continue
		}
		if j.ScheduledAt != nil && j.ScheduledAt.After(now) {
			continue
		}
		j.Status = foldcore.JobRunning
		j.LockedBy = workerID
		lockedAt := now
		j.LockedAt = &lockedAt
		j.Attempts++
		f.jobs[id] = j
		f.claims++
		return j, nil
	}
	return foldcore.Job{}, foldcore.New(foldcore.NotFound, "no claimable job")
}

func (f *fakeStore) Heartbeat(_ context.Context, jobID, _ string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return foldcore.New(foldcore.NotFound, "job not found")
	}
	j.LockedAt = &at
	f.jobs[jobID] = j
	f.heartbeats++
	return nil
}

func (f *fakeStore) CompleteJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return foldcore.New(foldcore.NotFound, "job not found")
	}
	j.Status = foldcore.JobCompleted
	f.jobs[jobID] = j
	f.completed = append(f.completed, jobID)
	return nil
}

func (f *fakeStore) RetryJob(_ context.Context, jobID, lastError string, scheduledAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return foldcore.New(foldcore.NotFound, "job not found")
	}
	j.Status = foldcore.JobRetry
	j.LastError = lastError
	j.ScheduledAt = &scheduledAt
	j.LockedAt = nil
	f.jobs[jobID] = j
	f.retried = append(f.retried, jobID)
	return nil
}

func (f *fakeStore) FailJob(_ context.Context, jobID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return foldcore.New(foldcore.NotFound, "job not found")
	}
	j.Status = foldcore.JobFailed
	j.LastError = lastError
	f.jobs[jobID] = j
	f.failed = append(f.failed, jobID)
	return nil
}

func (f *fakeStore) CancelJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return foldcore.New(foldcore.NotFound, "job not found")
	}
	j.Status = foldcore.JobCancelled
	f.jobs[jobID] = j
	return nil
}

func (f *fakeStore) SweepStale(_ context.Context, staleBefore time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, j := range f.jobs {
		if j.Status == foldcore.JobRunning && j.LockedAt != nil && j.LockedAt.Before(staleBefore) {
			j.Status = foldcore.JobRetry
			j.LockedAt = nil
			now := time.Now().UTC()
			j.ScheduledAt = &now
			f.jobs[id] = j
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) jobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeStore) statusOf(id string) foldcore.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

func (f *fakeStore) attemptsOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Attempts
}
