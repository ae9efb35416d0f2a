// Package relstore implements the RelationalStore collaborator (spec.md
// §6.1/§6.3): the relational system of record for projects, repositories,
// memories, chunks, links, and jobs. internal/memory, internal/linker, and
// internal/jobqueue all depend on the Store interface here, never on the
// concrete Postgres type, so they can be exercised against fakes.
package relstore

import (
	"context"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
)

// MemoryFilter narrows ListMemories/Search joins. Zero values are
// unconstrained.
type MemoryFilter struct {
	ProjectID string
	IDs       []string
}

// Store is the relational collaborator every other component depends on.
// Every method returns a foldcore.Error on failure (NotFound, Conflict,
// Storage) so callers can branch per §7's policy table.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p foldcore.Project) error
	GetProject(ctx context.Context, id string) (foldcore.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (foldcore.Project, error)
	DeleteProject(ctx context.Context, id string) error // cascades per §3

	// Repositories
	CreateRepository(ctx context.Context, r foldcore.Repository) error
	GetRepository(ctx context.Context, id string) (foldcore.Repository, error)
	FindRepository(ctx context.Context, projectID, provider, owner, name, branch string) (foldcore.Repository, error)
	UpdateRepositoryLastIndexed(ctx context.Context, id, commit string) error

	// Memories
	CreateMemory(ctx context.Context, m foldcore.Memory) error
	UpdateMemory(ctx context.Context, m foldcore.Memory) error
	GetMemory(ctx context.Context, id string) (foldcore.Memory, error)
	// FindByID is a existence+hash probe used by the indexer's skip-or-update
	// decision (spec §4.9 step 3) without paying for a full row scan.
	FindByID(ctx context.Context, id string) (contentHash string, found bool, err error)
	DeleteMemory(ctx context.Context, id string) error
	ListMemories(ctx context.Context, filter MemoryFilter) ([]foldcore.Memory, error)
	// RecordAccess bumps retrieval_count and last_accessed for every id in
	// ids, best-effort, per §4.11's "side effect ... must not delay the
	// response".
	RecordAccess(ctx context.Context, ids []string, at time.Time) error

	// Chunks
	ReplaceChunks(ctx context.Context, memoryID string, chunks []foldcore.Chunk) error
	DeleteChunksByMemory(ctx context.Context, memoryID string) error
	ListChunksByMemory(ctx context.Context, memoryID string) ([]foldcore.Chunk, error)

	// Links
	CreateLink(ctx context.Context, l foldcore.Link) error // idempotent: Conflict treated as success by callers
	DeleteLinksForMemory(ctx context.Context, memoryID string) error
	ListLinksFrom(ctx context.Context, memoryID string) ([]foldcore.Link, error)
	ListLinksTo(ctx context.Context, memoryID string) ([]foldcore.Link, error)

	// Jobs
	EnqueueJob(ctx context.Context, j foldcore.Job) error
	GetJob(ctx context.Context, id string) (foldcore.Job, error)
	// Claim atomically transitions the highest-priority claimable job to
	// running for workerID, per spec §4.10/P5. Returns foldcore.NotFound
	// when nothing is claimable.
	Claim(ctx context.Context, workerID string) (foldcore.Job, error)
	Heartbeat(ctx context.Context, jobID, workerID string, at time.Time) error
	CompleteJob(ctx context.Context, jobID string) error
	RetryJob(ctx context.Context, jobID, lastError string, scheduledAt time.Time) error
	FailJob(ctx context.Context, jobID, lastError string) error
	CancelJob(ctx context.Context, jobID string) error
	// SweepStale returns running jobs whose locked_at is older than
	// staleBefore back to retry, per §4.10's recovery sweep / P6. Returns the
	// number of jobs recovered.
	SweepStale(ctx context.Context, staleBefore time.Time) (int, error)

	Close() error
}
