// Package foldcore holds the domain types shared by every Fold component
// and the Kind-tagged error taxonomy components use to report failures.
package foldcore

import (
	"fmt"
	"time"
)

// DecayParams controls how quickly a project's memories lose retrieval
// strength over time. See internal/decay.
type DecayParams struct {
	StrengthWeight float64
	HalfLifeDays   float64
}

// Validate checks that decay parameters are within the ranges the scoring
// math in internal/decay assumes.
func (d DecayParams) Validate() error {
	if d.StrengthWeight < 0 || d.StrengthWeight > 1 {
		return Newf(InvalidInput, "strength_weight must be in [0,1], got %f", d.StrengthWeight)
	}
	if d.HalfLifeDays <= 0 {
		return Newf(InvalidInput, "half_life_days must be positive, got %f", d.HalfLifeDays)
	}
	return nil
}

// Project is the top-level namespace. Deleting a project cascades to its
// memories, links, jobs, chunks, and vector collection.
type Project struct {
	ID      string
	Slug    string
	Root    string
	Include []string
	Exclude []string
	Decay   DecayParams
}

// Validate checks the invariants construction must enforce.
func (p Project) Validate() error {
	if p.Slug == "" {
		return Newf(InvalidInput, "project slug is required")
	}
	if p.Root == "" {
		return Newf(InvalidInput, "project root is required")
	}
	return p.Decay.Validate()
}

// Repository is one source tree bound to a project, tracking a single
// branch and the last commit indexed from it.
type Repository struct {
	ID           string
	ProjectID    string
	Provider     string
	Owner        string
	Name         string
	Branch       string
	LastIndexed  string
	LocalPath    string
}

// Source identifies where a Memory's payload is stored, per spec §3
// invariant 3.
type Source string

const (
	SourceFile  Source = "file"
	SourceAgent Source = "agent"
	SourceGit   Source = "git"
)

// Valid reports whether s is one of the three defined sources.
func (s Source) Valid() bool {
	switch s {
	case SourceFile, SourceAgent, SourceGit:
		return true
	}
	return false
}

// Memory is the primary entity: a searchable, decay-scored unit of content.
type Memory struct {
	ID           string
	ProjectID    string
	RepositoryID string
	Source       Source
	Type         string
	ContentHash  string
	Title        string
	Author       string
	Language     string
	FilePath     string
	LineStart    int
	LineEnd      int
	Keywords     []string
	Tags         []string
	Context      string

	// Content holds the relational-row summary for file/git sources. Agent
	// sources leave this empty; their payload lives only in the blob store.
	Content string

	RetrievalCount int
	LastAccessed   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is a sub-span of a memory's payload used as a search auxiliary, not
// an independently retrievable memory.
type Chunk struct {
	ID          string
	MemoryID    string
	ProjectID   string
	Content     string
	ContentHash string
	StartLine   int
	EndLine     int
	StartByte   int
	EndByte     int
	NodeType    string
	NodeName    string
	Language    string
}

// LinkType classifies a directed edge between two memories.
type LinkType string

const (
	LinkRelated    LinkType = "related"
	LinkReferences LinkType = "references"
	LinkDependsOn  LinkType = "depends_on"
	LinkModifies   LinkType = "modifies"
	// LinkContains and LinkAffects are auto-generated structural edges
	// produced by the indexer for commit/pr memories (§4.8/§4.9); they are
	// not proposed by the A-MEM linker.
	LinkContains LinkType = "contains"
	LinkAffects  LinkType = "affects"
)

// Valid reports whether t is one of the defined link types.
func (t LinkType) Valid() bool {
	switch t {
	case LinkRelated, LinkReferences, LinkDependsOn, LinkModifies, LinkContains, LinkAffects:
		return true
	}
	return false
}

// CreatedBy records who proposed a Link.
type CreatedBy string

const (
	CreatedBySystem CreatedBy = "system"
	CreatedByUser   CreatedBy = "user"
	CreatedByAI     CreatedBy = "ai"
)

// Link is a directed, typed edge between two memories. (source, target,
// type) is unique.
type Link struct {
	ID             string
	ProjectID      string
	SourceMemoryID string
	TargetMemoryID string
	LinkType       LinkType
	Confidence     *float64
	Context        string
	CreatedBy      CreatedBy
	CreatedAt      time.Time
}

// ErrSelfLink is returned when a link's source and target resolve to the
// same memory id; chunk-to-chunk links within one memory carry no
// information the fold tree doesn't already encode.
var ErrSelfLink = New(InvalidInput, "a memory cannot link to itself")

// Validate checks uniqueness-relevant and type-validity invariants that do
// not require a round trip to the relational store.
func (l Link) Validate() error {
	if l.SourceMemoryID == l.TargetMemoryID {
		return ErrSelfLink
	}
	if !l.LinkType.Valid() {
		return Newf(InvalidInput, "invalid link type %q", l.LinkType)
	}
	if l.Confidence != nil && (*l.Confidence < 0 || *l.Confidence > 1) {
		return Newf(InvalidInput, "confidence must be in [0,1], got %f", *l.Confidence)
	}
	return nil
}

// JobStatus is the state of a durable work item, per §4.10's state machine.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobRetry     JobStatus = "retry"
	JobCancelled JobStatus = "cancelled"
)

// ValidJobTransitions enumerates the transitions the job queue (C10) allows.
// A retried job becomes claimable again the same way a pending job is: the
// claim query selects on status IN (pending, retry).
var ValidJobTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobRunning, JobCancelled},
	JobRunning: {JobCompleted, JobFailed, JobRetry, JobCancelled},
	JobRetry:   {JobRunning, JobCancelled},
}

// CanTransition reports whether moving a job from 'from' to 'to' is legal.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range ValidJobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Job is a durable, atomically-claimable unit of work processed by the
// queue's worker pool.
type Job struct {
	ID            string
	Type          string
	Status        JobStatus
	Payload       []byte
	Priority      int
	ScheduledAt   *time.Time
	LockedAt      *time.Time
	LockedBy      string
	Attempts      int
	MaxRetries    int
	LastError     string
	TotalItems    *int
	ProcessedItems int
	FailedItems   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// String satisfies fmt.Stringer for log-friendly job identification.
func (j Job) String() string {
	return fmt.Sprintf("job(%s type=%s status=%s attempts=%d)", j.ID, j.Type, j.Status, j.Attempts)
}
