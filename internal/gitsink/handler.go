package gitsink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Generation-One/fold/internal/foldcore"
)

// jobPayload mirrors internal/indexer's enqueueGitCommit payload shape.
type jobPayload struct {
	ProjectID   string `json:"project_id"`
	ProjectSlug string `json:"project_slug"`
	Root        string `json:"root"`
	Branch      string `json:"branch"`
	FileCount   int    `json:"file_count"`
}

// Handler returns a jobqueue.Handler (typed as func(context.Context,
// foldcore.Job) error to avoid an import cycle with internal/jobqueue)
// that commits the fold tree for the job's project, per spec §4.12.
func (s *Sink) Handler() func(ctx context.Context, job foldcore.Job) error {
	return func(ctx context.Context, job foldcore.Job) error {
		var p jobPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return foldcore.Wrap(foldcore.InvalidInput, fmt.Errorf("git_commit payload: %w", err))
		}
		if p.Root == "" {
			return foldcore.Newf(foldcore.InvalidInput, "git_commit payload missing root")
		}
		_, err := s.Commit(ctx, p.Root, p.ProjectSlug, p.Branch, p.FileCount)
		return err
	}
}
