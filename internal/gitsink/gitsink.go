// Package gitsink implements the GitSink collaborator (spec.md §4.12): it
// auto-commits the fold tree after an indexing batch completes. Grounded on
// internal/repository/service.go's detectGitBranch (go-git/go-git/v5
// PlainOpen with parent-directory fallback) for staging and committing, and
// pkg/git/branch.go's DetectBranch for a cheap read-only check of the
// worktree's checked-out branch against the Repository's tracked branch
// before committing to it.
package gitsink

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Generation-One/fold/internal/foldcore"
	pkggit "github.com/Generation-One/fold/pkg/git"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// GitDirty is the foldcore.Kind used when the working tree has staged
// changes outside fold/, per spec §4.12.
const GitDirty foldcore.Kind = "git_dirty"

// Author identifies the commits GitSink makes.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor matches the teacher's bot-commit convention; callers can
// override with WithAuthor.
var DefaultAuthor = Author{Name: "fold-bot", Email: "fold-bot@local"}

// Sink commits changes under a project root's fold/ subtree.
type Sink struct {
	author Author
	log    *zap.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithAuthor overrides the commit author/email.
func WithAuthor(a Author) Option {
	return func(s *Sink) { s.author = a }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Sink) { s.log = log }
}

// New builds a Sink.
func New(options ...Option) *Sink {
	s := &Sink{author: DefaultAuthor, log: zap.NewNop()}
	for _, o := range options {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Commit opens the repository at root, stages fold/, and commits with
// message "fold: index <fileCount> file(s) from <project>", per spec
// §4.12. If fold/ has no changes to stage, Commit is a no-op and returns
// an empty hash. If the working tree carries staged changes outside
// fold/, Commit fails with a GitDirty error rather than committing them.
// expectedBranch is the Repository's tracked branch (spec.md §3); if the
// worktree's checked-out branch differs, Commit still proceeds (the fold
// tree reflects whatever was actually indexed) but logs a warning so an
// operator notices indexing ran against the wrong checkout.
func (s *Sink) Commit(ctx context.Context, root, project, expectedBranch string, fileCount int) (string, error) {
	if expectedBranch != "" {
		if actual, berr := pkggit.DetectBranch(root); berr == nil && actual != expectedBranch {
			s.log.Warn("gitsink: checked-out branch differs from repository's tracked branch",
				zap.String("project", project), zap.String("tracked_branch", expectedBranch),
				zap.String("checked_out_branch", actual), zap.Bool("tracked_is_main", pkggit.IsMainBranch(expectedBranch)))
		}
	}

	repo, err := openRepo(root)
	if err != nil {
		return "", foldcore.Wrap(foldcore.Storage, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", foldcore.Wrap(foldcore.Storage, fmt.Errorf("worktree: %w", err))
	}

	status, err := wt.Status()
	if err != nil {
		return "", foldcore.Wrap(foldcore.Storage, fmt.Errorf("status: %w", err))
	}

	if err := checkNoUnrelatedStagedChanges(status); err != nil {
		return "", err
	}

	if !foldTreeDirty(status) {
		s.log.Debug("gitsink: no fold/ changes, skipping commit", zap.String("project", project))
		return "", nil
	}

	if _, err := wt.Add("fold/"); err != nil {
		return "", foldcore.Wrap(foldcore.Storage, fmt.Errorf("staging fold/: %w", err))
	}

	msg := fmt.Sprintf("fold: index %d file(s) from %s", fileCount, project)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.author.Name,
			Email: s.author.Email,
		},
	})
	if err != nil {
		return "", foldcore.Wrap(foldcore.Storage, fmt.Errorf("commit: %w", err))
	}

	s.log.Info("gitsink: committed fold tree", zap.String("project", project), zap.Int("files", fileCount), zap.String("hash", hash.String()))
	return hash.String(), nil
}

// openRepo mirrors detectGitBranch's PlainOpen-with-parent-fallback: root
// is usually the project root, which is the repository root, but a nested
// working directory is tolerated.
func openRepo(root string) (*git.Repository, error) {
	repo, err := git.PlainOpen(root)
	if err == nil {
		return repo, nil
	}
	for parent := filepath.Dir(root); parent != "/" && parent != "."; parent = filepath.Dir(parent) {
		repo, err = git.PlainOpen(parent)
		if err == nil {
			return repo, nil
		}
	}
	return nil, fmt.Errorf("open repository at %s: %w", root, err)
}

// foldTreeDirty reports whether status has any entry under fold/.
func foldTreeDirty(status git.Status) bool {
	for path, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		if strings.HasPrefix(filepath.ToSlash(path), "fold/") {
			return true
		}
	}
	return false
}

// checkNoUnrelatedStagedChanges returns a GitDirty error if anything
// outside fold/ is already staged, per spec §4.12's "operators resolve
// manually" policy: the sink never touches or commits changes it did not
// make.
func checkNoUnrelatedStagedChanges(status git.Status) error {
	for path, st := range status {
		if st.Staging == git.Unmodified || st.Staging == git.Untracked {
			continue
		}
		if strings.HasPrefix(filepath.ToSlash(path), "fold/") {
			continue
		}
		return foldcore.Newf(GitDirty, "unrelated staged change outside fold/: %s", path)
	}
	return nil
}
