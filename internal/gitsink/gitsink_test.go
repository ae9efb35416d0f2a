package gitsink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

var commitSignature = object.Signature{Name: "tester", Email: "tester@local"}

func newTestRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	return root
}

func writeAndCommitSeed(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("seed\n"), 0o644))
	repo, err := git.PlainOpen(root)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("seed", &git.CommitOptions{Author: &commitSignature})
	require.NoError(t, err)
}

func writeFoldFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, "fold", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestCommit_CommitsFoldTreeChanges(t *testing.T) {
	root := newTestRepo(t)
	writeAndCommitSeed(t, root)
	writeFoldFile(t, root, "ab/cd1234.md", "---\ntitle: x\n---\nbody\n")

	sink := New()
	hash, err := sink.Commit(context.Background(), root, "p", "master", 1)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
}

func TestCommit_NoopWhenFoldUnchanged(t *testing.T) {
	root := newTestRepo(t)
	writeAndCommitSeed(t, root)
	writeFoldFile(t, root, "ab/cd1234.md", "---\ntitle: x\n---\nbody\n")

	sink := New()
	_, err := sink.Commit(context.Background(), root, "p", "master", 1)
	require.NoError(t, err)

	hash, err := sink.Commit(context.Background(), root, "p", "master", 1)
	require.NoError(t, err)
	require.Empty(t, hash)
}

func TestCommit_FailsOnUnrelatedStagedChanges(t *testing.T) {
	root := newTestRepo(t)
	writeAndCommitSeed(t, root)
	writeFoldFile(t, root, "ab/cd1234.md", "---\ntitle: x\n---\nbody\n")

	require.NoError(t, os.WriteFile(filepath.Join(root, "other.txt"), []byte("unrelated\n"), 0o644))
	repo, err := git.PlainOpen(root)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("other.txt")
	require.NoError(t, err)

	sink := New()
	_, err = sink.Commit(context.Background(), root, "p", "master", 1)
	require.Error(t, err)
	require.True(t, foldcore.Is(err, GitDirty))
}

func TestCommit_ProceedsOnBranchMismatch(t *testing.T) {
	root := newTestRepo(t)
	writeAndCommitSeed(t, root)
	writeFoldFile(t, root, "ab/cd1234.md", "---\ntitle: x\n---\nbody\n")

	sink := New()
	hash, err := sink.Commit(context.Background(), root, "p", "release/9.0", 1)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
}
