// Package indexer implements the repository walker (SPEC_FULL.md §4.9):
// it decides skip/insert/update per file and drives the memory service
// (C7), grounded on internal/repository/service.go's filepath.Walk-based
// traversal and defaultSkipDirs table, generalized from "store everything
// in one codebase collection" to "create or update one Memory per file".
package indexer

// Outcome classifies what IndexFile did with one path, per spec §4.9.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeFailed   Outcome = "failed"
)

// FileResult is the per-file outcome of an indexing run.
type FileResult struct {
	Path     string
	Outcome  Outcome
	MemoryID string
	Reason   string
}

// RepoSummary aggregates the outcomes of index_repository, per spec §4.9's
// "{ total, inserted, updated, skipped, failed }".
type RepoSummary struct {
	Total    int
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Files    []FileResult
}

func (s *RepoSummary) record(r FileResult) {
	s.Total++
	s.Files = append(s.Files, r)
	switch r.Outcome {
	case OutcomeInserted:
		s.Inserted++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Options tunes the walker, per spec §6.4's indexer-relevant configuration
// surface.
type Options struct {
	Include      []string
	Exclude      []string
	Concurrency  int
	MaxFileBytes int64
	// RespectGitignore additionally excludes whatever the project's
	// .gitignore/.foldignore files match, on top of Exclude.
	RespectGitignore bool
	// IgnoreFiles overrides the ignore file names looked up in the project
	// root when RespectGitignore is set. Defaults to [".gitignore",
	// ".foldignore"] when empty.
	IgnoreFiles []string
	// FallbackExcludes are used when RespectGitignore is set but none of
	// IgnoreFiles is found in the project.
	FallbackExcludes []string
}

// DefaultOptions matches spec §4.9/§6.4's defaults.
func DefaultOptions() Options {
	return Options{
		Include:      []string{"**/*"},
		Concurrency:  4,
		MaxFileBytes: 100_000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.Concurrency > 64 {
		o.Concurrency = 64
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = d.MaxFileBytes
	}
	if len(o.Include) == 0 {
		o.Include = d.Include
	}
	return o
}

// skipDirs are directories never descended into regardless of Include,
// grounded on internal/repository/service.go's defaultSkipDirs.
var skipDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
	"node_modules": true, "vendor": true,
	".venv": true, "venv": true, "__pycache__": true,
	".idea": true, ".vscode": true, ".cache": true,
	"dist": true, "build": true, ".next": true, "target": true,
	"fold": true, // the fold tree itself is never re-indexed as source
}

// The pre-check skip reasons of spec §4.9 step 1.
const (
	reasonEmpty               = "empty file"
	reasonTooLarge            = "file exceeds max_file_bytes"
	reasonExcluded            = "matched exclude pattern"
	reasonExcludedByGitignore = "matched .gitignore pattern"
	reasonNotInclude          = "not matched by include pattern"
)
