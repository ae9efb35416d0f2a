package indexer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Generation-One/fold/internal/fingerprint"
	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/ignore"
	"github.com/Generation-One/fold/internal/llm"
	"github.com/Generation-One/fold/internal/memory"
	"github.com/Generation-One/fold/internal/relstore"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Indexer walks a repository snapshot and drives the memory service (C7)
// per file, per spec §4.9. Grounded on internal/repository/service.go's
// filepath.Walk traversal, generalized to per-file Memory create/update.
type Indexer struct {
	mem          *memory.Service
	rel          relstore.Store
	llm          *llm.Client
	log          *zap.Logger
	opt          Options
	ignoreParser *ignore.Parser
	extraExclude []string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(ix *Indexer) { ix.log = log }
}

// New builds an Indexer from its collaborators. llmClient may be nil, in
// which case every file falls back to a synthesized summary (spec §4.9
// step 5's exhaustion path, applied unconditionally).
func New(mem *memory.Service, rel relstore.Store, llmClient *llm.Client, opts Options, options ...Option) *Indexer {
	ignoreFiles := opts.IgnoreFiles
	if len(ignoreFiles) == 0 {
		ignoreFiles = []string{".gitignore", ".foldignore"}
	}
	ix := &Indexer{
		mem: mem, rel: rel, llm: llmClient, opt: opts.withDefaults(), log: zap.NewNop(),
		ignoreParser: ignore.NewParser(ignoreFiles, opts.FallbackExcludes),
	}
	for _, o := range options {
		o(ix)
	}
	if ix.log == nil {
		ix.log = zap.NewNop()
	}
	return ix
}

// IndexFile implements spec §4.9's six-step per-file algorithm.
func (ix *Indexer) IndexFile(ctx context.Context, project foldcore.Project, repo foldcore.Repository, relPath string) FileResult {
	result := FileResult{Path: relPath}

	if ok, reason := ix.shouldConsider(relPath); !ok {
		result.Outcome = OutcomeSkipped
		result.Reason = reason
		return result
	}

	fullPath := filepath.Join(project.Root, relPath)
	raw, err := os.ReadFile(fullPath)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = fmt.Sprintf("read: %s", err)
		return result
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		result.Outcome = OutcomeSkipped
		result.Reason = reasonEmpty
		return result
	}
	if int64(len(raw)) > ix.opt.MaxFileBytes {
		result.Outcome = OutcomeSkipped
		result.Reason = reasonTooLarge
		return result
	}
	if !utf8.Valid(raw) {
		result.Outcome = OutcomeSkipped
		result.Reason = "not valid utf-8"
		return result
	}

	pathKey, err := fingerprint.PathKey(project.Slug, relPath)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	id := fingerprint.MemoryID(pathKey)
	contentHash := fingerprint.ContentHash(raw)

	existingHash, found, err := ix.rel.FindByID(ctx, id)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = fmt.Sprintf("lookup: %s", err)
		return result
	}
	result.MemoryID = id
	if found && existingHash == contentHash {
		result.Outcome = OutcomeSkipped
		result.Reason = "unchanged"
		return result
	}

	language := languageFromExt(relPath)
	content := string(raw)

	var (
		title, summaryText string
		keywords, tags      []string
		synthesized          bool
	)
	if ix.llm != nil {
		summary, serr := ix.llm.SummarizeCode(ctx, content, relPath, language)
		switch {
		case serr == nil:
			title, summaryText, keywords, tags = summary.Title, summary.Summary, summary.Keywords, summary.Tags
		case foldcore.Is(serr, foldcore.LlmExhausted):
			title, summaryText, synthesized = synthesize(content, relPath)
		default:
			result.Outcome = OutcomeFailed
			result.Reason = fmt.Sprintf("summarize_code: %s", serr)
			return result
		}
	} else {
		title, summaryText, synthesized = synthesize(content, relPath)
	}
	if synthesized {
		tags = append(tags, "synthesized_summary")
	}

	if found {
		payload := summaryText
		_, err := ix.mem.Update(ctx, project, id, memory.UpdatePatch{
			Title:    &title,
			Keywords: &keywords,
			Tags:     &tags,
			Context:  &summaryText,
			Payload:  &payload,
		})
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Reason = fmt.Sprintf("update: %s", err)
			return result
		}
		result.Outcome = OutcomeUpdated
		return result
	}

	in := memory.CreateInput{
		RepositoryID: repo.ID,
		Source:       foldcore.SourceFile,
		Type:         "codebase",
		Title:        title,
		Author:       "system",
		Language:     language,
		FilePath:     relPath,
		Keywords:     keywords,
		Tags:         tags,
		Context:      summaryText,
		Payload:      summaryText,
	}
	res, err := ix.mem.Create(ctx, project, in)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = fmt.Sprintf("create: %s", err)
		return result
	}
	result.MemoryID = res.Memory.ID
	result.Outcome = OutcomeInserted
	return result
}

// IndexRepository walks project.Root under Include minus Exclude, fanning
// file indexing out to Concurrency bounded goroutines, per spec §4.9. One
// path is enumerated exactly once by the walker, so two tasks never race
// on the same path (spec §5).
func (ix *Indexer) IndexRepository(ctx context.Context, project foldcore.Project, repo foldcore.Repository) (RepoSummary, error) {
	if ix.opt.RespectGitignore {
		patterns, perr := ix.ignoreParser.ParseProject(project.Root)
		if perr != nil {
			ix.log.Warn("indexer: parsing .gitignore failed", zap.Error(perr))
		} else {
			ix.extraExclude = patterns
		}
	}

	var paths []string
	err := filepath.WalkDir(project.Root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, rerr := filepath.Rel(project.Root, p)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return RepoSummary{}, foldcore.Wrap(foldcore.Storage, fmt.Errorf("walking %s: %w", project.Root, err))
	}

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opt.Concurrency)
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = ix.IndexFile(gctx, project, repo, rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return RepoSummary{}, foldcore.Wrap(foldcore.Cancelled, err)
	}

	var summary RepoSummary
	for _, r := range results {
		summary.record(r)
	}

	changed := summary.Inserted + summary.Updated
	if changed > 0 {
		if err := ix.enqueueGitCommit(ctx, project, repo, changed); err != nil {
			ix.log.Warn("indexer: enqueue git_commit failed", zap.Error(err))
		}
	}

	return summary, nil
}

// shouldConsider applies Include/Exclude globs before touching the
// filesystem, per spec §4.9 step 1 / §6.4.
func (ix *Indexer) shouldConsider(relPath string) (bool, string) {
	for _, pat := range ix.opt.Exclude {
		if match(pat, relPath) {
			return false, reasonExcluded
		}
	}
	for _, pat := range ix.extraExclude {
		if match(pat, relPath) {
			return false, reasonExcludedByGitignore
		}
	}
	included := len(ix.opt.Include) == 0
	for _, pat := range ix.opt.Include {
		if match(pat, relPath) {
			included = true
			break
		}
	}
	if !included {
		return false, reasonNotInclude
	}
	return true, ""
}

func match(pattern, relPath string) bool {
	ok, _ := doublestar.Match(pattern, relPath)
	return ok
}

// enqueueGitCommit enqueues the git_commit job the GitSink (C12) consumes
// once an indexing batch completes, per spec §4.9's final step. changed is
// the number of inserted+updated files, which becomes the commit message's
// file count per spec §4.12. repo.Branch travels along so GitSink can flag
// a mismatch against the worktree's actual checked-out branch.
func (ix *Indexer) enqueueGitCommit(ctx context.Context, project foldcore.Project, repo foldcore.Repository, changed int) error {
	payload := fmt.Sprintf(`{"project_id":%q,"project_slug":%q,"root":%q,"branch":%q,"file_count":%d}`,
		project.ID, project.Slug, project.Root, repo.Branch, changed)
	job := foldcore.Job{
		ID:         uuid.NewString(),
		Type:       "git_commit",
		Status:     foldcore.JobPending,
		Payload:    []byte(payload),
		Priority:   0,
		MaxRetries: 3,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	return ix.rel.EnqueueJob(ctx, job)
}

// synthesize builds the deterministic fallback summary of spec §4.9 step 5
// / scenario S6: the first top-level declaration name or the filename as
// title, and the first ~400 characters as context.
func synthesize(content, filePath string) (title, context string) {
	title = firstDeclName(content)
	if title == "" {
		title = filepath.Base(filePath)
	}
	context = firstNChars(content, 400)
	return title, context
}

var declPrefixes = []string{"fn ", "struct ", "impl ", "func ", "class ", "def ", "type ", "interface "}

// firstDeclName scans line by line for the first recognizable top-level
// declaration keyword and returns its identifier, per scenario S6 ("first
// fn/struct/impl name").
func firstDeclName(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, prefix := range declPrefixes {
			if strings.HasPrefix(line, prefix) {
				rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))
				rest = strings.TrimPrefix(rest, "*")
				name := rest
				for i, r := range rest {
					if !isIdentRune(r) {
						name = rest[:i]
						break
					}
				}
				if name != "" {
					return name
				}
			}
		}
	}
	return ""
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func firstNChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Truncate on a valid rune boundary, per spec §4.4's truncation rule
	// reused here for the synthesized summary.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// languageFromExt maps a file extension to the language tag the chunker
// and LLM client use, per spec §4.3's strategy table.
var extLanguage = map[string]string{
	".rs": "rust", ".ts": "typescript", ".tsx": "typescript",
	".js": "javascript", ".jsx": "javascript", ".py": "python",
	".go": "go", ".md": "markdown", ".markdown": "markdown",
}

func languageFromExt(relPath string) string {
	ext := strings.ToLower(filepath.Ext(relPath))
	if lang, ok := extLanguage[ext]; ok {
		return lang
	}
	return ""
}
