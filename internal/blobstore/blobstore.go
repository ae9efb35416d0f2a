// Package blobstore implements the content-addressed fold tree
// (SPEC_FULL.md §4.2, §6.2): markdown files with YAML frontmatter under
// fold/<a>/<b>/<id>.md, the system of record for agent-authored memories.
package blobstore

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// numStripes bounds the striped lock table; id[0:2] hashes into it so
// concurrent writers to the same memory id always serialize (spec §5:
// "serialized per memory id via an in-process striped lock keyed on
// id[0..2]") without a per-id map that never shrinks.
const numStripes = 256

// Frontmatter is the YAML document at the top of every fold file. Field
// order matches spec §6.2's example exactly; yaml.v3 marshals struct
// fields in declaration order, which is what makes round trips
// byte-identical modulo key ordering.
type Frontmatter struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Author     string   `yaml:"author"`
	Tags       []string `yaml:"tags,omitempty"`
	FilePath   string   `yaml:"file_path,omitempty"`
	Language   string   `yaml:"language,omitempty"`
	MemoryType string   `yaml:"memory_type"`
	CreatedAt  string   `yaml:"created_at"`
	UpdatedAt  string   `yaml:"updated_at"`
	RelatedTo  []string `yaml:"related_to,omitempty"`
}

// Doc is a parsed fold file: frontmatter plus body.
type Doc struct {
	Frontmatter Frontmatter
	Body        string
}

// Store is the fold-tree adapter. Root is the repository root; files live
// under Root/fold/<a>/<b>/<id>.md.
type Store struct {
	root string
	log  *zap.Logger

	stripes [numStripes]sync.Mutex
}

// New builds a Store rooted at repoRoot. log may be nil.
func New(repoRoot string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{root: repoRoot, log: log}
}

func (s *Store) lock(id string) func() {
	idx := stripeIndex(id)
	s.stripes[idx].Lock()
	return s.stripes[idx].Unlock
}

func stripeIndex(id string) uint32 {
	key := id
	if len(key) > 2 {
		key = key[:2]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % numStripes
}

// pathFor returns the fold/<a>/<b>/<id>.md path for a memory id. a and b
// are the id's first two hex characters.
func (s *Store) pathFor(id string) (string, error) {
	if len(id) < 2 {
		return "", foldcore.Newf(foldcore.InvalidInput, "memory id %q is too short for fold-tree placement", id)
	}
	a, b := string(id[0]), string(id[1])
	return filepath.Join(s.root, "fold", a, b, id+".md"), nil
}

// Write atomically persists a fold file: frontmatter, body, and — if
// relatedIDs is non-empty — a trailing "## Related" section. Atomicity is
// write-temp-then-rename within the same directory so a reader never
// observes a partial file.
func (s *Store) Write(id string, fm Frontmatter, body string, relatedIDs []string) error {
	unlock := s.lock(id)
	defer unlock()

	fm.ID = id
	fm.RelatedTo = append([]string(nil), relatedIDs...)

	path, err := s.pathFor(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return foldcore.Wrap(foldcore.Storage, fmt.Errorf("create fold directory: %w", err))
	}

	data, err := render(fm, body, relatedIDs)
	if err != nil {
		return foldcore.Wrap(foldcore.Storage, err)
	}

	if err := atomicWrite(path, data); err != nil {
		return foldcore.Wrap(foldcore.Storage, err)
	}
	s.log.Debug("blobstore write", zap.String("id", id), zap.Int("related", len(relatedIDs)))
	return nil
}

// Read parses a fold file back into its frontmatter and body.
func (s *Store) Read(id string) (Doc, error) {
	unlock := s.lock(id)
	defer unlock()

	path, err := s.pathFor(id)
	if err != nil {
		return Doc{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Doc{}, foldcore.Newf(foldcore.NotFound, "fold file for memory %q not found", id)
		}
		return Doc{}, foldcore.Wrap(foldcore.Storage, err)
	}

	return parse(raw)
}

// Delete removes a memory's fold file and best-effort prunes now-empty
// <a>/<b> and <a> directories.
func (s *Store) Delete(id string) error {
	unlock := s.lock(id)
	defer unlock()

	path, err := s.pathFor(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return foldcore.Wrap(foldcore.Storage, err)
	}

	dir := filepath.Dir(path)
	_ = os.Remove(dir)             // <a>/<b>, best-effort: fails silently if non-empty
	_ = os.Remove(filepath.Dir(dir)) // <a>
	return nil
}

// RewriteLinks preserves a fold file's frontmatter and body and replaces
// only its "## Related" block, per spec §9's "pure byte-range transform"
// design note: the body is treated as opaque bytes, never re-rendered.
func (s *Store) RewriteLinks(id string, relatedIDs []string) error {
	unlock := s.lock(id)
	defer unlock()

	path, err := s.pathFor(id)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return foldcore.Newf(foldcore.NotFound, "fold file for memory %q not found", id)
		}
		return foldcore.Wrap(foldcore.Storage, err)
	}

	doc, err := parse(raw)
	if err != nil {
		return err
	}
	doc.Frontmatter.RelatedTo = append([]string(nil), relatedIDs...)

	data, err := render(doc.Frontmatter, doc.Body, relatedIDs)
	if err != nil {
		return foldcore.Wrap(foldcore.Storage, err)
	}

	return foldcore.Wrap(foldcore.Storage, atomicWrite(path, data))
}

// render assembles the bit-exact fold file layout of spec §6.2.
func render(fm Frontmatter, body string, relatedIDs []string) ([]byte, error) {
	fmYAML, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fmYAML)
	buf.WriteString("---\n\n")
	buf.WriteString(body)

	if len(relatedIDs) > 0 {
		if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteString("\n")
		}
		buf.WriteString("\n## Related\n\n")
		for _, tid := range relatedIDs {
			if len(tid) < 2 {
				continue
			}
			fmt.Fprintf(&buf, "- [[%s/%s/%s.md|%s]]\n", string(tid[0]), string(tid[1]), tid, tid)
		}
	}

	return buf.Bytes(), nil
}

// parse splits a fold file into its frontmatter and body. Fails with a
// foldcore.Integrity error whose message starts "malformed frontmatter"
// when the leading "---" block is missing or not valid YAML.
func parse(raw []byte) (Doc, error) {
	content := string(raw)
	if !bytes.HasPrefix(raw, []byte("---\n")) {
		return Doc{}, foldcore.New(foldcore.Integrity, "malformed frontmatter: missing leading '---' delimiter")
	}

	rest := content[4:]
	end := bytes.Index([]byte(rest), []byte("\n---\n"))
	if end < 0 {
		return Doc{}, foldcore.New(foldcore.Integrity, "malformed frontmatter: missing closing '---' delimiter")
	}

	fmBlock := rest[:end]
	body := rest[end+len("\n---\n"):]
	body = trimLeadingBlankLine(body)

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(fmBlock), &fm); err != nil {
		return Doc{}, foldcore.Wrap(foldcore.Integrity, fmt.Errorf("malformed frontmatter YAML: %w", err))
	}

	body, _ = stripRelatedSection(body)

	return Doc{Frontmatter: fm, Body: body}, nil
}

func trimLeadingBlankLine(s string) string {
	if len(s) > 0 && s[0] == '\n' {
		return s[1:]
	}
	return s
}

// stripRelatedSection removes a trailing "## Related" block so Body
// reflects only the author's content, matching what Write was given. The
// newline ending the body is kept; a body written without one comes back
// with one, because render inserts it before the Related block.
func stripRelatedSection(body string) (string, bool) {
	marker := "\n## Related\n"
	idx := bytes.Index([]byte(body), []byte(marker))
	if idx < 0 {
		return body, false
	}
	return body[:idx], true
}

// atomicWrite writes data to a temp file in dir's directory then renames
// it into place, so readers never see a partially written file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// NowRFC3339 is the timestamp format writers use for created_at/updated_at,
// per spec §6.2 ("RFC 3339 UTC").
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
