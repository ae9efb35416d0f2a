// Package chunker splits indexed content into semantic sub-spans used as
// search auxiliaries (SPEC_FULL.md §4.3). Strategy is selected from the
// file's language tag: AST for languages with a registered tree-sitter
// grammar, heading for markdown, paragraph for plain text, line for
// everything else.
package chunker

import (
	"context"

	"github.com/Generation-One/fold/internal/foldcore"
)

// Chunk is a sub-span of a file's content, as defined in spec §4.3/§3.
type Chunk struct {
	Content   string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	StartByte int // 0-based
	EndByte   int // 0-based, exclusive
	NodeType  string
	NodeName  string
}

// Options configures the line/paragraph strategies. Zero or negative values
// take the spec-defined defaults, except LineOverlap: zero is kept (no
// overlap) and only a negative value takes the default.
type Options struct {
	LineChunkSize int
	LineOverlap   int
	MinChunkLines int
	MaxChunkLines int
}

// DefaultOptions matches spec §4.3's configurable defaults.
func DefaultOptions() Options {
	return Options{
		LineChunkSize: 50,
		LineOverlap:   10,
		MinChunkLines: 5,
		MaxChunkLines: 200,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LineChunkSize <= 0 {
		o.LineChunkSize = d.LineChunkSize
	}
	if o.LineOverlap < 0 {
		o.LineOverlap = d.LineOverlap
	}
	if o.MinChunkLines <= 0 {
		o.MinChunkLines = d.MinChunkLines
	}
	if o.MaxChunkLines <= 0 {
		o.MaxChunkLines = d.MaxChunkLines
	}
	return o
}

// astLanguages is the set of language tags with a registered tree-sitter
// grammar, per spec §4.3's strategy table.
var astLanguages = map[string]bool{
	"rust": true, "typescript": true, "javascript": true, "python": true, "go": true,
}

// Chunk dispatches on language and returns the file's chunks. Empty chunks
// are dropped, per spec §4.3.
func Chunk(ctx context.Context, content []byte, language string) ([]Chunk, error) {
	return ChunkWithOptions(ctx, content, language, DefaultOptions())
}

// ChunkWithOptions is Chunk with explicit line/paragraph-strategy tuning.
func ChunkWithOptions(ctx context.Context, content []byte, language string, opts Options) ([]Chunk, error) {
	opts = opts.withDefaults()

	var chunks []Chunk
	var err error

	switch {
	case astLanguages[language]:
		chunks, err = chunkAST(ctx, content, language)
		if err != nil {
			return nil, foldcore.Wrap(foldcore.InvalidInput, err)
		}
	case language == "markdown":
		chunks = chunkHeadings(content)
	case language == "" || language == "text" || language == "plaintext":
		chunks = chunkParagraphs(content, opts)
	default:
		chunks = chunkLines(content, opts)
	}

	return dropEmpty(chunks), nil
}

func dropEmpty(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(trimSpace(c.Content)) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
