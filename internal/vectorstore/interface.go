// Package vectorstore defines the interface for vector storage operations
// and the adapters (Qdrant, chromem-go) that implement it.
package vectorstore

import (
	"context"
	"errors"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPoints indicates an empty or nil point slice was passed to Upsert.
	ErrEmptyPoints = errors.New("empty or nil points")

	// ErrConnectionFailed indicates a transport-level connection failure.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text. Implementations may use
// local models (fastembed) or remote HTTP APIs; EmbedDocuments and EmbedQuery
// are kept separate because some models embed queries and passages
// differently (SPEC_FULL.md §4.5).
type Embedder interface {
	// EmbedDocuments generates one embedding per input text, for bulk
	// indexing.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// collectionNamePattern restricts collection names to what both Qdrant and
// chromem-go accept: lowercase letters, digits, underscores, 1-64 chars.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names that are not safe for either backend.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return ErrInvalidCollectionName
	}
	return nil
}

// Store is the per-project vector collection adapter consumed by the memory
// service (SPEC_FULL.md §4.6). One collection backs one project; collection
// names are produced by foldcore.CollectionName.
//
// On failure an adapter returns a plain error (wrapping one of the sentinel
// errors above where one applies; QdrantStore retries transient failures
// with backoff first), and the memory service decides whether that is fatal
// for the operation in progress.
type Store interface {
	// EnsureCollection creates the collection if it does not already exist,
	// sized for vectors of the given dimension. Idempotent.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// DeleteCollection removes a collection and all its points.
	DeleteCollection(ctx context.Context, name string) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Delete removes points by ID. Deleting an absent ID is not an error.
	Delete(ctx context.Context, collection string, ids []string) error

	// Search returns up to limit hits ordered by descending cosine
	// similarity. filter, if non-nil, restricts to points whose metadata
	// matches every key/value pair exactly. QdrantStore applies only the
	// string-valued pairs.
	Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}) ([]SearchHit, error)

	// Count returns the number of points currently stored in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Close releases any connections or file handles held by the store.
	Close() error
}
