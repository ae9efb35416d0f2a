package embed

import "github.com/Generation-One/fold/internal/vectorstore"

// Provider is an embedding backend: a vectorstore.Embedder that also reports
// a fixed dimension and can release held resources.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}
