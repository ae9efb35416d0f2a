// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a Store implementation. It is populated from
// the vectorstore section of the process configuration (SPEC_FULL.md §6.4).
type Config struct {
	// Provider is "chromem" (default, embedded) or "qdrant" (external server).
	Provider string

	Chromem ChromemConfig
	Qdrant  QdrantConfig
}

// NewStore creates the Store implementation named by cfg.Provider.
//
// chromem requires no external service and is the default for a
// single-developer setup; qdrant is for a shared, multi-machine deployment.
// Unlike the teacher's factory, there is no fallback/WAL wrapping here: the
// memory service (C7) treats a vector store failure as non-fatal, keeping
// the memory without a vector and returning a warning, not something the
// store itself needs to paper over.
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(cfg.Chromem, logger)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant)
	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.Provider)
	}
}
