// Package embed provides embedding generation for Fold's index and search
// paths (SPEC_FULL.md §4.5): a local fastembed provider for bulk indexing
// and a remote HTTP provider for query-time embedding.
package embed

import "errors"

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)
