package vectorstore

// Point is a single embedded item to be stored in a collection.
//
// Vector is required. Metadata carries the payload discriminator described
// in SPEC_FULL.md §4.6: kind ("memory" or "chunk"), memory_id, project_id,
// type, source, and the optional file_path/language fields.
type Point struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// SearchHit is a single ranked result from Search, ordered by descending
// cosine similarity by the caller.
type SearchHit struct {
	ID       string
	Score    float32
	Metadata map[string]interface{}
}

// CollectionInfo describes a collection's current size and configuration.
type CollectionInfo struct {
	Name       string
	PointCount int
	VectorSize int
}
