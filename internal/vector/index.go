// Package vector provides vector index adapters and similarity search.
package vector

import (
	"context"
	"fmt"
)

// Index defines vector storage keyed by note ID and similarity search.
type Index interface {
	// Upsert stores the vector under id, replacing any existing vector.
	Upsert(ctx context.Context, id string, vec []float32) error
	// Search returns up to k hits ranked most-similar first.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	// Remove deletes vectors by ID. Missing IDs are not an error.
	Remove(ctx context.Context, ids []string) error
	Size(ctx context.Context) (int, error)
	Type() string
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID    string
	Score float64 // cosine similarity for normalized vectors
}

// IndexType identifies a vector index implementation.
type IndexType string

const (
	// IndexTypeMemory uses in-process brute-force search. Good for small
	// corpora and tests.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeQdrant uses a Qdrant server over its REST API.
	IndexTypeQdrant IndexType = "qdrant"
)

// New creates a vector index of the given type. Supported: "memory" (default), "qdrant".
func New(ctx context.Context, indexType string, dimensions int, qdrant *QdrantConfig) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeQdrant:
		if qdrant == nil {
			return nil, fmt.Errorf("qdrant index requires qdrant configuration")
		}
		return NewQdrantIndex(ctx, *qdrant, dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, qdrant)", indexType)
	}
}
