// Package embedding provides text embedding via an OpenAI-compatible service.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding service call failed. Callers decide
// whether to retry; no retry happens inside the embedder.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// HashString returns a simple deterministic hash of s, used by the mock embedder.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
