// Package retrieval resolves questions to the most similar stored notes.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/vector"
)

// Retriever embeds a question, queries the vector index, and resolves the
// matching IDs back to note text.
type Retriever struct {
	storage  storage.Storage
	embedder embedding.Embedder
	index    vector.Index
	logger   *zap.Logger // optional
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever with the given dependencies.
func NewRetriever(store storage.Storage, embedder embedding.Embedder, index vector.Index, opts ...RetrieverOption) *Retriever {
	r := &Retriever{storage: store, embedder: embedder, index: index}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to k matches ordered most-similar first. The bulk
// record lookup returns rows in storage order, so results are re-sorted into
// the index's ranking before being returned. Index IDs with no surviving
// record are skipped; zero matches is a valid outcome, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]models.Match, error) {
	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	hits, err := r.index.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	notes, err := r.storage.GetNotesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notes: %w", err)
	}
	byID := make(map[string]string, len(notes))
	for _, n := range notes {
		byID[n.ID] = n.Content
	}

	matches := make([]models.Match, 0, len(hits))
	for _, h := range hits {
		text, ok := byID[h.ID]
		if !ok {
			// Stale index entry; the note was deleted out-of-band.
			if r.logger != nil {
				r.logger.Debug("skipping stale index entry", zap.String("id", h.ID))
			}
			continue
		}
		matches = append(matches, models.Match{ID: h.ID, Score: h.Score, Text: text})
	}
	return matches, nil
}
