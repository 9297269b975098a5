package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/vector"
)

// PartialError reports an ingestion failure after some notes were already
// durably created. CreatedIDs lets the caller decide whether to delete the
// survivors; there is no automatic rollback.
type PartialError struct {
	CreatedIDs []string
	Stage      string // "store", "embed", or "index"
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("ingest failed at %s stage after creating %d note(s): %v", e.Stage, len(e.CreatedIDs), e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Coordinator drives the ingestion pipeline: segment the input, then per
// chunk insert the record, embed it, and upsert the vector. The record
// insert is the durability point; an embed or index failure afterwards
// leaves the note stored but unsearchable until reconciled.
type Coordinator struct {
	storage  storage.Storage
	embedder embedding.Embedder
	index    vector.Index
	policy   SegmentPolicy
	logger   *zap.Logger // optional; when set, logs debug events
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets a logger for debug output (chunk stored, orphan reconciled, etc.).
func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a coordinator with the given dependencies.
func NewCoordinator(
	store storage.Storage,
	embedder embedding.Embedder,
	index vector.Index,
	policy SegmentPolicy,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		storage:  store,
		embedder: embedder,
		index:    index,
		policy:   policy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest stores text as one or more notes and indexes each one. Chunks are
// processed strictly in order; chunk N is fully committed before chunk N+1
// starts. On failure the returned PartialError carries the IDs that were
// already created.
func (c *Coordinator) Ingest(ctx context.Context, text string) ([]string, error) {
	chunks := Segment(text, c.policy)
	var created []string
	for i, chunk := range chunks {
		id, err := c.storage.CreateNote(ctx, chunk)
		if err != nil {
			return created, &PartialError{
				CreatedIDs: created,
				Stage:      "store",
				Err:        fmt.Errorf("failed to store chunk %d: %w", i, err),
			}
		}
		created = append(created, id)
		if c.logger != nil {
			c.logger.Debug("note stored", zap.String("id", id), zap.Int("chunk", i))
		}

		vec, err := c.embedder.Embed(ctx, chunk)
		if err != nil {
			return created, &PartialError{
				CreatedIDs: created,
				Stage:      "embed",
				Err:        fmt.Errorf("failed to embed chunk %d: %w", i, err),
			}
		}
		if err := c.index.Upsert(ctx, id, vec); err != nil {
			return created, &PartialError{
				CreatedIDs: created,
				Stage:      "index",
				Err:        fmt.Errorf("failed to index vector for chunk %d: %w", i, err),
			}
		}
		// The vector is indexed; a bookkeeping failure here only delays
		// reconciliation noticing the note is fine.
		if err := c.storage.MarkEmbedded(ctx, id); err != nil && c.logger != nil {
			c.logger.Warn("failed to mark note embedded", zap.String("id", id), zap.Error(err))
		}
	}
	return created, nil
}

// Delete removes a note and its vector. The record is checked first; when it
// is absent storage.ErrNotFound is returned and the index is left untouched.
// Vector removal is best-effort: a vector missing from the index is not an
// error, since the record store is the source of truth for existence.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if _, err := c.storage.GetNote(ctx, id); err != nil {
		return err
	}
	if err := c.storage.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if err := c.index.Remove(ctx, []string{id}); err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to remove vector", zap.String("id", id), zap.Error(err))
		}
		return fmt.Errorf("note deleted but vector removal failed: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("note deleted", zap.String("id", id))
	}
	return nil
}

// ReconcileOrphans re-embeds and re-upserts every note whose indexing never
// completed. A failure on one orphan does not stop the rest; the counts of
// reindexed and still-failing notes are returned.
func (c *Coordinator) ReconcileOrphans(ctx context.Context) (reindexed, failed int, err error) {
	orphans, err := c.storage.ListOrphans(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list orphans: %w", err)
	}
	for _, note := range orphans {
		vec, embedErr := c.embedder.Embed(ctx, note.Content)
		if embedErr != nil {
			failed++
			if c.logger != nil {
				c.logger.Warn("reconcile: embed failed", zap.String("id", note.ID), zap.Error(embedErr))
			}
			continue
		}
		if upsertErr := c.index.Upsert(ctx, note.ID, vec); upsertErr != nil {
			failed++
			if c.logger != nil {
				c.logger.Warn("reconcile: upsert failed", zap.String("id", note.ID), zap.Error(upsertErr))
			}
			continue
		}
		if markErr := c.storage.MarkEmbedded(ctx, note.ID); markErr != nil {
			failed++
			continue
		}
		reindexed++
		if c.logger != nil {
			c.logger.Debug("orphan reconciled", zap.String("id", note.ID))
		}
	}
	return reindexed, failed, nil
}
