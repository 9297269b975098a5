// Package storage defines the persistence interface for notes.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kioku/internal/models"
)

// ErrNotFound is returned when a note with the requested ID does not exist.
// It is a normal result variant for delete/lookup, not a store fault.
var ErrNotFound = errors.New("note not found")

// Storage defines note persistence operations. The store is the sole source
// of truth for "does this note exist"; the vector index only mirrors it.
type Storage interface {
	// CreateNote inserts content and returns the generated note ID.
	CreateNote(ctx context.Context, content string) (string, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	// GetNotesByIDs resolves several IDs in one query. Missing IDs are
	// omitted from the result; row order is unspecified.
	GetNotesByIDs(ctx context.Context, ids []string) ([]*models.Note, error)
	ListNotes(ctx context.Context, offset, limit int) ([]*models.Note, error)
	// DeleteNote removes a note. Returns ErrNotFound when absent.
	DeleteNote(ctx context.Context, id string) error

	// MarkEmbedded records that the note's vector was indexed.
	MarkEmbedded(ctx context.Context, id string) error
	// ListOrphans returns notes whose vector was never indexed.
	ListOrphans(ctx context.Context) ([]*models.Note, error)

	CountNotes(ctx context.Context) (int64, error)
	CountOrphans(ctx context.Context) (int64, error)

	Close() error
}
