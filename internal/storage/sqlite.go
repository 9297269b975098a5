// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kioku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		embedded INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
	CREATE INDEX IF NOT EXISTS idx_notes_embedded ON notes(embedded);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateNote inserts a note and returns its generated ID.
func (s *SQLiteStorage) CreateNote(ctx context.Context, content string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, content, embedded, created_at) VALUES (?, ?, 0, ?)`,
		id, content, time.Now(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetNote returns a note by ID.
func (s *SQLiteStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content, embedded, created_at FROM notes WHERE id = ?`, id,
	).Scan(&note.ID, &note.Content, &note.Embedded, &note.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// GetNotesByIDs resolves several IDs with a single IN query.
// Missing IDs are simply absent from the result; row order is storage order,
// not the order of ids.
func (s *SQLiteStorage) GetNotesByIDs(ctx context.Context, ids []string) ([]*models.Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedded, created_at FROM notes WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ListNotes returns notes with offset and limit, oldest first.
func (s *SQLiteStorage) ListNotes(ctx context.Context, offset, limit int) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedded, created_at FROM notes
		 ORDER BY created_at, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// DeleteNote removes a note by ID. Returns ErrNotFound if no row was deleted.
func (s *SQLiteStorage) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// MarkEmbedded records that the note's vector has been upserted into the index.
func (s *SQLiteStorage) MarkEmbedded(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notes SET embedded = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ListOrphans returns notes that were stored but never indexed, oldest first.
func (s *SQLiteStorage) ListOrphans(ctx context.Context) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, embedded, created_at FROM notes
		 WHERE embedded = 0 ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotes(rows)
}

// CountNotes returns the total number of notes.
func (s *SQLiteStorage) CountNotes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// CountOrphans returns the number of notes without an indexed vector.
func (s *SQLiteStorage) CountOrphans(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE embedded = 0`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanNotes(rows *sql.Rows) ([]*models.Note, error) {
	var notes []*models.Note
	for rows.Next() {
		var note models.Note
		if err := rows.Scan(&note.ID, &note.Content, &note.Embedded, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &note)
	}
	return notes, rows.Err()
}
