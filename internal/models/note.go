// Package models defines core data structures for notes, tool calls, and answers.
package models

import "time"

// Note is a stored text unit, the unit of retrieval and deletion.
// One add_note call may create several notes when segmentation is enabled.
type Note struct {
	ID        string    `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	Embedded  bool      `json:"embedded" db:"embedded"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Match is a retrieval hit: a note resolved from a vector search result,
// carrying the similarity score assigned by the index.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Answer is a generated response with provenance: which backend produced it
// and how many context notes were fed into the prompt.
type Answer struct {
	Text        string `json:"text"`
	Backend     string `json:"backend"`
	ContextUsed int    `json:"context_used"`
}
