// Package tools exposes the public operation surface: four named tools that
// take a JSON argument object and return text content with an error flag.
// Every failure is converted into an error-flagged result at this boundary;
// no fault propagates past Dispatch.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/answer"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/retrieval"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/pkg/utils"
)

const (
	// DefaultTopK bounds how many notes are fed to the answer generator.
	DefaultTopK = 3
	// listNoteTruncate is the display length for note text in list_notes.
	listNoteTruncate = 100
	// maxListNotes caps how many notes list_notes renders; a trailing line
	// reports how many more exist beyond the cap.
	maxListNotes = 1000
)

// handler executes one tool against its raw JSON arguments.
type handler func(ctx context.Context, args json.RawMessage) *models.ToolResult

// Registry resolves tool names to handlers by exact match.
type Registry struct {
	coordinator *ingest.Coordinator
	retriever   *retrieval.Retriever
	storage     storage.Storage
	generator   answer.Generator
	topK        int
	handlers    map[string]handler
	logger      *zap.Logger // optional
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithTopK overrides the retrieval budget (default 3).
func WithTopK(k int) RegistryOption {
	return func(r *Registry) {
		if k > 0 {
			r.topK = k
		}
	}
}

// NewRegistry creates the registry with the given pipeline dependencies.
func NewRegistry(
	coordinator *ingest.Coordinator,
	retriever *retrieval.Retriever,
	store storage.Storage,
	generator answer.Generator,
	opts ...RegistryOption,
) *Registry {
	r := &Registry{
		coordinator: coordinator,
		retriever:   retriever,
		storage:     store,
		generator:   generator,
		topK:        DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.handlers = map[string]handler{
		"query_notes": r.queryNotes,
		"add_note":    r.addNote,
		"list_notes":  r.listNotes,
		"delete_note": r.deleteNote,
	}
	return r
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a tool with the given name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch runs the named tool. An unknown name is a validation error result,
// not a fault.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) *models.ToolResult {
	h, ok := r.handlers[name]
	if !ok {
		return models.ErrorResult(fmt.Sprintf("Error: unknown tool: %s", name))
	}
	if r.logger != nil {
		r.logger.Debug("dispatching tool", zap.String("tool", name))
	}
	return h(ctx, args)
}

type addNoteArgs struct {
	Text string `json:"text"`
}

func (r *Registry) addNote(ctx context.Context, args json.RawMessage) *models.ToolResult {
	var in addNoteArgs
	if err := unmarshalArgs(args, &in); err != nil {
		return models.ErrorResult("Error: invalid arguments: " + err.Error())
	}
	if in.Text == "" {
		return models.ErrorResult("Error: 'text' is required")
	}
	ids, err := r.coordinator.Ingest(ctx, in.Text)
	if err != nil {
		msg := "Error: failed to add note: " + err.Error()
		var pe *ingest.PartialError
		if errors.As(err, &pe) && len(pe.CreatedIDs) > 0 {
			msg += fmt.Sprintf("\nAlready created note ID(s): %s", strings.Join(pe.CreatedIDs, ", "))
		}
		return models.ErrorResult(msg)
	}
	if len(ids) == 1 {
		return models.TextResult(fmt.Sprintf("Note added with ID: %s", ids[0]))
	}
	return models.TextResult(fmt.Sprintf("Note added as %d chunks with IDs: %s", len(ids), strings.Join(ids, ", ")))
}

type queryNotesArgs struct {
	Question string `json:"question"`
}

func (r *Registry) queryNotes(ctx context.Context, args json.RawMessage) *models.ToolResult {
	var in queryNotesArgs
	if err := unmarshalArgs(args, &in); err != nil {
		return models.ErrorResult("Error: invalid arguments: " + err.Error())
	}
	if in.Question == "" {
		return models.ErrorResult("Error: 'question' is required")
	}
	matches, err := r.retriever.Retrieve(ctx, in.Question, r.topK)
	if err != nil {
		return models.ErrorResult("Error: retrieval failed: " + err.Error())
	}
	contexts := make([]string, len(matches))
	for i, m := range matches {
		contexts[i] = m.Text
	}
	ans, err := answer.Answer(ctx, r.generator, in.Question, contexts)
	if err != nil {
		return models.ErrorResult("Error: generation failed: " + err.Error())
	}
	out := fmt.Sprintf("%s\n\n[Model used: %s]", ans.Text, ans.Backend)
	if ans.ContextUsed > 0 {
		out += fmt.Sprintf("\n[Context notes: %d]", ans.ContextUsed)
	}
	return models.TextResult(out)
}

func (r *Registry) listNotes(ctx context.Context, args json.RawMessage) *models.ToolResult {
	notes, err := r.storage.ListNotes(ctx, 0, maxListNotes)
	if err != nil {
		return models.ErrorResult("Error: failed to list notes: " + err.Error())
	}
	if len(notes) == 0 {
		return models.TextResult("No notes found.")
	}
	var b strings.Builder
	for i, note := range notes {
		fmt.Fprintf(&b, "%d. [ID: %s] %s\n", i+1, note.ID, utils.Truncate(note.Content, listNoteTruncate))
	}
	if len(notes) == maxListNotes {
		if total, countErr := r.storage.CountNotes(ctx); countErr == nil && total > maxListNotes {
			fmt.Fprintf(&b, "(%d more note(s) not shown)\n", total-maxListNotes)
		}
	}
	return models.TextResult(strings.TrimRight(b.String(), "\n"))
}

type deleteNoteArgs struct {
	ID string `json:"id"`
}

func (r *Registry) deleteNote(ctx context.Context, args json.RawMessage) *models.ToolResult {
	var in deleteNoteArgs
	if err := unmarshalArgs(args, &in); err != nil {
		return models.ErrorResult("Error: invalid arguments: " + err.Error())
	}
	if in.ID == "" {
		return models.ErrorResult("Error: 'id' is required")
	}
	err := r.coordinator.Delete(ctx, in.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.ErrorResult(fmt.Sprintf("Note not found: %s", in.ID))
	}
	if err != nil {
		return models.ErrorResult("Error: failed to delete note: " + err.Error())
	}
	return models.TextResult(fmt.Sprintf("Note %s deleted.", in.ID))
}

// unmarshalArgs decodes args into v. A nil/empty argument object is allowed
// and leaves v zero-valued; required-field checks happen in the handlers.
func unmarshalArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}
