package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/retrieval"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/tools"
	"github.com/hyperjump/kioku/internal/vector"
)

const e2eDimensions = 8

type echoGenerator struct{}

func (echoGenerator) Name() string { return "test/echo" }

func (echoGenerator) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	if len(contexts) == 0 {
		return "I have no notes about that.", nil
	}
	return "Based on your notes: " + strings.Join(contexts, " | "), nil
}

type env struct {
	server *httptest.Server
	store  storage.Storage
	index  vector.Index
}

func newEnv(t *testing.T, policy ingest.SegmentPolicy) *env {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "notes.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewMockEmbedder(e2eDimensions)
	idx, err := vector.NewMemoryIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}

	coordinator := ingest.NewCoordinator(store, embedder, idx, policy)
	retriever := retrieval.NewRetriever(store, embedder, idx)
	registry := tools.NewRegistry(coordinator, retriever, store, echoGenerator{})

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Vector.Dimensions = e2eDimensions
	cfg.Segmenter.Enabled = policy.Enabled
	srv := server.NewServer(registry, coordinator, store, idx, cfg, zap.NewNop())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &env{server: ts, store: store, index: idx}
}

func (e *env) tool(t *testing.T, name, args string) *models.ToolResult {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/api/v1/tools/"+name, "application/json", strings.NewReader(args))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s: status %d", name, resp.StatusCode)
	}
	var result models.ToolResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	return &result
}

func text(r *models.ToolResult) string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

func TestE2E_NoteLifecycle(t *testing.T) {
	e := newEnv(t, ingest.SegmentPolicy{})

	// Add a few notes.
	facts := []string{
		"The office wifi password is hunter2.",
		"Standup is at 9:30 every weekday.",
		"The staging database lives on db-stage-01.",
	}
	var ids []string
	for _, f := range facts {
		res := e.tool(t, "add_note", fmt.Sprintf(`{"text":%q}`, f))
		if res.IsError {
			t.Fatalf("add failed: %s", text(res))
		}
		ids = append(ids, strings.TrimPrefix(text(res), "Note added with ID: "))
	}

	// All stored and indexed.
	size, err := e.index.Size(context.Background())
	if err != nil || size != len(facts) {
		t.Fatalf("index size: %d err %v", size, err)
	}

	// Query retrieves context and reports provenance.
	res := e.tool(t, "query_notes", `{"question":"what is the wifi password?"}`)
	if res.IsError {
		t.Fatalf("query failed: %s", text(res))
	}
	if !strings.Contains(text(res), "[Model used: test/echo]") {
		t.Errorf("missing backend provenance: %q", text(res))
	}
	if !strings.Contains(text(res), "[Context notes:") {
		t.Errorf("missing context count: %q", text(res))
	}

	// List shows every note.
	res = e.tool(t, "list_notes", `{}`)
	for _, id := range ids {
		if !strings.Contains(text(res), id) {
			t.Errorf("list missing id %s: %q", id, text(res))
		}
	}

	// Delete removes record and vector.
	res = e.tool(t, "delete_note", fmt.Sprintf(`{"id":%q}`, ids[0]))
	if res.IsError {
		t.Fatalf("delete failed: %s", text(res))
	}
	size, _ = e.index.Size(context.Background())
	if size != len(facts)-1 {
		t.Errorf("vector should be removed with the note, size %d", size)
	}

	// Deleting again reports not found.
	res = e.tool(t, "delete_note", fmt.Sprintf(`{"id":%q}`, ids[0]))
	if !res.IsError || !strings.Contains(text(res), "Note not found") {
		t.Errorf("second delete: %+v", res)
	}
}

func TestE2E_SegmentedNoteQueryAndCleanup(t *testing.T) {
	e := newEnv(t, ingest.SegmentPolicy{Enabled: true, ChunkSize: 40, ChunkOverlap: 8})

	long := "Kubernetes deploys run on Fridays. The deploy window opens at noon. " +
		"Rollbacks require an approval from the on-call engineer."
	res := e.tool(t, "add_note", fmt.Sprintf(`{"text":%q}`, long))
	if res.IsError {
		t.Fatalf("add failed: %s", text(res))
	}
	if !strings.Contains(text(res), "chunks with IDs:") {
		t.Fatalf("expected chunked add: %q", text(res))
	}

	// Every chunk is queryable.
	q := e.tool(t, "query_notes", `{"question":"when do deploys run?"}`)
	if q.IsError || !strings.Contains(text(q), "Based on your notes:") {
		t.Errorf("query over chunks: %+v", q)
	}

	// Each chunk is an independent note and can be deleted on its own.
	idPart := strings.SplitN(text(res), "chunks with IDs: ", 2)[1]
	firstID := strings.Split(idPart, ", ")[0]
	del := e.tool(t, "delete_note", fmt.Sprintf(`{"id":%q}`, firstID))
	if del.IsError {
		t.Errorf("chunk delete failed: %s", text(del))
	}
}

func TestE2E_StatusAndReconcile(t *testing.T) {
	e := newEnv(t, ingest.SegmentPolicy{})
	_ = e.tool(t, "add_note", `{"text":"a fact"}`)

	resp, err := http.Get(e.server.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status struct {
		Notes           int `json:"notes"`
		Orphans         int `json:"orphans"`
		VectorIndexSize int `json:"vector_index_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Notes != 1 || status.Orphans != 0 || status.VectorIndexSize != 1 {
		t.Errorf("status: %+v", status)
	}

	rec, err := http.Post(e.server.URL+"/api/v1/reconcile", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Body.Close()
	var out map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["reindexed"] != 0 || out["failed"] != 0 {
		t.Errorf("nothing to reconcile: %v", out)
	}
}
