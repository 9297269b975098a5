package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a minimal REST adapter to a Qdrant collection.
// The collection is created with cosine distance if it does not exist.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client
}

// NewQdrantIndex creates the adapter and ensures the collection exists with
// the given dimension. The API key, if any, is read from cfg.APIKeyEnv.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, dimensions int) (*QdrantIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	q := &QdrantIndex{
		url:        cfg.URL,
		apiKey:     apiKey,
		collection: cfg.Collection,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
	}
	if err := q.ensureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure qdrant collection: %w", err)
	}
	return q, nil
}

// Type returns the index type identifier.
func (q *QdrantIndex) Type() string {
	return string(IndexTypeQdrant)
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimensions,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 when the collection already exists with the same schema.
	return q.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", q.url, q.collection), body, nil)
}

// Upsert stores vec under id, replacing any existing point.
func (q *QdrantIndex) Upsert(ctx context.Context, id string, vec []float32) error {
	if len(vec) != q.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), q.dimensions)
	}
	body := map[string]any{
		"points": []map[string]any{
			{"id": id, "vector": vec},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.url, q.collection)
	return q.do(ctx, http.MethodPut, url, body, nil)
}

// Search returns up to k nearest points ranked by cosine similarity.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if k <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector": query,
		"limit":  k,
	}
	var resp struct {
		Result []struct {
			ID    string  `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection)
	if err := q.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, &Result{ID: r.ID, Score: r.Score})
	}
	return results, nil
}

// Remove deletes points by ID. Qdrant treats missing IDs as a no-op.
func (q *QdrantIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", q.url, q.collection)
	return q.do(ctx, http.MethodPost, url, body, nil)
}

// Size returns the number of points in the collection.
func (q *QdrantIndex) Size(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", q.url, q.collection)
	if err := q.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Close is a no-op; the adapter holds no persistent connection.
func (q *QdrantIndex) Close() error {
	return nil
}

func (q *QdrantIndex) do(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
