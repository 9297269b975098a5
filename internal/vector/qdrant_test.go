package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeQdrant records requests and serves canned search results.
type fakeQdrant struct {
	points   map[string][]float32
	searches int
}

func newFakeQdrantServer(f *fakeQdrant) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/notes", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	})
	mux.HandleFunc("/collections/notes/points", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []struct {
				ID     string    `json:"id"`
				Vector []float32 `json:"vector"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = p.Vector
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/collections/notes/points/search", func(w http.ResponseWriter, r *http.Request) {
		f.searches++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "n2", "score": 0.91},
				{"id": "n1", "score": 0.42},
			},
		})
	})
	mux.HandleFunc("/collections/notes/points/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []string `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, id := range body.Points {
			delete(f.points, id)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/collections/notes/points/count", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"count": len(f.points)},
		})
	})
	return httptest.NewServer(mux)
}

func TestQdrantIndex_RoundTrip(t *testing.T) {
	fake := &fakeQdrant{points: map[string][]float32{}}
	srv := newFakeQdrantServer(fake)
	defer srv.Close()

	idx, err := NewQdrantIndex(context.Background(), QdrantConfig{
		URL:        srv.URL,
		Collection: "notes",
	}, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Upsert(ctx, "n1", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, "n2", []float32{0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if len(fake.points) != 2 {
		t.Fatalf("expected 2 points upserted, got %d", len(fake.points))
	}

	results, err := idx.Search(ctx, []float32{0, 1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "n2" {
		t.Errorf("search results: %v", results)
	}
	if results[0].Score != 0.91 {
		t.Errorf("score: got %f", results[0].Score)
	}

	n, err := idx.Size(ctx)
	if err != nil || n != 2 {
		t.Errorf("Size: %v, %d", err, n)
	}

	if err := idx.Remove(ctx, []string{"n1", "absent"}); err != nil {
		t.Fatalf("remove should tolerate missing ids: %v", err)
	}
	if len(fake.points) != 1 {
		t.Errorf("expected 1 point left, got %d", len(fake.points))
	}
}

func TestQdrantIndex_SearchZeroK(t *testing.T) {
	fake := &fakeQdrant{points: map[string][]float32{}}
	srv := newFakeQdrantServer(fake)
	defer srv.Close()

	idx, err := NewQdrantIndex(context.Background(), QdrantConfig{URL: srv.URL, Collection: "notes"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 0)
	if err != nil || results != nil {
		t.Errorf("k=0: got %v, %v", results, err)
	}
	if fake.searches != 0 {
		t.Error("k=0 should not hit the server")
	}
}

func TestQdrantIndex_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/collections/notes") {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx, err := NewQdrantIndex(context.Background(), QdrantConfig{URL: srv.URL, Collection: "notes"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(context.Background(), "x", []float32{1, 0}); err == nil {
		t.Error("expected error from failing server")
	}
	if _, err := idx.Search(context.Background(), []float32{1, 0}, 1); err == nil {
		t.Error("expected search error from failing server")
	}
}
