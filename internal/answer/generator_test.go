package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSelect_PrefersOpenAIWhenKeyPresent(t *testing.T) {
	t.Setenv("TEST_CHAT_KEY", "sk-test")
	g, err := Select(Config{
		OpenAI: OpenAIChatConfig{APIKeyEnv: "TEST_CHAT_KEY", Model: "gpt-4o-mini"},
		Ollama: OllamaConfig{Model: "llama3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "openai/gpt-4o-mini" {
		t.Errorf("expected openai backend, got %s", g.Name())
	}
}

func TestSelect_FallsBackToOllamaWithoutKey(t *testing.T) {
	t.Setenv("TEST_CHAT_KEY", "")
	g, err := Select(Config{
		OpenAI: OpenAIChatConfig{APIKeyEnv: "TEST_CHAT_KEY"},
		Ollama: OllamaConfig{Model: "llama3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "ollama/llama3" {
		t.Errorf("expected ollama backend, got %s", g.Name())
	}
}

func TestOpenAIChat_PromptComposition(t *testing.T) {
	var got struct {
		Messages []chatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Blue."}},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_CHAT_KEY", "sk-test")
	g, err := NewOpenAIChat(OpenAIChatConfig{BaseURL: srv.URL, APIKeyEnv: "TEST_CHAT_KEY"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.Generate(context.Background(), "What color is the sky?", []string{"The sky is blue.", "Grass is green."})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Blue." {
		t.Errorf("answer: %q", out)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(got.Messages))
	}
	system := got.Messages[0]
	if system.Role != "system" {
		t.Errorf("first message role: %s", system.Role)
	}
	if !strings.Contains(system.Content, "- The sky is blue.") || !strings.Contains(system.Content, "- Grass is green.") {
		t.Errorf("context notes not bulleted into system message: %q", system.Content)
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "What color is the sky?" {
		t.Errorf("user message: %+v", got.Messages[1])
	}
}

func TestOpenAIChat_NoContextOmitsBlock(t *testing.T) {
	var got struct {
		Messages []chatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_CHAT_KEY", "sk-test")
	g, _ := NewOpenAIChat(OpenAIChatConfig{BaseURL: srv.URL, APIKeyEnv: "TEST_CHAT_KEY"})
	if _, err := g.Generate(context.Background(), "hello?", nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got.Messages[0].Content, "Context:") {
		t.Errorf("empty context must be omitted, got %q", got.Messages[0].Content)
	}
}

func TestOpenAIChat_FailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("TEST_CHAT_KEY", "sk-test")
	g, _ := NewOpenAIChat(OpenAIChatConfig{BaseURL: srv.URL, APIKeyEnv: "TEST_CHAT_KEY"})
	if _, err := g.Generate(context.Background(), "q", nil); err == nil {
		t.Error("primary backend failure must propagate, not demote")
	}
}

func TestOllamaChat_PromptComposition(t *testing.T) {
	var got struct {
		Messages []chatMessage `json:"messages"`
		Stream   bool          `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "Blue."},
		})
	}))
	defer srv.Close()

	g := NewOllamaChat(OllamaConfig{URL: srv.URL, Model: "llama3"})
	out, err := g.Generate(context.Background(), "What color is the sky?", []string{"The sky is blue."})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Blue." {
		t.Errorf("answer: %q", out)
	}
	if got.Stream {
		t.Error("streaming should be disabled")
	}
	// Instruction and context travel as separate prior messages.
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	if !strings.Contains(got.Messages[0].Content, "Use the provided context") {
		t.Errorf("first message should carry the instruction: %q", got.Messages[0].Content)
	}
	if !strings.Contains(got.Messages[1].Content, "- The sky is blue.") {
		t.Errorf("second message should carry the context block: %q", got.Messages[1].Content)
	}
	if got.Messages[2].Role != "user" {
		t.Errorf("last message should be the user question: %+v", got.Messages[2])
	}
}

func TestOllamaChat_NoContextTwoMessages(t *testing.T) {
	var got struct {
		Messages []chatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "ok"},
		})
	}))
	defer srv.Close()

	g := NewOllamaChat(OllamaConfig{URL: srv.URL})
	if _, err := g.Generate(context.Background(), "hello?", nil); err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 {
		t.Errorf("empty context should send instruction+question only, got %d messages", len(got.Messages))
	}
}

type fixedGenerator struct {
	text string
	err  error
}

func (g *fixedGenerator) Name() string { return "fixed/backend" }

func (g *fixedGenerator) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	return g.text, g.err
}

func TestAnswer_WrapsProvenance(t *testing.T) {
	g := &fixedGenerator{text: "the sky is blue"}
	ans, err := Answer(context.Background(), g, "what color is the sky?", []string{"note one", "note two"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "the sky is blue" {
		t.Errorf("text: got %q", ans.Text)
	}
	if ans.Backend != "fixed/backend" {
		t.Errorf("backend: got %q", ans.Backend)
	}
	if ans.ContextUsed != 2 {
		t.Errorf("context used: got %d", ans.ContextUsed)
	}
}

func TestAnswer_PropagatesFailure(t *testing.T) {
	g := &fixedGenerator{err: errFixed}
	if _, err := Answer(context.Background(), g, "anything?", nil); err == nil {
		t.Error("backend failure should propagate")
	}
}

var errFixed = errors.New("backend down")
