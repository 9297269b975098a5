package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaConfig configures the local fallback chat backend.
type OllamaConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// OllamaChat is the fallback backend: a local Ollama server. Ollama has no
// single distinguished system prompt beyond role-tagged messages, so the
// instruction and context block are sent as separate prior messages ahead of
// the user question.
type OllamaChat struct {
	url    string
	model  string
	client *http.Client
}

// NewOllamaChat creates the backend with defaults for a local Ollama install.
func NewOllamaChat(cfg OllamaConfig) *OllamaChat {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaChat{
		url:    cfg.URL,
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the provenance tag for this backend.
func (g *OllamaChat) Name() string {
	return "ollama/" + g.model
}

// Generate produces an answer grounded in the given contexts.
func (g *OllamaChat) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	messages := []chatMessage{{Role: "system", Content: instruction}}
	if block := contextBlock(contexts); block != "" {
		messages = append(messages, chatMessage{Role: "system", Content: block})
	}
	messages = append(messages, chatMessage{Role: "user", Content: question})

	body := map[string]any{
		"model":    g.model,
		"messages": messages,
		"stream":   false,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama chat failed: %s", resp.Status)
	}

	var out struct {
		Message chatMessage `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return out.Message.Content, nil
}
