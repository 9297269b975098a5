package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// OpenAIChatConfig configures the primary chat backend.
type OpenAIChatConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// OpenAIChat is the primary backend: an OpenAI-compatible chat completion
// service. The grounding instruction and context travel as a single system
// message; the question is the sole user message.
type OpenAIChat struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIChat creates the backend. The API key is read from cfg.APIKeyEnv.
func NewOpenAIChat(cfg OpenAIChatConfig) (*OpenAIChat, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", keyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIChat{
		baseURL: cfg.BaseURL,
		apiKey:  key,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provenance tag for this backend.
func (g *OpenAIChat) Name() string {
	return "openai/" + g.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate produces an answer grounded in the given contexts.
func (g *OpenAIChat) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	system := instruction
	if block := contextBlock(contexts); block != "" {
		system = instruction + "\n\n" + block
	}
	body := map[string]any{
		"model": g.model,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: question},
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai chat request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai chat failed: %s", resp.Status)
	}

	var out struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai chat returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
