// Package answer generates grounded answers through one of two chat backends:
// a remote OpenAI-compatible service (primary) or a local Ollama instance
// (fallback). The backend is chosen once at startup by credential presence;
// a primary-call failure propagates rather than demoting to the fallback.
package answer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hyperjump/kioku/internal/models"
)

// instruction is the fixed grounding preamble sent ahead of every question.
const instruction = "Answer the user's question. Use the provided context if it is relevant."

// Generator produces an answer to a question given retrieved note texts.
type Generator interface {
	// Name identifies the backend for provenance reporting.
	Name() string
	Generate(ctx context.Context, question string, contexts []string) (string, error)
}

// Config selects and configures the generation backends.
type Config struct {
	OpenAI OpenAIChatConfig
	Ollama OllamaConfig
}

// Select returns the backend for this deployment: the OpenAI backend when its
// API key is present in the configured environment variable, the Ollama
// backend otherwise. The choice is static for the process lifetime.
func Select(cfg Config) (Generator, error) {
	keyEnv := cfg.OpenAI.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	if os.Getenv(keyEnv) != "" {
		g, err := NewOpenAIChat(cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to configure openai backend: %w", err)
		}
		return g, nil
	}
	return NewOllamaChat(cfg.Ollama), nil
}

// Answer runs g on the question and wraps the result with its provenance:
// which backend produced it and how many context notes went into the prompt.
func Answer(ctx context.Context, g Generator, question string, contexts []string) (*models.Answer, error) {
	text, err := g.Generate(ctx, question, contexts)
	if err != nil {
		return nil, err
	}
	return &models.Answer{
		Text:        text,
		Backend:     g.Name(),
		ContextUsed: len(contexts),
	}, nil
}

// contextBlock renders retrieved notes as a bulleted block, or "" when there
// is no context. Callers omit the block entirely rather than sending it empty.
func contextBlock(contexts []string) string {
	if len(contexts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, c := range contexts {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
