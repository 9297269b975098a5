package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kioku/data/notes.db"
	}
	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "memory"
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = 1536
	}
	if cfg.Vector.Qdrant != nil {
		if cfg.Vector.Qdrant.URL == "" {
			cfg.Vector.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.Vector.Qdrant.Collection == "" {
			cfg.Vector.Qdrant.Collection = "notes"
		}
		if cfg.Vector.Qdrant.TimeoutSecs == 0 {
			cfg.Vector.Qdrant.TimeoutSecs = 30
		}
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Answer.OpenAI.BaseURL == "" {
		cfg.Answer.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Answer.OpenAI.APIKeyEnv == "" {
		cfg.Answer.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Answer.OpenAI.Model == "" {
		cfg.Answer.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Answer.OpenAI.TimeoutSecs == 0 {
		cfg.Answer.OpenAI.TimeoutSecs = 60
	}
	if cfg.Answer.Ollama.URL == "" {
		cfg.Answer.Ollama.URL = "http://localhost:11434"
	}
	if cfg.Answer.Ollama.Model == "" {
		cfg.Answer.Ollama.Model = "llama3"
	}
	if cfg.Answer.Ollama.TimeoutSecs == 0 {
		cfg.Answer.Ollama.TimeoutSecs = 120
	}
	if cfg.Answer.TopK == 0 {
		cfg.Answer.TopK = 3
	}
	if cfg.Segmenter.ChunkSize == 0 {
		cfg.Segmenter.ChunkSize = 500
	}
	if cfg.Segmenter.ChunkOverlap == 0 {
		cfg.Segmenter.ChunkOverlap = 50
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf"}
	}
}
