// Package main is the Kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/answer"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/retrieval"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/tools"
	"github.com/hyperjump/kioku/internal/vector"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kioku/config.yaml"
	defaultServerURL  = "http://localhost:8765"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kioku server" from the project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Pick up API keys from a local .env during development; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "add":
		runAdd()
	case "query":
		runQuery()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (tool dispatch, watcher events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		coord := components.Coordinator
		extractor := extract.NewExtractor()
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			func(path string) {
				text, err := extractor.Extract(path)
				if err != nil {
					logger.Warn("watch extract failed", zap.String("path", path), zap.Error(err))
					return
				}
				if strings.TrimSpace(text) == "" {
					return
				}
				if _, err := coord.Ingest(context.Background(), text); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Registry,
		components.Coordinator,
		components.Storage,
		components.VectorIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// callTool posts a tool request envelope to a running server and prints the
// result text. A tool-level error exits nonzero.
func callTool(serverURL, name string, args any) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	body, err := json.Marshal(models.ToolRequest{Name: name, Arguments: rawArgs})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.Post(serverURL+"/api/v1/tools", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v (is the server running?)\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var result models.ToolResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	for _, block := range result.Content {
		fmt.Println(block.Text)
	}
	if result.IsError {
		os.Exit(1)
	}
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku add [flags] <text>")
		os.Exit(1)
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	callTool(*serverURL, "add_note", map[string]string{"text": text})
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku query [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	callTool(*serverURL, "query_notes", map[string]string{"question": question})
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	callTool(*serverURL, "list_notes", map[string]string{})
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku delete [flags] <note-id>")
		os.Exit(1)
	}
	callTool(*serverURL, "delete_note", map[string]string{"id": fs.Arg(0)})
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Notes           int                    `json:"notes"`
	Orphans         int                    `json:"orphans"`
	VectorIndexSize int                    `json:"vector_index_size"`
	Config          map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v (is the server running?)\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("notes:              %d   # stored notes\n", status.Notes)
		fmt.Printf("orphans:            %d   # notes stored but not indexed\n", status.Orphans)
		fmt.Printf("vector_index_size:  %d   # vectors in the index\n", status.VectorIndexSize)
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{
				"vector_index_type", "dimensions", "segmenter_enabled",
				"chunk_size", "chunk_overlap", "retrieval_top_k", "database_path",
			} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-19s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	Coordinator *ingest.Coordinator
	Retriever   *retrieval.Retriever
	Generator   answer.Generator
	Registry    *tools.Registry
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKeyEnv:  cfg.Embedding.APIKeyEnv,
		Model:      cfg.Embedding.Model,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
		Dimensions: cfg.Vector.Dimensions,
	})
	if err != nil {
		// No embedding credentials: run with deterministic local vectors so
		// the server still works for development and tests.
		logger.Warn("embedding service unavailable, using mock embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Vector.Dimensions)
	} else {
		embedder = openaiEmbedder
	}

	var qdrantCfg *vector.QdrantConfig
	if cfg.Vector.Qdrant != nil {
		qdrantCfg = &vector.QdrantConfig{
			URL:        cfg.Vector.Qdrant.URL,
			APIKeyEnv:  cfg.Vector.Qdrant.APIKeyEnv,
			Collection: cfg.Vector.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Vector.Qdrant.TimeoutSecs) * time.Second,
		}
	}
	vectorIndex, err := vector.New(context.Background(), cfg.Vector.Type, cfg.Vector.Dimensions, qdrantCfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized", zap.String("type", vectorIndex.Type()))

	policy := ingest.SegmentPolicy{
		Enabled:      cfg.Segmenter.Enabled,
		ChunkSize:    cfg.Segmenter.ChunkSize,
		ChunkOverlap: cfg.Segmenter.ChunkOverlap,
	}
	coordOpts := []ingest.CoordinatorOption{}
	retrOpts := []retrieval.RetrieverOption{}
	regOpts := []tools.RegistryOption{tools.WithTopK(cfg.Answer.TopK)}
	if debug {
		coordOpts = append(coordOpts, ingest.WithLogger(logger))
		retrOpts = append(retrOpts, retrieval.WithLogger(logger))
		regOpts = append(regOpts, tools.WithLogger(logger))
	}
	coordinator := ingest.NewCoordinator(store, embedder, vectorIndex, policy, coordOpts...)
	retriever := retrieval.NewRetriever(store, embedder, vectorIndex, retrOpts...)

	generator, err := answer.Select(answer.Config{
		OpenAI: answer.OpenAIChatConfig{
			BaseURL:   cfg.Answer.OpenAI.BaseURL,
			APIKeyEnv: cfg.Answer.OpenAI.APIKeyEnv,
			Model:     cfg.Answer.OpenAI.Model,
			Timeout:   time.Duration(cfg.Answer.OpenAI.TimeoutSecs) * time.Second,
		},
		Ollama: answer.OllamaConfig{
			URL:     cfg.Answer.Ollama.URL,
			Model:   cfg.Answer.Ollama.Model,
			Timeout: time.Duration(cfg.Answer.Ollama.TimeoutSecs) * time.Second,
		},
	})
	if err != nil {
		_ = store.Close()
		_ = vectorIndex.Close()
		return nil, fmt.Errorf("failed to select answer backend: %w", err)
	}
	logger.Info("answer backend selected", zap.String("backend", generator.Name()))

	registry := tools.NewRegistry(coordinator, retriever, store, generator, regOpts...)

	return &Components{
		Storage:     store,
		Embedder:    embedder,
		VectorIndex: vectorIndex,
		Coordinator: coordinator,
		Retriever:   retriever,
		Generator:   generator,
		Registry:    registry,
	}, nil
}

func printUsage() {
	fmt.Println(`kioku - Personal note memory with semantic question answering

Usage:
  kioku server [flags]            Start the HTTP server
  kioku add [flags] <text>        Store a note
  kioku query [flags] <question>  Ask a question over stored notes
  kioku list [flags]              List stored notes
  kioku delete [flags] <id>       Delete a note
  kioku status [flags]            Show store/index status
  kioku version                   Show version
  kioku help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging (tool dispatch, watcher events, etc.)

Client Flags (add, query, list, delete, status):
  --server string    Server URL (default: http://localhost:8765)
  --output string    status only: text or json (default: text)

Examples:
  kioku server
  kioku add "The wifi password for the office is hunter2"
  kioku query what is the office wifi password?
  kioku list
  kioku delete 4f7c2b9a-...
  kioku status --output json`)
}
