// Package main is the Finsight CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/finsight/finsight/internal/chunker"
	"github.com/finsight/finsight/internal/cli"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/embedding"
	"github.com/finsight/finsight/internal/extract"
	"github.com/finsight/finsight/internal/generator"
	"github.com/finsight/finsight/internal/models"
	"github.com/finsight/finsight/internal/rag"
	"github.com/finsight/finsight/internal/server"
	"github.com/finsight/finsight/internal/vectorstore"
	"github.com/finsight/finsight/internal/watcher"
	"github.com/finsight/finsight/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/finsight/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "finsight server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
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
	// API keys (HF_API_KEY, GROQ_API_KEY) may live in a local .env file.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "clear":
		runClear()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("finsight version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file ingestion, etc.)")
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ingester := components.Ingester
	watchOpts := []watcher.WatcherOption{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			if _, _, err := ingester.IngestFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest file failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if _, err := ingester.RemoveFile(context.Background(), path); err != nil {
				logger.Warn("watch remove by path failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Service,
		components.Ingester,
		cfg,
		logger,
		server.WithWatch(watchSvc, resolvedConfigPath),
	)
	go func() {
		if err := srv.Start(); err != nil {
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

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: finsight ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The answer is generated from the most similar indexed chunks. When nothing
relevant is indexed the model field is "none"; when every model in the chain
fails the raw context is returned with model "fallback-context".

Examples:
  finsight ask what drove revenue growth
  finsight ask "what drove revenue growth"     # same as above
  finsight ask --output json "q3 margins"      # structured JSON for other apps
  finsight ask --server "" "q3 margins"        # direct mode, server not running
`)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "finsight ask \"question\"
// -output json" would otherwise leave -output unparsed.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgs)

	if fs.NArg() < 1 {
		printAskUsage(fs)
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	if *serverURL != "" {
		// Use HTTP API when server is running (avoids SQLite lock conflict).
		answer, err := askViaHTTP(*serverURL, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct storage access (when server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	answer, err := components.Service.Ask(context.Background(), question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL, question string) (*models.Answer, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var answer models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &answer, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: finsight ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Ingester.IngestDirectory(ctx, path)
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
		return
	}
	source, ids, err := components.Ingester.IngestFile(ctx, path)
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document ingested as %s (%d chunks)\n", source, len(ids))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: finsight delete [flags] <source>")
		os.Exit(1)
	}
	source := fs.Arg(0)

	if *serverURL != "" {
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents?source="+url.QueryEscape(source), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Delete failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Removed int `json:"removed"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		fmt.Printf("Deleted %s (%d chunks)\n", source, out.Removed)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	n, err := components.Service.DeleteSource(context.Background(), source)
	if err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s (%d chunks)\n", source, n)
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Post(*serverURL+"/api/v1/clear", "application/json", nil)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Clear failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Removed int `json:"removed"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		fmt.Printf("Cleared %d chunk(s)\n", out.Removed)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	n, err := components.Service.Clear(context.Background())
	if err != nil {
		fmt.Printf("Clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Cleared %d chunk(s)\n", n)
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	ChunkSize      int      `json:"chunk_size,omitempty"`
	ChunkOverlap   int      `json:"chunk_overlap,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	EmbeddingModel string   `json:"embedding_model,omitempty"`
	LLMModels      []string `json:"llm_models,omitempty"`
	DatabasePath   string   `json:"database_path,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Chunks           int                   `json:"chunks"`
	Dimension        int                   `json:"dimension"`
	Config           *statusConfigResponse `json:"config,omitempty"`
	WatchDirectories []string              `json:"watch_directories,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		stats, err := components.Service.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Chunks:    stats.ChunkCount,
			Dimension: stats.Dimension,
			Config: &statusConfigResponse{
				ChunkSize:      cfg.RAG.ChunkSize,
				ChunkOverlap:   cfg.RAG.ChunkOverlap,
				TopK:           cfg.RAG.TopK,
				EmbeddingModel: cfg.Embedding.Model,
				LLMModels:      cfg.LLM.Models,
				DatabasePath:   cfg.Storage.DatabasePath,
			},
			WatchDirectories: cfg.Watch.Directories,
		}
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
		fmt.Printf("chunks:     %d   # count of indexed text chunks\n", status.Chunks)
		fmt.Printf("dimension:  %d   # embedding dimension of the store (0 = empty)\n", status.Dimension)
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			if status.Config.ChunkSize > 0 {
				fmt.Printf("chunk_size:       %d\n", status.Config.ChunkSize)
			}
			if status.Config.ChunkOverlap > 0 {
				fmt.Printf("chunk_overlap:    %d\n", status.Config.ChunkOverlap)
			}
			if status.Config.TopK > 0 {
				fmt.Printf("top_k:            %d\n", status.Config.TopK)
			}
			if status.Config.EmbeddingModel != "" {
				fmt.Printf("embedding_model:  %s\n", status.Config.EmbeddingModel)
			}
			if len(status.Config.LLMModels) > 0 {
				fmt.Printf("llm_models:       %s\n", strings.Join(status.Config.LLMModels, ", "))
			}
			if status.Config.DatabasePath != "" {
				fmt.Printf("database_path:    %s\n", status.Config.DatabasePath)
			}
		}
		if len(status.WatchDirectories) > 0 {
			fmt.Println()
			fmt.Println("# watched directories")
			for _, d := range status.WatchDirectories {
				fmt.Println(d)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: finsight watch <add|remove|list> [path]")
		fmt.Println("  finsight watch add <path>     Add directory to watch")
		fmt.Println("  finsight watch remove <path>  Remove directory from watch")
		fmt.Println("  finsight watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: finsight watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: finsight watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    vectorstore.Store
	Embedder embedding.Embedder
	Service  *rag.Service
	Ingester *rag.FileIngester
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := vectorstore.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.APIKey() == "" {
		// Without an API key every embedding call would 401; a deterministic
		// local embedder keeps the CLI usable for development.
		if logger != nil {
			logger.Warn("no embedding API key set, using mock embedder",
				zap.String("env", cfg.Embedding.APIKeyEnv))
		}
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	} else {
		hf, err := embedding.NewHFEmbedder(embedding.HFConfig{
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey(),
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
			Timeout:   cfg.Embedding.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		cached, err := embedding.NewCachedEmbedder(hf, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
		}
		embedder = cached
	}

	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	client := generator.NewGroqClient(generator.GroqConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	gen := generator.New(client, generator.Config{
		Models:            cfg.LLM.Models,
		MaxRetries:        cfg.LLM.MaxRetries,
		Timeout:           cfg.LLM.Timeout(),
		BackoffBase:       cfg.LLM.BackoffBase(),
		BackoffMultiplier: cfg.LLM.BackoffMultiplier,
	}, logger)

	service := rag.NewService(ch, embedder, store, gen, cfg.RAG.TopK, cfg.RAG.MaxConcurrent, logger)
	ingester := rag.NewFileIngester(service, extract.NewExtractor(), logger)

	return &Components{
		Store:    store,
		Embedder: embedder,
		Service:  service,
		Ingester: ingester,
	}, nil
}

func printUsage() {
	fmt.Println(`finsight - Document question answering over your own files

Usage:
  finsight server [flags]            Start the HTTP server
  finsight ask [flags] <question>    Ask a question over ingested documents
  finsight ingest [flags] <path>     Ingest a file or directory
  finsight delete [flags] <source>   Delete an ingested source
  finsight clear [flags]             Remove all indexed chunks
  finsight status [flags]            Show store and pipeline status
  finsight watch <add|remove|list>   Manage watched directories
  finsight version                   Show version
  finsight help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/finsight/config.yaml)
  --debug            Enable debug logging (directory changes, file ingestion, etc.)

Ask Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode when server is not running.
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path

Delete / Clear Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Environment:
  GROQ_API_KEY       API key for answer generation
  HF_API_KEY         API key for embeddings (mock embedder is used when unset)
  Both may be placed in a .env file in the working directory.

Examples:
  finsight server
  finsight ingest reports/
  finsight ask "what drove revenue growth in Q3"
  finsight ask --output json "q3 margins"
  finsight delete report.pdf#a1b2c3d4
  finsight status
  finsight watch add /path/to/reports
  finsight watch list`)
}
