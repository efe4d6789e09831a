// Package main is the principia CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/principia/internal/cli"
	"github.com/hyperjump/principia/internal/config"
	"github.com/hyperjump/principia/internal/ident"
	"github.com/hyperjump/principia/internal/indexer"
	"github.com/hyperjump/principia/internal/models"
	"github.com/hyperjump/principia/internal/server"
	"github.com/hyperjump/principia/internal/storage"
	"github.com/hyperjump/principia/internal/telemetry"
	"github.com/hyperjump/principia/internal/watcher"
	"github.com/hyperjump/principia/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/principia/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; when neither exists, built-in defaults are used. Environment
// overrides (.env included) are applied last. Returns the path actually loaded, empty for
// built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", fmt.Errorf("failed to load .env: %w", err)
	}
	config.ApplyEnv(cfg)
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
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
	case "status":
		runStatus()
	case "examples":
		runExamples()
	case "version", "--version", "-v":
		fmt.Printf("principia version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every local command.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolved := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Indexer.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to prepare vector collection", zap.Error(err))
	}

	info := systemInfo(cfg, components)
	if cfg.Ingest.Watch && len(cfg.Ingest.Directories) > 0 {
		w := startWatcher(ctx, cfg.Ingest.Directories, components.Indexer, logger)
		defer w.Stop()
		info.Directories = w.Directories
	}

	srv := server.NewServer(server.Deps{
		Pipeline: components.Pipeline,
		Articles: components.Indexer,
		Storage:  components.Storage,
		Index:    components.VectorIndex,
		Info:     info,
	}, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(sctx)
}

// startWatcher imports the directories once in the background, then keeps them in sync.
func startWatcher(ctx context.Context, dirs []string, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	w := watcher.NewWatcher(dirs, idx, watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go func() {
		stats, err := w.Sync(ctx)
		if err != nil {
			logger.Error("initial corpus sync failed", zap.Error(err))
			return
		}
		logger.Info("corpus synced",
			zap.Int("articles", stats.Articles),
			zap.Int("skipped", stats.Skipped),
			zap.Int("chunks", stats.Chunks),
			zap.Duration("elapsed", stats.Elapsed))
	}()
	return w
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: principia ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  principia ask Who was Isaac Newton?
  principia ask --evaluate=false "Explain Newton's laws of motion"
  principia ask --server "" --passages "What is the Principia about?"   # run the pipeline locally
`)
}

// buildQuestion joins positional args so questions work with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the positional arguments to the front so
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
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

func parseFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = run the pipeline locally)")
	evaluate := fs.Bool("evaluate", true, "score retrieval and answer quality")
	passages := fs.Bool("passages", false, "show the passages the answer was written from (local mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging (local mode)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var record *models.AnswerRecord
	if *serverURL != "" {
		record, err = askViaHTTP(context.Background(), http.DefaultClient, *serverURL, question, *evaluate)
	} else {
		record, err = askLocally(*configPath, *debug, question, *evaluate)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if !*passages {
		record.Passages = nil
	}
	if err := cli.WriteAnswer(os.Stdout, record, format); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
}

func askLocally(configPath string, debug bool, question string, evaluate bool) (*models.AnswerRecord, error) {
	cfg, logger, _ := setup(configPath, debug)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Pipeline.AnswerQuestion(ctx, question, evaluate)
}

func askViaHTTP(ctx context.Context, client *http.Client, serverURL, question string, evaluate bool) (*models.AnswerRecord, error) {
	body, err := json.Marshal(models.Question{Question: question, Evaluate: &evaluate})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var record models.AnswerRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	record.Question = question
	return &record, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-embed every article, even unchanged ones")
	watch := fs.Bool("watch", false, "keep running and re-import files as they change")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	paths := fs.Args()
	if len(paths) == 0 {
		paths = cfg.Ingest.Directories
	}

	total := &indexer.IngestStats{}
	start := time.Now()
	for _, p := range paths {
		stats, err := components.Indexer.ImportPath(ctx, p)
		if err != nil {
			fmt.Printf("Import of %s failed: %v\n", p, err)
			os.Exit(1)
		}
		fmt.Printf("Imported %s: %d article(s) embedded, %d unchanged, %d chunk(s)\n",
			p, stats.Articles, stats.Skipped, stats.Chunks)
		total.Articles += stats.Articles
		total.Chunks += stats.Chunks
	}

	// Articles already in the store that were never embedded, or everything when forced.
	stats, err := components.Indexer.IngestAll(ctx, *force)
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	total.Articles += stats.Articles
	total.Chunks += stats.Chunks
	total.Skipped = stats.Skipped
	fmt.Printf("Ingested %d article(s) into %d chunk(s) in %s (%d unchanged)\n",
		total.Articles, total.Chunks, time.Since(start).Round(time.Millisecond), total.Skipped)

	if !*watch {
		return
	}
	var dirs []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
	}
	if len(dirs) == 0 {
		fmt.Println("Nothing to watch: pass a directory or set ingest.directories")
		os.Exit(1)
	}
	w := watcher.NewWatcher(dirs, components.Indexer, watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	fmt.Printf("Watching %s (Ctrl-C to stop)\n", strings.Join(w.Directories(), ", "))
	<-ctx.Done()
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	byTitle := fs.Bool("title", false, "treat the argument as an article title instead of an id")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: principia delete [--title] <article-id | title>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	if *byTitle {
		id = ident.ArticleID(buildQuestion(fs.Args()))
	}

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Indexer.DeleteArticle(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("Article not found: %s\n", id)
		} else {
			fmt.Printf("Deletion failed: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("Article deleted: %s\n", id)
}

// statusResponse mirrors the server's /api/v1/status body.
type statusResponse struct {
	Articles  int   `json:"articles"`
	Chunks    int   `json:"chunks"`
	Vectors   int64 `json:"vectors"`
	DiskUsage int64 `json:"disk_usage_bytes"`
	Config    struct {
		VectorBackend  string `json:"vector_backend"`
		Collection     string `json:"collection"`
		EmbeddingModel string `json:"embedding_model"`
		ChatModel      string `json:"chat_model"`
		Reranker       string `json:"reranker"`
	} `json:"config"`
	Directories []string `json:"directories"`
}

func (s *statusResponse) toStatus() *cli.Status {
	return &cli.Status{
		Articles:       s.Articles,
		Chunks:         s.Chunks,
		Vectors:        s.Vectors,
		VectorBackend:  s.Config.VectorBackend,
		Collection:     s.Config.Collection,
		EmbeddingModel: s.Config.EmbeddingModel,
		ChatModel:      s.Config.ChatModel,
		Reranker:       s.Config.Reranker,
		DiskUsage:      s.DiskUsage,
		Directories:    s.Directories,
	}
}

func statusViaHTTP(ctx context.Context, client *http.Client, serverURL string) (*cli.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/v1/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return s.toStatus(), nil
}

func statusLocally(configPath string) (*cli.Status, error) {
	cfg, logger, _ := setup(configPath, false)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	articles, err := components.Storage.CountArticles(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := components.Storage.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := components.VectorIndex.Count(ctx)
	if err != nil {
		return nil, err
	}
	info := systemInfo(cfg, components)
	disk, _ := storage.DiskUsage(info.DiskPaths...)
	return &cli.Status{
		Articles:       int(articles),
		Chunks:         int(chunks),
		Vectors:        vectors,
		VectorBackend:  info.VectorBackend,
		Collection:     info.Collection,
		EmbeddingModel: info.EmbeddingModel,
		ChatModel:      info.ChatModel,
		Reranker:       info.Reranker,
		DiskUsage:      disk,
		Directories:    cfg.Ingest.Directories,
	}, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var status *cli.Status
	if *serverURL != "" {
		status, err = statusViaHTTP(context.Background(), http.DefaultClient, *serverURL)
	} else {
		status, err = statusLocally(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteStatus(os.Stdout, status, format, storage.FormatBytes)
}

func runExamples() {
	fs := flag.NewFlagSet("examples", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = cli.WriteExamples(os.Stdout, models.ExampleQuestions, format)
}

func printUsage() {
	fmt.Println(`principia - questions and answers about Isaac Newton, grounded in a curated corpus

Usage:
  principia server [flags]              Start the HTTP server
  principia ask [flags] <question>      Answer a question
  principia ingest [flags] [paths...]   Import corpus files and embed new or changed articles
  principia delete [flags] <id>         Delete an article and its passages
  principia status [flags]              Show store, index and model status
  principia examples                    List example questions
  principia version                     Show version
  principia help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/principia/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --server string    Server URL (default: http://localhost:8000). Use --server "" to run the pipeline locally.
  --evaluate         Score retrieval and answer quality (default: true)
  --passages         Show the passages used (local mode)
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --force            Re-embed every article, even unchanged ones
  --watch            Keep running and re-import changed files

Delete Flags:
  --title            Treat the argument as an article title

Status Flags:
  --server string    Server URL (default: http://localhost:8000). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  principia ingest ./corpus
  principia ingest --watch ./corpus
  principia server
  principia ask "What did Newton contribute to calculus?"
  principia ask --server "" --evaluate=false Who was Isaac Newton?
  principia delete --title "Opticks"
  principia status --output json`)
}
