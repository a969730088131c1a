// Package main is the shelf CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"go.uber.org/zap"

	"github.com/puzzlepages/shelf/internal/cache"
	"github.com/puzzlepages/shelf/internal/cli"
	"github.com/puzzlepages/shelf/internal/config"
	"github.com/puzzlepages/shelf/internal/content"
	"github.com/puzzlepages/shelf/internal/images"
	"github.com/puzzlepages/shelf/internal/indexer"
	"github.com/puzzlepages/shelf/internal/keyword"
	"github.com/puzzlepages/shelf/internal/library"
	"github.com/puzzlepages/shelf/internal/maintenance"
	"github.com/puzzlepages/shelf/internal/manifest"
	"github.com/puzzlepages/shelf/internal/models"
	"github.com/puzzlepages/shelf/internal/records"
	"github.com/puzzlepages/shelf/internal/server"
	"github.com/puzzlepages/shelf/internal/storage"
	"github.com/puzzlepages/shelf/internal/watcher"
	"github.com/puzzlepages/shelf/pkg/utils"
)

var version = "dev"

// defaultConfigPath is looked up in the working directory. When it is absent
// the built-in defaults apply.
const defaultConfigPath = "config.yaml"

// loadConfig loads config from path. The default path is optional: if it
// does not exist, defaults (plus .env and SHELF_* overrides) are used.
// Returns the config and the path that was actually loaded ("" for none).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			cfg, err := config.Load("")
			return cfg, "", err
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
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
	case "index":
		runIndex()
	case "manifest":
		runManifest()
	case "list":
		runList()
	case "search":
		runSearch()
	case "resize":
		runResize()
	case "version", "--version", "-v":
		fmt.Printf("shelf version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup parses the common -config/-debug flags and builds the config and logger.
func setup(fs *flag.FlagSet, args []string) (*config.Config, *zap.Logger, string) {
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug || cfg.Development())
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	cfg, logger, resolvedConfigPath := setup(fs, os.Args[2:])
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("mode", string(cfg.Mode)),
		zap.String("libraries", cfg.Content.LibrariesPath()),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Bring the primary index up to date with the tree before serving from it.
	go func() {
		if err := components.Indexer.Refresh(context.Background()); err != nil {
			logger.Warn("initial content index refresh failed", zap.Error(err))
			return
		}
		components.Cache.Invalidate()
	}()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Development() {
		w := watcher.New(
			content.WatchRoots(components.Reader),
			func(paths []string) {
				logger.Debug("content changed", zap.Strings("paths", paths))
				if err := components.Indexer.Refresh(watchCtx); err != nil {
					logger.Warn("content index refresh failed", zap.Error(err))
				}
				components.Cache.Invalidate()
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Cache.Debounce),
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	opts := []server.Option{
		server.WithCache(components.Cache),
		server.WithStorage(components.Storage),
	}
	if m, err := manifest.Load(cfg.Manifest.Path); err == nil {
		logger.Info("route manifest loaded", zap.String("path", cfg.Manifest.Path), zap.Int("libraries", len(m.Libraries)))
		opts = append(opts, server.WithManifest(m))
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("route manifest unreadable, legacy slugs resolve from content only",
			zap.String("path", cfg.Manifest.Path), zap.Error(err))
	}
	srv := server.NewServer(components.Library, cfg, logger, opts...)
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

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	cfg, logger, _ := setup(fs, os.Args[2:])
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	res, err := components.Indexer.IndexAll(context.Background())
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d, skipped %d, removed %d, failed %d from %s\n",
		res.Indexed, res.Skipped, res.Removed, res.Failed, cfg.Content.LibrariesPath())
}

func runManifest() {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	out := fs.String("out", "", "output path (default from config; - for stdout)")
	cfg, logger, _ := setup(fs, os.Args[2:])
	defer logger.Sync()

	reader := content.NewReader(cfg.Content.LibrariesPath(), content.WithLogger(logger))
	m, err := manifest.Build(context.Background(), reader, logger)
	if err != nil {
		fmt.Printf("Building manifest failed: %v\n", err)
		os.Exit(1)
	}
	path := *out
	if path == "" {
		path = cfg.Manifest.Path
	}
	if path == "-" {
		data, err := manifest.Marshal(m)
		if err != nil {
			fmt.Printf("Encoding manifest failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}
	if err := manifest.Write(path, m); err != nil {
		fmt.Printf("Writing manifest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d libraries to %s\n", len(m.Libraries), path)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	output := fs.String("format", "text", "output format: text, compact or json")
	cfg, logger, _ := setup(fs, os.Args[2:])
	defer logger.Sync()

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	recs, source := components.Library.ListRecords(context.Background())
	logger.Debug("libraries listed", zap.Int("count", len(recs)), zap.String("source", string(source)))
	summaries := make([]models.LibrarySummary, 0, len(recs))
	for i := range recs {
		summaries = append(summaries, recs[i].Summary())
	}
	if err := cli.WriteLibraries(os.Stdout, summaries, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

// buildSearchQuery joins positional args into one query string.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags ahead of the query so "shelf search poetry
// -limit 3" parses like "shelf search -limit 3 poetry".
func searchArgsReorder(args []string) []string {
	var flags, rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			flags = append(flags, a)
			if !strings.Contains(a, "=") && i+1 < len(args) && !isBoolFlag(a) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		rest = append(rest, a)
	}
	if len(flags) == 0 {
		return args
	}
	return append(flags, rest...)
}

func isBoolFlag(a string) bool {
	switch strings.TrimLeft(a, "-") {
	case "debug":
		return true
	}
	return false
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "", "server URL; empty searches the content tree directly")
	limit := fs.Int("limit", 10, "maximum results")
	output := fs.String("format", "text", "output format: text, compact or json")
	cfg, logger, _ := setup(fs, searchArgsReorder(os.Args[2:]))
	defer logger.Sync()

	query := &models.SearchQuery{Query: buildSearchQuery(fs.Args()), Limit: *limit}
	if err := query.Validate(); err != nil {
		fmt.Println("Usage: shelf search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, query)
	} else {
		var components *Components
		components, err = initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		response, err = components.Library.Search(context.Background(), query)
	}
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	u := strings.TrimSuffix(serverURL, "/") + "/api/libraries/search?" + url.Values{
		"q":     {query.Query},
		"limit": {fmt.Sprint(query.Limit)},
	}.Encode()
	resp, err := http.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func runResize() {
	fs := flag.NewFlagSet("resize", flag.ExitOnError)
	maxDim := fs.Int("max", 0, "largest allowed side in pixels (default from config)")
	concurrency := fs.Int("concurrency", 0, "parallel workers (default from config)")
	dryRun := fs.Bool("dry-run", false, "report without writing")
	backup := fs.Bool("backup", false, "keep originals as <name>.orig")
	cfg, logger, _ := setup(fs, os.Args[2:])
	defer logger.Sync()

	root := cfg.Content.LibrariesPath()
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	opts := maintenance.ResizeOptions{
		MaxDimension: cfg.Maintenance.MaxDimension,
		Concurrency:  cfg.Maintenance.Concurrency,
		DryRun:       *dryRun,
		Backup:       *backup,
		Logger:       logger,
	}
	if *maxDim > 0 {
		opts.MaxDimension = *maxDim
	}
	if *concurrency > 0 {
		opts.Concurrency = *concurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	report, err := maintenance.Resize(ctx, root, opts)
	if report != nil {
		cli.WriteResizeReport(os.Stdout, report)
	}
	if err != nil {
		fmt.Printf("Resize failed: %v\n", err)
		os.Exit(1)
	}
}

// Components holds the wired services shared by the subcommands.
type Components struct {
	Reader  content.Reader
	Storage *storage.SQLiteStorage
	Indexer *indexer.Indexer
	Search  *keyword.BleveIndex
	Cache   *cache.Cache
	Library *library.Service
}

func (c *Components) Close() {
	if c.Library != nil {
		c.Library.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Search != nil {
		_ = c.Search.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	logger = utils.OrNop(logger)
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	search, err := keyword.NewBleveIndex()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	reader := content.NewReader(cfg.Content.LibrariesPath(), content.WithLogger(logger))
	resolver := images.NewResolver(cfg.Public.Dir,
		images.WithURLPrefix(cfg.Public.ImagePrefix),
		images.WithPlaceholder(cfg.Public.Placeholder),
		images.WithLogger(logger),
	)
	deriver := records.NewDeriver(reader, resolver, logger)

	libraryCache := cache.New(deriver,
		cache.WithLogger(logger),
		cache.WithDebounce(cfg.Cache.Debounce),
		cache.WithOnPublish(func(s *cache.Snapshot) {
			if err := search.Rebuild(s.Records); err != nil {
				logger.Warn("keyword index rebuild failed", zap.Error(err))
			}
		}),
	)
	idx := indexer.NewIndexer(store, reader, indexer.WithLogger(logger))
	svc := library.NewService(deriver,
		library.WithLogger(logger),
		library.WithStorage(store),
		library.WithCache(libraryCache),
		library.WithSearch(search),
		library.WithRefresher(idx),
		library.WithRetryDelay(cfg.Cache.RetryDelay),
	)

	logger.Debug("components initialized",
		zap.String("libraries", reader.Root()),
		zap.Stringer("layout", reader.Layout()),
		zap.String("database", cfg.Storage.DatabasePath))

	return &Components{
		Reader:  reader,
		Storage: store,
		Indexer: idx,
		Search:  search,
		Cache:   libraryCache,
		Library: svc,
	}, nil
}

func printUsage() {
	fmt.Println(`shelf - little library identity and resolution

Usage:
  shelf server [flags]            Start the HTTP server
  shelf index [flags]             Sync the content index with the libraries tree
  shelf manifest [flags]          Write the library id/slug manifest
  shelf list [flags]              List libraries
  shelf search [flags] <query>    Keyword search over libraries
  shelf resize [flags] [dir]      Downscale oversized library images
  shelf version                   Show version
  shelf help                      Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml if present)
  --debug            Enable debug logging

Manifest Flags:
  --out string       Output path (default from config; - for stdout)

List Flags:
  --format string    Output format: text, compact or json (default: text)

Search Flags:
  --server string    Server URL; empty searches the content tree directly
  --limit int        Maximum results (default: 10)
  --format string    Output format: text, compact or json (default: text)

Resize Flags:
  --max int          Largest allowed side in pixels (default: 800)
  --concurrency int  Parallel workers (default: 4)
  --dry-run          Report without writing
  --backup           Keep originals as <name>.orig

Environment:
  SHELF_MODE         development enables live reload and debug logging
  SHELF_CONTENT_DIR  Content root override
  SHELF_PORT         HTTP port override

Examples:
  shelf server
  SHELF_MODE=development shelf server
  shelf manifest --out public/library-manifest.json
  shelf list --format compact
  shelf search poetry --limit 3
  shelf resize --dry-run`)
}
