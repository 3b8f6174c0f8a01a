package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fabrik-io/fabrik/internal/api"
	"github.com/fabrik-io/fabrik/internal/config"
	"github.com/fabrik-io/fabrik/internal/extract"
	"github.com/fabrik-io/fabrik/internal/lifecycle"
	"github.com/fabrik-io/fabrik/internal/logbuf"
	"github.com/fabrik-io/fabrik/internal/progress"
	"github.com/fabrik-io/fabrik/internal/project"
	"github.com/fabrik-io/fabrik/internal/provider"
	"github.com/fabrik-io/fabrik/internal/ticket"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file (omit to configure from environment)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging. The ring captures every level for GET /api/logs even
	// when stdout filters.
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	ring := logbuf.NewRing(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, ring))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("fabrikd starting", "data_dir", cfg.DataDir, "provider", cfg.Provider.Type)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	// Ticket store. The sequence is seeded from the highest persisted id so
	// identifiers stay unique across restarts and old data dirs.
	ticketsDir := filepath.Join(cfg.DataDir, "tickets")
	seq, err := ticket.OpenSequence(filepath.Join(cfg.DataDir, "fabrik.db"), ticket.ScanHighest(ticketsDir))
	if err != nil {
		logger.Error("failed to open id sequence", "error", err)
		os.Exit(1)
	}
	defer seq.Close()

	store, err := ticket.NewFileStore(ticketsDir, seq, logger.With("component", "store"))
	if err != nil {
		logger.Error("failed to open ticket store", "path", ticketsDir, "error", err)
		os.Exit(1)
	}

	// Provider
	var prov provider.Provider
	switch cfg.Provider.Type {
	case "openai":
		var opts []provider.OpenAIOption
		if cfg.Provider.Model != "" {
			opts = append(opts, provider.WithModel(cfg.Provider.Model))
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(cfg.Provider.BaseURL))
		}
		prov = provider.NewOpenAI(cfg.Provider.APIKey, opts...)
	default:
		var opts []provider.GeminiOption
		if cfg.Provider.Model != "" {
			opts = append(opts, provider.WithGeminiModel(cfg.Provider.Model))
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, provider.WithGeminiBaseURL(cfg.Provider.BaseURL))
		}
		prov = provider.NewGemini(cfg.Provider.APIKey, opts...)
	}
	logger.Info("provider initialized", "name", prov.Name(), "model", cfg.Provider.Model)

	// Progress fan-out. WebSocket clients attach per connection; Slack is a
	// process-lifetime sink.
	bc := progress.NewBroadcaster(logger.With("component", "progress"))
	if cfg.Slack != nil {
		sink, err := progress.NewSlackSink(cfg.Slack.BotToken, cfg.Slack.Channel)
		if err != nil {
			logger.Error("failed to init slack sink", "error", err)
			os.Exit(1)
		}
		bc.Attach(sink)
		logger.Info("slack sink attached", "channel", cfg.Slack.Channel)
	}

	coord := lifecycle.New(
		store,
		prov,
		project.NewMaterializer(cfg.DataDir, logger.With("component", "materializer")),
		bc,
		lifecycle.Options{
			TasksDir:      filepath.Join(cfg.DataDir, "tasks"),
			BlockStrategy: extract.BlockStrategy(cfg.Develop.BlockStrategy),
			GenTimeout:    cfg.Develop.Timeout(),
			Logger:        logger.With("component", "lifecycle"),
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reaper := lifecycle.NewReaper(store, bc, cfg.Develop.StaleAfter(), logger.With("component", "reaper"))
	go safeGo(logger, "reaper", func() { reaper.Start(ctx) })

	apiSrv := api.NewServer(coord, api.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), ring, bc)
	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())
	cancel()
	logger.Info("fabrikd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
