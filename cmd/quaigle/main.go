// Package main is the Quaigle server entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/quaigle/quaigle/internal/config"
	"github.com/quaigle/quaigle/internal/embedding"
	"github.com/quaigle/quaigle/internal/engine"
	"github.com/quaigle/quaigle/internal/llm"
	"github.com/quaigle/quaigle/internal/server"
	"github.com/quaigle/quaigle/internal/session"
	"github.com/quaigle/quaigle/internal/staging"
	"github.com/quaigle/quaigle/internal/tokencount"
	"github.com/quaigle/quaigle/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/quaigle/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
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

// engineFactory builds session engines over the shared LLM provider and
// embedder.
type engineFactory struct {
	cfg      *config.Config
	provider llm.Provider
	embedder embedding.Embedder
	logger   *zap.Logger
}

func (f *engineFactory) NewRetrievalEngine(ctx context.Context, tracker *tokencount.Tracker) (engine.ChatEngine, error) {
	return engine.NewRetrievalEngine(f.cfg, f.provider, f.embedder, tracker, f.logger)
}

func (f *engineFactory) NewDatabaseEngine(ctx context.Context, tracker *tokencount.Tracker) (engine.ChatEngine, error) {
	return engine.NewDatabaseEngine(f.provider, tracker, f.logger), nil
}

// Components holds the initialized application parts for shutdown.
type Components struct {
	Provider llm.Provider
	Embedder embedding.Embedder
	Store    *staging.Store
	Watcher  *staging.Watcher
	Session  *session.Session
}

// Close shuts down all components in reverse initialization order.
func (c *Components) Close() {
	if c.Session != nil {
		_ = c.Session.Close()
	}
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Provider != nil {
		_ = c.Provider.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	provider, err := llm.NewGemini(ctx, apiKey, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	gemEmbedder, err := embedding.NewGeminiEmbedder(ctx, apiKey, cfg.LLM.EmbedModel, cfg.LLM.EmbedDimensions)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	embedder := embedding.NewCachedEmbedder(gemEmbedder, cfg.LLM.EmbedCacheSize)

	store, err := staging.NewStore(cfg.Storage.DataDir)
	if err != nil {
		embedder.Close()
		provider.Close()
		return nil, err
	}
	watcher := staging.NewWatcher(store.Dir(), logger)

	factory := &engineFactory{cfg: cfg, provider: provider, embedder: embedder, logger: logger}
	sess := session.New(factory, store, logger)

	return &Components{
		Provider: provider,
		Embedder: embedder,
		Store:    store,
		Watcher:  watcher,
		Session:  sess,
	}, nil
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "config file path")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("quaigle version %s\n", version)
		return
	}

	// Optional .env with GEMINI_API_KEY for development.
	_ = godotenv.Load()

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Watcher.Start(ctx); err != nil {
		logger.Fatal("Failed to start staging watcher", zap.Error(err))
	}

	srv := server.NewServer(components.Session, components.Watcher, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}
