// Package main provides the GraphQL server for ragchat.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/ragchat/internal/config"
	"github.com/raphaelgruber/ragchat/internal/graph"
	"github.com/raphaelgruber/ragchat/internal/llm"
	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/parser"
	"github.com/raphaelgruber/ragchat/internal/pubsub"
	"github.com/raphaelgruber/ragchat/internal/server"
	"github.com/raphaelgruber/ragchat/internal/service"
	"github.com/raphaelgruber/ragchat/internal/session"
	"github.com/raphaelgruber/ragchat/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	closeLog := config.InstallLogger(cfg)
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting ragchat-server",
		"port", cfg.ServerPort,
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
		"vector_store", cfg.VectorStore,
	)

	collector := metrics.NewCollector()

	embedder, err := llm.NewEmbedder(ctx, cfg, collector)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	slog.Info("models ready",
		"llm_model", model.Model(),
		"embed_model", embedder.Model(),
		"embed_dimension", embedder.Dimension(),
	)

	index, err := vectorstore.New(cfg, collector)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer func() {
		if err := index.Close(); err != nil {
			slog.Error("failed to close vector store", "error", err)
		}
	}()

	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = index.EnsureCollection(setupCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	sessions := session.NewStore(session.WithMaxTurns(cfg.SessionMaxTurns))
	go sessions.RunSweeper(ctx, cfg.SessionSweepInterval, cfg.SessionRetention)

	hub := pubsub.NewHub()

	chat := service.NewChatService(embedder, model, index, sessions, hub, collector, service.Options{
		TopK:         cfg.RetrievalTopK,
		HistoryTurns: cfg.HistoryTurns,
		Chunk: parser.ChunkConfig{
			MaxSize: cfg.ChunkMaxSize,
			Overlap: cfg.ChunkOverlap,
			Mode:    cfg.ChunkOverlapMode,
		},
		Timeout: cfg.ChatTimeout,
	})

	resolver := graph.NewResolver(chat, hub, sessions, index, collector)
	logger := slog.Default()
	gql := server.NewGraphQLHandler(graph.NewExecutableSchema(graph.Config{Resolvers: resolver}), logger)

	var checks []server.HealthChecker
	if hc, ok := index.(interface{ HealthCheck(context.Context) error }); ok {
		checks = append(checks, hc.HealthCheck)
	}

	srv := server.New(":"+cfg.ServerPort, server.NewMux(gql, logger, checks...), logger)
	return srv.Run(ctx, 10*time.Second)
}
