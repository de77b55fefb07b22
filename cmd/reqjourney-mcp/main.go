// Package main provides the entry point for the reqjourney MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/reqjourney-go/internal/config"
	"github.com/raphaelgruber/reqjourney-go/internal/db"
	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/server"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
	"github.com/raphaelgruber/reqjourney-go/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("reqjourney-mcp starting",
		"version", version,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
		"surrealdb_url", cfg.SurrealDBURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	client, err := extraction.FromConfig(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to create extraction client", "error", err)
		os.Exit(1)
	}
	catalog, err := config.LoadSystems(cfg.SystemsFile)
	if err != nil {
		logger.Error("failed to load systems", "error", err)
		os.Exit(1)
	}

	// Job history is optional; the tools work without it.
	var observers []service.JobObserver
	if cfg.SurrealDBURL != "" {
		dbClient, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			logger.Warn("job history disabled", "error", err)
		} else if err := dbClient.InitSchema(ctx); err != nil {
			logger.Warn("job history disabled", "error", err)
			_ = dbClient.Close(ctx)
		} else {
			recorder := db.NewJobRecorder(dbClient, logger)
			observers = append(observers, recorder)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = recorder.Close(flushCtx)
				logger.Info("closing database connection")
				_ = dbClient.Close(flushCtx)
			}()
		}
	}

	orchestrator := service.NewOrchestrator(client,
		service.WithLogger(logger),
		service.WithCatalog(catalog),
		service.WithValidator(service.NewArtifactValidator(service.Limits{
			BRDMB:   cfg.MaxBRDMB,
			AudioMB: cfg.MaxAudioMB,
			VideoMB: cfg.MaxVideoMB,
		})),
		service.WithJobTimeout(cfg.JobTimeout),
		service.WithCascadeOnRerun(cfg.CascadeOnRerun),
		service.WithObservers(observers...),
	)

	srv := server.New(version, logger)
	srv.Setup()
	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{
		Orchestrator: orchestrator,
		Logger:       logger,
	})

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
