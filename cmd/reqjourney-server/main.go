// Package main provides the HTTP server for reqjourney.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/reqjourney-go/internal/api"
	"github.com/raphaelgruber/reqjourney-go/internal/blob"
	"github.com/raphaelgruber/reqjourney-go/internal/config"
	"github.com/raphaelgruber/reqjourney-go/internal/db"
	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/metrics"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
	"github.com/raphaelgruber/reqjourney-go/internal/session"
)

const pruneInterval = time.Hour

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe job history on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *wipeDB); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, wipe bool) error {
	logger.Info("starting reqjourney-server",
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"surrealdb_url", cfg.SurrealDBURL,
		"s3_endpoint", cfg.S3Endpoint,
	)

	collector := metrics.NewCollector()

	client, err := extraction.FromConfig(ctx, cfg, collector, logger)
	if err != nil {
		return err
	}
	catalog, err := config.LoadSystems(cfg.SystemsFile)
	if err != nil {
		return err
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}

	observers := []service.JobObserver{collector}
	var (
		dbClient *db.Client
		recorder *db.JobRecorder
		history  api.JobHistory
	)
	if cfg.SurrealDBURL != "" {
		dbClient, err = connectDB(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("closing database connection")
			_ = dbClient.Close(context.Background())
		}()
		if wipe || os.Getenv("REQJOURNEY_WIPE_DB") == "true" {
			if _, err := dbClient.WipeData(ctx); err != nil {
				return err
			}
		}
		recorder = db.NewJobRecorder(dbClient, logger)
		observers = append(observers, recorder)
		history = dbClient
	}

	validator := service.NewArtifactValidator(service.Limits{
		BRDMB:   cfg.MaxBRDMB,
		AudioMB: cfg.MaxAudioMB,
		VideoMB: cfg.MaxVideoMB,
	})
	factory := func() *service.Orchestrator {
		return service.NewOrchestrator(client,
			service.WithLogger(logger),
			service.WithCatalog(catalog),
			service.WithValidator(validator),
			service.WithJobTimeout(cfg.JobTimeout),
			service.WithCascadeOnRerun(cfg.CascadeOnRerun),
			service.WithObservers(observers...),
		)
	}
	sessions := session.NewManager(cfg.SessionCapacity, cfg.SessionTTL, factory,
		session.WithLogger(logger),
		session.WithEvictHook(func(s *session.Session) {
			a := s.Orchestrator.Artifact()
			if a == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := blobs.Delete(ctx, s.ID, a.Name); err != nil && !errors.Is(err, blob.ErrNotFound) {
				logger.Warn("failed to delete artifact of evicted session", "session_id", s.ID, "error", err)
			}
		}),
	)

	router := api.NewRouter(api.Deps{
		Sessions:       sessions,
		Client:         client,
		Validator:      validator,
		Catalog:        catalog,
		Blobs:          blobs,
		Metrics:        collector,
		History:        history,
		Logger:         logger,
		AnalyzeTimeout: cfg.JobTimeout,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.JobTimeout + 30*time.Second, // /analyze blocks for a whole extraction
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP API available", "url", "http://localhost:"+cfg.Port+"/api/v1")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if dbClient != nil && cfg.JobRetention > 0 {
		g.Go(func() error {
			pruneJobs(gctx, dbClient, cfg.JobRetention, logger)
			return nil
		})
	}

	err = g.Wait()
	if recorder != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if cerr := recorder.Close(flushCtx); cerr != nil {
			logger.Warn("job history not flushed", "error", cerr)
		}
		cancel()
	}
	return err
}

func newBlobStore(cfg config.Config) (blob.Store, error) {
	if cfg.S3Endpoint == "" {
		return blob.NewMemoryStore(), nil
	}
	return blob.NewS3Store(blob.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.AWSRegion,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
}

func connectDB(ctx context.Context, cfg config.Config, logger *slog.Logger) (*db.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := db.NewClient(connectCtx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := client.InitSchema(connectCtx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return client, nil
}

// pruneJobs deletes finished jobs older than retention until ctx is done.
func pruneJobs(ctx context.Context, client *db.Client, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := client.DeleteJobsBefore(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("failed to prune job history", "error", err)
		case n > 0:
			logger.Info("pruned job history", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
