package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/yikoni/docbase/internal/ai"
	"github.com/yikoni/docbase/internal/chunker"
	"github.com/yikoni/docbase/internal/config"
	"github.com/yikoni/docbase/internal/db"
	"github.com/yikoni/docbase/internal/embedcache"
	"github.com/yikoni/docbase/internal/filestore"
	"github.com/yikoni/docbase/internal/handler"
	"github.com/yikoni/docbase/internal/job"
	"github.com/yikoni/docbase/internal/middleware"
	"github.com/yikoni/docbase/internal/queue"
	"github.com/yikoni/docbase/internal/repo"
	"github.com/yikoni/docbase/internal/schedule"
	"github.com/yikoni/docbase/internal/service"
	"github.com/yikoni/docbase/internal/worker"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docbase",
		Short: "docbase document ingestion server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docbase server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	collectionRepo := repo.NewCollectionRepo(conn)

	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.Model)
	if cfg.AI.CacheSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(
			embedder,
			cfg.AI.CacheSize,
			time.Hour*time.Duration(cfg.AI.CacheTTLHours),
		)
	}

	store, err := filestore.Create(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	stores := map[string]filestore.Store{store.Type(): store}

	jobQueue := queue.NewMemory(cfg.Worker.QueueSize)
	splitter := chunker.New(chunker.Config{
		TargetChars:  cfg.Chunker.TargetChars,
		OverlapChars: cfg.Chunker.OverlapChars,
	})
	pool, err := worker.New(docRepo, chunkRepo, embedder, splitter, jobQueue, worker.Config{
		PoolSize:     cfg.Worker.PoolSize,
		BatchSize:    cfg.Worker.BatchSize,
		MaxAttempts:  cfg.Worker.MaxAttempts,
		RetryBase:    time.Millisecond * time.Duration(cfg.Worker.RetryBaseMS),
		EmbedTimeout: time.Second * time.Duration(cfg.Worker.EmbedTimeout),
	})
	if err != nil {
		return fmt.Errorf("init worker pool: %w", err)
	}

	documentService := service.NewDocumentService(docRepo, chunkRepo)
	embeddingService := service.NewEmbeddingService(docRepo, jobQueue)
	collectionService := service.NewCollectionService(collectionRepo, docRepo)
	cleanupService := service.NewCleanupService(docRepo, chunkRepo, collectionRepo, stores)

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingResyncJob(docRepo, jobQueue, 60), cfg.Jobs.ResyncSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingReclaimJob(docRepo, jobQueue, cfg.Jobs.ReclaimDeadlineSec), cfg.Jobs.ReclaimSpec); err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Documents:   handler.NewDocumentHandler(documentService, cleanupService),
		Embeddings:  handler.NewEmbeddingHandler(embeddingService),
		Collections: handler.NewCollectionHandler(collectionService),
		JWTSecret:   []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)
	scheduler.Start(ctx)

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	jobQueue.Close()
	pool.Stop()
	return nil
}
