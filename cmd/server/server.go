package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/cmd"
	"github.com/encurtaweb/encurtador/internal/api"
	"github.com/encurtaweb/encurtador/internal/cache"
	"github.com/encurtaweb/encurtador/internal/config"
	"github.com/encurtaweb/encurtador/internal/models"
	"github.com/encurtaweb/encurtador/internal/queue"
	"github.com/encurtaweb/encurtador/internal/repository"
	"github.com/encurtaweb/encurtador/internal/services"
	"github.com/encurtaweb/encurtador/internal/workers"
)

// RunServerCmd is the 'run-server' Cobra command: it wires the store, cache,
// queue and service together, starts the in-process click-sync consumer and
// serves the HTTP API until a shutdown signal arrives.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Starts the short-link API server and the click-sync consumer.",
	Long: `This command initializes the database, the Redis cache, the click
persistence queue and the HTTP API, then serves requests until interrupted.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		logger, err := zap.NewProduction()
		if err != nil {
			log.Fatalf("Failed to build logger: %v", err)
		}
		defer logger.Sync()

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := db.AutoMigrate(&models.Link{}); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			// The read path degrades to the store when Redis is away, so a
			// failed ping is a warning, not a refusal to start.
			logger.Warn("Redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()

		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		linkRepo := repository.NewLinkRepository(db)
		linkCache := cache.NewLinkCache(redisClient, cfg.SnapshotTTL(), cfg.CacheOpTimeout(), logger)
		clickQueue := queue.NewClickQueue(redisOpt, logger)
		defer clickQueue.Close()

		linkService := services.NewLinkService(linkRepo, linkCache, clickQueue, cfg.ForbiddenDestinations(), logger)

		// In-process click-sync consumer. Deployments that scale the worker
		// separately use 'run-worker' instead.
		clickWorker := workers.NewClickSyncWorker(linkRepo, linkCache, logger)
		consumer, mux := workers.NewConsumer(redisOpt, cfg.Queue.Concurrency, clickWorker, logger)
		if err := consumer.Start(mux); err != nil {
			logger.Fatal("Failed to start click-sync consumer", zap.Error(err))
		}
		logger.Info("Click-sync consumer started", zap.Int("concurrency", cfg.Queue.Concurrency))

		router := gin.Default()
		api.SetupRoutes(router, linkService, logger)

		serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:    serverAddr,
			Handler: router,
		}

		go func() {
			logger.Info("Starting server", zap.String("addr", serverAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("Failed to start server", zap.Error(err))
			}
		}()

		// Graceful shutdown on SIGINT/SIGTERM: stop accepting HTTP first,
		// then drain the consumer so in-flight click syncs finish.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received, stopping server...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
		consumer.Shutdown()

		logger.Info("Server stopped cleanly.")
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}
