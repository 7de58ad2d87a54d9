package worker

import (
	"log"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/cmd"
	"github.com/encurtaweb/encurtador/internal/cache"
	"github.com/encurtaweb/encurtador/internal/config"
	"github.com/encurtaweb/encurtador/internal/repository"
	"github.com/encurtaweb/encurtador/internal/workers"
)

// RunWorkerCmd is the 'run-worker' Cobra command: a standalone click-sync
// consumer, for deployments that scale click persistence independently of
// the API server.
var RunWorkerCmd = &cobra.Command{
	Use:   "run-worker",
	Short: "Starts the standalone click-sync worker.",
	Long: `This command starts the consumer that drains click persistence jobs
and reconciles the durable click counts with the cache counter. It blocks
until interrupted.`,
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

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		linkRepo := repository.NewLinkRepository(db)
		linkCache := cache.NewLinkCache(redisClient, cfg.SnapshotTTL(), cfg.CacheOpTimeout(), logger)
		clickWorker := workers.NewClickSyncWorker(linkRepo, linkCache, logger)

		consumer, mux := workers.NewConsumer(redisOpt, cfg.Queue.Concurrency, clickWorker, logger)
		logger.Info("Starting click-sync worker", zap.Int("concurrency", cfg.Queue.Concurrency))

		// Run blocks and handles SIGINT/SIGTERM itself.
		if err := consumer.Run(mux); err != nil {
			logger.Fatal("Click-sync worker stopped with error", zap.Error(err))
		}
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunWorkerCmd)
}
