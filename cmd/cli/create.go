package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/cmd"
	"github.com/encurtaweb/encurtador/internal/cache"
	"github.com/encurtaweb/encurtador/internal/config"
	"github.com/encurtaweb/encurtador/internal/queue"
	"github.com/encurtaweb/encurtador/internal/repository"
	"github.com/encurtaweb/encurtador/internal/services"
)

var (
	destinationFlag string
	aliasFlag       string
	titleFlag       string
	expiresAtFlag   string
	maxClicksFlag   int64
)

// CreateCmd represents the 'create' command
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a short link for a destination URL.",
	Long: `This command creates a short link and prints the resulting code.

Example:
  encurtador create --url="https://www.google.com/search?q=go+lang" --alias=busca --max-clicks=100`,
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

		var expiresAt *time.Time
		if expiresAtFlag != "" {
			parsed, err := time.Parse(time.RFC3339, expiresAtFlag)
			if err != nil {
				log.Fatalf("Invalid --expires-at value (want RFC 3339, e.g. 2030-01-02T15:04:05Z): %v", err)
			}
			expiresAt = &parsed
		}
		var maxClicks *int64
		if maxClicksFlag > 0 {
			maxClicks = &maxClicksFlag
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get underlying SQL database: %v", err)
		}
		defer sqlDB.Close()

		// Creation never touches the cache or the queue, but the service is
		// wired the same way as in the server; both clients connect lazily.
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
		clickQueue := queue.NewClickQueue(redisOpt, logger)
		defer clickQueue.Close()
		linkService := services.NewLinkService(linkRepo, linkCache, clickQueue, cfg.ForbiddenDestinations(), logger)

		link, err := linkService.CreateLink(context.Background(), services.CreateLinkInput{
			Destination: destinationFlag,
			CustomAlias: aliasFlag,
			Title:       titleFlag,
			ExpiresAt:   expiresAt,
			MaxClicks:   maxClicks,
		})
		if err != nil {
			log.Fatalf("Failed to create short link: %v", err)
		}

		fmt.Printf("Short link created:\n")
		fmt.Printf("Code: %s\n", link.Code)
		fmt.Printf("URL: %s/%s\n", cfg.Server.BaseURL, link.Code)
	},
}

func init() {
	CreateCmd.Flags().StringVar(&destinationFlag, "url", "", "The destination URL to shorten")
	CreateCmd.Flags().StringVar(&aliasFlag, "alias", "", "Optional custom alias for the code")
	CreateCmd.Flags().StringVar(&titleFlag, "title", "", "Optional title")
	CreateCmd.Flags().StringVar(&expiresAtFlag, "expires-at", "", "Optional expiration (RFC 3339)")
	CreateCmd.Flags().Int64Var(&maxClicksFlag, "max-clicks", 0, "Optional click quota (>= 1)")

	CreateCmd.MarkFlagRequired("url")

	cmd.RootCmd.AddCommand(CreateCmd)
}
