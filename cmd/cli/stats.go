package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/cmd"
	"github.com/encurtaweb/encurtador/internal/cache"
	"github.com/encurtaweb/encurtador/internal/config"
	"github.com/encurtaweb/encurtador/internal/repository"
)

// StatsCmd represents the 'stats' command
var StatsCmd = &cobra.Command{
	Use:   "stats [code]",
	Short: "Get statistics for a short link",
	Long: `Prints a short link's metadata, its durable click count and the live
count from the cache counter (which may be ahead until the worker flushes).`,
	Args: cobra.ExactArgs(1),
	Run:  runStats,
}

func init() {
	cmd.RootCmd.AddCommand(StatsCmd)
}

// runStats executes the logic for the stats command
func runStats(cobraCmd *cobra.Command, args []string) {
	code := args[0]

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
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying SQL database: %v", err)
	}
	defer sqlDB.Close()

	linkRepo := repository.NewLinkRepository(db)
	link, err := linkRepo.FindByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("Error: code '%s' not found\n", code)
		} else {
			fmt.Printf("Error retrieving statistics: %v\n", err)
		}
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	linkCache := cache.NewLinkCache(redisClient, cfg.SnapshotTTL(), cfg.CacheOpTimeout(), logger)

	liveClicks := link.Clicks
	if counted, ok, err := linkCache.GetClicks(context.Background(), code); err != nil {
		fmt.Printf("Warning: cache unreachable, showing durable count only (%v)\n", err)
	} else if ok {
		liveClicks = counted
	}

	fmt.Printf("Statistics for code: %s\n", link.Code)
	fmt.Printf("Destination: %s\n", link.Destination)
	if link.Title != "" {
		fmt.Printf("Title: %s\n", link.Title)
	}
	fmt.Printf("Created at: %s\n", link.CreatedAt.Format("2006-01-02 15:04:05"))
	if link.ExpiresAt != nil {
		fmt.Printf("Expires at: %s\n", link.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	if link.MaxClicks != nil {
		fmt.Printf("Click quota: %d\n", *link.MaxClicks)
	}
	fmt.Printf("Clicks (durable): %d\n", link.Clicks)
	fmt.Printf("Clicks (live): %d\n", liveClicks)
}
