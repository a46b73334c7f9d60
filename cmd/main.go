package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/config"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/handlers"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/jobs"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/middleware"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/pricing"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/repository"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/search"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/services"
	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/subscribers"
)

// @title Bulk Variation Price Editor API
// @version 1.0.0
// @description Bulk price and default-attribute editing for variable products, with change logging and undo

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8094
// @BasePath /api/v1/bulk-pricer

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize repositories
	catalogRepo := repository.NewCatalogRepository(db, redisClient)
	changelogRepo := repository.NewChangeLogRepository(db)

	// Initialize domain services
	transformer := pricing.NewTransformer(catalogRepo, cfg.PriceDecimals)
	resolver := search.NewResolver(catalogRepo, logger)
	searchService := services.NewSearchService(catalogRepo, resolver, logger)

	// Initialize the task runner only if NATS_URL is set; without it,
	// batches above the synchronous cap are rejected instead of deferred
	var runner *jobs.NATSRunner
	if cfg.NATSURL != "" {
		runner, err = jobs.NewNATSRunner(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to connect task runner: %v (deferred processing disabled)", err)
		} else {
			log.Println("✓ Task runner initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, deferred batch processing disabled")
	}
	defer func() {
		if runner != nil {
			runner.Close()
		}
	}()

	opts := services.Options{
		ChunkSize:              cfg.ChunkSize,
		AsyncEnabled:           cfg.AsyncEnabled,
		MaxSynchronous:         cfg.MaxSynchronous,
		DefaultsAsyncThreshold: cfg.DefaultsAsyncThreshold,
		PreviewLimit:           cfg.PreviewLimit,
		ChunkStagger:           time.Duration(cfg.ChunkStaggerSeconds) * time.Second,
	}
	// A typed nil would defeat the runner nil-checks in the service
	var jobRunner jobs.Runner
	if runner != nil {
		jobRunner = runner
	}
	bulkService := services.NewBulkService(catalogRepo, changelogRepo, transformer, jobRunner, opts, logger)

	// Start the chunk worker alongside the API when NATS is available
	var worker *subscribers.BatchSubscriber
	if runner != nil {
		worker, err = subscribers.NewBatchSubscriber(cfg.NATSURL, bulkService, logger)
		if err != nil {
			log.Printf("WARNING: Failed to start batch worker: %v", err)
		} else if err := worker.Start(context.Background()); err != nil {
			log.Printf("WARNING: Failed to subscribe batch worker: %v", err)
		} else {
			log.Println("✓ Batch worker subscribed")
		}
	}
	defer func() {
		if worker != nil {
			worker.Stop()
		}
	}()

	// Initialize handlers
	bulkHandler := handlers.NewBulkHandler(bulkService, logger)
	searchHandler := handlers.NewSearchHandler(searchService, handlers.PageLimits{
		Default: cfg.DefaultPageSize,
		Max:     cfg.MaxPageSize,
	}, logger)
	operationsHandler := handlers.NewOperationsHandler(changelogRepo, logger)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
	} else {
		api.Use(middleware.BearerAuthMiddleware())
	}

	bulk := api.Group("/bulk-pricer")
	{
		bulk.GET("/search", searchHandler.Search)
		bulk.GET("/attributes", searchHandler.Attributes)

		bulk.POST("/update", bulkHandler.Update)
		bulk.POST("/set-defaults", bulkHandler.SetDefaults)
		bulk.POST("/undo", bulkHandler.Undo)

		bulk.GET("/operations", operationsHandler.List)
		bulk.GET("/operations/:id", operationsHandler.Rows)
		bulk.GET("/operations/:id/export", operationsHandler.Export)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Bulk pricer service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down bulk-pricer...")
	log.Println("Bulk pricer service stopped")
}
