package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// NATS (background batch runner); empty disables async processing
	NATSURL string

	// Server
	Port        string
	Environment string

	// Batch processing
	ChunkSize              int // variations per deferred job
	AsyncEnabled           bool
	MaxSynchronous         int // hard cap when async is disabled
	DefaultsAsyncThreshold int // defaults batches above this go async
	ChunkStaggerSeconds    int
	PreviewLimit           int // defaults dry-run preview cap

	// Pricing
	PriceDecimals int

	// Pagination
	DefaultPageSize int
	MaxPageSize     int
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	chunkSize, _ := strconv.Atoi(getEnv("CHUNK_SIZE", "100"))
	asyncEnabled, _ := strconv.ParseBool(getEnv("ASYNC_ENABLED", "true"))
	maxSync, _ := strconv.Atoi(getEnv("MAX_SYNCHRONOUS", "200"))
	defaultsThreshold, _ := strconv.Atoi(getEnv("DEFAULTS_ASYNC_THRESHOLD", "300"))
	stagger, _ := strconv.Atoi(getEnv("CHUNK_STAGGER_SECONDS", "3"))
	previewLimit, _ := strconv.Atoi(getEnv("PREVIEW_LIMIT", "50"))
	priceDecimals, _ := strconv.Atoi(getEnv("PRICE_DECIMALS", "2"))
	defaultPageSize, _ := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "25"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "500"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "bulk_pricer_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		NATSURL:  os.Getenv("NATS_URL"),

		Port:        getEnv("PORT", "8094"),
		Environment: getEnv("ENVIRONMENT", "development"),

		ChunkSize:              chunkSize,
		AsyncEnabled:           asyncEnabled,
		MaxSynchronous:         maxSync,
		DefaultsAsyncThreshold: defaultsThreshold,
		ChunkStaggerSeconds:    stagger,
		PreviewLimit:           previewLimit,

		PriceDecimals: priceDecimals,

		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

// Migrate applies the schema for all models. Shared with tests, which run
// it against an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Product{},
		&models.ProductVariation{},
		&models.VariationAttribute{},
		&models.ProductAttributeTerm{},
		&models.Attribute{},
		&models.AttributeTerm{},
		&models.PriceChange{},
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
