package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-admin-service/internal/models"
)

type Config struct {
	// Database (optional, enables session drafts)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DraftTTL   time.Duration

	// Redis
	RedisURL string

	// NATS
	NATSURL string

	// Server
	Port        string
	Environment string

	// Commerce API
	CommerceAPIURL     string
	CommerceAPITimeout time.Duration
	CommerceRateLimit  float64
	CommerceMaxRetries int
	StoreID            string

	// Services
	StaffServiceURL string

	// Matrix settings
	VocabularyCacheTTL time.Duration
	MaxAltImages       int
	MaxUploadBytes     int64
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	draftTTLHours, _ := strconv.Atoi(getEnv("DRAFT_TTL_HOURS", "24"))
	timeoutSeconds, _ := strconv.Atoi(getEnv("COMMERCE_API_TIMEOUT_SECONDS", "30"))
	rateLimit, _ := strconv.ParseFloat(getEnv("COMMERCE_API_RATE_LIMIT", "10"), 64)
	maxRetries, _ := strconv.Atoi(getEnv("COMMERCE_API_MAX_RETRIES", "3"))
	cacheTTLSeconds, _ := strconv.Atoi(getEnv("VOCABULARY_CACHE_TTL_SECONDS", "600"))
	maxAltImages, _ := strconv.Atoi(getEnv("MAX_ALT_IMAGES", strconv.Itoa(models.DefaultMaxAltImages)))
	maxUploadBytes, _ := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "10485760"), 10, 64)

	return &Config{
		// Database - fetch password from GCP Secret Manager if enabled
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "catalog_admin_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DraftTTL:   time.Duration(draftTTLHours) * time.Hour,

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),

		// NATS - events are skipped when empty
		NATSURL: getEnv("NATS_URL", ""),

		// Server
		Port:        getEnv("PORT", "8095"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Commerce API
		CommerceAPIURL:     getEnv("COMMERCE_API_URL", "http://localhost:8000/api"),
		CommerceAPITimeout: time.Duration(timeoutSeconds) * time.Second,
		CommerceRateLimit:  rateLimit,
		CommerceMaxRetries: maxRetries,
		StoreID:            getEnv("STORE_ID", ""),

		// Services
		StaffServiceURL: getEnv("STAFF_SERVICE_URL", "http://staff-service:8080"),

		// Matrix settings
		VocabularyCacheTTL: time.Duration(cacheTTLSeconds) * time.Second,
		MaxAltImages:       maxAltImages,
		MaxUploadBytes:     maxUploadBytes,
	}
}

// DatabaseEnabled reports whether a draft database is configured
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
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
	if err := db.AutoMigrate(&models.MatrixDraft{}); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
