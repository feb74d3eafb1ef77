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

	"catalog-admin-service/internal/clients"
	"catalog-admin-service/internal/config"
	"catalog-admin-service/internal/events"
	"catalog-admin-service/internal/handlers"
	"catalog-admin-service/internal/middleware"
	"catalog-admin-service/internal/repository"
	"catalog-admin-service/internal/services"
	"catalog-admin-service/internal/subscribers"
	"catalog-admin-service/internal/vocabulary"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Catalog Admin API
// @version 1.0.0
// @description Product dialog sessions for the admin dashboard: option matrix editing, variant rows and submission to the commerce API

// @host localhost:8095
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const draftCleanupInterval = time.Hour

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

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
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (vocabulary caching will be disabled)", err)
		redisClient = nil
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Commerce API clients
	commerce := clients.NewCommerceClient(clients.CommerceConfig{
		BaseURL:    cfg.CommerceAPIURL,
		Timeout:    cfg.CommerceAPITimeout,
		RateLimit:  cfg.CommerceRateLimit,
		MaxRetries: cfg.CommerceMaxRetries,
		StoreID:    cfg.StoreID,
		Logger:     logrus.NewEntry(logger),
	})
	productsClient := clients.NewProductsClient(commerce)
	vocabularyService := vocabulary.NewService(clients.NewVocabularyClient(commerce), redisClient, vocabulary.Config{
		StoreID:  cfg.StoreID,
		CacheTTL: cfg.VocabularyCacheTTL,
		Logger:   logrus.NewEntry(logger),
	})
	imageFetcher := clients.NewRemoteImageFetcher(cfg.CommerceAPITimeout, cfg.MaxUploadBytes, cfg.CommerceMaxRetries)
	log.Println("✓ Commerce API clients initialized")

	sessionConfig := services.SessionConfig{
		Fetcher:      imageFetcher,
		StoreID:      cfg.StoreID,
		MaxAltImages: cfg.MaxAltImages,
		Logger:       logrus.NewEntry(logger),
	}

	// Session drafts only when a database is configured
	var draftsRepo *repository.DraftsRepository
	if cfg.DatabaseEnabled() {
		db, err := config.InitDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		handlers.SetDB(db)
		draftsRepo = repository.NewDraftsRepository(db, cfg.DraftTTL)
		sessionConfig.Drafts = draftsRepo
		log.Println("✓ Session drafts enabled")
	} else {
		log.Println("DB_HOST not set, sessions are kept in memory only")
	}

	// Initialize event publisher for audit trail only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			sessionConfig.Events = eventsPublisher
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	sessionService := services.NewSessionService(vocabularyService, productsClient, sessionConfig)
	sessionsHandler := handlers.NewSessionsHandler(sessionService, cfg.MaxUploadBytes)

	// Warn open sessions when their product changes elsewhere
	var productSubscriber *subscribers.ProductSubscriber
	if cfg.NATSURL != "" {
		productSubscriber, err = subscribers.NewProductSubscriber(cfg.NATSURL, sessionService, cfg.StoreID, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize product subscriber: %v (continuing without change notices)", err)
		} else if err := productSubscriber.Start(context.Background()); err != nil {
			log.Printf("WARNING: Failed to start product subscriber: %v", err)
		} else {
			log.Println("✓ Product change subscriber started")
		}
	}
	defer func() {
		if productSubscriber != nil {
			productSubscriber.Stop()
		}
	}()

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("catalog-admin-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("catalog-admin-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("tesseract", "catalog_admin_service")
	log.Println("✓ Prometheus metrics initialized")

	rbacMw := rbac.NewMiddlewareWithURL(cfg.StaffServiceURL, nil)
	log.Println("✓ RBAC middleware initialized")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("catalog-admin-service"))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)
	router.GET("/metrics", gosharedmw.Handler())

	api := router.Group("/api/v1")
	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
	} else {
		api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
			RequireAuth:        true,
			AllowLegacyHeaders: true,
			Logger:             logrus.NewEntry(logger).WithField("component", "istio_auth"),
		}))
	}
	api.Use(middleware.ForwardToken())

	sessionsHandler.RegisterRoutes(api,
		rbacMw.RequirePermission(rbac.PermissionProductsRead),
		rbacMw.RequirePermission(rbac.PermissionProductsUpdate),
		rbacMw.RequirePermission(rbac.PermissionProductsDelete),
	)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Expired drafts cleanup
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	if draftsRepo != nil {
		go runDraftCleanup(cleanupCtx, draftsRepo, logger)
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog admin service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down catalog-admin-service...")
	stopCleanup()

	// Let in-flight vocabulary registrations and value fetches finish
	vocabularyService.Wait()
	sessionService.Wait()

	if tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Println("Catalog admin service stopped")
}

func runDraftCleanup(ctx context.Context, repo *repository.DraftsRepository, logger *logrus.Logger) {
	ticker := time.NewTicker(draftCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.WithError(err).Warn("Failed to remove expired drafts")
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("Removed expired session drafts")
			}
		}
	}
}
